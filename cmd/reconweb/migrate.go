// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/reconweb/internal/store"
)

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd(deps *Deps, load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back and inspect the ReconWeb schema in PostgreSQL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(deps, load, func(m Migrator) error {
				return migrateUp(cmd, m)
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up [n]",
		Short: "Apply pending migrations, or only the next n",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return withMigrator(deps, load, func(m Migrator) error {
					return migrateUp(cmd, m)
				})
			}
			n, err := parseStepCount(args[0])
			if err != nil {
				return err
			}
			return withMigrator(deps, load, func(m Migrator) error {
				return migrateSteps(cmd, m, n)
			})
		},
	})

	var yes bool
	down := &cobra.Command{
		Use:   "down [n]",
		Short: "Roll back every migration, or only the last n (drops data)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := 0
			if len(args) == 1 {
				var err error
				if n, err = parseStepCount(args[0]); err != nil {
					return err
				}
			}
			if !yes {
				return oops.Code("CONFIRMATION_REQUIRED").
					Errorf("migrate down drops ReconWeb tables; pass --yes to confirm")
			}
			if n > 0 {
				return withMigrator(deps, load, func(m Migrator) error {
					return migrateSteps(cmd, m, -n)
				})
			}
			return withMigrator(deps, load, func(m Migrator) error {
				cmd.Println("Rolling back migrations...")
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("All migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&yes, "yes", false, "confirm the rollback")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(deps, load, func(m Migrator) error {
				return printStatus(cmd, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Mark a version as applied without running it",
		Long: `Record <version> as the current schema version and clear the dirty flag.
Use it only after repairing a migration that failed partway.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(deps, load, func(m Migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Forced schema version to %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

// withMigrator loads the database settings, opens a Migrator and closes it
// after fn returns.
func withMigrator(deps *Deps, load configLoader, fn func(Migrator) error) (err error) {
	cfg, err := load(nil, nil)
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}

	m, err := deps.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(m)
}

func migrateUp(cmd *cobra.Command, m Migrator) error {
	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return err
	}
	st, err := m.Status()
	if err != nil {
		return err
	}
	cmd.Printf("Migrations completed successfully (version %d)\n", st.Version)
	return nil
}

// migrateSteps applies n migrations, rolling back when n is negative.
func migrateSteps(cmd *cobra.Command, m Migrator, n int) error {
	if err := m.Steps(n); err != nil {
		return err
	}
	st, err := m.Status()
	if err != nil {
		return err
	}
	cmd.Printf("Schema now at version %d\n", st.Version)
	return nil
}

func printStatus(cmd *cobra.Command, m Migrator) error {
	st, err := m.Status()
	if err != nil {
		return err
	}

	cmd.Printf("Current version: %d\n", st.Version)
	if st.Dirty {
		cmd.Println("WARNING: schema is dirty; repair it and run 'reconweb migrate force <version>'")
	}

	for _, v := range st.Applied {
		cmd.Println(statusLine("applied", v))
	}
	for _, v := range st.Pending {
		cmd.Println(statusLine("pending", v))
	}
	if len(st.Pending) == 0 {
		cmd.Println("Schema is up to date")
	}
	return nil
}

func statusLine(state string, version uint) string {
	name, err := store.MigrationName(version)
	if err != nil || name == "" {
		name = fmt.Sprintf("%06d", version)
	}
	return fmt.Sprintf("  [%s] %s", state, name)
}

// parseForceVersion parses a non-negative schema version.
func parseForceVersion(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be an integer")
	}
	if v < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be non-negative")
	}
	return v, nil
}

// parseStepCount parses a positive migration count.
func parseStepCount(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, oops.Code("INVALID_STEPS").With("input", s).Errorf("step count must be a positive integer")
	}
	return n, nil
}
