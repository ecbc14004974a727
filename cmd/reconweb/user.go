// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/holomush/reconweb/internal/auth"
	"github.com/holomush/reconweb/internal/config"
)

// NewUserCmd creates the user command group.
func NewUserCmd(deps *Deps, load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage ReconWeb accounts",
	}

	var createPassword string
	create := &cobra.Command{
		Use:   "create <username>",
		Short: "Create a user",
		Long: `Create a user. Without --password the password is read from the
terminal without echo and must be typed twice.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsers(cmd, deps, load, func(users *auth.Service) error {
				password, err := resolvePassword(deps, createPassword)
				if err != nil {
					return err
				}
				user, err := users.CreateUser(cmd.Context(), args[0], password)
				if err != nil {
					return err
				}
				cmd.Printf("Created user %s (%s)\n", user.Username, user.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&createPassword, "password", "", "password for the new user (prompted when empty)")
	cmd.AddCommand(create)

	var newPassword string
	passwd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Set a user's password",
		Long: `Set a user's password. Every open session of that user has to log in
again afterwards.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsers(cmd, deps, load, func(users *auth.Service) error {
				password, err := resolvePassword(deps, newPassword)
				if err != nil {
					return err
				}
				if err := users.ChangePassword(cmd.Context(), args[0], password); err != nil {
					return err
				}
				cmd.Printf("Password changed for %s\n", args[0])
				return nil
			})
		},
	}
	passwd.Flags().StringVar(&newPassword, "password", "", "new password (prompted when empty)")
	cmd.AddCommand(passwd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withUsers(cmd, deps, load, func(users *auth.Service) error {
				list, err := users.ListUsers(cmd.Context())
				if err != nil {
					return err
				}
				for _, u := range list {
					marker := ""
					if users.IsSuperuser(u.Username) {
						marker = " (superuser)"
					}
					cmd.Printf("%s  %s  %s%s\n", u.ID, u.CreatedAt.UTC().Format("2006-01-02 15:04:05"), u.Username, marker)
				}
				return nil
			})
		},
	})

	return cmd
}

// withUsers opens the database and hands fn a user Service. Sessions are not
// touched, so the memory session backend is used regardless of config.
func withUsers(cmd *cobra.Command, deps *Deps, load configLoader, fn func(*auth.Service) error) error {
	cfg, err := load(nil, nil)
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}
	cfg.Session.Backend = config.BackendMemory

	backend, err := deps.OpenBackend(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	logger := newLogger(cfg.Log.Format, cmd.ErrOrStderr())
	users, err := auth.NewServiceWithLogger(backend.Users, auth.NewArgon2idHasher(), cfg.Auth.Superuser, logger)
	if err != nil {
		return err
	}
	return fn(users)
}

// resolvePassword returns flagValue when set, otherwise prompts twice.
func resolvePassword(deps *Deps, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}

	first, err := deps.ReadPassword("Password: ")
	if err != nil {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	if first == "" {
		return "", oops.Code("PASSWORD_EMPTY").Errorf("password cannot be empty")
	}
	second, err := deps.ReadPassword("Confirm password: ")
	if err != nil {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	if first != second {
		return "", oops.Code("PASSWORD_MISMATCH").Errorf("passwords do not match")
	}
	return first, nil
}

// stdinLines serves piped passwords, one per line.
var stdinLines *bufio.Reader

// readPasswordFromTerminal prompts on stderr and reads without echo. When
// stdin is not a terminal it reads one line instead.
func readPasswordFromTerminal(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	fd := int(os.Stdin.Fd()) //nolint:gosec // G115: file descriptors fit in int
	if !term.IsTerminal(fd) {
		if stdinLines == nil {
			stdinLines = bufio.NewReader(os.Stdin)
		}
		line, err := stdinLines.ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
