// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/holomush/reconweb/internal/config"
	"github.com/holomush/reconweb/internal/logging"
)

const serviceName = "reconweb"

// NewRootCmd creates the root command for the ReconWeb CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()
	var configFile string

	cmd := &cobra.Command{
		Use:   "reconweb",
		Short: "ReconWeb - a shared web front-end for recon-ng",
		Long: `ReconWeb gives several authenticated users shared access to a recon-ng
engine. It manages accounts and server-side sessions and rotates a per-user
token on every request.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/reconweb/config.yaml)")

	load := func(flags *pflag.FlagSet, keys map[string]string) (*config.Config, error) {
		return config.Load(config.Options{File: configFile, Flags: flags, FlagKeys: keys})
	}

	cmd.AddCommand(NewServeCmd(deps, load))
	cmd.AddCommand(NewMigrateCmd(deps, load))
	cmd.AddCommand(NewUserCmd(deps, load))

	return cmd
}

// configLoader loads the layered configuration. flags may be nil.
type configLoader func(flags *pflag.FlagSet, keys map[string]string) (*config.Config, error)

func newLogger(format string, w io.Writer) *slog.Logger {
	return logging.Setup(serviceName, version, format, w)
}
