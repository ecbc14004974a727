// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package xdg provides XDG Base Directory paths for ReconWeb.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "reconweb"

// ConfigDir returns the XDG config directory for reconweb.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() (string, error) {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", oops.Code("XDG_NO_HOME").
			With("variable", "XDG_CONFIG_HOME").
			Wrap(err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// ConfigFile returns the path of name inside ConfigDir.
func ConfigFile(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// DefaultConfigFile returns the default config file path and whether a
// regular file exists there.
func DefaultConfigFile() (string, bool) {
	path, err := ConfigFile("config.yaml")
	if err != nil {
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return path, false
	}
	return path, true
}
