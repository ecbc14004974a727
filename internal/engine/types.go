// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package engine

import "github.com/Masterminds/semver/v3"

// APIKey is a credential the engine passes to its modules.
type APIKey struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Module statuses reported by the marketplace index.
const (
	StatusInstalled    = "installed"
	StatusNotInstalled = "not installed"
	StatusOutdated     = "outdated"
	StatusDisabled     = "disabled"
)

// Module is one entry of the marketplace index.
type Module struct {
	Path             string   `json:"path"`
	Name             string   `json:"name"`
	Author           string   `json:"author"`
	Version          string   `json:"version"`
	InstalledVersion string   `json:"installed_version,omitempty"`
	Status           string   `json:"status"`
	Description      string   `json:"description"`
	RequiredKeys     []string `json:"required_keys,omitempty"`
	LastUpdated      string   `json:"last_updated"`
}

// Installed reports whether any version of the module is installed.
func (m Module) Installed() bool {
	if m.InstalledVersion != "" {
		return true
	}
	return m.Status == StatusInstalled || m.Status == StatusOutdated || m.Status == StatusDisabled
}

// Outdated reports whether the index offers a newer version than the
// installed one. Without an installed version it trusts Status. Versions
// that do not parse as semver fall back to Status too.
func (m Module) Outdated() bool {
	if m.InstalledVersion == "" {
		return m.Status == StatusOutdated
	}
	installed, err := semver.NewVersion(m.InstalledVersion)
	if err != nil {
		return m.Status == StatusOutdated
	}
	latest, err := semver.NewVersion(m.Version)
	if err != nil {
		return m.Status == StatusOutdated
	}
	return installed.LessThan(latest)
}
