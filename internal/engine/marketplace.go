// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package engine

import (
	"slices"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// SortModules sorts modules by path in place.
func SortModules(modules []Module) {
	slices.SortStableFunc(modules, func(a, b Module) int {
		return strings.Compare(a.Path, b.Path)
	})
}

// FilterModules returns the modules whose path matches pattern. Path
// segments are separated by '/', so "recon/*" matches only direct children
// of recon while "recon/**" matches the whole subtree. An empty pattern
// matches everything.
func FilterModules(modules []Module, pattern string) ([]Module, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return modules, nil
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, oops.Code("ENGINE_INVALID_FILTER").
			With("pattern", pattern).
			Wrap(err)
	}
	out := make([]Module, 0, len(modules))
	for _, m := range modules {
		if g.Match(m.Path) {
			out = append(out, m)
		}
	}
	return out, nil
}
