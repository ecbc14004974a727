// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/holomush/reconweb/internal/auth/authtest"
	"github.com/holomush/reconweb/internal/config"
	"github.com/holomush/reconweb/internal/session"
	"github.com/holomush/reconweb/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// isolateEnv hides the caller's config file and environment from Load.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if name == "DATABASE_URL" || strings.HasPrefix(name, config.EnvPrefix) {
			t.Setenv(name, "")
			require.NoError(t, os.Unsetenv(name))
		}
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const baseConfig = `
database:
  url: postgres://localhost/reconweb
auth:
  token_secret: ` + testSecret + `
engine:
  url: http://127.0.0.1:5000
`

func execute(t *testing.T, deps *Deps, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(deps)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return buf.String(), err
}

// memoryBackend serves users from repo and sessions from memory.
func memoryBackend(repo *authtest.UserRepository) func(context.Context, *config.Config) (*Backend, error) {
	return func(context.Context, *config.Config) (*Backend, error) {
		return &Backend{
			Users:    repo,
			Sessions: session.NewMemoryStore(),
			Ready:    func() bool { return true },
			Close:    func() {},
		}, nil
	}
}

type fakeMigrator struct {
	calls  []string
	forced int
	steps  []int
	status store.Status
	err    error
	closed bool
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	return f.err
}

func (f *fakeMigrator) Down() error {
	f.calls = append(f.calls, "down")
	return f.err
}

func (f *fakeMigrator) Steps(n int) error {
	f.calls = append(f.calls, "steps")
	f.steps = append(f.steps, n)
	return f.err
}

func (f *fakeMigrator) Force(version int) error {
	f.calls = append(f.calls, "force")
	f.forced = version
	return f.err
}

func (f *fakeMigrator) Status() (store.Status, error) {
	f.calls = append(f.calls, "status")
	return f.status, nil
}

func (f *fakeMigrator) Close() error {
	f.closed = true
	return nil
}
