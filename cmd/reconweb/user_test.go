// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/reconweb/internal/auth"
	"github.com/holomush/reconweb/internal/auth/authtest"
	"github.com/holomush/reconweb/internal/config"
	"github.com/holomush/reconweb/pkg/errutil"
)

// scriptedPasswords answers prompts in order.
func scriptedPasswords(t *testing.T, answers ...string) func(string) (string, error) {
	return func(string) (string, error) {
		require.NotEmpty(t, answers, "unexpected password prompt")
		next := answers[0]
		answers = answers[1:]
		return next, nil
	}
}

func userDeps(t *testing.T, repo *authtest.UserRepository, answers ...string) *Deps {
	return &Deps{
		OpenBackend:  memoryBackend(repo),
		ReadPassword: scriptedPasswords(t, answers...),
	}
}

func verifyPassword(t *testing.T, repo *authtest.UserRepository, username, password string) {
	t.Helper()
	svc, err := auth.NewService(repo, auth.NewArgon2idHasher(), "admin")
	require.NoError(t, err)
	_, err = svc.Authenticate(t.Context(), username, password)
	require.NoError(t, err)
}

func TestUserCreate_WithFlag(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, baseConfig)
	repo := authtest.NewUserRepository()

	out, err := execute(t, userDeps(t, repo), "--config", path, "user", "create", "alice", "--password", "pw1234")
	require.NoError(t, err)

	assert.Contains(t, out, "Created user alice")
	verifyPassword(t, repo, "alice", "pw1234")
}

func TestUserCreate_Prompted(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, baseConfig)
	repo := authtest.NewUserRepository()

	_, err := execute(t, userDeps(t, repo, "s3cret", "s3cret"), "--config", path, "user", "create", "bob")
	require.NoError(t, err)
	verifyPassword(t, repo, "bob", "s3cret")
}

func TestUserCreate_PromptErrors(t *testing.T) {
	tests := []struct {
		name    string
		answers []string
		code    string
	}{
		{"mismatch", []string{"one", "two"}, "PASSWORD_MISMATCH"},
		{"empty", []string{""}, "PASSWORD_EMPTY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			path := writeConfig(t, baseConfig)
			repo := authtest.NewUserRepository()

			_, err := execute(t, userDeps(t, repo, tt.answers...), "--config", path, "user", "create", "carol")
			errutil.AssertErrorCode(t, err, tt.code)
			assert.Zero(t, repo.Len())
		})
	}
}

func TestUserCreate_RejectsInvalidAndDuplicate(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, baseConfig)
	repo := authtest.NewUserRepository()
	deps := userDeps(t, repo)

	_, err := execute(t, deps, "--config", path, "user", "create", "Alice", "--password", "pw")
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_USERNAME")

	_, err = execute(t, deps, "--config", path, "user", "create", "alice", "--password", "pw")
	require.NoError(t, err)
	_, err = execute(t, deps, "--config", path, "user", "create", "alice", "--password", "pw")
	errutil.AssertErrorCode(t, err, "AUTH_USERNAME_TAKEN")
}

func TestUserPasswd(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, baseConfig)
	repo := authtest.NewUserRepository()
	deps := userDeps(t, repo, "newpass", "newpass")

	_, err := execute(t, deps, "--config", path, "user", "create", "alice", "--password", "old")
	require.NoError(t, err)

	out, err := execute(t, deps, "--config", path, "user", "passwd", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Password changed for alice")
	verifyPassword(t, repo, "alice", "newpass")

	_, err = execute(t, deps, "--config", path, "user", "passwd", "nobody", "--password", "x")
	errutil.AssertErrorCode(t, err, "AUTH_USER_NOT_FOUND")
}

func TestUserList(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, baseConfig)
	repo := authtest.NewUserRepository()
	deps := userDeps(t, repo)

	for _, name := range []string{"admin", "alice"} {
		_, err := execute(t, deps, "--config", path, "user", "create", name, "--password", "pw")
		require.NoError(t, err)
	}

	out, err := execute(t, deps, "--config", path, "user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "admin (superuser)")
	assert.Contains(t, out, "alice")
	assert.NotContains(t, out, "alice (superuser)")
}

func TestUserCommands_UseMemorySessions(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, baseConfig+"session:\n  backend: redis\n")
	var backend string
	deps := &Deps{
		OpenBackend: func(ctx context.Context, cfg *config.Config) (*Backend, error) {
			backend = cfg.Session.Backend
			return memoryBackend(authtest.NewUserRepository())(ctx, cfg)
		},
	}

	_, err := execute(t, deps, "--config", path, "user", "list")
	require.NoError(t, err)
	assert.Equal(t, config.BackendMemory, backend)
}

func TestUserPasswd_UnlocksAccount(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, baseConfig)
	repo := authtest.NewUserRepository()
	deps := userDeps(t, repo)

	_, err := execute(t, deps, "--config", path, "user", "create", "admin", "--password", "old")
	require.NoError(t, err)

	svc, err := auth.NewService(repo, auth.NewArgon2idHasher(), "admin")
	require.NoError(t, err)
	for range auth.LockoutThreshold {
		_, err = svc.Authenticate(t.Context(), "admin", "wrong")
		require.Error(t, err)
	}
	_, err = svc.Authenticate(t.Context(), "admin", "old")
	errutil.AssertErrorCode(t, err, "AUTH_ACCOUNT_LOCKED")

	_, err = execute(t, deps, "--config", path, "user", "passwd", "admin", "--password", "newsecret")
	require.NoError(t, err)
	verifyPassword(t, repo, "admin", "newsecret")
}
