// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides authentication primitives for ReconWeb.
//
// # Domain Types
//
// Users should be created through Service.CreateUser (or NewUser), which
// validates the username and hashes the password. Direct struct
// initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated users.
//
// # Services
//
//   - Service - credential checks and user management (create, change
//     password, list, delete with superuser protection)
//   - TokenService - the per-user rotating token checked on every
//     authenticated request
//
// Both are created with New* constructors that validate dependencies.
package auth
