// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Userforge Contributors

// Package account implements the account-credential lifecycle for userforge.
//
// # Domain Types
//
// Account is the sole persistent entity. Create one through Service.Register;
// direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated values.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - registration, authentication, profile update/patch, deletion
//   - ResetService - forgot-password and change-password flows
//
// Services are created with New*Service constructors that validate
// dependencies.
package account
