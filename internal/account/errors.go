// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Userforge Contributors

package account

import "errors"

// Sentinel errors for use with errors.Is(). Services wrap these with oops
// codes and context; the HTTP boundary maps them onto status codes.
var (
	// ErrNotFound is returned when a requested account does not exist.
	ErrNotFound = errors.New("account not found")

	// ErrUsernameTaken is returned when a registration collides on username.
	ErrUsernameTaken = errors.New("username already in use")

	// ErrEmailTaken is returned when a registration collides on email.
	ErrEmailTaken = errors.New("email already in use")

	// ErrInvalidCredentials is returned on a login password mismatch.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidCurrentPassword is returned when a password change supplies
	// the wrong current password.
	ErrInvalidCurrentPassword = errors.New("invalid current password")

	// ErrLocked is returned when an account is temporarily locked out
	// after repeated authentication failures.
	ErrLocked = errors.New("account is temporarily locked")

	// ErrDeliveryFailed is returned when the recovery notification could not
	// be dispatched. The credential change that preceded it is NOT rolled
	// back; callers must log this prominently.
	ErrDeliveryFailed = errors.New("recovery mail delivery failed")
)
