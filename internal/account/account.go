// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Userforge Contributors

package account

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Account represents a registered user account.
//
// ID is the canonical, immutable identifier: every mutating repository
// operation keys by it. Username and Email are unique secondary lookups
// resolved at the service boundary.
type Account struct {
	ID             ulid.ULID
	Username       string
	Email          string
	PasswordHash   string
	RecoveryEmail  *string
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsLocked returns true if the account is currently locked out.
func (a *Account) IsLocked() bool {
	return IsLockedOut(a.LockedUntil)
}

// RecordFailure increments the failure counter and sets lockout if the
// threshold is reached.
func (a *Account) RecordFailure() {
	a.FailedAttempts++
	a.LockedUntil = ComputeLockoutTime(a.FailedAttempts)
	a.UpdatedAt = time.Now()
}

// RecordSuccess resets the failure counter and lockout.
func (a *Account) RecordSuccess() {
	a.FailedAttempts = 0
	a.LockedUntil = nil
	a.UpdatedAt = time.Now()
}

// Patch describes a partial account mutation. Nil fields are left untouched;
// only the fields present in the patch are written.
type Patch struct {
	Username      *string
	Email         *string
	PasswordHash  *string
	RecoveryEmail *string
}

// IsEmpty returns true if the patch carries no changes.
func (p Patch) IsEmpty() bool {
	return p.Username == nil && p.Email == nil && p.PasswordHash == nil && p.RecoveryEmail == nil
}

// Repository manages account persistence.
//
// Uniqueness of username and email is enforced at the store level: a
// check-then-create from the service is inherently racy, so Create must
// reject a duplicate with ErrUsernameTaken or ErrEmailTaken even when the
// service's own pre-checks passed.
type Repository interface {
	// Create stores a new account. Returns ErrUsernameTaken or ErrEmailTaken
	// on a unique-key collision.
	Create(ctx context.Context, acct *Account) error

	// GetByID retrieves an account by its canonical ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByUsername retrieves an account by username (case-insensitive).
	GetByUsername(ctx context.Context, username string) (*Account, error)

	// GetByEmail retrieves an account by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// List returns all accounts ordered by creation time.
	List(ctx context.Context) ([]*Account, error)

	// Update replaces all mutable fields of an existing account.
	Update(ctx context.Context, acct *Account) error

	// Patch applies a partial update and returns the resulting account.
	// Fields absent from the patch retain their prior values.
	Patch(ctx context.Context, id ulid.ULID, patch Patch) (*Account, error)

	// UpdatePassword updates only the password hash for an account.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// Delete removes an account permanently.
	Delete(ctx context.Context, id ulid.ULID) error
}
