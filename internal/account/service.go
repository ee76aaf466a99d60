// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Userforge Contributors

package account

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/userforge/userforge/pkg/errutil"
)

// Service provides account lifecycle operations.
type Service struct {
	accounts Repository
	hasher   PasswordHasher
	logger   *slog.Logger
}

// NewService creates a new Service with the default logger.
func NewService(accounts Repository, hasher PasswordHasher) (*Service, error) {
	return NewServiceWithLogger(accounts, hasher, slog.Default())
}

// NewServiceWithLogger creates a new Service with an explicit logger.
func NewServiceWithLogger(accounts Repository, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if accounts == nil {
		return nil, oops.Code("ACCOUNT_SERVICE_INVALID").Errorf("account repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("ACCOUNT_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("ACCOUNT_SERVICE_INVALID").Errorf("logger is required")
	}
	return &Service{accounts: accounts, hasher: hasher, logger: logger}, nil
}

// dummyPasswordHash is used when an account doesn't exist to keep
// authentication response time consistent. This is NOT a real credential -
// it's a fake hash that will never match any password.
//
//nolint:gosec // G101: intentionally fake hash for timing consistency, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// RegisterInput is a full account payload, used by registration and full update.
type RegisterInput struct {
	Username      string
	Email         string
	Password      string
	RecoveryEmail *string
}

// PatchInput is a partial account payload. Nil fields are left untouched.
type PatchInput struct {
	Username      *string
	Email         *string
	Password      *string
	RecoveryEmail *string
}

// Register validates the input, rejects duplicate usernames or emails,
// hashes the password, and persists the new account. The plaintext password
// is never stored or echoed back.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	if verr := ValidateRegistration(in.Username, in.Email, in.Password, in.RecoveryEmail); verr != nil {
		return nil, verr
	}

	// Friendly pre-checks. The store's unique constraints remain the
	// authority: two concurrent registrations can both pass these lookups,
	// and Create resolves the race.
	if _, err := s.accounts.GetByUsername(ctx, in.Username); err == nil {
		return nil, oops.Code("ACCOUNT_USERNAME_TAKEN").
			With("username", in.Username).
			Wrap(ErrUsernameTaken)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").
			With("operation", "get account by username").
			Wrap(err)
	}
	if _, err := s.accounts.GetByEmail(ctx, in.Email); err == nil {
		return nil, oops.Code("ACCOUNT_EMAIL_TAKEN").
			With("email", in.Email).
			Wrap(ErrEmailTaken)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	now := time.Now().UTC()
	acct := &Account{
		ID:            ulid.Make(),
		Username:      in.Username,
		Email:         in.Email,
		PasswordHash:  hash,
		RecoveryEmail: in.RecoveryEmail,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.accounts.Create(ctx, acct); err != nil {
		switch {
		case errors.Is(err, ErrUsernameTaken):
			return nil, oops.Code("ACCOUNT_USERNAME_TAKEN").
				With("username", in.Username).
				Wrap(err)
		case errors.Is(err, ErrEmailTaken):
			return nil, oops.Code("ACCOUNT_EMAIL_TAKEN").
				With("email", in.Email).
				Wrap(err)
		}
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").
			With("operation", "insert account").
			Wrap(err)
	}

	return acct, nil
}

// Authenticate verifies an email/password pair. The password hash never
// leaves this method. Password verification always runs, against a dummy
// hash when the account does not exist, to keep response time consistent.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	acct, lookupErr := s.accounts.GetByEmail(ctx, email)

	targetHash := dummyPasswordHash
	accountExists := false
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("ACCOUNT_AUTH_FAILED").
				With("operation", "get account by email").
				Wrap(lookupErr)
		}
	} else {
		targetHash = acct.PasswordHash
		accountExists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil && accountExists {
		return nil, oops.Code("ACCOUNT_AUTH_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if !accountExists {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(ErrNotFound)
	}

	if !valid {
		acct.RecordFailure()
		if err := s.accounts.Update(ctx, acct); err != nil {
			errutil.LogError(s.logger, "failed to record authentication failure", err)
		}
		return nil, oops.Code("ACCOUNT_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	// Check lockout after password verification to maintain constant time.
	if acct.IsLocked() {
		return nil, oops.Code("ACCOUNT_LOCKED").
			With("locked_until", acct.LockedUntil).
			Wrap(ErrLocked)
	}

	acct.RecordSuccess()

	// Transparently upgrade legacy hashes on successful login.
	if s.hasher.NeedsUpgrade(acct.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			acct.PasswordHash = newHash
		}
	}

	// Best effort: authentication succeeds even if the bookkeeping write fails.
	if err := s.accounts.Update(ctx, acct); err != nil {
		errutil.LogError(s.logger, "failed to record authentication success", err)
	}

	return acct, nil
}

// GetByUsername retrieves a single account.
func (s *Service) GetByUsername(ctx context.Context, username string) (*Account, error) {
	acct, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by username").
			With("username", username).
			Wrap(err)
	}
	return acct, nil
}

// List returns every account. An empty result is not an error here; the
// boundary decides whether "zero accounts" is reportable, and it stays
// distinguishable from "no such account".
func (s *Service) List(ctx context.Context) ([]*Account, error) {
	accts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").
			With("operation", "list accounts").
			Wrap(err)
	}
	return accts, nil
}

// UpdateProfile replaces an account's profile. The full registration schema
// applies; the password is re-hashed before persisting.
func (s *Service) UpdateProfile(ctx context.Context, username string, in RegisterInput) (*Account, error) {
	if verr := ValidateRegistration(in.Username, in.Email, in.Password, in.RecoveryEmail); verr != nil {
		return nil, verr
	}

	acct, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	acct.Username = in.Username
	acct.Email = in.Email
	acct.PasswordHash = hash
	acct.RecoveryEmail = in.RecoveryEmail
	acct.UpdatedAt = time.Now().UTC()

	if err := s.accounts.Update(ctx, acct); err != nil {
		return nil, s.mapMutationError(err, "update account")
	}
	return acct, nil
}

// PatchProfile applies a partial update. Only supplied fields are validated
// and written; a password field is re-hashed first.
func (s *Service) PatchProfile(ctx context.Context, username string, in PatchInput) (*Account, error) {
	if verr := ValidateProfilePatch(in.Username, in.Email, in.Password, in.RecoveryEmail); verr != nil {
		return nil, verr
	}

	patch := Patch{
		Username:      in.Username,
		Email:         in.Email,
		RecoveryEmail: in.RecoveryEmail,
	}
	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, oops.Code("ACCOUNT_PATCH_FAILED").
				With("operation", "hash password").
				Wrap(err)
		}
		patch.PasswordHash = &hash
	}

	if patch.IsEmpty() {
		return nil, &ValidationError{Fields: []FieldError{
			{Field: "body", Message: "no updatable fields supplied"},
		}}
	}

	acct, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	updated, err := s.accounts.Patch(ctx, acct.ID, patch)
	if err != nil {
		return nil, s.mapMutationError(err, "patch account")
	}
	return updated, nil
}

// Delete removes an account permanently. Deleting an absent account returns
// ErrNotFound with no side effect, on every call.
func (s *Service) Delete(ctx context.Context, username string) error {
	acct, err := s.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := s.accounts.Delete(ctx, acct.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete account").
			With("id", acct.ID.String()).
			Wrap(err)
	}
	return nil
}

// mapMutationError translates repository failures from profile mutations,
// preserving not-found and duplicate-key sentinels.
func (s *Service) mapMutationError(err error, operation string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return err
	case errors.Is(err, ErrUsernameTaken):
		return oops.Code("ACCOUNT_USERNAME_TAKEN").Wrap(err)
	case errors.Is(err, ErrEmailTaken):
		return oops.Code("ACCOUNT_EMAIL_TAKEN").Wrap(err)
	}
	return oops.Code("ACCOUNT_UPDATE_FAILED").
		With("operation", operation).
		Wrap(err)
}
