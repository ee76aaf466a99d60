// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Userforge Contributors

package account

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/userforge/userforge/pkg/errutil"
)

// RecoverySender dispatches a recovery notification carrying the plaintext
// temporary password. This is the one place plaintext secret material
// legitimately crosses a boundary: it must reach the user out-of-band.
type RecoverySender interface {
	SendRecovery(ctx context.Context, toAddress, tempPassword string) error
}

// ResetService handles the forgot-password and change-password flows.
//
// The reset model matches the service this replaces: the temporary password
// IS the reset credential, valid until the next successful password change.
// There is no separate token entity, no expiry, and no single-use
// invalidation beyond the next change. Weaker than a time-boxed token;
// known and accepted.
type ResetService struct {
	accounts Repository
	hasher   PasswordHasher
	sender   RecoverySender
	logger   *slog.Logger
}

// NewResetService creates a new ResetService with the default logger.
func NewResetService(accounts Repository, hasher PasswordHasher, sender RecoverySender) (*ResetService, error) {
	return NewResetServiceWithLogger(accounts, hasher, sender, slog.Default())
}

// NewResetServiceWithLogger creates a new ResetService with an explicit logger.
func NewResetServiceWithLogger(accounts Repository, hasher PasswordHasher, sender RecoverySender, logger *slog.Logger) (*ResetService, error) {
	if accounts == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("account repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if sender == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("recovery sender is required")
	}
	if logger == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("logger is required")
	}
	return &ResetService{accounts: accounts, hasher: hasher, sender: sender, logger: logger}, nil
}

// RequestReset replaces the account's password with a freshly generated
// temporary one and mails the plaintext to the account's address.
//
// The new hash is persisted BEFORE delivery is confirmed: availability of
// the new credential takes priority over delivery confirmation. A failed
// send therefore leaves the account holding a password nobody knows; the
// failure is logged prominently and surfaced as ErrDeliveryFailed, but the
// credential change is not rolled back.
func (s *ResetService) RequestReset(ctx context.Context, email string) error {
	if verr := ValidateEmail(email); verr != nil {
		return verr
	}

	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}

	tempPassword, err := GenerateTempPassword()
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate temporary password").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(tempPassword)
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "hash temporary password").
			Wrap(err)
	}

	if err := s.accounts.UpdatePassword(ctx, acct.ID, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "persist temporary password").
			Wrap(err)
	}

	if err := s.sender.SendRecovery(ctx, acct.Email, tempPassword); err != nil {
		// The account now holds a credential its owner never received.
		// Operationally serious: log with full context before surfacing.
		errutil.LogError(s.logger, "recovery mail dispatch failed after password overwrite", err)
		return oops.Code("MAIL_DELIVERY_FAILED").
			With("email", acct.Email).
			Wrap(ErrDeliveryFailed)
	}

	return nil
}

// ChangePassword verifies the current password and installs a new one.
// A wrong current password leaves the stored hash unchanged.
func (s *ResetService) ChangePassword(ctx context.Context, email, currentPassword, newPassword string) error {
	if verr := ValidatePasswordChange(currentPassword, newPassword); verr != nil {
		return verr
	}

	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return oops.Code("RESET_CHANGE_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}

	valid, err := s.hasher.Verify(currentPassword, acct.PasswordHash)
	if err != nil {
		return oops.Code("RESET_CHANGE_FAILED").
			With("operation", "verify current password").
			Wrap(err)
	}
	if !valid {
		return oops.Code("ACCOUNT_INVALID_CURRENT_PASSWORD").Wrap(ErrInvalidCurrentPassword)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_CHANGE_FAILED").
			With("operation", "hash new password").
			Wrap(err)
	}

	if err := s.accounts.UpdatePassword(ctx, acct.ID, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return oops.Code("RESET_CHANGE_FAILED").
			With("operation", "persist new password").
			Wrap(err)
	}

	return nil
}
