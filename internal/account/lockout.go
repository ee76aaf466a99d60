// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Userforge Contributors

package account

import "time"

// Lockout configuration.
const (
	// LockoutDuration is the time an account is locked out after too many failures.
	LockoutDuration = 15 * time.Minute

	// LockoutThreshold is the number of failures that triggers a lockout.
	LockoutThreshold = 7
)

// ComputeLockoutTime returns the lockout expiry for the given failure count,
// or nil if the threshold has not been reached.
func ComputeLockoutTime(failures int) *time.Time {
	if failures < LockoutThreshold {
		return nil
	}
	t := time.Now().Add(LockoutDuration)
	return &t
}

// IsLockedOut returns true if lockedUntil is set and still in the future.
func IsLockedOut(lockedUntil *time.Time) bool {
	return lockedUntil != nil && time.Now().Before(*lockedUntil)
}
