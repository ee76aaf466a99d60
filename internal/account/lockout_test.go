// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Userforge Contributors

package account_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/userforge/userforge/internal/account"
)

func TestComputeLockoutTime(t *testing.T) {
	t.Run("below threshold returns nil", func(t *testing.T) {
		assert.Nil(t, account.ComputeLockoutTime(account.LockoutThreshold-1))
	})

	t.Run("at threshold returns future expiry", func(t *testing.T) {
		lockedUntil := account.ComputeLockoutTime(account.LockoutThreshold)
		require.NotNil(t, lockedUntil)
		assert.True(t, lockedUntil.After(time.Now()))
	})
}

func TestIsLockedOut(t *testing.T) {
	t.Run("nil means unlocked", func(t *testing.T) {
		assert.False(t, account.IsLockedOut(nil))
	})

	t.Run("future expiry means locked", func(t *testing.T) {
		future := time.Now().Add(time.Minute)
		assert.True(t, account.IsLockedOut(&future))
	})

	t.Run("past expiry means unlocked", func(t *testing.T) {
		past := time.Now().Add(-time.Minute)
		assert.False(t, account.IsLockedOut(&past))
	})
}
