// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Userforge Contributors

package account_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/userforge/userforge/internal/account"
)

func strPtr(s string) *string { return &s }

func fieldNames(verr *account.ValidationError) []string {
	names := make([]string, len(verr.Fields))
	for i, f := range verr.Fields {
		names[i] = f.Field
	}
	return names
}

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name          string
		username      string
		email         string
		password      string
		recoveryEmail *string
		wantFields    []string
	}{
		{
			name:     "valid input",
			username: "alice01",
			email:    "alice@example.com",
			password: "longenough1",
		},
		{
			name:          "valid with recovery email",
			username:      "alice01",
			email:         "alice@example.com",
			password:      "longenough1",
			recoveryEmail: strPtr("backup@example.com"),
		},
		{
			name:       "username too short",
			username:   "bob",
			email:      "bob@example.com",
			password:   "longenough1",
			wantFields: []string{"username"},
		},
		{
			name:       "invalid email",
			username:   "alice01",
			email:      "not-an-email",
			password:   "longenough1",
			wantFields: []string{"email"},
		},
		{
			name:       "email with display name rejected",
			username:   "alice01",
			email:      "Alice <alice@example.com>",
			password:   "longenough1",
			wantFields: []string{"email"},
		},
		{
			name:       "password too short",
			username:   "alice01",
			email:      "alice@example.com",
			password:   "short",
			wantFields: []string{"password"},
		},
		{
			name:          "invalid recovery email",
			username:      "alice01",
			email:         "alice@example.com",
			password:      "longenough1",
			recoveryEmail: strPtr("nope"),
			wantFields:    []string{"recovery_email"},
		},
		{
			name:       "multiple failures reported together",
			username:   "ab",
			email:      "bad",
			password:   "short",
			wantFields: []string{"username", "email", "password"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := account.ValidateRegistration(tt.username, tt.email, tt.password, tt.recoveryEmail)
			if len(tt.wantFields) == 0 {
				assert.Nil(t, verr)
				return
			}
			require.NotNil(t, verr)
			assert.ElementsMatch(t, tt.wantFields, fieldNames(verr))
		})
	}
}

func TestValidateProfilePatch(t *testing.T) {
	t.Run("all fields absent passes", func(t *testing.T) {
		assert.Nil(t, account.ValidateProfilePatch(nil, nil, nil, nil))
	})

	t.Run("supplied fields are checked", func(t *testing.T) {
		verr := account.ValidateProfilePatch(strPtr("ab"), nil, nil, nil)
		require.NotNil(t, verr)
		assert.Equal(t, []string{"username"}, fieldNames(verr))
	})

	t.Run("valid supplied fields pass", func(t *testing.T) {
		verr := account.ValidateProfilePatch(nil, strPtr("new@example.com"), strPtr("longenough1"), nil)
		assert.Nil(t, verr)
	})
}

func TestValidatePasswordChange(t *testing.T) {
	t.Run("valid pair passes", func(t *testing.T) {
		assert.Nil(t, account.ValidatePasswordChange("oldpassword1", "newpassword1"))
	})

	t.Run("short current password rejected", func(t *testing.T) {
		verr := account.ValidatePasswordChange("short", "newpassword1")
		require.NotNil(t, verr)
		assert.Equal(t, []string{"currentPassword"}, fieldNames(verr))
	})

	t.Run("short new password rejected", func(t *testing.T) {
		verr := account.ValidatePasswordChange("oldpassword1", "short")
		require.NotNil(t, verr)
		assert.Equal(t, []string{"newPassword"}, fieldNames(verr))
	})
}

func TestValidateEmail(t *testing.T) {
	t.Run("valid email passes", func(t *testing.T) {
		assert.Nil(t, account.ValidateEmail("alice@example.com"))
	})

	t.Run("invalid email rejected", func(t *testing.T) {
		verr := account.ValidateEmail("nope")
		require.NotNil(t, verr)
		assert.Equal(t, []string{"email"}, fieldNames(verr))
	})
}

func TestValidationErrorMessage(t *testing.T) {
	verr := &account.ValidationError{Fields: []account.FieldError{
		{Field: "username", Message: "is required"},
		{Field: "email", Message: "invalid email format"},
	}}
	assert.Equal(t, "validation failed: username: is required; email: invalid email format", verr.Error())
}
