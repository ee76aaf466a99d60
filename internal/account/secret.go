// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Userforge Contributors

package account

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/samber/oops"
)

// TempPasswordBytes is the entropy of a generated temporary password.
// 8 bytes renders to 16 hex characters, which also clears the regular
// password-length policy so a reset user can immediately change it.
const TempPasswordBytes = 8

// GenerateTempPassword creates a cryptographically random temporary password
// rendered as lowercase hex. Each call is independent; there is no seed to
// reuse.
func GenerateTempPassword() (string, error) {
	buf := make([]byte, TempPasswordBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("ACCOUNT_SECRET_GENERATE_FAILED").Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}
