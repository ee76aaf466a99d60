// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Userforge Contributors

// Package mail dispatches outbound notifications for userforge.
package mail

import (
	"context"
	"fmt"
	"html"
)

// Sender delivers an HTML message to an address.
type Sender interface {
	Send(ctx context.Context, toAddress, subject, htmlBody string) error
}

// Recovery mail content.
const recoverySubject = "Password Recovery"

// ComposeRecovery builds the HTML body for a recovery notification. The
// plaintext temporary password is embedded deliberately: it has to reach
// the user out-of-band.
func ComposeRecovery(tempPassword string) string {
	return fmt.Sprintf(
		"<p>Your new temporary password is: <strong>%s</strong></p>"+
			"<p>Please log in and change your password.</p>",
		html.EscapeString(tempPassword),
	)
}

// RecoveryMailer adapts a Sender to the account package's RecoverySender
// contract.
type RecoveryMailer struct {
	sender Sender
}

// NewRecoveryMailer creates a RecoveryMailer over the given sender.
func NewRecoveryMailer(sender Sender) *RecoveryMailer {
	return &RecoveryMailer{sender: sender}
}

// SendRecovery composes and dispatches a recovery notification.
func (m *RecoveryMailer) SendRecovery(ctx context.Context, toAddress, tempPassword string) error {
	return m.sender.Send(ctx, toAddress, recoverySubject, ComposeRecovery(tempPassword))
}
