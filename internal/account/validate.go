// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Userforge Contributors

package account

import (
	"fmt"
	"net/mail"
	"strings"
)

// Input schema constraints.
const (
	MinUsernameLength = 6
	MinPasswordLength = 10
)

// FieldError describes a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field-level failures so callers can render
// per-field feedback. It is never a single opaque string.
type ValidationError struct {
	Fields []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// constraint checks a field value and returns a message on failure, "" on success.
type constraint func(value string) string

func minLen(n int) constraint {
	return func(value string) string {
		if len(value) < n {
			return fmt.Sprintf("must be at least %d characters", n)
		}
		return ""
	}
}

func validEmail(value string) string {
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return "invalid email format"
	}
	return ""
}

// fieldRule binds a field name to its constraint list.
type fieldRule struct {
	field       string
	required    bool
	constraints []constraint
}

// The schemas below are the single source of truth for input shape. The
// registration, update, and patch paths all evaluate the same rules; patch
// simply passes nil for absent fields.
var accountSchema = []fieldRule{
	{field: "username", required: true, constraints: []constraint{minLen(MinUsernameLength)}},
	{field: "email", required: true, constraints: []constraint{validEmail}},
	{field: "password", required: true, constraints: []constraint{minLen(MinPasswordLength)}},
	{field: "recovery_email", required: false, constraints: []constraint{validEmail}},
}

var passwordChangeSchema = []fieldRule{
	{field: "currentPassword", required: true, constraints: []constraint{minLen(MinPasswordLength)}},
	{field: "newPassword", required: true, constraints: []constraint{minLen(MinPasswordLength)}},
}

// evaluate runs a schema over field values. A nil value means the field was
// absent from the input; required rules fail on it, optional rules skip it.
func evaluate(schema []fieldRule, values map[string]*string) *ValidationError {
	var fields []FieldError
	for _, rule := range schema {
		value, present := values[rule.field]
		if value == nil || !present {
			if rule.required {
				fields = append(fields, FieldError{Field: rule.field, Message: "is required"})
			}
			continue
		}
		for _, check := range rule.constraints {
			if msg := check(*value); msg != "" {
				fields = append(fields, FieldError{Field: rule.field, Message: msg})
				break
			}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// ValidateRegistration checks a full registration payload.
func ValidateRegistration(username, email, password string, recoveryEmail *string) *ValidationError {
	return evaluate(accountSchema, map[string]*string{
		"username":       &username,
		"email":          &email,
		"password":       &password,
		"recovery_email": recoveryEmail,
	})
}

// ValidateProfilePatch checks a partial payload against the registration
// schema. Only supplied fields are validated.
func ValidateProfilePatch(username, email, password, recoveryEmail *string) *ValidationError {
	patchSchema := make([]fieldRule, len(accountSchema))
	copy(patchSchema, accountSchema)
	for i := range patchSchema {
		patchSchema[i].required = false
	}
	return evaluate(patchSchema, map[string]*string{
		"username":       username,
		"email":          email,
		"password":       password,
		"recovery_email": recoveryEmail,
	})
}

// ValidatePasswordChange checks a change-password payload. The current
// password is held to the same length floor as every other password input.
func ValidatePasswordChange(currentPassword, newPassword string) *ValidationError {
	return evaluate(passwordChangeSchema, map[string]*string{
		"currentPassword": &currentPassword,
		"newPassword":     &newPassword,
	})
}

// ValidateEmail checks a bare email value, as supplied to the reset request.
func ValidateEmail(email string) *ValidationError {
	if msg := validEmail(email); msg != "" {
		return &ValidationError{Fields: []FieldError{{Field: "email", Message: msg}}}
	}
	return nil
}
