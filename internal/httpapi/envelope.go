// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Userforge Contributors

package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/userforge/userforge/internal/account"
)

// Envelope is the uniform response wrapper carried by every reply,
// success and failure alike. The shape is part of the API contract.
type Envelope struct {
	Status   int    `json:"status"`
	Message  string `json:"message"`
	Response any    `json:"response"`
}

// respond writes an enveloped JSON reply. A nil response renders as an
// empty list, matching the contract for bodyless results.
func respond(c echo.Context, status int, message string, response any) error {
	if response == nil {
		response = []any{}
	}
	//nolint:wrapcheck // echo handles its own JSON encoding errors
	return c.JSON(status, Envelope{Status: status, Message: message, Response: response})
}

// mapDomainError translates a service failure into an HTTP status, a
// client-safe message, and an optional structured response body. Raw store
// and transport error strings never reach the client.
func mapDomainError(err error) (status int, message string, response any) {
	var verr *account.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "Invalid data", verr.Fields
	case errors.Is(err, account.ErrUsernameTaken):
		return http.StatusBadRequest, "Username already in use", nil
	case errors.Is(err, account.ErrEmailTaken):
		return http.StatusBadRequest, "Email already in use", nil
	case errors.Is(err, account.ErrNotFound):
		return http.StatusNotFound, "User not found", nil
	case errors.Is(err, account.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid password", nil
	case errors.Is(err, account.ErrInvalidCurrentPassword):
		return http.StatusUnauthorized, "Invalid current password", nil
	case errors.Is(err, account.ErrLocked):
		return http.StatusLocked, "Account temporarily locked", nil
	case errors.Is(err, account.ErrDeliveryFailed):
		return http.StatusInternalServerError, "Error sending recovery email", nil
	}
	return http.StatusInternalServerError, "Internal server error", nil
}
