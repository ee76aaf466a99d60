// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Userforge Contributors

package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/userforge/userforge/internal/account"
	"github.com/userforge/userforge/pkg/errutil"
)

// accountResponse is the client-facing projection of an account.
// The password hash never appears in any response body.
type accountResponse struct {
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	RecoveryEmail *string   `json:"recovery_email,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toAccountResponse(acct *account.Account) accountResponse {
	return accountResponse{
		Username:      acct.Username,
		Email:         acct.Email,
		RecoveryEmail: acct.RecoveryEmail,
		CreatedAt:     acct.CreatedAt,
		UpdatedAt:     acct.UpdatedAt,
	}
}

type registerRequest struct {
	Username      string  `json:"username"`
	Email         string  `json:"email"`
	Password      string  `json:"password"`
	RecoveryEmail *string `json:"recovery_email"`
}

type patchRequest struct {
	Username      *string `json:"username"`
	Email         *string `json:"email"`
	Password      *string `json:"password"`
	RecoveryEmail *string `json:"recovery_email"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// bind decodes the JSON body, distinguishing a malformed body from a
// schema failure: schema checks happen later in the services. On failure
// the 400 is written here and the original error returned so the handler
// stops; the error handler skips committed responses.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		if werr := respond(c, http.StatusBadRequest, "Malformed JSON request body", nil); werr != nil {
			return werr
		}
		return err
	}
	return nil
}

// requestContext bounds store and mail calls for a single request.
func (s *Server) requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), s.requestTimeout)
}

// fail renders a domain error through the envelope, logging server-side
// detail for 5xx responses.
func (s *Server) fail(c echo.Context, err error) error {
	status, message, response := mapDomainError(err)
	if status >= http.StatusInternalServerError {
		errutil.LogError(s.logger, "request failed", err)
	}
	return respond(c, status, message, response)
}

// handleRegister creates a new account --> POST /users/register
func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	acct, err := s.accounts.Register(ctx, account.RegisterInput{
		Username:      req.Username,
		Email:         req.Email,
		Password:      req.Password,
		RecoveryEmail: req.RecoveryEmail,
	})
	if err != nil {
		return s.fail(c, err)
	}

	if s.metrics != nil {
		s.metrics.RegistrationsTotal.Inc()
	}
	return respond(c, http.StatusCreated, "User created successfully", toAccountResponse(acct))
}

// handleLogin authenticates an email/password pair --> POST /users/login
func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	acct, err := s.accounts.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if s.metrics != nil {
			s.metrics.LoginsTotal.WithLabelValues("failure").Inc()
		}
		return s.fail(c, err)
	}

	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues("success").Inc()
	}
	return respond(c, http.StatusOK, "Login successful", toAccountResponse(acct))
}

// handleGetUser retrieves one account --> GET /users/:username
func (s *Server) handleGetUser(c echo.Context) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	acct, err := s.accounts.GetByUsername(ctx, c.Param("username"))
	if err != nil {
		return s.fail(c, err)
	}
	return respond(c, http.StatusOK, "User found", toAccountResponse(acct))
}

// handleListUsers retrieves every account --> GET /users
//
// "There exist zero users" reports 404 with its own message, so it stays
// distinguishable from a missing single account.
func (s *Server) handleListUsers(c echo.Context) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	accts, err := s.accounts.List(ctx)
	if err != nil {
		return s.fail(c, err)
	}
	if len(accts) == 0 {
		return respond(c, http.StatusNotFound, "No users registered", nil)
	}

	out := make([]accountResponse, len(accts))
	for i, acct := range accts {
		out[i] = toAccountResponse(acct)
	}
	return respond(c, http.StatusOK, "Users found", out)
}

// handleUpdateUser replaces a profile --> PUT /users/:username
func (s *Server) handleUpdateUser(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	acct, err := s.accounts.UpdateProfile(ctx, c.Param("username"), account.RegisterInput{
		Username:      req.Username,
		Email:         req.Email,
		Password:      req.Password,
		RecoveryEmail: req.RecoveryEmail,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return respond(c, http.StatusOK, "User updated successfully", toAccountResponse(acct))
}

// handlePatchUser merges a partial profile --> PATCH /users/:username
func (s *Server) handlePatchUser(c echo.Context) error {
	var req patchRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	acct, err := s.accounts.PatchProfile(ctx, c.Param("username"), account.PatchInput{
		Username:      req.Username,
		Email:         req.Email,
		Password:      req.Password,
		RecoveryEmail: req.RecoveryEmail,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return respond(c, http.StatusOK, "User updated successfully", toAccountResponse(acct))
}

// handleDeleteUser removes an account --> DELETE /users/:username
func (s *Server) handleDeleteUser(c echo.Context) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	if err := s.accounts.Delete(ctx, c.Param("username")); err != nil {
		return s.fail(c, err)
	}
	return respond(c, http.StatusOK, "User deleted successfully", nil)
}

// handleRequestReset overwrites the password with a mailed temporary one
// --> POST /users/request-password-reset
//
// The reply never carries the secret; it travels out-of-band only.
func (s *Server) handleRequestReset(c echo.Context) error {
	var req resetRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	if err := s.resets.RequestReset(ctx, req.Email); err != nil {
		if s.metrics != nil {
			s.metrics.MailDeliveriesTotal.WithLabelValues("failure").Inc()
		}
		return s.fail(c, err)
	}

	if s.metrics != nil {
		s.metrics.PasswordResetsTotal.WithLabelValues("request").Inc()
		s.metrics.MailDeliveriesTotal.WithLabelValues("success").Inc()
	}
	return respond(c, http.StatusOK, "Temporary password sent to email", nil)
}

// handleChangePassword installs a new password --> PUT /users/reset-password/:email
func (s *Server) handleChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	if err := s.resets.ChangePassword(ctx, c.Param("email"), req.CurrentPassword, req.NewPassword); err != nil {
		return s.fail(c, err)
	}

	if s.metrics != nil {
		s.metrics.PasswordResetsTotal.WithLabelValues("change").Inc()
	}
	return respond(c, http.StatusOK, "Password updated successfully", nil)
}
