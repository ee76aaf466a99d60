// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Userforge Contributors

package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/oklog/ulid/v2"

	"github.com/userforge/userforge/internal/account"
	"github.com/userforge/userforge/internal/account/mocks"
	"github.com/userforge/userforge/internal/httpapi"
)

// envelope mirrors the wire shape for assertions.
type envelope struct {
	Status   int             `json:"status"`
	Message  string          `json:"message"`
	Response json.RawMessage `json:"response"`
}

type fixture struct {
	handler http.Handler
	repo    *mocks.MockRepository
	hasher  *mocks.MockPasswordHasher
	sender  *mocks.MockRecoverySender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := mocks.NewMockRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)
	sender := mocks.NewMockRecoverySender(t)

	accounts, err := account.NewService(repo, hasher)
	require.NoError(t, err)
	resets, err := account.NewResetService(repo, hasher, sender)
	require.NoError(t, err)

	srv, err := httpapi.NewServer("127.0.0.1:0", accounts, resets)
	require.NoError(t, err)

	return &fixture{handler: srv.Handler(), repo: repo, hasher: hasher, sender: sender}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return rec, env
}

func storedAccount() *account.Account {
	now := time.Now().UTC()
	return &account.Account{
		ID:           ulid.Make(),
		Username:     "alice01",
		Email:        "alice@example.com",
		PasswordHash: "$argon2id$hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestRegisterEndpoint(t *testing.T) {
	t.Run("creates account and returns 201", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("GetByUsername", mock.Anything, "alice01").Return(nil, account.ErrNotFound)
		f.repo.On("GetByEmail", mock.Anything, "alice@example.com").Return(nil, account.ErrNotFound)
		f.hasher.On("Hash", "longenough1").Return("$argon2id$hashed", nil)
		f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)

		rec, env := f.do(t, http.MethodPost, "/users/register",
			`{"username":"alice01","email":"alice@example.com","password":"longenough1"}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, http.StatusCreated, env.Status)
		assert.Equal(t, "User created successfully", env.Message)
		assert.Contains(t, string(env.Response), `"username":"alice01"`)
		assert.NotContains(t, string(env.Response), "argon2id")
		assert.NotContains(t, rec.Body.String(), "password")
	})

	t.Run("schema failure returns field errors", func(t *testing.T) {
		f := newFixture(t)

		rec, env := f.do(t, http.MethodPost, "/users/register",
			`{"username":"ab","email":"bad","password":"short"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid data", env.Message)

		var fields []account.FieldError
		require.NoError(t, json.Unmarshal(env.Response, &fields))
		assert.Len(t, fields, 3)
	})

	t.Run("duplicate username returns 400", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("GetByUsername", mock.Anything, "alice01").Return(storedAccount(), nil)

		rec, env := f.do(t, http.MethodPost, "/users/register",
			`{"username":"alice01","email":"alice@example.com","password":"longenough1"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Username already in use", env.Message)
	})

	t.Run("malformed body is distinguished from schema failures", func(t *testing.T) {
		f := newFixture(t)

		rec, env := f.do(t, http.MethodPost, "/users/register", `{"username": oops`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Malformed JSON request body", env.Message)
	})
}

func TestLoginEndpoint(t *testing.T) {
	t.Run("valid credentials return the profile", func(t *testing.T) {
		f := newFixture(t)
		acct := storedAccount()
		f.repo.On("GetByEmail", mock.Anything, acct.Email).Return(acct, nil)
		f.hasher.On("Verify", "longenough1", acct.PasswordHash).Return(true, nil)
		f.hasher.On("NeedsUpgrade", acct.PasswordHash).Return(false)
		f.repo.On("Update", mock.Anything, acct).Return(nil)

		rec, env := f.do(t, http.MethodPost, "/users/login",
			`{"email":"alice@example.com","password":"longenough1"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Login successful", env.Message)
	})

	t.Run("unknown email returns 404", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, account.ErrNotFound)
		f.hasher.On("Verify", "whatever123", mock.Anything).Return(false, nil)

		rec, env := f.do(t, http.MethodPost, "/users/login",
			`{"email":"ghost@example.com","password":"whatever123"}`)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "User not found", env.Message)
	})

	t.Run("wrong password returns 401", func(t *testing.T) {
		f := newFixture(t)
		acct := storedAccount()
		f.repo.On("GetByEmail", mock.Anything, acct.Email).Return(acct, nil)
		f.hasher.On("Verify", "wrongpassword", acct.PasswordHash).Return(false, nil)
		f.repo.On("Update", mock.Anything, acct).Return(nil)

		rec, env := f.do(t, http.MethodPost, "/users/login",
			`{"email":"alice@example.com","password":"wrongpassword"}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid password", env.Message)
	})

	t.Run("locked account returns 423", func(t *testing.T) {
		f := newFixture(t)
		acct := storedAccount()
		lockedUntil := time.Now().Add(time.Minute)
		acct.LockedUntil = &lockedUntil
		f.repo.On("GetByEmail", mock.Anything, acct.Email).Return(acct, nil)
		f.hasher.On("Verify", "longenough1", acct.PasswordHash).Return(true, nil)

		rec, env := f.do(t, http.MethodPost, "/users/login",
			`{"email":"alice@example.com","password":"longenough1"}`)

		assert.Equal(t, http.StatusLocked, rec.Code)
		assert.Equal(t, "Account temporarily locked", env.Message)
	})
}

func TestGetUserEndpoint(t *testing.T) {
	t.Run("returns the profile", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("GetByUsername", mock.Anything, "alice01").Return(storedAccount(), nil)

		rec, env := f.do(t, http.MethodGet, "/users/alice01", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "User found", env.Message)
		assert.Contains(t, string(env.Response), `"email":"alice@example.com"`)
	})

	t.Run("missing user returns 404", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("GetByUsername", mock.Anything, "ghost").Return(nil, account.ErrNotFound)

		rec, env := f.do(t, http.MethodGet, "/users/ghost", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "User not found", env.Message)
	})
}

func TestListUsersEndpoint(t *testing.T) {
	t.Run("returns all profiles", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("List", mock.Anything).Return([]*account.Account{storedAccount()}, nil)

		rec, env := f.do(t, http.MethodGet, "/users", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Users found", env.Message)

		var list []map[string]any
		require.NoError(t, json.Unmarshal(env.Response, &list))
		assert.Len(t, list, 1)
	})

	t.Run("empty store reports its own 404", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("List", mock.Anything).Return([]*account.Account{}, nil)

		rec, env := f.do(t, http.MethodGet, "/users", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "No users registered", env.Message)
		assert.Equal(t, "[]", string(env.Response))
	})
}

func TestUpdateUserEndpoint(t *testing.T) {
	t.Run("replaces the profile", func(t *testing.T) {
		f := newFixture(t)
		acct := storedAccount()
		f.repo.On("GetByUsername", mock.Anything, "alice01").Return(acct, nil)
		f.hasher.On("Hash", "longenough2").Return("$argon2id$rehashed", nil)
		f.repo.On("Update", mock.Anything, acct).Return(nil)

		rec, env := f.do(t, http.MethodPut, "/users/alice01",
			`{"username":"alice02","email":"alice2@example.com","password":"longenough2"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "User updated successfully", env.Message)
		assert.Contains(t, string(env.Response), `"username":"alice02"`)
	})

	t.Run("partial body fails the full schema", func(t *testing.T) {
		f := newFixture(t)

		rec, env := f.do(t, http.MethodPut, "/users/alice01", `{"username":"alice02"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid data", env.Message)
	})
}

func TestPatchUserEndpoint(t *testing.T) {
	t.Run("merges supplied fields", func(t *testing.T) {
		f := newFixture(t)
		acct := storedAccount()
		updated := storedAccount()
		updated.Email = "new@example.com"

		f.repo.On("GetByUsername", mock.Anything, "alice01").Return(acct, nil)
		f.repo.On("Patch", mock.Anything, acct.ID, mock.Anything).Return(updated, nil)

		rec, env := f.do(t, http.MethodPatch, "/users/alice01", `{"email":"new@example.com"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, string(env.Response), `"email":"new@example.com"`)
	})

	t.Run("empty body returns 400", func(t *testing.T) {
		f := newFixture(t)

		rec, env := f.do(t, http.MethodPatch, "/users/alice01", `{}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid data", env.Message)
	})
}

func TestDeleteUserEndpoint(t *testing.T) {
	t.Run("deletes the account", func(t *testing.T) {
		f := newFixture(t)
		acct := storedAccount()
		f.repo.On("GetByUsername", mock.Anything, "alice01").Return(acct, nil)
		f.repo.On("Delete", mock.Anything, acct.ID).Return(nil)

		rec, env := f.do(t, http.MethodDelete, "/users/alice01", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "User deleted successfully", env.Message)
		assert.Equal(t, "[]", string(env.Response))
	})

	t.Run("repeat delete returns 404", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("GetByUsername", mock.Anything, "alice01").Return(nil, account.ErrNotFound)

		rec, env := f.do(t, http.MethodDelete, "/users/alice01", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "User not found", env.Message)
	})
}

func TestRequestResetEndpoint(t *testing.T) {
	t.Run("mails a temporary password", func(t *testing.T) {
		f := newFixture(t)
		acct := storedAccount()
		f.repo.On("GetByEmail", mock.Anything, acct.Email).Return(acct, nil)
		f.hasher.On("Hash", mock.AnythingOfType("string")).Return("$argon2id$temp", nil)
		f.repo.On("UpdatePassword", mock.Anything, acct.ID, "$argon2id$temp").Return(nil)
		f.sender.On("SendRecovery", mock.Anything, acct.Email, mock.AnythingOfType("string")).Return(nil)

		rec, env := f.do(t, http.MethodPost, "/users/request-password-reset",
			`{"email":"alice@example.com"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Temporary password sent to email", env.Message)
		// The secret travels out-of-band only.
		assert.NotContains(t, rec.Body.String(), "$argon2id$temp")
	})

	t.Run("delivery failure returns 500", func(t *testing.T) {
		f := newFixture(t)
		acct := storedAccount()
		f.repo.On("GetByEmail", mock.Anything, acct.Email).Return(acct, nil)
		f.hasher.On("Hash", mock.AnythingOfType("string")).Return("$argon2id$temp", nil)
		f.repo.On("UpdatePassword", mock.Anything, acct.ID, "$argon2id$temp").Return(nil)
		f.sender.On("SendRecovery", mock.Anything, acct.Email, mock.AnythingOfType("string")).
			Return(assert.AnError)

		rec, env := f.do(t, http.MethodPost, "/users/request-password-reset",
			`{"email":"alice@example.com"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Error sending recovery email", env.Message)
	})

	t.Run("unknown email returns 404", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, account.ErrNotFound)

		rec, env := f.do(t, http.MethodPost, "/users/request-password-reset",
			`{"email":"ghost@example.com"}`)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "User not found", env.Message)
	})
}

func TestChangePasswordEndpoint(t *testing.T) {
	t.Run("installs the new password", func(t *testing.T) {
		f := newFixture(t)
		acct := storedAccount()
		f.repo.On("GetByEmail", mock.Anything, acct.Email).Return(acct, nil)
		f.hasher.On("Verify", "oldpassword1", acct.PasswordHash).Return(true, nil)
		f.hasher.On("Hash", "newpassword1").Return("$argon2id$new", nil)
		f.repo.On("UpdatePassword", mock.Anything, acct.ID, "$argon2id$new").Return(nil)

		rec, env := f.do(t, http.MethodPut, "/users/reset-password/alice@example.com",
			`{"currentPassword":"oldpassword1","newPassword":"newpassword1"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Password updated successfully", env.Message)
	})

	t.Run("wrong current password returns 401", func(t *testing.T) {
		f := newFixture(t)
		acct := storedAccount()
		f.repo.On("GetByEmail", mock.Anything, acct.Email).Return(acct, nil)
		f.hasher.On("Verify", "wrongpassword", acct.PasswordHash).Return(false, nil)

		rec, env := f.do(t, http.MethodPut, "/users/reset-password/alice@example.com",
			`{"currentPassword":"wrongpassword","newPassword":"newpassword1"}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid current password", env.Message)
	})
}

func TestUnmatchedRoute(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "The route /nope does not exist on this server.", env.Message)
}

func TestNewServerValidation(t *testing.T) {
	t.Run("requires both services", func(t *testing.T) {
		_, err := httpapi.NewServer("127.0.0.1:0", nil, nil)
		assert.Error(t, err)
	})
}

func TestServerLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := mocks.NewMockRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)
	sender := mocks.NewMockRecoverySender(t)

	accounts, err := account.NewService(repo, hasher)
	require.NoError(t, err)
	resets, err := account.NewResetService(repo, hasher, sender)
	require.NoError(t, err)

	srv, err := httpapi.NewServer("127.0.0.1:0", accounts, resets)
	require.NoError(t, err)

	errCh, err := srv.Start()
	require.NoError(t, err)
	assert.NotEmpty(t, srv.Addr())

	// Double start is rejected while running
	_, err = srv.Start()
	assert.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	// The error channel closes on graceful stop
	select {
	case serveErr, ok := <-errCh:
		assert.False(t, ok, "unexpected serve error: %v", serveErr)
	case <-time.After(5 * time.Second):
		t.Fatal("error channel did not close after stop")
	}

	// Stop is idempotent
	assert.NoError(t, srv.Stop(ctx))
}
