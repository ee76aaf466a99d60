// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Userforge Contributors

// Package mocks provides testify mocks for the account package contracts.
package mocks

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/userforge/userforge/internal/account"
)

// mockConstructorTestingT is the subset of *testing.T the constructors need.
type mockConstructorTestingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockRepository is a mock implementation of account.Repository.
type MockRepository struct {
	mock.Mock
}

// NewMockRepository creates a MockRepository that asserts its expectations
// during test cleanup.
func NewMockRepository(t mockConstructorTestingT) *MockRepository {
	m := &MockRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRepository) Create(ctx context.Context, acct *account.Account) error {
	args := m.Called(ctx, acct)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	args := m.Called(ctx, id)
	if acct, ok := args.Get(0).(*account.Account); ok {
		return acct, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) GetByUsername(ctx context.Context, username string) (*account.Account, error) {
	args := m.Called(ctx, username)
	if acct, ok := args.Get(0).(*account.Account); ok {
		return acct, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	args := m.Called(ctx, email)
	if acct, ok := args.Get(0).(*account.Account); ok {
		return acct, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) List(ctx context.Context) ([]*account.Account, error) {
	args := m.Called(ctx)
	if accts, ok := args.Get(0).([]*account.Account); ok {
		return accts, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, acct *account.Account) error {
	args := m.Called(ctx, acct)
	return args.Error(0)
}

func (m *MockRepository) Patch(ctx context.Context, id ulid.ULID, patch account.Patch) (*account.Account, error) {
	args := m.Called(ctx, id, patch)
	if acct, ok := args.Get(0).(*account.Account); ok {
		return acct, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, id ulid.ULID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPasswordHasher is a mock implementation of account.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher that asserts its
// expectations during test cleanup.
func NewMockPasswordHasher(t mockConstructorTestingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	args := m.Called(hash)
	return args.Bool(0)
}

// MockRecoverySender is a mock implementation of account.RecoverySender.
type MockRecoverySender struct {
	mock.Mock
}

// NewMockRecoverySender creates a MockRecoverySender that asserts its
// expectations during test cleanup.
func NewMockRecoverySender(t mockConstructorTestingT) *MockRecoverySender {
	m := &MockRecoverySender{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRecoverySender) SendRecovery(ctx context.Context, toAddress, tempPassword string) error {
	args := m.Called(ctx, toAddress, tempPassword)
	return args.Error(0)
}

// Compile-time interface checks.
var (
	_ account.Repository     = (*MockRepository)(nil)
	_ account.PasswordHasher = (*MockPasswordHasher)(nil)
	_ account.RecoverySender = (*MockRecoverySender)(nil)
)
