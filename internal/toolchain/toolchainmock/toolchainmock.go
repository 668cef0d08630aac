// Package toolchainmock has mocks for the toolchain package interfaces.
package toolchainmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/luamill/luamill/internal/toolchain"
)

// MockBuilder is a mock implementation of toolchain.Builder.
type MockBuilder struct {
	mock.Mock
}

// Start mock.
func (m *MockBuilder) Start(ctx context.Context, label, workDir, buildScript string) (toolchain.Handle, error) {
	args := m.Called(ctx, label, workDir, buildScript)
	h, _ := args.Get(0).(toolchain.Handle)
	return h, args.Error(1)
}

// MockHandle is a mock implementation of toolchain.Handle.
type MockHandle struct {
	mock.Mock
}

// Await mock.
func (m *MockHandle) Await() error {
	args := m.Called()
	return args.Error(0)
}
