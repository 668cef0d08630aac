// Package storagemock has mocks for the storage package interfaces.
package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/luamill/luamill/internal/model"
)

// MockRunRepository is a mock implementation of storage.RunRepository.
type MockRunRepository struct {
	mock.Mock
}

// CreateRun mock.
func (m *MockRunRepository) CreateRun(ctx context.Context, r model.Run) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

// FinishRun mock.
func (m *MockRunRepository) FinishRun(ctx context.Context, r model.Run) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

// GetRun mock.
func (m *MockRunRepository) GetRun(ctx context.Context, id string) (*model.Run, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*model.Run)
	return r, args.Error(1)
}

// LatestRun mock.
func (m *MockRunRepository) LatestRun(ctx context.Context) (*model.Run, error) {
	args := m.Called(ctx)
	r, _ := args.Get(0).(*model.Run)
	return r, args.Error(1)
}
