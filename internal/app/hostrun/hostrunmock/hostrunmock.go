// Package hostrunmock has mocks for the hostrun service dependencies.
package hostrunmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/luamill/luamill/internal/model"
)

// MockMachine is a mock implementation of hostrun.Machine.
type MockMachine struct {
	mock.Mock
}

// Run mock.
func (m *MockMachine) Run(ctx context.Context, spec model.MachineSpec) (int64, error) {
	args := m.Called(ctx, spec)
	code, _ := args.Get(0).(int64)
	return code, args.Error(1)
}

// MockWorkspace is a mock implementation of hostrun.Workspace.
type MockWorkspace struct {
	mock.Mock
}

// Clean mock.
func (m *MockWorkspace) Clean() error {
	args := m.Called()
	return args.Error(0)
}

// MockPacker is a mock implementation of hostrun.Packer.
type MockPacker struct {
	mock.Mock
}

// PackAll mock.
func (m *MockPacker) PackAll(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	archives, _ := args.Get(0).([]string)
	return archives, args.Error(1)
}
