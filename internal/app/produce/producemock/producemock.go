// Package producemock has mocks for the produce service dependencies.
package producemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/luamill/luamill/internal/locate"
	"github.com/luamill/luamill/internal/model"
)

// MockLocatorFactory is a mock implementation of produce.LocatorFactory.
type MockLocatorFactory struct {
	mock.Mock
}

// LocatorFor mock.
func (m *MockLocatorFactory) LocatorFor(p model.Project) (locate.Locator, error) {
	args := m.Called(p)
	loc, _ := args.Get(0).(locate.Locator)
	return loc, args.Error(1)
}

// MockWorkspace is a mock implementation of produce.Workspace.
type MockWorkspace struct {
	mock.Mock
}

// Clean mock.
func (m *MockWorkspace) Clean() error {
	args := m.Called()
	return args.Error(0)
}

// Materialize mock.
func (m *MockWorkspace) Materialize(ctx context.Context, ref model.ReleaseRef) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

// MockPacker is a mock implementation of produce.Packer.
type MockPacker struct {
	mock.Mock
}

// PackAll mock.
func (m *MockPacker) PackAll(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	archives, _ := args.Get(0).([]string)
	return archives, args.Error(1)
}
