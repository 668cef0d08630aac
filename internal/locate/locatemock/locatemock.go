// Package locatemock has mocks for the locate package interfaces.
package locatemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/luamill/luamill/internal/model"
)

// MockLocator is a mock implementation of locate.Locator.
type MockLocator struct {
	mock.Mock
}

// Locate mock.
func (m *MockLocator) Locate(ctx context.Context) (*model.ReleaseRef, error) {
	args := m.Called(ctx)
	ref, _ := args.Get(0).(*model.ReleaseRef)
	return ref, args.Error(1)
}

// MockFetcher is a mock implementation of locate.Fetcher.
type MockFetcher struct {
	mock.Mock
}

// Fetch mock.
func (m *MockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

// MockResolver is a mock implementation of locate.Resolver.
type MockResolver struct {
	mock.Mock
}

// Resolve mock.
func (m *MockResolver) Resolve(url string, filename string) (model.ReleaseRef, error) {
	args := m.Called(url, filename)
	ref, _ := args.Get(0).(model.ReleaseRef)
	return ref, args.Error(1)
}
