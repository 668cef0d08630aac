// Package fetchmock has mocks for the fetch package interfaces.
package fetchmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/luamill/luamill/internal/fetch"
)

// MockFetcher is a mock implementation of fetch.Fetcher.
type MockFetcher struct {
	mock.Mock
}

// Fetch mock.
func (m *MockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

// MockExtractor is a mock implementation of fetch.Extractor.
type MockExtractor struct {
	mock.Mock
}

// Extract mock.
func (m *MockExtractor) Extract(ctx context.Context, format fetch.ArchiveFormat, archivePath, destDir string) error {
	args := m.Called(ctx, format, archivePath, destDir)
	return args.Error(0)
}
