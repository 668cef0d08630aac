// Package packmock has mocks for the pack package interfaces.
package packmock

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockUploader is a mock implementation of pack.Uploader.
type MockUploader struct {
	mock.Mock
}

// Upload mock.
func (m *MockUploader) Upload(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}
