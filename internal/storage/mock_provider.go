package storage

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockBlobStore is a mock implementation of the BlobStore interface for testing.
type MockBlobStore struct {
	mock.Mock
}

// GetObject is the mock implementation of the GetObject method.
func (m *MockBlobStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1) //nolint:wrapcheck
}

// PutObject is the mock implementation of the PutObject method. The reader is drained
// and passed to the expectation as a string so tests can match on content.
func (m *MockBlobStore) PutObject(ctx context.Context, key string, contentType string, data io.Reader) (string, error) {
	body, err := io.ReadAll(data)
	if err != nil {
		return "", err //nolint:wrapcheck
	}
	args := m.Called(ctx, key, contentType, string(body))
	return args.String(0), args.Error(1) //nolint:wrapcheck
}
