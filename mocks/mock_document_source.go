package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"payrecon/internal/port"
)

// MockDocumentSource is a mock implementation of port.DocumentSource.
type MockDocumentSource struct {
	mock.Mock
}

func (m *MockDocumentSource) List(ctx context.Context) ([]port.AdviceDocument, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]port.AdviceDocument), args.Error(1)
}
