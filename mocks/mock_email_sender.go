package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"payrecon/internal/domain"
)

// MockEmailSender is a mock implementation of port.EmailSender.
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendRunSummary(ctx context.Context, recipients []string, summary *domain.RunSummary) error {
	args := m.Called(ctx, recipients, summary)
	return args.Error(0)
}
