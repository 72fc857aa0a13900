package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"payrecon/internal/domain"
)

// MockWriteBackLedger is a mock implementation of port.WriteBackLedger.
type MockWriteBackLedger struct {
	mock.Mock
}

func (m *MockWriteBackLedger) Get(ctx context.Context, adviceID uuid.UUID, normalizedKey string) (*domain.WriteBackRecord, error) {
	args := m.Called(ctx, adviceID, normalizedKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WriteBackRecord), args.Error(1)
}

func (m *MockWriteBackLedger) Begin(ctx context.Context, rec *domain.WriteBackRecord) (*domain.WriteBackRecord, error) {
	args := m.Called(ctx, rec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WriteBackRecord), args.Error(1)
}

func (m *MockWriteBackLedger) MarkWritten(ctx context.Context, adviceID uuid.UUID, normalizedKey string) error {
	args := m.Called(ctx, adviceID, normalizedKey)
	return args.Error(0)
}

func (m *MockWriteBackLedger) MarkFailed(ctx context.Context, adviceID uuid.UUID, normalizedKey string, attempts int, lastErr string) error {
	args := m.Called(ctx, adviceID, normalizedKey, attempts, lastErr)
	return args.Error(0)
}

func (m *MockWriteBackLedger) ListByState(ctx context.Context, state domain.WriteBackState) ([]domain.WriteBackRecord, error) {
	args := m.Called(ctx, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WriteBackRecord), args.Error(1)
}
