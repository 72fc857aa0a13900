package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"payrecon/internal/domain"
)

// MockResultRepo is a mock implementation of port.ResultRepository.
type MockResultRepo struct {
	mock.Mock
}

func (m *MockResultRepo) Create(ctx context.Context, result *domain.ReconciliationResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockResultRepo) CreateBatch(ctx context.Context, results []domain.ReconciliationResult) error {
	args := m.Called(ctx, results)
	return args.Error(0)
}

func (m *MockResultRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReconciliationResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReconciliationResult), args.Error(1)
}

func (m *MockResultRepo) ListByRun(ctx context.Context, runID uuid.UUID, offset, limit int) ([]domain.ReconciliationResult, int, error) {
	args := m.Called(ctx, runID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.ReconciliationResult), args.Int(1), args.Error(2)
}

func (m *MockResultRepo) ListByStatus(ctx context.Context, runID uuid.UUID, status domain.MatchStatus) ([]domain.ReconciliationResult, error) {
	args := m.Called(ctx, runID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ReconciliationResult), args.Error(1)
}

func (m *MockResultRepo) SearchByInvoice(ctx context.Context, invoiceNumber string) ([]domain.ReconciliationResult, error) {
	args := m.Called(ctx, invoiceNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ReconciliationResult), args.Error(1)
}

func (m *MockResultRepo) UpdateWriteBack(ctx context.Context, id uuid.UUID, state domain.WriteBackState, writeErr string) error {
	args := m.Called(ctx, id, state, writeErr)
	return args.Error(0)
}

func (m *MockResultRepo) DeleteByRun(ctx context.Context, runID uuid.UUID) error {
	args := m.Called(ctx, runID)
	return args.Error(0)
}

func (m *MockResultRepo) DeleteAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
