package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"payrecon/internal/domain"
)

// MockAdviceRepo is a mock implementation of port.AdviceRepository.
type MockAdviceRepo struct {
	mock.Mock
}

func (m *MockAdviceRepo) Create(ctx context.Context, advice *domain.PaymentAdvice) error {
	args := m.Called(ctx, advice)
	return args.Error(0)
}

func (m *MockAdviceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentAdvice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentAdvice), args.Error(1)
}

func (m *MockAdviceRepo) GetByBankReference(ctx context.Context, bankRef string) (*domain.PaymentAdvice, error) {
	args := m.Called(ctx, bankRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentAdvice), args.Error(1)
}

func (m *MockAdviceRepo) List(ctx context.Context, offset, limit int) ([]domain.PaymentAdvice, int, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.PaymentAdvice), args.Int(1), args.Error(2)
}

func (m *MockAdviceRepo) DeleteAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
