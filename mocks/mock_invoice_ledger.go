package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"payrecon/internal/domain"
)

// MockInvoiceLedger is a mock implementation of port.InvoiceLedger.
type MockInvoiceLedger struct {
	mock.Mock
}

func (m *MockInvoiceLedger) FetchPage(ctx context.Context, pageNo int) ([]domain.InvoiceRecord, error) {
	args := m.Called(ctx, pageNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.InvoiceRecord), args.Error(1)
}

func (m *MockInvoiceLedger) PushPayment(ctx context.Context, req *domain.PaymentWriteRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}
