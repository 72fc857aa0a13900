package port

import (
	"context"

	"payrecon/internal/domain"
)

// InvoiceLedger abstracts the external accounting system holding unpaid
// invoices and receiving payment write-backs.
type InvoiceLedger interface {
	// FetchPage returns one page of unpaid invoices. An empty page means
	// the ledger is exhausted. Page numbers start at 1.
	FetchPage(ctx context.Context, pageNo int) ([]domain.InvoiceRecord, error)
	// PushPayment records one payment against an invoice. Failures are
	// returned as *domain.WriteError so callers can classify them.
	PushPayment(ctx context.Context, req *domain.PaymentWriteRequest) error
}
