package port

import (
	"context"

	"github.com/google/uuid"

	"payrecon/internal/domain"
)

// AdviceRepository defines the contract for payment advice persistence.
type AdviceRepository interface {
	Create(ctx context.Context, advice *domain.PaymentAdvice) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentAdvice, error)
	GetByBankReference(ctx context.Context, bankRef string) (*domain.PaymentAdvice, error)
	List(ctx context.Context, offset, limit int) ([]domain.PaymentAdvice, int, error)
	DeleteAll(ctx context.Context) error
}

// ResultRepository defines the contract for reconciliation result persistence.
type ResultRepository interface {
	Create(ctx context.Context, result *domain.ReconciliationResult) error
	CreateBatch(ctx context.Context, results []domain.ReconciliationResult) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ReconciliationResult, error)
	ListByRun(ctx context.Context, runID uuid.UUID, offset, limit int) ([]domain.ReconciliationResult, int, error)
	ListByStatus(ctx context.Context, runID uuid.UUID, status domain.MatchStatus) ([]domain.ReconciliationResult, error)
	SearchByInvoice(ctx context.Context, invoiceNumber string) ([]domain.ReconciliationResult, error)
	UpdateWriteBack(ctx context.Context, id uuid.UUID, state domain.WriteBackState, writeErr string) error
	DeleteByRun(ctx context.Context, runID uuid.UUID) error
	DeleteAll(ctx context.Context) error
}

// RunRepository defines the contract for reconciliation run headers.
type RunRepository interface {
	Create(ctx context.Context, run *domain.RunRecord) error
	Complete(ctx context.Context, id uuid.UUID, state domain.RunState, runErr string) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RunRecord, error)
	GetLatest(ctx context.Context) (*domain.RunRecord, error)
}

// WriteBackLedger is the durable idempotency ledger for external payment
// writes, keyed by (advice_id, invoice normalized key).
type WriteBackLedger interface {
	Get(ctx context.Context, adviceID uuid.UUID, normalizedKey string) (*domain.WriteBackRecord, error)
	// Begin records a PENDING entry for the pair, or returns the existing
	// record untouched when one is already present.
	Begin(ctx context.Context, rec *domain.WriteBackRecord) (*domain.WriteBackRecord, error)
	MarkWritten(ctx context.Context, adviceID uuid.UUID, normalizedKey string) error
	MarkFailed(ctx context.Context, adviceID uuid.UUID, normalizedKey string, attempts int, lastErr string) error
	ListByState(ctx context.Context, state domain.WriteBackState) ([]domain.WriteBackRecord, error)
}
