package writeback_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"payrecon/internal/cache"
	"payrecon/internal/config"
	"payrecon/internal/domain"
	"payrecon/internal/writeback"
	"payrecon/mocks"
)

func writerConfig() config.WriterConfig {
	return config.WriterConfig{
		Concurrency:    2,
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func paidTestCache(t *testing.T, numbers ...string) *cache.InvoiceCache {
	t.Helper()
	c := cache.New()
	recs := make([]domain.InvoiceRecord, 0, len(numbers))
	for _, n := range numbers {
		recs = append(recs, domain.InvoiceRecord{
			InvoiceNumber: n,
			Status:        domain.InvoiceStatusUnpaid,
			Total:         decimal.NewFromInt(5000),
			Balance:       decimal.NewFromInt(5000),
		})
	}
	require.NoError(t, c.LoadPage(1, recs))
	c.Seal()
	return c
}

func matchedResult(adviceID uuid.UUID) domain.ReconciliationResult {
	return domain.ReconciliationResult{
		ID:             uuid.New(),
		AdviceID:       adviceID,
		FileName:       "advice.txt",
		BankReference:  "HDFC0012345678",
		InvoiceNumber:  "INV-100",
		NormalizedKey:  "INV100",
		CustomerName:   "Acme Industries",
		Status:         domain.MatchStatusMatched,
		AllocatedAmt:   decimal.NewFromInt(5000),
		InvoiceAmount:  decimal.NewFromInt(5000),
		WriteBackState: domain.WriteBackPending,
	}
}

func TestCommit_SuccessfulWrite(t *testing.T) {
	ledger := new(mocks.MockInvoiceLedger)
	wb := new(mocks.MockWriteBackLedger)
	c := paidTestCache(t, "INV-100")
	co := writeback.NewCoordinator(ledger, wb, c, writerConfig())

	adviceID := uuid.New()
	result := matchedResult(adviceID)

	wb.On("Get", mock.Anything, adviceID, "INV100").Return(nil, domain.ErrNotFound)
	wb.On("Begin", mock.Anything, mock.Anything).Return(&domain.WriteBackRecord{State: domain.WriteBackPending}, nil)
	ledger.On("PushPayment", mock.Anything, mock.Anything).Return(nil)
	wb.On("MarkWritten", mock.Anything, adviceID, "INV100").Return(nil)

	committed, err := co.Commit(context.Background(), result, &domain.PaymentAdvice{ID: adviceID})
	require.NoError(t, err)
	assert.Equal(t, domain.WriteBackWritten, committed.WriteBackState)
	assert.True(t, c.IsPaid("INV100"), "a confirmed write marks the cached invoice paid")

	ledger.AssertNumberOfCalls(t, "PushPayment", 1)
	wb.AssertExpectations(t)
}

func TestCommit_AlreadyWrittenSkipsWithoutExternalCall(t *testing.T) {
	ledger := new(mocks.MockInvoiceLedger)
	wb := new(mocks.MockWriteBackLedger)
	c := paidTestCache(t, "INV-100")
	co := writeback.NewCoordinator(ledger, wb, c, writerConfig())

	adviceID := uuid.New()
	result := matchedResult(adviceID)

	wb.On("Get", mock.Anything, adviceID, "INV100").
		Return(&domain.WriteBackRecord{State: domain.WriteBackWritten}, nil)

	committed, err := co.Commit(context.Background(), result, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.WriteBackSkipped, committed.WriteBackState)
	assert.Contains(t, committed.Reason, "already written")

	ledger.AssertNotCalled(t, "PushPayment", mock.Anything, mock.Anything)
}

func TestCommit_InvoicePaidEarlierInRunSkips(t *testing.T) {
	ledger := new(mocks.MockInvoiceLedger)
	wb := new(mocks.MockWriteBackLedger)
	c := paidTestCache(t, "INV-100")
	require.NoError(t, c.MarkPaid("INV100"))
	co := writeback.NewCoordinator(ledger, wb, c, writerConfig())

	adviceID := uuid.New()
	wb.On("Get", mock.Anything, adviceID, "INV100").Return(nil, domain.ErrNotFound)

	committed, err := co.Commit(context.Background(), matchedResult(adviceID), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.WriteBackSkipped, committed.WriteBackState)

	ledger.AssertNotCalled(t, "PushPayment", mock.Anything, mock.Anything)
}

func TestCommit_SameInvoiceTwoAdvicesOneWrite(t *testing.T) {
	ledger := new(mocks.MockInvoiceLedger)
	wb := new(mocks.MockWriteBackLedger)
	c := paidTestCache(t, "INV-100")
	co := writeback.NewCoordinator(ledger, wb, c, writerConfig())

	first := uuid.New()
	second := uuid.New()

	wb.On("Get", mock.Anything, mock.Anything, "INV100").Return(nil, domain.ErrNotFound)
	wb.On("Begin", mock.Anything, mock.Anything).Return(&domain.WriteBackRecord{State: domain.WriteBackPending}, nil)
	ledger.On("PushPayment", mock.Anything, mock.Anything).Return(nil)
	wb.On("MarkWritten", mock.Anything, first, "INV100").Return(nil)

	committed, err := co.Commit(context.Background(), matchedResult(first), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.WriteBackWritten, committed.WriteBackState)

	committed, err = co.Commit(context.Background(), matchedResult(second), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.WriteBackSkipped, committed.WriteBackState)

	ledger.AssertNumberOfCalls(t, "PushPayment", 1)
}

func TestCommit_ConcurrentSameInvoiceOneWrite(t *testing.T) {
	ledger := new(mocks.MockInvoiceLedger)
	wb := new(mocks.MockWriteBackLedger)
	c := paidTestCache(t, "INV-100")
	co := writeback.NewCoordinator(ledger, wb, c, writerConfig())

	wb.On("Get", mock.Anything, mock.Anything, "INV100").Return(nil, domain.ErrNotFound)
	wb.On("Begin", mock.Anything, mock.Anything).Return(&domain.WriteBackRecord{State: domain.WriteBackPending}, nil)
	ledger.On("PushPayment", mock.Anything, mock.Anything).Return(nil)
	wb.On("MarkWritten", mock.Anything, mock.Anything, "INV100").Return(nil)

	// Two advices race to pay the same invoice. The keyed mutex
	// serializes them, so the loser sees the invoice already paid.
	var wg sync.WaitGroup
	outcomes := make([]domain.WriteBackState, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			committed, err := co.Commit(context.Background(), matchedResult(uuid.New()), nil)
			assert.NoError(t, err)
			outcomes[i] = committed.WriteBackState
		}(i)
	}
	wg.Wait()

	var written, skipped int
	for _, s := range outcomes {
		switch s {
		case domain.WriteBackWritten:
			written++
		case domain.WriteBackSkipped:
			skipped++
		}
	}
	assert.Equal(t, 1, written)
	assert.Equal(t, 1, skipped)
	assert.True(t, c.IsPaid("INV100"))

	ledger.AssertNumberOfCalls(t, "PushPayment", 1)
	wb.AssertNumberOfCalls(t, "MarkWritten", 1)
}

func TestCommit_DryRunSuppressesWrite(t *testing.T) {
	ledger := new(mocks.MockInvoiceLedger)
	wb := new(mocks.MockWriteBackLedger)
	c := paidTestCache(t, "INV-100")
	cfg := writerConfig()
	cfg.DryRun = true
	co := writeback.NewCoordinator(ledger, wb, c, cfg)

	adviceID := uuid.New()
	wb.On("Get", mock.Anything, adviceID, "INV100").Return(nil, domain.ErrNotFound)

	committed, err := co.Commit(context.Background(), matchedResult(adviceID), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.WriteBackSkipped, committed.WriteBackState)
	assert.Contains(t, committed.Reason, "dry run")

	ledger.AssertNotCalled(t, "PushPayment", mock.Anything, mock.Anything)
}

func TestCommit_PermanentFailureNoRetry(t *testing.T) {
	ledger := new(mocks.MockInvoiceLedger)
	wb := new(mocks.MockWriteBackLedger)
	c := paidTestCache(t, "INV-100")
	co := writeback.NewCoordinator(ledger, wb, c, writerConfig())

	adviceID := uuid.New()
	permanent := &domain.WriteError{StatusCode: 400, Transient: false, Err: errors.New("missing field")}

	wb.On("Get", mock.Anything, adviceID, "INV100").Return(nil, domain.ErrNotFound)
	wb.On("Begin", mock.Anything, mock.Anything).Return(&domain.WriteBackRecord{State: domain.WriteBackPending}, nil)
	ledger.On("PushPayment", mock.Anything, mock.Anything).Return(permanent)
	wb.On("MarkFailed", mock.Anything, adviceID, "INV100", 1, mock.Anything).Return(nil)

	committed, err := co.Commit(context.Background(), matchedResult(adviceID), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.WriteBackFailed, committed.WriteBackState)
	assert.NotEmpty(t, committed.WriteBackError)
	assert.False(t, c.IsPaid("INV100"))

	ledger.AssertNumberOfCalls(t, "PushPayment", 1)
	wb.AssertExpectations(t)
}

func TestCommit_TransientFailureRetriesThenSucceeds(t *testing.T) {
	ledger := new(mocks.MockInvoiceLedger)
	wb := new(mocks.MockWriteBackLedger)
	c := paidTestCache(t, "INV-100")
	co := writeback.NewCoordinator(ledger, wb, c, writerConfig())

	adviceID := uuid.New()
	transient := &domain.WriteError{StatusCode: 503, Transient: true, Err: errors.New("upstream down")}

	wb.On("Get", mock.Anything, adviceID, "INV100").Return(nil, domain.ErrNotFound)
	wb.On("Begin", mock.Anything, mock.Anything).Return(&domain.WriteBackRecord{State: domain.WriteBackPending}, nil)
	ledger.On("PushPayment", mock.Anything, mock.Anything).Return(transient).Twice()
	ledger.On("PushPayment", mock.Anything, mock.Anything).Return(nil).Once()
	wb.On("MarkWritten", mock.Anything, adviceID, "INV100").Return(nil)

	committed, err := co.Commit(context.Background(), matchedResult(adviceID), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.WriteBackWritten, committed.WriteBackState)

	ledger.AssertNumberOfCalls(t, "PushPayment", 3)
}

func TestCommit_RetriesExhausted(t *testing.T) {
	ledger := new(mocks.MockInvoiceLedger)
	wb := new(mocks.MockWriteBackLedger)
	c := paidTestCache(t, "INV-100")
	cfg := writerConfig()
	cfg.MaxRetries = 1
	co := writeback.NewCoordinator(ledger, wb, c, cfg)

	adviceID := uuid.New()
	transient := &domain.WriteError{StatusCode: 429, Transient: true, Err: errors.New("throttled")}

	wb.On("Get", mock.Anything, adviceID, "INV100").Return(nil, domain.ErrNotFound)
	wb.On("Begin", mock.Anything, mock.Anything).Return(&domain.WriteBackRecord{State: domain.WriteBackPending}, nil)
	ledger.On("PushPayment", mock.Anything, mock.Anything).Return(transient)
	wb.On("MarkFailed", mock.Anything, adviceID, "INV100", 2, mock.Anything).Return(nil)

	committed, err := co.Commit(context.Background(), matchedResult(adviceID), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.WriteBackFailed, committed.WriteBackState)
	assert.Contains(t, committed.WriteBackError, "retries exhausted")

	ledger.AssertNumberOfCalls(t, "PushPayment", 2)
}

func TestCommit_RejectsNonMatchedResult(t *testing.T) {
	co := writeback.NewCoordinator(new(mocks.MockInvoiceLedger), new(mocks.MockWriteBackLedger), paidTestCache(t), writerConfig())

	result := matchedResult(uuid.New())
	result.Status = domain.MatchStatusAmountMismatch

	_, err := co.Commit(context.Background(), result, nil)
	assert.ErrorIs(t, err, domain.ErrNotWriteEligible)
}

func TestCommit_RejectsNonPendingState(t *testing.T) {
	co := writeback.NewCoordinator(new(mocks.MockInvoiceLedger), new(mocks.MockWriteBackLedger), paidTestCache(t), writerConfig())

	result := matchedResult(uuid.New())
	result.WriteBackState = domain.WriteBackWritten

	_, err := co.Commit(context.Background(), result, nil)
	var stateErr *domain.InvalidStateError
	assert.ErrorAs(t, err, &stateErr)
}

func TestCommitAll_MixedEligibility(t *testing.T) {
	ledger := new(mocks.MockInvoiceLedger)
	wb := new(mocks.MockWriteBackLedger)
	c := paidTestCache(t, "INV-100")
	co := writeback.NewCoordinator(ledger, wb, c, writerConfig())

	adviceID := uuid.New()
	eligible := matchedResult(adviceID)
	skipped := matchedResult(adviceID)
	skipped.Status = domain.MatchStatusNotFound
	skipped.WriteBackState = domain.WriteBackSkipped

	wb.On("Get", mock.Anything, adviceID, "INV100").Return(nil, domain.ErrNotFound)
	wb.On("Begin", mock.Anything, mock.Anything).Return(&domain.WriteBackRecord{State: domain.WriteBackPending}, nil)
	ledger.On("PushPayment", mock.Anything, mock.Anything).Return(nil)
	wb.On("MarkWritten", mock.Anything, adviceID, "INV100").Return(nil)

	advices := map[string]*domain.PaymentAdvice{adviceID.String(): {ID: adviceID}}
	out := co.CommitAll(context.Background(), []domain.ReconciliationResult{eligible, skipped}, advices)

	require.Len(t, out, 2)
	assert.Equal(t, domain.WriteBackWritten, out[0].WriteBackState)
	assert.Equal(t, domain.WriteBackSkipped, out[1].WriteBackState, "ineligible results pass through unchanged")
	ledger.AssertNumberOfCalls(t, "PushPayment", 1)
}
