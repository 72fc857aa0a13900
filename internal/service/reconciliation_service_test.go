package service_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"payrecon/internal/cache"
	"payrecon/internal/config"
	"payrecon/internal/domain"
	"payrecon/internal/port"
	"payrecon/internal/service"
	"payrecon/internal/writeback"
	"payrecon/mocks"
)

type serviceFixture struct {
	svc        *service.ReconciliationService
	source     *mocks.MockDocumentSource
	ledger     *mocks.MockInvoiceLedger
	adviceRepo *mocks.MockAdviceRepo
	resultRepo *mocks.MockResultRepo
	runRepo    *mocks.MockRunRepo
	wbLedger   *mocks.MockWriteBackLedger
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	cfg := &config.Config{
		Ledger: config.LedgerConfig{MaxPages: 5},
		Matcher: config.MatcherConfig{
			MatchThreshold:   80,
			PartialThreshold: 50,
			AmountTolerance:  1.0,
			DateTolerance:    720 * time.Hour,
		},
		Writer: config.WriterConfig{
			Concurrency:    2,
			MaxRetries:     1,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
		},
		Source: config.SourceConfig{Concurrency: 2},
		Report: config.ReportConfig{Dir: t.TempDir()},
	}

	f := &serviceFixture{
		source:     new(mocks.MockDocumentSource),
		ledger:     new(mocks.MockInvoiceLedger),
		adviceRepo: new(mocks.MockAdviceRepo),
		resultRepo: new(mocks.MockResultRepo),
		runRepo:    new(mocks.MockRunRepo),
		wbLedger:   new(mocks.MockWriteBackLedger),
	}
	invoices := cache.New()
	f.svc = service.NewReconciliationService(
		f.source, f.ledger, f.adviceRepo, f.resultRepo, f.runRepo,
		new(mocks.MockEmailSender), nil, invoices, cfg)
	f.svc.SetCoordinator(writeback.NewCoordinator(f.ledger, f.wbLedger, invoices, cfg.Writer))
	return f
}

func (f *serviceFixture) expectRunBookkeeping() {
	f.runRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.runRepo.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
}

func unpaidRecord(invoice string, balance int64) domain.InvoiceRecord {
	return domain.InvoiceRecord{
		InvoiceNumber: invoice,
		NormalizedKey: domain.NormalizeInvoiceKey(invoice),
		CustomerName:  "Acme Industries",
		Total:         decimal.NewFromInt(balance),
		Balance:       decimal.NewFromInt(balance),
		Status:        domain.InvoiceStatusUnpaid,
	}
}

func TestReconciliationService_Run_FullPipeline(t *testing.T) {
	f := newServiceFixture(t)
	f.expectRunBookkeeping()

	doc := port.AdviceDocument{
		FileName: "advice-001.txt",
		Text:     "Payment Advice\nInvoice No: INV-2425-0017\nNet Amount: 5000.00\n",
	}
	f.source.On("List", mock.Anything).Return([]port.AdviceDocument{doc}, nil)

	f.ledger.On("FetchPage", mock.Anything, 1).
		Return([]domain.InvoiceRecord{unpaidRecord("INV-2425-0017", 5000)}, nil)
	f.ledger.On("FetchPage", mock.Anything, 2).Return([]domain.InvoiceRecord{}, nil)
	f.ledger.On("PushPayment", mock.Anything, mock.Anything).Return(nil)

	f.adviceRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.resultRepo.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)

	f.wbLedger.On("Get", mock.Anything, mock.Anything, "INV24250017").Return(nil, domain.ErrNotFound)
	f.wbLedger.On("Begin", mock.Anything, mock.Anything).
		Return(&domain.WriteBackRecord{State: domain.WriteBackPending}, nil)
	f.wbLedger.On("MarkWritten", mock.Anything, mock.Anything, "INV24250017").Return(nil)

	got, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, got.TotalAdvices)
	assert.Equal(t, 1, got.TotalResults)
	assert.Equal(t, 1, got.Matched)
	assert.Equal(t, 1, got.Written)
	assert.True(t, decimal.NewFromInt(5000).Equal(got.MatchedAmount))
	assert.Equal(t, domain.RunStateCompleted, got.State)
	require.NotNil(t, got.CompletedAt)

	assert.False(t, f.svc.IsRunning())
	assert.Equal(t, domain.RunStateCompleted, f.svc.Progress().State)
	assert.Same(t, got, f.svc.LastSummary())

	mainReport, _ := f.svc.ReportPaths()
	require.NotEmpty(t, mainReport)
	_, statErr := os.Stat(mainReport)
	assert.NoError(t, statErr)

	f.ledger.AssertNumberOfCalls(t, "PushPayment", 1)
	f.runRepo.AssertCalled(t, "Complete", mock.Anything, got.RunID, domain.RunStateCompleted, "")
}

func TestReconciliationService_Run_EmptySource(t *testing.T) {
	f := newServiceFixture(t)
	f.expectRunBookkeeping()

	f.source.On("List", mock.Anything).Return([]port.AdviceDocument{}, nil)
	f.ledger.On("FetchPage", mock.Anything, 1).Return([]domain.InvoiceRecord{}, nil)
	f.resultRepo.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)

	got, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got.TotalAdvices)
	assert.Zero(t, got.TotalResults)
	f.ledger.AssertNotCalled(t, "PushPayment", mock.Anything, mock.Anything)
}

func TestReconciliationService_Run_SourceFailureMarksRunFailed(t *testing.T) {
	f := newServiceFixture(t)
	f.expectRunBookkeeping()

	f.ledger.On("FetchPage", mock.Anything, 1).Return([]domain.InvoiceRecord{}, nil)
	f.source.On("List", mock.Anything).Return(nil, errors.New("directory unreadable"))

	_, err := f.svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory unreadable")

	assert.False(t, f.svc.IsRunning())
	assert.Equal(t, domain.RunStateFailed, f.svc.Progress().State)
	f.runRepo.AssertCalled(t, "Complete", mock.Anything, mock.Anything, domain.RunStateFailed, mock.Anything)
}

func TestReconciliationService_SecondRunRejected(t *testing.T) {
	f := newServiceFixture(t)
	f.expectRunBookkeeping()

	release := make(chan struct{})
	f.ledger.On("FetchPage", mock.Anything, 1).
		Run(func(mock.Arguments) { <-release }).
		Return([]domain.InvoiceRecord{}, nil)
	f.source.On("List", mock.Anything).Return([]port.AdviceDocument{}, nil)
	f.resultRepo.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)

	runID, err := f.svc.StartRun()
	require.NoError(t, err)
	require.Eventually(t, f.svc.IsRunning, time.Second, time.Millisecond)
	assert.Equal(t, runID, f.svc.Progress().RunID)

	_, err = f.svc.StartRun()
	assert.ErrorIs(t, err, domain.ErrRunAlreadyActive)

	err = f.svc.Clear(context.Background())
	assert.ErrorIs(t, err, domain.ErrRunAlreadyActive)

	close(release)
	require.Eventually(t, func() bool { return !f.svc.IsRunning() }, time.Second, time.Millisecond)
}

func TestReconciliationService_Clear(t *testing.T) {
	f := newServiceFixture(t)
	f.resultRepo.On("DeleteAll", mock.Anything).Return(nil)
	f.adviceRepo.On("DeleteAll", mock.Anything).Return(nil)

	require.NoError(t, f.svc.Clear(context.Background()))
	f.resultRepo.AssertCalled(t, "DeleteAll", mock.Anything)
	f.adviceRepo.AssertCalled(t, "DeleteAll", mock.Anything)
}
