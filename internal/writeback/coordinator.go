// Package writeback drives the external ledger payment writes for matched
// reconciliation results. The external API offers no native idempotency,
// so the coordinator guards every write with a durable (advice, invoice)
// ledger and per-invoice-key mutual exclusion.
package writeback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"payrecon/internal/cache"
	"payrecon/internal/config"
	"payrecon/internal/domain"
	"payrecon/internal/port"
)

type Coordinator struct {
	ledger   port.InvoiceLedger
	wbLedger port.WriteBackLedger
	cache    *cache.InvoiceCache
	locks    *keyedMutex

	concurrency    int
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	dryRun         bool
}

func NewCoordinator(ledger port.InvoiceLedger, wbLedger port.WriteBackLedger, c *cache.InvoiceCache, cfg config.WriterConfig) *Coordinator {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Coordinator{
		ledger:         ledger,
		wbLedger:       wbLedger,
		cache:          c,
		locks:          newKeyedMutex(),
		concurrency:    concurrency,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		dryRun:         cfg.DryRun,
	}
}

// Commit pushes one matched result's payment to the external ledger and
// returns the result in its terminal write-back state. The input must be
// MATCHED and PENDING; anything else is a contract violation. Once a write
// has been dispatched it is resolved to WRITTEN or FAILED even if ctx is
// cancelled mid-flight.
func (co *Coordinator) Commit(ctx context.Context, result domain.ReconciliationResult, advice *domain.PaymentAdvice) (domain.ReconciliationResult, error) {
	if result.Status != domain.MatchStatusMatched {
		return result, fmt.Errorf("commit %s: %w", result.InvoiceNumber, domain.ErrNotWriteEligible)
	}
	if result.WriteBackState != domain.WriteBackPending {
		return result, &domain.InvalidStateError{From: result.WriteBackState, To: domain.WriteBackWritten}
	}

	key := result.NormalizedKey
	co.locks.Lock(key)
	defer co.locks.Unlock(key)

	// Idempotency guard: a write already confirmed for this pair, in this
	// process or a previous one, is never re-issued.
	if rec, err := co.wbLedger.Get(ctx, result.AdviceID, key); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return result, fmt.Errorf("writeback ledger lookup for %s: %w", key, err)
	} else if rec != nil && rec.State == domain.WriteBackWritten {
		log.Printf("WriteBackCoordinator.Commit: %s already written, skipping", result.InvoiceNumber)
		return co.transition(result, domain.WriteBackSkipped, "payment already written for this advice and invoice")
	}

	// A different advice may have paid this invoice earlier in the run.
	if co.cache.IsPaid(key) {
		log.Printf("WriteBackCoordinator.Commit: invoice %s already paid this run, skipping", result.InvoiceNumber)
		return co.transition(result, domain.WriteBackSkipped, "invoice already marked paid in this run")
	}

	if co.dryRun {
		return co.transition(result, domain.WriteBackSkipped, "dry run, external write suppressed")
	}

	rec := &domain.WriteBackRecord{
		AdviceID:      result.AdviceID,
		NormalizedKey: key,
		InvoiceNumber: result.InvoiceNumber,
		BankReference: result.BankReference,
		Amount:        result.AllocatedAmt,
		State:         domain.WriteBackPending,
	}
	if _, err := co.wbLedger.Begin(ctx, rec); err != nil {
		return result, fmt.Errorf("writeback ledger begin for %s: %w", key, err)
	}

	attempts, err := co.dispatch(ctx, buildWriteRequest(&result, advice))
	if err != nil {
		if mErr := co.wbLedger.MarkFailed(context.WithoutCancel(ctx), result.AdviceID, key, attempts, err.Error()); mErr != nil {
			log.Printf("WriteBackCoordinator.Commit: recording failure for %s: %v", result.InvoiceNumber, mErr)
		}
		result.WriteBackError = err.Error()
		return co.transition(result, domain.WriteBackFailed, err.Error())
	}

	if err := co.wbLedger.MarkWritten(context.WithoutCancel(ctx), result.AdviceID, key); err != nil {
		// The external write succeeded; surface the bookkeeping failure
		// loudly but keep the result WRITTEN.
		log.Printf("WriteBackCoordinator.Commit: recording success for %s: %v", result.InvoiceNumber, err)
	}
	if err := co.cache.MarkPaid(key); err != nil {
		log.Printf("WriteBackCoordinator.Commit: marking %s paid in cache: %v", result.InvoiceNumber, err)
	}
	log.Printf("WriteBackCoordinator.Commit: wrote payment for invoice %s (%s)", result.InvoiceNumber, result.AllocatedAmt.StringFixed(2))
	return co.transition(result, domain.WriteBackWritten, "")
}

// dispatch performs the external call with bounded exponential backoff on
// transient failures. The call itself runs on a detached context so an
// in-flight write always resolves; cancellation only stops further
// retries.
func (co *Coordinator) dispatch(ctx context.Context, req *domain.PaymentWriteRequest) (attempts int, err error) {
	backoff := co.initialBackoff
	for attempts = 1; ; attempts++ {
		err = co.ledger.PushPayment(context.WithoutCancel(ctx), req)
		if err == nil {
			return attempts, nil
		}
		if !domain.IsTransientWriteError(err) {
			return attempts, err
		}
		if attempts > co.maxRetries {
			return attempts, fmt.Errorf("retries exhausted after %d attempts: %w", attempts, err)
		}
		log.Printf("WriteBackCoordinator.dispatch: transient failure for invoice %s (attempt %d): %v", req.InvoiceNumber, attempts, err)
		select {
		case <-ctx.Done():
			return attempts, fmt.Errorf("cancelled while retrying: %w", err)
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > co.maxBackoff {
			backoff = co.maxBackoff
		}
	}
}

func (co *Coordinator) transition(result domain.ReconciliationResult, to domain.WriteBackState, reason string) (domain.ReconciliationResult, error) {
	if !domain.CanTransitionWriteBack(result.WriteBackState, to) {
		return result, &domain.InvalidStateError{From: result.WriteBackState, To: to}
	}
	result.WriteBackState = to
	if reason != "" {
		if result.Reason != "" {
			result.Reason += "; "
		}
		result.Reason += reason
	}
	result.UpdatedAt = time.Now()
	return result, nil
}

// CommitAll processes every write-eligible result concurrently, bounded by
// the configured concurrency. Results that are not eligible pass through
// unchanged. Per-result failures are captured on the result itself rather
// than aborting the batch.
func (co *Coordinator) CommitAll(ctx context.Context, results []domain.ReconciliationResult, advices map[string]*domain.PaymentAdvice) []domain.ReconciliationResult {
	out := make([]domain.ReconciliationResult, len(results))
	copy(out, results)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(co.concurrency)
	for i := range out {
		if !out[i].WriteEligible() {
			continue
		}
		i := i
		g.Go(func() error {
			advice := advices[out[i].AdviceID.String()]
			committed, err := co.Commit(gctx, out[i], advice)
			if err != nil {
				log.Printf("WriteBackCoordinator.CommitAll: commit %s: %v", out[i].InvoiceNumber, err)
				committed = out[i]
				committed.WriteBackState = domain.WriteBackFailed
				committed.WriteBackError = err.Error()
			}
			out[i] = committed
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func buildWriteRequest(result *domain.ReconciliationResult, advice *domain.PaymentAdvice) *domain.PaymentWriteRequest {
	req := &domain.PaymentWriteRequest{
		ClientName:    result.CustomerName,
		InvoiceNumber: result.InvoiceNumber,
		Amount:        result.AllocatedAmt,
		TotalAmount:   result.InvoiceAmount,
		BankReference: result.BankReference,
		FileName:      result.FileName,
		FileLocation:  "https://",
	}
	if advice != nil {
		req.TDS = advice.TDSAmount
		if advice.FileLocation != "" {
			req.FileLocation = advice.FileLocation
		}
		if advice.InvoiceDate != nil {
			req.InvoiceDate = advice.InvoiceDate.Format("2006-01-02")
		}
		switch {
		case advice.TransactionDate != nil:
			req.TransactionDate = advice.TransactionDate.Format("2006-01-02")
		case advice.PaymentDate != nil:
			req.TransactionDate = advice.PaymentDate.Format("2006-01-02")
		}
	}
	if req.TransactionDate == "" {
		req.TransactionDate = time.Now().Format("2006-01-02")
	}
	return req
}
