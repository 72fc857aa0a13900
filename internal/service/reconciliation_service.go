package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"payrecon/internal/cache"
	"payrecon/internal/config"
	"payrecon/internal/domain"
	"payrecon/internal/extractor"
	"payrecon/internal/matcher"
	"payrecon/internal/port"
	"payrecon/internal/report"
	"payrecon/internal/summary"
	"payrecon/internal/writeback"
)

// ReconciliationService drives one full reconciliation run: load the
// invoice cache, extract advices, match, write back and report. At most
// one run is active at a time.
type ReconciliationService struct {
	source      port.DocumentSource
	ledger      port.InvoiceLedger
	adviceRepo  port.AdviceRepository
	resultRepo  port.ResultRepository
	runRepo     port.RunRepository
	emailSender port.EmailSender
	storage     port.ObjectStorage

	extractor   *extractor.Extractor
	invoices    *cache.InvoiceCache
	matcher     *matcher.Matcher
	coordinator *writeback.Coordinator

	cfg *config.Config

	mu          sync.Mutex
	running     bool
	progress    domain.RunProgress
	lastSummary *domain.RunSummary
	lastReport  string
	lastReview  string
}

// NewReconciliationService wires the run pipeline together.
func NewReconciliationService(
	src port.DocumentSource,
	ledger port.InvoiceLedger,
	adviceRepo port.AdviceRepository,
	resultRepo port.ResultRepository,
	runRepo port.RunRepository,
	emailSender port.EmailSender,
	storage port.ObjectStorage,
	invoices *cache.InvoiceCache,
	cfg *config.Config,
) *ReconciliationService {
	return &ReconciliationService{
		source:      src,
		ledger:      ledger,
		adviceRepo:  adviceRepo,
		resultRepo:  resultRepo,
		runRepo:     runRepo,
		emailSender: emailSender,
		storage:     storage,
		extractor:   extractor.New(),
		invoices:    invoices,
		matcher:     matcher.New(cfg.Matcher),
		coordinator: nil,
		cfg:         cfg,
	}
}

// SetCoordinator injects the write-back coordinator. Separate from the
// constructor because the coordinator itself needs the shared cache.
func (s *ReconciliationService) SetCoordinator(c *writeback.Coordinator) {
	s.coordinator = c
}

// StartRun launches a run in the background. Returns ErrRunAlreadyActive
// when one is in flight. The run uses a fresh context so an HTTP request
// timeout cannot abort it midway.
func (s *ReconciliationService) StartRun() (uuid.UUID, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return uuid.Nil, domain.ErrRunAlreadyActive
	}
	runID := uuid.New()
	s.running = true
	s.progress = domain.RunProgress{
		RunID:     runID,
		State:     domain.RunStateRunning,
		Stage:     "starting",
		StartedAt: time.Now(),
	}
	s.mu.Unlock()

	go func() {
		if _, err := s.execute(context.Background(), runID); err != nil {
			log.Printf("ReconciliationService.StartRun: run %s failed: %v", runID, err)
		}
	}()
	return runID, nil
}

// Run executes a run synchronously on the caller's context.
func (s *ReconciliationService) Run(ctx context.Context) (*domain.RunSummary, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, domain.ErrRunAlreadyActive
	}
	runID := uuid.New()
	s.running = true
	s.progress = domain.RunProgress{
		RunID:     runID,
		State:     domain.RunStateRunning,
		Stage:     "starting",
		StartedAt: time.Now(),
	}
	s.mu.Unlock()

	return s.execute(ctx, runID)
}

func (s *ReconciliationService) execute(ctx context.Context, runID uuid.UUID) (runSummary *domain.RunSummary, err error) {
	startedAt := time.Now()
	run := &domain.RunRecord{ID: runID, State: domain.RunStateRunning, StartedAt: startedAt.UTC()}
	if repoErr := s.runRepo.Create(ctx, run); repoErr != nil {
		s.finish(domain.RunStateFailed)
		return nil, repoErr
	}

	defer func() {
		state := domain.RunStateCompleted
		msg := ""
		if err != nil {
			state = domain.RunStateFailed
			msg = err.Error()
		}
		// Record the terminal state even when ctx was cancelled.
		if repoErr := s.runRepo.Complete(context.WithoutCancel(ctx), runID, state, msg); repoErr != nil {
			log.Printf("ReconciliationService.execute: completing run %s: %v", runID, repoErr)
		}
		s.finish(state)
	}()

	log.Printf("ReconciliationService.execute: run %s started", runID)

	if err = s.loadInvoiceCache(ctx); err != nil {
		return nil, err
	}

	advices, err := s.extractAdvices(ctx)
	if err != nil {
		return nil, err
	}

	results, err := s.matchAdvices(ctx, runID, advices)
	if err != nil {
		return nil, err
	}

	s.setStage("writing_back", len(results), 0)
	adviceByID := make(map[string]*domain.PaymentAdvice, len(advices))
	for i := range advices {
		adviceByID[advices[i].ID.String()] = &advices[i]
	}
	results = s.coordinator.CommitAll(ctx, results, adviceByID)

	if err = s.resultRepo.CreateBatch(ctx, results); err != nil {
		return nil, err
	}

	runSummary = summary.Summarize(runID, advices, results)
	runSummary.StartedAt = startedAt
	completed := time.Now()
	runSummary.CompletedAt = &completed
	runSummary.State = domain.RunStateCompleted

	s.setStage("reporting", 0, 0)
	if reportErr := s.writeReports(ctx, results, runSummary); reportErr != nil {
		log.Printf("ReconciliationService.execute: report generation: %v", reportErr)
	}
	if s.emailSender != nil && len(s.cfg.Email.Recipients) > 0 {
		if mailErr := s.emailSender.SendRunSummary(ctx, s.cfg.Email.Recipients, runSummary); mailErr != nil {
			log.Printf("ReconciliationService.execute: summary email: %v", mailErr)
		}
	}

	s.mu.Lock()
	s.lastSummary = runSummary
	s.mu.Unlock()

	log.Printf("ReconciliationService.execute: run %s complete: %d advices, %d matched, %d written",
		runID, runSummary.TotalAdvices, runSummary.Matched, runSummary.Written)
	return runSummary, nil
}

// loadInvoiceCache pages through the external ledger into the cache and
// seals it. Matching never sees a partially loaded cache.
func (s *ReconciliationService) loadInvoiceCache(ctx context.Context) error {
	s.setStage("loading_invoices", 0, 0)
	s.invoices.Reset()

	maxPages := s.cfg.Ledger.MaxPages
	if maxPages <= 0 {
		maxPages = 1000
	}
	total := 0
	for page := 1; page <= maxPages; page++ {
		records, err := s.ledger.FetchPage(ctx, page)
		if err != nil {
			return fmt.Errorf("loading invoice page %d: %w", page, err)
		}
		if len(records) == 0 {
			break
		}
		if err := s.invoices.LoadPage(page, records); err != nil {
			return fmt.Errorf("caching invoice page %d: %w", page, err)
		}
		total += len(records)
		s.setStage("loading_invoices", 0, total)
	}
	s.invoices.Seal()
	log.Printf("ReconciliationService.loadInvoiceCache: %d invoices cached", s.invoices.Len())
	return nil
}

// extractAdvices reads every source document and extracts it. Documents
// are independent, so extraction fans out across workers; results keep
// ingestion order.
func (s *ReconciliationService) extractAdvices(ctx context.Context) ([]domain.PaymentAdvice, error) {
	docs, err := s.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing advice documents: %w", err)
	}
	s.setStage("extracting", len(docs), 0)

	concurrency := s.cfg.Source.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	perDoc := make([][]domain.PaymentAdvice, len(docs))
	var processed int
	var progressMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range docs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perDoc[i] = s.extractor.Extract(docs[i])
			progressMu.Lock()
			processed++
			n := processed
			progressMu.Unlock()
			s.setStage("extracting", len(docs), n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var advices []domain.PaymentAdvice
	for _, batch := range perDoc {
		advices = append(advices, batch...)
	}
	for i := range advices {
		if err := s.adviceRepo.Create(ctx, &advices[i]); err != nil {
			return nil, fmt.Errorf("persisting advice %s: %w", advices[i].FileName, err)
		}
	}
	log.Printf("ReconciliationService.extractAdvices: %d advices from %d documents", len(advices), len(docs))
	return advices, nil
}

func (s *ReconciliationService) matchAdvices(ctx context.Context, runID uuid.UUID, advices []domain.PaymentAdvice) ([]domain.ReconciliationResult, error) {
	s.setStage("matching", len(advices), 0)

	var results []domain.ReconciliationResult
	for i := range advices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matched, err := s.matcher.Match(&advices[i], s.invoices)
		if err != nil {
			return nil, fmt.Errorf("matching advice %s: %w", advices[i].FileName, err)
		}
		for j := range matched {
			matched[j].RunID = runID
		}
		results = append(results, matched...)
		s.setStage("matching", len(advices), i+1)
	}
	return results, nil
}

// writeReports renders the run and manual-review workbooks and, when the
// archive bucket is enabled, uploads them.
func (s *ReconciliationService) writeReports(ctx context.Context, results []domain.ReconciliationResult, runSummary *domain.RunSummary) error {
	if err := os.MkdirAll(s.cfg.Report.Dir, 0o755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}

	mainPath := filepath.Join(s.cfg.Report.Dir, report.BuildFilename("reconciliation_report", "xlsx"))
	if err := report.WriteRunWorkbook(mainPath, results, runSummary); err != nil {
		return err
	}

	reviewPath := ""
	groups := summary.GroupByStatus(results)
	if review := groups[domain.MatchStatusNoInvoiceNumber]; len(review) > 0 {
		reviewPath = filepath.Join(s.cfg.Report.Dir, report.BuildFilename("no_invoice_number", "xlsx"))
		if err := report.WriteManualReviewWorkbook(reviewPath, review); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.lastReport = mainPath
	s.lastReview = reviewPath
	s.mu.Unlock()

	if s.storage != nil && s.cfg.S3.Enabled && s.cfg.S3.Bucket != "" {
		for _, path := range []string{mainPath, reviewPath} {
			if path == "" {
				continue
			}
			if err := s.archiveReport(ctx, path); err != nil {
				log.Printf("ReconciliationService.writeReports: archiving %s: %v", path, err)
			}
		}
	}
	return nil
}

func (s *ReconciliationService) archiveReport(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	key := s.cfg.S3.Prefix + "/reports/" + filepath.Base(path)
	_, err = s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.cfg.S3.Bucket,
		Key:         key,
		Body:        f,
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Size:        info.Size(),
	})
	return err
}

func (s *ReconciliationService) setStage(stage string, total, processed int) {
	s.mu.Lock()
	s.progress.Stage = stage
	s.progress.Total = total
	s.progress.Processed = processed
	s.mu.Unlock()
}

func (s *ReconciliationService) finish(state domain.RunState) {
	s.mu.Lock()
	s.running = false
	s.progress.State = state
	s.mu.Unlock()
}

// IsRunning reports whether a run is currently in flight.
func (s *ReconciliationService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Progress returns the live view of the current (or last) run.
func (s *ReconciliationService) Progress() domain.RunProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// LastSummary returns the most recent completed run summary, if any.
func (s *ReconciliationService) LastSummary() *domain.RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSummary
}

// ReportPaths returns the paths of the last generated workbooks.
func (s *ReconciliationService) ReportPaths() (main, review string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport, s.lastReview
}

// Clear wipes stored advices and results. Rejected while a run is active.
func (s *ReconciliationService) Clear(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return domain.ErrRunAlreadyActive
	}
	s.mu.Unlock()

	if err := s.resultRepo.DeleteAll(ctx); err != nil {
		return err
	}
	return s.adviceRepo.DeleteAll(ctx)
}
