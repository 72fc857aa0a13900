// Command reconcile executes a single reconciliation run from the command
// line: it loads unpaid invoices from the ledger, extracts every advice
// document in the source directory, matches, writes back and renders the
// Excel reports, then prints the run summary.
// Usage: go run ./cmd/reconcile [-dir advices] [-dry-run]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"payrecon/internal/cache"
	"payrecon/internal/config"
	"payrecon/internal/domain"
	"payrecon/internal/email/noop"
	"payrecon/internal/ledger/warsoft"
	"payrecon/internal/repository/sqlite"
	"payrecon/internal/service"
	"payrecon/internal/source"
	"payrecon/internal/writeback"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dir := flag.String("dir", "", "advice source directory (overrides config)")
	pattern := flag.String("pattern", "", "advice filename glob (overrides config)")
	dryRun := flag.Bool("dry-run", false, "skip external payment writes")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *dir != "" {
		cfg.Source.Dir = *dir
	}
	if *pattern != "" {
		cfg.Source.Pattern = *pattern
	}
	if *dryRun {
		cfg.Writer.DryRun = true
	}

	db, err := sqlite.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := sqlite.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	ledgerClient := warsoft.NewClient(cfg.Ledger)
	invoices := cache.New()

	svc := service.NewReconciliationService(
		source.NewFSSource(cfg.Source.Dir, cfg.Source.Pattern),
		ledgerClient,
		sqlite.NewAdviceRepo(db),
		sqlite.NewResultRepo(db),
		sqlite.NewRunRepo(db),
		noop.NewNoopSender(),
		nil,
		invoices,
		cfg,
	)
	svc.SetCoordinator(writeback.NewCoordinator(ledgerClient, sqlite.NewWriteBackLedger(db), invoices, cfg.Writer))

	// Ctrl-C cancels the run; dispatched writes still resolve.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := svc.Run(ctx)
	if err != nil {
		return fmt.Errorf("reconciliation run: %w", err)
	}

	printSummary(summary)
	return nil
}

func printSummary(s *domain.RunSummary) {
	fmt.Printf("Run %s complete\n", s.RunID)
	fmt.Printf("  advices:          %d\n", s.TotalAdvices)
	fmt.Printf("  results:          %d\n", s.TotalResults)
	fmt.Printf("  matched:          %d\n", s.Matched)
	fmt.Printf("  amount mismatch:  %d\n", s.AmountMismatch)
	fmt.Printf("  partial match:    %d\n", s.PartialMatch)
	fmt.Printf("  not found:        %d\n", s.NotFound)
	fmt.Printf("  no invoice no.:   %d\n", s.NoInvoiceNumber)
	fmt.Printf("  written back:     %d (failed %d, skipped %d)\n", s.Written, s.WriteFailed, s.WriteSkipped)
	fmt.Printf("  matched amount:   %s\n", s.MatchedAmount.StringFixed(2))
	fmt.Printf("  unmatched amount: %s\n", s.UnmatchedAmount.StringFixed(2))
}
