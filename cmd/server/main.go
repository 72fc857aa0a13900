package main

import (
	"fmt"
	"log"

	"payrecon/internal/cache"
	"payrecon/internal/config"
	"payrecon/internal/email/noop"
	"payrecon/internal/email/ses"
	"payrecon/internal/handler"
	"payrecon/internal/ledger/warsoft"
	"payrecon/internal/port"
	"payrecon/internal/repository/sqlite"
	"payrecon/internal/router"
	"payrecon/internal/service"
	"payrecon/internal/source"
	s3storage "payrecon/internal/storage/s3"
	"payrecon/internal/writeback"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := sqlite.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := sqlite.Migrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Initialize repositories
	adviceRepo := sqlite.NewAdviceRepo(db)
	resultRepo := sqlite.NewResultRepo(db)
	runRepo := sqlite.NewRunRepo(db)
	wbLedger := sqlite.NewWriteBackLedger(db)

	// Initialize storage, only when report archiving is enabled
	var storage port.ObjectStorage
	if cfg.S3.Enabled {
		storage, err = s3storage.NewS3Client(&cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 client: %w", err)
		}
	}

	// Initialize email sender
	var emailSender port.EmailSender
	switch cfg.Email.Provider {
	case "ses":
		emailSender, err = ses.NewSESSender(cfg.Email.Region, cfg.Email.FromAddress, cfg.Email.FromName)
		if err != nil {
			return fmt.Errorf("failed to initialize SES sender: %w", err)
		}
	default:
		emailSender = noop.NewNoopSender()
	}

	// Initialize the run pipeline
	ledgerClient := warsoft.NewClient(cfg.Ledger)
	invoices := cache.New()
	docSource := source.NewFSSource(cfg.Source.Dir, cfg.Source.Pattern)

	svc := service.NewReconciliationService(
		docSource, ledgerClient,
		adviceRepo, resultRepo, runRepo,
		emailSender, storage,
		invoices, cfg,
	)
	svc.SetCoordinator(writeback.NewCoordinator(ledgerClient, wbLedger, invoices, cfg.Writer))

	// Initialize handlers
	runH := handler.NewRunHandler(svc, runRepo)
	resultH := handler.NewResultHandler(svc, resultRepo, adviceRepo)
	healthH := handler.NewHealthHandler(db)

	// Setup router
	r := router.Setup(cfg, runH, resultH, healthH)

	log.Printf("Server starting on %s", cfg.Server.Port)
	if err := r.Run(cfg.Server.Port); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}
