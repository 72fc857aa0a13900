package noop

import (
	"context"
	"log"
	"strings"

	"payrecon/internal/domain"
	"payrecon/internal/port"
)

type noopSender struct{}

// NewNoopSender creates a no-op EmailSender that logs run summaries to stdout.
func NewNoopSender() port.EmailSender {
	return &noopSender{}
}

func (s *noopSender) SendRunSummary(_ context.Context, recipients []string, summary *domain.RunSummary) error {
	log.Printf("[NOOP EMAIL] Run %s summary to %s: %d advices, %d matched, %d written",
		summary.RunID, strings.Join(recipients, ", "),
		summary.TotalAdvices, summary.Matched, summary.Written)
	return nil
}
