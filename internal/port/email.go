package port

import (
	"context"

	"payrecon/internal/domain"
)

// EmailSender defines the contract for sending run notification emails.
type EmailSender interface {
	SendRunSummary(ctx context.Context, recipients []string, summary *domain.RunSummary) error
}
