package ses

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"payrecon/internal/domain"
	"payrecon/internal/port"
)

type sesSender struct {
	client      *sesv2.Client
	fromAddress string
	fromName    string
}

// NewSESSender creates a new SES-backed EmailSender.
func NewSESSender(region, fromAddress, fromName string) (port.EmailSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	return &sesSender{
		client:      sesv2.NewFromConfig(cfg),
		fromAddress: fromAddress,
		fromName:    fromName,
	}, nil
}

func (s *sesSender) SendRunSummary(ctx context.Context, recipients []string, summary *domain.RunSummary) error {
	if len(recipients) == 0 {
		return nil
	}

	subject := fmt.Sprintf("Reconciliation run %s: %d matched, %d unmatched",
		summary.StartedAt.Format("2006-01-02"),
		summary.Matched,
		summary.AmountMismatch+summary.PartialMatch+summary.NotFound)
	htmlBody := buildRunSummaryHTML(summary)
	textBody := buildRunSummaryText(summary)
	from := fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &from,
		Destination: &types.Destination{
			ToAddresses: recipients,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject},
				Body: &types.Body{
					Html: &types.Content{Data: &htmlBody},
					Text: &types.Content{Data: &textBody},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}

func buildRunSummaryText(s *domain.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reconciliation run %s\n\n", s.RunID)
	fmt.Fprintf(&b, "Advices processed: %d\n", s.TotalAdvices)
	fmt.Fprintf(&b, "Matched: %d (amount %s)\n", s.Matched, s.MatchedAmount.StringFixed(2))
	fmt.Fprintf(&b, "Amount mismatch: %d\n", s.AmountMismatch)
	fmt.Fprintf(&b, "Partial match: %d\n", s.PartialMatch)
	fmt.Fprintf(&b, "Not found: %d\n", s.NotFound)
	fmt.Fprintf(&b, "No invoice number: %d\n", s.NoInvoiceNumber)
	fmt.Fprintf(&b, "Written to ledger: %d, failed: %d, skipped: %d\n", s.Written, s.WriteFailed, s.WriteSkipped)
	return b.String()
}

func buildRunSummaryHTML(s *domain.RunSummary) string {
	rows := [][2]string{
		{"Advices processed", fmt.Sprintf("%d", s.TotalAdvices)},
		{"Matched", fmt.Sprintf("%d (₹%s)", s.Matched, s.MatchedAmount.StringFixed(2))},
		{"Amount mismatch", fmt.Sprintf("%d", s.AmountMismatch)},
		{"Partial match", fmt.Sprintf("%d", s.PartialMatch)},
		{"Not found", fmt.Sprintf("%d", s.NotFound)},
		{"No invoice number", fmt.Sprintf("%d", s.NoInvoiceNumber)},
		{"Written to ledger", fmt.Sprintf("%d", s.Written)},
		{"Write failures", fmt.Sprintf("%d", s.WriteFailed)},
		{"Write skipped", fmt.Sprintf("%d", s.WriteSkipped)},
	}
	var tableRows strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&tableRows,
			`<tr><td style="padding: 6px 12px; border-bottom: 1px solid #eee;">%s</td><td style="padding: 6px 12px; border-bottom: 1px solid #eee; text-align: right;">%s</td></tr>`,
			r[0], r[1])
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">Payment reconciliation summary</h2>
  <p>Run %s started %s.</p>
  <table style="border-collapse: collapse; width: 100%%;">%s</table>
  <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
  <p style="color: #999; font-size: 12px;">PayRecon - Payment Advice Reconciliation</p>
</body>
</html>`, s.RunID, s.StartedAt.Format("2006-01-02 15:04"), tableRows.String())
}
