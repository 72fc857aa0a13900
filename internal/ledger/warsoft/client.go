// Package warsoft implements the InvoiceLedger port against the Warsoft
// client-invoice API. The API is read by POSTing a page number to the
// unpaid-invoice endpoint and written by POSTing a ten-field payment
// payload; it offers no idempotency key, which is why all dedup lives in
// the write-back coordinator.
package warsoft

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"payrecon/internal/config"
	"payrecon/internal/domain"
)

const (
	readPath  = "/api/ClientInvoice/UnPaidinvoicedata"
	writePath = "/api/ClientInvoice/Push"
)

// envelopeKeys are the response keys the API has been observed wrapping
// the invoice list in, in preference order.
var envelopeKeys = []string{"unpaidInvoices", "unmappedInvoices", "data", "invoices", "results", "items", "records"}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxPages   int
	now        func() time.Time
}

func NewClient(cfg config.LedgerConfig) *Client {
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 5
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(perSec), burst),
		maxPages:   cfg.MaxPages,
		now:        time.Now,
	}
}

// invoicePayload is the wire shape of one unpaid invoice. The customer
// name key is misspelled by the API itself.
type invoicePayload struct {
	InvoiceNumber string  `json:"invoiceNumber"`
	CustomerName  string  `json:"cusotmerName"`
	InvoiceDate   string  `json:"invoicedate"`
	SubTotal      float64 `json:"subTotal"`
	CGST          float64 `json:"cgst"`
	SGST          float64 `json:"sgst"`
	IGST          float64 `json:"igst"`
	Total         float64 `json:"total"`
	Balance       float64 `json:"balance"`
	InvoiceStatus string  `json:"invoiceStatus"`
}

// FetchPage returns one page of unpaid invoices. Page numbers start at 1;
// an empty slice signals exhaustion.
func (c *Client) FetchPage(ctx context.Context, pageNo int) ([]domain.InvoiceRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]int{"pageNo": pageNo})
	if err != nil {
		return nil, fmt.Errorf("marshal page request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+readPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build page request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch unpaid invoices page %d: %w", pageNo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("fetch unpaid invoices page %d: status %d: %s", pageNo, resp.StatusCode, string(raw))
	}

	payloads, err := decodeInvoiceEnvelope(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode unpaid invoices page %d: %w", pageNo, err)
	}

	records := make([]domain.InvoiceRecord, 0, len(payloads))
	for _, p := range payloads {
		records = append(records, c.toRecord(p, pageNo))
	}
	return records, nil
}

// FetchAll pages through the ledger until an empty page or the configured
// page ceiling.
func (c *Client) FetchAll(ctx context.Context) ([]domain.InvoiceRecord, error) {
	var all []domain.InvoiceRecord
	maxPages := c.maxPages
	if maxPages <= 0 {
		maxPages = 1000
	}
	for page := 1; page <= maxPages; page++ {
		records, err := c.FetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			break
		}
		all = append(all, records...)
	}
	log.Printf("warsoft.FetchAll: fetched %d unpaid invoices", len(all))
	return all, nil
}

// PushPayment records one payment against an invoice. All ten payload
// fields except file_location must be non-empty or the API rejects the
// write; that validation runs locally so a doomed request never leaves
// the process.
func (c *Client) PushPayment(ctx context.Context, wreq *domain.PaymentWriteRequest) error {
	if err := validateWriteRequest(wreq); err != nil {
		return &domain.WriteError{Transient: false, Err: err}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return &domain.WriteError{Transient: true, Err: err}
	}

	payload := map[string]string{
		"client_name":      wreq.ClientName,
		"invoice_number":   wreq.InvoiceNumber,
		"invoice_date":     wreq.InvoiceDate,
		"amount":           wreq.Amount.StringFixed(2),
		"tds":              wreq.TDS.StringFixed(2),
		"file_name":        wreq.FileName,
		"file_location":    wreq.FileLocation,
		"bank_reference":   wreq.BankReference,
		"total_amount":     wreq.TotalAmount.StringFixed(2),
		"transaction_date": wreq.TransactionDate,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return &domain.WriteError{Transient: false, Err: fmt.Errorf("marshal payment payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+writePath, bytes.NewReader(body))
	if err != nil {
		return &domain.WriteError{Transient: false, Err: fmt.Errorf("build payment request: %w", err)}
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors and client timeouts are retryable.
		return &domain.WriteError{Transient: true, Err: fmt.Errorf("push payment for %s: %w", wreq.InvoiceNumber, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	werr := &domain.WriteError{
		StatusCode: resp.StatusCode,
		Transient:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		Err:        fmt.Errorf("push payment for %s: %s", wreq.InvoiceNumber, strings.TrimSpace(string(raw))),
	}
	return werr
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

func (c *Client) toRecord(p invoicePayload, page int) domain.InvoiceRecord {
	rec := domain.InvoiceRecord{
		InvoiceNumber: p.InvoiceNumber,
		NormalizedKey: domain.NormalizeInvoiceKey(p.InvoiceNumber),
		CustomerName:  p.CustomerName,
		SubTotal:      decimalFrom(p.SubTotal),
		CGST:          decimalFrom(p.CGST),
		SGST:          decimalFrom(p.SGST),
		IGST:          decimalFrom(p.IGST),
		Total:         decimalFrom(p.Total),
		Balance:       decimalFrom(p.Balance),
		Status:        domain.InvoiceStatus(strings.ToLower(p.InvoiceStatus)),
		Page:          page,
		FetchedAt:     c.now(),
	}
	if t, ok := parseLedgerDate(p.InvoiceDate); ok {
		rec.InvoiceDate = &t
	}
	return rec
}

// decodeInvoiceEnvelope handles the API's unstable response shapes: a bare
// array, a single invoice object, or an object wrapping the list under one
// of several keys.
func decodeInvoiceEnvelope(r io.Reader) ([]invoicePayload, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var list []invoicePayload
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	for _, key := range envelopeKeys {
		inner, ok := envelope[key]
		if !ok {
			continue
		}
		var list []invoicePayload
		if err := json.Unmarshal(inner, &list); err == nil {
			return list, nil
		}
	}
	if _, ok := envelope["invoiceNumber"]; ok {
		var single invoicePayload
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, err
		}
		return []invoicePayload{single}, nil
	}
	return nil, nil
}

func validateWriteRequest(req *domain.PaymentWriteRequest) error {
	var missing []string
	if req.ClientName == "" {
		missing = append(missing, "client_name")
	}
	if req.InvoiceNumber == "" {
		missing = append(missing, "invoice_number")
	}
	if req.InvoiceDate == "" {
		missing = append(missing, "invoice_date")
	}
	if !req.Amount.IsPositive() {
		missing = append(missing, "amount")
	}
	if req.FileName == "" {
		missing = append(missing, "file_name")
	}
	if req.BankReference == "" {
		missing = append(missing, "bank_reference")
	}
	if !req.TotalAmount.IsPositive() {
		missing = append(missing, "total_amount")
	}
	if req.TransactionDate == "" {
		missing = append(missing, "transaction_date")
	}
	if len(missing) > 0 {
		return errors.New("payment payload missing required fields: " + strings.Join(missing, ", "))
	}
	return nil
}

var ledgerDateLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006", "2006-01-02T15:04:05"}

func parseLedgerDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range ledgerDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func decimalFrom(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
