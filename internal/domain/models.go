package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentAdvice is a structured representation of one bank payment advice
// extracted from raw document text.
type PaymentAdvice struct {
	ID                uuid.UUID                  `db:"id" json:"id"`
	FileName          string                     `db:"file_name" json:"file_name"`
	FileLocation      string                     `db:"file_location" json:"file_location"`
	BankReference     string                     `db:"bank_reference" json:"bank_reference"`
	BankName          string                     `db:"bank_name" json:"bank_name"`
	CustomerName      string                     `db:"customer_name" json:"customer_name"`
	InvoiceDate       *time.Time                 `db:"invoice_date" json:"invoice_date"`
	TransactionDate   *time.Time                 `db:"transaction_date" json:"transaction_date"`
	PaymentDate       *time.Time                 `db:"payment_date" json:"payment_date"`
	GrossAmount       decimal.Decimal            `db:"gross_amount" json:"gross_amount"`
	TDSAmount         decimal.Decimal            `db:"tds_amount" json:"tds_amount"`
	NetAmount         decimal.Decimal            `db:"net_amount" json:"net_amount"`
	InvoiceReferences []string                   `db:"-" json:"invoice_references"`
	LineAmounts       map[string]decimal.Decimal `db:"-" json:"line_amounts,omitempty"`
	FieldConfidence   map[string]float64         `db:"-" json:"field_confidence,omitempty"`
	RawText           string                     `db:"raw_text" json:"-"`
	CreatedAt         time.Time                  `db:"created_at" json:"created_at"`
}

// MatchDate returns the advice date most relevant for invoice matching:
// invoice date when extracted, else payment date, else transaction date.
func (a *PaymentAdvice) MatchDate() *time.Time {
	switch {
	case a.InvoiceDate != nil:
		return a.InvoiceDate
	case a.PaymentDate != nil:
		return a.PaymentDate
	default:
		return a.TransactionDate
	}
}

// HasInvoiceReferences reports whether extraction found at least one
// candidate invoice number.
func (a *PaymentAdvice) HasInvoiceReferences() bool {
	return len(a.InvoiceReferences) > 0
}

// PayableAmount is the amount credited to the bank account. Net amount when
// TDS was deducted, gross otherwise.
func (a *PaymentAdvice) PayableAmount() decimal.Decimal {
	if a.NetAmount.IsPositive() {
		return a.NetAmount
	}
	return a.GrossAmount
}

// InvoiceRecord is one unpaid invoice as reported by the external ledger.
type InvoiceRecord struct {
	InvoiceNumber string          `db:"invoice_number" json:"invoice_number"`
	NormalizedKey string          `db:"normalized_key" json:"normalized_key"`
	CustomerName  string          `db:"customer_name" json:"customer_name"`
	InvoiceDate   *time.Time      `db:"invoice_date" json:"invoice_date"`
	SubTotal      decimal.Decimal `db:"sub_total" json:"sub_total"`
	CGST          decimal.Decimal `db:"cgst" json:"cgst"`
	SGST          decimal.Decimal `db:"sgst" json:"sgst"`
	IGST          decimal.Decimal `db:"igst" json:"igst"`
	Total         decimal.Decimal `db:"total" json:"total"`
	Balance       decimal.Decimal `db:"balance" json:"balance"`
	Status        InvoiceStatus   `db:"status" json:"status"`
	Page          int             `db:"page" json:"page"`
	FetchedAt     time.Time       `db:"fetched_at" json:"fetched_at"`
}

// OutstandingAmount is the amount still expected for this invoice. Balance
// when the ledger reports one, total otherwise.
func (r *InvoiceRecord) OutstandingAmount() decimal.Decimal {
	if r.Balance.IsPositive() {
		return r.Balance
	}
	return r.Total
}

// ReconciliationResult records the outcome of matching one invoice reference
// of one payment advice, and the state of its downstream ledger write.
type ReconciliationResult struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	RunID          uuid.UUID       `db:"run_id" json:"run_id"`
	AdviceID       uuid.UUID       `db:"advice_id" json:"advice_id"`
	FileName       string          `db:"file_name" json:"file_name"`
	BankReference  string          `db:"bank_reference" json:"bank_reference"`
	InvoiceNumber  string          `db:"invoice_number" json:"invoice_number"`
	NormalizedKey  string          `db:"normalized_key" json:"normalized_key"`
	CustomerName   string          `db:"customer_name" json:"customer_name"`
	Status         MatchStatus     `db:"status" json:"status"`
	Confidence     int             `db:"confidence" json:"confidence"`
	AdviceAmount   decimal.Decimal `db:"advice_amount" json:"advice_amount"`
	AllocatedAmt   decimal.Decimal `db:"allocated_amount" json:"allocated_amount"`
	InvoiceAmount  decimal.Decimal `db:"invoice_amount" json:"invoice_amount"`
	AmountDelta    decimal.Decimal `db:"amount_delta" json:"amount_delta"`
	WriteBackState WriteBackState  `db:"write_back_state" json:"write_back_state"`
	WriteBackError string          `db:"write_back_error" json:"write_back_error"`
	Reason         string          `db:"reason" json:"reason"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// WriteEligible reports whether this result should be dispatched to the
// write-back coordinator.
func (r *ReconciliationResult) WriteEligible() bool {
	return r.Status == MatchStatusMatched && r.WriteBackState == WriteBackPending
}

// WriteBackRecord is one durable idempotency ledger entry keyed by
// (advice_id, invoice normalized key).
type WriteBackRecord struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	AdviceID      uuid.UUID      `db:"advice_id" json:"advice_id"`
	NormalizedKey string         `db:"normalized_key" json:"normalized_key"`
	InvoiceNumber string         `db:"invoice_number" json:"invoice_number"`
	BankReference string         `db:"bank_reference" json:"bank_reference"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	State         WriteBackState `db:"state" json:"state"`
	Attempts      int            `db:"attempts" json:"attempts"`
	LastError     string         `db:"last_error" json:"last_error"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// PaymentWriteRequest is the payload sent to the external ledger to record
// a payment against an invoice.
type PaymentWriteRequest struct {
	ClientName      string          `json:"client_name"`
	InvoiceNumber   string          `json:"invoice_number"`
	InvoiceDate     string          `json:"invoice_date"`
	Amount          decimal.Decimal `json:"amount"`
	TDS             decimal.Decimal `json:"tds"`
	FileName        string          `json:"file_name"`
	FileLocation    string          `json:"file_location"`
	BankReference   string          `json:"bank_reference"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	TransactionDate string          `json:"transaction_date"`
}

// RunRecord is the persisted header of one reconciliation run.
type RunRecord struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	State       RunState   `db:"state" json:"state"`
	StartedAt   time.Time  `db:"started_at" json:"started_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at"`
	Error       string     `db:"error" json:"error,omitempty"`
}

// RunSummary is the aggregate view of one reconciliation run.
type RunSummary struct {
	RunID           uuid.UUID             `json:"run_id"`
	StartedAt       time.Time             `json:"started_at"`
	CompletedAt     *time.Time            `json:"completed_at"`
	State           RunState              `json:"state"`
	TotalAdvices    int                   `json:"total_advices"`
	TotalResults    int                   `json:"total_results"`
	Matched         int                   `json:"matched"`
	AmountMismatch  int                   `json:"amount_mismatch"`
	PartialMatch    int                   `json:"partial_match"`
	NotFound        int                   `json:"not_found"`
	NoInvoiceNumber int                   `json:"no_invoice_number"`
	Written         int                   `json:"written"`
	WriteFailed     int                   `json:"write_failed"`
	WriteSkipped    int                   `json:"write_skipped"`
	MatchedAmount   decimal.Decimal       `json:"matched_amount"`
	UnmatchedAmount decimal.Decimal       `json:"unmatched_amount"`
	AdviceOutcomes  map[AdviceOutcome]int `json:"advice_outcomes"`
	Error           string                `json:"error,omitempty"`
}

// RunProgress is the live progress view exposed while a run is in flight.
type RunProgress struct {
	RunID     uuid.UUID `json:"run_id"`
	State     RunState  `json:"state"`
	Stage     string    `json:"stage"`
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	StartedAt time.Time `json:"started_at"`
}
