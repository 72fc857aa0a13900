package domain

// FileType represents the allowed document types for payment advices.
type FileType string

const (
	FileTypePDF FileType = "pdf"
	FileTypeTXT FileType = "txt"
)

// AllowedExtensions maps file extensions (without dot) to FileType.
var AllowedExtensions = map[string]FileType{
	"pdf": FileTypePDF,
	"txt": FileTypeTXT,
}

// MatchStatus classifies the outcome of matching one invoice reference
// against the ledger cache.
type MatchStatus string

const (
	MatchStatusMatched         MatchStatus = "MATCHED"
	MatchStatusAmountMismatch  MatchStatus = "AMOUNT_MISMATCH"
	MatchStatusPartialMatch    MatchStatus = "PARTIAL_MATCH"
	MatchStatusNotFound        MatchStatus = "NOT_FOUND"
	MatchStatusNoInvoiceNumber MatchStatus = "NO_INVOICE_NUMBER"
)

// WriteBackState tracks the lifecycle of the external ledger write for a
// reconciliation result. PENDING may only move to WRITTEN or FAILED;
// WRITTEN is terminal.
type WriteBackState string

const (
	WriteBackPending WriteBackState = "PENDING"
	WriteBackWritten WriteBackState = "WRITTEN"
	WriteBackFailed  WriteBackState = "FAILED"
	WriteBackSkipped WriteBackState = "SKIPPED"
)

// CanTransitionWriteBack reports whether a write-back state change is legal.
func CanTransitionWriteBack(from, to WriteBackState) bool {
	if from == to {
		return true
	}
	switch from {
	case WriteBackPending:
		return to == WriteBackWritten || to == WriteBackFailed || to == WriteBackSkipped
	default:
		return false
	}
}

// AdviceOutcome is the advice-level rollup across all of its invoice
// references.
type AdviceOutcome string

const (
	AdviceAllMatched       AdviceOutcome = "ALL_MATCHED"
	AdvicePartiallyMatched AdviceOutcome = "PARTIALLY_MATCHED"
	AdviceNoneMatched      AdviceOutcome = "NONE_MATCHED"
	AdviceNoInvoiceNumber  AdviceOutcome = "NO_INVOICE_NUMBER"
)

// InvoiceStatus mirrors the external ledger's invoice lifecycle.
type InvoiceStatus string

const (
	InvoiceStatusUnpaid  InvoiceStatus = "unpaid"
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
	InvoiceStatusPaid    InvoiceStatus = "paid"
)

// Payable reports whether an invoice in this status can still receive a
// payment write-back.
func (s InvoiceStatus) Payable() bool {
	switch s {
	case InvoiceStatusUnpaid, InvoiceStatusPending, InvoiceStatusOverdue:
		return true
	default:
		return false
	}
}

// RunState is the lifecycle of a reconciliation run.
type RunState string

const (
	RunStateIdle      RunState = "idle"
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
)
