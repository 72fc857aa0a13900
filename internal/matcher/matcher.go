// Package matcher scores payment advices against the invoice cache and
// produces one reconciliation result per invoice reference.
package matcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payrecon/internal/cache"
	"payrecon/internal/config"
	"payrecon/internal/domain"
)

// Confidence weights. The invoice key always contributes its full weight
// once a lookup succeeds, so a key hit floors the score at 50.
const (
	keyWeight    = 50
	amountWeight = 30
	dateWeight   = 20
)

type Matcher struct {
	matchThreshold   int
	partialThreshold int
	amountTolerance  decimal.Decimal
	dateTolerance    time.Duration
	now              func() time.Time
}

func New(cfg config.MatcherConfig) *Matcher {
	return &Matcher{
		matchThreshold:   cfg.MatchThreshold,
		partialThreshold: cfg.PartialThreshold,
		amountTolerance:  decimal.NewFromFloat(cfg.AmountTolerance),
		dateTolerance:    cfg.DateTolerance,
		now:              time.Now,
	}
}

// Match produces one result per invoice reference on the advice. An advice
// with no references yields a single NO_INVOICE_NUMBER result routed to
// manual review. Matching is read-only against the cache.
func (m *Matcher) Match(advice *domain.PaymentAdvice, c *cache.InvoiceCache) ([]domain.ReconciliationResult, error) {
	if !advice.HasInvoiceReferences() {
		r := m.baseResult(advice, "", "")
		r.Status = domain.MatchStatusNoInvoiceNumber
		r.Confidence = 0
		r.WriteBackState = domain.WriteBackSkipped
		r.Reason = "no invoice number found in payment advice"
		return []domain.ReconciliationResult{r}, nil
	}

	type hit struct {
		rec       *domain.InvoiceRecord
		collision bool
	}
	hits := make([]hit, len(advice.InvoiceReferences))
	for i, ref := range advice.InvoiceReferences {
		rec, collision, err := c.Lookup(domain.NormalizeInvoiceKey(ref))
		if err != nil {
			return nil, err
		}
		hits[i] = hit{rec: rec, collision: collision}
	}

	allocations := m.allocate(advice, func(i int) *domain.InvoiceRecord { return hits[i].rec })

	results := make([]domain.ReconciliationResult, 0, len(advice.InvoiceReferences))
	for i, ref := range advice.InvoiceReferences {
		key := domain.NormalizeInvoiceKey(ref)
		if hits[i].rec == nil {
			r := m.baseResult(advice, ref, key)
			r.Status = domain.MatchStatusNotFound
			r.Confidence = 0
			r.WriteBackState = domain.WriteBackSkipped
			r.Reason = fmt.Sprintf("invoice %s not found among unpaid ledger invoices", ref)
			results = append(results, r)
			continue
		}
		results = append(results, m.scoreHit(advice, ref, hits[i].rec, hits[i].collision, allocations[i]))
	}
	return results, nil
}

// allocate decides the amount applied to each reference. An explicit
// per-line breakdown from the document wins; otherwise the payable amount
// is split across matched references in proportion to their outstanding
// balances, with the rounding remainder landing on the last matched one.
func (m *Matcher) allocate(advice *domain.PaymentAdvice, recAt func(int) *domain.InvoiceRecord) []decimal.Decimal {
	n := len(advice.InvoiceReferences)
	out := make([]decimal.Decimal, n)
	payable := advice.PayableAmount()

	if n == 1 {
		out[0] = payable
		return out
	}

	if len(advice.LineAmounts) > 0 {
		complete := true
		for i, ref := range advice.InvoiceReferences {
			amt, ok := advice.LineAmounts[domain.NormalizeInvoiceKey(ref)]
			if !ok {
				complete = false
				break
			}
			out[i] = amt
		}
		if complete {
			return out
		}
	}

	totalBalance := decimal.Zero
	matched := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if rec := recAt(i); rec != nil {
			totalBalance = totalBalance.Add(rec.OutstandingAmount())
			matched = append(matched, i)
		}
	}
	if len(matched) == 0 || !totalBalance.IsPositive() {
		for i := range out {
			out[i] = payable
		}
		return out
	}

	assigned := decimal.Zero
	for j, i := range matched {
		if j == len(matched)-1 {
			out[i] = payable.Sub(assigned)
			break
		}
		share := payable.Mul(recAt(i).OutstandingAmount()).Div(totalBalance).Round(2)
		out[i] = share
		assigned = assigned.Add(share)
	}
	return out
}

func (m *Matcher) scoreHit(advice *domain.PaymentAdvice, ref string, rec *domain.InvoiceRecord, collision bool, allocated decimal.Decimal) domain.ReconciliationResult {
	r := m.baseResult(advice, ref, rec.NormalizedKey)
	r.InvoiceNumber = rec.InvoiceNumber
	if rec.CustomerName != "" {
		r.CustomerName = rec.CustomerName
	}
	r.AllocatedAmt = allocated
	r.InvoiceAmount = rec.OutstandingAmount()
	r.AmountDelta = allocated.Sub(rec.OutstandingAmount()).Abs()

	var notes []string
	amountMatch := r.AmountDelta.LessThanOrEqual(m.amountTolerance)
	if !amountMatch {
		notes = append(notes, fmt.Sprintf("amount mismatch: advice %s, invoice %s, delta %s",
			allocated.StringFixed(2), rec.OutstandingAmount().StringFixed(2), r.AmountDelta.StringFixed(2)))
	}

	dateMatch := false
	if d := advice.MatchDate(); d != nil && rec.InvoiceDate != nil {
		diff := d.Sub(*rec.InvoiceDate)
		if diff < 0 {
			diff = -diff
		}
		dateMatch = diff <= m.dateTolerance
		if !dateMatch {
			notes = append(notes, fmt.Sprintf("advice date %s outside tolerance of invoice date %s",
				d.Format("2006-01-02"), rec.InvoiceDate.Format("2006-01-02")))
		}
	}

	confidence := keyWeight
	if amountMatch {
		confidence += amountWeight
	}
	if dateMatch {
		confidence += dateWeight
	}
	r.Confidence = confidence

	if collision {
		notes = append(notes, "duplicate invoice numbers in ledger, matched the larger outstanding balance")
	}
	if !rec.Status.Payable() {
		notes = append(notes, fmt.Sprintf("invoice already %s in ledger", rec.Status))
	}

	switch {
	case confidence >= m.matchThreshold:
		r.Status = domain.MatchStatusMatched
		r.WriteBackState = domain.WriteBackPending
	case confidence >= m.partialThreshold && !amountMatch:
		r.Status = domain.MatchStatusAmountMismatch
		r.WriteBackState = domain.WriteBackSkipped
	default:
		r.Status = domain.MatchStatusPartialMatch
		r.WriteBackState = domain.WriteBackSkipped
	}
	if r.Status == domain.MatchStatusMatched && !rec.Status.Payable() {
		r.WriteBackState = domain.WriteBackSkipped
	}

	r.Reason = strings.Join(notes, "; ")
	return r
}

func (m *Matcher) baseResult(advice *domain.PaymentAdvice, ref, key string) domain.ReconciliationResult {
	now := m.now()
	return domain.ReconciliationResult{
		ID:            uuid.New(),
		AdviceID:      advice.ID,
		FileName:      advice.FileName,
		BankReference: advice.BankReference,
		InvoiceNumber: ref,
		NormalizedKey: key,
		CustomerName:  advice.CustomerName,
		AdviceAmount:  advice.PayableAmount(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
