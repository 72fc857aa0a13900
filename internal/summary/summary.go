// Package summary aggregates reconciliation results for reporting. All
// functions are pure and preserve the original advice ingestion order.
package summary

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payrecon/internal/domain"
)

// Summarize rolls a run's results up into counts by status, write-back
// totals and per-advice outcomes.
func Summarize(runID uuid.UUID, advices []domain.PaymentAdvice, results []domain.ReconciliationResult) *domain.RunSummary {
	s := &domain.RunSummary{
		RunID:           runID,
		TotalAdvices:    len(advices),
		TotalResults:    len(results),
		MatchedAmount:   decimal.Zero,
		UnmatchedAmount: decimal.Zero,
		AdviceOutcomes:  map[domain.AdviceOutcome]int{},
	}

	for _, r := range results {
		switch r.Status {
		case domain.MatchStatusMatched:
			s.Matched++
			s.MatchedAmount = s.MatchedAmount.Add(r.AllocatedAmt)
		case domain.MatchStatusAmountMismatch:
			s.AmountMismatch++
			s.UnmatchedAmount = s.UnmatchedAmount.Add(r.AllocatedAmt)
		case domain.MatchStatusPartialMatch:
			s.PartialMatch++
			s.UnmatchedAmount = s.UnmatchedAmount.Add(r.AllocatedAmt)
		case domain.MatchStatusNotFound:
			s.NotFound++
			s.UnmatchedAmount = s.UnmatchedAmount.Add(r.AdviceAmount)
		case domain.MatchStatusNoInvoiceNumber:
			s.NoInvoiceNumber++
		}
		switch r.WriteBackState {
		case domain.WriteBackWritten:
			s.Written++
		case domain.WriteBackFailed:
			s.WriteFailed++
		case domain.WriteBackSkipped:
			s.WriteSkipped++
		}
	}

	for outcome, n := range OutcomesByAdvice(results) {
		s.AdviceOutcomes[outcome] += n
	}
	return s
}

// OutcomesByAdvice computes the advice-level rollup: ALL_MATCHED only when
// every sub-result of the advice is MATCHED.
func OutcomesByAdvice(results []domain.ReconciliationResult) map[domain.AdviceOutcome]int {
	type tally struct {
		total     int
		matched   int
		noInvoice bool
	}
	perAdvice := map[uuid.UUID]*tally{}
	order := []uuid.UUID{}
	for _, r := range results {
		t, ok := perAdvice[r.AdviceID]
		if !ok {
			t = &tally{}
			perAdvice[r.AdviceID] = t
			order = append(order, r.AdviceID)
		}
		t.total++
		if r.Status == domain.MatchStatusMatched {
			t.matched++
		}
		if r.Status == domain.MatchStatusNoInvoiceNumber {
			t.noInvoice = true
		}
	}

	out := map[domain.AdviceOutcome]int{}
	for _, id := range order {
		t := perAdvice[id]
		switch {
		case t.noInvoice:
			out[domain.AdviceNoInvoiceNumber]++
		case t.matched == t.total:
			out[domain.AdviceAllMatched]++
		case t.matched > 0:
			out[domain.AdvicePartiallyMatched]++
		default:
			out[domain.AdviceNoneMatched]++
		}
	}
	return out
}

// GroupByStatus partitions results by match status, keeping each group in
// its original order.
func GroupByStatus(results []domain.ReconciliationResult) map[domain.MatchStatus][]domain.ReconciliationResult {
	out := map[domain.MatchStatus][]domain.ReconciliationResult{}
	for _, r := range results {
		out[r.Status] = append(out[r.Status], r)
	}
	return out
}
