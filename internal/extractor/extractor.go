// Package extractor turns raw payment advice text into structured records.
// Extraction never fails: a document yielding no usable fields still
// produces an advice with empty invoice references and low confidence, so
// it can be routed to manual review instead of dropped.
package extractor

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payrecon/internal/domain"
	"payrecon/internal/port"
)

// keepThreshold is the minimum candidate score for an invoice reference to
// survive scoring. A generic digit run only clears it when an invoice
// keyword sits nearby.
const keepThreshold = 0.6

// keywordBonus is added to a candidate's specificity when it falls inside
// an invoice keyword window.
const keywordBonus = 0.5

type Extractor struct {
	now func() time.Time
}

func New() *Extractor {
	return &Extractor{now: time.Now}
}

// Extract converts one raw advice document into structured payment advices.
// It returns at least one advice per document and never returns an error.
func (e *Extractor) Extract(doc port.AdviceDocument) []domain.PaymentAdvice {
	text := rejoinSlashBreaks(doc.Text)

	refs, refOffsets, refConf := e.extractInvoiceReferences(text)
	amounts := extractAmounts(text)
	invoiceDate, transactionDate, paymentDate := classifyDates(text, findDates(text), refOffsets)
	bankRef, bankName, bankConf := e.extractBankReference(text)
	customer, customerConf := e.extractCustomerName(text, doc.SenderName)
	lineAmounts := e.extractLineAmounts(text, refs, refOffsets)

	conf := map[string]float64{}
	for k, v := range amounts.Confidence {
		conf[k] = v
	}
	if len(refs) > 0 {
		conf["invoice_references"] = refConf
	}
	if invoiceDate != nil {
		conf["invoice_date"] = 0.8
	}
	if transactionDate != nil {
		conf["transaction_date"] = 0.7
	}
	if paymentDate != nil {
		conf["payment_date"] = 0.8
	}
	if bankRef != "" {
		conf["bank_reference"] = bankConf
	}
	if bankName != "" {
		conf["bank_name"] = bankConf
	}
	if customer != "" {
		conf["customer_name"] = customerConf
	}

	advice := domain.PaymentAdvice{
		ID:                uuid.New(),
		FileName:          doc.FileName,
		FileLocation:      doc.Location,
		BankReference:     bankRef,
		BankName:          bankName,
		CustomerName:      customer,
		InvoiceDate:       invoiceDate,
		TransactionDate:   transactionDate,
		PaymentDate:       paymentDate,
		GrossAmount:       amounts.Gross,
		TDSAmount:         amounts.TDS,
		NetAmount:         amounts.Net,
		InvoiceReferences: refs,
		LineAmounts:       lineAmounts,
		FieldConfidence:   conf,
		RawText:           doc.Text,
		CreatedAt:         e.now(),
	}
	return []domain.PaymentAdvice{advice}
}

// extractInvoiceReferences generates candidates from the ordered pattern
// table, scores them by specificity plus keyword proximity, and keeps the
// distinct survivors in document order.
func (e *Extractor) extractInvoiceReferences(text string) (refs []string, offsets []int, confidence float64) {
	var keywordSpans [][]int
	for _, loc := range invoiceKeywordRe.FindAllStringIndex(text, -1) {
		keywordSpans = append(keywordSpans, loc)
	}
	var dateSpans [][]int
	for _, dp := range datePatterns {
		dateSpans = append(dateSpans, dp.re.FindAllStringIndex(text, -1)...)
	}

	type candidate struct {
		raw    string
		key    string
		offset int
		score  float64
	}
	var cands []candidate
	covered := func(start, end int) bool {
		for _, c := range cands {
			if start < c.offset+len(c.raw) && c.offset < end {
				return true
			}
		}
		return false
	}

	for _, pat := range invoicePatterns {
		for _, loc := range pat.re.FindAllStringIndex(text, -1) {
			if covered(loc[0], loc[1]) || overlapsAny(loc, dateSpans) {
				continue
			}
			score := pat.specificity
			if nearAny(loc[0], keywordSpans, invoiceKeywordWindow) {
				score += keywordBonus
			}
			cands = append(cands, candidate{
				raw:    text[loc[0]:loc[1]],
				key:    domain.NormalizeInvoiceKey(text[loc[0]:loc[1]]),
				offset: loc[0],
				score:  score,
			})
		}
	}

	seen := map[string]bool{}
	var total float64
	for _, c := range cands {
		if c.score < keepThreshold || c.key == "" || seen[c.key] {
			continue
		}
		seen[c.key] = true
		refs = append(refs, c.raw)
		offsets = append(offsets, c.offset)
		total += c.score
	}
	// Candidates arrive grouped by pattern; restore document order.
	for i := 1; i < len(refs); i++ {
		for j := i; j > 0 && offsets[j] < offsets[j-1]; j-- {
			offsets[j], offsets[j-1] = offsets[j-1], offsets[j]
			refs[j], refs[j-1] = refs[j-1], refs[j]
		}
	}
	if len(refs) > 0 {
		confidence = total / float64(len(refs))
		if confidence > 1 {
			confidence = 1
		}
	}
	return refs, offsets, confidence
}

// extractBankReference prefers a labelled UTR, then any token carrying a
// known bank prefix, then the generic reference shape.
func (e *Extractor) extractBankReference(text string) (ref, bank string, confidence float64) {
	if m := utrKeywordRe.FindStringSubmatch(text); m != nil {
		ref = strings.ToUpper(m[1])
		bank, _ = lookupBankPrefix(ref)
		return ref, bank, 0.9
	}

	upper := strings.ToUpper(text)
	var fallback string
	for _, tok := range bankReferenceRe.FindAllString(upper, -1) {
		if digitCount(tok) < 4 {
			continue
		}
		if b, ok := lookupBankPrefix(tok); ok {
			return tok, b, 0.8
		}
		if fallback == "" {
			fallback = tok
		}
	}
	if fallback != "" {
		return fallback, "", 0.4
	}
	return "", "", 0
}

// rejoinSlashBreaks glues series numbers back together when a scanned
// advice wraps a line on either side of the slash.
func rejoinSlashBreaks(text string) string {
	return slashBreakRe.ReplaceAllString(text, "/")
}

// extractCustomerName pulls the remitter from a labelled line, falling
// back to the document's sender identity at reduced confidence.
func (e *Extractor) extractCustomerName(text, sender string) (string, float64) {
	for _, line := range strings.Split(text, "\n") {
		m := customerKeywordRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if name == "" || len(name) > 60 || digitCount(name) > len(name)/2 {
			continue
		}
		lower := strings.ToLower(name)
		noisy := false
		for _, p := range noisePhrases {
			if strings.Contains(lower, p) {
				noisy = true
				break
			}
		}
		if noisy {
			continue
		}
		return name, 0.7
	}
	if sender = strings.TrimSpace(sender); sender != "" {
		return sender, 0.4
	}
	return "", 0
}

// extractLineAmounts captures an explicit per-invoice amount breakdown: an
// amount trailing an invoice reference on its own line.
func (e *Extractor) extractLineAmounts(text string, refs []string, offsets []int) map[string]decimal.Decimal {
	out := map[string]decimal.Decimal{}
	for i, ref := range refs {
		lineEnd := strings.IndexByte(text[offsets[i]:], '\n')
		if lineEnd < 0 {
			lineEnd = len(text) - offsets[i]
		}
		rest := text[offsets[i]+len(ref) : offsets[i]+lineEnd]
		matches := amountRe.FindAllStringSubmatch(rest, -1)
		for j := len(matches) - 1; j >= 0; j-- {
			if amt, ok := parseAmount(matches[j][1]); ok && amt.IsPositive() {
				out[domain.NormalizeInvoiceKey(ref)] = amt
				break
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func overlapsAny(loc []int, spans [][]int) bool {
	for _, s := range spans {
		if loc[0] < s[1] && s[0] < loc[1] {
			return true
		}
	}
	return false
}

func nearAny(offset int, spans [][]int, window int) bool {
	for _, s := range spans {
		d := offset - s[1]
		if d < 0 {
			d = s[0] - offset
		}
		if d >= 0 && d <= window {
			return true
		}
		if offset >= s[0] && offset <= s[1] {
			return true
		}
	}
	return false
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
