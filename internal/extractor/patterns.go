package extractor

import "regexp"

// invoicePattern is one candidate-generating pattern with a specificity
// weight. Longer, more structured tokens outrank generic digit runs.
type invoicePattern struct {
	re          *regexp.Regexp
	specificity float64
}

// invoicePatterns is applied in order; every match becomes a candidate and
// the per-candidate score combines specificity with keyword proximity.
var invoicePatterns = []invoicePattern{
	// Structured series numbers like 10EXT2425/106 or 24HBT001/1042.
	{regexp.MustCompile(`(?i)\b\d{2}[A-Z]{2,4}\d{2,4}/\d{1,6}\b`), 1.0},
	// Series with dash or slash separators, e.g. INV-2425-0017 or SER/24/105.
	{regexp.MustCompile(`(?i)\b[A-Z]{2,6}[-/]\d{2,4}[-/]\d{1,6}\b`), 0.9},
	// Prefixed plain numbers, e.g. INV00452 or BILL 7841.
	{regexp.MustCompile(`(?i)\b(?:INV|BILL|IN)[-/ ]?\d{3,8}\b`), 0.7},
	// Bare digit runs are the weakest candidates.
	{regexp.MustCompile(`\b\d{4,8}\b`), 0.3},
}

// slashBreakRe finds a line wrap on either side of a slash. Series numbers
// in scanned advices often break as "10EXT2425/\n106".
var slashBreakRe = regexp.MustCompile(`/[ \t]*\r?\n[ \t]*|[ \t]*\r?\n[ \t]*/`)

// invoiceKeywordRe anchors candidate scoring: candidates inside a window
// around one of these words score higher.
var invoiceKeywordRe = regexp.MustCompile(`(?i)\b(?:invoice|inv|bill)\s*(?:no|number|#|num)?\b`)

// invoiceKeywordWindow is the character distance within which a candidate
// counts as adjacent to an invoice keyword.
const invoiceKeywordWindow = 80

// bankReferenceRe is the generic fallback for transaction identifiers when
// no known bank prefix matches. UTRs run 10 to 25 characters.
var bankReferenceRe = regexp.MustCompile(`\b[A-Z]{2,6}[A-Z0-9]{8,21}\b`)

// utrKeywordRe locates labelled reference numbers.
var utrKeywordRe = regexp.MustCompile(`(?i)\b(?:utr|transaction\s+ref(?:erence)?|payment\s+ref(?:erence)?|bank\s+ref(?:erence)?|ref(?:erence)?\s*(?:no|number|#)?)\s*[:.\-]?\s*([A-Za-z0-9]{10,25})`)

// amountRe matches monetary tokens with optional currency markers and
// Indian or western digit grouping.
var amountRe = regexp.MustCompile(`(?:₹|Rs\.?|INR)?\s*([0-9]{1,3}(?:,[0-9]{2,3})*(?:\.[0-9]{1,2})?|[0-9]+(?:\.[0-9]{1,2})?)\b`)

// amountKeywords assigns a matched amount to a field by the label found on
// its line. Checked in order so the more specific labels win.
var amountKeywords = []struct {
	re    *regexp.Regexp
	field string
}{
	{regexp.MustCompile(`(?i)\btds\b|tax\s+deducted`), "tds_amount"},
	{regexp.MustCompile(`(?i)\bnet\s+(?:payment\s+)?amount\b|amount\s+paid|amount\s+credited|\bcredited\b|\bnet\b`), "net_amount"},
	{regexp.MustCompile(`(?i)\bgross\b|bill\s+amount|invoice\s+amount|total\s+amount|\btotal\b`), "gross_amount"},
}

// customerKeywordRe anchors remitter name extraction.
var customerKeywordRe = regexp.MustCompile(`(?i)\b(?:remitter|payer|customer|client|from|ordering\s+customer)\s*(?:name)?\s*[:.\-]\s*(.+)`)

// paymentDateKeywordRe marks a date as the payment/value date.
var paymentDateKeywordRe = regexp.MustCompile(`(?i)\b(?:payment\s+date|value\s+date|paid\s+on|credit\s+date|transaction\s+date)\b`)

// noisePhrases are line fragments that disqualify a customer name capture.
var noisePhrases = []string{"payment advice", "page", "confidential", "dear sir"}
