package extractor

import (
	"regexp"
	"strings"
	"time"
)

// dateCandidate is one date found in the document with its byte offset.
type dateCandidate struct {
	value  time.Time
	offset int
}

// datePatterns pairs a locating regex with the layouts tried on its match.
// Numeric day-first forms come before ISO so Indian advices parse correctly.
var datePatterns = []struct {
	re      *regexp.Regexp
	layouts []string
}{
	{
		regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{4}\b`),
		[]string{"02/01/2006", "2/1/2006", "02-01-2006", "2-1-2006"},
	},
	{
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		[]string{"2006-01-02"},
	},
	{
		regexp.MustCompile(`\b\d{1,2}\.\d{1,2}\.\d{4}\b`),
		[]string{"02.01.2006", "2.1.2006"},
	},
	{
		regexp.MustCompile(`\b\d{1,2}[ -](?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*[ -,]+\d{4}\b`),
		[]string{"02 Jan 2006", "2 Jan 2006", "02-Jan-2006", "2-Jan-2006", "02 January 2006", "2 January 2006", "02 Jan, 2006", "2 Jan, 2006"},
	},
	{
		regexp.MustCompile(`\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]* \d{1,2},? \d{4}\b`),
		[]string{"Jan 2, 2006", "Jan 02, 2006", "January 2, 2006", "January 02, 2006", "Jan 2 2006", "January 2 2006"},
	},
}

// findDates returns every parseable date in the text with its position,
// in document order.
func findDates(text string) []dateCandidate {
	var out []dateCandidate
	seen := map[int]bool{}
	for _, dp := range datePatterns {
		for _, loc := range dp.re.FindAllStringIndex(text, -1) {
			if seen[loc[0]] {
				continue
			}
			raw := normalizeDateToken(text[loc[0]:loc[1]])
			for _, layout := range dp.layouts {
				if t, err := time.Parse(layout, raw); err == nil {
					out = append(out, dateCandidate{value: t, offset: loc[0]})
					seen[loc[0]] = true
					break
				}
			}
		}
	}
	sortByOffset(out)
	return out
}

func normalizeDateToken(s string) string {
	s = strings.TrimSpace(s)
	// Collapse "Feb-2025" month separators so the space-based layouts apply.
	if strings.Count(s, "-") == 2 && strings.ContainsAny(s, "JFMASONDjfmasond") {
		s = strings.ReplaceAll(s, "-", " ")
	}
	return s
}

func sortByOffset(cands []dateCandidate) {
	for i := 1; i < len(cands); i++ {
		for j := i; j > 0 && cands[j].offset < cands[j-1].offset; j-- {
			cands[j], cands[j-1] = cands[j-1], cands[j]
		}
	}
}

// classifyDates assigns found dates to invoice, transaction and payment
// date fields. A date adjacent to an invoice reference is the invoice date;
// a date after a payment/value-date label is the payment date; the first
// date in the document header is the transaction date. Unlabelled leftovers
// stay nil rather than guessed.
func classifyDates(text string, cands []dateCandidate, refOffsets []int) (invoice, transaction, payment *time.Time) {
	const adjacency = 60
	const headerWindow = 250

	used := make([]bool, len(cands))

	for i, c := range cands {
		for _, ro := range refOffsets {
			d := c.offset - ro
			if d < 0 {
				d = -d
			}
			if d <= adjacency {
				if invoice == nil {
					v := c.value
					invoice = &v
					used[i] = true
				}
				break
			}
		}
	}

	for _, loc := range paymentDateKeywordRe.FindAllStringIndex(text, -1) {
		for i, c := range cands {
			if used[i] {
				continue
			}
			if c.offset >= loc[1] && c.offset-loc[1] <= adjacency {
				v := c.value
				payment = &v
				used[i] = true
				break
			}
		}
		if payment != nil {
			break
		}
	}

	for i, c := range cands {
		if used[i] {
			continue
		}
		if c.offset < headerWindow {
			v := c.value
			transaction = &v
			used[i] = true
			break
		}
	}

	return invoice, transaction, payment
}
