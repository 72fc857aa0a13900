package extractor

import (
	"strings"

	"github.com/shopspring/decimal"
)

// amountSet is the gross/TDS/net triple with per-field confidence. Derived
// fields carry reduced confidence.
type amountSet struct {
	Gross      decimal.Decimal
	TDS        decimal.Decimal
	Net        decimal.Decimal
	Confidence map[string]float64
}

// amountTolerance is how far gross - tds may drift from net before the
// triple is flagged inconsistent.
var amountTolerance = decimal.NewFromInt(1)

// parseAmount converts a matched monetary token to a decimal, tolerating
// comma grouping. Returns false for tokens that are not plausible amounts.
func parseAmount(token string) (decimal.Decimal, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(token), ",", "")
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// extractAmounts walks the document line by line assigning labelled amounts
// to gross, TDS and net. When exactly two of the three are present, the
// missing one is derived from gross = net + tds and marked as derived.
func extractAmounts(text string) amountSet {
	set := amountSet{Confidence: map[string]float64{}}
	found := map[string]decimal.Decimal{}

	for _, line := range strings.Split(text, "\n") {
		field := ""
		for _, kw := range amountKeywords {
			if kw.re.MatchString(line) {
				field = kw.field
				break
			}
		}
		if field == "" {
			continue
		}
		if _, ok := found[field]; ok {
			continue
		}
		matches := amountRe.FindAllStringSubmatch(line, -1)
		// Take the last amount on the line; labels lead, values trail.
		for i := len(matches) - 1; i >= 0; i-- {
			if amt, ok := parseAmount(matches[i][1]); ok && amt.IsPositive() {
				found[field] = amt
				set.Confidence[field] = 0.9
				break
			}
		}
	}

	gross, hasGross := found["gross_amount"]
	tds, hasTDS := found["tds_amount"]
	net, hasNet := found["net_amount"]

	switch {
	case hasGross && hasTDS && !hasNet:
		net, hasNet = gross.Sub(tds), true
		set.Confidence["net_amount"] = 0.5
	case hasNet && hasTDS && !hasGross:
		gross, hasGross = net.Add(tds), true
		set.Confidence["gross_amount"] = 0.5
	case hasGross && hasNet && !hasTDS:
		if diff := gross.Sub(net); !diff.IsNegative() {
			tds, hasTDS = diff, true
			set.Confidence["tds_amount"] = 0.5
		}
	case hasNet && !hasGross && !hasTDS:
		// A lone net amount is also the best gross estimate.
		gross, hasGross = net, true
		set.Confidence["gross_amount"] = 0.4
	case hasGross && !hasNet && !hasTDS:
		net, hasNet = gross, true
		set.Confidence["net_amount"] = 0.4
	}

	// An inconsistent triple keeps its values but loses confidence.
	if hasGross && hasTDS && hasNet {
		if gross.Sub(tds).Sub(net).Abs().GreaterThan(amountTolerance) {
			for _, f := range []string{"gross_amount", "tds_amount", "net_amount"} {
				if set.Confidence[f] > 0.4 {
					set.Confidence[f] = 0.4
				}
			}
		}
	}

	set.Gross, set.TDS, set.Net = gross, tds, net
	return set
}
