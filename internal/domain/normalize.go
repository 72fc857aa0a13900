package domain

import "strings"

// NormalizeInvoiceKey reduces an invoice number to its canonical join key:
// uppercase with all whitespace and punctuation removed. "10ext2425 / 106"
// and "10EXT2425/106" normalize to the same key.
func NormalizeInvoiceKey(invoiceNumber string) string {
	var b strings.Builder
	b.Grow(len(invoiceNumber))
	for _, r := range invoiceNumber {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - ('a' - 'A'))
		}
	}
	return b.String()
}
