package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"payrecon/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// Writer wraps csv.Writer for exporting reconciliation results as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the column header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(resultColumns)
}

// WriteResults converts a batch of results to CSV rows and writes them.
func (w *Writer) WriteResults(results []domain.ReconciliationResult) error {
	for i := range results {
		if err := w.csv.Write(resultToRow(&results[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

func resultToRow(r *domain.ReconciliationResult) []string {
	return []string{
		r.FileName,
		r.BankReference,
		r.InvoiceNumber,
		r.CustomerName,
		string(r.Status),
		strconv.Itoa(r.Confidence),
		r.AdviceAmount.StringFixed(2),
		r.AllocatedAmt.StringFixed(2),
		r.InvoiceAmount.StringFixed(2),
		r.AmountDelta.StringFixed(2),
		string(r.WriteBackState),
		r.WriteBackError,
		r.Reason,
		r.CreatedAt.Format(time.RFC3339),
	}
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a name for use in filenames and
// Content-Disposition headers.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized, dated report filename.
func BuildFilename(prefix, ext string) string {
	return fmt.Sprintf("%s_%s.%s", SanitizeFilename(prefix), time.Now().Format("2006-01-02"), ext)
}
