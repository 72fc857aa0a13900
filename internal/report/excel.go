// Package report renders reconciliation runs to Excel and CSV files.
package report

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"payrecon/internal/domain"
	"payrecon/internal/summary"
)

const (
	headerFill        = "2F5597"
	reviewHeaderFill  = "DC143C"
	maxColumnWidth    = 50
	sheetAllResults   = "ALL_RESULTS"
	sheetMatched      = "MATCHED"
	sheetUnmatched    = "UNMATCHED"
	sheetNotFound     = "NOT_FOUND"
	sheetSummary      = "SUMMARY"
	sheetManualReview = "NO_INVOICE_NUMBER"
)

var resultColumns = []string{
	"File Name",
	"Bank Reference",
	"Invoice Number",
	"Customer Name",
	"Match Status",
	"Confidence",
	"Advice Amount",
	"Allocated Amount",
	"Invoice Amount",
	"Amount Delta",
	"Write Back State",
	"Write Back Error",
	"Notes",
	"Created At",
}

// WriteRunWorkbook writes the main run report: matched, unmatched and
// not-found sheets plus the full list and a summary sheet.
func WriteRunWorkbook(path string, results []domain.ReconciliationResult, runSummary *domain.RunSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	groups := summary.GroupByStatus(results)
	unmatched := append([]domain.ReconciliationResult{},
		groups[domain.MatchStatusAmountMismatch]...)
	unmatched = append(unmatched, groups[domain.MatchStatusPartialMatch]...)

	sheets := []struct {
		name string
		rows []domain.ReconciliationResult
	}{
		{sheetMatched, groups[domain.MatchStatusMatched]},
		{sheetUnmatched, unmatched},
		{sheetNotFound, groups[domain.MatchStatusNotFound]},
		{sheetAllResults, results},
	}

	first := true
	for _, s := range sheets {
		if len(s.rows) == 0 && s.name != sheetAllResults {
			continue
		}
		if err := writeResultSheet(f, s.name, s.rows, headerFill, first); err != nil {
			return err
		}
		first = false
	}
	if err := writeSummarySheet(f, runSummary); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving run workbook %s: %w", path, err)
	}
	return nil
}

// WriteManualReviewWorkbook writes the separate workbook of advices that
// carried no invoice number, for manual follow-up.
func WriteManualReviewWorkbook(path string, results []domain.ReconciliationResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeResultSheet(f, sheetManualReview, results, reviewHeaderFill, true); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving manual review workbook %s: %w", path, err)
	}
	return nil
}

func writeResultSheet(f *excelize.File, name string, rows []domain.ReconciliationResult, fill string, reuseDefault bool) error {
	if reuseDefault {
		defaultName := f.GetSheetName(0)
		if err := f.SetSheetName(defaultName, name); err != nil {
			return fmt.Errorf("renaming sheet to %s: %w", name, err)
		}
	} else if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("creating sheet %s: %w", name, err)
	}

	if err := f.SetSheetRow(name, "A1", &resultColumns); err != nil {
		return fmt.Errorf("writing header on %s: %w", name, err)
	}
	for i, r := range rows {
		row := []any{
			r.FileName,
			r.BankReference,
			r.InvoiceNumber,
			r.CustomerName,
			string(r.Status),
			r.Confidence,
			r.AdviceAmount.StringFixed(2),
			r.AllocatedAmt.StringFixed(2),
			r.InvoiceAmount.StringFixed(2),
			r.AmountDelta.StringFixed(2),
			string(r.WriteBackState),
			r.WriteBackError,
			r.Reason,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		cell := "A" + strconv.Itoa(i+2)
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("writing row %d on %s: %w", i+2, name, err)
		}
	}

	return styleSheet(f, name, len(resultColumns), fill, widthsFor(rows))
}

func writeSummarySheet(f *excelize.File, s *domain.RunSummary) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return fmt.Errorf("creating summary sheet: %w", err)
	}
	rows := [][]any{
		{"Metric", "Value"},
		{"Run ID", s.RunID.String()},
		{"Started At", s.StartedAt.Format("2006-01-02 15:04:05")},
		{"Total Advices", s.TotalAdvices},
		{"Total Results", s.TotalResults},
		{"Matched", s.Matched},
		{"Amount Mismatch", s.AmountMismatch},
		{"Partial Match", s.PartialMatch},
		{"Not Found", s.NotFound},
		{"No Invoice Number", s.NoInvoiceNumber},
		{"Written To Ledger", s.Written},
		{"Write Failures", s.WriteFailed},
		{"Write Skipped", s.WriteSkipped},
		{"Matched Amount", s.MatchedAmount.StringFixed(2)},
		{"Unmatched Amount", s.UnmatchedAmount.StringFixed(2)},
	}
	for i, row := range rows {
		cell := "A" + strconv.Itoa(i+1)
		if err := f.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return fmt.Errorf("writing summary row %d: %w", i+1, err)
		}
	}
	if err := f.SetColWidth(sheetSummary, "A", "A", 24); err != nil {
		return err
	}
	return f.SetColWidth(sheetSummary, "B", "B", 40)
}

// styleSheet applies the report look: bold white header on a solid fill,
// frozen top row and content-sized columns capped at maxColumnWidth.
func styleSheet(f *excelize.File, name string, cols int, fill string, widths []float64) error {
	styleID, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF", Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fill}},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(cols)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", lastCol+"1", styleID); err != nil {
		return fmt.Errorf("styling header on %s: %w", name, err)
	}
	if err := f.SetPanes(name, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freezing header on %s: %w", name, err)
	}
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(name, col, col, w); err != nil {
			return err
		}
	}
	return nil
}

func widthsFor(rows []domain.ReconciliationResult) []float64 {
	widths := make([]float64, len(resultColumns))
	for i, h := range resultColumns {
		widths[i] = float64(len(h)) + 4
	}
	grow := func(i int, s string) {
		if w := float64(len(s)) + 4; w > widths[i] {
			widths[i] = w
		}
	}
	for _, r := range rows {
		grow(0, r.FileName)
		grow(1, r.BankReference)
		grow(2, r.InvoiceNumber)
		grow(3, r.CustomerName)
		grow(12, r.Reason)
	}
	for i := range widths {
		if widths[i] > maxColumnWidth {
			widths[i] = maxColumnWidth
		}
	}
	return widths
}
