package handler

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"payrecon/internal/domain"
	"payrecon/internal/port"
	"payrecon/internal/report"
	"payrecon/internal/service"
)

// exportPageSize bounds each repository read while streaming an export.
const exportPageSize = 500

// ResultHandler exposes stored reconciliation results and advices.
type ResultHandler struct {
	svc        *service.ReconciliationService
	resultRepo port.ResultRepository
	adviceRepo port.AdviceRepository
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(svc *service.ReconciliationService, resultRepo port.ResultRepository, adviceRepo port.AdviceRepository) *ResultHandler {
	return &ResultHandler{svc: svc, resultRepo: resultRepo, adviceRepo: adviceRepo}
}

// validStatuses defines the allowed status filter values.
var validStatuses = map[domain.MatchStatus]bool{
	domain.MatchStatusMatched:         true,
	domain.MatchStatusAmountMismatch:  true,
	domain.MatchStatusPartialMatch:    true,
	domain.MatchStatusNotFound:        true,
	domain.MatchStatusNoInvoiceNumber: true,
}

// ListByRun handles GET /api/v1/runs/:id/results
// Optional ?status= filters to a single match status.
func (h *ResultHandler) ListByRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid run ID format")
		return
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := domain.MatchStatus(statusStr)
		if !validStatuses[status] {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST",
				"invalid 'status': must be one of MATCHED, AMOUNT_MISMATCH, PARTIAL_MATCH, NOT_FOUND, NO_INVOICE_NUMBER")
			return
		}
		results, err := h.resultRepo.ListByStatus(c.Request.Context(), runID, status)
		if err != nil {
			HandleError(c, err)
			return
		}
		RespondOK(c, results)
		return
	}

	offset, limit, ok := parsePagination(c)
	if !ok {
		return
	}
	results, total, err := h.resultRepo.ListByRun(c.Request.Context(), runID, offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondPaginated(c, results, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// GetByID handles GET /api/v1/results/:id
func (h *ResultHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid result ID format")
		return
	}

	result, err := h.resultRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, result)
}

// Search handles GET /api/v1/results/search?invoice=
// Matches on the normalized invoice key, so punctuation and case in the
// query do not matter.
func (h *ResultHandler) Search(c *gin.Context) {
	invoice := c.Query("invoice")
	if invoice == "" {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invoice query parameter is required")
		return
	}

	results, err := h.resultRepo.SearchByInvoice(c.Request.Context(), invoice)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, results)
}

// ExportCSV handles GET /api/v1/runs/:id/export
// Streams the run's results as CSV, prefixed with a UTF-8 BOM so Excel
// opens it correctly.
func (h *ResultHandler) ExportCSV(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid run ID format")
		return
	}

	ctx := c.Request.Context()
	var results []domain.ReconciliationResult
	for offset := 0; ; {
		page, total, err := h.resultRepo.ListByRun(ctx, runID, offset, exportPageSize)
		if err != nil {
			HandleError(c, err)
			return
		}
		results = append(results, page...)
		offset += len(page)
		if len(page) == 0 || offset >= total {
			break
		}
	}

	filename := report.BuildFilename("reconciliation_"+runID.String(), "csv")
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)

	if _, err := c.Writer.Write(report.BOM); err != nil {
		log.Printf("resultHandler.ExportCSV: write BOM: %v", err)
		return
	}
	w := report.NewWriter(c.Writer)
	if err := w.WriteHeader(); err != nil {
		log.Printf("resultHandler.ExportCSV: write header: %v", err)
		return
	}
	if err := w.WriteResults(results); err != nil {
		log.Printf("resultHandler.ExportCSV: write rows: %v", err)
		return
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.Printf("resultHandler.ExportCSV: flush: %v", err)
	}
}

// ListAdvices handles GET /api/v1/advices
func (h *ResultHandler) ListAdvices(c *gin.Context) {
	offset, limit, ok := parsePagination(c)
	if !ok {
		return
	}
	advices, total, err := h.adviceRepo.List(c.Request.Context(), offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondPaginated(c, advices, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// GetAdvice handles GET /api/v1/advices/:id
func (h *ResultHandler) GetAdvice(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid advice ID format")
		return
	}

	advice, err := h.adviceRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, advice)
}

// Clear handles DELETE /api/v1/results
// Wipes stored advices and results. Rejected with 409 while a run is
// active.
func (h *ResultHandler) Clear(c *gin.Context) {
	if err := h.svc.Clear(c.Request.Context()); err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"cleared": true})
}
