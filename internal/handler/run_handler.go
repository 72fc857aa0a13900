package handler

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"payrecon/internal/domain"
	"payrecon/internal/port"
	"payrecon/internal/service"
)

// RunHandler exposes the reconciliation run lifecycle over HTTP.
type RunHandler struct {
	svc     *service.ReconciliationService
	runRepo port.RunRepository
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(svc *service.ReconciliationService, runRepo port.RunRepository) *RunHandler {
	return &RunHandler{svc: svc, runRepo: runRepo}
}

// Start handles POST /api/v1/runs
// Kicks off a reconciliation run in the background and returns its ID.
// Responds 409 when a run is already in flight.
func (h *RunHandler) Start(c *gin.Context) {
	runID, err := h.svc.StartRun()
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondAccepted(c, gin.H{"run_id": runID, "state": domain.RunStateRunning})
}

// Status handles GET /api/v1/runs/status
// Returns the live progress of the current run, or the terminal state of
// the last one.
func (h *RunHandler) Status(c *gin.Context) {
	progress := h.svc.Progress()
	if progress.RunID == uuid.Nil {
		HandleError(c, domain.ErrNoActiveRun)
		return
	}
	RespondOK(c, gin.H{
		"run_id":    progress.RunID,
		"state":     progress.State,
		"stage":     progress.Stage,
		"total":     progress.Total,
		"processed": progress.Processed,
		"running":   h.svc.IsRunning(),
	})
}

// GetByID handles GET /api/v1/runs/:id
func (h *RunHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid run ID format")
		return
	}

	run, err := h.runRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, run)
}

// Latest handles GET /api/v1/runs/latest
func (h *RunHandler) Latest(c *gin.Context) {
	run, err := h.runRepo.GetLatest(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, run)
}

// Summary handles GET /api/v1/runs/summary
// Returns the summary of the last completed run: per-status counts,
// matched and unmatched amounts, write-back counts, and per-advice
// outcomes.
func (h *RunHandler) Summary(c *gin.Context) {
	s := h.svc.LastSummary()
	if s == nil {
		HandleError(c, domain.ErrNoActiveRun)
		return
	}
	RespondOK(c, s)
}

// DownloadReport handles GET /api/v1/runs/report
// Streams the reconciliation workbook of the last completed run. Pass
// ?kind=review for the manual-review workbook.
func (h *RunHandler) DownloadReport(c *gin.Context) {
	mainPath, reviewPath := h.svc.ReportPaths()
	path := mainPath
	if c.Query("kind") == "review" {
		path = reviewPath
	}
	if path == "" {
		HandleError(c, domain.ErrNotFound)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

// parsePagination extracts offset/limit query params with defaults.
func parsePagination(c *gin.Context) (offset, limit int, ok bool) {
	offset, limit = 0, 50
	if offsetStr := c.Query("offset"); offsetStr != "" {
		n, err := strconv.Atoi(offsetStr)
		if err != nil || n < 0 {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid 'offset': must be a non-negative integer")
			return 0, 0, false
		}
		offset = n
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid 'limit': must be a positive integer")
			return 0, 0, false
		}
		limit = n
	}
	return offset, limit, true
}
