package handler_test

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"payrecon/internal/domain"
	"payrecon/internal/handler"
)

func storedResult(runID uuid.UUID, invoice string) domain.ReconciliationResult {
	return domain.ReconciliationResult{
		ID:             uuid.New(),
		RunID:          runID,
		AdviceID:       uuid.New(),
		InvoiceNumber:  invoice,
		NormalizedKey:  domain.NormalizeInvoiceKey(invoice),
		Status:         domain.MatchStatusMatched,
		Confidence:     100,
		AdviceAmount:   decimal.NewFromInt(5000),
		AllocatedAmt:   decimal.NewFromInt(5000),
		InvoiceAmount:  decimal.NewFromInt(5000),
		WriteBackState: domain.WriteBackWritten,
	}
}

func TestResultHandler_ListByRun_InvalidID(t *testing.T) {
	svc, m := newTestService(t)
	h := handler.NewResultHandler(svc, m.resultRepo, m.adviceRepo)

	c, w := testContext(t, http.MethodGet, "/api/v1/runs/nope/results")
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	h.ListByRun(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", decodeResponse(t, w).Error.Code)
}

func TestResultHandler_ListByRun_InvalidStatus(t *testing.T) {
	svc, m := newTestService(t)
	h := handler.NewResultHandler(svc, m.resultRepo, m.adviceRepo)

	runID := uuid.New()
	c, w := testContext(t, http.MethodGet, "/api/v1/runs/"+runID.String()+"/results?status=BOGUS")
	c.Params = gin.Params{{Key: "id", Value: runID.String()}}
	h.ListByRun(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "MATCHED")
	m.resultRepo.AssertNotCalled(t, "ListByStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestResultHandler_ListByRun_StatusFilter(t *testing.T) {
	svc, m := newTestService(t)
	h := handler.NewResultHandler(svc, m.resultRepo, m.adviceRepo)

	runID := uuid.New()
	m.resultRepo.On("ListByStatus", mock.Anything, runID, domain.MatchStatusNotFound).
		Return([]domain.ReconciliationResult{storedResult(runID, "INV-1")}, nil)

	c, w := testContext(t, http.MethodGet, "/api/v1/runs/"+runID.String()+"/results?status=NOT_FOUND")
	c.Params = gin.Params{{Key: "id", Value: runID.String()}}
	h.ListByRun(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Len(t, resp.Data.([]interface{}), 1)
	m.resultRepo.AssertExpectations(t)
}

func TestResultHandler_ListByRun_Paginated(t *testing.T) {
	svc, m := newTestService(t)
	h := handler.NewResultHandler(svc, m.resultRepo, m.adviceRepo)

	runID := uuid.New()
	m.resultRepo.On("ListByRun", mock.Anything, runID, 10, 5).
		Return([]domain.ReconciliationResult{storedResult(runID, "INV-1")}, 42, nil)

	c, w := testContext(t, http.MethodGet, "/api/v1/runs/"+runID.String()+"/results?offset=10&limit=5")
	c.Params = gin.Params{{Key: "id", Value: runID.String()}}
	h.ListByRun(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 42, resp.Meta.Total)
	assert.Equal(t, 10, resp.Meta.Offset)
	assert.Equal(t, 5, resp.Meta.Limit)
}

func TestResultHandler_ExportCSV_Success(t *testing.T) {
	svc, m := newTestService(t)
	h := handler.NewResultHandler(svc, m.resultRepo, m.adviceRepo)

	runID := uuid.New()
	m.resultRepo.On("ListByRun", mock.Anything, runID, 0, 500).
		Return([]domain.ReconciliationResult{storedResult(runID, "INV-1")}, 1, nil)

	c, w := testContext(t, http.MethodGet, "/api/v1/runs/"+runID.String()+"/export")
	c.Params = gin.Params{{Key: "id", Value: runID.String()}}
	h.ExportCSV(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "reconciliation_")

	body := w.Body.Bytes()
	require.True(t, bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}), "export starts with a UTF-8 BOM")

	rows, err := csv.NewReader(bytes.NewReader(body[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "File Name", rows[0][0])
	assert.Equal(t, "INV-1", rows[1][2])
	assert.Equal(t, "MATCHED", rows[1][4])
	m.resultRepo.AssertExpectations(t)
}

func TestResultHandler_ExportCSV_PagesThroughAllResults(t *testing.T) {
	svc, m := newTestService(t)
	h := handler.NewResultHandler(svc, m.resultRepo, m.adviceRepo)

	runID := uuid.New()
	firstPage := make([]domain.ReconciliationResult, 500)
	for i := range firstPage {
		firstPage[i] = storedResult(runID, "INV-1")
	}
	m.resultRepo.On("ListByRun", mock.Anything, runID, 0, 500).Return(firstPage, 501, nil)
	m.resultRepo.On("ListByRun", mock.Anything, runID, 500, 500).
		Return([]domain.ReconciliationResult{storedResult(runID, "INV-2")}, 501, nil)

	c, w := testContext(t, http.MethodGet, "/api/v1/runs/"+runID.String()+"/export")
	c.Params = gin.Params{{Key: "id", Value: runID.String()}}
	h.ExportCSV(c)

	assert.Equal(t, http.StatusOK, w.Code)
	rows, err := csv.NewReader(bytes.NewReader(w.Body.Bytes()[3:])).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 502)
	m.resultRepo.AssertExpectations(t)
}

func TestResultHandler_ExportCSV_InvalidID(t *testing.T) {
	svc, m := newTestService(t)
	h := handler.NewResultHandler(svc, m.resultRepo, m.adviceRepo)

	c, w := testContext(t, http.MethodGet, "/api/v1/runs/nope/export")
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	h.ExportCSV(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", decodeResponse(t, w).Error.Code)
	m.resultRepo.AssertNotCalled(t, "ListByRun", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResultHandler_ListByRun_BadPagination(t *testing.T) {
	svc, m := newTestService(t)
	h := handler.NewResultHandler(svc, m.resultRepo, m.adviceRepo)

	runID := uuid.New()
	c, w := testContext(t, http.MethodGet, "/api/v1/runs/"+runID.String()+"/results?offset=-1")
	c.Params = gin.Params{{Key: "id", Value: runID.String()}}
	h.ListByRun(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeResponse(t, w).Error.Code)
}

func TestResultHandler_GetByID_NotFound(t *testing.T) {
	svc, m := newTestService(t)
	h := handler.NewResultHandler(svc, m.resultRepo, m.adviceRepo)

	id := uuid.New()
	m.resultRepo.On("GetByID", mock.Anything, id).Return(nil, domain.ErrNotFound)

	c, w := testContext(t, http.MethodGet, "/api/v1/results/"+id.String())
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	h.GetByID(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeResponse(t, w).Error.Code)
}

func TestResultHandler_Search_MissingParam(t *testing.T) {
	svc, m := newTestService(t)
	h := handler.NewResultHandler(svc, m.resultRepo, m.adviceRepo)

	c, w := testContext(t, http.MethodGet, "/api/v1/results/search")
	h.Search(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Contains(t, resp.Error.Message, "invoice")
	m.resultRepo.AssertNotCalled(t, "SearchByInvoice", mock.Anything, mock.Anything)
}

func TestResultHandler_Search_Success(t *testing.T) {
	svc, m := newTestService(t)
	h := handler.NewResultHandler(svc, m.resultRepo, m.adviceRepo)

	m.resultRepo.On("SearchByInvoice", mock.Anything, "INV-2425-0017").
		Return([]domain.ReconciliationResult{storedResult(uuid.New(), "INV-2425-0017")}, nil)

	c, w := testContext(t, http.MethodGet, "/api/v1/results/search?invoice=INV-2425-0017")
	h.Search(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeResponse(t, w).Success)
	m.resultRepo.AssertExpectations(t)
}

func TestResultHandler_ListAdvices_Paginated(t *testing.T) {
	svc, m := newTestService(t)
	h := handler.NewResultHandler(svc, m.resultRepo, m.adviceRepo)

	m.adviceRepo.On("List", mock.Anything, 0, 50).
		Return([]domain.PaymentAdvice{{ID: uuid.New(), FileName: "advice-001.txt"}}, 1, nil)

	c, w := testContext(t, http.MethodGet, "/api/v1/advices")
	h.ListAdvices(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 1, resp.Meta.Total)
	assert.Equal(t, 50, resp.Meta.Limit)
}

func TestResultHandler_GetAdvice_InvalidID(t *testing.T) {
	svc, m := newTestService(t)
	h := handler.NewResultHandler(svc, m.resultRepo, m.adviceRepo)

	c, w := testContext(t, http.MethodGet, "/api/v1/advices/nope")
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	h.GetAdvice(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", decodeResponse(t, w).Error.Code)
}

func TestResultHandler_Clear_Success(t *testing.T) {
	svc, m := newTestService(t)
	h := handler.NewResultHandler(svc, m.resultRepo, m.adviceRepo)

	m.resultRepo.On("DeleteAll", mock.Anything).Return(nil)
	m.adviceRepo.On("DeleteAll", mock.Anything).Return(nil)

	c, w := testContext(t, http.MethodDelete, "/api/v1/results")
	h.Clear(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, true, resp.Data.(map[string]interface{})["cleared"])
}

func TestResultHandler_Clear_WhileRunning(t *testing.T) {
	svc, m := newTestService(t)
	release := m.expectBlockedRun()
	h := handler.NewResultHandler(svc, m.resultRepo, m.adviceRepo)

	_, err := svc.StartRun()
	require.NoError(t, err)

	c, w := testContext(t, http.MethodDelete, "/api/v1/results")
	h.Clear(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "RUN_IN_PROGRESS", decodeResponse(t, w).Error.Code)

	close(release)
	waitForIdle(t, svc)
}
