package handler_test

import (
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrecon/internal/config"
	"payrecon/internal/handler"
	"payrecon/internal/repository/sqlite"
)

func TestHealthHandler_Liveness(t *testing.T) {
	h := handler.NewHealthHandler(nil)

	c, w := testContext(t, http.MethodGet, "/healthz")
	h.Liveness(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestHealthHandler_Readiness(t *testing.T) {
	db, err := sqlite.NewDB(&config.DBConfig{
		Path:    filepath.Join(t.TempDir(), "payrecon.db"),
		MaxOpen: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	h := handler.NewHealthHandler(db)

	c, w := testContext(t, http.MethodGet, "/readyz")
	h.Readiness(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)

	require.NoError(t, db.Close())
	c2, w2 := testContext(t, http.MethodGet, "/readyz")
	h.Readiness(c2)
	assert.Equal(t, http.StatusServiceUnavailable, w2.Code)
}
