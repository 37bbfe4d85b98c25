package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaimaStudios/starstream/internal/code"
	"github.com/PaimaStudios/starstream/internal/ledger"
	"github.com/PaimaStudios/starstream/internal/platform/logging"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cache, err := code.NewCache(code.DefaultConfig(), logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	noFixtures := func(name string) (code.Hash, error) {
		return code.Hash{}, code.ErrFixtureNotFound
	}

	h := NewHandler(cache, noFixtures, logging.NewNop(), 5*time.Second)
	r := gin.New()
	h.Register(r)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSubmitTransaction_MalformedCodeHashReturns400(t *testing.T) {
	r := newTestRouter(t)

	rec := postJSON(t, r, "/v1/transactions", SubmitTransactionRequest{
		CodeHash:   "not-hex",
		EntryPoint: "main",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitTransaction_UnknownCodeHashReturns404(t *testing.T) {
	r := newTestRouter(t)

	rec := postJSON(t, r, "/v1/transactions", SubmitTransactionRequest{
		CodeHash:   strings.Repeat("00", 32),
		EntryPoint: "main",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitTransaction_MalformedBodyReturns400(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/transactions", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTransaction_UnknownIDReturns404(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/transactions/nonexistent", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpKindName(t *testing.T) {
	assert.Equal(t, "resume", opKindName(ledger.OpResume))
	assert.Equal(t, "nop", opKindName(ledger.OpNop))
	assert.Equal(t, "check_utxo_output", opKindName(ledger.OpCheckUtxoOutput))
}

func TestHealthz_ReturnsOK(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetrics_ExposesRequestCounterAfterATrackedRequest(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "starstream_api_requests_total")
}
