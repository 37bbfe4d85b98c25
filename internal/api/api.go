// Package api implements the HTTP surface cmd/starstream exposes over
// internal/scheduler and internal/ledger: submit a coordination-script
// transaction, then inspect its suspended UTXO set and distilled
// ledger-op trace once it has run. Starstream runs one transaction to
// completion per request (a transaction is a single
// run_coordination_script call"), so there is no separate start/poll
// lifecycle to model beyond remembering finished runs for later lookup.
package api

import (
	"context"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PaimaStudios/starstream/internal/code"
	"github.com/PaimaStudios/starstream/internal/identity"
	"github.com/PaimaStudios/starstream/internal/ledger"
	"github.com/PaimaStudios/starstream/internal/linker"
	"github.com/PaimaStudios/starstream/internal/metrics"
	"github.com/PaimaStudios/starstream/internal/platform/logging"
	"github.com/PaimaStudios/starstream/internal/scheduler"
)

// SubmitTransactionRequest is the body of POST /v1/transactions.
type SubmitTransactionRequest struct {
	CodeHash   string   `json:"code_hash" binding:"required"`
	EntryPoint string   `json:"entry_point" binding:"required"`
	Inputs     []uint64 `json:"inputs,omitempty"`
}

// TransactionResult is the JSON shape returned both by the submit
// endpoint and by the GET-by-id lookup.
type TransactionResult struct {
	ID             string             `json:"id"`
	Outputs        []uint64           `json:"outputs"`
	SuspendedUtxos []string           `json:"suspended_utxos"`
	LedgerOps      []ledgerOpResponse `json:"ledger_ops"`
}

type ledgerOpResponse struct {
	Kind   string `json:"kind"`
	UtxoID string `json:"utxo_id,omitempty"`
	Input  uint64 `json:"input,omitempty"`
	Output uint64 `json:"output,omitempty"`
}

// errorResponse is the uniform JSON error body every handler returns on
// failure, the gin idiom this codebase's own handlers use for their
// {success, message} responses, adjusted to this API's field names.
type errorResponse struct {
	Error string `json:"error"`
}

// Handler wires the HTTP transport onto a code cache and fixture
// resolver shared across every submitted transaction, plus an in-memory
// registry of finished runs so a caller can look one up again after the
// submit response.
type Handler struct {
	cache     *code.Cache
	fixtures  linker.FixtureLoader
	logger    logging.Logger
	txTimeout time.Duration

	http      *httpMetrics
	scheduler *metrics.Collector

	mu      sync.Mutex
	results map[string]TransactionResult
}

// NewHandler constructs a Handler. fixtures resolves debug contract
// names for starstream_utxo:/starstream_token: imports, the same
// resolver internal/scheduler.New takes. Both the HTTP request metrics
// and the scheduler's own witness/fuel/active-program series share one
// registry, so a single /metrics scrape returns both.
func NewHandler(cache *code.Cache, fixtures linker.FixtureLoader, logger logging.Logger, txTimeout time.Duration) *Handler {
	reg := newRegistry()
	return &Handler{
		cache:     cache,
		fixtures:  fixtures,
		logger:    logger,
		txTimeout: txTimeout,
		http:      newHTTPMetrics(reg),
		scheduler: metrics.NewCollector(reg),
		results:   make(map[string]TransactionResult),
	}
}

// Register mounts this Handler's routes onto r, wrapping every request in
// the Prometheus metrics middleware and adding the liveness/metrics
// endpoints a deployment's load balancer and scrape target expect
// alongside the transaction API itself.
func (h *Handler) Register(r gin.IRouter) {
	r.Use(h.http.middleware())

	r.GET("/healthz", healthz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.http.registry, promhttp.HandlerOpts{})))

	r.POST("/v1/transactions", h.submitTransaction)
	r.GET("/v1/transactions/:id", h.getTransaction)
}

func (h *Handler) submitTransaction(c *gin.Context) {
	var req SubmitTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body: " + err.Error()})
		return
	}

	hashBytes, err := hex.DecodeString(req.CodeHash)
	if err != nil || len(hashBytes) != 32 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "code_hash must be 64 hex characters"})
		return
	}
	var hash code.Hash
	copy(hash[:], hashBytes)

	cc, err := h.cache.Get(hash)
	if err != nil {
		c.JSON(http.StatusNotFound, errorResponse{Error: "unknown code hash: " + err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.txTimeout)
	defer cancel()

	tx := scheduler.New(ctx, h.cache, h.logger, h.fixtures).WithMetrics(h.scheduler)
	defer tx.Close()

	outputs, err := tx.Run(cc, req.EntryPoint, req.Inputs)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: "transaction failed: " + err.Error()})
		return
	}

	result := h.buildResult(tx, outputs)
	h.store(result)

	c.JSON(http.StatusOK, result)
}

func (h *Handler) getTransaction(c *gin.Context) {
	id := c.Param("id")

	h.mu.Lock()
	result, ok := h.results[id]
	h.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "no transaction with that id"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) buildResult(tx *scheduler.Transaction, outputs []uint64) TransactionResult {
	ops, _ := ledger.Build(tx.Witnesses())

	suspended := tx.SuspendedUtxos()
	suspendedStrings := make([]string, len(suspended))
	for i, id := range suspended {
		suspendedStrings[i] = id.String()
	}

	opResponses := make([]ledgerOpResponse, len(ops))
	for i, op := range ops {
		opResponses[i] = ledgerOpResponse{
			Kind:   opKindName(op.Kind),
			UtxoID: nonZeroUtxoID(op.UtxoId),
			Input:  op.Input,
			Output: op.Output,
		}
	}

	return TransactionResult{
		ID:             uuid.NewString(),
		Outputs:        outputs,
		SuspendedUtxos: suspendedStrings,
		LedgerOps:      opResponses,
	}
}

func (h *Handler) store(result TransactionResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results[result.ID] = result
}

func nonZeroUtxoID(id identity.UtxoId) string {
	var zero identity.UtxoId
	if id == zero {
		return ""
	}
	return id.String()
}

func opKindName(k ledger.OpKind) string {
	switch k {
	case ledger.OpResume:
		return "resume"
	case ledger.OpYield:
		return "yield"
	case ledger.OpYieldResume:
		return "yield_resume"
	case ledger.OpDropUtxo:
		return "drop_utxo"
	case ledger.OpCheckUtxoOutput:
		return "check_utxo_output"
	default:
		return "nop"
	}
}
