package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchTransaction_DecodesServerResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(transactionResult{
			ID:             "abc",
			Outputs:        []uint64{42},
			SuspendedUtxos: []string{"utxo-1"},
			LedgerOps:      []ledgerOp{{Kind: "yield", UtxoID: "utxo-1", Output: 42}},
		})
	}))
	defer srv.Close()

	result, err := fetchTransaction(srv.URL, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", result.ID)
	assert.Equal(t, []uint64{42}, result.Outputs)
	assert.Equal(t, []string{"utxo-1"}, result.SuspendedUtxos)
	require.Len(t, result.LedgerOps, 1)
	assert.Equal(t, "yield", result.LedgerOps[0].Kind)
}

func TestFetchTransaction_NotFoundReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fetchTransaction(srv.URL, "missing")
	assert.Error(t, err)
}

func TestNewTraceCommand_RequiresExactlyOneArg(t *testing.T) {
	cmd := NewTraceCommand()
	assert.Equal(t, "trace <transaction-id>", cmd.Use)
	assert.Error(t, cmd.Args(cmd, nil))
	assert.Error(t, cmd.Args(cmd, []string{"a", "b"}))
	assert.NoError(t, cmd.Args(cmd, []string{"a"}))
}
