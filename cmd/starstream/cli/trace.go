// Package cli provides cmd/starstream's operator-facing trace command:
// fetch a finished transaction from a running starstream server and
// render its suspended UTXO set and ledger-op trace as a table, using
// pterm the way weisyn's own CLI renders tabular node/chain state
// instead of a raw encoding/json dump to stdout.
package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// transactionResult mirrors internal/api.TransactionResult's JSON wire
// shape. This package decodes it independently rather than importing
// internal/api, which would drag the scheduler/cache/ledger stack into
// a command that only ever speaks HTTP to an already-running server.
type transactionResult struct {
	ID             string     `json:"id"`
	Outputs        []uint64   `json:"outputs"`
	SuspendedUtxos []string   `json:"suspended_utxos"`
	LedgerOps      []ledgerOp `json:"ledger_ops"`
}

type ledgerOp struct {
	Kind   string `json:"kind"`
	UtxoID string `json:"utxo_id,omitempty"`
	Input  uint64 `json:"input,omitempty"`
	Output uint64 `json:"output,omitempty"`
}

// NewTraceCommand builds the "trace" subcommand.
func NewTraceCommand() *cobra.Command {
	var serverAddr string

	cmd := &cobra.Command{
		Use:   "trace <transaction-id>",
		Short: "Render a submitted transaction's ledger-op trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(serverAddr, args[0])
		},
	}
	cmd.Flags().StringVar(&serverAddr, "server", "http://localhost:8080", "starstream server base URL")
	return cmd
}

func runTrace(serverAddr, id string) error {
	result, err := fetchTransaction(serverAddr, id)
	if err != nil {
		pterm.Error.Println(err.Error())
		return err
	}

	pterm.DefaultHeader.WithFullWidth().Println("transaction " + result.ID)

	if len(result.SuspendedUtxos) > 0 {
		items := make([]pterm.BulletListItem, len(result.SuspendedUtxos))
		for i, utxoID := range result.SuspendedUtxos {
			items[i] = pterm.BulletListItem{Text: utxoID}
		}
		pterm.DefaultBulletList.WithItems(items).Render()
	} else {
		pterm.Info.Println("no UTXOs suspended")
	}

	rows := [][]string{{"kind", "utxo", "input", "output"}}
	for _, op := range result.LedgerOps {
		rows = append(rows, []string{
			op.Kind, op.UtxoID, strconv.FormatUint(op.Input, 10), strconv.FormatUint(op.Output, 10),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithHeaderRowSeparator("-").WithData(rows).Render(); err != nil {
		return err
	}

	pterm.Success.Printfln("%d ledger operations, %d outputs", len(result.LedgerOps), len(result.Outputs))
	return nil
}

func fetchTransaction(serverAddr, id string) (*transactionResult, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(serverAddr + "/v1/transactions/" + id)
	if err != nil {
		return nil, fmt.Errorf("fetch transaction %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s for transaction %s", resp.Status, id)
	}

	var result transactionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
