package folding

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PaimaStudios/starstream/internal/commitment"
	"github.com/PaimaStudios/starstream/internal/identity"
	"github.com/PaimaStudios/starstream/internal/ledger"
)

func TestDriver_FoldAndVerify_SimpleResumeYieldTrace(t *testing.T) {
	utxo := identity.NewUtxoId()

	ops := []ledger.Operation{
		{Kind: ledger.OpNop},
		{Kind: ledger.OpResume, UtxoId: utxo, Input: 0, Output: 42},
		{Kind: ledger.OpYieldResume, UtxoId: utxo, Output: 0},
		{Kind: ledger.OpYield, UtxoId: utxo, Input: 42},
		{Kind: ledger.OpCheckUtxoOutput, UtxoId: utxo},
	}
	deltas := map[identity.UtxoId]ledger.UtxoDelta{
		utxo: {OutputAfter: 42, Consumed: false},
	}

	digests := make([]commitment.Digest, len(ops))

	driver, err := NewDriver()
	require.NoError(t, err)

	acc, err := driver.Fold(ops, digests)
	require.NoError(t, err)
	require.Equal(t, 1, acc.Finalized)

	require.True(t, Verify(acc, deltas))
}

func TestDriver_Verify_FailsWhenFinalizedCountMismatched(t *testing.T) {
	acc := Accumulator{Finalized: 1}
	deltas := map[identity.UtxoId]ledger.UtxoDelta{
		identity.NewUtxoId(): {},
		identity.NewUtxoId(): {},
	}

	require.False(t, Verify(acc, deltas))
}

func TestDriver_Fold_EmptyTraceLeavesAccumulatorZero(t *testing.T) {
	driver, err := NewDriver()
	require.NoError(t, err)

	acc, err := driver.Fold(nil, nil)
	require.NoError(t, err)
	require.Equal(t, 0, acc.Finalized)
	require.Equal(t, int64(0), acc.Commitment.Int64())
}
