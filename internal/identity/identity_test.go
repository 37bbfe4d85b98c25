package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaimaStudios/starstream/internal/identity"
)

func TestNewIds_AreUnique(t *testing.T) {
	a := identity.NewUtxoId()
	b := identity.NewUtxoId()
	assert.NotEqual(t, a, b)

	x := identity.NewTokenId()
	y := identity.NewTokenId()
	assert.NotEqual(t, x, y)
}

func TestTable_ScrambleRoundTrip(t *testing.T) {
	tbl := identity.NewTable()
	id := identity.NewUtxoId()

	scrambled := tbl.ScrambleUtxo(id)
	got, ok := tbl.ResolveUtxoScramble(scrambled)
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestTable_ScrambleUnknownValueMisses(t *testing.T) {
	tbl := identity.NewTable()
	_, ok := tbl.ResolveUtxoScramble(123456789)
	assert.False(t, ok)
}

func TestTable_HandleRoundTrip(t *testing.T) {
	tbl := identity.NewTable()
	id := identity.NewUtxoId()
	tok := identity.NewTokenId()

	hUtxo := tbl.HandleUtxo(id)
	hTok := tbl.HandleToken(tok)
	assert.NotEqual(t, hUtxo, hTok, "handles minted from the same table must not collide across kinds")

	gotUtxo, ok := tbl.ResolveUtxoHandle(hUtxo)
	require.True(t, ok)
	assert.Equal(t, id, gotUtxo)

	gotTok, ok := tbl.ResolveTokenHandle(hTok)
	require.True(t, ok)
	assert.Equal(t, tok, gotTok)
}

func TestTable_EachScrambleIsFreshEvenForSameId(t *testing.T) {
	tbl := identity.NewTable()
	id := identity.NewUtxoId()

	s1 := tbl.ScrambleUtxo(id)
	s2 := tbl.ScrambleUtxo(id)
	assert.NotEqual(t, s1, s2, "every ScrambleUtxo call mints a new alias, matching to_wasm_i64's per-call re-randomization")

	got1, ok1 := tbl.ResolveUtxoScramble(s1)
	got2, ok2 := tbl.ResolveUtxoScramble(s2)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, id, got1)
	assert.Equal(t, id, got2)
}
