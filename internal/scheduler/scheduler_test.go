package scheduler

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaimaStudios/starstream/internal/code"
	"github.com/PaimaStudios/starstream/internal/identity"
	"github.com/PaimaStudios/starstream/internal/interrupt"
	"github.com/PaimaStudios/starstream/internal/platform/logging"
	"github.com/PaimaStudios/starstream/internal/program"
	"github.com/PaimaStudios/starstream/internal/wasmtest"
	"github.com/PaimaStudios/starstream/internal/witness"
)

// newTestTransaction builds a Transaction with no WASM programs started,
// for exercising lookup/bookkeeping logic that never touches a live
// wazero instance. Tests that need an actual program running use
// newLiveTransaction instead.
func newTestTransaction(t *testing.T) *Transaction {
	t.Helper()
	cache, err := code.NewCache(code.DefaultConfig(), logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	noFixtures := func(name string) (code.Hash, error) {
		return code.Hash{}, code.ErrFixtureNotFound
	}

	tx := New(context.Background(), cache, logging.NewNop(), noFixtures)
	t.Cleanup(func() { _ = tx.Close() })
	return tx
}

// newLiveTransaction builds a Transaction whose fixture loader resolves
// debug contract names registered via cache.RegisterFixture to real
// CodeHashes, for tests that drive an actual wazero guest through
// Transaction.Run rather than calling scheduler methods directly.
func newLiveTransaction(t *testing.T) (*Transaction, *code.Cache) {
	t.Helper()
	cache, err := code.NewCache(code.Config{FixturesDir: t.TempDir()}, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	fixtures := func(name string) (code.Hash, error) {
		cc, err := cache.LoadDebugByName(name)
		if err != nil {
			return code.Hash{}, err
		}
		return cc.Hash(), nil
	}

	tx := New(context.Background(), cache, logging.NewNop(), fixtures)
	t.Cleanup(func() { _ = tx.Close() })
	return tx, cache
}

var yieldImport = wasmtest.Import{
	Module: "starstream_utxo_env",
	Name:   "starstream_yield",
	Params: []wasmtest.ValType{wasmtest.I32, wasmtest.I32, wasmtest.I32, wasmtest.I32, wasmtest.I32, wasmtest.I32},
}

// TestRun_UtxoMutate_PrependsSelfAddressAndCapturesWitnessMemory drives a
// coordination script that creates a UTXO (which immediately yields,
// publishing the memory address of a stored i64) and then calls a mutate
// method on it. The UTXO's own mutate export takes the object address as
// its first parameter — a parameter handleUtxoMethod must supply itself,
// since the coordination script's import only carries the new value. If it
// doesn't, the call arity no longer matches the export's declared params
// and Run fails outright; if the witness capture added for Mutate calls is
// missing or wrong, the before/after memory snapshot assertions below fail
// instead.
func TestRun_UtxoMutate_PrependsSelfAddressAndCapturesWitnessMemory(t *testing.T) {
	tx, cache := newLiveTransaction(t)

	utxoWasm := wasmtest.Module(
		[]wasmtest.Import{yieldImport},
		[]wasmtest.Func{
			{
				Name:   "starstream_new_create",
				Params: []wasmtest.ValType{wasmtest.I64},
				Body: wasmtest.Ins(
					wasmtest.I32Const(8), wasmtest.I64Const(100), wasmtest.I64Store(0),
					wasmtest.I32Const(0), wasmtest.I32Const(0),
					wasmtest.I32Const(8), wasmtest.I32Const(8),
					wasmtest.I32Const(24), wasmtest.I32Const(8),
					wasmtest.Call(0),
				),
			},
			{
				Name:    "starstream_mutate_Obj_set",
				Params:  []wasmtest.ValType{wasmtest.I32, wasmtest.I64},
				Results: []wasmtest.ValType{wasmtest.I64},
				Locals:  []wasmtest.ValType{wasmtest.I64},
				Body: wasmtest.Ins(
					wasmtest.LocalGet(0), wasmtest.I64Load(0), wasmtest.LocalSet(2),
					wasmtest.LocalGet(0), wasmtest.LocalGet(1), wasmtest.I64Store(0),
					wasmtest.LocalGet(2),
				),
			},
		},
		1,
	)
	require.NoError(t, cache.RegisterFixture("obj", utxoWasm))

	coordWasm := wasmtest.Module(
		[]wasmtest.Import{
			{Module: "starstream_utxo:obj", Name: "starstream_new_create", Params: []wasmtest.ValType{wasmtest.I64}, Results: []wasmtest.ValType{wasmtest.I64}},
			{Module: "starstream_utxo:obj", Name: "starstream_mutate_Obj_set", Params: []wasmtest.ValType{wasmtest.I64, wasmtest.I64}, Results: []wasmtest.ValType{wasmtest.I64}},
		},
		[]wasmtest.Func{
			{
				Name:    "run",
				Results: []wasmtest.ValType{wasmtest.I64},
				Locals:  []wasmtest.ValType{wasmtest.I64},
				Body: wasmtest.Ins(
					wasmtest.I64Const(0), wasmtest.Call(0), wasmtest.LocalSet(0),
					wasmtest.LocalGet(0), wasmtest.I64Const(777), wasmtest.Call(1),
				),
			},
		},
		0,
	)
	cc, err := cache.LoadFromBytes(coordWasm)
	require.NoError(t, err)

	values, err := tx.Run(cc, "run", nil)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, uint64(100), values[0], "mutate must return the object's prior value")

	var found bool
	for _, e := range tx.witnesses.Entries() {
		if e.Kind == witness.KindOther && len(e.ReadFromMemory) == 1 && len(e.WriteToMemory) == 1 {
			assert.Equal(t, uint32(8), e.ReadFromMemory[0].Address)
			assert.Equal(t, uint64(100), binary.LittleEndian.Uint64(e.ReadFromMemory[0].Data))
			assert.Equal(t, uint64(777), binary.LittleEndian.Uint64(e.WriteToMemory[0].Data))
			found = true
		}
	}
	assert.True(t, found, "expected one witness entry with captured mutate memory")
}

// TestRun_UtxoResume_DeliversResumeArgumentViaGuestMemory drives a
// coordination script that creates a UTXO, stores a known value in its
// own memory, and resumes the UTXO with a pointer to it. The UTXO reads
// the resumed value back out of its own memory (at the address it
// published when it yielded) and returns it, so the final result only
// matches if handleUtxoResume actually copied the caller's bytes into the
// callee's memory, and only reaches the coordination script's own return
// value if the resume import's host callback writes Raise's result back
// onto the wazero stack.
func TestRun_UtxoResume_DeliversResumeArgumentViaGuestMemory(t *testing.T) {
	tx, cache := newLiveTransaction(t)

	utxoWasm := wasmtest.Module(
		[]wasmtest.Import{yieldImport},
		[]wasmtest.Func{
			{
				Name:    "starstream_new_start",
				Params:  []wasmtest.ValType{wasmtest.I64},
				Results: []wasmtest.ValType{wasmtest.I64},
				Body: wasmtest.Ins(
					wasmtest.I32Const(0), wasmtest.I32Const(0),
					wasmtest.I32Const(8), wasmtest.I32Const(8),
					wasmtest.I32Const(40), wasmtest.I32Const(8),
					wasmtest.Call(0),
					wasmtest.I32Const(40), wasmtest.I64Load(0),
				),
			},
		},
		1,
	)
	require.NoError(t, cache.RegisterFixture("res", utxoWasm))

	coordWasm := wasmtest.Module(
		[]wasmtest.Import{
			{Module: "starstream_utxo:res", Name: "starstream_new_start", Params: []wasmtest.ValType{wasmtest.I64}, Results: []wasmtest.ValType{wasmtest.I64}},
			{Module: "starstream_utxo:res", Name: "starstream_resume_cont", Params: []wasmtest.ValType{wasmtest.I64, wasmtest.I64}, Results: []wasmtest.ValType{wasmtest.I64}},
		},
		[]wasmtest.Func{
			{
				Name:    "run2",
				Results: []wasmtest.ValType{wasmtest.I64},
				Locals:  []wasmtest.ValType{wasmtest.I64},
				Body: wasmtest.Ins(
					wasmtest.I32Const(16), wasmtest.I64Const(555), wasmtest.I64Store(0),
					wasmtest.I64Const(0), wasmtest.Call(0), wasmtest.LocalSet(0),
					wasmtest.LocalGet(0), wasmtest.I64Const(16), wasmtest.Call(1),
				),
			},
		},
		1,
	)
	cc, err := cache.LoadFromBytes(coordWasm)
	require.NoError(t, err)

	values, err := tx.Run(cc, "run2", nil)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, uint64(555), values[0], "resumed UTXO must read back the caller's memory at its published resume_arg address")
}

func TestNew_InitializesEmptyState(t *testing.T) {
	tx := newTestTransaction(t)

	assert.Equal(t, 0, tx.programs.Len())
	assert.Equal(t, 0, tx.witnesses.Len())
	assert.Equal(t, uint64(0), tx.fuel)
	assert.Empty(t, tx.utxos)
	assert.Empty(t, tx.channels)
	assert.Empty(t, tx.raised)
	assert.Empty(t, tx.throwResumes)
	assert.Empty(t, tx.linkedModules)
	assert.Empty(t, tx.SuspendedUtxos())
}

func TestHandleUtxoResume_UnknownUtxoErrors(t *testing.T) {
	tx := newTestTransaction(t)

	_, _, err := tx.handleUtxoResume(0, interrupt.UtxoResume(identity.NewUtxoId(), nil))
	assert.Error(t, err)
}

func TestHandleUtxoMethod_UnknownUtxoErrors(t *testing.T) {
	tx := newTestTransaction(t)

	in := interrupt.UtxoQuery(identity.NewUtxoId(), "query_balance", nil)
	_, _, err := tx.handleUtxoMethod(0, in, false)
	assert.Error(t, err)

	in2 := interrupt.UtxoConsume(identity.NewUtxoId(), "consume", nil)
	_, _, err = tx.handleUtxoMethod(0, in2, true)
	assert.Error(t, err)
}

func TestHandleTokenUnbind_UnknownTokenErrors(t *testing.T) {
	tx := newTestTransaction(t)

	_, _, err := tx.handleTokenUnbind(0, interrupt.TokenUnbind(identity.NewTokenId()))
	assert.Error(t, err)
}

func TestHandleRaise_NoHandlerRegisteredErrors(t *testing.T) {
	tx := newTestTransaction(t)

	_, _, err := tx.handleRaise(0, interrupt.Raise("nonexistent", 0, 0, 0, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, errNoHandlerRegistered)
}

func TestHandleResumeThrowingProgram_NoRaiseInFlightErrors(t *testing.T) {
	tx := newTestTransaction(t)

	_, _, err := tx.handleResumeThrowingProgram(0, interrupt.ResumeThrowingProgram("nonexistent", 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, errNoRaiseInFlight)
}

func TestHandleRaise_RegisteredHandlerIsConsumedOnlyOnce(t *testing.T) {
	tx := newTestTransaction(t)
	tx.programs.Append(program.Program{ReturnTo: program.Root})
	tx.programs.Append(program.Program{ReturnTo: 0})
	tx.handlers.Register("withdraw", 1, 0)

	// callMethod fails here because program 1 has no live Instance in this
	// unit-level test, but handlers.Raise must already have recorded the
	// in-flight raise before that failure, matching the original's ordering
	// (register the raise, then attempt the handler call).
	_, _, err := tx.handleRaise(0, interrupt.Raise("withdraw", 0, 0, 0, 0))
	require.Error(t, err)

	// A second raise under the same name must fail as already-thrown,
	// proving the bookkeeping survived the failed callMethod above.
	_, _, err = tx.handleRaise(0, interrupt.Raise("withdraw", 0, 0, 0, 0))
	require.Error(t, err)
	assert.False(t, errors.Is(err, errNoHandlerRegistered))
}

func TestUnbindEntryPoint(t *testing.T) {
	tests := []struct {
		name  string
		bind  string
		want  string
	}{
		{"simple", "starstream_bind_token", "starstream_unbind_token"},
		{"bind_prefix", "bind", "unbind"},
		{"only_first_occurrence", "rebind_bind", "reunbind_bind"},
		{"no_bind_substring", "starstream_mint", "starstream_mint"},
		{"bind_is_substring_of_larger_word", "unbinding", "ununbinding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, unbindEntryPoint(tt.bind))
		})
	}
}

func TestIndexOf(t *testing.T) {
	assert.Equal(t, 0, indexOf("bind", "bind"))
	assert.Equal(t, 5, indexOf("mint_bind", "bind"))
	assert.Equal(t, -1, indexOf("mint", "bind"))
	assert.Equal(t, -1, indexOf("bi", "bind"))
}
