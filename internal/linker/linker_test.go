package linker_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"

	"github.com/PaimaStudios/starstream/internal/code"
	"github.com/PaimaStudios/starstream/internal/identity"
	"github.com/PaimaStudios/starstream/internal/interrupt"
	"github.com/PaimaStudios/starstream/internal/linker"
	"github.com/PaimaStudios/starstream/internal/wasmtest"
)

// Most of these tests exercise the host-module wiring (every exported name
// is registered exactly once, with a shape wazero accepts) rather than the
// host function bodies themselves. TestRegisterUtxoImport_WritesRaiseResultBackToGuest
// below is the exception: it drives a real guest module through a
// dialect-specific import end to end, the only way to catch a host
// function that computes the right resume value but never copies it back
// into the guest's call stack.

func TestBuildEnv_InstantiatesOnce(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	mod, err := linker.BuildEnv(ctx, rt)
	require.NoError(t, err)
	require.NotNil(t, mod)

	for _, name := range []string{
		"abort", "eprint", "starstream_coordination_code", "starstream_this_code",
		"starstream_keccak256", "starstream_register_effect_handler",
		"starstream_unregister_effect_handler", "starstream_get_raised_effect_data",
		"starstream_resume_throwing_program",
	} {
		assert.NotNil(t, mod.ExportedFunction(name), "expected env export %q", name)
	}
}

func TestBuildUtxoEnv_InstantiatesOnce(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	mod, err := linker.BuildUtxoEnv(ctx, rt)
	require.NoError(t, err)

	assert.NotNil(t, mod.ExportedFunction("starstream_yield"))
	assert.NotNil(t, mod.ExportedFunction("starstream_raise"))
}

// TestRegisterUtxoImport_WritesRaiseResultBackToGuest compiles a guest
// module whose only function calls a dialect-specific
// "starstream_query_*" import and returns whatever it returns, then drives
// it through a real Session whose Raise responds with a known value. If
// the host function's WithGoModuleFunction callback fails to copy that
// value into stack[:len(results)] (wazero's GoModuleFunc contract), the
// guest call returns the untouched input value (the UTXO handle echoed
// back) instead.
func TestRegisterUtxoImport_WritesRaiseResultBackToGuest(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	wasm := wasmtest.Module(
		[]wasmtest.Import{
			{
				Module:  "starstream_utxo:obj",
				Name:    "starstream_query_Obj_get",
				Params:  []wasmtest.ValType{wasmtest.I64},
				Results: []wasmtest.ValType{wasmtest.I64},
			},
		},
		[]wasmtest.Func{
			{
				Name:    "call_query",
				Params:  []wasmtest.ValType{wasmtest.I64},
				Results: []wasmtest.ValType{wasmtest.I64},
				Body:    wasmtest.Ins(wasmtest.LocalGet(0), wasmtest.Call(0)),
			},
		},
		0,
	)

	cm, err := rt.CompileModule(ctx, wasm)
	require.NoError(t, err)

	noFixtures := func(string) (code.Hash, error) { return code.Hash{}, nil }
	linked := map[string]bool{}
	require.NoError(t, linker.BuildDialectImports(ctx, rt, cm, linker.DialectCoordination, noFixtures, linked))

	mod, err := rt.InstantiateModule(ctx, cm, wazero.NewModuleConfig().WithName("coordination"))
	require.NoError(t, err)

	identities := identity.NewTable()
	utxoID := identity.NewUtxoId()
	scrambled := identities.ScrambleUtxo(utxoID)

	interrupts := make(chan interrupt.Interrupt)
	resume := make(chan []uint64)
	sess := &linker.Session{Interrupts: interrupts, Resume: resume, Identities: identities}
	callCtx := linker.WithSession(ctx, sess)

	go func() {
		in := <-interrupts
		if in.Kind == interrupt.KindUtxoQuery && in.UtxoID == utxoID {
			resume <- []uint64{777}
			return
		}
		resume <- []uint64{0}
	}()

	results, err := mod.ExportedFunction("call_query").Call(callCtx, uint64(scrambled))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(777), results[0])
}
