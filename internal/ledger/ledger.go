// Package ledger distills a transaction's witness.Log into the ordered
// ledger-operation trace and per-UTXO delta summary that internal/circuit's
// step circuit folds over.
package ledger

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/PaimaStudios/starstream/internal/identity"
	"github.com/PaimaStudios/starstream/internal/witness"
)

// OpKind enumerates the ledger operation vocabulary a step circuit
// recognizes, one constraint family per variant.
type OpKind int

const (
	// OpNop is filler: a control transfer with no UTXO-lifecycle meaning
	// (coordination-script host calls, effect dispatch, token bind/unbind)
	// still occupies a step in the trace, so the circuit's step count lines
	// up with the witness log one-for-one.
	OpNop OpKind = iota
	// OpResume is a coordination-script-to-UTXO transfer starting or
	// continuing a UTXO's coroutine. Output is unresolved (zero) until the
	// matching OpYield for the same UtxoId is seen later in the trace.
	OpResume
	// OpYield is the UTXO-side view of a yield: Input is the value handed
	// back to whoever resumed it, checked against the matching OpResume's
	// Output.
	OpYield
	// OpYieldResume is the coordination-script-side view of the same
	// physical yield event OpYield describes: Output echoes the matching
	// OpResume's original Input (the resume argument), not the yielded
	// value.
	OpYieldResume
	// OpDropUtxo marks a UTXO's terminal retirement, either its own
	// entry-point program returning for good or an explicit UtxoConsume.
	OpDropUtxo
	// OpCheckUtxoOutput is appended once per UTXO named in the final delta
	// set, after every other operation, asserting the UTXO's last known
	// output against the public commitment and guarding against a UTXO
	// being finalized twice.
	OpCheckUtxoOutput
)

// Operation is one step of the ledger-op trace a Build call produces.
// UtxoId is the zero value for OpNop, which carries no UTXO association.
type Operation struct {
	Kind   OpKind
	UtxoId identity.UtxoId
	Input  uint64
	Output uint64
}

// UtxoDelta is the per-UTXO summary a step circuit's public inputs bind
// to: what the UTXO's output was before this transaction, what it is
// after, and whether it was consumed. OutputBefore is always zero in this
// port — Starstream doesn't model cross-transaction persistent UTXO
// state, so every UTXO a transaction touches starts this transaction at
// the zero commitment.
type UtxoDelta struct {
	OutputBefore uint64
	OutputAfter  uint64
	Consumed     bool
}

// Build walks log front-to-back and distills it into the ordered
// Operation trace plus the final UtxoDelta set, the two pieces
// Transaction.new_unproven's Go counterpart needs.
//
// A UTXO's Resume always precedes its matching Yield in the log — a UTXO
// cannot suspend before something has resumed it — so a single forward
// pass suffices: pendingResume tracks, for each UtxoId with an
// unresolved Resume still open, the index of that Operation in ops so its
// Output can be filled in once the matching Yield is reached. This
// replaces the original's forward-reference thunk closures (natural in
// Rust over a mutable Vec, awkward to express in a single Go pass without
// capturing loop-mutable state) with an explicit index lookup.
func Build(log *witness.Log) ([]Operation, map[identity.UtxoId]UtxoDelta) {
	entries := log.Entries()
	ops := make([]Operation, 0, len(entries))
	pendingResume := make(map[identity.UtxoId]int)
	deltas := make(map[identity.UtxoId]UtxoDelta)

	touch := func(id identity.UtxoId) UtxoDelta {
		d, ok := deltas[id]
		if !ok {
			d = UtxoDelta{}
		}
		return d
	}

	for _, e := range entries {
		switch e.Kind {
		case witness.KindResume:
			idx := len(ops)
			ops = append(ops, Operation{Kind: OpResume, UtxoId: e.UtxoId, Input: firstValue(e.Values)})
			pendingResume[e.UtxoId] = idx
			deltas[e.UtxoId] = touch(e.UtxoId)

		case witness.KindYield:
			resumeIdx, ok := pendingResume[e.UtxoId]
			if !ok {
				// A Yield with no open Resume is a scheduler invariant
				// violation (handleYield never fires without a prior
				// handleUtxoNew/handleUtxoResume); surfacing it as a
				// zero-valued Resume keeps Build total rather than
				// panicking on a state the scheduler should never produce.
				resumeIdx = len(ops)
				ops = append(ops, Operation{Kind: OpResume, UtxoId: e.UtxoId})
			}
			yieldValue := decodeSegment(e.ReadFromMemory)
			ops[resumeIdx].Output = yieldValue
			delete(pendingResume, e.UtxoId)

			ops = append(ops, Operation{Kind: OpYieldResume, UtxoId: e.UtxoId, Output: ops[resumeIdx].Input})
			ops = append(ops, Operation{Kind: OpYield, UtxoId: e.UtxoId, Input: yieldValue})

			d := touch(e.UtxoId)
			d.OutputAfter = yieldValue
			deltas[e.UtxoId] = d

		case witness.KindDropUtxo:
			ops = append(ops, Operation{Kind: OpDropUtxo, UtxoId: e.UtxoId})
			d := touch(e.UtxoId)
			d.Consumed = true
			d.OutputAfter = 0
			deltas[e.UtxoId] = d

		default:
			ops = append(ops, Operation{Kind: OpNop})
		}
	}

	for _, id := range sortedUtxoIds(deltas) {
		ops = append(ops, Operation{Kind: OpCheckUtxoOutput, UtxoId: id})
	}

	return ops, deltas
}

// firstValue takes the lead element of a multi-value witness transfer as
// the ledger's single resume value, mirroring the original's single-field
// Instruction::Resume.input — Starstream's entry points can take several
// i64 arguments where the original's toy model only ever carries one.
func firstValue(values []uint64) uint64 {
	if len(values) == 0 {
		return 0
	}
	return values[0]
}

// decodeSegment reduces a yielded memory segment to the ledger's uint64
// value domain, reading its first 8 bytes little-endian. A UTXO's
// starstream_yield payload can be any length or shape; this keeps Build
// aligned with the original's single-field Instruction::Yield.input until
// internal/commitment's Poseidon2 sponge gives the step circuit a way to
// bind an arbitrary-length payload instead of truncating it.
func decodeSegment(segments []witness.MemorySegment) uint64 {
	if len(segments) == 0 || len(segments[0].Data) == 0 {
		return 0
	}
	data := segments[0].Data
	if len(data) >= 8 {
		return binary.LittleEndian.Uint64(data[:8])
	}
	var buf [8]byte
	copy(buf[:], data)
	return binary.LittleEndian.Uint64(buf[:])
}

// sortedUtxoIds returns deltas' keys in a deterministic order, standing in
// for the original's BTreeMap<UtxoId, UtxoChange> iteration order (F is
// totally ordered there; Go's UtxoId is an opaque 16-byte value with no
// numeric meaning, so byte-lexicographic order is the nearest equivalent
// determinism, not an attempt to preserve the original's numeric one).
func sortedUtxoIds(deltas map[identity.UtxoId]UtxoDelta) []identity.UtxoId {
	ids := make([]identity.UtxoId, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	return ids
}
