// Package witness implements the append-only control-transfer log a
// transaction records as it runs, later distilled by internal/ledger into
// ledger operations and folded into a proof by internal/folding.
package witness

import (
	"github.com/PaimaStudios/starstream/internal/identity"
	"github.com/PaimaStudios/starstream/internal/program"
)

// Kind tags a witness Entry with the UTXO-lifecycle-relevant event that
// produced it, so internal/ledger can walk the log without re-deriving
// that classification from FromProgram/ToProgram/interrupt shape. Most
// control transfers (effect dispatch, token bind/unbind, the coordination
// script's own host calls) carry no ledger significance and are tagged
// KindOther.
type Kind int

const (
	// KindOther marks a transfer the ledger-op builder ignores: it
	// contributes no Resume/Yield/DropUtxo operation.
	KindOther Kind = iota
	// KindResume marks a coordination-script-to-UTXO transfer that starts
	// or resumes a UTXO's coroutine (UtxoNew and UtxoResume alike — both
	// enter the UTXO's row the same way from the step circuit's view).
	KindResume
	// KindYield marks a UTXO suspending back to whoever resumed it,
	// publishing its yielded data.
	KindYield
	// KindDropUtxo marks a UTXO's terminal retirement: either its own
	// entry-point program returning for good, or an explicit UtxoConsume.
	KindDropUtxo
)

// String names k for labeling purposes (internal/metrics tags witness
// counters by kind name rather than its bare integer value).
func (k Kind) String() string {
	switch k {
	case KindResume:
		return "resume"
	case KindYield:
		return "yield"
	case KindDropUtxo:
		return "drop_utxo"
	default:
		return "other"
	}
}

// MemorySegment is a captured span of a program's linear memory, recorded
// alongside a witness entry so the step circuit can later constrain what
// that program actually read or wrote.
type MemorySegment struct {
	Address uint32
	Data    []byte
}

// Entry records one control transfer between two programs: fuel consumed
// so far, the values passed, and the memory each side touched. Per the
// resolved design point on memory capture, ReadFromMemory/WriteToMemory
// are populated for UtxoMutate-triggered transfers but intentionally left
// empty for UtxoQuery ones, since queries are read-only data paths that
// contribute no storage delta worth proving.
type Entry struct {
	// Fuel is the transaction's cumulative fuel spend as of this entry,
	// not the cost of this step alone — it's a running total, matching the
	// original's per-witness fuel snapshot.
	Fuel uint64

	FromProgram program.Idx
	ToProgram   program.Idx
	Values      []uint64

	ReadFromMemory []MemorySegment
	WriteToMemory  []MemorySegment

	// Kind and UtxoId classify this transfer for internal/ledger. UtxoId is
	// the zero value when Kind is KindOther.
	Kind   Kind
	UtxoId identity.UtxoId
}

// Log is the append-only sequence of Entry values a transaction
// accumulates over its lifetime. Order matters: internal/ledger replays
// it front-to-back to reconstruct ledger operations.
type Log struct {
	entries []Entry
}

// NewLog constructs an empty witness log.
func NewLog() *Log {
	return &Log{}
}

// Append records e as the next witness entry.
func (l *Log) Append(e Entry) {
	l.entries = append(l.entries, e)
}

// Entries returns the full log in recording order. Callers must not
// mutate the returned slice.
func (l *Log) Entries() []Entry {
	return l.entries
}

// Len reports how many entries have been recorded.
func (l *Log) Len() int {
	return len(l.entries)
}
