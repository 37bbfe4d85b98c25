// Package program implements the append-only table of WASM program
// instances a transaction starts or resumes.
package program

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/PaimaStudios/starstream/internal/code"
	"github.com/PaimaStudios/starstream/internal/identity"
	"github.com/PaimaStudios/starstream/internal/interrupt"
)

// Idx indexes into a Table. Indices start at zero (the first program
// appended); use Root to refer to the transaction's own top-level caller.
type Idx int

// Root is the sentinel return address for the outermost call, the
// coordination script's caller. It mirrors ProgramIdx::Root (usize::MAX in
// the original); Go has no unsigned-max idiom as clean as that, so Root is
// modeled as -1, kept out of the valid [0, len) range of any Table.
const Root Idx = -1

func (i Idx) String() string {
	if i == Root {
		return "Root"
	}
	var buf [20]byte
	n := len(buf)
	v := int(i)
	if v == 0 {
		return "0"
	}
	for v > 0 {
		n--
		buf[n] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[n:])
}

// State is the tri-state lifecycle of a program instance's resumable call:
// it has not yet been entered, it is parked at a host-import trap awaiting
// resume, or it has returned for good.
type State int

const (
	// NotStarted means this program's call has not yet been entered.
	NotStarted State = iota
	// Suspended means the program is parked at the host-import trap
	// recorded in PendingInterrupt, awaiting Resume.
	Suspended
	// Finished means the program's entry point has returned; Outputs holds
	// its final return values.
	Finished
)

// Program is one WASM instance a transaction has started, indexed by a
// stable Idx that never changes once assigned.
type Program struct {
	// ReturnTo is the program that will regain control when this one
	// finishes.
	ReturnTo Idx
	// ReturnIsToken marks this program itself as a token-mint (bind) call,
	// which changes how the scheduler interprets its final return values
	// (struct return capture) before control passes to ReturnTo.
	ReturnIsToken bool
	// YieldTo, if set, is the program that control returns to when this
	// program issues a Yield interrupt — distinct from ReturnTo because a
	// UTXO's caller and its yield target can differ across suspend/resume
	// cycles in a long-lived coroutine.
	YieldTo *Idx
	// YieldToConstructor captures the resume value to feed back the first
	// time this program is entered via UtxoNew's implicit first resume.
	YieldToConstructor *uint64

	Code       code.Hash
	EntryPoint string
	// NumOutputs is the arity of this program's entry point return values,
	// needed because wazero (like wasmi) does not expose that count for an
	// already-compiled function once execution is underway.
	NumOutputs int

	State            State
	PendingInterrupt interrupt.Interrupt
	Outputs          []uint64

	// Utxo is set when this program instance backs a live UTXO, nil for
	// the coordination script and for token mint/burn calls.
	Utxo *identity.UtxoId

	// Instance is the live wazero module backing this table row. Several
	// rows can share the same Instance: call_method-style dispatch (a UTXO
	// query/mutate/consume, or an effect handler invocation) runs a
	// different exported function on an already-instantiated module and
	// gets its own fresh row here, rather than continuing the row that
	// first instantiated it.
	Instance api.Module
}

// Table is the append-only arena of Program instances a single
// transaction starts or resumes. Indices are stable for the table's
// lifetime: nothing is ever removed, only appended.
type Table struct {
	programs []Program
}

// NewTable constructs an empty program table.
func NewTable() *Table {
	return &Table{}
}

// Append adds p to the table and returns its stable index.
func (t *Table) Append(p Program) Idx {
	t.programs = append(t.programs, p)
	return Idx(len(t.programs) - 1)
}

// Get returns a pointer to the program at idx for in-place mutation.
// Panics on Root or an out-of-range index: both are caller bugs, not data
// errors, since every Idx in circulation either is Root (checked
// separately by callers) or was handed out by Append.
func (t *Table) Get(idx Idx) *Program {
	return &t.programs[idx]
}

// Len returns the number of programs appended so far. The scheduler reads
// it only to name new module instances; nothing compares it across a call,
// so re-entrancy is not detected through it.
func (t *Table) Len() int {
	return len(t.programs)
}
