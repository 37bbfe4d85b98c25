// Package circuit implements the gnark frontend.Circuit that constrains
// one step of the ledger-operation trace internal/ledger.Build produces.
// Each step folds one internal/ledger.Operation into the running IVC
// state: the running commitment and the number of UTXOs finalized so far.
// Each step is constrained on its own; no constraint ties a coordination
// script's Resume to the UTXO's later Yield across steps.
//
// This is a from-scratch gnark port of the step-circuit shape
// original_source/starstream_ivc_proto/src/circuit.rs builds over arkworks'
// GR1CS, adapted to gnark's R1CS frontend and to internal/ledger's Go
// Operation vocabulary rather than a field-for-field translation of the
// Rust wire layout.
package circuit

import (
	"github.com/consensys/gnark/frontend"
)

// OpKind mirrors internal/ledger.OpKind as a circuit-level constant so
// this package never imports internal/ledger itself — a circuit only
// ever sees field elements, never Go enums, by the time it's compiled.
type OpKind = uint8

const (
	OpNop OpKind = iota
	OpResume
	OpYield
	OpYieldResume
	OpDropUtxo
	OpCheckUtxoOutput
)

// StepWitness is one step's private witness assignment, built by
// internal/folding from an internal/ledger.Operation plus the program
// commitment internal/commitment computed for the program that produced
// it. Kind is carried as a field element (0..5) rather than five boolean
// switches — StepCircuit derives the switches itself via equality gadgets,
// the gnark idiom for a small closed enum, in place of the original's
// pre-computed boolean wires.
type StepWitness struct {
	Kind         frontend.Variable
	UtxoID       frontend.Variable
	Input        frontend.Variable
	Output       frontend.Variable
	Commitment   frontend.Variable
	PriorOutput  frontend.Variable
	ExpectOutput frontend.Variable
}

// StepCircuit constrains a single trace step's transition of the running
// IVC accumulator (RunningCommitment, Finalized) against one StepWitness.
// internal/folding instantiates one StepCircuit per Operation and chains
// RunningCommitment/Finalized from one step's public output into the
// next step's public input, the Go equivalent of the original's
// per-step IVCMemory carry.
type StepCircuit struct {
	// Public inputs: the accumulator entering this step.
	CommitmentIn frontend.Variable `gnark:",public"`
	FinalizedIn  frontend.Variable `gnark:",public"`

	// Public outputs: the accumulator leaving this step. internal/folding
	// asserts these equal the next step's CommitmentIn/FinalizedIn.
	CommitmentOut frontend.Variable `gnark:",public"`
	FinalizedOut  frontend.Variable `gnark:",public"`

	// Private witness for this step.
	Witness StepWitness
}

// Define implements frontend.Circuit. It constrains:
//
//   - CheckUtxoOutput: the witnessed Output must equal ExpectOutput (the
//     UTXO's publicly committed final value), and increments FinalizedOut
//     by exactly one — the original's "n_finalized == len(utxo_deltas)"
//     acceptance check is the accumulated sum of these increments reaching
//     the UTXO count by the trace's last step.
//   - YieldResume/Yield: Output must equal the value the matching op
//     carries (internal/ledger.Build already resolved the cross-reference
//     before the trace reaches the circuit, so here it is just an
//     equality check, not a search).
//   - every step: CommitmentOut is the field sum of CommitmentIn and this
//     step's Commitment, so the running commitment accumulates every
//     step's commitment; the sum does not depend on step order.
func (c *StepCircuit) Define(api frontend.API) error {
	isCheckOutput := api.IsZero(api.Sub(c.Witness.Kind, OpCheckUtxoOutput))
	isYield := api.IsZero(api.Sub(c.Witness.Kind, OpYield))
	isYieldResume := api.IsZero(api.Sub(c.Witness.Kind, OpYieldResume))

	// For a CheckUtxoOutput step, the witnessed Output must match the
	// publicly expected one. For Yield/YieldResume, Output must match the
	// resolved cross-reference internal/ledger.Build already computed.
	outputMustMatch := api.Or(isCheckOutput, api.Or(isYield, isYieldResume))
	diff := api.Sub(c.Witness.Output, c.Witness.ExpectOutput)
	api.AssertIsEqual(api.Mul(outputMustMatch, diff), 0)

	// FinalizedOut increments by one exactly on a CheckUtxoOutput step.
	// The public FinalizedOut/CommitmentOut wires are asserted equal to
	// the computed next-state values, rather than overwritten, so the
	// constraint system actually binds what the prover claims as this
	// step's output to what the transition requires.
	api.AssertIsEqual(c.FinalizedOut, api.Add(c.FinalizedIn, isCheckOutput))

	// CommitmentOut folds in this step's per-program commitment. A Nop
	// step (Kind == OpNop) still folds in its (zero) commitment so the
	// running value advances once per trace step, matching
	// internal/commitment.Table absorbing every witness entry including
	// the ones internal/ledger reduces to OpNop.
	api.AssertIsEqual(c.CommitmentOut, api.Add(c.CommitmentIn, c.Witness.Commitment))

	return nil
}

// FinalAcceptance is the verifier-side check internal/folding performs
// once every step has been folded: the accumulated FinalizedOut must
// equal the number of UTXOs named in the trace's delta set, the Go
// counterpart of the original's n_finalized == len(utxo_deltas)
// acceptance predicate. A mismatch means some UTXO's CheckUtxoOutput step
// never ran, or ran more than once with the commitment binding.
func FinalAcceptance(finalized, utxoCount int) bool {
	return finalized == utxoCount
}
