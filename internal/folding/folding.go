// Package folding drives internal/circuit's step circuit over a
// transaction's ledger-operation trace, the Go counterpart of the
// original's FoldingSession/StepCircuitNeo accumulation loop. Rather than
// a folding scheme over a custom IVC backend, Driver compiles the step
// circuit once with gnark's R1CS builder and checks each step's witness
// against it in turn, carrying the running (commitment, finalized)
// accumulator from one step's output into the next step's input exactly
// as original_source/starstream_ivc_proto/src/lib.rs's prove loop feeds
// y0 through successive prove_step calls.
package folding

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/PaimaStudios/starstream/internal/circuit"
	"github.com/PaimaStudios/starstream/internal/commitment"
	"github.com/PaimaStudios/starstream/internal/identity"
	"github.com/PaimaStudios/starstream/internal/ledger"
)

// ErrUnsatisfiable is returned when a step's witness does not satisfy the
// step circuit, the Go counterpart of the original's
// SynthesisError::Unsatisfiable.
var ErrUnsatisfiable = fmt.Errorf("folding: step circuit unsatisfiable")

// Accumulator is the running IVC state threaded across steps: the folded
// commitment over every step seen so far, and the count of
// CheckUtxoOutput steps that have fired.
type Accumulator struct {
	Commitment *big.Int
	Finalized  int
}

// Driver compiles the step circuit once and checks every step of a trace
// against it, in the order internal/ledger.Build produced them.
type Driver struct {
	ccs constraint.ConstraintSystem
}

// NewDriver compiles internal/circuit.StepCircuit over BN254, the same
// curve internal/commitment's Poseidon2 sponge runs over.
func NewDriver() (*Driver, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit.StepCircuit{})
	if err != nil {
		return nil, fmt.Errorf("folding: compile step circuit: %w", err)
	}
	return &Driver{ccs: ccs}, nil
}

// Fold runs every operation in ops through the step circuit in sequence,
// resolving each step's commitment from digests (keyed by the operation's
// position in the trace, matching how internal/ledger.Build and
// internal/scheduler's per-witness-entry absorption stay index-aligned),
// and returns the final accumulator. It fails with ErrUnsatisfiable at the
// first step whose witness does not satisfy the circuit.
func (d *Driver) Fold(ops []ledger.Operation, digests []commitment.Digest) (Accumulator, error) {
	acc := Accumulator{Commitment: big.NewInt(0), Finalized: 0}

	for i, op := range ops {
		var digest commitment.Digest
		if i < len(digests) {
			digest = digests[i]
		}
		commitmentIn := new(big.Int).Set(acc.Commitment)
		finalizedIn := acc.Finalized

		stepCommitment := reduceDigest(digest)
		finalizedOut := finalizedIn
		if op.Kind == ledger.OpCheckUtxoOutput {
			finalizedOut++
		}
		commitmentOut := new(big.Int).Add(commitmentIn, stepCommitment)

		assignment := &circuit.StepCircuit{
			CommitmentIn:  commitmentIn,
			FinalizedIn:   finalizedIn,
			CommitmentOut: commitmentOut,
			FinalizedOut:  finalizedOut,
			Witness: circuit.StepWitness{
				Kind:         opKindToCircuit(op.Kind),
				UtxoID:       utxoIDToCircuit(op.UtxoId),
				Input:        op.Input,
				Output:       op.Output,
				Commitment:   stepCommitment,
				PriorOutput:  0,
				ExpectOutput: op.Output,
			},
		}

		w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
		if err != nil {
			return acc, fmt.Errorf("folding: build step %d witness: %w", i, err)
		}
		if err := d.ccs.IsSolved(w); err != nil {
			return acc, fmt.Errorf("%w: step %d (%v): %v", ErrUnsatisfiable, i, op.Kind, err)
		}

		acc.Commitment = commitmentOut
		acc.Finalized = finalizedOut
	}

	return acc, nil
}

// Verify checks the folded trace's final acceptance predicate:
// Finalized must equal the number of UTXOs the transaction's delta set
// names, the Go counterpart of the original's
// "n_finalized == len(utxo_deltas)" chain-verification check.
func Verify(acc Accumulator, deltas map[identity.UtxoId]ledger.UtxoDelta) bool {
	return circuit.FinalAcceptance(acc.Finalized, len(deltas))
}

func opKindToCircuit(k ledger.OpKind) uint8 {
	switch k {
	case ledger.OpResume:
		return circuit.OpResume
	case ledger.OpYield:
		return circuit.OpYield
	case ledger.OpYieldResume:
		return circuit.OpYieldResume
	case ledger.OpDropUtxo:
		return circuit.OpDropUtxo
	case ledger.OpCheckUtxoOutput:
		return circuit.OpCheckUtxoOutput
	default:
		return circuit.OpNop
	}
}

// utxoIDToCircuit reduces a 128-bit UtxoId to the leading 8 bytes as a
// field element, the same truncation internal/ledger.decodeSegment
// applies to a yielded memory segment — a circuit wire is a single field
// element, not a byte span.
func utxoIDToCircuit(id identity.UtxoId) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(id[i])
	}
	return v
}

// reduceDigest folds a 32-byte commitment digest down to a single
// big.Int, the field element the circuit's Commitment wire carries.
func reduceDigest(d commitment.Digest) *big.Int {
	return new(big.Int).SetBytes(d[:])
}
