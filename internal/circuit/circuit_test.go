package circuit

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/test"
)

func TestStepCircuit_CheckUtxoOutputAdvancesFinalized(t *testing.T) {
	assert := test.NewAssert(t)

	circuit := &StepCircuit{}
	witness := &StepCircuit{
		CommitmentIn:  0,
		FinalizedIn:   0,
		CommitmentOut: 7,
		FinalizedOut:  1,
		Witness: StepWitness{
			Kind:         OpCheckUtxoOutput,
			UtxoID:       1,
			Input:        0,
			Output:       42,
			Commitment:   7,
			PriorOutput:  0,
			ExpectOutput: 42,
		},
	}

	assert.SolvingSucceeded(circuit, witness, test.WithCurves(ecc.BN254))
}

func TestStepCircuit_CheckUtxoOutputMismatchFails(t *testing.T) {
	assert := test.NewAssert(t)

	circuit := &StepCircuit{}
	witness := &StepCircuit{
		CommitmentIn:  0,
		FinalizedIn:   0,
		CommitmentOut: 7,
		FinalizedOut:  1,
		Witness: StepWitness{
			Kind:         OpCheckUtxoOutput,
			UtxoID:       1,
			Input:        0,
			Output:       41,
			Commitment:   7,
			PriorOutput:  0,
			ExpectOutput: 42,
		},
	}

	assert.SolvingFailed(circuit, witness, test.WithCurves(ecc.BN254))
}

func TestStepCircuit_NopStepJustFoldsCommitment(t *testing.T) {
	assert := test.NewAssert(t)

	circuit := &StepCircuit{}
	witness := &StepCircuit{
		CommitmentIn:  3,
		FinalizedIn:   2,
		CommitmentOut: 8,
		FinalizedOut:  2,
		Witness: StepWitness{
			Kind:         OpNop,
			UtxoID:       0,
			Input:        0,
			Output:       0,
			Commitment:   5,
			PriorOutput:  0,
			ExpectOutput: 0,
		},
	}

	assert.SolvingSucceeded(circuit, witness, test.WithCurves(ecc.BN254))
}

func TestStepCircuit_YieldResumeMustMatchExpectedOutput(t *testing.T) {
	assert := test.NewAssert(t)

	circuit := &StepCircuit{}
	witness := &StepCircuit{
		CommitmentIn:  0,
		FinalizedIn:   0,
		CommitmentOut: 9,
		FinalizedOut:  0,
		Witness: StepWitness{
			Kind:         OpYieldResume,
			UtxoID:       1,
			Input:        0,
			Output:       100,
			Commitment:   9,
			PriorOutput:  0,
			ExpectOutput: 100,
		},
	}

	assert.SolvingSucceeded(circuit, witness, test.WithCurves(ecc.BN254))
}

func TestFinalAcceptance(t *testing.T) {
	if !FinalAcceptance(3, 3) {
		t.Fatal("expected acceptance when finalized count matches utxo count")
	}
	if FinalAcceptance(2, 3) {
		t.Fatal("expected rejection when finalized count is short of utxo count")
	}
}
