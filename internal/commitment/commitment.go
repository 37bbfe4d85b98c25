// Package commitment implements the sponge-based incremental commitment
// a transaction accumulates per program instance, binding that program's
// execution trace (every value it passed and every byte of memory it
// touched) to a single field element the step circuit folds into the
// IVC chain's public output.
package commitment

import (
	"encoding/binary"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	gnarkhash "github.com/consensys/gnark-crypto/hash"

	"github.com/PaimaStudios/starstream/internal/program"
)

// Digest is a committed value: one BN254 scalar field element, serialized
// in its canonical 32-byte big-endian form.
type Digest [fr.Bytes]byte

// Sponge accumulates a running Poseidon2 commitment over everything
// absorbed into it so far. It is computed out-of-circuit only:
// internal/circuit does not recompute it, its step circuit just adds each
// step's commitment value into a running sum. One Sponge
// is kept per live program instance (internal/scheduler owns the set);
// every witness transfer that program participates in is absorbed before
// the program resumes or finishes.
type Sponge struct {
	h gnarkhash.StateStorer
}

// New constructs an empty sponge.
func New() *Sponge {
	return &Sponge{h: gnarkhash.POSEIDON2_BN254.New()}
}

// AbsorbUint64 folds a single value in, in little-endian byte order, the
// same width a witness.Entry's Values/Memory hold their data in.
func (s *Sponge) AbsorbUint64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	s.AbsorbBytes(buf[:])
}

// AbsorbBytes folds an arbitrary byte span in, reducing it to field
// elements the way a memory read/write segment contributes to a
// program's trace commitment.
func (s *Sponge) AbsorbBytes(data []byte) {
	s.h.Write(data)
}

// Digest returns the sponge's current accumulated value without
// finalizing it — absorbing more data afterward continues from here,
// matching the original's per-witness running commitment rather than a
// one-shot hash.
func (s *Sponge) Digest() Digest {
	var d Digest
	copy(d[:], s.h.Sum(nil))
	return d
}

// Table is the per-transaction set of running sponges, one per program
// instance, keyed the same way internal/program.Table keys its rows.
type Table struct {
	sponges map[program.Idx]*Sponge
}

// NewTable constructs an empty commitment table for one transaction.
func NewTable() *Table {
	return &Table{sponges: make(map[program.Idx]*Sponge)}
}

// Absorb folds values and memory segments into idx's running sponge,
// creating it on first use. internal/scheduler calls this once per
// witness entry, mirroring the per-witness fuel snapshot it already
// keeps.
func (t *Table) Absorb(idx program.Idx, values []uint64, data [][]byte) {
	s, ok := t.sponges[idx]
	if !ok {
		s = New()
		t.sponges[idx] = s
	}
	for _, v := range values {
		s.AbsorbUint64(v)
	}
	for _, b := range data {
		s.AbsorbBytes(b)
	}
}

// Digest returns idx's current running commitment, or the zero Digest if
// nothing has been absorbed for it yet.
func (t *Table) Digest(idx program.Idx) Digest {
	s, ok := t.sponges[idx]
	if !ok {
		return Digest{}
	}
	return s.Digest()
}
