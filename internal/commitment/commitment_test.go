package commitment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PaimaStudios/starstream/internal/program"
)

func TestSponge_SameInputsProduceSameDigest(t *testing.T) {
	a := New()
	a.AbsorbUint64(42)
	a.AbsorbBytes([]byte("starstream"))

	b := New()
	b.AbsorbUint64(42)
	b.AbsorbBytes([]byte("starstream"))

	assert.Equal(t, a.Digest(), b.Digest())
}

func TestSponge_DifferentInputsProduceDifferentDigests(t *testing.T) {
	a := New()
	a.AbsorbUint64(1)

	b := New()
	b.AbsorbUint64(2)

	assert.NotEqual(t, a.Digest(), b.Digest())
}

func TestSponge_AbsorbingMoreChangesTheDigest(t *testing.T) {
	s := New()
	s.AbsorbUint64(1)
	first := s.Digest()

	s.AbsorbUint64(2)
	second := s.Digest()

	assert.NotEqual(t, first, second)
}

func TestTable_DigestOfUntouchedProgramIsZero(t *testing.T) {
	tbl := NewTable()
	assert.Equal(t, Digest{}, tbl.Digest(program.Idx(7)))
}

func TestTable_AbsorbIsPerProgram(t *testing.T) {
	tbl := NewTable()
	tbl.Absorb(0, []uint64{1, 2, 3}, nil)
	tbl.Absorb(1, []uint64{9}, nil)

	assert.NotEqual(t, tbl.Digest(0), tbl.Digest(1))
	assert.NotEqual(t, Digest{}, tbl.Digest(0))
}
