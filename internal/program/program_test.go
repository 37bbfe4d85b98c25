package program_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaimaStudios/starstream/internal/code"
	"github.com/PaimaStudios/starstream/internal/program"
)

func TestTable_AppendAssignsStableIndices(t *testing.T) {
	tbl := program.NewTable()

	i0 := tbl.Append(program.Program{ReturnTo: program.Root, Code: code.Hash{}, EntryPoint: "main"})
	i1 := tbl.Append(program.Program{ReturnTo: i0, Code: code.Hash{}, EntryPoint: "starstream_new_x"})

	assert.Equal(t, program.Idx(0), i0)
	assert.Equal(t, program.Idx(1), i1)
	assert.Equal(t, 2, tbl.Len())

	p1 := tbl.Get(i1)
	require.Equal(t, i0, p1.ReturnTo)
	assert.Equal(t, program.NotStarted, p1.State)
}

func TestTable_GetReturnsMutableView(t *testing.T) {
	tbl := program.NewTable()
	idx := tbl.Append(program.Program{ReturnTo: program.Root})

	tbl.Get(idx).State = program.Finished
	assert.Equal(t, program.Finished, tbl.Get(idx).State)
}

func TestIdx_RootStringsDistinctly(t *testing.T) {
	assert.Equal(t, "Root", program.Root.String())
	assert.Equal(t, "0", program.Idx(0).String())
	assert.Equal(t, "42", program.Idx(42).String())
}
