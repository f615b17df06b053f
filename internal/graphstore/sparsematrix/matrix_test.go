package sparsematrix

import (
	"testing"

	"github.com/graphkernel/corequery/internal/matrixapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetExtractRemoveRoundTrip(t *testing.T) {
	m := New(4, 4)
	m.SetElement(1, 2, 99)

	v, ok := m.Extract(1, 2)
	require.True(t, ok)
	assert.Equal(t, uint64(99), v)
	assert.Equal(t, uint64(1), m.Nvals())

	m.RemoveElement(1, 2)
	_, ok = m.Extract(1, 2)
	assert.False(t, ok)
	assert.Equal(t, uint64(0), m.Nvals())
}

func TestSetElementOverwriteKeepsNvals(t *testing.T) {
	m := New(4, 4)
	m.SetElement(0, 0, 1)
	m.SetElement(0, 0, 2)
	assert.Equal(t, uint64(1), m.Nvals())
	v, _ := m.Extract(0, 0)
	assert.Equal(t, uint64(2), v)
}

func TestSetElementGrowsOutOfBounds(t *testing.T) {
	m := New(1, 1)
	m.SetElement(10, 20, 7)
	v, ok := m.Extract(10, 20)
	require.True(t, ok)
	assert.Equal(t, uint64(7), v)
}

func collect(it matrixapi.TupleIter) []matrixapi.Cell {
	var out []matrixapi.Cell
	for {
		c, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, c)
	}
	it.Close()
	return out
}

func TestTupleIterRowMajorOrder(t *testing.T) {
	m := New(8, 8)
	m.SetElement(2, 5, 1)
	m.SetElement(0, 3, 2)
	m.SetElement(2, 1, 3)

	cells := collect(m.ExtractTuples())
	require.Len(t, cells, 3)
	assert.Equal(t, matrixapi.Cell{Row: 0, Col: 3, Value: 2}, cells[0])
	assert.Equal(t, matrixapi.Cell{Row: 2, Col: 1, Value: 3}, cells[1])
	assert.Equal(t, matrixapi.Cell{Row: 2, Col: 5, Value: 1}, cells[2])
}

func TestTupleIterResumeFrom(t *testing.T) {
	m := New(8, 8)
	m.SetElement(0, 0, 1)
	m.SetElement(1, 1, 2)
	m.SetElement(1, 4, 3)
	m.SetElement(3, 0, 4)

	it := m.ExtractTuples()
	it.ResumeFrom(1, 2)
	cells := collect(it)
	require.Len(t, cells, 2)
	assert.Equal(t, uint64(3), cells[0].Value)
	assert.Equal(t, uint64(4), cells[1].Value)
}

func TestTupleIterResumeFromMissingRowSkipsForward(t *testing.T) {
	m := New(8, 8)
	m.SetElement(0, 0, 1)
	m.SetElement(5, 0, 2)

	it := m.ExtractTuples()
	it.ResumeFrom(2, 0)
	cells := collect(it)
	require.Len(t, cells, 1)
	assert.Equal(t, uint64(2), cells[0].Value)
}
