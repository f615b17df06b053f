// Package sparsematrix is the in-tree implementation of matrixapi.Matrix
// used when no external GraphBLAS-style library is wired in. It favors a
// row-bucketed map of sorted columns: cheap resize (append-only row
// slice), fast row-scan for expand operators, and straightforward
// row-major iteration with resume support for the store's row scans.
//
// Grounded on the *shape* of katalvlaran-lvlath's graph/adjacency_matrix.go
// (a plain row/col sparse representation for an adjacency matrix), not
// on a dense numeric tensor library — these are boolean/id
// membership matrices, not numeric tensors, so a CSR-like map beats
// pulling in a BLAS-oriented dependency. See DESIGN.md.
package sparsematrix

import (
	"sort"

	"github.com/graphkernel/corequery/internal/matrixapi"
)

type row struct {
	cols []uint64
	vals []uint64
}

func (r *row) find(col uint64) int {
	return sort.Search(len(r.cols), func(i int) bool { return r.cols[i] >= col })
}

func (r *row) set(col, val uint64) {
	i := r.find(col)
	if i < len(r.cols) && r.cols[i] == col {
		r.vals[i] = val
		return
	}
	r.cols = append(r.cols, 0)
	r.vals = append(r.vals, 0)
	copy(r.cols[i+1:], r.cols[i:])
	copy(r.vals[i+1:], r.vals[i:])
	r.cols[i] = col
	r.vals[i] = val
}

func (r *row) get(col uint64) (uint64, bool) {
	i := r.find(col)
	if i < len(r.cols) && r.cols[i] == col {
		return r.vals[i], true
	}
	return 0, false
}

func (r *row) remove(col uint64) {
	i := r.find(col)
	if i < len(r.cols) && r.cols[i] == col {
		r.cols = append(r.cols[:i], r.cols[i+1:]...)
		r.vals = append(r.vals[:i], r.vals[i+1:]...)
	}
}

// Matrix is the default sparsematrix.Matrix implementation.
type Matrix struct {
	rows       map[uint64]*row
	rowOrder   []uint64 // sorted, maintained lazily
	orderDirty bool
	nrows      uint64
	ncols      uint64
	nvals      uint64
}

// New returns an empty matrix sized (rows, cols).
func New(rows, cols uint64) *Matrix {
	return &Matrix{rows: make(map[uint64]*row), nrows: rows, ncols: cols}
}

var _ matrixapi.Matrix = (*Matrix)(nil)

func (m *Matrix) SetElement(r, c uint64, value uint64) {
	if r >= m.nrows || c >= m.ncols {
		m.Resize(r+1, c+1)
	}
	rw := m.rows[r]
	if rw == nil {
		rw = &row{}
		m.rows[r] = rw
		m.orderDirty = true
	}
	_, existed := rw.get(c)
	rw.set(c, value)
	if !existed {
		m.nvals++
	}
}

func (m *Matrix) Extract(r, c uint64) (uint64, bool) {
	row, ok := m.rows[r]
	if !ok {
		return 0, false
	}
	return row.get(c)
}

func (m *Matrix) RemoveElement(r, c uint64) {
	row, ok := m.rows[r]
	if !ok {
		return
	}
	if _, existed := row.get(c); existed {
		row.remove(c)
		m.nvals--
	}
}

func (m *Matrix) Nvals() uint64 { return m.nvals }

func (m *Matrix) Resize(rows, cols uint64) {
	if rows > m.nrows {
		m.nrows = rows
	}
	if cols > m.ncols {
		m.ncols = cols
	}
}

func (m *Matrix) Free() {
	m.rows = nil
	m.rowOrder = nil
	m.nvals = 0
}

func (m *Matrix) sortedRows() []uint64 {
	if m.orderDirty || m.rowOrder == nil {
		order := make([]uint64, 0, len(m.rows))
		for r := range m.rows {
			order = append(order, r)
		}
		sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
		m.rowOrder = order
		m.orderDirty = false
	}
	return m.rowOrder
}

func (m *Matrix) ExtractTuples() matrixapi.TupleIter {
	return &tupleIter{m: m, rowIdx: -1}
}

type tupleIter struct {
	m      *Matrix
	order  []uint64
	rowIdx int
	colIdx int
}

func (it *tupleIter) ensureOrder() {
	if it.order == nil {
		it.order = it.m.sortedRows()
	}
}

func (it *tupleIter) Next() (matrixapi.Cell, bool) {
	it.ensureOrder()
	for {
		if it.rowIdx < 0 {
			it.rowIdx = 0
			it.colIdx = 0
		}
		if it.rowIdx >= len(it.order) {
			return matrixapi.Cell{}, false
		}
		r := it.order[it.rowIdx]
		row := it.m.rows[r]
		if it.colIdx >= len(row.cols) {
			it.rowIdx++
			it.colIdx = 0
			continue
		}
		cell := matrixapi.Cell{Row: r, Col: row.cols[it.colIdx], Value: row.vals[it.colIdx]}
		it.colIdx++
		return cell, true
	}
}

// ResumeFrom repositions the iterator to the first cell at or after
// (row, col) in row-major order.
func (it *tupleIter) ResumeFrom(row, col uint64) {
	it.ensureOrder()
	it.rowIdx = sort.Search(len(it.order), func(i int) bool { return it.order[i] >= row })
	it.colIdx = 0
	if it.rowIdx < len(it.order) && it.order[it.rowIdx] == row {
		r := it.m.rows[row]
		it.colIdx = sort.Search(len(r.cols), func(i int) bool { return r.cols[i] >= col })
	}
}

func (it *tupleIter) Close() {}
