// Package matrixapi defines the narrow sparse-matrix collaborator
// interface consumed by the graph store: relation adjacency is
// represented as sparse matrices (label membership uses roaring
// bitmaps instead), and the store is written against this interface
// rather than any one backing implementation.
package matrixapi

// Cell is a non-zero matrix entry, as yielded by a TupleIter.
type Cell struct {
	Row, Col uint64
	Value    uint64
}

// TupleIter yields non-zero cells in row-major order and supports
// resuming from a given (row, col) — the graph store's row scans use
// this to jump straight to one source node's row.
type TupleIter interface {
	// Next advances to the next non-zero cell, returning false at end
	// of stream.
	Next() (Cell, bool)
	// ResumeFrom repositions the iterator to continue at-or-after
	// (row, col), exploiting the row-major order of relation matrices.
	ResumeFrom(row, col uint64)
	Close()
}

// Matrix is a resizable sparse boolean/id matrix. A stored Value of 0
// means "no entry"; the MSB of Value distinguishes a single EdgeID from
// a tagged pointer into a multi-edge list — that
// encoding is the caller's concern, not the Matrix implementation's.
type Matrix interface {
	// SetElement stores value at (row, col), resizing if out of bounds.
	SetElement(row, col uint64, value uint64)
	// Extract returns the element at (row, col) and whether it was set.
	Extract(row, col uint64) (uint64, bool)
	// RemoveElement clears (row, col).
	RemoveElement(row, col uint64)
	// ExtractTuples returns a TupleIter over all non-zero cells.
	ExtractTuples() TupleIter
	// Nvals returns the number of non-zero entries.
	Nvals() uint64
	// Resize grows the matrix to at least (rows, cols); implementations
	// may over-allocate to amortize repeated growth.
	Resize(rows, cols uint64)
	// Free releases any resources held by the matrix.
	Free()
}
