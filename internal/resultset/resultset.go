// Package resultset implements row buffering and the tabular result
// set exposed to callers: column headers, a row iterator, and
// execution statistics. Encoding into the two wire formats lives in
// verbose.go/compact.go.
package resultset

import (
	"errors"

	"github.com/graphkernel/corequery/internal/plan"
	"github.com/graphkernel/corequery/internal/value"
)

// Stats is plan.Stats itself: the execution statistics
// (nodes/relationships created and deleted, properties set, labels
// added and removed) together with the row count.
type Stats = plan.Stats

// ErrNoMoreRows is returned by nothing in this package directly but is
// kept as a documented sentinel for callers building their own row
// iterators on top of Set.
var ErrNoMoreRows = errors.New("resultset: no more rows")

// Set is the buffered result of one query: column names in projection
// order, every row already materialized (each value Persist'd past its
// producing Record), and final execution statistics.
type Set struct {
	Columns []string
	Rows    [][]value.V
	Stats   Stats
}

// New returns an empty result set with the given column names.
func New(columns []string) *Set {
	return &Set{Columns: append([]string(nil), columns...)}
}

// AddRow appends one already-persisted row. Its length must equal
// len(Columns); callers (the driver loop pulling from the root
// operator) are responsible for that invariant.
func (s *Set) AddRow(row []value.V) {
	s.Rows = append(s.Rows, row)
	s.Stats.Rows++
}

// RowIterator lets a caller consume rows one at a time without holding
// a reference to the whole buffered slice.
type RowIterator struct {
	set *Set
	pos int
}

// Iterator returns a fresh iterator over s's buffered rows.
func (s *Set) Iterator() *RowIterator { return &RowIterator{set: s} }

// Next returns the next row, or ok=false once exhausted.
func (it *RowIterator) Next() (row []value.V, ok bool) {
	if it.pos >= len(it.set.Rows) {
		return nil, false
	}
	row = it.set.Rows[it.pos]
	it.pos++
	return row, true
}
