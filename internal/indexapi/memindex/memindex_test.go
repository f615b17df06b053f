package memindex

import (
	"testing"

	"github.com/graphkernel/corequery/internal/indexapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(it indexapi.Iterator) []int64 {
	var out []int64
	for {
		id, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, id)
	}
	it.Close()
	return out
}

func TestTokenizeSplitsOnPunctuation(t *testing.T) {
	assert.Equal(t, []string{"hello", "world", "42"}, Tokenize("Hello, world! 42"))
}

func TestAddDocumentAndQueryToken(t *testing.T) {
	ix := New()
	require.NoError(t, ix.AddDocument(indexapi.Document{EntityID: 1, Fields: map[int]any{0: "graph engine"}}))
	require.NoError(t, ix.AddDocument(indexapi.Document{EntityID: 2, Fields: map[int]any{0: "query planner"}}))

	it, err := ix.Query(indexapi.Token(0, "graph"))
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(it))
}

func TestRemoveDocumentDropsFromPostings(t *testing.T) {
	ix := New()
	require.NoError(t, ix.AddDocument(indexapi.Document{EntityID: 1, Fields: map[int]any{0: "graph"}}))
	require.NoError(t, ix.RemoveDocument(1))

	it, err := ix.Query(indexapi.Token(0, "graph"))
	require.NoError(t, err)
	assert.Empty(t, ids(it))
}

func TestQueryNumericRangeInclusiveBounds(t *testing.T) {
	ix := New()
	require.NoError(t, ix.AddDocument(indexapi.Document{EntityID: 1, Fields: map[int]any{1: 10.0}}))
	require.NoError(t, ix.AddDocument(indexapi.Document{EntityID: 2, Fields: map[int]any{1: 20.0}}))
	require.NoError(t, ix.AddDocument(indexapi.Document{EntityID: 3, Fields: map[int]any{1: 30.0}}))

	it, err := ix.Query(indexapi.NumericRange(1, 10, 20, false, true))
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(it))
}

func TestQueryIntersectAndUnion(t *testing.T) {
	ix := New()
	require.NoError(t, ix.AddDocument(indexapi.Document{EntityID: 1, Fields: map[int]any{0: "graph", 1: 5.0}}))
	require.NoError(t, ix.AddDocument(indexapi.Document{EntityID: 2, Fields: map[int]any{0: "graph", 1: 50.0}}))

	it, err := ix.Query(indexapi.Intersect(
		indexapi.Token(0, "graph"),
		indexapi.NumericRange(1, 0, 10, true, true),
	))
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(it))

	it, err = ix.Query(indexapi.Union(
		indexapi.NumericRange(1, 0, 10, true, true),
		indexapi.NumericRange(1, 40, 60, true, true),
	))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(it))
}

func TestQueryEmptyMatchesNothing(t *testing.T) {
	ix := New()
	require.NoError(t, ix.AddDocument(indexapi.Document{EntityID: 1, Fields: map[int]any{0: "graph"}}))

	it, err := ix.Query(indexapi.Empty())
	require.NoError(t, err)
	assert.Empty(t, ids(it))
}

func TestQueryTagMatchesAnyOfMultipleTags(t *testing.T) {
	ix := New()
	require.NoError(t, ix.AddDocument(indexapi.Document{EntityID: 1, Fields: map[int]any{0: "red"}}))
	require.NoError(t, ix.AddDocument(indexapi.Document{EntityID: 2, Fields: map[int]any{0: "blue"}}))
	require.NoError(t, ix.AddDocument(indexapi.Document{EntityID: 3, Fields: map[int]any{0: "green"}}))

	it, err := ix.Query(indexapi.Tag(0, "red", "green"))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids(it))
}
