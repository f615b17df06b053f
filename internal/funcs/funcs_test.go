package funcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphkernel/corequery/internal/value"
)

func TestToUpperLower(t *testing.T) {
	tbl := Default()
	v, err := tbl.Call("toUpper", []value.V{value.StrSelf("abc")})
	require.NoError(t, err)
	assert.Equal(t, "ABC", v.Str())

	v, err = tbl.Call("toLower", []value.V{value.StrSelf("ABC")})
	require.NoError(t, err)
	assert.Equal(t, "abc", v.Str())
}

func TestSizeOfStringArrayMap(t *testing.T) {
	tbl := Default()
	v, err := tbl.Call("size", []value.V{value.StrSelf("hello")})
	require.NoError(t, err)
	assert.Equal(t, int64(5), v.Int())

	v, err = tbl.Call("size", []value.V{value.ArraySelf([]value.V{value.Int(1), value.Int(2)})})
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Int())
}

func TestCoalesceSkipsNulls(t *testing.T) {
	tbl := Default()
	v, err := tbl.Call("coalesce", []value.V{value.Null(), value.Null(), value.Int(7)})
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.Int())
}

func TestCoalesceAllNull(t *testing.T) {
	tbl := Default()
	v, err := tbl.Call("coalesce", []value.V{value.Null(), value.Null()})
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestRangeInclusiveBounds(t *testing.T) {
	tbl := Default()
	v, err := tbl.Call("range", []value.V{value.Int(1), value.Int(3)})
	require.NoError(t, err)
	arr := v.Array()
	require.Len(t, arr, 3)
	assert.Equal(t, int64(1), arr[0].Int())
	assert.Equal(t, int64(3), arr[2].Int())
}

func TestRangeRejectsZeroStep(t *testing.T) {
	tbl := Default()
	_, err := tbl.Call("range", []value.V{value.Int(1), value.Int(3), value.Int(0)})
	assert.Error(t, err)
}

func TestIdAndLabelsOnNode(t *testing.T) {
	tbl := Default()
	n := value.Node(value.NodeRef{ID: 42, Labels: []string{"Person", "Admin"}})
	v, err := tbl.Call("id", []value.V{n})
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int())

	v, err = tbl.Call("labels", []value.V{n})
	require.NoError(t, err)
	assert.Len(t, v.Array(), 2)
}

func TestSubstringBounds(t *testing.T) {
	tbl := Default()
	v, err := tbl.Call("substring", []value.V{value.StrSelf("hello world"), value.Int(6)})
	require.NoError(t, err)
	assert.Equal(t, "world", v.Str())

	v, err = tbl.Call("substring", []value.V{value.StrSelf("hello world"), value.Int(0), value.Int(5)})
	require.NoError(t, err)
	assert.Equal(t, "hello", v.Str())
}

func TestUnknownFunctionErrors(t *testing.T) {
	tbl := Default()
	_, err := tbl.Call("notAFunction", nil)
	assert.Error(t, err)
}

func TestNullPropagatesThroughUnaryFunctions(t *testing.T) {
	tbl := Default()
	v, err := tbl.Call("toUpper", []value.V{value.Null()})
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}
