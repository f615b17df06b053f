package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCmpNullOrdering(t *testing.T) {
	ord, nc := Cmp(Null(), Int(1))
	assert.Equal(t, CmpNull, nc)
	assert.Equal(t, -1, ord)
}

func TestCmpNumericCrossKind(t *testing.T) {
	ord, nc := Cmp(Int(1), Float(1.0))
	require.Equal(t, CmpOK, nc)
	assert.Equal(t, 0, ord)
}

func TestCmpFloatSubULP(t *testing.T) {
	// preserve numeric-equality-after-cast
	// semantics, so a sub-ULP-different float is NOT equal to the int.
	assert.False(t, Equal(Float(1.0000000001), Int(1)))
}

func TestCmpDisjointKinds(t *testing.T) {
	_, nc := Cmp(Int(1), StrSelf("1"))
	assert.Equal(t, CmpDisjoint, nc)
	// = / != still work across disjoint kinds, returning false/true.
	assert.False(t, Equal(Int(1), StrSelf("1")))
}

func TestCmpStringLexicographic(t *testing.T) {
	ord, _ := Cmp(StrSelf("abc"), StrSelf("abd"))
	assert.Equal(t, -1, ord)
}

func TestCmpArrayElementwiseWithLengthTiebreak(t *testing.T) {
	a := ArraySelf([]V{Int(1), Int(2)})
	b := ArraySelf([]V{Int(1), Int(2), Int(3)})
	ord, _ := Cmp(a, b)
	assert.Equal(t, -1, ord)
}

func TestHashAgreementBoolVsInt(t *testing.T) {
	assert.NotEqual(t, Hash64(Bool(true)), Hash64(Int(1)))
}

func TestHashAgreementIntVsFloat(t *testing.T) {
	assert.Equal(t, Hash64(Int(1)), Hash64(Float(1.0)))
}

func TestHashAgreementWithCmp(t *testing.T) {
	a, b := StrSelf("hello"), StrSelf("hello")
	require.True(t, Equal(a, b))
	assert.Equal(t, Hash64(a), Hash64(b))
}

func TestThreeValuedLogic(t *testing.T) {
	assert.Equal(t, TriFalse, And(TriFalse, TriUnknown))
	assert.Equal(t, TriTrue, Or(TriTrue, TriUnknown))
	assert.Equal(t, TriUnknown, And(TriTrue, TriUnknown))
	assert.Equal(t, TriUnknown, Not(TriUnknown))
}

func TestArithNullPropagation(t *testing.T) {
	v, err := Add(Null(), Int(5))
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	v, err = Arith(OpMul, Int(5), Null())
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestArithStringConcat(t *testing.T) {
	v, err := Add(StrSelf("a"), Int(1))
	require.NoError(t, err)
	assert.Equal(t, "a1", v.Str())
}

func TestArithArrayConcatAssociative(t *testing.T) {
	a := ArraySelf([]V{Int(1)})
	b := ArraySelf([]V{Int(2)})
	c := ArraySelf([]V{Int(3)})

	left, err := Add(a, b)
	require.NoError(t, err)
	left, err = Add(left, c)
	require.NoError(t, err)

	rightInner, err := Add(b, c)
	require.NoError(t, err)
	right, err := Add(a, rightInner)
	require.NoError(t, err)

	assert.True(t, Equal(left, right))
	assert.Len(t, left.Array(), len(a.Array())+len(b.Array())+len(c.Array()))
}

func TestArithIntStaysInt(t *testing.T) {
	v, err := Arith(OpAdd, Int(2), Int(3))
	require.NoError(t, err)
	assert.Equal(t, KindInt, v.Kind())
}

func TestArithFloatPromotion(t *testing.T) {
	v, err := Arith(OpAdd, Int(2), Float(3.5))
	require.NoError(t, err)
	assert.Equal(t, KindFloat, v.Kind())
	assert.Equal(t, 5.5, v.Float())
}

func TestArithDivideAlwaysFloat(t *testing.T) {
	v, err := Arith(OpDiv, Int(4), Int(2))
	require.NoError(t, err)
	assert.Equal(t, KindFloat, v.Kind())
}

func TestArithDivideByZero(t *testing.T) {
	v, err := Arith(OpDiv, Int(1), Int(0))
	require.Error(t, err)
	assert.True(t, v.IsNull())
}

func TestPersistUpgradesVolatile(t *testing.T) {
	v := StrVolatile("hi")
	p := Persist(v)
	assert.Equal(t, AllocSelf, p.Alloc())
}

func TestAttrMapRoundTrip(t *testing.T) {
	m := NewAttrMap()
	m.Set("a", Int(1))
	m.Set("b", Int(2))
	got, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, int64(1), got.Int())
	assert.Equal(t, []string{"a", "b"}, m.Keys())
}

func TestFormatFloatFifteenSigFigs(t *testing.T) {
	assert.Equal(t, "0.1", formatFloat(0.1))
	assert.Equal(t, "2.0", formatFloat(2.0))
}
