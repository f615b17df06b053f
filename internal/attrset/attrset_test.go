package attrset

import (
	"testing"

	"github.com/graphkernel/corequery/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	s := New()
	tag := s.Set(1, value.Int(42))
	assert.Equal(t, Added, tag)

	got, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(42), got.Int())
}

func TestSetNullDeletes(t *testing.T) {
	s := New()
	s.Set(1, value.Int(1))
	tag := s.Set(1, value.Null())
	assert.Equal(t, Deleted, tag)
	_, ok := s.Get(1)
	assert.False(t, ok)
}

func TestSetUpdateTag(t *testing.T) {
	s := New()
	s.Set(1, value.Int(1))
	tag := s.Set(1, value.Int(2))
	assert.Equal(t, Updated, tag)
}

func TestRemoveRestoresOriginalShape(t *testing.T) {
	s := New()
	s.Set(1, value.Int(1))
	removed := s.Remove(1)
	assert.True(t, removed)
	assert.Equal(t, 0, s.Len())
}

func TestClearReturnsCount(t *testing.T) {
	s := New()
	s.Set(1, value.Int(1))
	s.Set(2, value.Int(2))
	assert.Equal(t, 2, s.Clear())
	assert.Equal(t, 0, s.Len())
}

func TestCloneDeepCopiesSelfValues(t *testing.T) {
	s := New()
	s.Set(1, value.StrSelf("hi"))
	clone := s.Clone()
	clone.Set(1, value.StrSelf("bye"))

	original, _ := s.Get(1)
	assert.Equal(t, "hi", original.Str())
}

func TestIterationOrderStable(t *testing.T) {
	s := New()
	s.Set(3, value.Int(3))
	s.Set(1, value.Int(1))
	s.Set(2, value.Int(2))
	assert.Equal(t, []int{3, 1, 2}, s.IDs())
}
