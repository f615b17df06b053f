package undolog

import (
	"testing"

	"github.com/graphkernel/corequery/internal/graphstore"
	"github.com/graphkernel/corequery/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollbackCreateNode(t *testing.T) {
	s := graphstore.New()
	p := s.Ctx.LabelID("Person")
	id := s.CreateNode([]graphstore.SchemaID{p})

	log := New()
	log.CreateNode(id)

	Rollback(log, s)
	assert.Nil(t, s.GetNode(id))
	assert.Equal(t, 0, log.Len())
}

func TestRollbackDeleteNodeRestoresSameID(t *testing.T) {
	s := graphstore.New()
	p := s.Ctx.LabelID("Person")
	id := s.CreateNode([]graphstore.SchemaID{p})
	node := s.GetNode(id)
	node.Attrs.Set(1, value.StrSelf("alice"))

	log := New()
	labels := []graphstore.SchemaID{p}
	attrs := node.Attrs.Clone()
	s.DeleteNode(id)
	log.DeleteNode(id, labels, attrs)

	Rollback(log, s)
	restored := s.GetNode(id)
	require.NotNil(t, restored)
	v, ok := restored.Attrs.Get(1)
	require.True(t, ok)
	assert.Equal(t, "alice", v.Str())
}

func TestRollbackUpdateEntityRestoresOriginalValue(t *testing.T) {
	s := graphstore.New()
	p := s.Ctx.LabelID("Person")
	id := s.CreateNode([]graphstore.SchemaID{p})
	s.SetNodeAttr(id, 1, value.Int(10))

	log := New()
	log.UpdateEntity(id, false, 1, value.Int(10))
	s.SetNodeAttr(id, 1, value.Int(99))

	Rollback(log, s)
	v, ok := s.GetNode(id).Attrs.Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(10), v.Int())
}

func TestRollbackGroupsContiguousRunsInReverseOrder(t *testing.T) {
	s := graphstore.New()
	p := s.Ctx.LabelID("Person")
	a := s.CreateNode([]graphstore.SchemaID{p})
	b := s.CreateNode([]graphstore.SchemaID{p})

	log := New()
	log.CreateNode(a)
	log.CreateNode(b)

	Rollback(log, s)
	assert.Nil(t, s.GetNode(a))
	assert.Nil(t, s.GetNode(b))
}

func TestRollbackSetLabelsUndoesAsRemove(t *testing.T) {
	s := graphstore.New()
	p := s.Ctx.LabelID("Person")
	vip := s.Ctx.LabelID("VIP")
	id := s.CreateNode([]graphstore.SchemaID{p})

	s.SetLabels(id, []graphstore.SchemaID{vip})
	log := New()
	log.SetLabels(id, []graphstore.SchemaID{vip})

	Rollback(log, s)
	nodes := s.NodesWithLabel(vip)
	assert.Empty(t, nodes)
}

func TestRollbackAddAttributePopsTail(t *testing.T) {
	s := graphstore.New()
	s.Ctx.AttrID("name")
	before := s.Ctx.AttrCount()

	log := New()
	s.Ctx.AttrID("age")
	log.AddAttribute()

	Rollback(log, s)
	assert.Equal(t, before, s.Ctx.AttrCount())
}
