package constraint

import (
	"testing"

	"github.com/graphkernel/corequery/internal/graphstore"
	"github.com/graphkernel/corequery/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnforceMandatoryPassesWhenAttributePresent(t *testing.T) {
	s := graphstore.New()
	p := s.Ctx.LabelID("Person")
	name := s.Ctx.AttrID("name")
	id := s.CreateNode([]graphstore.SchemaID{p})
	s.SetNodeAttr(id, int(name), value.StrSelf("alice"))

	c := New(Mandatory, NodeEntity, p, []int{int(name)})
	Enforce(c, s)

	assert.Equal(t, Active, c.GetStatus())
	assert.EqualValues(t, 0, c.PendingChanges(), "enforcement releases the creation's pending change")
}

func TestEnforceMandatoryFailsWhenAttributeMissing(t *testing.T) {
	s := graphstore.New()
	p := s.Ctx.LabelID("Person")
	name := s.Ctx.AttrID("name")
	s.CreateNode([]graphstore.SchemaID{p})

	c := New(Mandatory, NodeEntity, p, []int{int(name)})
	Enforce(c, s)

	assert.Equal(t, Failed, c.GetStatus())
}

func TestEnforceUniqueDetectsDuplicate(t *testing.T) {
	s := graphstore.New()
	p := s.Ctx.LabelID("Person")
	email := s.Ctx.AttrID("email")
	a := s.CreateNode([]graphstore.SchemaID{p})
	b := s.CreateNode([]graphstore.SchemaID{p})
	s.SetNodeAttr(a, int(email), value.StrSelf("x@example.com"))
	s.SetNodeAttr(b, int(email), value.StrSelf("x@example.com"))

	c := New(Unique, NodeEntity, p, []int{int(email)})
	Enforce(c, s)

	assert.Equal(t, Failed, c.GetStatus())
}

func TestEnforceUniquePassesForDistinctValues(t *testing.T) {
	s := graphstore.New()
	p := s.Ctx.LabelID("Person")
	email := s.Ctx.AttrID("email")
	a := s.CreateNode([]graphstore.SchemaID{p})
	b := s.CreateNode([]graphstore.SchemaID{p})
	s.SetNodeAttr(a, int(email), value.StrSelf("a@example.com"))
	s.SetNodeAttr(b, int(email), value.StrSelf("b@example.com"))

	c := New(Unique, NodeEntity, p, []int{int(email)})
	Enforce(c, s)

	assert.Equal(t, Active, c.GetStatus())
}

func TestPendingChangesLifecycle(t *testing.T) {
	c := New(Mandatory, NodeEntity, 0, []int{0})
	require.EqualValues(t, 1, c.PendingChanges())

	c.IncPendingChanges()
	assert.EqualValues(t, 2, c.PendingChanges())

	c.DecPendingChanges()
	c.DecPendingChanges()
	assert.EqualValues(t, 0, c.PendingChanges())
}

func TestManagerForLabelFiltersByKind(t *testing.T) {
	m := NewManager()
	nodeC := New(Mandatory, NodeEntity, 5, []int{0})
	edgeC := New(Mandatory, EdgeEntity, 5, []int{0})
	m.Add(nodeC)
	m.Add(edgeC)

	got := m.ForLabel(5, NodeEntity)
	require.Len(t, got, 1)
	assert.Same(t, nodeC, got[0])
}
