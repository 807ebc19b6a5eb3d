package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDegreeMap_SelfLoopCountsTwice(t *testing.T) {
	s := New()
	s.Relations = []Relation{{From: "a", To: "a", RelationType: "self"}}
	deg := s.DegreeMap()
	assert.Equal(t, 2, deg["a"])
}

func TestDegreeMap_ParallelRelations(t *testing.T) {
	s := New()
	s.Relations = []Relation{
		{From: "a", To: "b", RelationType: "r1"},
		{From: "a", To: "b", RelationType: "r2"},
	}
	deg := s.DegreeMap()
	assert.Equal(t, 2, deg["a"])
	assert.Equal(t, 2, deg["b"])
}

func TestRemoveEntities_CascadesRelations(t *testing.T) {
	s := New()
	s.Entities = []*Entity{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	s.Relations = []Relation{
		{From: "a", To: "b", RelationType: "rel"},
		{From: "b", To: "c", RelationType: "rel"},
	}
	s.Rebuild()

	removed := s.RemoveEntities([]string{"a", "missing"})
	assert.Equal(t, []string{"a"}, removed)
	assert.Len(t, s.Entities, 2)

	for _, r := range s.Relations {
		assert.NotEqual(t, "a", r.From)
		assert.NotEqual(t, "a", r.To)
	}
	assert.Len(t, s.Relations, 1)
}

func TestRemoveRelations_IgnoresMissingTriples(t *testing.T) {
	s := New()
	s.Relations = []Relation{{From: "a", To: "b", RelationType: "rel"}}
	s.RemoveRelations([]Relation{{From: "a", To: "b", RelationType: "other"}})
	assert.Len(t, s.Relations, 1, "missing triple is a no-op")

	s.RemoveRelations([]Relation{{From: "a", To: "b", RelationType: "rel"}})
	assert.Len(t, s.Relations, 0)
}

func TestHasRelation(t *testing.T) {
	s := New()
	r := Relation{From: "a", To: "b", RelationType: "rel"}
	assert.False(t, s.HasRelation(r))
	s.Relations = append(s.Relations, r)
	assert.True(t, s.HasRelation(r))
}
