package graph

// State is the complete in-memory graph plus its derived indexes. It is
// rebuilt in full after every load and after every successful save — there
// is no incremental index maintenance (see Indexer).
//
// The entity and relation slices are the single owners of the records they
// hold; the indexes below reference entities by name only.
type State struct {
	Entities  []*Entity
	Relations []Relation

	// NameIndex maps an entity name to its record. Populated by Rebuild.
	NameIndex map[string]*Entity

	// InvertedIndex maps a token to the set of entity names whose indexed
	// text contains that token. Populated by Rebuild (see Indexer).
	InvertedIndex map[string]map[string]struct{}
}

// New returns an empty graph state.
func New() *State {
	return &State{
		Entities:      []*Entity{},
		Relations:     []Relation{},
		NameIndex:     map[string]*Entity{},
		InvertedIndex: map[string]map[string]struct{}{},
	}
}

// FindEntity returns the entity with the given name, or nil.
func (s *State) FindEntity(name string) *Entity {
	return s.NameIndex[name]
}

// HasRelation reports whether a relation with this exact triple exists.
func (s *State) HasRelation(r Relation) bool {
	t := r.Triple()
	for _, existing := range s.Relations {
		if existing.Triple() == t {
			return true
		}
	}
	return false
}

// DegreeMap counts, for every entity name, the number of relation endpoints
// it participates in. A relation touching the same entity on both ends
// (a self-loop) contributes 2; parallel relations between the same pair
// each contribute independently. This mirrors spec.md's "degree" semantics
// exactly — it is not deduplicated by neighbor.
func (s *State) DegreeMap() map[string]int {
	deg := make(map[string]int, len(s.Entities))
	for _, r := range s.Relations {
		deg[r.From]++
		deg[r.To]++
	}
	return deg
}

// RemoveEntities deletes every entity whose name is in names, and every
// relation touching any of them. Returns the set of names that were
// actually present (for logging/metrics); missing names are silently
// ignored, preserving the mutation's idempotence.
func (s *State) RemoveEntities(names []string) []string {
	toRemove := make(map[string]struct{}, len(names))
	for _, n := range names {
		toRemove[n] = struct{}{}
	}

	removed := make([]string, 0, len(names))
	kept := make([]*Entity, 0, len(s.Entities))
	for _, e := range s.Entities {
		if _, ok := toRemove[e.Name]; ok {
			removed = append(removed, e.Name)
			continue
		}
		kept = append(kept, e)
	}
	s.Entities = kept

	keptRel := make([]Relation, 0, len(s.Relations))
	for _, r := range s.Relations {
		_, fromGone := toRemove[r.From]
		_, toGone := toRemove[r.To]
		if fromGone || toGone {
			continue
		}
		keptRel = append(keptRel, r)
	}
	s.Relations = keptRel

	return removed
}

// RemoveRelations deletes every relation whose triple is in rels. Missing
// triples are ignored.
func (s *State) RemoveRelations(rels []Relation) {
	toRemove := make(map[[3]string]struct{}, len(rels))
	for _, r := range rels {
		toRemove[r.Triple()] = struct{}{}
	}

	kept := make([]Relation, 0, len(s.Relations))
	for _, r := range s.Relations {
		if _, ok := toRemove[r.Triple()]; ok {
			continue
		}
		kept = append(kept, r)
	}
	s.Relations = kept
}
