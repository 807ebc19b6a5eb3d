package engine

import (
	"context"
	"time"

	"github.com/mironmax/mcp-memory-server-concurrent/pkg/graph"
)

// EntityInput is the caller-supplied shape for create_entities — it omits
// the server-assigned timestamps.
type EntityInput struct {
	Name         string   `json:"name"`
	EntityType   string   `json:"entityType"`
	Observations []string `json:"observations"`
}

// ObservationAddition is one entry of an add_observations call.
type ObservationAddition struct {
	EntityName string   `json:"entityName"`
	Contents   []string `json:"contents"`
}

// ObservationAdditionResult reports what was actually appended for one
// target of an add_observations call.
type ObservationAdditionResult struct {
	EntityName        string   `json:"entityName"`
	AddedObservations []string `json:"addedObservations"`
}

// ObservationDeletion is one entry of a delete_observations call.
type ObservationDeletion struct {
	EntityName   string   `json:"entityName"`
	Observations []string `json:"observations"`
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

// CreateEntities appends every entity in inputs whose name is not already
// present. Existing names are silently skipped (idempotent create, spec
// §4.4 and testable property 1). Returns exactly the entities that were
// added.
func (e *Engine) CreateEntities(ctx context.Context, inputs []EntityInput) ([]*graph.Entity, error) {
	var added []*graph.Entity

	err := e.withLock(ctx, func() error {
		st, err := e.load()
		if err != nil {
			return err
		}

		for _, in := range inputs {
			if st.FindEntity(in.Name) != nil {
				continue
			}
			ts := nowMs()
			ent := &graph.Entity{
				Name:         in.Name,
				EntityType:   in.EntityType,
				Observations: append([]string{}, in.Observations...),
				CreatedAt:    &ts,
				UpdatedAt:    &ts,
			}
			st.Entities = append(st.Entities, ent)
			st.NameIndex[ent.Name] = ent
			added = append(added, ent)
		}

		if len(added) == 0 {
			return nil
		}
		return e.persist(st)
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// CreateRelations appends every relation in inputs whose triple is not
// already present. Duplicates are silently skipped. No referential check
// is performed against entity existence — a relation may point at an
// entity that does not (yet) exist.
func (e *Engine) CreateRelations(ctx context.Context, inputs []graph.Relation) ([]graph.Relation, error) {
	var added []graph.Relation

	err := e.withLock(ctx, func() error {
		st, err := e.load()
		if err != nil {
			return err
		}

		for _, rel := range inputs {
			if st.HasRelation(rel) {
				continue
			}
			st.Relations = append(st.Relations, rel)
			added = append(added, rel)
		}

		if len(added) == 0 {
			return nil
		}
		return e.persist(st)
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// AddObservations appends new observations to existing entities. Every
// named entity MUST already exist: if any target is missing, the whole
// call fails with ErrEntityNotFound, nothing is persisted, and the lock is
// released without a write (spec §4.4, §7). For targets that exist, only
// observations not already present are appended; if at least one was
// appended, updated_at is refreshed.
func (e *Engine) AddObservations(ctx context.Context, inputs []ObservationAddition) ([]ObservationAdditionResult, error) {
	var results []ObservationAdditionResult

	err := e.withLock(ctx, func() error {
		st, err := e.load()
		if err != nil {
			return err
		}

		for _, in := range inputs {
			if st.FindEntity(in.EntityName) == nil {
				return ErrEntityNotFound
			}
		}

		changed := false
		for _, in := range inputs {
			ent := st.FindEntity(in.EntityName)
			var addedNow []string
			for _, content := range in.Contents {
				if ent.HasObservation(content) {
					continue
				}
				ent.Observations = append(ent.Observations, content)
				addedNow = append(addedNow, content)
			}
			if len(addedNow) > 0 {
				ts := nowMs()
				ent.UpdatedAt = &ts
				changed = true
			}
			results = append(results, ObservationAdditionResult{
				EntityName:        in.EntityName,
				AddedObservations: addedNow,
			})
		}

		if !changed {
			return nil
		}
		return e.persist(st)
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteEntities removes every entity named and every relation touching
// any of them. Missing names are ignored.
func (e *Engine) DeleteEntities(ctx context.Context, names []string) error {
	return e.withLock(ctx, func() error {
		st, err := e.load()
		if err != nil {
			return err
		}
		removed := st.RemoveEntities(names)
		if len(removed) == 0 {
			return nil
		}
		return e.persist(st)
	})
}

// DeleteObservations removes the listed observations from each named
// entity that exists; missing entities are ignored. If any observation was
// actually removed from an entity, its updated_at is refreshed.
func (e *Engine) DeleteObservations(ctx context.Context, deletions []ObservationDeletion) error {
	return e.withLock(ctx, func() error {
		st, err := e.load()
		if err != nil {
			return err
		}

		changed := false
		for _, del := range deletions {
			ent := st.FindEntity(del.EntityName)
			if ent == nil {
				continue
			}
			toRemove := make(map[string]struct{}, len(del.Observations))
			for _, o := range del.Observations {
				toRemove[o] = struct{}{}
			}

			kept := make([]string, 0, len(ent.Observations))
			removedAny := false
			for _, o := range ent.Observations {
				if _, ok := toRemove[o]; ok {
					removedAny = true
					continue
				}
				kept = append(kept, o)
			}
			if removedAny {
				ent.Observations = kept
				ts := nowMs()
				ent.UpdatedAt = &ts
				changed = true
			}
		}

		if !changed {
			return nil
		}
		return e.persist(st)
	})
}

// DeleteRelations removes every relation whose triple is listed. Missing
// triples are ignored.
func (e *Engine) DeleteRelations(ctx context.Context, rels []graph.Relation) error {
	return e.withLock(ctx, func() error {
		st, err := e.load()
		if err != nil {
			return err
		}
		before := len(st.Relations)
		st.RemoveRelations(rels)
		if len(st.Relations) == before {
			return nil
		}
		return e.persist(st)
	})
}

// ReadGraph returns the complete graph. Like SearchNodes and OpenNodes,
// this is a lock-free read: it only loads (spec §4.2, "readers do not
// lock").
func (e *Engine) ReadGraph(_ context.Context) (*graph.State, error) {
	return e.load()
}

// OpenNodes returns the entities named (unknown names silently skipped)
// together with every relation touching at least one of them — a 1-hop
// neighborhood view, unlike SearchNodes which closes relations to both
// endpoints being in the result set.
func (e *Engine) OpenNodes(_ context.Context, names []string) (*graph.State, error) {
	st, err := e.load()
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}

	result := graph.New()
	added := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := added[n]; dup {
			continue
		}
		if ent := st.FindEntity(n); ent != nil {
			result.Entities = append(result.Entities, ent)
			added[n] = struct{}{}
		}
	}
	for _, r := range st.Relations {
		_, fromIn := wanted[r.From]
		_, toIn := wanted[r.To]
		if fromIn || toIn {
			result.Relations = append(result.Relations, r)
		}
	}
	result.Rebuild()
	return result, nil
}
