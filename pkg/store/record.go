package store

import "github.com/mironmax/mcp-memory-server-concurrent/pkg/graph"

// recordKind is the store's line-delimited discriminator (see spec §6.1).
type recordKind struct {
	Type string `json:"type"`
}

type entityRecord struct {
	Type         string   `json:"type"`
	Name         string   `json:"name"`
	EntityType   string   `json:"entityType"`
	Observations []string `json:"observations"`
	CreatedAt    *int64   `json:"created_at,omitempty"`
	UpdatedAt    *int64   `json:"updated_at,omitempty"`
}

type relationRecord struct {
	Type         string `json:"type"`
	From         string `json:"from"`
	To           string `json:"to"`
	RelationType string `json:"relationType"`
}

func entityToRecord(e *graph.Entity) entityRecord {
	return entityRecord{
		Type:         "entity",
		Name:         e.Name,
		EntityType:   e.EntityType,
		Observations: e.Observations,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func recordToEntity(r entityRecord) *graph.Entity {
	return &graph.Entity{
		Name:         r.Name,
		EntityType:   r.EntityType,
		Observations: r.Observations,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func relationToRecord(r graph.Relation) relationRecord {
	return relationRecord{
		Type:         "relation",
		From:         r.From,
		To:           r.To,
		RelationType: r.RelationType,
	}
}

func recordToRelation(r relationRecord) graph.Relation {
	return graph.Relation{From: r.From, To: r.To, RelationType: r.RelationType}
}
