package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mironmax/mcp-memory-server-concurrent/pkg/engine"
	"github.com/mironmax/mcp-memory-server-concurrent/pkg/graph"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type Server struct {
	eng    *engine.Engine
	logger *slog.Logger
}

type EntityParam struct {
	Name         string   `json:"name" jsonschema:"description:Unique identifier for the entity"`
	EntityType   string   `json:"entityType" jsonschema:"description:Type classification of the entity"`
	Observations []string `json:"observations,omitempty" jsonschema:"description:Initial observations about the entity"`
}

type RelationParam struct {
	From         string `json:"from" jsonschema:"description:Name of the source entity"`
	To           string `json:"to" jsonschema:"description:Name of the target entity"`
	RelationType string `json:"relationType" jsonschema:"description:Type of the relation, in active voice"`
}

type CreateEntitiesParams struct {
	Entities []EntityParam `json:"entities" jsonschema:"description:Array of entities to create"`
}

type CreateRelationsParams struct {
	Relations []RelationParam `json:"relations" jsonschema:"description:Array of relations to create"`
}

type AddObservationsParams struct {
	Observations []ObservationInput `json:"observations" jsonschema:"description:Array of observations to add"`
}

type ObservationInput struct {
	EntityName string   `json:"entityName" jsonschema:"description:Name of the entity"`
	Contents   []string `json:"contents" jsonschema:"description:Array of observations to add"`
}

type DeleteEntitiesParams struct {
	EntityNames []string `json:"entityNames" jsonschema:"description:Array of entity names to delete"`
}

type DeleteObservationsParams struct {
	Deletions []DeletionInput `json:"deletions" jsonschema:"description:Array of deletions to perform"`
}

type DeletionInput struct {
	EntityName   string   `json:"entityName" jsonschema:"description:Name of the entity"`
	Observations []string `json:"observations" jsonschema:"description:Array of observations to delete"`
}

type DeleteRelationsParams struct {
	Relations []RelationParam `json:"relations" jsonschema:"description:Array of relations to delete"`
}

type SearchNodesParams struct {
	Query string `json:"query" jsonschema:"description:Search query to match against entity names types and observations"`
}

type OpenNodesParams struct {
	Names []string `json:"names" jsonschema:"description:Array of entity names to retrieve"`
}

// NewServer creates a new MCP memory server backed by eng.
func NewServer(eng *engine.Engine) *Server {
	return &Server{eng: eng, logger: slog.Default()}
}

// NewServerWithLogger creates a new MCP memory server with an explicit logger.
func NewServerWithLogger(eng *engine.Engine, logger *slog.Logger) *Server {
	return &Server{eng: eng, logger: logger}
}

// Shutdown gracefully shuts down the server's engine.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.eng.Close(ctx)
}

// RegisterTools registers all MCP tools with the server
func (s *Server) RegisterTools(mcpServer *mcp.Server) {
	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "create_entities",
			Description: "Create multiple new entities in the knowledge graph",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params CreateEntitiesParams) (*mcp.CallToolResult, any, error) {
			return s.handleCreateEntities(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "create_relations",
			Description: "Create multiple new relations between entities in the knowledge graph. Relations should be in active voice",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params CreateRelationsParams) (*mcp.CallToolResult, any, error) {
			return s.handleCreateRelations(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "add_observations",
			Description: "Add new observations to existing entities in the knowledge graph",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params AddObservationsParams) (*mcp.CallToolResult, any, error) {
			return s.handleAddObservations(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "delete_entities",
			Description: "Delete multiple entities and their associated relations from the knowledge graph",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params DeleteEntitiesParams) (*mcp.CallToolResult, any, error) {
			return s.handleDeleteEntities(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "delete_observations",
			Description: "Delete specific observations from entities in the knowledge graph",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params DeleteObservationsParams) (*mcp.CallToolResult, any, error) {
			return s.handleDeleteObservations(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "delete_relations",
			Description: "Delete multiple relations from the knowledge graph",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params DeleteRelationsParams) (*mcp.CallToolResult, any, error) {
			return s.handleDeleteRelations(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "read_graph",
			Description: "Read the entire knowledge graph",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, _ any) (*mcp.CallToolResult, any, error) {
			return s.handleReadGraph(ctx)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "search_nodes",
			Description: "Search for nodes in the knowledge graph based on a query",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params SearchNodesParams) (*mcp.CallToolResult, any, error) {
			return s.handleSearchNodes(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "open_nodes",
			Description: "Open specific nodes in the knowledge graph by their names",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params OpenNodesParams) (*mcp.CallToolResult, any, error) {
			return s.handleOpenNodes(ctx, params)
		},
	)
}

func stateToJSON(st *graph.State) ([]byte, error) {
	return json.MarshalIndent(struct {
		Entities  []*graph.Entity  `json:"entities"`
		Relations []graph.Relation `json:"relations"`
	}{Entities: st.Entities, Relations: st.Relations}, "", "  ")
}

func (s *Server) handleCreateEntities(ctx context.Context, params CreateEntitiesParams) (*mcp.CallToolResult, any, error) {
	if err := ValidateCreateEntitiesParams(params); err != nil {
		return nil, nil, fmt.Errorf("invalid create_entities params: %w", err)
	}

	inputs := make([]engine.EntityInput, len(params.Entities))
	for i, ent := range params.Entities {
		inputs[i] = engine.EntityInput{Name: ent.Name, EntityType: ent.EntityType, Observations: ent.Observations}
	}

	created, err := s.eng.CreateEntities(ctx, inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create entities: %w", err)
	}

	jsonData, _ := json.MarshalIndent(created, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonData)},
		},
	}, nil, nil
}

func (s *Server) handleCreateRelations(ctx context.Context, params CreateRelationsParams) (*mcp.CallToolResult, any, error) {
	if err := ValidateCreateRelationsParams(params); err != nil {
		return nil, nil, fmt.Errorf("invalid create_relations params: %w", err)
	}

	inputs := make([]graph.Relation, len(params.Relations))
	for i, r := range params.Relations {
		inputs[i] = graph.Relation{From: r.From, To: r.To, RelationType: r.RelationType}
	}

	created, err := s.eng.CreateRelations(ctx, inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create relations: %w", err)
	}

	jsonData, _ := json.MarshalIndent(created, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonData)},
		},
	}, nil, nil
}

func (s *Server) handleAddObservations(ctx context.Context, params AddObservationsParams) (*mcp.CallToolResult, any, error) {
	if err := ValidateAddObservationsParams(params); err != nil {
		return nil, nil, fmt.Errorf("invalid add_observations params: %w", err)
	}

	inputs := make([]engine.ObservationAddition, len(params.Observations))
	for i, obs := range params.Observations {
		inputs[i] = engine.ObservationAddition{EntityName: obs.EntityName, Contents: obs.Contents}
	}

	results, err := s.eng.AddObservations(ctx, inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to add observations: %w", err)
	}

	jsonData, _ := json.MarshalIndent(results, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonData)},
		},
	}, nil, nil
}

func (s *Server) handleDeleteEntities(ctx context.Context, params DeleteEntitiesParams) (*mcp.CallToolResult, any, error) {
	if err := ValidateDeleteEntitiesParams(params); err != nil {
		return nil, nil, fmt.Errorf("invalid delete_entities params: %w", err)
	}

	if err := s.eng.DeleteEntities(ctx, params.EntityNames); err != nil {
		return nil, nil, fmt.Errorf("failed to delete entities: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Entities deleted successfully"},
		},
	}, nil, nil
}

func (s *Server) handleDeleteObservations(ctx context.Context, params DeleteObservationsParams) (*mcp.CallToolResult, any, error) {
	inputs := make([]engine.ObservationDeletion, len(params.Deletions))
	for i, d := range params.Deletions {
		inputs[i] = engine.ObservationDeletion{EntityName: d.EntityName, Observations: d.Observations}
	}

	if err := s.eng.DeleteObservations(ctx, inputs); err != nil {
		return nil, nil, fmt.Errorf("failed to delete observations: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Observations deleted successfully"},
		},
	}, nil, nil
}

func (s *Server) handleDeleteRelations(ctx context.Context, params DeleteRelationsParams) (*mcp.CallToolResult, any, error) {
	inputs := make([]graph.Relation, len(params.Relations))
	for i, r := range params.Relations {
		inputs[i] = graph.Relation{From: r.From, To: r.To, RelationType: r.RelationType}
	}

	if err := s.eng.DeleteRelations(ctx, inputs); err != nil {
		return nil, nil, fmt.Errorf("failed to delete relations: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Relations deleted successfully"},
		},
	}, nil, nil
}

func (s *Server) handleReadGraph(ctx context.Context) (*mcp.CallToolResult, any, error) {
	st, err := s.eng.ReadGraph(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read graph: %w", err)
	}

	jsonData, err := stateToJSON(st)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode graph: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonData)},
		},
	}, nil, nil
}

func (s *Server) handleSearchNodes(ctx context.Context, params SearchNodesParams) (*mcp.CallToolResult, any, error) {
	if err := ValidateSearchNodesParams(params); err != nil {
		return nil, nil, fmt.Errorf("invalid search_nodes params: %w", err)
	}

	st, err := s.eng.SearchNodes(ctx, params.Query)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to search nodes: %w", err)
	}

	jsonData, err := stateToJSON(st)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode graph: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonData)},
		},
	}, nil, nil
}

func (s *Server) handleOpenNodes(ctx context.Context, params OpenNodesParams) (*mcp.CallToolResult, any, error) {
	if err := ValidateOpenNodesParams(params); err != nil {
		return nil, nil, fmt.Errorf("invalid open_nodes params: %w", err)
	}

	st, err := s.eng.OpenNodes(ctx, params.Names)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open nodes: %w", err)
	}

	jsonData, err := stateToJSON(st)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode graph: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonData)},
		},
	}, nil, nil
}
