package federation

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"titan-aas/internal/model"
)

// GraphMirror mirrors reference edges between entities into an external
// graph store for operators who want a queryable dependency view of their
// twin fleet. It is entirely optional: nothing in this package requires
// one, and a nil GraphMirror is never dereferenced by callers — they guard
// every call behind a nil check before mirroring.
type GraphMirror interface {
	MirrorShellSubmodel(ctx context.Context, shellID, submodelID model.Identifier) error
	MirrorSubmodelSemanticID(ctx context.Context, submodelID model.Identifier, semanticID *model.Reference) error
	Close(ctx context.Context) error
}

// Neo4jGraphMirror implements GraphMirror against a Neo4j database, using
// MERGE so repeated mirroring of the same edge is idempotent.
type Neo4jGraphMirror struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jGraphMirror connects to uri and verifies connectivity before
// returning, so a misconfigured mirror fails at startup rather than on the
// first mirrored edge.
func NewNeo4jGraphMirror(ctx context.Context, uri, username, password string) (*Neo4jGraphMirror, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("federation: create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("federation: connect to neo4j: %w", err)
	}
	return &Neo4jGraphMirror{driver: driver}, nil
}

// MirrorShellSubmodel records that shellID references submodelID.
func (m *Neo4jGraphMirror) MirrorShellSubmodel(ctx context.Context, shellID, submodelID model.Identifier) error {
	session := m.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (s:Shell {id: $shellId})
			MERGE (sm:Submodel {id: $submodelId})
			MERGE (s)-[:HAS_SUBMODEL]->(sm)
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"shellId":    string(shellID),
			"submodelId": string(submodelID),
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("federation: mirror shell->submodel edge: %w", err)
	}
	return nil
}

// MirrorSubmodelSemanticID records that submodelID's semanticId points at
// the given reference's final key, typically a Concept Description ID.
// A nil or keyless reference is a no-op: there is nothing to mirror.
func (m *Neo4jGraphMirror) MirrorSubmodelSemanticID(ctx context.Context, submodelID model.Identifier, semanticID *model.Reference) error {
	if semanticID == nil {
		return nil
	}
	cdID := semanticID.LastKeyValue()
	if cdID == "" {
		return nil
	}

	session := m.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (sm:Submodel {id: $submodelId})
			MERGE (cd:ConceptDescription {id: $cdId})
			MERGE (sm)-[:SEMANTIC_ID]->(cd)
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"submodelId": string(submodelID),
			"cdId":       cdID,
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("federation: mirror submodel->conceptDescription edge: %w", err)
	}
	return nil
}

// Close releases the underlying driver's connection pool.
func (m *Neo4jGraphMirror) Close(ctx context.Context) error {
	return m.driver.Close(ctx)
}
