// Package hsgstore: Neo4j-backed alternate WaypointGraphStore. Grounded on
// src/memory/store/neo4j_store.go in the teacher: the same
// driver/session/transaction/result/record interface abstraction (so tests
// run without a live Neo4j instance), generalized from the teacher's
// Memory-node/RELATED_TO-edge Cypher to the HSG's directed weighted
// waypoint edges, including virtual "id:sector" tag nodes.
package hsgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

type neo4jAccessMode string

const (
	neo4jAccessWrite neo4jAccessMode = "write"
	neo4jAccessRead  neo4jAccessMode = "read"
)

type neo4jSessionConfig struct {
	AccessMode   neo4jAccessMode
	DatabaseName string
}

// neo4jDriver abstracts the Neo4j driver so tests can supply a fake without
// depending on a live server.
type neo4jDriver interface {
	NewSession(ctx context.Context, config neo4jSessionConfig) (neo4jSession, error)
	Close(ctx context.Context) error
}

type neo4jSession interface {
	BeginTransaction(ctx context.Context) (neo4jTransaction, error)
	Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error)
	Close(ctx context.Context) error
}

type neo4jTransaction interface {
	Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close(ctx context.Context) error
}

type neo4jResult interface {
	Next(ctx context.Context) bool
	Record() neo4jRecord
	Err() error
	Close(ctx context.Context) error
}

type neo4jRecord interface {
	Get(key string) (any, bool)
}

// ErrNeo4jUnavailable is returned when graph operations are attempted
// without a configured driver.
var ErrNeo4jUnavailable = errors.New("hsgstore: neo4j driver not configured")

// Neo4jGraphStore implements WaypointGraphStore against Neo4j, while Memory
// rows and vectors continue to live in whatever Store.Vectors()/row store is
// configured alongside it (the HSG engine composes stores per-concern
// rather than requiring one backend for everything).
type Neo4jGraphStore struct {
	driver   neo4jDriver
	database string
	clock    func() time.Time
}

// NewNeo4jGraphStore builds a Neo4jGraphStore. clock defaults to time.Now.
func NewNeo4jGraphStore(driver neo4jDriver, database string, clock func() time.Time) (*Neo4jGraphStore, error) {
	if driver == nil {
		return nil, errors.New("hsgstore: neo4j driver is nil")
	}
	if clock == nil {
		clock = time.Now
	}
	return &Neo4jGraphStore{driver: driver, database: database, clock: clock}, nil
}

func (s *Neo4jGraphStore) CreateSchema(ctx context.Context) error {
	session, err := s.driver.NewSession(ctx, neo4jSessionConfig{AccessMode: neo4jAccessWrite, DatabaseName: s.database})
	if err != nil {
		return fmt.Errorf("hsgstore: neo4j new session: %w", err)
	}
	defer session.Close(ctx)
	queries := []string{
		"CREATE CONSTRAINT IF NOT EXISTS FOR (n:Waypoint) REQUIRE n.node_id IS UNIQUE",
		"CREATE INDEX IF NOT EXISTS FOR (n:Waypoint) ON (n.user_id)",
	}
	for _, q := range queries {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			return fmt.Errorf("hsgstore: neo4j schema query: %w", err)
		}
		if res != nil {
			_ = res.Close(ctx)
		}
	}
	return nil
}

func (s *Neo4jGraphStore) Close() error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Close(context.Background())
}

func (s *Neo4jGraphStore) InsertWaypoint(ctx context.Context, w model.Waypoint) error {
	return s.InsertWaypoints(ctx, []model.Waypoint{w})
}

func (s *Neo4jGraphStore) InsertWaypoints(ctx context.Context, ws []model.Waypoint) error {
	if s.driver == nil {
		return ErrNeo4jUnavailable
	}
	if len(ws) == 0 {
		return nil
	}
	session, err := s.driver.NewSession(ctx, neo4jSessionConfig{AccessMode: neo4jAccessWrite, DatabaseName: s.database})
	if err != nil {
		return fmt.Errorf("hsgstore: neo4j new session: %w", err)
	}
	defer session.Close(ctx)
	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		return fmt.Errorf("hsgstore: neo4j begin tx: %w", err)
	}
	defer tx.Close(ctx)

	now := s.clock().UTC().Format(time.RFC3339Nano)
	for _, w := range ws {
		w.ClampWeight()
		params := map[string]any{
			"user_id":    w.UserID,
			"src":        w.SrcID,
			"dst":        w.DstID,
			"weight":     w.Weight,
			"updated_at": now,
		}
		res, err := tx.Run(ctx, neo4jUpsertEdgeCypher, params)
		if err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("hsgstore: neo4j upsert edge: %w", err)
		}
		if res != nil {
			_ = res.Close(ctx)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("hsgstore: neo4j commit: %w", err)
	}
	return nil
}

func (s *Neo4jGraphStore) GetWaypoint(ctx context.Context, src, dst, userID string) (*model.Waypoint, error) {
	if s.driver == nil {
		return nil, ErrNeo4jUnavailable
	}
	session, err := s.driver.NewSession(ctx, neo4jSessionConfig{AccessMode: neo4jAccessRead, DatabaseName: s.database})
	if err != nil {
		return nil, fmt.Errorf("hsgstore: neo4j new session: %w", err)
	}
	defer session.Close(ctx)
	result, err := session.Run(ctx, neo4jGetEdgeQuery, map[string]any{"user_id": userID, "src": src, "dst": dst})
	if err != nil {
		return nil, fmt.Errorf("hsgstore: neo4j get edge: %w", err)
	}
	defer result.Close(ctx)
	if !result.Next(ctx) {
		return nil, result.Err()
	}
	w := mapWaypointRecord(result.Record(), userID, src, dst)
	return &w, nil
}

func (s *Neo4jGraphStore) GetWaypointsBySrc(ctx context.Context, src, userID string) ([]model.Waypoint, error) {
	if s.driver == nil {
		return nil, ErrNeo4jUnavailable
	}
	session, err := s.driver.NewSession(ctx, neo4jSessionConfig{AccessMode: neo4jAccessRead, DatabaseName: s.database})
	if err != nil {
		return nil, fmt.Errorf("hsgstore: neo4j new session: %w", err)
	}
	defer session.Close(ctx)
	result, err := session.Run(ctx, neo4jGetEdgesBySrcQuery, map[string]any{"user_id": userID, "src": src})
	if err != nil {
		return nil, fmt.Errorf("hsgstore: neo4j get edges: %w", err)
	}
	defer result.Close(ctx)
	var out []model.Waypoint
	for result.Next(ctx) {
		rec := result.Record()
		dst, _ := rec.Get("dst")
		out = append(out, mapWaypointRecord(rec, userID, src, toString(dst)))
	}
	return out, result.Err()
}

func (s *Neo4jGraphStore) GetWaypointsForPairs(ctx context.Context, pairs [][2]string, userID string) (map[[2]string]model.Waypoint, error) {
	out := make(map[[2]string]model.Waypoint, len(pairs))
	for _, p := range pairs {
		w, err := s.GetWaypoint(ctx, p[0], p[1], userID)
		if err != nil {
			return nil, err
		}
		if w != nil {
			out[p] = *w
		}
	}
	return out, nil
}

func (s *Neo4jGraphStore) PruneWaypoints(ctx context.Context, threshold float64, userID string) (int, error) {
	if s.driver == nil {
		return 0, ErrNeo4jUnavailable
	}
	session, err := s.driver.NewSession(ctx, neo4jSessionConfig{AccessMode: neo4jAccessWrite, DatabaseName: s.database})
	if err != nil {
		return 0, fmt.Errorf("hsgstore: neo4j new session: %w", err)
	}
	defer session.Close(ctx)
	result, err := session.Run(ctx, neo4jPruneEdgesQuery, map[string]any{"user_id": userID, "threshold": threshold})
	if err != nil {
		return 0, fmt.Errorf("hsgstore: neo4j prune edges: %w", err)
	}
	defer result.Close(ctx)
	count := 0
	if result.Next(ctx) {
		if v, ok := result.Record().Get("deleted"); ok {
			count = int(toInt64(v))
		}
	}
	return count, result.Err()
}

// Neighborhood fetches all outgoing edges within hops of seedID, used as an
// alternate source for the engine's in-process spreading activation (Cypher
// variable-length MATCH cannot express the activation algorithm's per-hop
// weight decay and cycle bookkeeping, so it is only used here to gather
// candidate edges).
func (s *Neo4jGraphStore) Neighborhood(ctx context.Context, seedID, userID string, hops int) ([]model.Waypoint, error) {
	if s.driver == nil {
		return nil, ErrNeo4jUnavailable
	}
	session, err := s.driver.NewSession(ctx, neo4jSessionConfig{AccessMode: neo4jAccessRead, DatabaseName: s.database})
	if err != nil {
		return nil, fmt.Errorf("hsgstore: neo4j new session: %w", err)
	}
	defer session.Close(ctx)
	result, err := session.Run(ctx, neo4jNeighborhoodQuery, map[string]any{"user_id": userID, "seed": seedID, "hops": hops})
	if err != nil {
		return nil, fmt.Errorf("hsgstore: neo4j neighborhood: %w", err)
	}
	defer result.Close(ctx)
	var out []model.Waypoint
	for result.Next(ctx) {
		rec := result.Record()
		src, _ := rec.Get("src")
		dst, _ := rec.Get("dst")
		out = append(out, mapWaypointRecord(rec, userID, toString(src), toString(dst)))
	}
	return out, result.Err()
}

func mapWaypointRecord(rec neo4jRecord, userID, src, dst string) model.Waypoint {
	w := model.Waypoint{UserID: userID, SrcID: src, DstID: dst}
	if v, ok := rec.Get("weight"); ok {
		w.Weight = toFloat64(v)
	}
	if v, ok := rec.Get("updated_at"); ok {
		w.UpdatedAt = parseTime(toString(v))
	}
	return w
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case float32:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch t := v.(type) {
	case float32:
		return float64(t)
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return 0
	}
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	return time.Time{}
}

const (
	neo4jUpsertEdgeCypher = `
MERGE (s:Waypoint {node_id: $user_id + ":" + $src})
ON CREATE SET s.user_id = $user_id
MERGE (d:Waypoint {node_id: $user_id + ":" + $dst})
ON CREATE SET d.user_id = $user_id
MERGE (s)-[r:LEADS_TO]->(d)
SET r.weight = $weight, r.updated_at = $updated_at
`
	neo4jGetEdgeQuery = `
MATCH (s:Waypoint {node_id: $user_id + ":" + $src})-[r:LEADS_TO]->(d:Waypoint {node_id: $user_id + ":" + $dst})
RETURN r.weight AS weight, r.updated_at AS updated_at
`
	neo4jGetEdgesBySrcQuery = `
MATCH (s:Waypoint {node_id: $user_id + ":" + $src})-[r:LEADS_TO]->(d:Waypoint)
RETURN d.node_id AS dst, r.weight AS weight, r.updated_at AS updated_at
`
	neo4jPruneEdgesQuery = `
MATCH (s:Waypoint {user_id: $user_id})-[r:LEADS_TO]->(:Waypoint)
WHERE r.weight < $threshold
WITH r, count(r) AS c
DELETE r
RETURN sum(c) AS deleted
`
	neo4jNeighborhoodQuery = `
MATCH (s:Waypoint {node_id: $user_id + ":" + $seed})-[r:LEADS_TO*1..$hops]->(d:Waypoint)
RETURN s.node_id AS src, d.node_id AS dst, r[-1].weight AS weight, r[-1].updated_at AS updated_at
`
)
