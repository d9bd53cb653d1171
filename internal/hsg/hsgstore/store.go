// Package hsgstore defines the persistence contract the HSG engine depends
// on (spec.md §6): a row store for memories and waypoints, a vector store
// for per-sector embeddings, and an atomic transaction primitive. Shaped
// after the teacher's store.VectorStore/GraphStore interfaces in
// src/memory/store/vector_store.go, generalized from a flat memory-row
// store to the HSG's memory+waypoint+multi-sector-vector rows.
package hsgstore

import (
	"context"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

// VectorItem is one vector insert for VectorStore.StoreVectors.
type VectorItem struct {
	MemoryID string
	Sector   model.Sector
	Vector   []float32
	Dim      int
	UserID   string
	Metadata model.Metadata
}

// SimilarityHit is one ANN/exact search result.
type SimilarityHit struct {
	MemoryID string
	Score    float64
}

// VectorStore is the per-sector embedding backend (Qdrant, pgvector, an
// in-memory map, etc).
type VectorStore interface {
	StoreVector(ctx context.Context, item VectorItem) error
	StoreVectors(ctx context.Context, items []VectorItem) error
	GetVectorsByID(ctx context.Context, memoryID, userID string) ([]model.VectorRecord, error)
	GetVectorsByIDs(ctx context.Context, memoryIDs []string, userID string) ([]model.VectorRecord, error)
	DeleteVectors(ctx context.Context, memoryIDs []string, userID string) error
	SearchSimilar(ctx context.Context, sector model.Sector, vec []float32, topK int, userID string, filter model.Metadata) ([]SimilarityHit, error)
}

// WaypointGraphStore is the directed-edge backend for the HSG's waypoint
// graph (Neo4j, a Postgres edge table, an in-memory adjacency map, etc).
type WaypointGraphStore interface {
	GetWaypoint(ctx context.Context, src, dst, userID string) (*model.Waypoint, error)
	GetWaypointsBySrc(ctx context.Context, src, userID string) ([]model.Waypoint, error)
	GetWaypointsForPairs(ctx context.Context, pairs [][2]string, userID string) (map[[2]string]model.Waypoint, error)
	InsertWaypoint(ctx context.Context, w model.Waypoint) error
	InsertWaypoints(ctx context.Context, ws []model.Waypoint) error
	PruneWaypoints(ctx context.Context, threshold float64, userID string) (int, error)
}

// Transaction is an atomic execution context; fn's returned error triggers
// rollback.
type Transaction interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store is the row-level persistence contract for Memory records, plus
// access to its companion VectorStore, WaypointGraphStore and Transaction
// primitive.
type Store interface {
	GetMem(ctx context.Context, id, userID string) (*model.Memory, error)
	GetMemBySimhash(ctx context.Context, simhash uint64, userID string) (*model.Memory, error)
	GetMems(ctx context.Context, ids []string, userID string) ([]model.Memory, error)
	// Iterate streams every memory row for userID ("" for all tenants) to
	// fn, stopping early if fn returns false. Grounded on the teacher's
	// store.Iterate used by Engine.Prune for TTL/size eviction passes;
	// the HSG maintenance loop uses it the same way for decay and pruning
	// scans that can't afford to materialize every row up front.
	Iterate(ctx context.Context, userID string, fn func(model.Memory) bool) error
	InsMem(ctx context.Context, m model.Memory) error
	InsMems(ctx context.Context, ms []model.Memory) error
	UpdMem(ctx context.Context, m model.Memory) error
	UpdSeen(ctx context.Context, id string, lastSeenAt int64, salience float64, updatedAt int64, userID string) error
	UpdMeanVec(ctx context.Context, id string, dim int, meanVec []float32, userID string) error
	DelMem(ctx context.Context, id, userID string) error

	Vectors() VectorStore
	Graph() WaypointGraphStore
	Transaction() Transaction

	CreateSchema(ctx context.Context) error
	Close() error
}
