// Composite store wiring (spec.md §6, SPEC_FULL.md §6): the row-level
// store, the vector backend and the waypoint-graph backend are each
// independently pluggable. CompositeStore lets an operator pair, say,
// PostgresStore's row storage with QdrantStore's ANN search and
// Neo4jGraphStore's graph traversal, instead of forcing all three
// concerns onto one backend.
package hsgstore

import (
	"context"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

// CompositeStore overrides a base Store's vector and/or graph backend
// with alternates, while delegating every row-level operation to the
// base store unchanged. A nil override falls back to the base store's
// own backend.
type CompositeStore struct {
	base    Store
	vectors VectorStore
	graph   WaypointGraphStore
}

// NewCompositeStore pairs base's row storage with the given vector and
// graph backends. Passing nil for either keeps base's own backend.
func NewCompositeStore(base Store, vectors VectorStore, graph WaypointGraphStore) *CompositeStore {
	return &CompositeStore{base: base, vectors: vectors, graph: graph}
}

func (c *CompositeStore) GetMem(ctx context.Context, id, userID string) (*model.Memory, error) {
	return c.base.GetMem(ctx, id, userID)
}

func (c *CompositeStore) GetMemBySimhash(ctx context.Context, simhash uint64, userID string) (*model.Memory, error) {
	return c.base.GetMemBySimhash(ctx, simhash, userID)
}

func (c *CompositeStore) GetMems(ctx context.Context, ids []string, userID string) ([]model.Memory, error) {
	return c.base.GetMems(ctx, ids, userID)
}

func (c *CompositeStore) Iterate(ctx context.Context, userID string, fn func(model.Memory) bool) error {
	return c.base.Iterate(ctx, userID, fn)
}

func (c *CompositeStore) InsMem(ctx context.Context, m model.Memory) error {
	return c.base.InsMem(ctx, m)
}

func (c *CompositeStore) InsMems(ctx context.Context, ms []model.Memory) error {
	return c.base.InsMems(ctx, ms)
}

func (c *CompositeStore) UpdMem(ctx context.Context, m model.Memory) error {
	return c.base.UpdMem(ctx, m)
}

func (c *CompositeStore) UpdSeen(ctx context.Context, id string, lastSeenAt int64, salience float64, updatedAt int64, userID string) error {
	return c.base.UpdSeen(ctx, id, lastSeenAt, salience, updatedAt, userID)
}

func (c *CompositeStore) UpdMeanVec(ctx context.Context, id string, dim int, meanVec []float32, userID string) error {
	return c.base.UpdMeanVec(ctx, id, dim, meanVec, userID)
}

func (c *CompositeStore) DelMem(ctx context.Context, id, userID string) error {
	return c.base.DelMem(ctx, id, userID)
}

// Vectors returns the override vector backend if one was supplied,
// otherwise the base store's own.
func (c *CompositeStore) Vectors() VectorStore {
	if c.vectors != nil {
		return c.vectors
	}
	return c.base.Vectors()
}

// Graph returns the override graph backend if one was supplied,
// otherwise the base store's own.
func (c *CompositeStore) Graph() WaypointGraphStore {
	if c.graph != nil {
		return c.graph
	}
	return c.base.Graph()
}

func (c *CompositeStore) Transaction() Transaction {
	return c.base.Transaction()
}

// CreateSchema initializes the base store's schema, plus the override
// graph backend's own schema when it exposes one (Neo4jGraphStore does).
// The vector override's schema is not touched: QdrantStore has no
// CreateSchema, and its per-sector collections are created only by an
// explicit EnsureCollection call.
func (c *CompositeStore) CreateSchema(ctx context.Context) error {
	if err := c.base.CreateSchema(ctx); err != nil {
		return err
	}
	if schemaOwner, ok := c.graph.(interface{ CreateSchema(context.Context) error }); ok {
		if err := schemaOwner.CreateSchema(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the override graph backend when it has a Close method, then
// the base store. The vector override is not closed.
func (c *CompositeStore) Close() error {
	if closer, ok := c.graph.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			return err
		}
	}
	return c.base.Close()
}
