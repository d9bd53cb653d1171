package consolidation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgstore"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

func TestDualPhaseDecayMonotoneNonIncreasing(t *testing.T) {
	lambda := 0.05
	prev := DualPhaseDecay(0.9, 0, lambda)
	for age := 1.0; age <= 60; age++ {
		cur := DualPhaseDecay(0.9, age, lambda)
		assert.LessOrEqualf(t, cur, prev+1e-12, "decay increased at age=%f", age)
		prev = cur
	}
}

func TestDualPhaseDecayClamped(t *testing.T) {
	v := DualPhaseDecay(1.5, 0, 0.01)
	assert.GreaterOrEqual(t, v, 0.0)
	assert.LessOrEqual(t, v, 1.0)
}

func TestRunDecayLeavesLastSeenUnchanged(t *testing.T) {
	ctx := context.Background()
	s := hsgstore.NewInMemoryStore()
	now := time.Now()
	lastSeen := now.Add(-10 * 24 * time.Hour)
	require.NoError(t, s.InsMem(ctx, model.Memory{
		ID: "m1", UserID: "u1", Salience: 0.8, DecayLambda: 0.05,
		LastSeenAt: lastSeen, CreatedAt: lastSeen, UpdatedAt: lastSeen,
	}))

	n, err := RunDecay(ctx, s, DecayConfig{UserID: "u1", Now: now})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetMem(ctx, "m1", "u1")
	require.NoError(t, err)
	assert.True(t, got.LastSeenAt.Equal(lastSeen), "lastSeenAt mutated: got %v want %v", got.LastSeenAt, lastSeen)
	assert.Less(t, got.Salience, 0.8)
}

func TestReinforceMemoryIncreasesSalienceAndRecomputesMean(t *testing.T) {
	ctx := context.Background()
	s := hsgstore.NewInMemoryStore()
	now := time.Now()
	require.NoError(t, s.InsMem(ctx, model.Memory{ID: "m1", UserID: "u1", Salience: 0.3, LastSeenAt: now, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.Vectors().StoreVector(ctx, hsgstore.VectorItem{MemoryID: "m1", UserID: "u1", Sector: model.SectorSemantic, Vector: []float32{1, 0}, Dim: 2}))
	require.NoError(t, s.Vectors().StoreVector(ctx, hsgstore.VectorItem{MemoryID: "m1", UserID: "u1", Sector: model.SectorEmotional, Vector: []float32{0, 1}, Dim: 2}))

	require.NoError(t, ReinforceMemory(ctx, s, "m1", "u1", 0.5, now))
	got, err := s.GetMem(ctx, "m1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 0.8, got.Salience)
	assert.Len(t, got.MeanVector, 2)
}

func TestReinforceMemoryClampsAtOne(t *testing.T) {
	ctx := context.Background()
	s := hsgstore.NewInMemoryStore()
	now := time.Now()
	require.NoError(t, s.InsMem(ctx, model.Memory{ID: "m1", UserID: "u1", Salience: 0.9, LastSeenAt: now}))
	require.NoError(t, ReinforceMemory(ctx, s, "m1", "u1", 0.5, now))
	got, err := s.GetMem(ctx, "m1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Salience)
}

func TestFlushCoactivationsSkipsCrossTenantAndMissingEdges(t *testing.T) {
	ctx := context.Background()
	s := hsgstore.NewInMemoryStore()
	now := time.Now()
	require.NoError(t, s.InsMem(ctx, model.Memory{ID: "a", UserID: "u1", LastSeenAt: now}))
	require.NoError(t, s.InsMem(ctx, model.Memory{ID: "b", UserID: "u1", LastSeenAt: now}))
	require.NoError(t, s.Graph().InsertWaypoint(ctx, model.Waypoint{SrcID: "a", DstID: "b", UserID: "u1", Weight: 0.5, CreatedAt: now, UpdatedAt: now}))

	pairs := []model.CoactivationPair{{UserID: "u1", A: "a", B: "b"}}
	require.NoError(t, FlushCoactivations(ctx, s, pairs, FlushConfig{Tau: 24, Eta: 0.2, Now: now}))

	w, err := s.Graph().GetWaypoint(ctx, "a", "b", "u1")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Greater(t, w.Weight, 0.5)
}

func TestRunPruneDeletesBelowThreshold(t *testing.T) {
	ctx := context.Background()
	s := hsgstore.NewInMemoryStore()
	now := time.Now()
	require.NoError(t, s.Graph().InsertWaypoint(ctx, model.Waypoint{SrcID: "a", DstID: "b", UserID: "u1", Weight: 0.01, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.Graph().InsertWaypoint(ctx, model.Waypoint{SrcID: "a", DstID: "c", UserID: "u1", Weight: 0.9, CreatedAt: now, UpdatedAt: now}))

	n, err := RunPrune(ctx, s.Graph(), PruneConfig{UserID: "u1", Threshold: 0.1})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
