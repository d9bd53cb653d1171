package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgstore"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

func TestActivateTerminatesAndAvoidsCycles(t *testing.T) {
	ctx := context.Background()
	s := hsgstore.NewInMemoryStore()
	g := s.Graph()

	now := time.Now()
	edges := []model.Waypoint{
		{SrcID: "a", DstID: "b", UserID: "u1", Weight: 0.9, CreatedAt: now, UpdatedAt: now},
		{SrcID: "b", DstID: "c", UserID: "u1", Weight: 0.9, CreatedAt: now, UpdatedAt: now},
		{SrcID: "c", DstID: "a", UserID: "u1", Weight: 0.9, CreatedAt: now, UpdatedAt: now}, // cycle back to a
	}
	for _, e := range edges {
		require.NoError(t, g.InsertWaypoint(ctx, e))
	}

	cfg := ActivationConfig{Decay: 0.8, Floor: 0.01, MaxLevel: 3, MaxIterations: 100}
	reached, err := Activate(ctx, g, []string{"a"}, "u1", cfg)
	require.NoError(t, err)
	assert.Contains(t, reached, "b")
	assert.Contains(t, reached, "c")

	for id, r := range reached {
		seen := map[string]bool{}
		for _, p := range r.Path {
			assert.Falsef(t, seen[p], "path for %s contains repeated node: %v", id, r.Path)
			seen[p] = true
		}
	}
}

func TestActivateStopsBelowFloor(t *testing.T) {
	ctx := context.Background()
	s := hsgstore.NewInMemoryStore()
	g := s.Graph()
	now := time.Now()
	require.NoError(t, g.InsertWaypoint(ctx, model.Waypoint{SrcID: "a", DstID: "b", UserID: "u1", Weight: 0.1, CreatedAt: now, UpdatedAt: now}))

	cfg := ActivationConfig{Decay: 0.8, Floor: 0.5, MaxLevel: 3, MaxIterations: 100}
	reached, err := Activate(ctx, g, []string{"a"}, "u1", cfg)
	require.NoError(t, err)
	assert.NotContains(t, reached, "b")
}

func TestReinforceWaypointsDoesNotCreateMissingEdges(t *testing.T) {
	ctx := context.Background()
	s := hsgstore.NewInMemoryStore()
	g := s.Graph()
	now := time.Now()
	require.NoError(t, g.InsertWaypoint(ctx, model.Waypoint{SrcID: "a", DstID: "b", UserID: "u1", Weight: 0.5, CreatedAt: now, UpdatedAt: now}))

	require.NoError(t, ReinforceWaypoints(ctx, g, []string{"a", "b", "c"}, "u1", 0.1))

	w, err := g.GetWaypoint(ctx, "a", "b", "u1")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Greater(t, w.Weight, 0.5)

	missing, err := g.GetWaypoint(ctx, "b", "c", "u1")
	require.NoError(t, err)
	assert.Nil(t, missing, "reinforcement must not create edges that did not already exist")
}

func TestReinforceWaypointsClampsAtOne(t *testing.T) {
	ctx := context.Background()
	s := hsgstore.NewInMemoryStore()
	g := s.Graph()
	now := time.Now()
	require.NoError(t, g.InsertWaypoint(ctx, model.Waypoint{SrcID: "a", DstID: "b", UserID: "u1", Weight: 0.95, CreatedAt: now, UpdatedAt: now}))

	require.NoError(t, ReinforceWaypoints(ctx, g, []string{"a", "b"}, "u1", 0.5))
	w, err := g.GetWaypoint(ctx, "a", "b", "u1")
	require.NoError(t, err)
	assert.LessOrEqual(t, w.Weight, 1.0)
}
