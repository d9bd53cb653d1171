package hsgstore

import (
	"context"
	"testing"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

func TestInMemoryStoreInsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	m := model.Memory{ID: "m1", UserID: "tenant-a", Primary: model.SectorSemantic, Simhash: 42}
	if err := s.InsMem(ctx, m); err != nil {
		t.Fatalf("InsMem: %v", err)
	}
	got, err := s.GetMem(ctx, "m1", "tenant-a")
	if err != nil || got == nil {
		t.Fatalf("GetMem: %v, %v", got, err)
	}
	if got.ID != "m1" {
		t.Fatalf("ID = %s, want m1", got.ID)
	}
}

func TestInMemoryStoreTenantIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	s.InsMem(ctx, model.Memory{ID: "m1", UserID: "tenant-a"})
	got, err := s.GetMem(ctx, "m1", "tenant-b")
	if err != nil {
		t.Fatalf("GetMem: %v", err)
	}
	if got != nil {
		t.Fatalf("expected tenant-b to not see tenant-a's memory")
	}
}

func TestInMemoryStoreGetMemBySimhash(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	s.InsMem(ctx, model.Memory{ID: "m1", UserID: "tenant-a", Simhash: 99})
	got, err := s.GetMemBySimhash(ctx, 99, "tenant-a")
	if err != nil || got == nil || got.ID != "m1" {
		t.Fatalf("expected to find m1 by simhash, got %v err=%v", got, err)
	}
	miss, _ := s.GetMemBySimhash(ctx, 99, "tenant-b")
	if miss != nil {
		t.Fatalf("expected simhash lookup scoped to tenant")
	}
}

func TestInMemoryStoreDelMemCascadesWaypoints(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	s.InsMem(ctx, model.Memory{ID: "m1", UserID: "tenant-a"})
	s.InsMem(ctx, model.Memory{ID: "m2", UserID: "tenant-a"})
	s.Graph().InsertWaypoint(ctx, model.Waypoint{SrcID: "m1", DstID: "m2", UserID: "tenant-a", Weight: 0.5})

	if err := s.DelMem(ctx, "m1", "tenant-a"); err != nil {
		t.Fatalf("DelMem: %v", err)
	}
	w, _ := s.Graph().GetWaypoint(ctx, "m1", "m2", "tenant-a")
	if w != nil {
		t.Fatalf("expected waypoint removed after endpoint deletion")
	}
}

func TestVectorStoreRoundTripAndSearch(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	s.InsMem(ctx, model.Memory{ID: "m1", UserID: "tenant-a"})
	s.InsMem(ctx, model.Memory{ID: "m2", UserID: "tenant-a"})

	vs := s.Vectors()
	vs.StoreVector(ctx, VectorItem{MemoryID: "m1", Sector: model.SectorSemantic, Vector: []float32{1, 0, 0}, UserID: "tenant-a"})
	vs.StoreVector(ctx, VectorItem{MemoryID: "m2", Sector: model.SectorSemantic, Vector: []float32{0, 1, 0}, UserID: "tenant-a"})

	hits, err := vs.SearchSimilar(ctx, model.SectorSemantic, []float32{1, 0, 0}, 5, "tenant-a", nil)
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	if len(hits) != 2 || hits[0].MemoryID != "m1" {
		t.Fatalf("expected m1 ranked first, got %+v", hits)
	}
}

func TestWaypointUpsertSemantics(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	g := s.Graph()
	g.InsertWaypoint(ctx, model.Waypoint{SrcID: "a", DstID: "b", UserID: "tenant-a", Weight: 0.3})
	g.InsertWaypoint(ctx, model.Waypoint{SrcID: "a", DstID: "b", UserID: "tenant-a", Weight: 0.9})

	w, err := g.GetWaypoint(ctx, "a", "b", "tenant-a")
	if err != nil || w == nil {
		t.Fatalf("GetWaypoint: %v, %v", w, err)
	}
	if w.Weight != 0.9 {
		t.Fatalf("weight = %v, want 0.9 (upserted)", w.Weight)
	}
}

func TestPruneWaypointsScopedToTenant(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	g := s.Graph()
	g.InsertWaypoint(ctx, model.Waypoint{SrcID: "a", DstID: "b", UserID: "tenant-a", Weight: 0.01})
	g.InsertWaypoint(ctx, model.Waypoint{SrcID: "a", DstID: "b", UserID: "tenant-b", Weight: 0.01})
	g.InsertWaypoint(ctx, model.Waypoint{SrcID: "c", DstID: "d", UserID: "tenant-a", Weight: 0.9})

	count, err := g.PruneWaypoints(ctx, 0.05, "tenant-a")
	if err != nil {
		t.Fatalf("PruneWaypoints: %v", err)
	}
	if count != 1 {
		t.Fatalf("pruned = %d, want 1", count)
	}
	remaining, _ := g.GetWaypoint(ctx, "a", "b", "tenant-b")
	if remaining == nil {
		t.Fatalf("expected tenant-b's low-weight waypoint untouched")
	}
}

func TestTransactionRunExecutesClosure(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	ran := false
	err := s.Transaction().Run(ctx, func(ctx context.Context) error {
		ran = true
		return s.InsMem(ctx, model.Memory{ID: "m1", UserID: "tenant-a"})
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ran {
		t.Fatalf("expected closure to run")
	}
	got, _ := s.GetMem(ctx, "m1", "tenant-a")
	if got == nil {
		t.Fatalf("expected write inside transaction to be visible")
	}
}
