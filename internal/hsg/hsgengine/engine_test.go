package hsgengine

import (
	"context"
	"testing"
	"time"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgconfig"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgcrypto"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgembed"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgstore"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	store := hsgstore.NewInMemoryStore()
	sectors := model.DefaultSectorTable()
	embedder := hsgembed.NewDummyEmbedder(sectors)
	crypto, err := hsgcrypto.NewService([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	cfg := hsgconfig.DefaultConfig()
	cfg.IsTest = true
	e := New(store, embedder, crypto, cfg)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestAddMemoryIsIdempotentBySimhash(t *testing.T) {
	ctx := context.Background()
	e := testEngine(t)

	first, err := e.AddMemory(ctx, AddRequest{UserID: "u1", Content: "Yesterday we went to the park and I felt happy."})
	if err != nil {
		t.Fatalf("AddMemory: %v", err)
	}
	if first.Dedup {
		t.Fatalf("first add should not be a dedup hit")
	}

	second, err := e.AddMemory(ctx, AddRequest{UserID: "u1", Content: "Yesterday we went to the park and I felt happy."})
	if err != nil {
		t.Fatalf("AddMemory (dup): %v", err)
	}
	if !second.Dedup {
		t.Fatalf("expected dedup on identical content")
	}
	if second.Memory.ID != first.Memory.ID {
		t.Fatalf("dedup returned a different memory id")
	}
	if second.Memory.Salience <= first.Memory.Salience {
		t.Fatalf("expected salience to increase on reinforcement: before=%f after=%f", first.Memory.Salience, second.Memory.Salience)
	}
}

func TestAddMemoryTenantIsolation(t *testing.T) {
	ctx := context.Background()
	e := testEngine(t)

	res1, err := e.AddMemory(ctx, AddRequest{UserID: "tenant-a", Content: "install the package using the setup script"})
	if err != nil {
		t.Fatalf("AddMemory tenant-a: %v", err)
	}
	_, err = e.AddMemory(ctx, AddRequest{UserID: "tenant-b", Content: "install the package using the setup script"})
	if err != nil {
		t.Fatalf("AddMemory tenant-b: %v", err)
	}

	got, err := e.store.GetMem(ctx, res1.Memory.ID, "tenant-b")
	if err != nil {
		t.Fatalf("GetMem cross-tenant: %v", err)
	}
	if got != nil {
		t.Fatalf("tenant-b must not see tenant-a's memory id")
	}
}

func TestAddMemoryClassifiesProceduralContent(t *testing.T) {
	ctx := context.Background()
	e := testEngine(t)
	res, err := e.AddMemory(ctx, AddRequest{UserID: "u1", Content: "First, install the dependencies. Then, run the setup script."})
	if err != nil {
		t.Fatalf("AddMemory: %v", err)
	}
	if res.Memory.Primary != model.SectorProcedural {
		t.Fatalf("expected procedural classification, got %s", res.Memory.Primary)
	}
}

func TestAddMemoryFirstMemoryGetsSelfLoopAnchor(t *testing.T) {
	ctx := context.Background()
	e := testEngine(t)
	res, err := e.AddMemory(ctx, AddRequest{UserID: "u1", Content: "a fact is a fact"})
	if err != nil {
		t.Fatalf("AddMemory: %v", err)
	}
	w, err := e.store.Graph().GetWaypoint(ctx, res.Memory.ID, res.Memory.ID, "u1")
	if err != nil {
		t.Fatalf("GetWaypoint: %v", err)
	}
	if w == nil {
		t.Fatalf("expected self-loop anchor waypoint for the tenant's first memory")
	}
}

func TestQueryHitReinforcesSalience(t *testing.T) {
	ctx := context.Background()
	e := testEngine(t)

	a, err := e.AddMemory(ctx, AddRequest{UserID: "u1", Content: "notes about the quarterly roadmap planning process"})
	if err != nil {
		t.Fatalf("AddMemory a: %v", err)
	}
	b, err := e.AddMemory(ctx, AddRequest{UserID: "u1", Content: "notes about the quarterly roadmap planning meeting"})
	if err != nil {
		t.Fatalf("AddMemory b: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := e.Query(ctx, QueryRequest{UserID: "u1", Query: "quarterly roadmap planning"}); err != nil {
			t.Fatalf("Query: %v", err)
		}
	}
	time.Sleep(20 * time.Millisecond) // let async onQueryHit settle

	got, err := e.store.GetMem(ctx, a.Memory.ID, "u1")
	if err != nil {
		t.Fatalf("GetMem a: %v", err)
	}
	if got.Salience <= a.Memory.Salience {
		t.Fatalf("expected repeated query hits to reinforce salience: before=%f after=%f", a.Memory.Salience, got.Salience)
	}
	_ = b
}

func TestQueryReturnsCachedResultOnSecondCall(t *testing.T) {
	ctx := context.Background()
	e := testEngine(t)
	if _, err := e.AddMemory(ctx, AddRequest{UserID: "u1", Content: "I remember attending the conference last week"}); err != nil {
		t.Fatalf("AddMemory: %v", err)
	}

	first, err := e.Query(ctx, QueryRequest{UserID: "u1", Query: "conference last week"})
	if err != nil {
		t.Fatalf("Query first: %v", err)
	}
	if first.Cached {
		t.Fatalf("first query should not be served from cache")
	}
	second, err := e.Query(ctx, QueryRequest{UserID: "u1", Query: "conference last week"})
	if err != nil {
		t.Fatalf("Query second: %v", err)
	}
	if !second.Cached {
		t.Fatalf("second identical query should be served from cache")
	}
}

func TestUpdateMemoryContentReclassifiesAndReembeds(t *testing.T) {
	ctx := context.Background()
	e := testEngine(t)
	res, err := e.AddMemory(ctx, AddRequest{UserID: "u1", Content: "a fact is a fact about rocks"})
	if err != nil {
		t.Fatalf("AddMemory: %v", err)
	}
	if res.Memory.Primary != model.SectorSemantic {
		t.Fatalf("expected initial semantic classification, got %s", res.Memory.Primary)
	}

	newContent := "I feel so happy and excited about this news"
	updated, err := e.UpdateMemory(ctx, UpdateRequest{UserID: "u1", ID: res.Memory.ID, Content: &newContent})
	if err != nil {
		t.Fatalf("UpdateMemory: %v", err)
	}
	if updated.Primary != model.SectorEmotional {
		t.Fatalf("expected reclassification to emotional, got %s", updated.Primary)
	}
	if updated.Version <= res.Memory.Version {
		t.Fatalf("expected version to bump on update")
	}
}

func TestUpdateMemoryMetadataOnlyDoesNotTouchContent(t *testing.T) {
	ctx := context.Background()
	e := testEngine(t)
	res, err := e.AddMemory(ctx, AddRequest{UserID: "u1", Content: "a fact is a fact"})
	if err != nil {
		t.Fatalf("AddMemory: %v", err)
	}
	tags := []string{"archived"}
	updated, err := e.UpdateMemory(ctx, UpdateRequest{UserID: "u1", ID: res.Memory.ID, Tags: &tags})
	if err != nil {
		t.Fatalf("UpdateMemory: %v", err)
	}
	if string(updated.Content) != string(res.Memory.Content) {
		t.Fatalf("metadata-only update must not change content ciphertext")
	}
	if len(updated.Tags) != 1 || updated.Tags[0] != "archived" {
		t.Fatalf("expected tags to update, got %v", updated.Tags)
	}
}

func TestRunMaintenanceNowDecaysSalience(t *testing.T) {
	ctx := context.Background()
	e := testEngine(t)
	res, err := e.AddMemory(ctx, AddRequest{UserID: "u1", Content: "a fact is a fact"})
	if err != nil {
		t.Fatalf("AddMemory: %v", err)
	}

	old := res.Memory
	old.LastSeenAt = old.LastSeenAt.Add(-60 * 24 * time.Hour)
	if err := e.store.UpdMem(ctx, old); err != nil {
		t.Fatalf("UpdMem: %v", err)
	}

	if err := e.RunMaintenanceNow(ctx, "u1"); err != nil {
		t.Fatalf("RunMaintenanceNow: %v", err)
	}
	got, err := e.store.GetMem(ctx, res.Memory.ID, "u1")
	if err != nil {
		t.Fatalf("GetMem: %v", err)
	}
	if got.Salience >= res.Memory.Salience {
		t.Fatalf("expected decay to reduce salience: before=%f after=%f", res.Memory.Salience, got.Salience)
	}
}
