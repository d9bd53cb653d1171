package hsgstore

import (
	"context"
	"testing"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

type stubVectorStore struct{ calls int }

func (s *stubVectorStore) StoreVector(ctx context.Context, item VectorItem) error     { return nil }
func (s *stubVectorStore) StoreVectors(ctx context.Context, items []VectorItem) error { return nil }
func (s *stubVectorStore) GetVectorsByID(ctx context.Context, memoryID, userID string) ([]model.VectorRecord, error) {
	return nil, nil
}
func (s *stubVectorStore) GetVectorsByIDs(ctx context.Context, memoryIDs []string, userID string) ([]model.VectorRecord, error) {
	return nil, nil
}
func (s *stubVectorStore) DeleteVectors(ctx context.Context, memoryIDs []string, userID string) error {
	return nil
}
func (s *stubVectorStore) SearchSimilar(ctx context.Context, sector model.Sector, vec []float32, topK int, userID string, filter model.Metadata) ([]SimilarityHit, error) {
	s.calls++
	return []SimilarityHit{{MemoryID: "from-override", Score: 1}}, nil
}

func TestCompositeStoreOverridesVectorBackend(t *testing.T) {
	base := NewInMemoryStore()
	override := &stubVectorStore{}
	composite := NewCompositeStore(base, override, nil)

	hits, err := composite.Vectors().SearchSimilar(context.Background(), model.SectorSemantic, []float32{1, 0}, 5, "u1", nil)
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	if len(hits) != 1 || hits[0].MemoryID != "from-override" {
		t.Fatalf("expected the override vector store to serve the search, got %v", hits)
	}
	if override.calls != 1 {
		t.Fatalf("expected override to be called once, got %d", override.calls)
	}
}

func TestCompositeStoreFallsBackToBaseWhenNoOverride(t *testing.T) {
	ctx := context.Background()
	base := NewInMemoryStore()
	composite := NewCompositeStore(base, nil, nil)

	item := VectorItem{MemoryID: "m1", Sector: model.SectorSemantic, Vector: []float32{1, 0}, UserID: "u1"}
	if err := composite.Vectors().StoreVector(ctx, item); err != nil {
		t.Fatalf("StoreVector via composite: %v", err)
	}
	recs, err := base.Vectors().GetVectorsByID(ctx, "m1", "u1")
	if err != nil {
		t.Fatalf("GetVectorsByID via base: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected a write through composite with no override to land in base's own store, got %d records", len(recs))
	}
}

func TestCompositeStoreDelegatesRowOperations(t *testing.T) {
	ctx := context.Background()
	base := NewInMemoryStore()
	composite := NewCompositeStore(base, nil, nil)

	mem := model.Memory{ID: "m1", UserID: "u1", Primary: model.SectorSemantic, Salience: 0.5, DecayLambda: 0.02}
	if err := composite.InsMem(ctx, mem); err != nil {
		t.Fatalf("InsMem: %v", err)
	}
	got, err := composite.GetMem(ctx, "m1", "u1")
	if err != nil {
		t.Fatalf("GetMem: %v", err)
	}
	if got == nil || got.ID != "m1" {
		t.Fatalf("expected row operations to reach the base store, got %v", got)
	}
}
