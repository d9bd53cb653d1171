package hsgembed

import (
	"context"
	"os"
	"testing"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

func TestDummyEmbedderRespectsPerSectorDim(t *testing.T) {
	table := model.SectorTable{
		model.SectorSemantic:  {Dim: 16},
		model.SectorEmotional: {Dim: 32},
	}
	d := NewDummyEmbedder(table)
	v, err := d.EmbedForSector(context.Background(), "hello world", model.SectorSemantic)
	if err != nil {
		t.Fatalf("EmbedForSector: %v", err)
	}
	if len(v) != 16 {
		t.Fatalf("dim = %d, want 16", len(v))
	}
	v2, _ := d.EmbedForSector(context.Background(), "hello world", model.SectorEmotional)
	if len(v2) != 32 {
		t.Fatalf("dim = %d, want 32", len(v2))
	}
}

func TestDummyEmbedderDeterministic(t *testing.T) {
	d := NewDummyEmbedder(model.DefaultSectorTable())
	a, _ := d.EmbedForSector(context.Background(), "same text", model.SectorSemantic)
	b, _ := d.EmbedForSector(context.Background(), "same text", model.SectorSemantic)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected deterministic output at index %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestEmbedMultiSectorCoversAllSectors(t *testing.T) {
	d := NewDummyEmbedder(model.DefaultSectorTable())
	sectors := model.DefaultSectorOrder
	out, err := d.EmbedMultiSector(context.Background(), "content", sectors)
	if err != nil {
		t.Fatalf("EmbedMultiSector: %v", err)
	}
	if len(out) != len(sectors) {
		t.Fatalf("got %d sectors, want %d", len(out), len(sectors))
	}
}

func TestAutoEmbedderFallsBackToDummyWithoutEnv(t *testing.T) {
	os.Unsetenv("HSG_EMBED_PROVIDER")
	e := AutoEmbedder(model.DefaultSectorTable())
	if _, ok := e.(*DummyEmbedder); !ok {
		t.Fatalf("expected *DummyEmbedder fallback, got %T", e)
	}
}

type fakeTextEmbedder struct{ calls []string }

func (f *fakeTextEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	return []float32{1, 2, 3}, nil
}

func TestMultiSectorEmbedderPrefixesSector(t *testing.T) {
	fake := &fakeTextEmbedder{}
	m := NewMultiSectorEmbedder(fake)
	_, err := m.EmbedForSector(context.Background(), "content", model.SectorEmotional)
	if err != nil {
		t.Fatalf("EmbedForSector: %v", err)
	}
	if len(fake.calls) != 1 || fake.calls[0] != "emotional: content" {
		t.Fatalf("unexpected call log: %v", fake.calls)
	}
}
