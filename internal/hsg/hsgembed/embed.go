// Package hsgembed provides the multi-sector embedding contract (spec.md
// §3, §4.1): a Memory gets one vector per sector it is embedded for (the
// write path uses its primary and additional sectors), produced by
// a single text-embedding provider applied once per sector with a
// sector-scoped prompt prefix. The provider abstraction, AutoEmbedder
// env-driven selection, and DummyEmbedder fallback are grounded on
// src/memory/embed/embed.go in the teacher; provider adapters are
// generalized from core/memory/embed/openai.go, pkg/memory/embeeding_vertex.go,
// pkg/memory/embeeding_ollama.go, src/memory/embed/claude.go and
// pkg/memory/embed/fast_embed.go.
package hsgembed

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

// TextEmbedder is the single-vector-per-call provider contract every
// concrete backend implements, identical in shape to the teacher's
// Embedder interface.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Embedder is the multi-sector contract the HSG engine depends on.
type Embedder interface {
	// EmbedForSector embeds text for a single sector.
	EmbedForSector(ctx context.Context, text string, sector model.Sector) ([]float32, error)
	// EmbedMultiSector embeds text once per sector in sectors, returning a
	// map keyed by sector. Used on the write path.
	EmbedMultiSector(ctx context.Context, text string, sectors []model.Sector) (map[model.Sector][]float32, error)
	// EmbedQueryForAllSectors embeds a query string for every sector so the
	// query path can search each sector's vector space.
	EmbedQueryForAllSectors(ctx context.Context, text string, sectors []model.Sector) (map[model.Sector][]float32, error)
}

// MultiSectorEmbedder adapts a single TextEmbedder into the Embedder
// contract by prefixing text with the target sector name before embedding,
// the same trick the teacher's fastembed adapter uses to distinguish
// "passage:" from plain text.
type MultiSectorEmbedder struct {
	base TextEmbedder
}

// NewMultiSectorEmbedder wraps base.
func NewMultiSectorEmbedder(base TextEmbedder) *MultiSectorEmbedder {
	return &MultiSectorEmbedder{base: base}
}

func (m *MultiSectorEmbedder) EmbedForSector(ctx context.Context, text string, sector model.Sector) ([]float32, error) {
	return m.base.Embed(ctx, sectorPrefixed(text, sector))
}

func (m *MultiSectorEmbedder) EmbedMultiSector(ctx context.Context, text string, sectors []model.Sector) (map[model.Sector][]float32, error) {
	out := make(map[model.Sector][]float32, len(sectors))
	for _, s := range sectors {
		v, err := m.EmbedForSector(ctx, text, s)
		if err != nil {
			return nil, err
		}
		out[s] = v
	}
	return out, nil
}

func (m *MultiSectorEmbedder) EmbedQueryForAllSectors(ctx context.Context, text string, sectors []model.Sector) (map[model.Sector][]float32, error) {
	return m.EmbedMultiSector(ctx, text, sectors)
}

func sectorPrefixed(text string, sector model.Sector) string {
	return string(sector) + ": " + text
}

// DummyEmbedder is a deterministic, dependency-free fallback used in tests
// and whenever no real provider is configured. Byte-sum hashing is carried
// over verbatim from the teacher's DummyEmbedding, generalized to respect
// each sector's declared dimension.
type DummyEmbedder struct {
	Sectors model.SectorTable
}

// NewDummyEmbedder builds a DummyEmbedder using the given sector table for
// per-sector dimensions.
func NewDummyEmbedder(sectors model.SectorTable) *DummyEmbedder {
	return &DummyEmbedder{Sectors: sectors}
}

func (d *DummyEmbedder) EmbedForSector(_ context.Context, text string, sector model.Sector) ([]float32, error) {
	return DummyEmbedding(sectorPrefixed(text, sector), d.dim(sector)), nil
}

func (d *DummyEmbedder) EmbedMultiSector(ctx context.Context, text string, sectors []model.Sector) (map[model.Sector][]float32, error) {
	out := make(map[model.Sector][]float32, len(sectors))
	for _, s := range sectors {
		v, _ := d.EmbedForSector(ctx, text, s)
		out[s] = v
	}
	return out, nil
}

func (d *DummyEmbedder) EmbedQueryForAllSectors(ctx context.Context, text string, sectors []model.Sector) (map[model.Sector][]float32, error) {
	return d.EmbedMultiSector(ctx, text, sectors)
}

func (d *DummyEmbedder) dim(sector model.Sector) int {
	if cfg, ok := d.Sectors[sector]; ok && cfg.Dim > 0 {
		return cfg.Dim
	}
	return 768
}

// DummyEmbedding is the teacher's byte-sum-modulo embedding, generalized to
// an arbitrary dimension instead of a hardcoded 768.
func DummyEmbedding(text string, dim int) []float32 {
	if dim <= 0 {
		dim = 768
	}
	vec := make([]float32, dim)
	for i, ch := range []byte(text) {
		vec[i%dim] += float32(ch) / 255.0
	}
	return vec
}

// AutoEmbedder chooses a provider from env, mirroring the teacher's
// ADK_EMBED_PROVIDER/ADK_EMBED_MODEL convention under an HSG-scoped prefix,
// wrapped in a MultiSectorEmbedder. Falls back to DummyEmbedder.
func AutoEmbedder(sectors model.SectorTable) Embedder {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("HSG_EMBED_PROVIDER")))
	modelName := strings.TrimSpace(os.Getenv("HSG_EMBED_MODEL"))

	switch provider {
	case "openai":
		if e, err := NewOpenAIEmbedder(modelName); err == nil {
			return NewMultiSectorEmbedder(e)
		}
	case "google", "gemini", "vertex", "vertexai":
		if e, err := NewVertexAIEmbedder(modelName); err == nil {
			return NewMultiSectorEmbedder(e)
		}
	case "ollama":
		if e, err := NewOllamaEmbedder(modelName); err == nil {
			return NewMultiSectorEmbedder(e)
		}
	case "claude", "anthropic", "voyage":
		if e, err := NewVoyageEmbedder(modelName); err == nil {
			return NewMultiSectorEmbedder(e)
		}
	case "fastembed":
		if opts := defaultFastEmbedOptions(); opts != nil {
			if e, err := NewFastEmbedder(context.Background(), opts); err == nil {
				return NewMultiSectorEmbedder(e)
			}
		}
	}

	log.Printf("hsgembed: AutoEmbedder falling back to DummyEmbedder")
	return NewDummyEmbedder(sectors)
}
