// The update path (spec.md §4.4): metadata/tag patches apply directly;
// content changes trigger a full re-classify and re-embed.
package hsgengine

import (
	"context"
	"fmt"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgerr"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgevents"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgstore"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/simhash"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/vecmath"
)

// UpdateRequest patches an existing memory. Nil fields leave the
// corresponding value unchanged; Content, if non-nil, replaces the
// memory's content and triggers re-classification and re-embedding.
type UpdateRequest struct {
	UserID   string
	ID       string
	Content  *string
	Tags     *[]string
	Metadata model.Metadata
}

// UpdateMemory applies req to the memory it names. A content change
// re-classifies and re-embeds every applicable sector in one transaction;
// a tag/metadata-only patch updates the row directly without touching
// vectors or the waypoint graph.
func (e *Engine) UpdateMemory(ctx context.Context, req UpdateRequest) (*model.Memory, error) {
	if req.UserID == "" || req.ID == "" {
		return nil, hsgerr.New(hsgerr.KindInvalidArgument, "UpdateMemory", fmt.Errorf("userID and id are required"))
	}

	mem, err := e.store.GetMem(ctx, req.ID, req.UserID)
	if err != nil {
		return nil, hsgerr.New(hsgerr.KindTransient, "UpdateMemory", err)
	}
	if mem == nil {
		return nil, hsgerr.New(hsgerr.KindNotFound, "UpdateMemory", fmt.Errorf("memory %s not found", req.ID))
	}

	now := e.clock()

	if req.Tags != nil {
		mem.Tags = append([]string{}, (*req.Tags)...)
	}
	if req.Metadata != nil {
		mem.Metadata = model.CloneMetadata(req.Metadata)
	}
	mem.UpdatedAt = now
	mem.Version++

	if req.Content == nil {
		if err := e.store.UpdMem(ctx, *mem); err != nil {
			return nil, hsgerr.New(hsgerr.KindTransient, "UpdateMemory", err)
		}
		e.events.Publish(hsgevents.Event{Kind: hsgevents.KindMemoryUpdated, UserID: req.UserID, Payload: mem.ID})
		return mem, nil
	}

	content := *req.Content
	classification, seedVec := e.classify(ctx, req.UserID, content, mem.Metadata)
	mem.Primary = classification.Primary
	mem.Simhash = simhash.Sum64(content)

	sectors := uniqueSectors(classification.Primary, classification.Additional)
	embeddings := make(map[model.Sector][]float32, len(sectors))
	for _, s := range sectors {
		if s == model.SectorSemantic && seedVec != nil {
			embeddings[s] = seedVec
			continue
		}
		v, err := e.embedder.EmbedForSector(ctx, content, s)
		if err != nil {
			return nil, hsgerr.New(hsgerr.KindTransient, "UpdateMemory", err)
		}
		embeddings[s] = v
	}

	encrypted, err := e.crypto.Encrypt(req.UserID, []byte(content))
	if err != nil {
		return nil, hsgerr.New(hsgerr.KindFatal, "UpdateMemory", err)
	}
	mem.Content = []byte(encrypted)

	vecs := make([][]float32, 0, len(embeddings))
	dim := 0
	for _, v := range embeddings {
		vecs = append(vecs, v)
		if len(v) > dim {
			dim = len(v)
		}
	}
	mem.Dim = dim
	mem.MeanVector = vecmath.Mean(vecs)

	vectorItems := make([]hsgstore.VectorItem, 0, len(embeddings))
	for sector, vec := range embeddings {
		vectorItems = append(vectorItems, hsgstore.VectorItem{
			MemoryID: mem.ID, Sector: sector, Vector: vec, Dim: len(vec), UserID: req.UserID,
		})
	}

	err = e.store.Transaction().Run(ctx, func(ctx context.Context) error {
		if err := e.store.UpdMem(ctx, *mem); err != nil {
			return err
		}
		if err := e.store.Vectors().DeleteVectors(ctx, []string{mem.ID}, req.UserID); err != nil {
			return err
		}
		if err := e.store.Vectors().StoreVectors(ctx, vectorItems); err != nil {
			return err
		}
		return e.linkNewMemory(ctx, *mem, classification, embeddings, seedVec)
	})
	if err != nil {
		return nil, hsgerr.New(hsgerr.KindTransient, "UpdateMemory", err)
	}

	e.events.Publish(hsgevents.Event{Kind: hsgevents.KindMemoryUpdated, UserID: req.UserID, Payload: mem.ID})
	return mem, nil
}
