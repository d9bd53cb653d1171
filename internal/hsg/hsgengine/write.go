// The write path (spec.md §4.2): classify, dedup by simhash, embed every
// applicable sector, encrypt, persist, and link the new memory into the
// waypoint graph.
package hsgengine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgerr"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgevents"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgstore"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/simhash"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/vecmath"
)

// dedupSalienceBoost is the fixed salience bump an idempotent re-add gets
// (spec.md §4.2 step 2), distinct from consolidation.ReinforceMemory's
// configurable cfg.ReinforcementBoost used by access-driven reinforcement
// (spec.md §4.4).
const dedupSalienceBoost = 0.1

// AddRequest is one write-path request.
type AddRequest struct {
	UserID   string
	Content  string
	Tags     []string
	Metadata model.Metadata
	// DecayLambda overrides the primary sector's default decay rate when
	// positive.
	DecayLambda float64
}

// AddResult is the outcome of AddMemory.
type AddResult struct {
	Memory model.Memory
	// Dedup is true when req.Content's simhash matched an existing memory
	// for the tenant and its decrypted content is identical to
	// req.Content: the call reinforced that memory instead of
	// inserting a duplicate (spec.md invariant on idempotent re-add).
	Dedup bool
}

// AddMemory classifies, embeds, encrypts and persists one piece of content,
// then links it into the tenant's waypoint graph.
func (e *Engine) AddMemory(ctx context.Context, req AddRequest) (*AddResult, error) {
	if req.UserID == "" {
		return nil, hsgerr.New(hsgerr.KindInvalidArgument, "AddMemory", fmt.Errorf("userID is required"))
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, hsgerr.New(hsgerr.KindInvalidArgument, "AddMemory", fmt.Errorf("content is required"))
	}

	now := e.clock()
	sum := simhash.Sum64(req.Content)

	existing, err := e.store.GetMemBySimhash(ctx, sum, req.UserID)
	if err != nil {
		return nil, hsgerr.New(hsgerr.KindTransient, "AddMemory", err)
	}
	if existing != nil {
		plaintext, decErr := e.crypto.Decrypt(req.UserID, string(existing.Content))
		switch {
		case decErr == nil && string(plaintext) == req.Content:
			if err := e.touchDedupHit(ctx, existing, req.UserID, now); err != nil {
				return nil, hsgerr.New(hsgerr.KindTransient, "AddMemory", err)
			}
			return &AddResult{Memory: *existing, Dedup: true}, nil
		case decErr != nil:
			e.logf("AddMemory: dedup decrypt failed for memory %s, proceeding as new: %v", existing.ID, decErr)
		default:
			e.logf("AddMemory: %v", hsgerr.New(hsgerr.KindConflict, "AddMemory",
				fmt.Errorf("simhash collision on memory %s for user %s with divergent content, proceeding as new", existing.ID, req.UserID)))
		}
	}

	classification, seedVec := e.classify(ctx, req.UserID, req.Content, req.Metadata)

	lambda := req.DecayLambda
	if lambda <= 0 {
		lambda = 0.02
		if cfg, ok := e.cfg.Sectors[classification.Primary]; ok && cfg.DecayLambda > 0 {
			lambda = cfg.DecayLambda
		}
	}

	sectors := uniqueSectors(classification.Primary, classification.Additional)
	embeddings := make(map[model.Sector][]float32, len(sectors))
	for _, s := range sectors {
		if s == model.SectorSemantic && seedVec != nil {
			embeddings[s] = seedVec
			continue
		}
		v, err := e.embedder.EmbedForSector(ctx, req.Content, s)
		if err != nil {
			return nil, hsgerr.New(hsgerr.KindTransient, "AddMemory", err)
		}
		embeddings[s] = v
	}

	encrypted, err := e.crypto.Encrypt(req.UserID, []byte(req.Content))
	if err != nil {
		return nil, hsgerr.New(hsgerr.KindFatal, "AddMemory", err)
	}

	vecs := make([][]float32, 0, len(embeddings))
	dim := 0
	for _, v := range embeddings {
		vecs = append(vecs, v)
		if len(v) > dim {
			dim = len(v)
		}
	}
	mean := vecmath.Mean(vecs)

	// spec.md §4.2 step 5: salience = min(1, 0.4 + 0.1*|additional|).
	salience := 0.4 + 0.1*float64(len(classification.Additional))

	mem := model.Memory{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		Content:     []byte(encrypted),
		Primary:     classification.Primary,
		Tags:        append([]string{}, req.Tags...),
		Metadata:    model.CloneMetadata(req.Metadata),
		Simhash:     sum,
		CreatedAt:   now,
		UpdatedAt:   now,
		LastSeenAt:  now,
		Salience:    salience,
		DecayLambda: lambda,
		Version:     1,
		Dim:         dim,
		MeanVector:  mean,
	}
	mem.ClampSalience()

	vectorItems := make([]hsgstore.VectorItem, 0, len(embeddings))
	for sector, vec := range embeddings {
		vectorItems = append(vectorItems, hsgstore.VectorItem{
			MemoryID: mem.ID, Sector: sector, Vector: vec, Dim: len(vec), UserID: req.UserID,
		})
	}

	err = e.store.Transaction().Run(ctx, func(ctx context.Context) error {
		if err := e.store.InsMem(ctx, mem); err != nil {
			return err
		}
		if err := e.store.Vectors().StoreVectors(ctx, vectorItems); err != nil {
			return err
		}
		return e.linkNewMemory(ctx, mem, classification, embeddings, seedVec)
	})
	if err != nil {
		return nil, hsgerr.New(hsgerr.KindTransient, "AddMemory", err)
	}

	e.events.Publish(hsgevents.Event{Kind: hsgevents.KindMemoryAdded, UserID: req.UserID, Payload: mem.ID})
	return &AddResult{Memory: mem}, nil
}

// AddMemories adds each request in order, stopping at the first error.
// Each entry runs through AddMemory's own transaction; the batch itself is
// not atomic across entries.
func (e *Engine) AddMemories(ctx context.Context, reqs []AddRequest) ([]AddResult, error) {
	results := make([]AddResult, 0, len(reqs))
	for _, req := range reqs {
		res, err := e.AddMemory(ctx, req)
		if err != nil {
			return results, err
		}
		results = append(results, *res)
	}
	return results, nil
}

// touchDedupHit applies spec.md §4.2 step 2's idempotent re-add contract:
// salience bumps by the fixed dedupSalienceBoost and lastSeenAt advances to
// now. This is deliberately distinct from consolidation.ReinforceMemory,
// whose §4.4 access-reinforcement contract leaves lastSeenAt untouched.
func (e *Engine) touchDedupHit(ctx context.Context, mem *model.Memory, userID string, now time.Time) error {
	mem.Salience += dedupSalienceBoost
	mem.ClampSalience()
	mem.LastSeenAt = now
	mem.UpdatedAt = now
	return e.store.UpdSeen(ctx, mem.ID, now.UnixMilli(), mem.Salience, now.UnixMilli(), userID)
}

// linkNewMemory wires a freshly persisted memory into the waypoint graph
// per spec.md §4.2 step 6, in three independent steps:
//
//   - a bidirectional edge to a virtual "id:sector" tag node for every
//     additional sector the classifier assigned, weight 0.5;
//   - a semantic-gravity link: the single best other memory found by
//     searching the semantic sector with the content's semantic embedding,
//     weight = that hit's score, or a self-loop of weight 1.0 if none;
//   - intra-sector similarity links: up to 50 neighbors in the primary
//     sector's vector space, bidirectional edges of weight 0.5 for every
//     hit scoring at least 0.85.
func (e *Engine) linkNewMemory(ctx context.Context, mem model.Memory, classification model.SectorClassification, embeddings map[model.Sector][]float32, semanticVec []float32) error {
	now := mem.CreatedAt
	var edges []model.Waypoint

	for _, sector := range classification.Additional {
		node := model.VirtualSectorNode(mem.ID, sector)
		edges = append(edges,
			model.Waypoint{SrcID: mem.ID, DstID: node, UserID: mem.UserID, Weight: 0.5, CreatedAt: now, UpdatedAt: now},
			model.Waypoint{SrcID: node, DstID: mem.ID, UserID: mem.UserID, Weight: 0.5, CreatedAt: now, UpdatedAt: now},
		)
	}

	best, ok, err := e.semanticGravityTarget(ctx, mem, semanticVec)
	if err != nil {
		return err
	}
	if ok {
		edges = append(edges, model.Waypoint{SrcID: mem.ID, DstID: best.MemoryID, UserID: mem.UserID, Weight: best.Score, CreatedAt: now, UpdatedAt: now})
	} else {
		edges = append(edges, model.Waypoint{SrcID: mem.ID, DstID: mem.ID, UserID: mem.UserID, Weight: 1.0, CreatedAt: now, UpdatedAt: now})
	}

	if vec := embeddings[classification.Primary]; len(vec) > 0 {
		hits, err := e.store.Vectors().SearchSimilar(ctx, classification.Primary, vec, 50, mem.UserID, nil)
		if err != nil {
			return err
		}
		for _, hit := range hits {
			if hit.MemoryID == mem.ID || hit.Score < 0.85 {
				continue
			}
			edges = append(edges,
				model.Waypoint{SrcID: mem.ID, DstID: hit.MemoryID, UserID: mem.UserID, Weight: 0.5, CreatedAt: now, UpdatedAt: now},
				model.Waypoint{SrcID: hit.MemoryID, DstID: mem.ID, UserID: mem.UserID, Weight: 0.5, CreatedAt: now, UpdatedAt: now},
			)
		}
	}

	for i := range edges {
		edges[i].ClampWeight()
	}
	return e.store.Graph().InsertWaypoints(ctx, edges)
}

// semanticGravityTarget searches the semantic sector for the single best
// other memory matching semanticVec (spec.md §4.2 step 6). It reports
// ok=false when there is no semantic vector to search with, or no other
// memory scores above zero.
func (e *Engine) semanticGravityTarget(ctx context.Context, mem model.Memory, semanticVec []float32) (hsgstore.SimilarityHit, bool, error) {
	if len(semanticVec) == 0 {
		return hsgstore.SimilarityHit{}, false, nil
	}
	hits, err := e.store.Vectors().SearchSimilar(ctx, model.SectorSemantic, semanticVec, 5, mem.UserID, nil)
	if err != nil {
		return hsgstore.SimilarityHit{}, false, err
	}
	for _, hit := range hits {
		if hit.MemoryID == mem.ID || hit.Score <= 0 {
			continue
		}
		return hit, true, nil
	}
	return hsgstore.SimilarityHit{}, false, nil
}
