// The query path (spec.md §4.3): hybrid vector + lexical + graph-activation
// ranked retrieval over a tenant's memories.
package hsgengine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/consolidation"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/graph"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgerr"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

// hybridSaturationTau is the time-constant of the saturation map applied to
// the blended score before clamping (spec.md §4.3 step 7). Distinct from
// cfg.Tau, which parameterizes the Hebbian co-activation flush instead.
const hybridSaturationTau = 1.0

// lexicalFallbackScore is the fixed score every lexical-fallback hit gets
// (spec.md §4.3 step 3).
const lexicalFallbackScore = 0.5

// QueryRequest is one hybrid-query request.
type QueryRequest struct {
	UserID string
	Query  string
	TopK   int
	// Tags, if set, restricts results to memories carrying at least one of
	// these tags (case-insensitive) and folds tag-overlap into the lexical
	// scoring component.
	Tags []string
	// Sectors, if set, adds to the candidate sectors derived from
	// classifying the query (spec.md §4.3 step 2's filter.sectors).
	Sectors []model.Sector
	// MinSalience drops any candidate whose current salience is below it.
	MinSalience float64
	// Since/Until bound a candidate's CreatedAt, inclusive. Zero value
	// means unbounded on that side.
	Since time.Time
	Until time.Time
	// MetadataPredicate, if set, drops any candidate it returns false for.
	MetadataPredicate func(model.Metadata) bool
}

// Hit is one ranked query result.
type Hit struct {
	Memory model.Memory
	Score  float64
}

// QueryResult is the outcome of Query.
type QueryResult struct {
	Hits   []Hit
	Cached bool
}

// Query runs the hybrid scoring pipeline: classify the query to determine
// its candidate sectors, embed it per candidate sector (falling back to
// lexical-only scoring if every sector's embed/search contributes nothing),
// gather candidates via per-sector vector search, filter the batch fetch by
// the request's filters, run spreading activation from every surviving
// candidate simultaneously, score each on a weighted blend of vector
// similarity, lexical overlap, graph activation, recency and decayed
// salience, apply a saturation map and cross-sector resonance multiplier,
// then rank.
//
// The blend's exact coefficients are config (cfg.HybridWeights); this
// function folds token-overlap Jaccard and tag matching into the single
// "Lexical" weight bucket, and treats cross-sector resonance (a memory
// surfaced by more than one sector's search) as a final multiplicative
// factor rather than an eighth weighted term, since the spec defers the
// exact formula to configuration.
func (e *Engine) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if req.UserID == "" {
		return nil, hsgerr.New(hsgerr.KindInvalidArgument, "Query", fmt.Errorf("userID is required"))
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, hsgerr.New(hsgerr.KindInvalidArgument, "Query", fmt.Errorf("query is required"))
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 10
	}

	// A MetadataPredicate is a func value and can't be folded into the cache
	// key, so requests carrying one bypass the query cache entirely rather
	// than risk serving a result filtered by a different predicate.
	var cacheKey string
	if req.MetadataPredicate == nil {
		cacheKey = queryCacheKey(req)
		if cached, ok := e.queryCache.Get(cacheKey); ok {
			if hits, ok := cached.([]Hit); ok {
				return &QueryResult{Hits: hits, Cached: true}, nil
			}
		}
	}

	classification, seedVec := e.classify(ctx, req.UserID, req.Query, nil)
	candidateSectors := uniqueSectors(classification.Primary, classification.Additional)
	for _, s := range req.Sectors {
		candidateSectors = appendSectorIfMissing(candidateSectors, s)
	}

	sectorHits := make(map[string]map[model.Sector]float64)
	perSectorFanout := topK * 3
	if perSectorFanout < 20 {
		perSectorFanout = 20
	}
	for _, sector := range candidateSectors {
		var vec []float32
		if sector == model.SectorSemantic && seedVec != nil {
			vec = seedVec
		} else {
			var err error
			vec, err = e.embedder.EmbedForSector(ctx, req.Query, sector)
			if err != nil {
				e.logf("Query: embed failed for sector %s, skipping vector search for it: %v", sector, err)
				continue
			}
		}
		hits, err := e.store.Vectors().SearchSimilar(ctx, sector, vec, perSectorFanout, req.UserID, nil)
		if err != nil {
			return nil, hsgerr.New(hsgerr.KindTransient, "Query", err)
		}
		for _, h := range hits {
			m, ok := sectorHits[h.MemoryID]
			if !ok {
				m = make(map[model.Sector]float64)
				sectorHits[h.MemoryID] = m
			}
			if existing, ok := m[sector]; !ok || h.Score > existing {
				m[sector] = h.Score
			}
		}
	}

	if len(sectorHits) == 0 {
		hits, err := e.lexicalFallback(ctx, req, topK)
		if err != nil {
			return nil, err
		}
		e.finishQuery(req, cacheKey, hits, nil)
		return &QueryResult{Hits: hits}, nil
	}

	ids := make([]string, 0, len(sectorHits))
	for id := range sectorHits {
		ids = append(ids, id)
	}
	memories, err := e.store.GetMems(ctx, ids, req.UserID)
	if err != nil {
		return nil, hsgerr.New(hsgerr.KindTransient, "Query", err)
	}
	memByID := make(map[string]model.Memory, len(memories))
	for _, m := range memories {
		if !matchesQueryFilters(m, req) {
			continue
		}
		memByID[m.ID] = m
	}

	if len(memByID) == 0 {
		e.finishQuery(req, cacheKey, nil, nil)
		return &QueryResult{Hits: nil}, nil
	}

	seeds := make([]string, 0, len(memByID))
	for id := range memByID {
		seeds = append(seeds, id)
	}
	activation, err := graph.Activate(ctx, e.store.Graph(), seeds, req.UserID, graph.ActivationConfig{
		Decay:         e.cfg.SpreadingActivationDecay,
		Floor:         e.cfg.SpreadingActivationFloor,
		MaxLevel:      e.cfg.SpreadingActivationMaxLevel,
		MaxIterations: e.cfg.SpreadingActivationMaxIterations,
	})
	if err != nil {
		e.logf("Query: spreading activation failed, scoring without it: %v", err)
		activation = map[string]graph.Reached{}
	}

	queryTokens := tokenSet(req.Query)
	tagFilter := make(map[string]bool, len(req.Tags))
	for _, t := range req.Tags {
		tagFilter[strings.ToLower(t)] = true
	}

	now := e.clock()
	weights := e.cfg.NormalizedWeights()

	var hits []Hit
	for id, mem := range memByID {
		scores := sectorHits[id]
		if len(tagFilter) > 0 && !anyTagMatches(mem.Tags, tagFilter) {
			continue
		}

		vectorScore := 0.0
		for _, s := range scores {
			if s > vectorScore {
				vectorScore = s
			}
		}

		decayedSalience := consolidation.DualPhaseDecay(mem.Salience, now.Sub(mem.LastSeenAt).Hours()/24, mem.DecayLambda)

		lexicalScore := 0.0
		if plaintext, err := e.crypto.Decrypt(mem.UserID, string(mem.Content)); err == nil {
			lexicalScore = jaccard(queryTokens, tokenSet(string(plaintext)))
		}
		if len(tagFilter) > 0 {
			matched := 0
			for _, tag := range mem.Tags {
				if tagFilter[strings.ToLower(tag)] {
					matched++
				}
			}
			if matched > 0 {
				if tagScore := float64(matched) / float64(len(tagFilter)); tagScore > lexicalScore {
					lexicalScore = tagScore
				}
			}
		}

		recencyScore := recencyDecay(now.Sub(mem.LastSeenAt))

		activationScore := 0.0
		if r, ok := activation[id]; ok {
			activationScore = r.Weight
		}

		combined := weights.Vector*vectorScore +
			weights.Lexical*lexicalScore +
			weights.Activation*activationScore +
			weights.Recency*recencyScore +
			weights.Salience*decayedSalience

		resonance := 1.0
		if n := len(scores); n > 1 {
			resonance = 1 + 0.1*float64(n-1)
			if resonance > 1.5 {
				resonance = 1.5
			}
		}

		hits = append(hits, Hit{Memory: mem, Score: saturateAndClamp(combined, resonance)})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}

	e.finishQuery(req, cacheKey, hits, activation)
	return &QueryResult{Hits: hits}, nil
}

// saturateAndClamp applies spec.md §4.3 step 7's saturation map
// (1 - exp(-tau*s)) to the blended score, then multiplies by resonance and
// clamps the result to [0,1].
func saturateAndClamp(combined, resonance float64) float64 {
	saturated := 1 - math.Exp(-hybridSaturationTau*combined)
	if saturated < 0 {
		saturated = 0
	}
	if saturated > 1 {
		saturated = 1
	}
	score := saturated * resonance
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// finishQuery runs the query path's trailing steps shared by both the
// hybrid and lexical-fallback routes: co-activation emission, async
// access-reinforcement, and caching the ranked result (spec.md §4.3 steps
// 9-11).
func (e *Engine) finishQuery(req QueryRequest, cacheKey string, hits []Hit, activation map[string]graph.Reached) {
	topIDs := make([]string, 0, len(hits))
	for _, h := range hits {
		topIDs = append(topIDs, h.Memory.ID)
	}
	e.bufferCoactivations(req.UserID, topIDs)
	e.onQueryHit(req.UserID, topIDs, activation)
	if cacheKey != "" {
		e.queryCache.Set(cacheKey, hits)
	}
}

// lexicalFallback implements spec.md §4.3 step 3's fallback: every
// candidate matching at least one query token by keyword overlap, scored
// with the fixed lexicalFallbackScore, capped at topK.
func (e *Engine) lexicalFallback(ctx context.Context, req QueryRequest, topK int) ([]Hit, error) {
	queryTokens := tokenSet(req.Query)
	tagFilter := make(map[string]bool, len(req.Tags))
	for _, t := range req.Tags {
		tagFilter[strings.ToLower(t)] = true
	}
	type candidate struct {
		mem     model.Memory
		overlap float64
	}
	var candidates []candidate
	err := e.store.Iterate(ctx, req.UserID, func(m model.Memory) bool {
		if !matchesQueryFilters(m, req) {
			return true
		}
		if len(tagFilter) > 0 && !anyTagMatches(m.Tags, tagFilter) {
			return true
		}
		plaintext, decErr := e.crypto.Decrypt(m.UserID, string(m.Content))
		if decErr != nil {
			return true
		}
		overlap := jaccard(queryTokens, tokenSet(string(plaintext)))
		if overlap <= 0 {
			return true
		}
		candidates = append(candidates, candidate{mem: m, overlap: overlap})
		return true
	})
	if err != nil {
		return nil, hsgerr.New(hsgerr.KindTransient, "Query", err)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].overlap > candidates[j].overlap })
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	hits := make([]Hit, 0, len(candidates))
	for _, c := range candidates {
		hits = append(hits, Hit{Memory: c.mem, Score: lexicalFallbackScore})
	}
	return hits, nil
}

// matchesQueryFilters applies req's minSalience/time-bound/metadata
// filters to a candidate row (spec.md §4.3 step 5's batch-fetch filter).
func matchesQueryFilters(m model.Memory, req QueryRequest) bool {
	if req.MinSalience > 0 && m.Salience < req.MinSalience {
		return false
	}
	if !req.Since.IsZero() && m.CreatedAt.Before(req.Since) {
		return false
	}
	if !req.Until.IsZero() && m.CreatedAt.After(req.Until) {
		return false
	}
	if req.MetadataPredicate != nil && !req.MetadataPredicate(m.Metadata) {
		return false
	}
	return true
}

func appendSectorIfMissing(sectors []model.Sector, s model.Sector) []model.Sector {
	for _, existing := range sectors {
		if existing == s {
			return sectors
		}
	}
	return append(sectors, s)
}

func queryCacheKey(req QueryRequest) string {
	sortedTags := append([]string{}, req.Tags...)
	sort.Strings(sortedTags)
	sortedSectors := make([]string, len(req.Sectors))
	for i, s := range req.Sectors {
		sortedSectors[i] = string(s)
	}
	sort.Strings(sortedSectors)
	return strings.Join([]string{
		req.UserID,
		req.Query,
		strconv.Itoa(req.TopK),
		strings.Join(sortedTags, ","),
		strings.Join(sortedSectors, ","),
		strconv.FormatFloat(req.MinSalience, 'f', -1, 64),
		req.Since.Format(time.RFC3339Nano),
		req.Until.Format(time.RFC3339Nano),
	}, "\x1f")
}

func anyTagMatches(tags []string, filter map[string]bool) bool {
	for _, t := range tags {
		if filter[strings.ToLower(t)] {
			return true
		}
	}
	return false
}

// recencyDecay maps an age into (0,1] as exp(-days/3): it falls by a factor
// of e every 3 days (half-life about 2.1 days).
func recencyDecay(age time.Duration) float64 {
	days := age.Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Exp(-days / 3.0)
}

func tokenSet(text string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(text)) {
		f = strings.Trim(f, ".,!?;:\"'()[]{}")
		if f != "" {
			out[f] = true
		}
	}
	return out
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if b[t] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
