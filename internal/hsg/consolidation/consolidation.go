// Package consolidation implements the HSG's background maintenance
// computations (spec.md §4.4): dual-phase salience decay, Hebbian
// co-activation flush, waypoint pruning, and access-driven reinforcement.
// Generalized from the teacher's Engine.Prune TTL/size/dedup eviction loop
// (pkg/memory/engine.go) — same Iterate-then-batch-delete shape, applied
// here to decay and pruning instead of TTL/size eviction.
package consolidation

import (
	"context"
	"math"
	"time"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgstore"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/vecmath"
)

// fastPhaseDays bounds the initial fast-decay regime of DualPhaseDecay.
const fastPhaseDays = 7.0

// fastMultiplier scales lambda during the fast phase relative to the
// steady-state rate used afterward.
const fastMultiplier = 3.0

// DualPhaseDecay applies a two-regime decay curve to salience: a fast
// exponential regime for the first fastPhaseDays of age, then a slower
// steady-state exponential regime after that, both parameterized by the
// memory's own lambda. Monotonically non-increasing in ageDays for fixed
// salience and lambda (spec.md invariant 7): both factors are
// non-increasing exponentials of non-negative exponents.
func DualPhaseDecay(salience, ageDays, lambda float64) float64 {
	if ageDays < 0 {
		ageDays = 0
	}
	fastDur := math.Min(ageDays, fastPhaseDays)
	slowDur := math.Max(ageDays-fastPhaseDays, 0)
	factor := math.Exp(-lambda*fastMultiplier*fastDur) * math.Exp(-lambda*slowDur)
	return vecmath.Clamp(salience*factor, 0, 1)
}

// DecayConfig bounds one decay pass.
type DecayConfig struct {
	UserID string // "" runs across every tenant
	Now    time.Time
}

// RunDecay iterates every memory (scoped to cfg.UserID if set) and persists
// its dual-phase-decayed salience. lastSeenAt is left untouched per spec.md
// §4.4; only salience and updatedAt change.
func RunDecay(ctx context.Context, store hsgstore.Store, cfg DecayConfig) (processed int, err error) {
	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	var touched []model.Memory
	iterErr := store.Iterate(ctx, cfg.UserID, func(m model.Memory) bool {
		ageDays := now.Sub(m.LastSeenAt).Hours() / 24
		newSal := DualPhaseDecay(m.Salience, ageDays, m.DecayLambda)
		if newSal != m.Salience {
			m.Salience = newSal
			touched = append(touched, m)
		}
		return true
	})
	if iterErr != nil {
		return 0, iterErr
	}
	for _, m := range touched {
		if err := store.UpdSeen(ctx, m.ID, m.LastSeenAt.UnixMilli(), m.Salience, now.UnixMilli(), m.UserID); err != nil {
			return processed, err
		}
		processed++
	}
	return processed, nil
}

// PruneConfig bounds one waypoint-pruning pass.
type PruneConfig struct {
	UserID    string
	Threshold float64 // default 0.1 when zero
}

// RunPrune deletes every waypoint below cfg.Threshold, scoped to
// cfg.UserID if set.
func RunPrune(ctx context.Context, graph hsgstore.WaypointGraphStore, cfg PruneConfig) (int, error) {
	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = 0.1
	}
	return graph.PruneWaypoints(ctx, threshold, cfg.UserID)
}

// FlushConfig parameterizes the Hebbian co-activation flush.
type FlushConfig struct {
	// Tau is the temporal factor time constant in hours (default 24).
	Tau float64
	// Eta bounds the learning rate of the bounded Hebbian update.
	Eta float64
	Now time.Time
}

// FlushCoactivations drains up to len(pairs) co-activation entries (callers
// are expected to have already capped the batch at 50, per spec.md §4.4)
// into Hebbian waypoint-weight updates: for each pair, same-tenant memories
// with an existing waypoint get
//
//	temporalFactor = exp(-|lastSeenA - lastSeenB| / tau)
//	newWeight      = min(1, w + eta*(1-w)*temporalFactor)
//
// Pairs referencing memories from different tenants, or missing memories,
// are skipped. Missing edges are not created (Hebbian flush only
// reinforces existing associative links).
func FlushCoactivations(ctx context.Context, store hsgstore.Store, pairs []model.CoactivationPair, cfg FlushConfig) error {
	if len(pairs) == 0 {
		return nil
	}
	tau := cfg.Tau
	if tau == 0 {
		tau = 24
	}
	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}

	ids := make(map[string]bool)
	for _, p := range pairs {
		ids[p.A] = true
		ids[p.B] = true
	}
	idList := make([]string, 0, len(ids))
	for id := range ids {
		idList = append(idList, id)
	}

	tenants := map[string]bool{}
	for _, p := range pairs {
		tenants[p.UserID] = true
	}
	memByUserAndID := map[string]map[string]model.Memory{}
	for userID := range tenants {
		rows, err := store.GetMems(ctx, idList, userID)
		if err != nil {
			return err
		}
		m := make(map[string]model.Memory, len(rows))
		for _, r := range rows {
			m[r.ID] = r
		}
		memByUserAndID[userID] = m
	}

	graph := store.Graph()
	var updates []model.Waypoint
	for _, p := range pairs {
		memMap := memByUserAndID[p.UserID]
		a, okA := memMap[p.A]
		b, okB := memMap[p.B]
		if !okA || !okB {
			continue
		}
		if a.UserID != b.UserID {
			continue
		}
		temporalFactor := math.Exp(-math.Abs(float64(a.LastSeenAt.Sub(b.LastSeenAt))) / (tau * float64(time.Hour)))
		for _, dir := range [][2]string{{p.A, p.B}, {p.B, p.A}} {
			w, err := graph.GetWaypoint(ctx, dir[0], dir[1], p.UserID)
			if err != nil {
				return err
			}
			if w == nil {
				continue
			}
			newW := *w
			newW.Weight = math.Min(1, w.Weight+cfg.Eta*(1-w.Weight)*temporalFactor)
			newW.UpdatedAt = now
			newW.ClampWeight()
			updates = append(updates, newW)
		}
	}
	if len(updates) == 0 {
		return nil
	}
	return graph.InsertWaypoints(ctx, updates)
}

// ReinforceMemory bumps a Memory's salience on access: s <- min(1, s+boost);
// updatedAt changes, lastSeenAt does not. The mean vector is recomputed
// from the memory's current per-sector vector records and persisted,
// matching spec.md §4.4's reinforceMemory contract.
func ReinforceMemory(ctx context.Context, store hsgstore.Store, id, userID string, boost float64, now time.Time) error {
	if now.IsZero() {
		now = time.Now()
	}
	m, err := store.GetMem(ctx, id, userID)
	if err != nil {
		return err
	}
	if m == nil {
		return nil
	}
	m.Salience = m.Salience + boost
	m.ClampSalience()
	if err := store.UpdSeen(ctx, id, m.LastSeenAt.UnixMilli(), m.Salience, now.UnixMilli(), userID); err != nil {
		return err
	}

	vectors, err := store.Vectors().GetVectorsByID(ctx, id, userID)
	if err != nil || len(vectors) == 0 {
		return err
	}
	vecs := make([][]float32, len(vectors))
	for i, v := range vectors {
		vecs[i] = v.Vector
	}
	mean := vecmath.Mean(vecs)
	return store.UpdMeanVec(ctx, id, len(mean), mean, userID)
}
