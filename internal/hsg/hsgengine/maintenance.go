// Co-activation buffering, async reinforcement-on-access, and the
// background maintenance passes (spec.md §4.4, §5).
package hsgengine

import (
	"context"
	"time"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/consolidation"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/graph"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

// coactFlushSizeThreshold and coactFlushInterval gate when the maintenance
// tick drains the co-activation buffer (spec.md §4.4); coactFlushBatchMax
// bounds how many pairs one gated drain processes.
const (
	coactFlushSizeThreshold = 50
	coactFlushInterval      = 60 * time.Second
	coactFlushBatchMax      = 50
)

// bufferCoactivations queues every pairwise combination of ids (deduped
// against what's already buffered), capping the buffer at
// cfg.CoactivationBufferMax entries (spec.md §4.3 step 9). The buffer is
// only ever drained by the maintenance tick, never from here (spec.md §5:
// "Co-activation buffer is mutated only by query path (push) and
// maintenance tick (drain)").
func (e *Engine) bufferCoactivations(userID string, ids []string) {
	if len(ids) < 2 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if len(e.coactBuffer) >= e.cfg.CoactivationBufferMax {
				return
			}
			pair := model.CoactivationPair{UserID: userID, A: ids[i], B: ids[j]}
			key := pair.Key()
			if e.coactSeen[key] {
				continue
			}
			e.coactSeen[key] = true
			e.coactBuffer = append(e.coactBuffer, pair)
		}
	}
}

// flushCoactivationsIfDue drains up to coactFlushBatchMax buffered pairs
// when the maintenance tick's gate is satisfied: the buffer has reached
// coactFlushSizeThreshold entries, or coactFlushInterval has elapsed since
// the last flush and the buffer is non-empty (spec.md §4.4). Errors are
// logged, never surfaced.
func (e *Engine) flushCoactivationsIfDue(ctx context.Context) {
	now := e.clock()
	e.mu.Lock()
	due := len(e.coactBuffer) >= coactFlushSizeThreshold ||
		(len(e.coactBuffer) > 0 && now.Sub(e.lastFlush) > coactFlushInterval)
	if !due {
		e.mu.Unlock()
		return
	}
	batch := e.coactBuffer
	if len(batch) > coactFlushBatchMax {
		batch = batch[:coactFlushBatchMax]
	}
	remaining := append([]model.CoactivationPair{}, e.coactBuffer[len(batch):]...)
	e.coactBuffer = remaining
	e.coactSeen = make(map[string]bool, len(remaining))
	for _, p := range remaining {
		e.coactSeen[p.Key()] = true
	}
	e.lastFlush = now
	e.mu.Unlock()

	if err := consolidation.FlushCoactivations(ctx, e.store, batch, consolidation.FlushConfig{
		Tau: e.cfg.Tau,
		Eta: e.cfg.Eta,
		Now: now,
	}); err != nil {
		e.logf("flushCoactivationsIfDue: %v", err)
	}
}

// flushCoactivations drains the entire buffer unconditionally, bypassing
// the maintenance tick's gate. Used only for Close's final synchronous
// flush (spec.md §5: "stop performs a final synchronous flush").
func (e *Engine) flushCoactivations(ctx context.Context) {
	e.mu.Lock()
	pairs := e.coactBuffer
	e.coactBuffer = nil
	e.coactSeen = make(map[string]bool)
	e.lastFlush = e.clock()
	e.mu.Unlock()

	if len(pairs) == 0 {
		return
	}
	if err := consolidation.FlushCoactivations(ctx, e.store, pairs, consolidation.FlushConfig{
		Tau: e.cfg.Tau,
		Eta: e.cfg.Eta,
		Now: e.clock(),
	}); err != nil {
		e.logf("flushCoactivations: %v", err)
	}
}

// onQueryHit runs the query path's access-driven side effects
// asynchronously: a small salience bump for every returned memory, and a
// reinforcement pass along whatever spreading-activation path reached it
// (spec.md §4.3 step 8, §4.4 reinforceWaypoints).
func (e *Engine) onQueryHit(userID string, ids []string, activation map[string]graph.Reached) {
	if len(ids) == 0 {
		return
	}
	go func() {
		ctx := context.Background()
		now := e.clock()
		for _, id := range ids {
			if err := consolidation.ReinforceMemory(ctx, e.store, id, userID, e.cfg.ReinforcementBoost, now); err != nil {
				e.logf("onQueryHit: reinforce memory %s: %v", id, err)
			}
			if r, ok := activation[id]; ok && len(r.Path) > 1 {
				if err := graph.ReinforceWaypoints(ctx, e.store.Graph(), r.Path, userID, e.cfg.ReinforcementBoost); err != nil {
					e.logf("onQueryHit: reinforce waypoints for %s: %v", id, err)
				}
			}
		}
	}()
}

// RunMaintenanceNow drives one full maintenance pass synchronously: decay,
// waypoint pruning and a co-activation flush. Exposed so tests running
// with cfg.IsTest (no ticker) can step maintenance deterministically, and
// so operators can trigger an out-of-band pass.
func (e *Engine) RunMaintenanceNow(ctx context.Context, userID string) error {
	if _, err := consolidation.RunDecay(ctx, e.store, consolidation.DecayConfig{UserID: userID, Now: e.clock()}); err != nil {
		return err
	}
	if _, err := consolidation.RunPrune(ctx, e.store.Graph(), consolidation.PruneConfig{
		UserID:    userID,
		Threshold: e.cfg.WaypointPruneThreshold,
	}); err != nil {
		return err
	}
	e.flushCoactivationsIfDue(ctx)
	return nil
}
