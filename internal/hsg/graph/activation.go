// Package graph implements the waypoint graph's spreading activation and
// reinforcement primitives (spec.md §4.3 step 6, §4.4). It operates purely
// over rows already fetched through hsgstore.WaypointGraphStore: Cypher
// variable-hop traversal can't express the per-edge decay/level/cycle
// bookkeeping the spec demands (SPEC_FULL.md §4), so activation always runs
// here in Go rather than inside the Neo4j backend.
package graph

import (
	"container/list"
	"context"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgstore"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

// ActivationConfig bounds a spreading-activation traversal.
type ActivationConfig struct {
	// Decay is the multiplicative per-hop falloff applied to a path's
	// weight (weight * edgeWeight * Decay).
	Decay float64
	// Floor stops traversal once a path's weight drops below it.
	Floor float64
	// MaxLevel caps traversal depth (hop count from a seed).
	MaxLevel int
	// MaxIterations caps the total number of node visits across the
	// whole traversal, regardless of how many seeds were given.
	MaxIterations int
}

// Reached is one node's activation result: its best (max-weight) path
// weight and the path of node ids that produced it, starting at whichever
// seed it came from.
type Reached struct {
	Weight float64
	Path   []string
}

type queueEntry struct {
	id     string
	level  int
	weight float64
	path   []string
}

// Activate runs BFS-like spreading activation from every id in seeds
// simultaneously. For each reached node the max-weight path across all
// seeds is kept. Traversal is cycle-free per path (a node already present
// in path is never re-enqueued along that path) and terminates within
// cfg.MaxIterations node visits.
func Activate(ctx context.Context, g hsgstore.WaypointGraphStore, seeds []string, userID string, cfg ActivationConfig) (map[string]Reached, error) {
	out := make(map[string]Reached, len(seeds))
	if len(seeds) == 0 {
		return out, nil
	}

	queue := list.New()
	seedSet := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		if seedSet[s] {
			continue
		}
		seedSet[s] = true
		queue.PushBack(queueEntry{id: s, level: 0, weight: 1.0, path: []string{s}})
	}

	iterations := 0
	for queue.Len() > 0 && iterations < cfg.MaxIterations {
		front := queue.Front()
		queue.Remove(front)
		cur := front.Value.(queueEntry)
		iterations++

		if existing, ok := out[cur.id]; !ok || cur.weight > existing.Weight {
			out[cur.id] = Reached{Weight: cur.weight, Path: cur.path}
		}

		if cur.level >= cfg.MaxLevel {
			continue
		}

		edges, err := g.GetWaypointsBySrc(ctx, cur.id, userID)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if inPath(cur.path, e.DstID) {
				continue
			}
			nextWeight := cur.weight * e.Weight * cfg.Decay
			if nextWeight < cfg.Floor {
				continue
			}
			nextPath := append(append([]string{}, cur.path...), e.DstID)
			queue.PushBack(queueEntry{id: e.DstID, level: cur.level + 1, weight: nextWeight, path: nextPath})
		}
	}
	return out, nil
}

func inPath(path []string, id string) bool {
	for _, p := range path {
		if p == id {
			return true
		}
	}
	return false
}

// ReinforceWaypoints multiplicatively boosts every consecutive edge along
// path: w <- min(1, w*(1+boost)). Missing edges are not created (spec.md
// §4.4). Callers are expected to run this inside a store transaction for
// row-level locking, per spec.md's "all in one transaction" requirement.
func ReinforceWaypoints(ctx context.Context, g hsgstore.WaypointGraphStore, path []string, userID string, boost float64) error {
	if len(path) < 2 || boost <= 0 {
		return nil
	}
	var toUpdate []model.Waypoint
	for i := 0; i+1 < len(path); i++ {
		src, dst := path[i], path[i+1]
		w, err := g.GetWaypoint(ctx, src, dst, userID)
		if err != nil {
			return err
		}
		if w == nil {
			continue
		}
		w.Weight = w.Weight * (1 + boost)
		w.ClampWeight()
		toUpdate = append(toUpdate, *w)
	}
	if len(toUpdate) == 0 {
		return nil
	}
	return g.InsertWaypoints(ctx, toUpdate)
}
