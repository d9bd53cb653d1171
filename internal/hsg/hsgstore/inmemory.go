package hsgstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/vecmath"
)

func unixToTime(unixMs int64) time.Time {
	return time.UnixMilli(unixMs)
}

// InMemoryStore is a mutex-guarded, map-backed Store, grounded on the
// teacher's pkg/memory/in_memory_store.go (a mutex+map CRUD store with a
// cosine-similarity sorted SearchMemory), generalized here to the HSG's
// memory+waypoint+multi-sector-vector shape.
type InMemoryStore struct {
	mu        sync.RWMutex
	memories  map[string]model.Memory          // key: userID + "\x1f" + id
	simhashes map[string]string                 // key: userID + "\x1f" + simhash -> memory key
	vectors   map[string]map[model.Sector]model.VectorRecord // key: memory key
	waypoints map[string]model.Waypoint         // key: userID + "\x1f" + src + "\x1f" + dst
}

// NewInMemoryStore builds an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		memories:  make(map[string]model.Memory),
		simhashes: make(map[string]string),
		vectors:   make(map[string]map[model.Sector]model.VectorRecord),
		waypoints: make(map[string]model.Waypoint),
	}
}

func memKey(userID, id string) string { return userID + "\x1f" + id }

func simhashKey(userID string, simhash uint64) string {
	return userID + "\x1f" + itoa64(simhash)
}

func waypointKey(userID, src, dst string) string {
	return userID + "\x1f" + src + "\x1f" + dst
}

func itoa64(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func (s *InMemoryStore) GetMem(_ context.Context, id, userID string) (*model.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memories[memKey(userID, id)]
	if !ok {
		return nil, nil
	}
	cp := m
	return &cp, nil
}

func (s *InMemoryStore) GetMemBySimhash(_ context.Context, simhash uint64, userID string) (*model.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.simhashes[simhashKey(userID, simhash)]
	if !ok {
		return nil, nil
	}
	m, ok := s.memories[key]
	if !ok {
		return nil, nil
	}
	cp := m
	return &cp, nil
}

func (s *InMemoryStore) GetMems(_ context.Context, ids []string, userID string) ([]model.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Memory, 0, len(ids))
	for _, id := range ids {
		if m, ok := s.memories[memKey(userID, id)]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *InMemoryStore) InsMem(_ context.Context, m model.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(m)
	return nil
}

func (s *InMemoryStore) InsMems(_ context.Context, ms []model.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range ms {
		s.insertLocked(m)
	}
	return nil
}

func (s *InMemoryStore) insertLocked(m model.Memory) {
	key := memKey(m.UserID, m.ID)
	s.memories[key] = m
	s.simhashes[simhashKey(m.UserID, m.Simhash)] = key
}

func (s *InMemoryStore) UpdMem(_ context.Context, m model.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memKey(m.UserID, m.ID)
	existing, ok := s.memories[key]
	if !ok {
		s.memories[key] = m
		return nil
	}
	existing.Content = m.Content
	existing.Primary = m.Primary
	existing.Tags = m.Tags
	existing.Metadata = m.Metadata
	existing.UpdatedAt = m.UpdatedAt
	s.memories[key] = existing
	return nil
}

func (s *InMemoryStore) UpdSeen(_ context.Context, id string, lastSeenAt int64, salience float64, updatedAt int64, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memKey(userID, id)
	m, ok := s.memories[key]
	if !ok {
		return nil
	}
	m.LastSeenAt = unixToTime(lastSeenAt)
	m.Salience = salience
	m.ClampSalience()
	m.UpdatedAt = unixToTime(updatedAt)
	s.memories[key] = m
	return nil
}

func (s *InMemoryStore) UpdMeanVec(_ context.Context, id string, dim int, meanVec []float32, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memKey(userID, id)
	m, ok := s.memories[key]
	if !ok {
		return nil
	}
	m.Dim = dim
	m.MeanVector = meanVec
	s.memories[key] = m
	return nil
}

func (s *InMemoryStore) Iterate(_ context.Context, userID string, fn func(model.Memory) bool) error {
	s.mu.RLock()
	snapshot := make([]model.Memory, 0, len(s.memories))
	for _, m := range s.memories {
		if userID != "" && m.UserID != userID {
			continue
		}
		snapshot = append(snapshot, m)
	}
	s.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].ID < snapshot[j].ID })
	for _, m := range snapshot {
		if !fn(m) {
			break
		}
	}
	return nil
}

func (s *InMemoryStore) DelMem(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memKey(userID, id)
	if m, ok := s.memories[key]; ok {
		delete(s.simhashes, simhashKey(userID, m.Simhash))
	}
	delete(s.memories, key)
	delete(s.vectors, key)
	for wk, w := range s.waypoints {
		if w.SrcID == id || w.DstID == id {
			delete(s.waypoints, wk)
		}
	}
	return nil
}

func (s *InMemoryStore) Vectors() VectorStore         { return &inMemoryVectors{s} }
func (s *InMemoryStore) Graph() WaypointGraphStore     { return &inMemoryGraph{s} }
func (s *InMemoryStore) Transaction() Transaction      { return &inMemoryTx{s} }
func (s *InMemoryStore) CreateSchema(_ context.Context) error { return nil }
func (s *InMemoryStore) Close() error                  { return nil }

// inMemoryTx runs fn while holding no extra lock: InMemoryStore's
// operations already take their own lock per call, so a "transaction" here
// is plain sequential execution of the closure. Each write is visible to
// other goroutines as soon as it is made, and writes made before fn returns
// an error are not rolled back.
type inMemoryTx struct{ s *InMemoryStore }

func (t *inMemoryTx) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type inMemoryVectors struct{ s *InMemoryStore }

func (v *inMemoryVectors) StoreVector(_ context.Context, item VectorItem) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	key := memKey(item.UserID, item.MemoryID)
	if v.s.vectors[key] == nil {
		v.s.vectors[key] = make(map[model.Sector]model.VectorRecord)
	}
	v.s.vectors[key][item.Sector] = model.VectorRecord{
		MemoryID: item.MemoryID,
		Sector:   item.Sector,
		Vector:   item.Vector,
		Dim:      item.Dim,
		UserID:   item.UserID,
		Metadata: item.Metadata,
	}
	return nil
}

func (v *inMemoryVectors) StoreVectors(ctx context.Context, items []VectorItem) error {
	for _, item := range items {
		if err := v.StoreVector(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (v *inMemoryVectors) GetVectorsByID(_ context.Context, memoryID, userID string) ([]model.VectorRecord, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	bySector, ok := v.s.vectors[memKey(userID, memoryID)]
	if !ok {
		return nil, nil
	}
	out := make([]model.VectorRecord, 0, len(bySector))
	for _, rec := range bySector {
		out = append(out, rec)
	}
	return out, nil
}

func (v *inMemoryVectors) GetVectorsByIDs(ctx context.Context, memoryIDs []string, userID string) ([]model.VectorRecord, error) {
	var out []model.VectorRecord
	for _, id := range memoryIDs {
		recs, _ := v.GetVectorsByID(ctx, id, userID)
		out = append(out, recs...)
	}
	return out, nil
}

func (v *inMemoryVectors) DeleteVectors(_ context.Context, memoryIDs []string, userID string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, id := range memoryIDs {
		delete(v.s.vectors, memKey(userID, id))
	}
	return nil
}

func (v *inMemoryVectors) SearchSimilar(_ context.Context, sector model.Sector, vec []float32, topK int, userID string, _ model.Metadata) ([]SimilarityHit, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var hits []SimilarityHit
	prefix := userID + "\x1f"
	for key, bySector := range v.s.vectors {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rec, ok := bySector[sector]
		if !ok {
			continue
		}
		hits = append(hits, SimilarityHit{MemoryID: rec.MemoryID, Score: vecmath.Cosine(vec, rec.Vector)})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

type inMemoryGraph struct{ s *InMemoryStore }

func (g *inMemoryGraph) GetWaypoint(_ context.Context, src, dst, userID string) (*model.Waypoint, error) {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()
	w, ok := g.s.waypoints[waypointKey(userID, src, dst)]
	if !ok {
		return nil, nil
	}
	cp := w
	return &cp, nil
}

func (g *inMemoryGraph) GetWaypointsBySrc(_ context.Context, src, userID string) ([]model.Waypoint, error) {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()
	var out []model.Waypoint
	for _, w := range g.s.waypoints {
		if w.UserID == userID && w.SrcID == src {
			out = append(out, w)
		}
	}
	return out, nil
}

func (g *inMemoryGraph) GetWaypointsForPairs(_ context.Context, pairs [][2]string, userID string) (map[[2]string]model.Waypoint, error) {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()
	out := make(map[[2]string]model.Waypoint, len(pairs))
	for _, p := range pairs {
		if w, ok := g.s.waypoints[waypointKey(userID, p[0], p[1])]; ok {
			out[p] = w
		}
	}
	return out, nil
}

func (g *inMemoryGraph) InsertWaypoint(_ context.Context, w model.Waypoint) error {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	g.insertLocked(w)
	return nil
}

func (g *inMemoryGraph) insertLocked(w model.Waypoint) {
	w.ClampWeight()
	g.s.waypoints[waypointKey(w.UserID, w.SrcID, w.DstID)] = w
}

func (g *inMemoryGraph) InsertWaypoints(_ context.Context, ws []model.Waypoint) error {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	for _, w := range ws {
		g.insertLocked(w)
	}
	return nil
}

func (g *inMemoryGraph) PruneWaypoints(_ context.Context, threshold float64, userID string) (int, error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	count := 0
	for key, w := range g.s.waypoints {
		if w.UserID == userID && w.Weight < threshold {
			delete(g.s.waypoints, key)
			count++
		}
	}
	return count, nil
}
