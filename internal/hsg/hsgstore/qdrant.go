// Qdrant-backed VectorStore (spec.md §6): one collection per sector,
// payload carrying the owning memory id and tenant. Adapted from the
// teacher's src/memory/store/qdrant_store.go REST client — same
// do/createCollection/envelope shape, narrowed to the VectorStore
// contract (StoreVector/SearchSimilar/DeleteVectors) and switched from
// int64 auto-generated point ids to deterministic UUIDv5 point ids
// derived from (memoryID, sector), since the HSG addresses vectors by
// that pair rather than by a store-assigned integer.
package hsgstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

var qdrantPointNamespace = uuid.MustParse("6f6e6570-656e-4d65-6d6f-727948534700")

type qdrantStatus struct {
	State string
	Error string
}

func (s *qdrantStatus) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		s.State = strings.ToLower(v)
		return nil
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	if obj.Error != "" {
		s.State = "error"
		s.Error = obj.Error
	}
	return nil
}

type qdrantEnvelope[T any] struct {
	Status qdrantStatus `json:"status"`
	Result T            `json:"result"`
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
	Vector  []float32      `json:"vector"`
}

// QdrantStore implements VectorStore against a Qdrant HTTP API, one
// collection per declared sector.
type QdrantStore struct {
	baseURL          string
	apiKey           string
	collectionPrefix string
	client           *http.Client
}

// NewQdrantStore builds a QdrantStore. collectionPrefix names the base
// collection; the actual per-sector collection is
// "<collectionPrefix>_<sector>".
func NewQdrantStore(baseURL, collectionPrefix, apiKey string) *QdrantStore {
	if baseURL == "" {
		baseURL = "http://localhost:6333"
	}
	return &QdrantStore{
		baseURL:          strings.TrimRight(baseURL, "/"),
		apiKey:           apiKey,
		collectionPrefix: collectionPrefix,
		client:           &http.Client{Timeout: 15 * time.Second},
	}
}

func (qs *QdrantStore) collectionFor(sector model.Sector) string {
	return qs.collectionPrefix + "_" + string(sector)
}

// EnsureCollection creates the per-sector collection if absent, idempotent
// on "already exists" errors.
func (qs *QdrantStore) EnsureCollection(ctx context.Context, sector model.Sector, dim int) error {
	body := map[string]any{
		"vectors": map[string]any{"size": dim, "distance": "Cosine"},
	}
	path := fmt.Sprintf("/collections/%s", url.PathEscape(qs.collectionFor(sector)))
	var env qdrantEnvelope[json.RawMessage]
	err := qs.do(ctx, http.MethodPut, path, body, &env)
	if err == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return nil
	}
	return err
}

func pointID(memoryID string, sector model.Sector) string {
	return uuid.NewSHA1(qdrantPointNamespace, []byte(memoryID+":"+string(sector))).String()
}

// StoreVector upserts one point.
func (qs *QdrantStore) StoreVector(ctx context.Context, item VectorItem) error {
	payload := map[string]any{
		"memory_id": item.MemoryID,
		"user_id":   item.UserID,
		"sector":    string(item.Sector),
		"dim":       item.Dim,
		"metadata":  model.EncodeMetadata(item.Metadata),
	}
	req := map[string]any{
		"points": []map[string]any{{
			"id":      pointID(item.MemoryID, item.Sector),
			"vector":  item.Vector,
			"payload": payload,
		}},
	}
	path := fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(qs.collectionFor(item.Sector)))
	var env qdrantEnvelope[json.RawMessage]
	return qs.do(ctx, http.MethodPut, path, req, &env)
}

// StoreVectors upserts each item; items may span multiple sectors/collections.
func (qs *QdrantStore) StoreVectors(ctx context.Context, items []VectorItem) error {
	bySector := make(map[model.Sector][]VectorItem)
	for _, item := range items {
		bySector[item.Sector] = append(bySector[item.Sector], item)
	}
	for sector, group := range bySector {
		points := make([]map[string]any, 0, len(group))
		for _, item := range group {
			points = append(points, map[string]any{
				"id":     pointID(item.MemoryID, item.Sector),
				"vector": item.Vector,
				"payload": map[string]any{
					"memory_id": item.MemoryID,
					"user_id":   item.UserID,
					"sector":    string(item.Sector),
					"dim":       item.Dim,
					"metadata":  model.EncodeMetadata(item.Metadata),
				},
			})
		}
		path := fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(qs.collectionFor(sector)))
		var env qdrantEnvelope[json.RawMessage]
		if err := qs.do(ctx, http.MethodPut, path, map[string]any{"points": points}, &env); err != nil {
			return err
		}
	}
	return nil
}

// GetVectorsByID fetches memoryID's points via GetVectorsByIDs. Since points
// are scattered one-per-collection, this issues one filtered scroll per
// sector in model.DefaultSectorOrder.
func (qs *QdrantStore) GetVectorsByID(ctx context.Context, memoryID, userID string) ([]model.VectorRecord, error) {
	return qs.GetVectorsByIDs(ctx, []string{memoryID}, userID)
}

// GetVectorsByIDs retrieves points for the given memory ids across the
// sectors in model.DefaultSectorOrder. Since Qdrant collections are
// per-sector, this issues one filtered scroll per sector; collections of
// sectors outside that list are not searched, and a missing collection is
// skipped.
func (qs *QdrantStore) GetVectorsByIDs(ctx context.Context, memoryIDs []string, userID string) ([]model.VectorRecord, error) {
	if len(memoryIDs) == 0 {
		return nil, nil
	}
	var out []model.VectorRecord
	for _, sector := range model.DefaultSectorOrder {
		req := map[string]any{
			"filter": map[string]any{
				"must": []map[string]any{
					{"key": "memory_id", "match": map[string]any{"any": memoryIDs}},
					{"key": "user_id", "match": map[string]any{"value": userID}},
				},
			},
			"limit":        len(memoryIDs),
			"with_payload": true,
			"with_vector":  true,
		}
		path := fmt.Sprintf("/collections/%s/points/scroll", url.PathEscape(qs.collectionFor(sector)))
		var env qdrantEnvelope[struct {
			Points []qdrantPoint `json:"points"`
		}]
		if err := qs.do(ctx, http.MethodPost, path, req, &env); err != nil {
			if isCollectionMissing(err) {
				continue
			}
			return nil, err
		}
		for _, p := range env.Result.Points {
			out = append(out, model.VectorRecord{
				MemoryID: asString(p.Payload["memory_id"]),
				Sector:   sector,
				Vector:   p.Vector,
				Dim:      int(asFloat(p.Payload["dim"])),
				UserID:   asString(p.Payload["user_id"]),
				Metadata: model.DecodeMetadata(asString(p.Payload["metadata"])),
			})
		}
	}
	return out, nil
}

// DeleteVectors removes memoryIDs' points from the collection of every
// sector in model.DefaultSectorOrder.
func (qs *QdrantStore) DeleteVectors(ctx context.Context, memoryIDs []string, userID string) error {
	if len(memoryIDs) == 0 {
		return nil
	}
	for _, sector := range model.DefaultSectorOrder {
		ids := make([]string, len(memoryIDs))
		for i, id := range memoryIDs {
			ids[i] = pointID(id, sector)
		}
		req := map[string]any{"points": ids}
		path := fmt.Sprintf("/collections/%s/points/delete?wait=true", url.PathEscape(qs.collectionFor(sector)))
		var env qdrantEnvelope[json.RawMessage]
		if err := qs.do(ctx, http.MethodPost, path, req, &env); err != nil && !isCollectionMissing(err) {
			return err
		}
	}
	return nil
}

// SearchSimilar runs a top-K cosine search within one sector's collection,
// filtered to userID.
func (qs *QdrantStore) SearchSimilar(ctx context.Context, sector model.Sector, vec []float32, topK int, userID string, _ model.Metadata) ([]SimilarityHit, error) {
	if topK <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector": vec,
		"limit":  topK,
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "user_id", "match": map[string]any{"value": userID}},
			},
		},
		"with_payload": true,
	}
	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(qs.collectionFor(sector)))
	var env qdrantEnvelope[[]qdrantPoint]
	if err := qs.do(ctx, http.MethodPost, path, req, &env); err != nil {
		if isCollectionMissing(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]SimilarityHit, 0, len(env.Result))
	for _, p := range env.Result {
		out = append(out, SimilarityHit{MemoryID: asString(p.Payload["memory_id"]), Score: p.Score})
	}
	return out, nil
}

func (qs *QdrantStore) do(ctx context.Context, method, path string, body any, out any) error {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, qs.baseURL+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if qs.apiKey != "" {
		req.Header.Set("api-key", qs.apiKey)
	}
	resp, err := qs.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("qdrant %s %s: http %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out != nil && len(payload) > 0 {
		return json.Unmarshal(payload, out)
	}
	return nil
}

func isCollectionMissing(err error) bool {
	if err == nil {
		return false
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "doesn't exist") || strings.Contains(low, "not found")
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
