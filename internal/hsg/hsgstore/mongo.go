// MongoDB-backed Store (spec.md §6): memories, waypoints and per-sector
// vectors each live in their own collection. Adapted from the teacher's
// src/memory/store/mongodb_store.go (mongo.Connect/Ping bootstrap,
// bson.M document shape, Find-based Iterate, index-based CreateSchema),
// generalized from a single flat session-scoped collection with an
// auto-increment counter to the HSG's three-collection, string-ID,
// per-tenant shape. Vector search runs as an in-process brute-force
// cosine scan over a sector+tenant filtered cursor rather than Atlas's
// $vectorSearch, since that aggregation stage is cluster-tier-specific
// and the HSG needs to run against a plain MongoDB replica set too.
package hsgstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/vecmath"
)

const mongoCloseTimeout = 5 * time.Second

// MongoStore implements Store against MongoDB.
type MongoStore struct {
	client    *mongo.Client
	memories  *mongo.Collection
	waypoints *mongo.Collection
	vectors   *mongo.Collection
}

// NewMongoStore connects to uri and opens database/collection-prefixed
// collections for memories, waypoints and vectors.
func NewMongoStore(ctx context.Context, uri, database, collectionPrefix string) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("hsgstore: mongo uri is required")
	}
	if database == "" {
		return nil, fmt.Errorf("hsgstore: mongo database name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	db := client.Database(database)
	if collectionPrefix == "" {
		collectionPrefix = "hsg"
	}
	return &MongoStore{
		client:    client,
		memories:  db.Collection(collectionPrefix + "_memories"),
		waypoints: db.Collection(collectionPrefix + "_waypoints"),
		vectors:   db.Collection(collectionPrefix + "_vectors"),
	}, nil
}

type mongoMemoryDoc struct {
	ID               string    `bson:"_id"`
	UserID           string    `bson:"user_id"`
	Content          []byte    `bson:"content"`
	Primary          string    `bson:"primary"`
	Tags             []string  `bson:"tags"`
	Metadata         string    `bson:"metadata"`
	Segment          int       `bson:"segment"`
	Simhash          uint64    `bson:"simhash"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
	LastSeenAt       time.Time `bson:"last_seen_at"`
	Salience         float64   `bson:"salience"`
	DecayLambda      float64   `bson:"decay_lambda"`
	Version          int       `bson:"version"`
	Dim              int       `bson:"dim"`
	MeanVector       []float64 `bson:"mean_vector,omitempty"`
	CompressedVec    []float64 `bson:"compressed_vec,omitempty"`
	FeedbackScore    int       `bson:"feedback_score"`
	GeneratedSummary string    `bson:"generated_summary,omitempty"`
}

func memToDoc(m model.Memory) mongoMemoryDoc {
	return mongoMemoryDoc{
		ID: m.ID, UserID: m.UserID, Content: m.Content, Primary: string(m.Primary),
		Tags: m.Tags, Metadata: model.EncodeMetadata(m.Metadata), Segment: m.Segment,
		Simhash: m.Simhash, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt, LastSeenAt: m.LastSeenAt,
		Salience: m.Salience, DecayLambda: m.DecayLambda, Version: m.Version, Dim: m.Dim,
		MeanVector: float64Vec(m.MeanVector), CompressedVec: float64Vec(m.CompressedVec),
		FeedbackScore: m.FeedbackScore, GeneratedSummary: m.GeneratedSummary,
	}
}

func docToMem(d mongoMemoryDoc) model.Memory {
	return model.Memory{
		ID: d.ID, UserID: d.UserID, Content: d.Content, Primary: model.Sector(d.Primary),
		Tags: d.Tags, Metadata: model.DecodeMetadata(d.Metadata), Segment: d.Segment,
		Simhash: d.Simhash, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt, LastSeenAt: d.LastSeenAt,
		Salience: d.Salience, DecayLambda: d.DecayLambda, Version: d.Version, Dim: d.Dim,
		MeanVector: float32Vec(d.MeanVector), CompressedVec: float32Vec(d.CompressedVec),
		FeedbackScore: d.FeedbackScore, GeneratedSummary: d.GeneratedSummary,
	}
}

func float64Vec(v []float32) []float64 {
	if len(v) == 0 {
		return nil
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func float32Vec(v []float64) []float32 {
	if len(v) == 0 {
		return nil
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func (s *MongoStore) GetMem(ctx context.Context, id, userID string) (*model.Memory, error) {
	var doc mongoMemoryDoc
	err := s.memories.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	mem := docToMem(doc)
	return &mem, nil
}

func (s *MongoStore) GetMemBySimhash(ctx context.Context, simhash uint64, userID string) (*model.Memory, error) {
	var doc mongoMemoryDoc
	err := s.memories.FindOne(ctx, bson.M{"simhash": simhash, "user_id": userID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	mem := docToMem(doc)
	return &mem, nil
}

func (s *MongoStore) GetMems(ctx context.Context, ids []string, userID string) ([]model.Memory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.memories.Find(ctx, bson.M{"_id": bson.M{"$in": ids}, "user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []model.Memory
	for cur.Next(ctx) {
		var doc mongoMemoryDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, docToMem(doc))
	}
	return out, cur.Err()
}

func (s *MongoStore) Iterate(ctx context.Context, userID string, fn func(model.Memory) bool) error {
	filter := bson.M{}
	if userID != "" {
		filter["user_id"] = userID
	}
	cur, err := s.memories.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var doc mongoMemoryDoc
		if err := cur.Decode(&doc); err != nil {
			return err
		}
		if !fn(docToMem(doc)) {
			break
		}
	}
	return cur.Err()
}

func (s *MongoStore) InsMem(ctx context.Context, m model.Memory) error {
	_, err := s.memories.InsertOne(ctx, memToDoc(m))
	return err
}

func (s *MongoStore) InsMems(ctx context.Context, ms []model.Memory) error {
	if len(ms) == 0 {
		return nil
	}
	docs := make([]any, len(ms))
	for i, m := range ms {
		docs[i] = memToDoc(m)
	}
	_, err := s.memories.InsertMany(ctx, docs)
	return err
}

func (s *MongoStore) UpdMem(ctx context.Context, m model.Memory) error {
	_, err := s.memories.ReplaceOne(ctx, bson.M{"_id": m.ID, "user_id": m.UserID}, memToDoc(m))
	return err
}

func (s *MongoStore) UpdSeen(ctx context.Context, id string, lastSeenAt int64, salience float64, updatedAt int64, userID string) error {
	_, err := s.memories.UpdateOne(ctx, bson.M{"_id": id, "user_id": userID}, bson.M{"$set": bson.M{
		"last_seen_at": time.UnixMilli(lastSeenAt).UTC(),
		"salience":     salience,
		"updated_at":   time.UnixMilli(updatedAt).UTC(),
	}})
	return err
}

func (s *MongoStore) UpdMeanVec(ctx context.Context, id string, dim int, meanVec []float32, userID string) error {
	_, err := s.memories.UpdateOne(ctx, bson.M{"_id": id, "user_id": userID}, bson.M{"$set": bson.M{
		"dim":         dim,
		"mean_vector": float64Vec(meanVec),
	}})
	return err
}

func (s *MongoStore) DelMem(ctx context.Context, id, userID string) error {
	_, err := s.memories.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return err
	}
	_, err = s.vectors.DeleteMany(ctx, bson.M{"memory_id": id, "user_id": userID})
	return err
}

func (s *MongoStore) Vectors() VectorStore      { return &mongoVectorStore{s} }
func (s *MongoStore) Graph() WaypointGraphStore { return &mongoGraphStore{s} }
func (s *MongoStore) Transaction() Transaction  { return &mongoTransaction{s} }

// CreateSchema provisions tenant/lookup indexes across all three
// collections; Mongo has no DDL step beyond that.
func (s *MongoStore) CreateSchema(ctx context.Context) error {
	_, err := s.memories.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "simhash", Value: 1}}, Options: options.Index().SetName("user_simhash")},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}, Options: options.Index().SetName("user_created_at")},
	})
	if err != nil {
		return err
	}
	_, err = s.vectors.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "sector", Value: 1}, {Key: "memory_id", Value: 1}},
		Options: options.Index().SetName("user_sector_memory"),
	})
	if err != nil {
		return err
	}
	_, err = s.waypoints.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "src_id", Value: 1}},
		Options: options.Index().SetName("user_src"),
	})
	return err
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoCloseTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

type mongoVectorDoc struct {
	MemoryID string    `bson:"memory_id"`
	Sector   string    `bson:"sector"`
	UserID   string    `bson:"user_id"`
	Dim      int       `bson:"dim"`
	Vector   []float64 `bson:"vector"`
	Metadata string    `bson:"metadata"`
}

type mongoVectorStore struct{ s *MongoStore }

func (v *mongoVectorStore) StoreVector(ctx context.Context, item VectorItem) error {
	doc := mongoVectorDoc{
		MemoryID: item.MemoryID, Sector: string(item.Sector), UserID: item.UserID,
		Dim: item.Dim, Vector: float64Vec(item.Vector), Metadata: model.EncodeMetadata(item.Metadata),
	}
	_, err := v.s.vectors.ReplaceOne(ctx,
		bson.M{"memory_id": item.MemoryID, "sector": string(item.Sector), "user_id": item.UserID},
		doc, options.Replace().SetUpsert(true))
	return err
}

func (v *mongoVectorStore) StoreVectors(ctx context.Context, items []VectorItem) error {
	for _, item := range items {
		if err := v.StoreVector(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (v *mongoVectorStore) GetVectorsByID(ctx context.Context, memoryID, userID string) ([]model.VectorRecord, error) {
	return v.GetVectorsByIDs(ctx, []string{memoryID}, userID)
}

func (v *mongoVectorStore) GetVectorsByIDs(ctx context.Context, memoryIDs []string, userID string) ([]model.VectorRecord, error) {
	if len(memoryIDs) == 0 {
		return nil, nil
	}
	cur, err := v.s.vectors.Find(ctx, bson.M{"memory_id": bson.M{"$in": memoryIDs}, "user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []model.VectorRecord
	for cur.Next(ctx) {
		var doc mongoVectorDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, model.VectorRecord{
			MemoryID: doc.MemoryID, Sector: model.Sector(doc.Sector), Vector: float32Vec(doc.Vector),
			Dim: doc.Dim, UserID: doc.UserID, Metadata: model.DecodeMetadata(doc.Metadata),
		})
	}
	return out, cur.Err()
}

func (v *mongoVectorStore) DeleteVectors(ctx context.Context, memoryIDs []string, userID string) error {
	if len(memoryIDs) == 0 {
		return nil
	}
	_, err := v.s.vectors.DeleteMany(ctx, bson.M{"memory_id": bson.M{"$in": memoryIDs}, "user_id": userID})
	return err
}

// SearchSimilar scans every vector for (sector, userID) and ranks by
// cosine similarity in process. Acceptable at the per-tenant scale the
// HSG targets; a deployment needing Atlas-scale ANN search should use
// QdrantStore as the VectorStore override via CompositeStore instead.
func (v *mongoVectorStore) SearchSimilar(ctx context.Context, sector model.Sector, vec []float32, topK int, userID string, _ model.Metadata) ([]SimilarityHit, error) {
	if topK <= 0 {
		return nil, nil
	}
	cur, err := v.s.vectors.Find(ctx, bson.M{"sector": string(sector), "user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var hits []SimilarityHit
	for cur.Next(ctx) {
		var doc mongoVectorDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		hits = append(hits, SimilarityHit{MemoryID: doc.MemoryID, Score: vecmath.Cosine(vec, float32Vec(doc.Vector))})
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].Score > hits[j-1].Score; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

type mongoWaypointDoc struct {
	SrcID     string    `bson:"src_id"`
	DstID     string    `bson:"dst_id"`
	UserID    string    `bson:"user_id"`
	Weight    float64   `bson:"weight"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type mongoGraphStore struct{ s *MongoStore }

func (g *mongoGraphStore) GetWaypoint(ctx context.Context, src, dst, userID string) (*model.Waypoint, error) {
	var doc mongoWaypointDoc
	err := g.s.waypoints.FindOne(ctx, bson.M{"src_id": src, "dst_id": dst, "user_id": userID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	w := model.Waypoint{SrcID: doc.SrcID, DstID: doc.DstID, UserID: doc.UserID, Weight: doc.Weight, CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt}
	return &w, nil
}

func (g *mongoGraphStore) GetWaypointsBySrc(ctx context.Context, src, userID string) ([]model.Waypoint, error) {
	cur, err := g.s.waypoints.Find(ctx, bson.M{"src_id": src, "user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []model.Waypoint
	for cur.Next(ctx) {
		var doc mongoWaypointDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, model.Waypoint{SrcID: doc.SrcID, DstID: doc.DstID, UserID: doc.UserID, Weight: doc.Weight, CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt})
	}
	return out, cur.Err()
}

func (g *mongoGraphStore) GetWaypointsForPairs(ctx context.Context, pairs [][2]string, userID string) (map[[2]string]model.Waypoint, error) {
	out := make(map[[2]string]model.Waypoint, len(pairs))
	for _, pair := range pairs {
		w, err := g.GetWaypoint(ctx, pair[0], pair[1], userID)
		if err != nil {
			return nil, err
		}
		if w != nil {
			out[pair] = *w
		}
	}
	return out, nil
}

func (g *mongoGraphStore) InsertWaypoint(ctx context.Context, w model.Waypoint) error {
	doc := mongoWaypointDoc{SrcID: w.SrcID, DstID: w.DstID, UserID: w.UserID, Weight: w.Weight, CreatedAt: w.CreatedAt, UpdatedAt: w.UpdatedAt}
	_, err := g.s.waypoints.ReplaceOne(ctx,
		bson.M{"src_id": w.SrcID, "dst_id": w.DstID, "user_id": w.UserID},
		doc, options.Replace().SetUpsert(true))
	return err
}

func (g *mongoGraphStore) InsertWaypoints(ctx context.Context, ws []model.Waypoint) error {
	for _, w := range ws {
		if err := g.InsertWaypoint(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

func (g *mongoGraphStore) PruneWaypoints(ctx context.Context, threshold float64, userID string) (int, error) {
	filter := bson.M{"weight": bson.M{"$lt": threshold}}
	if userID != "" {
		filter["user_id"] = userID
	}
	res, err := g.s.waypoints.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

// mongoTransaction runs fn inside a MongoDB client session transaction.
// Requires the target deployment to be a replica set or sharded
// cluster; a standalone mongod has no transaction support, matching the
// teacher's own assumption that multi-document guarantees come from the
// deployment topology rather than the driver.
type mongoTransaction struct{ s *MongoStore }

func (t *mongoTransaction) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := t.s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}
