package hsgstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

// PostgresStore implements Store on Postgres + pgvector, generalized from
// the teacher's pkg/memory/postgres_store.go (a pgxpool-backed VectorStore
// with a single memory_bank table) into the HSG's three-table shape
// (memories, waypoints, vectors) plus a pgx-transaction-backed Transaction.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects to Postgres using connStr.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("hsgstore: connect to postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

const defaultHSGSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS hsg_memories (
    id TEXT NOT NULL,
    user_id TEXT NOT NULL DEFAULT '',
    content BYTEA NOT NULL,
    primary_sector TEXT NOT NULL,
    tags TEXT[],
    metadata JSONB,
    segment INTEGER DEFAULT 0,
    simhash BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    salience DOUBLE PRECISION NOT NULL DEFAULT 0.5,
    decay_lambda DOUBLE PRECISION NOT NULL DEFAULT 0.02,
    version INTEGER NOT NULL DEFAULT 1,
    dim INTEGER DEFAULT 0,
    mean_vector vector(768),
    PRIMARY KEY (user_id, id)
);

CREATE INDEX IF NOT EXISTS hsg_memories_simhash_idx ON hsg_memories (user_id, simhash);

CREATE TABLE IF NOT EXISTS hsg_waypoints (
    user_id TEXT NOT NULL DEFAULT '',
    src_id TEXT NOT NULL,
    dst_id TEXT NOT NULL,
    weight DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, src_id, dst_id)
);

CREATE TABLE IF NOT EXISTS hsg_vectors (
    user_id TEXT NOT NULL DEFAULT '',
    memory_id TEXT NOT NULL,
    sector TEXT NOT NULL,
    vector vector(768),
    dim INTEGER NOT NULL DEFAULT 0,
    metadata JSONB,
    PRIMARY KEY (user_id, memory_id, sector)
);

CREATE INDEX IF NOT EXISTS hsg_vectors_sector_idx ON hsg_vectors USING ivfflat (vector vector_cosine_ops) WITH (lists = 100);
`

func (p *PostgresStore) CreateSchema(ctx context.Context) error {
	_, err := p.db.Exec(ctx, defaultHSGSchema)
	if err != nil {
		return fmt.Errorf("hsgstore: create schema: %w", err)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	p.db.Close()
	return nil
}

func (p *PostgresStore) queryExecer(ctx context.Context) pgxQueryExecer {
	if tx, ok := ctx.Value(pgTxKey{}).(pgx.Tx); ok {
		return tx
	}
	return p.db
}

// pgxQueryExecer is the subset of pgxpool.Pool/pgx.Tx this package needs,
// letting Transaction.Run swap in a live tx for the duration of fn.
type pgxQueryExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgTxKey struct{}

func (p *PostgresStore) GetMem(ctx context.Context, id, userID string) (*model.Memory, error) {
	row := p.queryExecer(ctx).QueryRow(ctx, `
		SELECT id, user_id, content, primary_sector, tags, metadata, segment, simhash,
		       created_at, updated_at, last_seen_at, salience, decay_lambda, version, dim
		FROM hsg_memories WHERE user_id = $1 AND id = $2
	`, userID, id)
	return scanMemory(row)
}

func (p *PostgresStore) GetMemBySimhash(ctx context.Context, simhash uint64, userID string) (*model.Memory, error) {
	row := p.queryExecer(ctx).QueryRow(ctx, `
		SELECT id, user_id, content, primary_sector, tags, metadata, segment, simhash,
		       created_at, updated_at, last_seen_at, salience, decay_lambda, version, dim
		FROM hsg_memories WHERE user_id = $1 AND simhash = $2 LIMIT 1
	`, userID, int64(simhash))
	return scanMemory(row)
}

func scanMemory(row pgx.Row) (*model.Memory, error) {
	var m model.Memory
	var simhash int64
	var tags []string
	var metaJSON string
	err := row.Scan(&m.ID, &m.UserID, &m.Content, &m.Primary, &tags, &metaJSON, &m.Segment, &simhash,
		&m.CreatedAt, &m.UpdatedAt, &m.LastSeenAt, &m.Salience, &m.DecayLambda, &m.Version, &m.Dim)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	m.Tags = tags
	m.Simhash = uint64(simhash)
	m.Metadata = model.DecodeMetadata(metaJSON)
	return &m, nil
}

func (p *PostgresStore) GetMems(ctx context.Context, ids []string, userID string) ([]model.Memory, error) {
	rows, err := p.queryExecer(ctx).Query(ctx, `
		SELECT id, user_id, content, primary_sector, tags, metadata, segment, simhash,
		       created_at, updated_at, last_seen_at, salience, decay_lambda, version, dim
		FROM hsg_memories WHERE user_id = $1 AND id = ANY($2)
	`, userID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		if m != nil {
			out = append(out, *m)
		}
	}
	return out, rows.Err()
}

func (p *PostgresStore) InsMem(ctx context.Context, m model.Memory) error {
	metaJSON := model.EncodeMetadata(m.Metadata)
	_, err := p.queryExecer(ctx).Exec(ctx, `
		INSERT INTO hsg_memories (id, user_id, content, primary_sector, tags, metadata, segment, simhash,
		                          created_at, updated_at, last_seen_at, salience, decay_lambda, version, dim)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (user_id, id) DO UPDATE SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at
	`, m.ID, m.UserID, m.Content, string(m.Primary), m.Tags, metaJSON, m.Segment, int64(m.Simhash),
		m.CreatedAt, m.UpdatedAt, m.LastSeenAt, m.Salience, m.DecayLambda, m.Version, m.Dim)
	return err
}

func (p *PostgresStore) InsMems(ctx context.Context, ms []model.Memory) error {
	for _, m := range ms {
		if err := p.InsMem(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgresStore) UpdMem(ctx context.Context, m model.Memory) error {
	metaJSON := model.EncodeMetadata(m.Metadata)
	_, err := p.queryExecer(ctx).Exec(ctx, `
		UPDATE hsg_memories SET content = $1, primary_sector = $2, tags = $3, metadata = $4, updated_at = $5
		WHERE user_id = $6 AND id = $7
	`, m.Content, string(m.Primary), m.Tags, metaJSON, m.UpdatedAt, m.UserID, m.ID)
	return err
}

func (p *PostgresStore) UpdSeen(ctx context.Context, id string, lastSeenAt int64, salience float64, updatedAt int64, userID string) error {
	_, err := p.queryExecer(ctx).Exec(ctx, `
		UPDATE hsg_memories SET last_seen_at = $1, salience = $2, updated_at = $3
		WHERE user_id = $4 AND id = $5
	`, time.UnixMilli(lastSeenAt), salience, time.UnixMilli(updatedAt), userID, id)
	return err
}

func (p *PostgresStore) UpdMeanVec(ctx context.Context, id string, dim int, meanVec []float32, userID string) error {
	_, err := p.queryExecer(ctx).Exec(ctx, `
		UPDATE hsg_memories SET dim = $1, mean_vector = $2 WHERE user_id = $3 AND id = $4
	`, dim, vectorLiteral(meanVec), userID, id)
	return err
}

func (p *PostgresStore) Iterate(ctx context.Context, userID string, fn func(model.Memory) bool) error {
	var rows pgx.Rows
	var err error
	if userID != "" {
		rows, err = p.queryExecer(ctx).Query(ctx, `
			SELECT id, user_id, content, primary_sector, tags, metadata, segment, simhash,
			       created_at, updated_at, last_seen_at, salience, decay_lambda, version, dim
			FROM hsg_memories WHERE user_id = $1 ORDER BY id
		`, userID)
	} else {
		rows, err = p.queryExecer(ctx).Query(ctx, `
			SELECT id, user_id, content, primary_sector, tags, metadata, segment, simhash,
			       created_at, updated_at, last_seen_at, salience, decay_lambda, version, dim
			FROM hsg_memories ORDER BY user_id, id
		`)
	}
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return err
		}
		if m == nil {
			continue
		}
		if !fn(*m) {
			break
		}
	}
	return rows.Err()
}

func (p *PostgresStore) DelMem(ctx context.Context, id, userID string) error {
	ex := p.queryExecer(ctx)
	if _, err := ex.Exec(ctx, `DELETE FROM hsg_vectors WHERE user_id = $1 AND memory_id = $2`, userID, id); err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, `DELETE FROM hsg_waypoints WHERE user_id = $1 AND (src_id = $2 OR dst_id = $2)`, userID, id); err != nil {
		return err
	}
	_, err := ex.Exec(ctx, `DELETE FROM hsg_memories WHERE user_id = $1 AND id = $2`, userID, id)
	return err
}

func (p *PostgresStore) Vectors() VectorStore     { return &pgVectorStore{p} }
func (p *PostgresStore) Graph() WaypointGraphStore { return &pgGraphStore{p} }
func (p *PostgresStore) Transaction() Transaction  { return &pgTransaction{p} }

type pgTransaction struct{ p *PostgresStore }

func (t *pgTransaction) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := t.p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("hsgstore: begin tx: %w", err)
	}
	txCtx := context.WithValue(ctx, pgTxKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type pgVectorStore struct{ p *PostgresStore }

func (v *pgVectorStore) StoreVector(ctx context.Context, item VectorItem) error {
	metaJSON := model.EncodeMetadata(item.Metadata)
	_, err := v.p.queryExecer(ctx).Exec(ctx, `
		INSERT INTO hsg_vectors (user_id, memory_id, sector, vector, dim, metadata)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (user_id, memory_id, sector) DO UPDATE SET vector = EXCLUDED.vector, dim = EXCLUDED.dim
	`, item.UserID, item.MemoryID, string(item.Sector), vectorLiteral(item.Vector), item.Dim, metaJSON)
	return err
}

func (v *pgVectorStore) StoreVectors(ctx context.Context, items []VectorItem) error {
	for _, item := range items {
		if err := v.StoreVector(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (v *pgVectorStore) GetVectorsByID(ctx context.Context, memoryID, userID string) ([]model.VectorRecord, error) {
	return v.GetVectorsByIDs(ctx, []string{memoryID}, userID)
}

func (v *pgVectorStore) GetVectorsByIDs(ctx context.Context, memoryIDs []string, userID string) ([]model.VectorRecord, error) {
	rows, err := v.p.queryExecer(ctx).Query(ctx, `
		SELECT memory_id, sector, vector::text, dim, metadata FROM hsg_vectors
		WHERE user_id = $1 AND memory_id = ANY($2)
	`, userID, memoryIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.VectorRecord
	for rows.Next() {
		var rec model.VectorRecord
		var vecText string
		var sector string
		var metaJSON string
		if err := rows.Scan(&rec.MemoryID, &sector, &vecText, &rec.Dim, &metaJSON); err != nil {
			return nil, err
		}
		rec.Sector = model.Sector(sector)
		rec.UserID = userID
		rec.Vector = parseVectorLiteral(vecText)
		rec.Metadata = model.DecodeMetadata(metaJSON)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (v *pgVectorStore) DeleteVectors(ctx context.Context, memoryIDs []string, userID string) error {
	_, err := v.p.queryExecer(ctx).Exec(ctx, `DELETE FROM hsg_vectors WHERE user_id = $1 AND memory_id = ANY($2)`, userID, memoryIDs)
	return err
}

func (v *pgVectorStore) SearchSimilar(ctx context.Context, sector model.Sector, vec []float32, topK int, userID string, _ model.Metadata) ([]SimilarityHit, error) {
	rows, err := v.p.queryExecer(ctx).Query(ctx, `
		SELECT memory_id, 1 - (vector <=> $1) AS score FROM hsg_vectors
		WHERE user_id = $2 AND sector = $3
		ORDER BY vector <=> $1
		LIMIT $4
	`, vectorLiteral(vec), userID, string(sector), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SimilarityHit
	for rows.Next() {
		var hit SimilarityHit
		if err := rows.Scan(&hit.MemoryID, &hit.Score); err != nil {
			return nil, err
		}
		out = append(out, hit)
	}
	return out, rows.Err()
}

type pgGraphStore struct{ p *PostgresStore }

func (g *pgGraphStore) GetWaypoint(ctx context.Context, src, dst, userID string) (*model.Waypoint, error) {
	row := g.p.queryExecer(ctx).QueryRow(ctx, `
		SELECT user_id, src_id, dst_id, weight, created_at, updated_at FROM hsg_waypoints
		WHERE user_id = $1 AND src_id = $2 AND dst_id = $3
	`, userID, src, dst)
	var w model.Waypoint
	err := row.Scan(&w.UserID, &w.SrcID, &w.DstID, &w.Weight, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

func (g *pgGraphStore) GetWaypointsBySrc(ctx context.Context, src, userID string) ([]model.Waypoint, error) {
	rows, err := g.p.queryExecer(ctx).Query(ctx, `
		SELECT user_id, src_id, dst_id, weight, created_at, updated_at FROM hsg_waypoints
		WHERE user_id = $1 AND src_id = $2
	`, userID, src)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Waypoint
	for rows.Next() {
		var w model.Waypoint
		if err := rows.Scan(&w.UserID, &w.SrcID, &w.DstID, &w.Weight, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (g *pgGraphStore) GetWaypointsForPairs(ctx context.Context, pairs [][2]string, userID string) (map[[2]string]model.Waypoint, error) {
	out := make(map[[2]string]model.Waypoint, len(pairs))
	for _, p := range pairs {
		w, err := g.GetWaypoint(ctx, p[0], p[1], userID)
		if err != nil {
			return nil, err
		}
		if w != nil {
			out[p] = *w
		}
	}
	return out, nil
}

func (g *pgGraphStore) InsertWaypoint(ctx context.Context, w model.Waypoint) error {
	w.ClampWeight()
	_, err := g.p.queryExecer(ctx).Exec(ctx, `
		INSERT INTO hsg_waypoints (user_id, src_id, dst_id, weight, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (user_id, src_id, dst_id) DO UPDATE SET weight = EXCLUDED.weight, updated_at = EXCLUDED.updated_at
	`, w.UserID, w.SrcID, w.DstID, w.Weight, w.CreatedAt, w.UpdatedAt)
	return err
}

func (g *pgGraphStore) InsertWaypoints(ctx context.Context, ws []model.Waypoint) error {
	for _, w := range ws {
		if err := g.InsertWaypoint(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

func (g *pgGraphStore) PruneWaypoints(ctx context.Context, threshold float64, userID string) (int, error) {
	tag, err := g.p.queryExecer(ctx).Exec(ctx, `DELETE FROM hsg_waypoints WHERE user_id = $1 AND weight < $2`, userID, threshold)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func vectorLiteral(v []float32) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(float64(x), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func parseVectorLiteral(text string) []float32 {
	text = strings.Trim(text, "[]")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parts := strings.Split(text, ",")
	vec := make([]float32, 0, len(parts))
	for _, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			continue
		}
		vec = append(vec, float32(f))
	}
	return vec
}
