package hsgstore

import (
	"context"

	neo4j "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// realNeo4jDriver adapts the real neo4j-go-driver to the package's
// neo4jDriver abstraction, so production code wires an actual server while
// tests can supply lightweight fakes of the same interfaces.
type realNeo4jDriver struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jDriver opens a connection to a live Neo4j server at uri with
// basic auth.
func NewNeo4jDriver(ctx context.Context, uri, username, password string) (neo4jDriver, error) {
	drv, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}
	if err := drv.VerifyConnectivity(ctx); err != nil {
		return nil, err
	}
	return &realNeo4jDriver{driver: drv}, nil
}

func (d *realNeo4jDriver) NewSession(_ context.Context, config neo4jSessionConfig) (neo4jSession, error) {
	mode := neo4j.AccessModeRead
	if config.AccessMode == neo4jAccessWrite {
		mode = neo4j.AccessModeWrite
	}
	session := d.driver.NewSession(context.Background(), neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: config.DatabaseName,
	})
	return &realNeo4jSession{session: session}, nil
}

func (d *realNeo4jDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

type realNeo4jSession struct {
	session neo4j.SessionWithContext
}

func (s *realNeo4jSession) BeginTransaction(ctx context.Context) (neo4jTransaction, error) {
	tx, err := s.session.BeginTransaction(ctx)
	if err != nil {
		return nil, err
	}
	return &realNeo4jTransaction{tx: tx}, nil
}

func (s *realNeo4jSession) Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error) {
	res, err := s.session.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return &realNeo4jResult{result: res}, nil
}

func (s *realNeo4jSession) Close(ctx context.Context) error {
	return s.session.Close(ctx)
}

type realNeo4jTransaction struct {
	tx neo4j.ExplicitTransaction
}

func (t *realNeo4jTransaction) Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error) {
	res, err := t.tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return &realNeo4jResult{result: res}, nil
}

func (t *realNeo4jTransaction) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *realNeo4jTransaction) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }
func (t *realNeo4jTransaction) Close(ctx context.Context) error    { return t.tx.Close(ctx) }

type realNeo4jResult struct {
	result neo4j.ResultWithContext
	record *neo4j.Record
}

func (r *realNeo4jResult) Next(ctx context.Context) bool {
	if r.result.NextRecord(ctx, &r.record) {
		return true
	}
	return false
}

func (r *realNeo4jResult) Record() neo4jRecord {
	return &realNeo4jRecord{record: r.record}
}

func (r *realNeo4jResult) Err() error {
	return r.result.Err()
}

func (r *realNeo4jResult) Close(ctx context.Context) error {
	_, err := r.result.Consume(ctx)
	return err
}

type realNeo4jRecord struct {
	record *neo4j.Record
}

func (r *realNeo4jRecord) Get(key string) (any, bool) {
	if r.record == nil {
		return nil, false
	}
	return r.record.Get(key)
}
