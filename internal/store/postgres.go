package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/dividalabs/litigio-cli/internal/collect"
)

// pgExecer is the pool subset the store uses. pgxmock satisfies it in tests.
type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool pgExecer
}

// NewPostgres connects to the given DSN.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, eris.New("postgres: database URL is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool pgExecer) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	stats       JSONB,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS run_entities (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	entity_id  TEXT,
	name       TEXT NOT NULL,
	document   TEXT NOT NULL,
	discovered INTEGER NOT NULL,
	selected   INTEGER NOT NULL,
	status     TEXT NOT NULL,
	at         TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_entities_run_id ON run_entities(run_id);
CREATE INDEX IF NOT EXISTS idx_run_entities_document ON run_entities(document);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) StartRun(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES ($1, $2, $3)`,
		runID, "running", startedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert run %s", runID)
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, finishedAt time.Time, stats collect.StatsSnapshot) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stats")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, stats = $2, finished_at = $3 WHERE id = $4`,
		"finished", statsJSON, finishedAt.UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) RecordEntity(ctx context.Context, runID string, ent collect.Entity, discovered, selected int, status string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_entities (run_id, entity_id, name, document, discovered, selected, status, at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		runID, ent.ID, ent.Name, ent.Document, discovered, selected, status, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: record entity %s", ent.Document)
}
