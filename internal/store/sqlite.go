package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/dividalabs/litigio-cli/internal/collect"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	stats       TEXT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS run_entities (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	entity_id  TEXT,
	name       TEXT NOT NULL,
	document   TEXT NOT NULL,
	discovered INTEGER NOT NULL,
	selected   INTEGER NOT NULL,
	status     TEXT NOT NULL,
	at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_entities_run_id ON run_entities(run_id);
CREATE INDEX IF NOT EXISTS idx_run_entities_document ON run_entities(document);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) StartRun(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES (?, ?, ?)`,
		runID, "running", startedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert run %s", runID)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, finishedAt time.Time, stats collect.StatsSnapshot) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, stats = ?, finished_at = ? WHERE id = ?`,
		"finished", string(statsJSON), finishedAt.UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) RecordEntity(ctx context.Context, runID string, ent collect.Entity, discovered, selected int, status string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_entities (run_id, entity_id, name, document, discovered, selected, status, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, ent.ID, ent.Name, ent.Document, discovered, selected, status, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: record entity %s", ent.Document)
}

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run %s not found", runID)
	}
	return nil
}
