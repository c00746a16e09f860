// Package store persists the run ledger: one row per collection run and one
// per entity outcome, queryable after the fact. SQLite is the default,
// embedded backend; Postgres serves shared deployments.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/dividalabs/litigio-cli/internal/collect"
)

// Store records runs and entity outcomes. Implementations satisfy
// collect.Ledger.
type Store interface {
	Migrate(ctx context.Context) error
	StartRun(ctx context.Context, runID string, startedAt time.Time) error
	FinishRun(ctx context.Context, runID string, finishedAt time.Time, stats collect.StatsSnapshot) error
	RecordEntity(ctx context.Context, runID string, ent collect.Entity, discovered, selected int, status string) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver      string // "sqlite" or "postgres"
	Path        string // sqlite file path
	DatabaseURL string // postgres DSN
}

// Open builds the configured backend and runs its migration.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opts.Driver {
	case "sqlite", "":
		s, err = NewSQLite(opts.Path)
	case "postgres":
		s, err = NewPostgres(ctx, opts.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
