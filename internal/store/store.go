// Package store records run history and the businesses each run produced.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mapscrap/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Query  string          `json:"query,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store persists runs and their results.
type Store interface {
	CreateRun(ctx context.Context, query string, target, workers int) (*model.Run, error)
	// CompleteRun marks a run complete or partial and records its stats.
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats model.RunStats) error
	FailRun(ctx context.Context, runID string, stats model.RunStats, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// SaveBusinesses replaces the stored businesses of a run, keeping order.
	SaveBusinesses(ctx context.Context, runID string, businesses []model.Business) error
	ListBusinesses(ctx context.Context, runID string) ([]model.Business, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the store selected by driver ("sqlite" or "postgres") and
// applies migrations.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(driver) {
	case "", "sqlite":
		s, err = NewSQLite(dsn)
	case "postgres", "postgresql", "pgx":
		s, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
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

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
