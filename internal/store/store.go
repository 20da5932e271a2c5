// Package store persists evaluation records in SQLite or Postgres.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/creator-credit/internal/config"
	"github.com/sells-group/creator-credit/internal/model"
)

// ErrNotFound is returned when an evaluation ID does not exist.
var ErrNotFound = eris.New("store: evaluation not found")

// defaultListLimit caps ListEvaluations when the filter sets no limit.
const defaultListLimit = 100

// Store defines the persistence interface for evaluations.
type Store interface {
	SaveEvaluation(ctx context.Context, ev *model.Evaluation) error
	GetEvaluation(ctx context.Context, id string) (*model.Evaluation, error)
	ListEvaluations(ctx context.Context, filter model.EvaluationFilter) ([]model.Evaluation, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLite(cfg.SQLitePath)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

func listLimit(f model.EvaluationFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}
