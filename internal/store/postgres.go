package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/creator-credit/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock pools satisfy it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"insert_evaluation": `INSERT INTO evaluations (id, channel_id, loan_requested, status, report, decision, error, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"get_evaluation":    `SELECT id, channel_id, loan_requested, status, report, decision, error, created_at FROM evaluations WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS evaluations (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	channel_id     TEXT NOT NULL,
	loan_requested BIGINT NOT NULL,
	status         TEXT NOT NULL,
	report         JSONB,
	decision       JSONB,
	error          TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_evaluations_channel ON evaluations(channel_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_status ON evaluations(status);
CREATE INDEX IF NOT EXISTS idx_evaluations_created_at ON evaluations(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveEvaluation(ctx context.Context, ev *model.Evaluation) error {
	r, err := prepare(ev)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO evaluations (id, channel_id, loan_requested, status, report, decision, error, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.ChannelID, r.LoanRequested, r.Status, jsonb(r.Report), jsonb(r.Decision), r.Error, r.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert evaluation %s", r.ID)
}

func (s *PostgresStore) GetEvaluation(ctx context.Context, id string) (*model.Evaluation, error) {
	var r row
	err := s.pool.QueryRow(ctx,
		`SELECT id, channel_id, loan_requested, status, report, decision, error, created_at FROM evaluations WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.ChannelID, &r.LoanRequested, &r.Status, &r.Report, &r.Decision, &r.Error, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get evaluation %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get evaluation %s", id)
	}
	return r.evaluation()
}

func (s *PostgresStore) ListEvaluations(ctx context.Context, filter model.EvaluationFilter) ([]model.Evaluation, error) {
	var (
		where []string
		args  []any
	)
	if filter.ChannelID != "" {
		args = append(args, filter.ChannelID)
		where = append(where, fmt.Sprintf("channel_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT id, channel_id, loan_requested, status, report, decision, error, created_at FROM evaluations`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, listLimit(filter))
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list evaluations")
	}
	defer rows.Close()

	var out []model.Evaluation
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.ID, &r.ChannelID, &r.LoanRequested, &r.Status, &r.Report, &r.Decision, &r.Error, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan evaluation")
		}
		ev, err := r.evaluation()
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list evaluations iterate")
}

// jsonb passes nil for absent documents so the column stays NULL.
func jsonb(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
