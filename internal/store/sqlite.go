package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/creator-credit/internal/model"
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
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS evaluations (
	id             TEXT PRIMARY KEY,
	channel_id     TEXT NOT NULL,
	loan_requested INTEGER NOT NULL,
	status         TEXT NOT NULL,
	report         TEXT,
	decision       TEXT,
	error          TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evaluations_channel ON evaluations(channel_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_status ON evaluations(status);
CREATE INDEX IF NOT EXISTS idx_evaluations_created_at ON evaluations(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveEvaluation(ctx context.Context, ev *model.Evaluation) error {
	r, err := prepare(ev)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO evaluations (id, channel_id, loan_requested, status, report, decision, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ChannelID, r.LoanRequested, r.Status, nullText(r.Report), nullText(r.Decision), r.Error, r.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert evaluation %s", r.ID)
}

func (s *SQLiteStore) GetEvaluation(ctx context.Context, id string) (*model.Evaluation, error) {
	rowSQL := s.db.QueryRowContext(ctx,
		`SELECT id, channel_id, loan_requested, status, report, decision, error, created_at
		 FROM evaluations WHERE id = ?`,
		id,
	)
	ev, err := scanEvaluation(rowSQL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get evaluation %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get evaluation %s", id)
	}
	return ev, nil
}

func (s *SQLiteStore) ListEvaluations(ctx context.Context, filter model.EvaluationFilter) ([]model.Evaluation, error) {
	query := `SELECT id, channel_id, loan_requested, status, report, decision, error, created_at
		FROM evaluations WHERE 1=1`
	var args []any

	if filter.ChannelID != "" {
		query += ` AND channel_id = ?`
		args = append(args, filter.ChannelID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list evaluations")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Evaluation
	for rows.Next() {
		ev, err := scanEvaluation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan evaluation")
		}
		out = append(out, *ev)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list evaluations iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEvaluation(s scannable) (*model.Evaluation, error) {
	var r row
	var report, decision sql.NullString
	if err := s.Scan(&r.ID, &r.ChannelID, &r.LoanRequested, &r.Status, &report, &decision, &r.Error, &r.CreatedAt); err != nil {
		return nil, err
	}
	if report.Valid {
		r.Report = []byte(report.String)
	}
	if decision.Valid {
		r.Decision = []byte(decision.String)
	}
	return r.evaluation()
}

func nullText(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
