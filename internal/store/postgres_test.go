package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/creator-credit/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var evalColumns = []string{"id", "channel_id", "loan_requested", "status", "report", "decision", "error", "created_at"}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS evaluations`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveEvaluation(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO evaluations`).
		WithArgs("ev-1", "UC1", int64(20000), "decided", pgxmock.AnyArg(), `{"approved":true,"approved_amount":15000}`, "", created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ev := &model.Evaluation{
		ID:            "ev-1",
		ChannelID:     "UC1",
		LoanRequested: 20000,
		Status:        model.StatusDecided,
		Report:        &model.ScoreReport{ChannelID: "UC1", CreditRisk: 4},
		Decision:      &model.Decision{Approved: true, ApprovedAmount: 15000},
		CreatedAt:     created,
	}
	require.NoError(t, s.SaveEvaluation(context.Background(), ev))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveEvaluation_FailedHasNullDecision(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO evaluations`).
		WithArgs(pgxmock.AnyArg(), "UC1", int64(500), "failed", nil, nil, "scoring unavailable: decision", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ev := &model.Evaluation{ChannelID: "UC1", LoanRequested: 500, Status: model.StatusFailed, Error: "scoring unavailable: decision"}
	require.NoError(t, s.SaveEvaluation(context.Background(), ev))
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveEvaluation_InvalidStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	err := s.SaveEvaluation(context.Background(), &model.Evaluation{ChannelID: "UC1", Status: "denied"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetEvaluation(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, channel_id, loan_requested, status, report, decision, error, created_at FROM evaluations WHERE id = \$1`).
		WithArgs("ev-1").
		WillReturnRows(pgxmock.NewRows(evalColumns).AddRow(
			"ev-1", "UC1", int64(20000), "decided",
			[]byte(`{"channel_id":"UC1","credit_risk_score":4,"brand_safety_score":null}`),
			[]byte(`{"approved":true,"approved_amount":15000}`),
			"", created,
		))

	ev, err := s.GetEvaluation(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDecided, ev.Status)
	require.NotNil(t, ev.Report)
	assert.Equal(t, 4, ev.Report.CreditRisk)
	assert.Nil(t, ev.Report.BrandSafety)
	require.NotNil(t, ev.SpendingLimit)
	assert.Equal(t, int64(1500000), ev.SpendingLimit.Amount)
	assert.Equal(t, created, ev.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetEvaluation_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM evaluations WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetEvaluation(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListEvaluations(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM evaluations WHERE channel_id = \$1 AND status = \$2 ORDER BY created_at DESC LIMIT \$3`).
		WithArgs("UC1", "failed", 5).
		WillReturnRows(pgxmock.NewRows(evalColumns).
			AddRow("ev-2", "UC1", int64(100), "failed", nil, nil, "boom", now).
			AddRow("ev-1", "UC1", int64(100), "failed", nil, nil, "boom", now.Add(-time.Hour)))

	evs, err := s.ListEvaluations(context.Background(), model.EvaluationFilter{ChannelID: "UC1", Status: model.StatusFailed, Limit: 5})
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "ev-2", evs[0].ID)
	assert.Nil(t, evs[0].Decision)
	assert.Nil(t, evs[0].SpendingLimit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListEvaluations_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM evaluations ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(defaultListLimit).
		WillReturnRows(pgxmock.NewRows(evalColumns))

	evs, err := s.ListEvaluations(context.Background(), model.EvaluationFilter{})
	require.NoError(t, err)
	assert.Empty(t, evs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
