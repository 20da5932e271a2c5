package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/creator-credit/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func intPtr(v int) *int { return &v }

func TestSQLite_SaveAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ev := &model.Evaluation{
		ChannelID:     "UC1",
		LoanRequested: 20000,
		Status:        model.StatusDecided,
		Report: &model.ScoreReport{
			ChannelID:    "UC1",
			BrandSafety:  intPtr(2),
			CreditRisk:   7,
			Engagement:   3.25,
			BranchErrors: map[string]string{model.BranchProposal: "timeout"},
		},
		Decision: &model.Decision{Approved: true, ApprovedAmount: 12000},
	}
	require.NoError(t, st.SaveEvaluation(ctx, ev))
	require.NotEmpty(t, ev.ID)

	got, err := st.GetEvaluation(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "UC1", got.ChannelID)
	assert.Equal(t, int64(20000), got.LoanRequested)
	assert.Equal(t, model.StatusDecided, got.Status)
	require.NotNil(t, got.Report)
	assert.Equal(t, 2, *got.Report.BrandSafety)
	assert.Nil(t, got.Report.BusinessProposal)
	assert.Equal(t, "timeout", got.Report.BranchErrors[model.BranchProposal])
	assert.Equal(t, model.Decision{Approved: true, ApprovedAmount: 12000}, *got.Decision)
	require.NotNil(t, got.SpendingLimit)
	assert.Equal(t, int64(1200000), got.SpendingLimit.Amount)
	assert.WithinDuration(t, ev.CreatedAt, got.CreatedAt, time.Second)
}

func TestSQLite_FailedEvaluationHasNoDecision(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ev := &model.Evaluation{ChannelID: "UC1", LoanRequested: 500, Status: model.StatusFailed, Error: "scoring unavailable: decision"}
	require.NoError(t, st.SaveEvaluation(ctx, ev))

	got, err := st.GetEvaluation(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Nil(t, got.Decision)
	assert.Nil(t, got.Report)
	assert.Equal(t, "scoring unavailable: decision", got.Error)
}

func TestSQLite_GetNotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetEvaluation(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_DuplicateID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveEvaluation(ctx, &model.Evaluation{ID: "dup", ChannelID: "UC1", Status: model.StatusFailed}))
	err := st.SaveEvaluation(ctx, &model.Evaluation{ID: "dup", ChannelID: "UC1", Status: model.StatusFailed})
	require.Error(t, err)
}

func TestSQLite_ListEvaluations(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	seed := []model.Evaluation{
		{ID: "a", ChannelID: "UC1", Status: model.StatusDecided, Decision: &model.Decision{}, CreatedAt: base},
		{ID: "b", ChannelID: "UC1", Status: model.StatusFailed, CreatedAt: base.Add(time.Minute)},
		{ID: "c", ChannelID: "UC2", Status: model.StatusInvalidDecision, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "d", ChannelID: "UC1", Status: model.StatusDecided, Decision: &model.Decision{Approved: true, ApprovedAmount: 1}, CreatedAt: base.Add(3 * time.Minute)},
	}
	for i := range seed {
		require.NoError(t, st.SaveEvaluation(ctx, &seed[i]))
	}

	tests := []struct {
		name   string
		filter model.EvaluationFilter
		want   []string
	}{
		{"all newest first", model.EvaluationFilter{}, []string{"d", "c", "b", "a"}},
		{"by channel", model.EvaluationFilter{ChannelID: "UC1"}, []string{"d", "b", "a"}},
		{"by status", model.EvaluationFilter{Status: model.StatusDecided}, []string{"d", "a"}},
		{"channel and status", model.EvaluationFilter{ChannelID: "UC2", Status: model.StatusInvalidDecision}, []string{"c"}},
		{"limit", model.EvaluationFilter{Limit: 2}, []string{"d", "c"}},
		{"none", model.EvaluationFilter{ChannelID: "UC9"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evs, err := st.ListEvaluations(ctx, tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, ev := range evs {
				ids = append(ids, ev.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}
