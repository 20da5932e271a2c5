package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/creator-credit/internal/model"
)

var monitorNow = time.Date(2024, 12, 15, 12, 0, 0, 0, time.UTC)

// fakeLister returns canned evaluations, newest first.
type fakeLister struct {
	evs []model.Evaluation
	err error
}

func (f *fakeLister) ListEvaluations(_ context.Context, filter model.EvaluationFilter) ([]model.Evaluation, error) {
	if f.err != nil {
		return nil, f.err
	}
	if filter.Limit > 0 && len(f.evs) > filter.Limit {
		return f.evs[:filter.Limit], nil
	}
	return f.evs, nil
}

func evaluationAt(hoursAgo int, status model.EvaluationStatus, approved int64) model.Evaluation {
	ev := model.Evaluation{Status: status, CreatedAt: monitorNow.Add(-time.Duration(hoursAgo) * time.Hour)}
	if status == model.StatusDecided {
		ev.Decision = &model.Decision{Approved: approved > 0, ApprovedAmount: approved}
	}
	return ev
}

func newTestCollector(l EvaluationLister) *Collector {
	c := NewCollector(l)
	c.nowFunc = func() time.Time { return monitorNow }
	return c
}

func TestCollector_Collect(t *testing.T) {
	degraded := evaluationAt(1, model.StatusDecided, 4000)
	degraded.Report = &model.ScoreReport{BranchErrors: map[string]string{model.BranchBrandSafety: "timeout"}}

	st := &fakeLister{evs: []model.Evaluation{
		degraded,
		evaluationAt(2, model.StatusDecided, 6000),
		evaluationAt(3, model.StatusDecided, 0),
		evaluationAt(4, model.StatusFailed, 0),
		evaluationAt(5, model.StatusInvalidDecision, 0),
		evaluationAt(48, model.StatusFailed, 0), // outside window
	}}

	snap, err := newTestCollector(st).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 5, snap.Total)
	assert.Equal(t, 2, snap.Approved)
	assert.Equal(t, 1, snap.Denied)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1, snap.InvalidDecision)
	assert.Equal(t, 1, snap.Degraded)
	assert.Equal(t, int64(10_000), snap.ApprovedAmount)
	assert.InDelta(t, 0.2, snap.FailureRate, 1e-9)
	assert.InDelta(t, 0.2, snap.InvalidDecisionRate, 1e-9)
	assert.InDelta(t, 2.0/3, snap.ApprovalRate, 1e-9)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.Equal(t, monitorNow, snap.CollectedAt)
}

func TestCollector_Collect_Empty(t *testing.T) {
	snap, err := newTestCollector(&fakeLister{}).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Zero(t, snap.Total)
	assert.Zero(t, snap.FailureRate)
	assert.Zero(t, snap.ApprovalRate)
}

func TestCollector_Collect_StoreError(t *testing.T) {
	_, err := newTestCollector(&fakeLister{err: errors.New("db down")}).Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list evaluations")
}
