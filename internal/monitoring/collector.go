package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/creator-credit/internal/model"
)

// maxSnapshotEvaluations bounds how many evaluations one snapshot reads.
const maxSnapshotEvaluations = 10000

// MetricsSnapshot holds a point-in-time view of decisioning health.
type MetricsSnapshot struct {
	// Evaluation counts within the lookback window.
	Total           int `json:"total"`
	Approved        int `json:"approved"`
	Denied          int `json:"denied"`
	Failed          int `json:"failed"`
	InvalidDecision int `json:"invalid_decision"`
	Degraded        int `json:"degraded"`

	FailureRate         float64 `json:"failure_rate"`
	InvalidDecisionRate float64 `json:"invalid_decision_rate"`
	ApprovalRate        float64 `json:"approval_rate"`

	// ApprovedAmount is the credit extended within the window.
	ApprovedAmount int64 `json:"approved_amount"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// EvaluationLister is the store method the collector needs.
type EvaluationLister interface {
	ListEvaluations(ctx context.Context, filter model.EvaluationFilter) ([]model.Evaluation, error)
}

// Collector gathers metrics from the evaluation store.
type Collector struct {
	store   EvaluationLister
	nowFunc func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(st EvaluationLister) *Collector {
	return &Collector{store: st, nowFunc: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.nowFunc().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	// Newest first, so stop at the first one outside the window.
	evs, err := c.store.ListEvaluations(ctx, model.EvaluationFilter{Limit: maxSnapshotEvaluations})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list evaluations")
	}

	for _, ev := range evs {
		if ev.CreatedAt.Before(cutoff) {
			break
		}
		snap.Total++
		switch ev.Status {
		case model.StatusDecided:
			if ev.Decision != nil && ev.Decision.Approved {
				snap.Approved++
				snap.ApprovedAmount += ev.Decision.ApprovedAmount
			} else {
				snap.Denied++
			}
			if ev.Report != nil && ev.Report.Degraded() {
				snap.Degraded++
			}
		case model.StatusFailed:
			snap.Failed++
		case model.StatusInvalidDecision:
			snap.InvalidDecision++
		}
	}

	if snap.Total > 0 {
		snap.FailureRate = float64(snap.Failed) / float64(snap.Total)
		snap.InvalidDecisionRate = float64(snap.InvalidDecision) / float64(snap.Total)
	}
	if decided := snap.Approved + snap.Denied; decided > 0 {
		snap.ApprovalRate = float64(snap.Approved) / float64(decided)
	}
	return snap, nil
}
