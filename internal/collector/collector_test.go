package collector

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/creator-credit/internal/metrics"
	"github.com/sells-group/creator-credit/internal/model"
	"github.com/sells-group/creator-credit/internal/oracle"
	"github.com/sells-group/creator-credit/internal/scorer"
	"github.com/sells-group/creator-credit/pkg/youtube"
	"github.com/sells-group/creator-credit/pkg/youtube/mocks"
)

var fixedNow = time.Date(2024, 12, 15, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	calls atomic.Int32
	snap  *model.ChannelSnapshot
	err   error
}

func (f *fakeSource) Snapshot(_ context.Context, _ string) (*model.ChannelSnapshot, error) {
	f.calls.Add(1)
	return f.snap, f.err
}

// stalledSource blocks until its context ends, or until delay passes when
// delay is set.
type stalledSource struct {
	delay time.Duration
	snap  *model.ChannelSnapshot
}

func (s *stalledSource) Snapshot(ctx context.Context, _ string) (*model.ChannelSnapshot, error) {
	var after <-chan time.Time
	if s.delay > 0 {
		after = time.After(s.delay)
	}
	select {
	case <-after:
		return s.snap, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type fakeBrand struct {
	score int
	err   error
	delay time.Duration
}

func (f *fakeBrand) Score(ctx context.Context, _ *model.ChannelSnapshot) (int, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return 0, &model.ScoringUnavailableError{Source: model.BranchBrandSafety, Err: ctx.Err()}
		}
	}
	return f.score, f.err
}

type fakeProposal struct {
	res *oracle.ProposalResult
	err error
}

func (f *fakeProposal) Score(_ context.Context, _, _ string) (*oracle.ProposalResult, error) {
	return f.res, f.err
}

func ptr[T any](v T) *T { return &v }

func request(withMetrics bool) *model.LoanRequest {
	zero := decimal.Zero
	req := &model.LoanRequest{
		ChannelID:  "UC1",
		LoanAmount: 20000,
		BankingData: &model.BankingData{Connections: []model.Connection{{
			Accounts: []model.Account{{Balance: &zero}},
		}}},
	}
	if withMetrics {
		req.ChannelMetrics = &model.ChannelMetricsInput{
			Subscribers:     ptr(int64(30000)),
			ViewsPerVideo:   ptr(2000.0),
			EngagementRatio: ptr(0.04),
		}
	}
	return req
}

func sampleSnapshot() *model.ChannelSnapshot {
	snap := &model.ChannelSnapshot{ChannelID: "UC1", Subscribers: 50000}
	for i := 0; i < 20; i++ {
		snap.Videos = append(snap.Videos, model.VideoStats{VideoID: "v", Views: 1000, Likes: 40, Comments: 10})
	}
	return snap
}

func newCollector(cfg Config, deps Deps) *Collector {
	deps.Credit = scorer.NewCreditScorer(scorer.DefaultCreditConfig()).WithClock(func() time.Time { return fixedNow })
	deps.Channel = scorer.NewChannelScorer(scorer.DefaultChannelConfig())
	return New(cfg, deps)
}

func TestCollect_AllBranches(t *testing.T) {
	src := &fakeSource{snap: sampleSnapshot()}
	c := newCollector(Config{TrendBatchSize: 10}, Deps{
		Channels:    src,
		BrandSafety: &fakeBrand{score: 2},
		Proposal:    &fakeProposal{res: &oracle.ProposalResult{Score: 4, Summary: "reasonable"}},
		Metrics:     metrics.New("test"),
	})

	report, err := c.Collect(context.Background(), request(false))
	require.NoError(t, err)

	assert.Equal(t, "UC1", report.ChannelID)
	assert.Equal(t, int64(20000), report.LoanRequested)
	require.NotNil(t, report.BrandSafety)
	assert.Equal(t, 2, *report.BrandSafety)
	require.NotNil(t, report.BusinessProposal)
	assert.Equal(t, 4, *report.BusinessProposal)
	assert.Equal(t, "reasonable", report.ProposalSummary)
	assert.Equal(t, 5, report.CreditRisk, "empty ledger with zero balance")
	assert.Equal(t, int64(50000), report.ChannelMetrics.Subscribers)
	assert.InDelta(t, 1000, report.ChannelMetrics.ViewsPerVideo, 1e-9)
	assert.InDelta(t, 0.05, report.ChannelMetrics.EngagementRatio, 1e-9)
	assert.Len(t, report.Trend, 2)
	assert.False(t, report.Degraded())
	assert.Equal(t, int32(1), src.calls.Load(), "one feed call shared by brand safety and engagement")

	want := scorer.NewChannelScorer(scorer.DefaultChannelConfig()).Evaluate(report.ChannelMetrics)
	assert.InDelta(t, want, report.Engagement, 1e-9)
}

func TestCollect_StaticMetrics(t *testing.T) {
	c := newCollector(Config{}, Deps{})

	report, err := c.Collect(context.Background(), request(true))
	require.NoError(t, err)
	assert.Equal(t, int64(30000), report.ChannelMetrics.Subscribers)
	assert.Nil(t, report.BrandSafety)
	assert.Nil(t, report.BusinessProposal)
	assert.Nil(t, report.Trend)
	assert.Contains(t, report.BranchErrors, model.BranchBrandSafety)
	assert.NotContains(t, report.BranchErrors, model.BranchProposal, "no proposal is not an error")
}

func TestCollect_BrandSafetyFailureDegrades(t *testing.T) {
	c := newCollector(Config{}, Deps{
		Channels:    &fakeSource{snap: sampleSnapshot()},
		BrandSafety: &fakeBrand{err: &model.ScoringUnavailableError{Source: "brand_safety", Err: errors.New("503")}},
		Proposal:    &fakeProposal{res: &oracle.ProposalResult{Score: 3}},
	})

	report, err := c.Collect(context.Background(), request(false))
	require.NoError(t, err)
	assert.Nil(t, report.BrandSafety)
	require.NotNil(t, report.BusinessProposal)
	assert.True(t, report.Degraded())
	assert.Contains(t, report.BranchErrors[model.BranchBrandSafety], "503")
}

func TestCollect_SlowOracleOnlyDegradesItsBranch(t *testing.T) {
	c := newCollector(Config{BranchTimeout: 20 * time.Millisecond}, Deps{
		Channels:    &fakeSource{snap: sampleSnapshot()},
		BrandSafety: &fakeBrand{score: 1, delay: 5 * time.Second},
		Proposal:    &fakeProposal{err: &model.ScoringUnavailableError{Source: "business_proposal"}},
	})

	start := time.Now()
	report, err := c.Collect(context.Background(), request(false))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Nil(t, report.BrandSafety)
	assert.Nil(t, report.BusinessProposal)
	assert.Len(t, report.BranchErrors, 2)
	assert.Equal(t, 5, report.CreditRisk)
}

func TestCollect_StalledFeedOnlyDegradesBrandSafety(t *testing.T) {
	c := newCollector(Config{BranchTimeout: 50 * time.Millisecond}, Deps{
		Channels:    &stalledSource{},
		BrandSafety: &fakeBrand{score: 1},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	report, err := c.Collect(ctx, request(true))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Nil(t, report.BrandSafety)
	assert.Contains(t, report.BranchErrors[model.BranchBrandSafety], "deadline exceeded")
	assert.Equal(t, int64(30000), report.ChannelMetrics.Subscribers)
}

func TestCollect_SlowFeedStillServesEngagement(t *testing.T) {
	c := newCollector(Config{BranchTimeout: 20 * time.Millisecond}, Deps{
		Channels:    &stalledSource{delay: 150 * time.Millisecond, snap: sampleSnapshot()},
		BrandSafety: &fakeBrand{score: 1},
	})

	report, err := c.Collect(context.Background(), request(false))
	require.NoError(t, err)
	assert.Nil(t, report.BrandSafety)
	assert.Contains(t, report.BranchErrors, model.BranchBrandSafety)
	assert.Equal(t, int64(50000), report.ChannelMetrics.Subscribers)
}

func TestCollect_EngagementFailureIsFatal(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
	}{
		{"feed error", Deps{Channels: &fakeSource{err: errors.New("quota exceeded")}}},
		{"no feed and no metrics", Deps{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCollector(Config{}, tt.deps)
			_, err := c.Collect(context.Background(), request(false))
			require.Error(t, err)
			var se *model.ScoringUnavailableError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, model.BranchEngagement, se.Source)
		})
	}
}

func TestYouTubeSource_Snapshot(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("Channel", mock.Anything, "UC1", 25).Return(&youtube.Channel{
		ID:          "UC1",
		Title:       "Cooking Daily",
		Subscribers: 1200,
		Videos: []youtube.Video{
			{ID: "v2", Title: "B", Views: 300, Likes: 20, Comments: 4},
			{ID: "v1", Title: "A", Views: 100, Likes: 5, Comments: 1},
		},
	}, nil).Once()

	snap, err := NewYouTubeSource(client, 25).Snapshot(context.Background(), "UC1")
	require.NoError(t, err)
	assert.Equal(t, "Cooking Daily", snap.Title)
	assert.Equal(t, int64(1200), snap.Subscribers)
	require.Len(t, snap.Videos, 2)
	assert.Equal(t, "v2", snap.Videos[0].VideoID)
	assert.Equal(t, int64(4), snap.Videos[0].Comments)
}

func TestYouTubeSource_DefaultSampleAndError(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("Channel", mock.Anything, "UC1", model.DefaultVideoSample).Return(nil, youtube.ErrChannelNotFound).Once()

	_, err := NewYouTubeSource(client, 0).Snapshot(context.Background(), "UC1")
	assert.ErrorIs(t, err, youtube.ErrChannelNotFound)
}
