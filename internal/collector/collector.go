// Package collector gathers the four sub-scores of an evaluation
// concurrently and merges them into one ScoreReport.
package collector

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/creator-credit/internal/metrics"
	"github.com/sells-group/creator-credit/internal/model"
	"github.com/sells-group/creator-credit/internal/oracle"
	"github.com/sells-group/creator-credit/internal/scorer"
)

var (
	errNoChannelData = eris.New("collector: no channel metrics supplied and no channel feed configured")
	errNoOracle      = eris.New("collector: oracle not configured")
)

// ChannelSource returns a channel snapshot from a statistics feed.
type ChannelSource interface {
	Snapshot(ctx context.Context, channelID string) (*model.ChannelSnapshot, error)
}

// BrandSafetyScorer scores a channel's content, 0 best.
type BrandSafetyScorer interface {
	Score(ctx context.Context, snap *model.ChannelSnapshot) (int, error)
}

// ProposalScorer scores a business proposal, 0 best. A nil result means the
// creator submitted no proposal.
type ProposalScorer interface {
	Score(ctx context.Context, channelID, text string) (*oracle.ProposalResult, error)
}

// Config tunes collection.
type Config struct {
	// BranchTimeout bounds each optional oracle branch. Zero disables it.
	BranchTimeout time.Duration
	// TrendBatchSize is the upload batch size for the engagement trend.
	TrendBatchSize int
}

// Deps are the collector's scorers and feeds. Channels, BrandSafety and
// Proposal may be nil.
type Deps struct {
	Credit      *scorer.CreditScorer
	Channel     *scorer.ChannelScorer
	Channels    ChannelSource
	BrandSafety BrandSafetyScorer
	Proposal    ProposalScorer
	Metrics     *metrics.Recorder
}

// Collector runs the sub-score branches.
type Collector struct {
	cfg  Config
	deps Deps
}

// New creates a Collector.
func New(cfg Config, deps Deps) *Collector {
	return &Collector{cfg: cfg, deps: deps}
}

// Collect runs the brand-safety, engagement, proposal and credit branches
// concurrently and waits for all of them. Brand-safety and proposal failures
// leave a nil score and a branch error; credit and engagement failures fail
// the collection.
func (c *Collector) Collect(ctx context.Context, req *model.LoanRequest) (model.ScoreReport, error) {
	log := zap.L().With(zap.String("channel_id", req.ChannelID))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	// Brand safety and engagement share one feed call.
	snapshot := &sharedSnapshot{fetch: func() (*model.ChannelSnapshot, error) {
		if c.deps.Channels == nil {
			return nil, errNoChannelData
		}
		return c.deps.Channels.Snapshot(gCtx, req.ChannelID)
	}}

	var (
		brand      *int
		brandErr   error
		proposal   *oracle.ProposalResult
		propErr    error
		engagement float64
		chMetrics  model.ChannelMetrics
		trend      []model.BatchTrend
		credit     scorer.CreditResult
	)

	g.Go(func() error {
		bctx, cancel := c.branchContext(gCtx)
		defer cancel()
		brand, brandErr = c.brandSafety(bctx, snapshot)
		return nil
	})

	g.Go(func() error {
		bctx, cancel := c.branchContext(gCtx)
		defer cancel()
		proposal, propErr = c.proposal(bctx, req)
		return nil
	})

	g.Go(func() error {
		m, snap, err := c.channelMetrics(gCtx, req, snapshot)
		if err != nil {
			return &model.ScoringUnavailableError{Source: model.BranchEngagement, Err: err}
		}
		chMetrics = m
		engagement = c.deps.Channel.Evaluate(m)
		if snap != nil {
			trend = snap.Trend(c.cfg.TrendBatchSize)
		}
		c.deps.Metrics.ChannelScore(engagement)
		return nil
	})

	g.Go(func() error {
		credit = c.deps.Credit.Evaluate(req.BankingData.ScoringAccount())
		c.deps.Metrics.CreditScore(credit.Score)
		return nil
	})

	if err := g.Wait(); err != nil {
		return model.ScoreReport{}, err
	}

	report := model.ScoreReport{
		ChannelID:      req.ChannelID,
		LoanRequested:  req.LoanAmount,
		BrandSafety:    brand,
		Engagement:     engagement,
		CreditRisk:     credit.Score,
		CreditMetrics:  credit.Metrics,
		ChannelMetrics: chMetrics,
		Trend:          trend,
	}
	if proposal != nil {
		score := proposal.Score
		report.BusinessProposal = &score
		report.ProposalSummary = proposal.Summary
	}

	for branch, err := range map[string]error{
		model.BranchBrandSafety: brandErr,
		model.BranchProposal:    propErr,
	} {
		if err == nil {
			continue
		}
		if report.BranchErrors == nil {
			report.BranchErrors = make(map[string]string)
		}
		report.BranchErrors[branch] = err.Error()
		c.deps.Metrics.Degraded(branch)
		log.Warn("collector: branch degraded", zap.String("branch", branch), zap.Error(err))
	}

	log.Info("collector: sub-scores collected",
		zap.Int("credit_risk", report.CreditRisk),
		zap.Float64("engagement", report.Engagement),
		zap.Bool("degraded", report.Degraded()),
	)
	return report, nil
}

func (c *Collector) branchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.BranchTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.BranchTimeout)
}

func (c *Collector) brandSafety(ctx context.Context, snapshot *sharedSnapshot) (*int, error) {
	if c.deps.BrandSafety == nil {
		return nil, &model.ScoringUnavailableError{Source: model.BranchBrandSafety, Err: errNoOracle}
	}
	snap, err := snapshot.wait(ctx)
	if err != nil {
		return nil, &model.ScoringUnavailableError{Source: model.BranchBrandSafety, Err: err}
	}
	score, err := c.deps.BrandSafety.Score(ctx, snap)
	if err != nil {
		return nil, err
	}
	return &score, nil
}

func (c *Collector) proposal(ctx context.Context, req *model.LoanRequest) (*oracle.ProposalResult, error) {
	if c.deps.Proposal == nil {
		return nil, nil
	}
	return c.deps.Proposal.Score(ctx, req.ChannelID, req.Proposal)
}

// channelMetrics prefers metrics supplied with the request and falls back to
// the channel feed.
func (c *Collector) channelMetrics(ctx context.Context, req *model.LoanRequest, snapshot *sharedSnapshot) (model.ChannelMetrics, *model.ChannelSnapshot, error) {
	if req.ChannelMetrics != nil {
		m, err := req.ChannelMetrics.Metrics()
		return m, nil, err
	}
	snap, err := snapshot.wait(ctx)
	if err != nil {
		return model.ChannelMetrics{}, nil, err
	}
	return snap.Metrics(), snap, nil
}

// sharedSnapshot runs the feed call at most once, on first wait. Each waiter
// gives up on its own context while the call keeps going for the others.
type sharedSnapshot struct {
	fetch func() (*model.ChannelSnapshot, error)

	once sync.Once
	done chan struct{}
	snap *model.ChannelSnapshot
	err  error
}

func (s *sharedSnapshot) start() <-chan struct{} {
	s.once.Do(func() {
		s.done = make(chan struct{})
		go func() {
			defer close(s.done)
			s.snap, s.err = s.fetch()
		}()
	})
	return s.done
}

func (s *sharedSnapshot) wait(ctx context.Context) (*model.ChannelSnapshot, error) {
	done := s.start()
	select {
	case <-done:
		return s.snap, s.err
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "collector: waiting for channel feed")
	}
}
