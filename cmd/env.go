package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/sells-group/creator-credit/internal/collector"
	"github.com/sells-group/creator-credit/internal/decision"
	"github.com/sells-group/creator-credit/internal/ledger"
	"github.com/sells-group/creator-credit/internal/metrics"
	"github.com/sells-group/creator-credit/internal/model"
	"github.com/sells-group/creator-credit/internal/oracle"
	"github.com/sells-group/creator-credit/internal/pipeline"
	"github.com/sells-group/creator-credit/internal/resilience"
	"github.com/sells-group/creator-credit/internal/scorer"
	"github.com/sells-group/creator-credit/internal/store"
	anthropicpkg "github.com/sells-group/creator-credit/pkg/anthropic"
	"github.com/sells-group/creator-credit/pkg/gemini"
	"github.com/sells-group/creator-credit/pkg/youtube"
)

// evalEnv holds everything the evaluate and serve commands need.
type evalEnv struct {
	Store     store.Store
	Metrics   *metrics.Recorder
	Credit    *scorer.CreditScorer
	Channel   *scorer.ChannelScorer
	Evaluator *pipeline.Evaluator
	Ledger    *ledger.Loader

	gcs *ledger.GCSReader
}

// Close releases resources held by the environment.
func (e *evalEnv) Close() {
	if e.gcs != nil {
		_ = e.gcs.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates config for mode, opens and migrates the store, and
// wires the oracles, channel feed, collector and evaluator. Callers should
// defer env.Close().
func initEnv(ctx context.Context, mode string) (*evalEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	credit, channel, err := initScorers()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	env := &evalEnv{
		Store:   st,
		Credit:  credit,
		Channel: channel,
	}
	if cfg.Metrics.Enabled {
		env.Metrics = metrics.New(cfg.Metrics.Namespace)
	}

	completer, err := initCompleter(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}

	deps := collector.Deps{
		Credit:  env.Credit,
		Channel: env.Channel,
		Metrics: env.Metrics,
	}

	if cfg.YouTube.Key != "" {
		yt, err := initYouTube(ctx)
		if err != nil {
			env.Close()
			return nil, err
		}
		deps.Channels = collector.NewYouTubeSource(yt, cfg.YouTube.MaxVideos)
	} else {
		zap.L().Debug("CREDIT_YOUTUBE_KEY not set, channel metrics must be supplied with each request")
	}

	var decider decision.Oracle = decision.NewRuleOracle()
	if completer != nil {
		timeout := time.Duration(cfg.Oracle.TimeoutSecs) * time.Second
		deps.BrandSafety = oracle.NewBrandSafety(completer, oracleOptions(model.BranchBrandSafety, timeout, env.Metrics)...)
		deps.Proposal = oracle.NewProposal(completer, cfg.Proposal.Dir, oracleOptions(model.BranchProposal, timeout, env.Metrics)...)

		decisionTimeout := time.Duration(cfg.Oracle.DecisionTimeoutSecs) * time.Second
		decider = oracle.NewDecision(completer, oracleOptions(oracle.DecisionOracleName, decisionTimeout, env.Metrics)...)
	} else {
		zap.L().Info("rules provider selected, brand safety and proposal scoring disabled")
	}

	coll := collector.New(collector.Config{
		BranchTimeout:  time.Duration(cfg.Collector.BranchTimeoutSecs) * time.Second,
		TrendBatchSize: cfg.Collector.TrendBatchSize,
	}, deps)
	env.Evaluator = pipeline.New(coll, decision.NewAggregator(decider), st, env.Metrics)

	loader, gcs, err := initLedger(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Ledger, env.gcs = loader, gcs

	return env, nil
}

// initScorers rejects inconsistent scorer weights and ranges before any
// request is scored.
func initScorers() (*scorer.CreditScorer, *scorer.ChannelScorer, error) {
	if err := scorer.ValidateCreditConfig(cfg.Credit); err != nil {
		return nil, nil, err
	}
	if err := scorer.ValidateChannelConfig(cfg.Channel); err != nil {
		return nil, nil, err
	}
	return scorer.NewCreditScorer(cfg.Credit), scorer.NewChannelScorer(cfg.Channel), nil
}

func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store)
}

// initCompleter returns the completion backend for the configured provider,
// or nil for the rules provider.
func initCompleter(ctx context.Context) (oracle.Completer, error) {
	switch cfg.Oracle.Provider {
	case "anthropic":
		client := anthropicpkg.NewClient(cfg.Anthropic.Key,
			anthropicpkg.WithBaseURL(cfg.Anthropic.BaseURL),
			anthropicpkg.WithMaxRetries(0),
		)
		return oracle.NewAnthropicCompleter(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens), nil
	case "gemini":
		client, err := gemini.NewClient(ctx, cfg.Gemini.Key)
		if err != nil {
			return nil, eris.Wrap(err, "init gemini")
		}
		return oracle.NewGeminiCompleter(client, cfg.Gemini.Model), nil
	case "rules":
		return nil, nil
	default:
		return nil, eris.Errorf("unsupported oracle provider: %s", cfg.Oracle.Provider)
	}
}

// oracleOptions gives each oracle its own breaker so one failing prompt does
// not trip the others.
func oracleOptions(name string, timeout time.Duration, rec *metrics.Recorder) []oracle.Option {
	return []oracle.Option{
		oracle.WithTimeout(timeout),
		oracle.WithBreaker(newOracleBreaker(name)),
		oracle.WithMetrics(rec),
	}
}

// newOracleBreaker builds a breaker from the oracle config. Transitions are
// logged by the breaker itself.
func newOracleBreaker(name string) *resilience.Breaker {
	return resilience.NewBreaker(resilience.BreakerConfigFrom(name, cfg.Oracle.BreakerThreshold, cfg.Oracle.BreakerResetSecs))
}

func initYouTube(ctx context.Context) (youtube.Client, error) {
	opts := []youtube.Option{
		youtube.WithLimiter(youtube.NewAdaptiveLimiter(rate.Limit(cfg.YouTube.RateLimit), cfg.YouTube.RateBurst)),
		youtube.WithRetry(resilience.RetryPolicyFrom(cfg.YouTube.RetryMaxAttempts, cfg.YouTube.RetryBackoffMs)),
	}
	if cfg.YouTube.BaseURL != "" {
		opts = append(opts, youtube.WithEndpoint(cfg.YouTube.BaseURL))
	}

	client, err := youtube.NewClient(ctx, cfg.YouTube.Key, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "init youtube")
	}
	if cfg.YouTube.CacheTTLMins > 0 {
		client = youtube.NewCachedClient(client, time.Duration(cfg.YouTube.CacheTTLMins)*time.Minute)
	}
	return client, nil
}

// initLedger builds a ledger loader. Object storage is only wired when
// credentials are configured; local files always work.
func initLedger(ctx context.Context) (*ledger.Loader, *ledger.GCSReader, error) {
	if cfg.Ledger.CredentialsFile == "" {
		return ledger.NewLoader(nil), nil, nil
	}
	gcs, err := ledger.NewGCSReader(ctx, option.WithCredentialsFile(cfg.Ledger.CredentialsFile))
	if err != nil {
		return nil, nil, eris.Wrap(err, "init ledger storage")
	}
	return ledger.NewLoader(gcs), gcs, nil
}
