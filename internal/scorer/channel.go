package scorer

import (
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/creator-credit/internal/config"
	"github.com/sells-group/creator-credit/internal/model"
)

// ChannelScorer scores channel engagement against reference "high" values.
type ChannelScorer struct {
	cfg config.ChannelConfig
}

// NewChannelScorer creates a channel scorer. Zero-valued config fields fall
// back to DefaultChannelConfig.
func NewChannelScorer(cfg config.ChannelConfig) *ChannelScorer {
	def := DefaultChannelConfig()
	if cfg.MaxSubscribers == 0 && cfg.MaxViewsPerVideo == 0 && cfg.MaxEngagementRatio == 0 {
		cfg.MaxSubscribers = def.MaxSubscribers
		cfg.MaxViewsPerVideo = def.MaxViewsPerVideo
		cfg.MaxEngagementRatio = def.MaxEngagementRatio
	}
	if ChannelWeightSum(cfg) == 0 {
		cfg.SubscribersWeight = def.SubscribersWeight
		cfg.ViewsWeight = def.ViewsWeight
		cfg.EngagementWeight = def.EngagementWeight
	}
	if cfg.MaxBoost < 1 {
		cfg.MaxBoost = def.MaxBoost
	}
	if cfg.SanityMin <= 0 || cfg.SanityMax < cfg.SanityMin {
		cfg.SanityMin, cfg.SanityMax = def.SanityMin, def.SanityMax
	}
	return &ChannelScorer{cfg: cfg}
}

// Evaluate returns a score in [0,10]; 0 is a channel at or above every
// reference, 10 a channel with no audience.
func (s *ChannelScorer) Evaluate(m model.ChannelMetrics) float64 {
	subs := math.Max(float64(m.Subscribers), 0)
	views := math.Max(m.ViewsPerVideo, 0)
	engagement := math.Max(m.EngagementRatio, 0)

	total := ChannelWeightSum(s.cfg)
	if total <= 0 {
		return 10
	}

	modifier := s.overperformanceModifier(subs, views, engagement) * s.sanityFactor(subs, views)

	subsNorm := NormalizeLog(subs, s.cfg.MaxSubscribers)
	viewsNorm := NormalizeLog(views, s.cfg.MaxViewsPerVideo)
	var engNorm float64
	if s.cfg.MaxEngagementRatio > 0 {
		engNorm = math.Min(engagement/s.cfg.MaxEngagementRatio, 1)
	}

	weighted := s.cfg.SubscribersWeight*subsNorm +
		s.cfg.ViewsWeight*viewsNorm +
		s.cfg.EngagementWeight*engNorm
	avg := math.Min(weighted*modifier/total, 1)
	if math.IsNaN(avg) {
		avg = 0
	}

	score := 10 - avg*10

	zap.L().Debug("scorer: channel evaluated",
		zap.Float64("score", score),
		zap.Float64("modifier", modifier),
		zap.Int64("subscribers", m.Subscribers),
	)
	return score
}

// overperformanceModifier multiplies in a bounded boost for every metric
// above its reference. Metrics at or below their reference leave it at 1.
func (s *ChannelScorer) overperformanceModifier(subs, views, engagement float64) float64 {
	mod := 1.0
	for _, p := range [][2]float64{
		{subs, s.cfg.MaxSubscribers},
		{views, s.cfg.MaxViewsPerVideo},
		{engagement, s.cfg.MaxEngagementRatio},
	} {
		if p[1] > 0 && p[0] > p[1] {
			mod *= math.Min(p[0]/p[1], s.cfg.MaxBoost)
		}
	}
	return mod
}

// sanityFactor compares views per video to the subscriber base. A channel
// with no subscribers gets the lower bound.
func (s *ChannelScorer) sanityFactor(subs, views float64) float64 {
	if subs <= 0 {
		return s.cfg.SanityMin
	}
	return clamp(views*2/subs, s.cfg.SanityMin, s.cfg.SanityMax)
}
