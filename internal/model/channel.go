package model

// DefaultVideoSample is the number of recent uploads channel metrics are
// averaged over when the feed only reports totals.
const DefaultVideoSample = 50

// ChannelMetrics holds the engagement signals of a channel, aggregated over
// its most recent uploads.
type ChannelMetrics struct {
	Subscribers     int64   `json:"subscribers"`
	ViewsPerVideo   float64 `json:"viewsPerVideo"`
	EngagementRatio float64 `json:"engagementRatio"`
}

// ChannelMetricsInput is the feed encoding of channel metrics. Either
// ViewsPerVideo or TotalViews must be present; TotalViews is averaged over
// VideoCount (DefaultVideoSample when unset).
type ChannelMetricsInput struct {
	Subscribers     *int64   `json:"subscribers"`
	ViewsPerVideo   *float64 `json:"viewsPerVideo,omitempty"`
	TotalViews      *float64 `json:"totalViews,omitempty"`
	VideoCount      int      `json:"videoCount,omitempty"`
	EngagementRatio *float64 `json:"engagementRatio"`
}

// Metrics validates the input and resolves it into ChannelMetrics.
func (in ChannelMetricsInput) Metrics() (ChannelMetrics, error) {
	if in.Subscribers == nil {
		return ChannelMetrics{}, &ValidationError{Field: "channel_metrics.subscribers", Reason: "is required"}
	}
	if *in.Subscribers < 0 {
		return ChannelMetrics{}, &ValidationError{Field: "channel_metrics.subscribers", Reason: "must be >= 0"}
	}
	if in.EngagementRatio == nil {
		return ChannelMetrics{}, &ValidationError{Field: "channel_metrics.engagementRatio", Reason: "is required"}
	}
	if *in.EngagementRatio < 0 {
		return ChannelMetrics{}, &ValidationError{Field: "channel_metrics.engagementRatio", Reason: "must be >= 0"}
	}

	var views float64
	switch {
	case in.ViewsPerVideo != nil:
		views = *in.ViewsPerVideo
	case in.TotalViews != nil:
		n := in.VideoCount
		if n <= 0 {
			n = DefaultVideoSample
		}
		views = *in.TotalViews / float64(n)
	default:
		return ChannelMetrics{}, &ValidationError{Field: "channel_metrics.viewsPerVideo", Reason: "viewsPerVideo or totalViews is required"}
	}
	if views < 0 {
		return ChannelMetrics{}, &ValidationError{Field: "channel_metrics.viewsPerVideo", Reason: "must be >= 0"}
	}

	return ChannelMetrics{
		Subscribers:     *in.Subscribers,
		ViewsPerVideo:   views,
		EngagementRatio: *in.EngagementRatio,
	}, nil
}

// VideoStats are the public counters of one upload.
type VideoStats struct {
	VideoID     string `json:"video_id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Views       int64  `json:"views"`
	Likes       int64  `json:"likes"`
	Comments    int64  `json:"comments"`
}

// ChannelSnapshot is what the channel feed returns: channel-level counters
// plus the most recent uploads, newest first.
type ChannelSnapshot struct {
	ChannelID   string       `json:"channel_id"`
	Title       string       `json:"title,omitempty"`
	Subscribers int64        `json:"subscribers"`
	Videos      []VideoStats `json:"videos"`
}

// Metrics aggregates the snapshot's uploads into ChannelMetrics. Views per
// video is averaged over the uploads fetched; the engagement ratio is
// (likes + comments) / views and 0 when there are no views.
func (s ChannelSnapshot) Metrics() ChannelMetrics {
	m := ChannelMetrics{Subscribers: s.Subscribers}
	if len(s.Videos) == 0 {
		return m
	}

	var views, interactions int64
	for _, v := range s.Videos {
		views += v.Views
		interactions += v.Likes + v.Comments
	}
	m.ViewsPerVideo = float64(views) / float64(len(s.Videos))
	if views > 0 {
		m.EngagementRatio = float64(interactions) / float64(views)
	}
	return m
}

// BatchTrend holds averages for one batch of consecutive uploads and the
// growth versus the next-older batch, in percent. Growth is nil for the
// oldest batch or when the older average is zero.
type BatchTrend struct {
	From            int      `json:"from"`
	To              int      `json:"to"`
	AverageViews    float64  `json:"average_views"`
	AverageLikes    float64  `json:"average_likes"`
	AverageComments float64  `json:"average_comments"`
	ViewsGrowth     *float64 `json:"views_growth_pct,omitempty"`
	LikesGrowth     *float64 `json:"likes_growth_pct,omitempty"`
	CommentsGrowth  *float64 `json:"comments_growth_pct,omitempty"`
}

// Trend splits the uploads (newest first) into batches of size and reports
// per-batch averages with growth against the preceding, older batch.
func (s ChannelSnapshot) Trend(size int) []BatchTrend {
	if size <= 0 || len(s.Videos) == 0 {
		return nil
	}

	var out []BatchTrend
	for start := 0; start < len(s.Videos); start += size {
		end := min(start+size, len(s.Videos))
		var views, likes, comments int64
		for _, v := range s.Videos[start:end] {
			views += v.Views
			likes += v.Likes
			comments += v.Comments
		}
		n := float64(end - start)
		out = append(out, BatchTrend{
			From:            start,
			To:              end - 1,
			AverageViews:    float64(views) / n,
			AverageLikes:    float64(likes) / n,
			AverageComments: float64(comments) / n,
		})
	}

	for i := 0; i < len(out)-1; i++ {
		older := out[i+1]
		out[i].ViewsGrowth = growth(out[i].AverageViews, older.AverageViews)
		out[i].LikesGrowth = growth(out[i].AverageLikes, older.AverageLikes)
		out[i].CommentsGrowth = growth(out[i].AverageComments, older.AverageComments)
	}
	return out
}

func growth(cur, prev float64) *float64 {
	if prev == 0 {
		return nil
	}
	g := (cur - prev) / prev * 100
	return &g
}
