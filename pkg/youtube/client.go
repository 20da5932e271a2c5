// Package youtube fetches channel and recent-upload statistics from the
// YouTube Data API.
package youtube

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/sells-group/creator-credit/internal/resilience"
)

// MaxVideosPerPage is the largest page the search endpoint returns.
const MaxVideosPerPage = 50

// ErrChannelNotFound is returned when the channel ID matches no channel.
var ErrChannelNotFound = eris.New("youtube: channel not found")

// Client fetches channel statistics.
type Client interface {
	Channel(ctx context.Context, channelID string, maxVideos int) (*Channel, error)
}

// Channel holds channel-level counters and the most recent uploads, newest
// first.
type Channel struct {
	ID                string
	Title             string
	Subscribers       int64
	HiddenSubscribers bool
	Videos            []Video
}

// Video holds the public counters of one upload.
type Video struct {
	ID          string
	Title       string
	Description string
	Views       int64
	Likes       int64
	Comments    int64
}

// Option configures the client.
type Option func(*apiClient)

// WithEndpoint overrides the API endpoint, e.g. for tests.
func WithEndpoint(url string) Option {
	return func(c *apiClient) {
		c.endpoint = url
	}
}

// WithLimiter sets the request rate limiter.
func WithLimiter(l *AdaptiveLimiter) Option {
	return func(c *apiClient) {
		c.limiter = l
	}
}

// WithRetry sets the retry policy for read calls.
func WithRetry(p resilience.RetryPolicy) Option {
	return func(c *apiClient) {
		c.retry = p
	}
}

type apiClient struct {
	svc      *yt.Service
	endpoint string
	limiter  *AdaptiveLimiter
	retry    resilience.RetryPolicy
}

// NewClient creates a YouTube Data API client authenticated with an API key.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (Client, error) {
	c := &apiClient{
		limiter: NewAdaptiveLimiter(5, 5),
		retry:   resilience.RetryPolicyFrom(3, 500),
	}
	for _, o := range opts {
		o(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.LogRetry("youtube", "read")
	}

	svcOpts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if c.endpoint != "" {
		svcOpts = append(svcOpts, option.WithEndpoint(c.endpoint))
	}
	svc, err := yt.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "youtube: create service")
	}
	c.svc = svc
	return c, nil
}

func (c *apiClient) Channel(ctx context.Context, channelID string, maxVideos int) (*Channel, error) {
	if maxVideos <= 0 || maxVideos > MaxVideosPerPage {
		maxVideos = MaxVideosPerPage
	}

	chResp, err := call(ctx, c, func(ctx context.Context) (*yt.ChannelListResponse, error) {
		return c.svc.Channels.List([]string{"snippet", "statistics"}).Id(channelID).Context(ctx).Do()
	})
	if err != nil {
		return nil, eris.Wrapf(err, "youtube: list channel %s", channelID)
	}
	if len(chResp.Items) == 0 {
		return nil, eris.Wrapf(ErrChannelNotFound, "youtube: channel %s", channelID)
	}

	item := chResp.Items[0]
	out := &Channel{ID: item.Id}
	if item.Snippet != nil {
		out.Title = item.Snippet.Title
	}
	if item.Statistics != nil {
		out.Subscribers = int64(item.Statistics.SubscriberCount)
		out.HiddenSubscribers = item.Statistics.HiddenSubscriberCount
	}

	searchResp, err := call(ctx, c, func(ctx context.Context) (*yt.SearchListResponse, error) {
		return c.svc.Search.List([]string{"id"}).
			ChannelId(channelID).
			Order("date").
			Type("video").
			MaxResults(int64(maxVideos)).
			Context(ctx).
			Do()
	})
	if err != nil {
		return nil, eris.Wrapf(err, "youtube: search uploads %s", channelID)
	}

	ids := make([]string, 0, len(searchResp.Items))
	for _, it := range searchResp.Items {
		if it.Id != nil && it.Id.VideoId != "" {
			ids = append(ids, it.Id.VideoId)
		}
	}
	if len(ids) == 0 {
		return out, nil
	}

	videoResp, err := call(ctx, c, func(ctx context.Context) (*yt.VideoListResponse, error) {
		return c.svc.Videos.List([]string{"snippet", "statistics"}).Id(ids...).Context(ctx).Do()
	})
	if err != nil {
		return nil, eris.Wrapf(err, "youtube: list videos %s", channelID)
	}

	byID := make(map[string]*yt.Video, len(videoResp.Items))
	for _, v := range videoResp.Items {
		byID[v.Id] = v
	}
	// Keep search order (newest first); skip videos the API no longer returns.
	for _, id := range ids {
		v, ok := byID[id]
		if !ok {
			continue
		}
		video := Video{ID: id}
		if v.Snippet != nil {
			video.Title = v.Snippet.Title
			video.Description = v.Snippet.Description
		}
		if v.Statistics != nil {
			video.Views = int64(v.Statistics.ViewCount)
			video.Likes = int64(v.Statistics.LikeCount)
			video.Comments = int64(v.Statistics.CommentCount)
		}
		out.Videos = append(out.Videos, video)
	}

	zap.L().Debug("youtube: channel fetched",
		zap.String("channel_id", channelID),
		zap.Int64("subscribers", out.Subscribers),
		zap.Int("videos", len(out.Videos)),
	)
	return out, nil
}

// call rate-limits and retries one read. Transient API statuses are retried;
// a 429 also slows the limiter.
func call[T any](ctx context.Context, c *apiClient, fn func(ctx context.Context) (T, error)) (T, error) {
	return resilience.Retry(ctx, c.retry, func(ctx context.Context) (T, error) {
		var zero T
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, eris.Wrap(err, "youtube: rate limiter")
		}

		val, err := fn(ctx)
		if err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) {
				if apiErr.Code == 429 {
					c.limiter.OnRateLimit()
				}
				if resilience.IsTransientStatus(apiErr.Code) {
					return zero, resilience.NewTransientError(err, apiErr.Code)
				}
			}
			return zero, err
		}
		c.limiter.OnSuccess()
		return val, nil
	})
}
