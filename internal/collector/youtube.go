package collector

import (
	"context"

	"github.com/sells-group/creator-credit/internal/model"
	"github.com/sells-group/creator-credit/pkg/youtube"
)

// YouTubeSource adapts a youtube.Client to ChannelSource.
type YouTubeSource struct {
	client    youtube.Client
	maxVideos int
}

// NewYouTubeSource fetches up to maxVideos recent uploads per snapshot.
func NewYouTubeSource(client youtube.Client, maxVideos int) *YouTubeSource {
	if maxVideos <= 0 {
		maxVideos = model.DefaultVideoSample
	}
	return &YouTubeSource{client: client, maxVideos: maxVideos}
}

// Snapshot implements ChannelSource.
func (s *YouTubeSource) Snapshot(ctx context.Context, channelID string) (*model.ChannelSnapshot, error) {
	ch, err := s.client.Channel(ctx, channelID, s.maxVideos)
	if err != nil {
		return nil, err
	}

	snap := &model.ChannelSnapshot{
		ChannelID:   ch.ID,
		Title:       ch.Title,
		Subscribers: ch.Subscribers,
		Videos:      make([]model.VideoStats, 0, len(ch.Videos)),
	}
	for _, v := range ch.Videos {
		snap.Videos = append(snap.Videos, model.VideoStats{
			VideoID:     v.ID,
			Title:       v.Title,
			Description: v.Description,
			Views:       v.Views,
			Likes:       v.Likes,
			Comments:    v.Comments,
		})
	}
	return snap, nil
}
