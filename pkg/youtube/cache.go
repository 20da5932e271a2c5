package youtube

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/patrickmn/go-cache"
)

type cachedClient struct {
	inner Client
	cache *cache.Cache
}

// NewCachedClient wraps inner with an in-memory cache keyed by channel and
// page size. Errors are not cached.
func NewCachedClient(inner Client, ttl time.Duration) Client {
	return &cachedClient{
		inner: inner,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *cachedClient) Channel(ctx context.Context, channelID string, maxVideos int) (*Channel, error) {
	key := fmt.Sprintf("%s:%d", channelID, maxVideos)
	if v, ok := c.cache.Get(key); ok {
		return clone(v.(*Channel)), nil
	}

	ch, err := c.inner.Channel(ctx, channelID, maxVideos)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, clone(ch))
	return ch, nil
}

func clone(ch *Channel) *Channel {
	cp := *ch
	cp.Videos = slices.Clone(ch.Videos)
	return &cp
}
