package redis

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/secretdrop/feed-service/feed"
)

// trendingTags converts board entries to feed tags. Scores are post counts.
func trendingTags(zs []redis.Z) []feed.TrendingTag {
	out := make([]feed.TrendingTag, 0, len(zs))
	for _, z := range zs {
		out = append(out, feed.TrendingTag{
			Tag:   fmt.Sprint(z.Member),
			Posts: int64(z.Score),
		})
	}
	return out
}

