// Package redis keeps the trending tag board and per-client rate limit
// buckets in Redis.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/secretdrop/feed-service/feed"
)

// Redis keeps the trending tag board and rate limit buckets in Redis.
type Redis struct {
	cli      *redis.Client
	maxTrend int
}

// Options configure the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int

	// MaxTrending bounds the number of tags kept on the trending board.
	MaxTrending int
}

const (
	trendingKey     = "trending"
	defaultMaxTrend = 100
)

// Connect connects to the Redis server and pings the server to ensure the
// connection is working.
func Connect(ctx context.Context, opts Options) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		cli.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	maxTrend := opts.MaxTrending
	if maxTrend <= 0 {
		maxTrend = defaultMaxTrend
	}
	return &Redis{
		cli:      cli,
		maxTrend: maxTrend,
	}, nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.cli.Close()
}

// RecordPost counts the post towards each of its tags on the trending board.
// The board is trimmed to the most used tags in the same transaction.
func (r *Redis) RecordPost(ctx context.Context, p feed.Post) error {
	tags := p.Tags()
	if len(tags) == 0 {
		return nil
	}
	_, err := r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, tag := range tags {
			pipe.ZIncrBy(ctx, trendingKey, 1, tag)
		}
		// Simulate an eviction strategy by dropping the least used tags once
		// the board is full.
		pipe.ZRemRangeByRank(ctx, trendingKey, 0, int64(-r.maxTrend-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("record post %s: %w", p.ID, err)
	}
	return nil
}

// Trending returns up to limit tags, most used first.
func (r *Redis) Trending(ctx context.Context, limit int) ([]feed.TrendingTag, error) {
	if limit <= 0 {
		return []feed.TrendingTag{}, nil
	}
	vals, err := r.cli.ZRevRangeWithScores(ctx, trendingKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange: %w", err)
	}
	return trendingTags(vals), nil
}
