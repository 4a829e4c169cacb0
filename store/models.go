package store

import (
	"time"

	"github.com/secretdrop/feed-service/feed"
	"github.com/uptrace/bun"
)

// A post represents a post in the database.
type post struct {
	bun.BaseModel `bun:"table:posts,alias:p"`

	ID         string    `bun:"id,pk"`
	Content    string    `bun:"content,notnull"`
	SearchText string    `bun:"search_text,notnull"`
	Category   string    `bun:"category,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	LikeCount  int       `bun:"like_count,notnull"`
}

// A postLike records that a client likes a post.
type postLike struct {
	bun.BaseModel `bun:"table:post_likes,alias:l"`

	PostID    string    `bun:"post_id,pk"`
	TokenKey  string    `bun:"token_key,pk"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// A postReaction records the single emoji a client holds on a post.
type postReaction struct {
	bun.BaseModel `bun:"table:post_reactions,alias:r"`

	PostID    string    `bun:"post_id,pk"`
	TokenKey  string    `bun:"token_key,pk"`
	Emoji     string    `bun:"emoji,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// A tally is one row of the per-post, per-emoji reaction aggregate.
type tally struct {
	PostID string `bun:"post_id"`
	Emoji  string `bun:"emoji"`
	Count  int    `bun:"n"`
}

func (p post) FeedPost(reactions map[feed.Emoji]int) feed.Post {
	if reactions == nil {
		reactions = make(map[feed.Emoji]int)
	}
	return feed.Post{
		ID:        p.ID,
		Content:   p.Content,
		Category:  feed.Category(p.Category),
		Timestamp: p.CreatedAt.UTC(),
		Likes:     p.LikeCount,
		Reactions: reactions,
	}
}
