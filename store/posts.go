package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/secretdrop/feed-service/feed"
	"github.com/uptrace/bun"
)

// CreatePost validates and inserts a post. The returned post holds the server
// assigned id and timestamp.
func (s *Store) CreatePost(ctx context.Context, d feed.Draft) (feed.Post, error) {
	d.Content = strings.TrimSpace(d.Content)
	if err := d.Validate(); err != nil {
		return feed.Post{}, err
	}
	p := &post{
		ID:         s.newID(),
		Content:    d.Content,
		SearchText: feed.Fold(d.Content),
		Category:   string(d.Category),
		CreatedAt:  s.timestamp(),
	}
	if _, err := s.bun.NewInsert().Model(p).Exec(ctx); err != nil {
		return feed.Post{}, classify(fmt.Errorf("insert: %w", err))
	}
	return p.FeedPost(nil), nil
}

// GetPost returns the post with the given id.
func (s *Store) GetPost(ctx context.Context, id string) (feed.Post, error) {
	p, err := getPost(ctx, s.bun, id)
	if err != nil {
		return feed.Post{}, classify(err)
	}
	return p, nil
}

// ListPosts returns one page of posts in the requested order.
func (s *Store) ListPosts(ctx context.Context, opts feed.ListOptions) ([]feed.Post, error) {
	var rows []post
	q := s.bun.NewSelect().
		Model(&rows).
		Limit(opts.Size).
		Offset(opts.Offset())

	if opts.Category != "" {
		q = q.Where("category = ?", string(opts.Category))
	}
	switch opts.Sort {
	case feed.SortPopular:
		q = q.Order("like_count DESC", "created_at DESC", "id DESC")
	default:
		q = q.Order("created_at DESC", "id DESC")
	}

	if err := q.Scan(ctx); err != nil {
		return nil, classify(fmt.Errorf("scan: %w", err))
	}
	return withReactions(ctx, s.bun, rows)
}

// SearchPosts returns the newest posts whose content contains q.Text or whose
// category starts with q.CategoryPrefix.
func (s *Store) SearchPosts(ctx context.Context, q feed.SearchQuery, limit int) ([]feed.Post, error) {
	var rows []post
	err := s.bun.NewSelect().
		Model(&rows).
		Where("search_text LIKE ? ESCAPE '!'", "%"+escapeLike(q.Text)+"%").
		WhereOr("category LIKE ? ESCAPE '!'", escapeLike(q.CategoryPrefix)+"%").
		Order("created_at DESC", "id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("scan: %w", err))
	}
	return withReactions(ctx, s.bun, rows)
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// escapeLike makes s match literally inside a LIKE pattern with ESCAPE '!'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func getPost(ctx context.Context, db bun.IDB, id string) (feed.Post, error) {
	var p post
	if err := db.NewSelect().Model(&p).Where("id = ?", id).Scan(ctx); err != nil {
		return feed.Post{}, fmt.Errorf("get post %s: %w", id, err)
	}
	posts, err := withReactions(ctx, db, []post{p})
	if err != nil {
		return feed.Post{}, err
	}
	return posts[0], nil
}

// withReactions converts rows to feed posts and attaches the reaction counts
// aggregated from the ledger.
func withReactions(ctx context.Context, db bun.IDB, rows []post) ([]feed.Post, error) {
	out := make([]feed.Post, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]string, len(rows))
	for i, p := range rows {
		ids[i] = p.ID
	}

	var tallies []tally
	err := db.NewSelect().
		Model((*postReaction)(nil)).
		Column("post_id", "emoji").
		ColumnExpr("COUNT(*) AS n").
		Where("post_id IN (?)", bun.In(ids)).
		Group("post_id", "emoji").
		Scan(ctx, &tallies)
	if err != nil {
		return nil, classify(fmt.Errorf("count reactions: %w", err))
	}

	byPost := make(map[string]map[feed.Emoji]int, len(rows))
	for _, t := range tallies {
		m, ok := byPost[t.PostID]
		if !ok {
			m = make(map[feed.Emoji]int)
			byPost[t.PostID] = m
		}
		m[feed.Emoji(t.Emoji)] = t.Count
	}
	for i, p := range rows {
		out[i] = p.FeedPost(byPost[p.ID])
	}
	return out, nil
}
