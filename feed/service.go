package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// A Store persists posts and the like/reaction ledger. Implementations must
// apply each toggle as a single transaction and report lost races as
// ErrConflict.
type Store interface {
	CreatePost(ctx context.Context, d Draft) (Post, error)
	GetPost(ctx context.Context, id string) (Post, error)
	ListPosts(ctx context.Context, opts ListOptions) ([]Post, error)
	SearchPosts(ctx context.Context, q SearchQuery, limit int) ([]Post, error)
	ToggleLike(ctx context.Context, postID, tokenKey string) (LikeState, error)
	ToggleReaction(ctx context.Context, postID, tokenKey string, emoji Emoji) (ReactionState, error)
	Ping(ctx context.Context) error
}

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	Timeout         time.Duration
	DefaultPageSize int
	MaxPageSize     int
	SearchLimit     int
}

const (
	defaultTimeout     = 5 * time.Second
	defaultPageSize    = 10
	defaultMaxPageSize = 50
	defaultSearchLimit = 50
)

// Service is the feed query engine and post ingestion front for a Store.
type Service struct {
	store  Store
	logger *slog.Logger
	opts   Options
}

// NewService returns a Service backed by store.
func NewService(store Store, logger *slog.Logger, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = defaultPageSize
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = defaultMaxPageSize
	}
	if opts.DefaultPageSize > opts.MaxPageSize {
		opts.DefaultPageSize = opts.MaxPageSize
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = defaultSearchLimit
	}
	return &Service{store: store, logger: logger, opts: opts}
}

// SubmitPost validates and stores a new post. The submitting client is not
// recorded anywhere on the post.
func (s *Service) SubmitPost(ctx context.Context, content, category string) (Post, error) {
	d, err := NewDraft(content, category)
	if err != nil {
		return Post{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	p, err := s.store.CreatePost(ctx, d)
	if err != nil {
		return Post{}, s.wrap("create post", err)
	}
	s.logger.Info("Post created", "post_id", p.ID, "category", p.Category)
	return p, nil
}

// GetPost returns a single post.
func (s *Service) GetPost(ctx context.Context, id string) (Post, error) {
	if id == "" {
		return Post{}, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	p, err := s.store.GetPost(ctx, id)
	if err != nil {
		return Post{}, s.wrap("get post", err)
	}
	return p, nil
}

// ListRequest is an unparsed feed page request. A zero Size selects the
// default page size.
type ListRequest struct {
	Page     int
	Size     int
	Sort     string
	Category string
}

// ListPage returns one page of the feed.
func (s *Service) ListPage(ctx context.Context, req ListRequest) (Page, error) {
	opts, err := s.listOptions(req)
	if err != nil {
		return Page{}, err
	}
	// No feed holds more than MaxInt posts, so a page whose offset does not
	// fit is past the end.
	if opts.Page > math.MaxInt/opts.Size {
		return Page{Content: []Post{}, Page: opts.Page, Size: opts.Size}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	posts, err := s.store.ListPosts(ctx, opts)
	if err != nil {
		return Page{}, s.wrap("list posts", err)
	}
	if posts == nil {
		posts = []Post{}
	}
	return Page{
		Content: posts,
		Page:    opts.Page,
		Size:    opts.Size,
		HasMore: len(posts) == opts.Size,
	}, nil
}

func (s *Service) listOptions(req ListRequest) (ListOptions, error) {
	opts := ListOptions{Page: req.Page, Size: req.Size}
	if opts.Page < 0 {
		return ListOptions{}, invalid("page", "must not be negative")
	}
	switch {
	case opts.Size == 0:
		opts.Size = s.opts.DefaultPageSize
	case opts.Size < 0:
		return ListOptions{}, invalid("size", "must be positive")
	case opts.Size > s.opts.MaxPageSize:
		opts.Size = s.opts.MaxPageSize
	}
	sort, err := ParseSortOrder(req.Sort)
	if err != nil {
		return ListOptions{}, err
	}
	opts.Sort = sort
	if req.Category != "" {
		c, err := ParseCategory(req.Category)
		if err != nil {
			return ListOptions{}, err
		}
		opts.Category = c
	}
	return opts, nil
}

// Search returns posts matching the raw query, newest first.
func (s *Service) Search(ctx context.Context, raw string) ([]Post, error) {
	q, err := ParseSearch(raw)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	posts, err := s.store.SearchPosts(ctx, q, s.opts.SearchLimit)
	if err != nil {
		return nil, s.wrap("search posts", err)
	}
	if posts == nil {
		posts = []Post{}
	}
	return posts, nil
}

// ToggleLike flips the like held by tokenKey on the post.
func (s *Service) ToggleLike(ctx context.Context, postID, tokenKey string) (LikeState, error) {
	if postID == "" {
		return LikeState{}, ErrNotFound
	}
	var st LikeState
	err := s.retry(ctx, "toggle like", func(ctx context.Context) error {
		var err error
		st, err = s.store.ToggleLike(ctx, postID, tokenKey)
		return err
	})
	if err != nil {
		return LikeState{}, s.wrap("toggle like", err)
	}
	return st, nil
}

// ToggleReaction sets, switches or clears the reaction held by tokenKey on the
// post.
func (s *Service) ToggleReaction(ctx context.Context, postID, tokenKey, emoji string) (ReactionState, error) {
	e, err := ParseEmoji(emoji)
	if err != nil {
		return ReactionState{}, err
	}
	if postID == "" {
		return ReactionState{}, ErrNotFound
	}
	var st ReactionState
	err = s.retry(ctx, "toggle reaction", func(ctx context.Context) error {
		var err error
		st, err = s.store.ToggleReaction(ctx, postID, tokenKey, e)
		return err
	})
	if err != nil {
		return ReactionState{}, s.wrap("toggle reaction", err)
	}
	return st, nil
}

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	return s.store.Ping(ctx)
}

// retry runs fn under the operation timeout and runs it once more, with a
// fresh timeout, if it lost a race.
func (s *Service) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	run := func() error {
		ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
		return fn(ctx)
	}
	err := run()
	if errors.Is(err, ErrConflict) {
		s.logger.Warn("Retrying after conflict", "op", op, "error", err.Error())
		err = run()
	}
	return err
}

func (s *Service) wrap(op string, err error) error {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict), errors.Is(err, ErrUnavailable):
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
