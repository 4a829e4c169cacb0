package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/secretdrop/feed-service/api/validator"
	"github.com/secretdrop/feed-service/feed"
	"github.com/secretdrop/feed-service/token"
)

// A Feed provides the post feed and the like/reaction ledger.
type Feed interface {
	SubmitPost(ctx context.Context, content, category string) (feed.Post, error)
	GetPost(ctx context.Context, id string) (feed.Post, error)
	ListPage(ctx context.Context, req feed.ListRequest) (feed.Page, error)
	Search(ctx context.Context, q string) ([]feed.Post, error)
	ToggleLike(ctx context.Context, postID, tokenKey string) (feed.LikeState, error)
	ToggleReaction(ctx context.Context, postID, tokenKey, emoji string) (feed.ReactionState, error)
	Ping(ctx context.Context) error
}

// A Cache keeps the trending tag board.
type Cache interface {
	RecordPost(ctx context.Context, p feed.Post) error
	Trending(ctx context.Context, limit int) ([]feed.TrendingTag, error)
}

// A Limiter decides whether a client may submit another post.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// API provides the REST endpoints for the application.
type API struct {
	Logger *slog.Logger
	Feed   Feed
	Tokens *token.Hasher
	Val    *validator.Validator

	// Cache and Limiter are optional.
	Cache   Cache
	Limiter Limiter

	// TokenHeader names the header carrying the client token. Defaults to
	// token.DefaultHeader.
	TokenHeader string

	once    sync.Once
	handler http.Handler
}

const (
	defaultTrendingLimit = 10
	maxTrendingLimit     = 50
	maxBodyBytes         = 1 << 16

	// cacheTimeout bounds the trending update made while a new post's
	// response is held.
	cacheTimeout = 500 * time.Millisecond
)

func (a *API) setupRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/posts", a.listPosts)
	mux.HandleFunc("POST /api/posts", a.createPost)
	mux.HandleFunc("GET /api/posts/search", a.searchPosts)
	mux.HandleFunc("GET /api/posts/trending", a.trending)
	mux.HandleFunc("GET /api/posts/health", a.health)
	mux.HandleFunc("GET /api/posts/{postID}", a.getPost)
	mux.HandleFunc("POST /api/posts/{postID}/like", a.toggleLike)
	mux.HandleFunc("POST /api/posts/{postID}/react", a.toggleReaction)

	if a.Val == nil {
		a.Val = validator.New()
	}
	if a.TokenHeader == "" {
		a.TokenHeader = token.DefaultHeader
	}
	a.handler = a.logRequests(a.recoverPanics(mux))
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.once.Do(a.setupRoutes)
	a.handler.ServeHTTP(w, r)
}

func (a *API) respond(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.log(r).Error("Could not encode JSON body", "error", err.Error())
	}
}

func (a *API) respondError(w http.ResponseWriter, r *http.Request, status int, err error, msg string) {
	type response struct {
		Error string `json:"error"`
	}
	a.log(r).Error("Error", "status", status, "error", err.Error())
	a.respond(w, r, status, response{Error: msg})
}

func (a *API) respondValidation(w http.ResponseWriter, r *http.Request, errs []validator.ValidationError) {
	type response struct {
		Errors []validator.ValidationError `json:"errors"`
	}
	a.log(r).Error("Error", "status", http.StatusBadRequest, "errors", errs)
	a.respond(w, r, http.StatusBadRequest, response{Errors: errs})
}

// fail responds with the status matching err's kind. msg is used for errors
// that do not carry a message of their own.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var verr *feed.ValidationError
	switch {
	case errors.As(err, &verr):
		a.respondValidation(w, r, []validator.ValidationError{{Field: verr.Field, Message: verr.Message}})
	case errors.Is(err, feed.ErrValidation):
		a.respondError(w, r, http.StatusBadRequest, err, msg)
	case errors.Is(err, feed.ErrNotFound):
		a.respondError(w, r, http.StatusNotFound, err, "Post not found")
	case errors.Is(err, feed.ErrConflict):
		a.respondError(w, r, http.StatusConflict, err, "Post was updated concurrently, please retry")
	case errors.Is(err, feed.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		a.respondError(w, r, http.StatusServiceUnavailable, err, "Service unavailable")
	default:
		a.respondError(w, r, http.StatusInternalServerError, err, msg)
	}
}

// decodeBody reads a JSON body into dst and validates it. It responds and
// returns false when the body is unusable.
func (a *API) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		a.respondError(w, r, http.StatusBadRequest, err, "Could not decode request body")
		return false
	}
	if err := r.Body.Close(); err != nil {
		a.respondError(w, r, http.StatusInternalServerError, err, "Could not close request body")
		return false
	}
	if errs := a.Val.ValidateStruct(dst); len(errs) > 0 {
		a.respondValidation(w, r, errs)
		return false
	}
	return true
}

// clientKey returns the ledger key for the request's client token.
func (a *API) clientKey(w http.ResponseWriter, r *http.Request) (token.Key, bool) {
	key, err := a.Tokens.Key(r.Header.Get(a.TokenHeader))
	switch {
	case errors.Is(err, token.ErrMissing):
		a.respondError(w, r, http.StatusBadRequest, err, "Missing "+a.TokenHeader+" header")
		return "", false
	case errors.Is(err, token.ErrMalformed):
		a.respondError(w, r, http.StatusBadRequest, err, "Malformed "+a.TokenHeader+" header")
		return "", false
	case err != nil:
		a.respondError(w, r, http.StatusInternalServerError, err, "Could not read client token")
		return "", false
	}
	return key, true
}

// limiterKey identifies the client for rate limiting: by token when one is
// sent, otherwise by remote address.
func (a *API) limiterKey(r *http.Request) string {
	if raw := r.Header.Get(a.TokenHeader); raw != "" {
		if key, err := a.Tokens.Key(raw); err == nil {
			return "token:" + string(key)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (int, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, true, &feed.ValidationError{Field: name, Message: "must be an integer"}
	}
	return n, true, nil
}

func (a *API) listPosts(w http.ResponseWriter, r *http.Request) {
	page, _, err := queryInt(r, "page")
	if err != nil {
		a.fail(w, r, err, "Invalid page")
		return
	}
	size, set, err := queryInt(r, "size")
	if err != nil {
		a.fail(w, r, err, "Invalid size")
		return
	}
	if set && size <= 0 {
		a.fail(w, r, &feed.ValidationError{Field: "size", Message: "must be positive"}, "Invalid size")
		return
	}

	q := r.URL.Query()
	res, err := a.Feed.ListPage(r.Context(), feed.ListRequest{
		Page:     page,
		Size:     size,
		Sort:     q.Get("sort"),
		Category: q.Get("category"),
	})
	if err != nil {
		a.fail(w, r, err, "Could not list posts")
		return
	}
	a.respond(w, r, http.StatusOK, apiPage(res))
}

func (a *API) createPost(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Content  string `json:"content" validate:"required"`
		Category string `json:"category" validate:"required,category"`
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}

	if a.Limiter != nil && !a.Limiter.Allow(r.Context(), a.limiterKey(r)) {
		a.respondError(w, r, http.StatusTooManyRequests, errors.New("rate limited"), "Too many posts, please slow down")
		return
	}

	p, err := a.Feed.SubmitPost(r.Context(), body.Content, body.Category)
	if err != nil {
		a.fail(w, r, err, "Could not create post")
		return
	}

	if a.Cache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), cacheTimeout)
		if err := a.Cache.RecordPost(ctx, p); err != nil {
			a.log(r).Error("Could not record trending tags", "post_id", p.ID, "error", err.Error())
		}
		cancel()
	}

	a.respond(w, r, http.StatusCreated, apiPost(p))
}

func (a *API) getPost(w http.ResponseWriter, r *http.Request) {
	p, err := a.Feed.GetPost(r.Context(), r.PathValue("postID"))
	if err != nil {
		a.fail(w, r, err, "Could not get post")
		return
	}
	a.respond(w, r, http.StatusOK, apiPost(p))
}

func (a *API) searchPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := a.Feed.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		a.fail(w, r, err, "Could not search posts")
		return
	}
	a.respond(w, r, http.StatusOK, apiPosts(posts))
}

func (a *API) trending(w http.ResponseWriter, r *http.Request) {
	limit, set, err := queryInt(r, "limit")
	if err != nil {
		a.fail(w, r, err, "Invalid limit")
		return
	}
	switch {
	case !set:
		limit = defaultTrendingLimit
	case limit <= 0:
		a.fail(w, r, &feed.ValidationError{Field: "limit", Message: "must be positive"}, "Invalid limit")
		return
	case limit > maxTrendingLimit:
		limit = maxTrendingLimit
	}

	out := []TrendingTag{}
	if a.Cache != nil {
		tags, err := a.Cache.Trending(r.Context(), limit)
		if err != nil {
			a.log(r).Error("Could not load trending tags", "error", err.Error())
		} else {
			out = apiTrending(tags)
		}
	}
	a.respond(w, r, http.StatusOK, out)
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	if err := a.Feed.Ping(r.Context()); err != nil {
		a.log(r).Error("Health check failed", "error", err.Error())
		a.respond(w, r, http.StatusServiceUnavailable, response{Status: "unavailable"})
		return
	}
	a.respond(w, r, http.StatusOK, response{Status: "ok"})
}

func (a *API) toggleLike(w http.ResponseWriter, r *http.Request) {
	key, ok := a.clientKey(w, r)
	if !ok {
		return
	}
	st, err := a.Feed.ToggleLike(r.Context(), r.PathValue("postID"), string(key))
	if err != nil {
		a.fail(w, r, err, "Could not toggle like")
		return
	}
	a.respond(w, r, http.StatusOK, apiLikedPost(st))
}

func (a *API) toggleReaction(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Emoji string `json:"emoji" validate:"required,emoji"`
	}

	key, ok := a.clientKey(w, r)
	if !ok {
		return
	}
	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}
	st, err := a.Feed.ToggleReaction(r.Context(), r.PathValue("postID"), string(key), body.Emoji)
	if err != nil {
		a.fail(w, r, err, "Could not toggle reaction")
		return
	}
	a.respond(w, r, http.StatusOK, apiReactedPost(st))
}
