package api

import (
	"time"

	"github.com/secretdrop/feed-service/feed"
)

// A Post represents a post as rendered to clients.
type Post struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Category  string         `json:"category"`
	Timestamp time.Time      `json:"timestamp"`
	Likes     int            `json:"likes"`
	Reactions map[string]int `json:"reactions"`
}

// A LikedPost is a post together with the caller's like state.
type LikedPost struct {
	Post
	Liked bool `json:"liked"`
}

// A ReactedPost is a post together with the caller's current reaction, which
// is null when the caller holds none.
type ReactedPost struct {
	Post
	ActiveEmoji *string `json:"activeEmoji"`
}

// A Page is one page of the feed.
type Page struct {
	Content []Post `json:"content"`
	Page    int    `json:"page"`
	Size    int    `json:"size"`
	HasMore bool   `json:"hasMore"`
}

// A TrendingTag is a tag on the trending board.
type TrendingTag struct {
	Tag   string `json:"tag"`
	Posts int64  `json:"posts"`
}

func apiPost(p feed.Post) Post {
	reactions := make(map[string]int, len(p.Reactions))
	for e, n := range p.Reactions {
		if n > 0 {
			reactions[string(e)] = n
		}
	}
	return Post{
		ID:        p.ID,
		Content:   p.Content,
		Category:  string(p.Category),
		Timestamp: p.Timestamp.UTC(),
		Likes:     p.Likes,
		Reactions: reactions,
	}
}

func apiPosts(ps []feed.Post) []Post {
	out := make([]Post, len(ps))
	for i, p := range ps {
		out[i] = apiPost(p)
	}
	return out
}

func apiPage(p feed.Page) Page {
	return Page{
		Content: apiPosts(p.Content),
		Page:    p.Page,
		Size:    p.Size,
		HasMore: p.HasMore,
	}
}

func apiLikedPost(st feed.LikeState) LikedPost {
	return LikedPost{Post: apiPost(st.Post), Liked: st.Liked}
}

func apiReactedPost(st feed.ReactionState) ReactedPost {
	out := ReactedPost{Post: apiPost(st.Post)}
	if st.Active != "" {
		e := string(st.Active)
		out.ActiveEmoji = &e
	}
	return out
}

func apiTrending(tags []feed.TrendingTag) []TrendingTag {
	out := make([]TrendingTag, len(tags))
	for i, t := range tags {
		out[i] = TrendingTag{Tag: t.Tag, Posts: t.Posts}
	}
	return out
}
