package feed

import "time"

// A Category groups posts for browsing.
type Category string

// Categories offered by the client.
const (
	Life       Category = "life"
	Love       Category = "love"
	Anxiety    Category = "anxiety"
	Social     Category = "social"
	Loneliness Category = "loneliness"
	Validation Category = "validation"
)

// Categories lists every accepted category in display order.
var Categories = []Category{Life, Love, Anxiety, Social, Loneliness, Validation}

// An Emoji is one of the reactions a client can attach to a post.
type Emoji string

// Reactions offered by the client.
const (
	Laugh    Emoji = "😂"
	Cry      Emoji = "😢"
	Flushed  Emoji = "😳"
	Heart    Emoji = "❤️"
	Fire     Emoji = "🔥"
	bareHeart      = "❤"
)

// Emojis lists every accepted reaction.
var Emojis = []Emoji{Laugh, Cry, Flushed, Heart, Fire}

// SortOrder selects the ordering of a feed listing.
type SortOrder string

const (
	// SortRecent orders by creation time, newest first.
	SortRecent SortOrder = "recent"
	// SortPopular orders by like count, then creation time.
	SortPopular SortOrder = "popular"
)

// A Post is an anonymous confession. Likes and Reactions are derived from the
// ledger and are never written directly.
type Post struct {
	ID        string
	Content   string
	Category  Category
	Timestamp time.Time
	Likes     int
	Reactions map[Emoji]int
}

// A Draft is a post that has not been stored yet.
type Draft struct {
	Content  string
	Category Category
}

// ListOptions selects one page of the feed.
type ListOptions struct {
	Page     int
	Size     int
	Sort     SortOrder
	Category Category // empty means all categories
}

// Offset returns the number of posts skipped before this page.
func (o ListOptions) Offset() int {
	return o.Page * o.Size
}

// A Page wraps a feed listing. HasMore is advisory: it is true whenever the page
// is full, including when the last page happens to be exactly full.
type Page struct {
	Content []Post
	Page    int
	Size    int
	HasMore bool
}

// SearchQuery is a parsed search request.
type SearchQuery struct {
	// Text is the folded query matched as a substring of post content.
	Text string
	// CategoryPrefix is matched against the start of the category.
	CategoryPrefix string
}

// LikeState is the result of toggling a like.
type LikeState struct {
	Post  Post
	Liked bool
}

// ReactionState is the result of toggling a reaction. Active is empty when the
// token holds no reaction on the post.
type ReactionState struct {
	Post   Post
	Active Emoji
}

// A TrendingTag is a hashtag and the number of posts that used it.
type TrendingTag struct {
	Tag   string
	Posts int64
}
