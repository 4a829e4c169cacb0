package feed

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxContentLength is the maximum post length in Unicode code points.
	MaxContentLength = 280
	// MinQueryLength is the shortest accepted search query in code points.
	MinQueryLength = 2
)

// ParseCategory returns the category named by s, ignoring case and surrounding
// whitespace.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", invalid("category", "unknown category %q", s)
}

// ParseEmoji returns the reaction named by s. A heart without the emoji
// variation selector is accepted as Heart.
func ParseEmoji(s string) (Emoji, error) {
	s = strings.TrimSpace(s)
	if s == bareHeart {
		return Heart, nil
	}
	for _, known := range Emojis {
		if Emoji(s) == known {
			return known, nil
		}
	}
	return "", invalid("emoji", "unsupported reaction %q", s)
}

// ParseSortOrder returns the sort order named by s. The empty string selects
// SortRecent.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortRecent:
		return SortRecent, nil
	case SortPopular:
		return SortPopular, nil
	}
	return "", invalid("sort", "unknown sort order %q", s)
}

// NewDraft trims content, resolves the category and validates the result.
func NewDraft(content, category string) (Draft, error) {
	c, err := ParseCategory(category)
	if err != nil {
		return Draft{}, err
	}
	d := Draft{Content: strings.TrimSpace(content), Category: c}
	if err := d.Validate(); err != nil {
		return Draft{}, err
	}
	return d, nil
}

// Validate checks the content length and the category.
func (d Draft) Validate() error {
	n := utf8.RuneCountInString(strings.TrimSpace(d.Content))
	switch {
	case n == 0:
		return invalid("content", "must not be empty")
	case n > MaxContentLength:
		return invalid("content", "must be at most %d characters, got %d", MaxContentLength, n)
	}
	if _, err := ParseCategory(string(d.Category)); err != nil {
		return err
	}
	return nil
}

// ParseSearch parses a raw search query. Queries shorter than MinQueryLength
// are rejected rather than answered with an empty result.
func ParseSearch(raw string) (SearchQuery, error) {
	q := Fold(strings.TrimSpace(raw))
	if utf8.RuneCountInString(q) < MinQueryLength {
		return SearchQuery{}, invalid("q", "must be at least %d characters", MinQueryLength)
	}
	prefix := strings.TrimPrefix(q, "#")
	if prefix == "" {
		prefix = q
	}
	return SearchQuery{Text: q, CategoryPrefix: prefix}, nil
}

// Fold normalizes s for case-insensitive comparison.
func Fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

var hashtagRE = regexp.MustCompile(`#[\p{L}\p{N}_]+`)

// Hashtags returns the distinct folded hashtags in content, in order of first
// appearance.
func Hashtags(content string) []string {
	matches := hashtagRE.FindAllString(Fold(content), -1)
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// Tags returns the trending tags a post contributes to: its category followed
// by the hashtags in its content.
func (p Post) Tags() []string {
	tags := []string{"#" + string(p.Category)}
	for _, h := range Hashtags(p.Content) {
		if h != tags[0] {
			tags = append(tags, h)
		}
	}
	return tags
}
