package model

import "errors"

// ContentKind identifies which content collection a parent record lives in.
// Closed set: every kind maps to exactly one table, so a typo in a caller
// surfaces as ErrUnknownKind instead of silently targeting nothing.
type ContentKind string

const (
	KindPost               ContentKind = "post"
	KindHealthPost         ContentKind = "health_post"
	KindRecipePost         ContentKind = "recipe_post"
	KindMarketplaceListing ContentKind = "marketplace_listing"
	KindKaraokePost        ContentKind = "karaoke_post"
	KindPhilosophyPost     ContentKind = "philosophy_post"
)

var ErrUnknownKind = errors.New("unknown content kind")

// ParseContentKind validates a kind string against the closed set.
func ParseContentKind(s string) (ContentKind, error) {
	switch k := ContentKind(s); k {
	case KindPost, KindHealthPost, KindRecipePost, KindMarketplaceListing, KindKaraokePost, KindPhilosophyPost:
		return k, nil
	}
	return "", ErrUnknownKind
}

// CounterField names a denormalized aggregate on a content record.
type CounterField string

const (
	FieldCommentCount CounterField = "comment_count"
	FieldLikeCount    CounterField = "like_count"
)

// EngagementCounters is the denormalized engagement state of one content
// item. LikedBy doubles as the dedup guard and the toggle state for likes;
// LikeCount must always equal len(LikedBy).
type EngagementCounters struct {
	CommentCount int      `json:"comment_count"`
	LikeCount    int      `json:"like_count"`
	LikedBy      []string `json:"liked_by"`
}
