package model

import "time"

// Comment is a first-level comment on a content item. ParentKind may be
// empty on rows that predate the kind tagging migration; readers treat an
// absent tag as "assume the caller's requested kind".
type Comment struct {
	ID         string      `json:"id"`
	ParentKind ContentKind `json:"parent_kind,omitempty"`
	ParentID   string      `json:"parent_id"`
	AuthorID   string      `json:"author_id"`
	Body       string      `json:"body"`
	CreatedAt  time.Time   `json:"created_at"`
}

// CommentThread is a comment with its replies, ready to render.
type CommentThread struct {
	Comment Comment `json:"comment"`
	Replies []Reply `json:"replies"`
}

// Reply is a second-level comment attached to a Comment. Replies do not
// carry their own counter on the parent content item.
type Reply struct {
	ID        string    `json:"id"`
	CommentID string    `json:"comment_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
