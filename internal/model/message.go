package model

import "time"

// Message is one entry in a room's append-only log. Immutable once written
// except for body/edited_at (author edit) and the deleted flag.
type Message struct {
	ID         string     `json:"id"`
	RoomID     string     `json:"room_id"`
	AuthorID   string     `json:"author_id"`
	AuthorName string     `json:"author_name"`
	Body       string     `json:"body"`
	CreatedAt  time.Time  `json:"created_at"`
	EditedAt   *time.Time `json:"edited_at,omitempty"`
	Deleted    bool       `json:"deleted,omitempty"`
}

// ConversationThread is the denormalized inbox row for a direct conversation.
// Upserted on every direct message; created lazily on the first one.
type ConversationThread struct {
	ThreadKey    string    `json:"thread_key"`
	UserA        string    `json:"user_a"`
	UserB        string    `json:"user_b"`
	LastBody     string    `json:"last_body"`
	LastAuthorID string    `json:"last_author_id"`
	UpdatedAt    time.Time `json:"updated_at"`
}
