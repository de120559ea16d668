package model

import "time"

// Notification is a broadcast feed entry. IsRead is one shared flag for all
// viewers: marking all read affects everyone. Intentional for this small
// broadcast feed; per-recipient receipts would need a join table keyed by
// (notification_id, user_id).
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Category  string    `json:"category"`
	SourceRef string    `json:"source_ref,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// PushSubscription is a browser Web Push subscription.
type PushSubscription struct {
	UserID   string `json:"user_id"`
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}
