// Package storage declares the store contracts the social core runs on.
// Implementations: repository (Postgres, durable), storage/redis (presence
// leases and fan-out signals), storage/memory (-dev mode and unit tests).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/agora/internal/model"
)

var ErrNotFound = errors.New("not found")

// MessageStore is the append-only room log plus the denormalized direct
// thread index. ListRoom may return rows in any order: presentation order is
// always reconstructed by the consumer from CreatedAt.
type MessageStore interface {
	Append(ctx context.Context, m *model.Message) error
	ListRoom(ctx context.Context, roomID string) ([]model.Message, error)
	Get(ctx context.Context, id string) (*model.Message, error)
	UpdateBody(ctx context.Context, id, body string, editedAt time.Time) error
	Delete(ctx context.Context, id string) error

	UpsertThread(ctx context.Context, t *model.ConversationThread) error
	ListThreads(ctx context.Context, userID string) ([]model.ConversationThread, error)
}

// PresenceStore holds online leases. Renew is an idempotent upsert keyed by
// user id; a lease older than its TTL counts as absent whether or not Sweep
// has removed it yet.
type PresenceStore interface {
	Renew(ctx context.Context, rec model.PresenceRecord, ttl time.Duration) error
	Remove(ctx context.Context, userID string) error
	ListOnline(ctx context.Context) ([]model.PresenceRecord, error)
	Sweep(ctx context.Context) (int, error)
}

// ContentStore mutates denormalized engagement counters on content records.
// AdjustCounter and ToggleLike must be atomic at the storage layer; racing
// callers on the same record are the common case, not an edge case.
type ContentStore interface {
	AdjustCounter(ctx context.Context, kind model.ContentKind, id string, field model.CounterField, delta int) error
	// ToggleLike flips userID's membership in liked_by and moves like_count
	// in the same atomic step; returns the new liked state.
	ToggleLike(ctx context.Context, kind model.ContentKind, id, userID string) (bool, error)
	Counters(ctx context.Context, kind model.ContentKind, id string) (*model.EngagementCounters, error)
	SetCommentCount(ctx context.Context, kind model.ContentKind, id string, n int) error
}

// CommentStore is the two-level comment/reply graph shared by all content
// kinds. List and Count treat rows with an empty parent kind tag as
// belonging to the requested kind (legacy rows predate the tag).
type CommentStore interface {
	CreateComment(ctx context.Context, c *model.Comment) error
	CreateReply(ctx context.Context, r *model.Reply) error
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	// DeleteCommentCascade removes the comment and all of its replies;
	// returns the number of replies removed.
	DeleteCommentCascade(ctx context.Context, id string) (int, error)
	ListComments(ctx context.Context, kind model.ContentKind, parentID string) ([]model.Comment, error)
	ListReplies(ctx context.Context, commentID string) ([]model.Reply, error)
	CountComments(ctx context.Context, kind model.ContentKind, parentID string) (int, error)
}

// NotificationStore persists the broadcast notification feed.
type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
	List(ctx context.Context, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, id string) error
	// MarkAllRead flips every unread notification and returns how many.
	MarkAllRead(ctx context.Context) (int, error)
}

// SubscriptionStore keeps browser push endpoints, keyed by endpoint URL.
type SubscriptionStore interface {
	SaveSubscription(ctx context.Context, s *model.PushSubscription) error
	RemoveSubscription(ctx context.Context, endpoint string) error
	ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
}
