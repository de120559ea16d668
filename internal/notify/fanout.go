// Package notify writes site-wide notifications and fans them out. The feed
// is broadcast: one record per event, one shared read flag. The first member
// to open the bell marks it read for everyone.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agora/internal/logger"
	"github.com/agora/internal/model"
	"github.com/agora/internal/storage"
)

// Pusher forwards a notification to browser push endpoints. Optional.
type Pusher interface {
	Broadcast(ctx context.Context, title, body, tag string)
}

type Fanout struct {
	store  storage.NotificationStore
	pusher Pusher
}

func New(store storage.NotificationStore, pusher Pusher) *Fanout {
	return &Fanout{store: store, pusher: pusher}
}

// Notify records the event and pushes it. Best-effort by contract: the
// triggering action (a posted message, a new listing) already succeeded, so
// a notification failure is logged and swallowed, never propagated. Returns
// the stored record, or nil when storage failed.
func (f *Fanout) Notify(ctx context.Context, title, body, category, sourceRef string) *model.Notification {
	defer logger.DeferLogDuration("notify.Notify", time.Now())()
	n := &model.Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Body:      body,
		Category:  category,
		SourceRef: sourceRef,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.store.Create(ctx, n); err != nil {
		logger.Errorf("notify create category=%s: %v", category, err)
		return nil
	}
	if f.pusher != nil {
		f.pusher.Broadcast(ctx, title, body, category)
	}
	return n
}

func (f *Fanout) List(ctx context.Context, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return f.store.List(ctx, limit)
}

// MarkRead flips the shared flag on one notification. Every member sees it
// as read afterwards.
func (f *Fanout) MarkRead(ctx context.Context, id string) error {
	return f.store.MarkRead(ctx, id)
}

// MarkAllRead flips every unread notification and reports how many flipped.
func (f *Fanout) MarkAllRead(ctx context.Context) (int, error) {
	n, err := f.store.MarkAllRead(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Infof("notifications: marked %d read", n)
	}
	return n, nil
}
