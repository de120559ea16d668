// Package memory implements every store contract in process memory. Used by
// the -dev mode of the API service (no external Postgres/Redis required) and
// by unit tests. A single mutex per concern gives the same per-record
// atomicity the SQL statements provide in production.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/agora/internal/model"
	"github.com/agora/internal/storage"
)

type Client struct {
	mu sync.RWMutex

	messages []model.Message
	threads  map[string]model.ConversationThread

	presence map[string]presenceLease

	content  map[model.ContentKind]map[string]*model.EngagementCounters
	comments map[string]model.Comment
	replies  map[string]model.Reply

	notifications []model.Notification

	subscriptions map[string]model.PushSubscription
}

type presenceLease struct {
	rec model.PresenceRecord
	exp time.Time
}

func New() *Client {
	return &Client{
		threads:       make(map[string]model.ConversationThread),
		presence:      make(map[string]presenceLease),
		content:       make(map[model.ContentKind]map[string]*model.EngagementCounters),
		comments:      make(map[string]model.Comment),
		replies:       make(map[string]model.Reply),
		subscriptions: make(map[string]model.PushSubscription),
	}
}

func (c *Client) Close() error { return nil }

// --- MessageStore ---

func (c *Client) Append(ctx context.Context, m *model.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, *m)
	return nil
}

// ListRoom returns messages in arrival order, not timestamp order: the
// consumer sorts, matching the unordered contract of the durable store.
func (c *Client) ListRoom(ctx context.Context, roomID string) ([]model.Message, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Message, 0, 16)
	for _, m := range c.messages {
		if m.RoomID == roomID && !m.Deleted {
			out = append(out, m)
		}
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id string) (*model.Message, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.messages {
		if c.messages[i].ID == id && !c.messages[i].Deleted {
			m := c.messages[i]
			return &m, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (c *Client) UpdateBody(ctx context.Context, id, body string, editedAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages {
		if c.messages[i].ID == id && !c.messages[i].Deleted {
			c.messages[i].Body = body
			t := editedAt
			c.messages[i].EditedAt = &t
			return nil
		}
	}
	return storage.ErrNotFound
}

func (c *Client) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages {
		if c.messages[i].ID == id && !c.messages[i].Deleted {
			c.messages[i].Deleted = true
			c.messages[i].Body = ""
			return nil
		}
	}
	return storage.ErrNotFound
}

func (c *Client) UpsertThread(ctx context.Context, t *model.ConversationThread) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threads[t.ThreadKey] = *t
	return nil
}

func (c *Client) ListThreads(ctx context.Context, userID string) ([]model.ConversationThread, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.ConversationThread, 0, 8)
	for _, t := range c.threads {
		if t.UserA == userID || t.UserB == userID {
			out = append(out, t)
		}
	}
	return out, nil
}
