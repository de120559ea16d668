package memory

import (
	"context"

	"github.com/agora/internal/model"
	"github.com/agora/internal/storage"
)

func (c *Client) Create(ctx context.Context, n *model.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = append(c.notifications, *n)
	return nil
}

func (c *Client) List(ctx context.Context, limit int) ([]model.Notification, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Notification, 0, limit)
	// Newest first, like the SQL store.
	for i := len(c.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, c.notifications[i])
	}
	return out, nil
}

func (c *Client) MarkRead(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.notifications {
		if c.notifications[i].ID == id {
			c.notifications[i].IsRead = true
			return nil
		}
	}
	return storage.ErrNotFound
}

func (c *Client) MarkAllRead(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for i := range c.notifications {
		if !c.notifications[i].IsRead {
			c.notifications[i].IsRead = true
			n++
		}
	}
	return n, nil
}

// --- push subscriptions ---

func (c *Client) SaveSubscription(ctx context.Context, s *model.PushSubscription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions[s.Endpoint] = *s
	return nil
}

func (c *Client) RemoveSubscription(ctx context.Context, endpoint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscriptions, endpoint)
	return nil
}

func (c *Client) ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.PushSubscription, 0, len(c.subscriptions))
	for _, s := range c.subscriptions {
		out = append(out, s)
	}
	return out, nil
}
