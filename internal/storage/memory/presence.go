package memory

import (
	"context"
	"time"

	"github.com/agora/internal/model"
)

// Renew upserts the user's lease. Concurrent sessions for the same user
// land on one record; last write wins per record.
func (c *Client) Renew(ctx context.Context, rec model.PresenceRecord, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presence[rec.UserID] = presenceLease{rec: rec, exp: time.Now().Add(ttl)}
	return nil
}

func (c *Client) Remove(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.presence, userID)
	return nil
}

func (c *Client) ListOnline(ctx context.Context) ([]model.PresenceRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := time.Now()
	out := make([]model.PresenceRecord, 0, len(c.presence))
	for _, l := range c.presence {
		if l.rec.Online && now.Before(l.exp) {
			out = append(out, l.rec)
		}
	}
	return out, nil
}

// Sweep evicts expired leases. Runs concurrently with Renew: the mutex makes
// each eviction atomic against a racing renewal.
func (c *Client) Sweep(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	n := 0
	for id, l := range c.presence {
		if !now.Before(l.exp) {
			delete(c.presence, id)
			n++
		}
	}
	return n, nil
}
