package memory

import (
	"context"

	"github.com/agora/internal/model"
	"github.com/agora/internal/storage"
)

// SeedContent registers a content item so counters can be adjusted on it.
// In production the CRUD layer creates content rows; in -dev and tests this
// stands in for it.
func (c *Client) SeedContent(kind model.ContentKind, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.content[kind]; !ok {
		c.content[kind] = make(map[string]*model.EngagementCounters)
	}
	if _, ok := c.content[kind][id]; !ok {
		c.content[kind][id] = &model.EngagementCounters{LikedBy: []string{}}
	}
}

func (c *Client) counters(kind model.ContentKind, id string) (*model.EngagementCounters, error) {
	byID, ok := c.content[kind]
	if !ok {
		return nil, storage.ErrNotFound
	}
	ec, ok := byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return ec, nil
}

func (c *Client) AdjustCounter(ctx context.Context, kind model.ContentKind, id string, field model.CounterField, delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ec, err := c.counters(kind, id)
	if err != nil {
		return err
	}
	// Floor at zero, same as the GREATEST clause in the SQL path.
	switch field {
	case model.FieldCommentCount:
		ec.CommentCount = max(ec.CommentCount+delta, 0)
	case model.FieldLikeCount:
		ec.LikeCount = max(ec.LikeCount+delta, 0)
	default:
		return storage.ErrNotFound
	}
	return nil
}

// ToggleLike mutates liked_by and like_count under one lock acquisition, so
// the counter and the set can never diverge.
func (c *Client) ToggleLike(ctx context.Context, kind model.ContentKind, id, userID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ec, err := c.counters(kind, id)
	if err != nil {
		return false, err
	}
	for i, u := range ec.LikedBy {
		if u == userID {
			ec.LikedBy = append(ec.LikedBy[:i], ec.LikedBy[i+1:]...)
			ec.LikeCount--
			return false, nil
		}
	}
	ec.LikedBy = append(ec.LikedBy, userID)
	ec.LikeCount++
	return true, nil
}

func (c *Client) Counters(ctx context.Context, kind model.ContentKind, id string) (*model.EngagementCounters, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ec, err := c.counters(kind, id)
	if err != nil {
		return nil, err
	}
	out := &model.EngagementCounters{
		CommentCount: ec.CommentCount,
		LikeCount:    ec.LikeCount,
		LikedBy:      append([]string(nil), ec.LikedBy...),
	}
	return out, nil
}

func (c *Client) SetCommentCount(ctx context.Context, kind model.ContentKind, id string, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ec, err := c.counters(kind, id)
	if err != nil {
		return err
	}
	ec.CommentCount = n
	return nil
}
