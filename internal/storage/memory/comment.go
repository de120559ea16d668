package memory

import (
	"context"
	"sort"

	"github.com/agora/internal/model"
	"github.com/agora/internal/storage"
)

func (c *Client) CreateComment(ctx context.Context, cm *model.Comment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.comments[cm.ID] = *cm
	return nil
}

func (c *Client) CreateReply(ctx context.Context, r *model.Reply) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.comments[r.CommentID]; !ok {
		return storage.ErrNotFound
	}
	c.replies[r.ID] = *r
	return nil
}

func (c *Client) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cm, ok := c.comments[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &cm, nil
}

func (c *Client) DeleteCommentCascade(ctx context.Context, id string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.comments[id]; !ok {
		return 0, storage.ErrNotFound
	}
	n := 0
	for rid, r := range c.replies {
		if r.CommentID == id {
			delete(c.replies, rid)
			n++
		}
	}
	delete(c.comments, id)
	return n, nil
}

// ListComments includes rows whose kind tag is empty: they predate tagging
// and are assumed to belong to the requested kind.
func (c *Client) ListComments(ctx context.Context, kind model.ContentKind, parentID string) ([]model.Comment, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Comment, 0, 8)
	for _, cm := range c.comments {
		if cm.ParentID == parentID && (cm.ParentKind == kind || cm.ParentKind == "") {
			out = append(out, cm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (c *Client) ListReplies(ctx context.Context, commentID string) ([]model.Reply, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Reply, 0, 4)
	for _, r := range c.replies {
		if r.CommentID == commentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (c *Client) CountComments(ctx context.Context, kind model.ContentKind, parentID string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, cm := range c.comments {
		if cm.ParentID == parentID && (cm.ParentKind == kind || cm.ParentKind == "") {
			n++
		}
	}
	return n, nil
}
