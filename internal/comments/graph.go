// Package comments maintains the two-level comment/reply graph shared by
// every content kind, and keeps the parent's comment_count moving with it.
package comments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agora/internal/counter"
	"github.com/agora/internal/logger"
	"github.com/agora/internal/model"
	"github.com/agora/internal/storage"
)

var (
	ErrEmptyBody = errors.New("comment body is empty")
	ErrNotOwner  = errors.New("not the comment author")
)

type Graph struct {
	store    storage.CommentStore
	counters *counter.Manager
}

func New(store storage.CommentStore, counters *counter.Manager) *Graph {
	return &Graph{store: store, counters: counters}
}

// CreateComment stores the comment, then bumps the parent's comment_count by
// one. The bump failing after the insert is logged, not rolled back: the
// comment exists, and Repair reconciles the counter later.
func (g *Graph) CreateComment(ctx context.Context, kind model.ContentKind, parentID, authorID, body string) (*model.Comment, error) {
	defer logger.DeferLogDuration("comments.CreateComment", time.Now())()
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyBody
	}
	c := &model.Comment{
		ID:         uuid.NewString(),
		ParentKind: kind,
		ParentID:   parentID,
		AuthorID:   authorID,
		Body:       body,
		CreatedAt:  time.Now().UTC(),
	}
	if err := g.store.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	if err := g.counters.Adjust(ctx, kind, parentID, model.FieldCommentCount, 1); err != nil {
		logger.Errorf("comment_count +1 kind=%s id=%s: %v", kind, parentID, err)
	}
	return c, nil
}

// CreateReply attaches a reply to an existing comment. Replies do not move
// comment_count: the counter tracks top-level comments only.
func (g *Graph) CreateReply(ctx context.Context, commentID, authorID, body string) (*model.Reply, error) {
	defer logger.DeferLogDuration("comments.CreateReply", time.Now())()
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyBody
	}
	if _, err := g.store.GetComment(ctx, commentID); err != nil {
		return nil, err
	}
	r := &model.Reply{
		ID:        uuid.NewString(),
		CommentID: commentID,
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := g.store.CreateReply(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteComment removes a comment and cascades to its replies, then moves
// comment_count down by exactly one regardless of how many replies went.
// Only the author (or a moderator) may delete. Comments written before kind
// tagging carry no parent kind; their delete skips the counter step because
// there is no single parent table to target, and says so in the log.
func (g *Graph) DeleteComment(ctx context.Context, commentID, actorID string, asModerator bool) error {
	defer logger.DeferLogDuration("comments.DeleteComment", time.Now())()
	c, err := g.store.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if !asModerator && c.AuthorID != actorID {
		return ErrNotOwner
	}
	replies, err := g.store.DeleteCommentCascade(ctx, commentID)
	if err != nil {
		return err
	}
	if replies > 0 {
		logger.Infof("comment %s cascade removed %d replies", commentID, replies)
	}
	if c.ParentKind == "" {
		logger.Infof("comment %s has no parent kind, skipping counter adjust", commentID)
		return nil
	}
	if err := g.counters.Adjust(ctx, c.ParentKind, c.ParentID, model.FieldCommentCount, -1); err != nil {
		logger.Errorf("comment_count -1 kind=%s id=%s: %v", c.ParentKind, c.ParentID, err)
	}
	return nil
}

// List returns the comments of a parent with their replies attached, oldest
// first on both levels.
func (g *Graph) List(ctx context.Context, kind model.ContentKind, parentID string) ([]model.CommentThread, error) {
	defer logger.DeferLogDuration("comments.List", time.Now())()
	cs, err := g.store.ListComments(ctx, kind, parentID)
	if err != nil {
		return nil, err
	}
	out := make([]model.CommentThread, 0, len(cs))
	for _, c := range cs {
		rs, err := g.store.ListReplies(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, model.CommentThread{Comment: c, Replies: rs})
	}
	return out, nil
}
