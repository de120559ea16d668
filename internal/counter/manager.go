// Package counter guards the denormalized engagement counters. All mutations
// go through relative atomic adjustments; the read-modify-write pattern that
// loses concurrent updates is not expressible through this API.
package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agora/internal/logger"
	"github.com/agora/internal/model"
	"github.com/agora/internal/storage"
)

// ErrBadDelta rejects adjustments other than a single step. Counters move by
// one event at a time; anything else is a caller bug, not a batch.
var ErrBadDelta = errors.New("counter delta must be +1 or -1")

type Manager struct {
	content  storage.ContentStore
	comments storage.CommentStore
}

func New(content storage.ContentStore, comments storage.CommentStore) *Manager {
	return &Manager{content: content, comments: comments}
}

// Adjust moves a counter by one step atomically at the store.
func (m *Manager) Adjust(ctx context.Context, kind model.ContentKind, id string, field model.CounterField, delta int) error {
	defer logger.DeferLogDuration("counter.Adjust", time.Now())()
	if delta != 1 && delta != -1 {
		return fmt.Errorf("%w: got %d", ErrBadDelta, delta)
	}
	return m.content.AdjustCounter(ctx, kind, id, field, delta)
}

// ToggleLike flips the caller's like and returns the new liked state plus the
// resulting counters. Two rapid toggles net out to the original state because
// each toggle is atomic membership-test-and-flip.
func (m *Manager) ToggleLike(ctx context.Context, kind model.ContentKind, id, userID string) (bool, *model.EngagementCounters, error) {
	defer logger.DeferLogDuration("counter.ToggleLike", time.Now())()
	liked, err := m.content.ToggleLike(ctx, kind, id, userID)
	if err != nil {
		return false, nil, err
	}
	ec, err := m.content.Counters(ctx, kind, id)
	if err != nil {
		return liked, nil, err
	}
	return liked, ec, nil
}

func (m *Manager) Counters(ctx context.Context, kind model.ContentKind, id string) (*model.EngagementCounters, error) {
	return m.content.Counters(ctx, kind, id)
}

// Recount derives the true comment count from the comment graph.
func (m *Manager) Recount(ctx context.Context, kind model.ContentKind, id string) (int, error) {
	defer logger.DeferLogDuration("counter.Recount", time.Now())()
	return m.comments.CountComments(ctx, kind, id)
}

// CheckDrift compares the stored comment_count with the derived count and
// returns stored, actual, and whether they diverge.
func (m *Manager) CheckDrift(ctx context.Context, kind model.ContentKind, id string) (stored, actual int, drifted bool, err error) {
	defer logger.DeferLogDuration("counter.CheckDrift", time.Now())()
	ec, err := m.content.Counters(ctx, kind, id)
	if err != nil {
		return 0, 0, false, err
	}
	actual, err = m.comments.CountComments(ctx, kind, id)
	if err != nil {
		return 0, 0, false, err
	}
	return ec.CommentCount, actual, ec.CommentCount != actual, nil
}

// Repair overwrites a drifted comment_count with the derived value and
// returns the corrected count.
func (m *Manager) Repair(ctx context.Context, kind model.ContentKind, id string) (int, error) {
	defer logger.DeferLogDuration("counter.Repair", time.Now())()
	actual, err := m.comments.CountComments(ctx, kind, id)
	if err != nil {
		return 0, err
	}
	if err := m.content.SetCommentCount(ctx, kind, id, actual); err != nil {
		return 0, err
	}
	logger.Infof("counter repair kind=%s id=%s comment_count=%d", kind, id, actual)
	return actual, nil
}
