package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agora/internal/logger"
	"github.com/agora/internal/model"
	"github.com/agora/internal/storage"
)

type ContentRepository struct {
	pool *pgxpool.Pool
}

func NewContentRepository(pool *pgxpool.Pool) *ContentRepository {
	return &ContentRepository{pool: pool}
}

// kindTable maps a content kind to its table. Closed switch: an unknown kind
// never reaches SQL, it fails here with ErrUnknownKind.
func kindTable(kind model.ContentKind) (string, error) {
	switch kind {
	case model.KindPost:
		return "posts", nil
	case model.KindHealthPost:
		return "health_posts", nil
	case model.KindRecipePost:
		return "recipe_posts", nil
	case model.KindMarketplaceListing:
		return "marketplace_listings", nil
	case model.KindKaraokePost:
		return "karaoke_posts", nil
	case model.KindPhilosophyPost:
		return "philosophy_posts", nil
	}
	return "", fmt.Errorf("%w: %q", model.ErrUnknownKind, kind)
}

func counterColumn(field model.CounterField) (string, error) {
	switch field {
	case model.FieldCommentCount:
		return "comment_count", nil
	case model.FieldLikeCount:
		return "like_count", nil
	}
	return "", fmt.Errorf("contentRepo: unknown counter field %q", field)
}

// AdjustCounter moves the counter relative to its stored value in one UPDATE,
// so concurrent adjustments serialize on the row instead of clobbering each
// other with read-modify-write.
func (r *ContentRepository) AdjustCounter(ctx context.Context, kind model.ContentKind, id string, field model.CounterField, delta int) error {
	defer logger.DeferLogDuration("content.AdjustCounter", time.Now())()
	table, err := kindTable(kind)
	if err != nil {
		return err
	}
	col, err := counterColumn(field)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = GREATEST(%s + $2, 0) WHERE id = $1`, table, col, col),
		id, delta,
	)
	if err != nil {
		return fmt.Errorf("contentRepo.AdjustCounter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ToggleLike flips membership and moves the counter in a single conditional
// UPDATE. The row lock makes the membership test and both mutations one
// atomic step; RETURNING reads the post-update row, so the returned state is
// the new one.
func (r *ContentRepository) ToggleLike(ctx context.Context, kind model.ContentKind, id, userID string) (bool, error) {
	defer logger.DeferLogDuration("content.ToggleLike", time.Now())()
	table, err := kindTable(kind)
	if err != nil {
		return false, err
	}
	var liked bool
	err = r.pool.QueryRow(ctx,
		fmt.Sprintf(
			`UPDATE %s
			 SET liked_by = CASE WHEN $2 = ANY(liked_by)
			                     THEN array_remove(liked_by, $2)
			                     ELSE array_append(liked_by, $2) END,
			     like_count = CASE WHEN $2 = ANY(liked_by)
			                       THEN GREATEST(like_count - 1, 0)
			                       ELSE like_count + 1 END
			 WHERE id = $1
			 RETURNING $2 = ANY(liked_by)`, table),
		id, userID,
	).Scan(&liked)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, storage.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("contentRepo.ToggleLike: %w", err)
	}
	return liked, nil
}

func (r *ContentRepository) Counters(ctx context.Context, kind model.ContentKind, id string) (*model.EngagementCounters, error) {
	defer logger.DeferLogDuration("content.Counters", time.Now())()
	table, err := kindTable(kind)
	if err != nil {
		return nil, err
	}
	ec := &model.EngagementCounters{}
	err = r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT comment_count, like_count, liked_by FROM %s WHERE id = $1`, table),
		id,
	).Scan(&ec.CommentCount, &ec.LikeCount, &ec.LikedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("contentRepo.Counters: %w", err)
	}
	return ec, nil
}

func (r *ContentRepository) SetCommentCount(ctx context.Context, kind model.ContentKind, id string, n int) error {
	defer logger.DeferLogDuration("content.SetCommentCount", time.Now())()
	table, err := kindTable(kind)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET comment_count = $2 WHERE id = $1`, table),
		id, n,
	)
	if err != nil {
		return fmt.Errorf("contentRepo.SetCommentCount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
