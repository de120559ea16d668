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

type CommentRepository struct {
	pool *pgxpool.Pool
}

func NewCommentRepository(pool *pgxpool.Pool) *CommentRepository {
	return &CommentRepository{pool: pool}
}

func (r *CommentRepository) CreateComment(ctx context.Context, c *model.Comment) error {
	defer logger.DeferLogDuration("comment.CreateComment", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO comments (id, parent_kind, parent_id, author_id, body, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, string(c.ParentKind), c.ParentID, c.AuthorID, c.Body, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("commentRepo.CreateComment: %w", err)
	}
	return nil
}

func (r *CommentRepository) CreateReply(ctx context.Context, rep *model.Reply) error {
	defer logger.DeferLogDuration("comment.CreateReply", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO replies (id, comment_id, author_id, body, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rep.ID, rep.CommentID, rep.AuthorID, rep.Body, rep.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("commentRepo.CreateReply: %w", err)
	}
	return nil
}

func (r *CommentRepository) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	defer logger.DeferLogDuration("comment.GetComment", time.Now())()
	c := &model.Comment{}
	var kind string
	err := r.pool.QueryRow(ctx,
		`SELECT id, parent_kind, parent_id, author_id, body, created_at
		 FROM comments WHERE id = $1`, id,
	).Scan(&c.ID, &kind, &c.ParentID, &c.AuthorID, &c.Body, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("commentRepo.GetComment: %w", err)
	}
	c.ParentKind = model.ContentKind(kind)
	return c, nil
}

// DeleteCommentCascade removes the comment and its replies in one
// transaction: a crash between the two deletes must not strand orphan
// replies. Returns how many replies went with it.
func (r *CommentRepository) DeleteCommentCascade(ctx context.Context, id string) (int, error) {
	defer logger.DeferLogDuration("comment.DeleteCommentCascade", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("commentRepo.DeleteCommentCascade begin: %w", err)
	}
	defer tx.Rollback(ctx)

	repTag, err := tx.Exec(ctx, `DELETE FROM replies WHERE comment_id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("commentRepo.DeleteCommentCascade replies: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("commentRepo.DeleteCommentCascade comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, storage.ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commentRepo.DeleteCommentCascade commit: %w", err)
	}
	return int(repTag.RowsAffected()), nil
}

// ListComments matches the requested kind plus untagged legacy rows. Rows
// written before parent_kind existed carry '' and are grandfathered into
// whatever kind their parent id is queried under.
func (r *CommentRepository) ListComments(ctx context.Context, kind model.ContentKind, parentID string) ([]model.Comment, error) {
	defer logger.DeferLogDuration("comment.ListComments", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, parent_kind, parent_id, author_id, body, created_at
		 FROM comments
		 WHERE parent_id = $1 AND (parent_kind = $2 OR parent_kind = '')
		 ORDER BY created_at`, parentID, string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("commentRepo.ListComments query: %w", err)
	}
	defer rows.Close()

	comments := make([]model.Comment, 0, 16)
	for rows.Next() {
		var c model.Comment
		var k string
		if err := rows.Scan(&c.ID, &k, &c.ParentID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("commentRepo.ListComments scan: %w", err)
		}
		c.ParentKind = model.ContentKind(k)
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("commentRepo.ListComments rows: %w", err)
	}
	return comments, nil
}

func (r *CommentRepository) ListReplies(ctx context.Context, commentID string) ([]model.Reply, error) {
	defer logger.DeferLogDuration("comment.ListReplies", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, comment_id, author_id, body, created_at
		 FROM replies
		 WHERE comment_id = $1
		 ORDER BY created_at`, commentID,
	)
	if err != nil {
		return nil, fmt.Errorf("commentRepo.ListReplies query: %w", err)
	}
	defer rows.Close()

	replies := make([]model.Reply, 0, 8)
	for rows.Next() {
		var rep model.Reply
		if err := rows.Scan(&rep.ID, &rep.CommentID, &rep.AuthorID, &rep.Body, &rep.CreatedAt); err != nil {
			return nil, fmt.Errorf("commentRepo.ListReplies scan: %w", err)
		}
		replies = append(replies, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("commentRepo.ListReplies rows: %w", err)
	}
	return replies, nil
}

func (r *CommentRepository) CountComments(ctx context.Context, kind model.ContentKind, parentID string) (int, error) {
	defer logger.DeferLogDuration("comment.CountComments", time.Now())()
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM comments
		 WHERE parent_id = $1 AND (parent_kind = $2 OR parent_kind = '')`,
		parentID, string(kind),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("commentRepo.CountComments: %w", err)
	}
	return n, nil
}
