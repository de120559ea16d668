// Package repository implements the durable store contracts on Postgres via
// pgxpool. Every method wraps its error with the repo.Op prefix and reports
// its duration through the async logger.
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

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func (r *MessageRepository) Append(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("msg.Append", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO messages (id, room_id, author_id, author_name, body, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.RoomID, m.AuthorID, m.AuthorName, m.Body, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.Append: %w", err)
	}
	return nil
}

// ListRoom has no ORDER BY on purpose: room history is re-sorted by the
// broker on every snapshot, so the query stays an index-only room scan.
func (r *MessageRepository) ListRoom(ctx context.Context, roomID string) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.ListRoom", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, room_id, author_id, author_name, body, created_at, edited_at
		 FROM messages
		 WHERE room_id = $1 AND NOT is_deleted`, roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.ListRoom query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0, 64)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.AuthorID, &m.AuthorName, &m.Body, &m.CreatedAt, &m.EditedAt); err != nil {
			return nil, fmt.Errorf("msgRepo.ListRoom scan: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.ListRoom rows: %w", err)
	}
	return messages, nil
}

func (r *MessageRepository) Get(ctx context.Context, id string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.Get", time.Now())()
	m := &model.Message{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, room_id, author_id, author_name, body, created_at, edited_at
		 FROM messages
		 WHERE id = $1 AND NOT is_deleted`, id,
	).Scan(&m.ID, &m.RoomID, &m.AuthorID, &m.AuthorName, &m.Body, &m.CreatedAt, &m.EditedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("msgRepo.Get: %w", err)
	}
	return m, nil
}

func (r *MessageRepository) UpdateBody(ctx context.Context, id, body string, editedAt time.Time) error {
	defer logger.DeferLogDuration("msg.UpdateBody", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET body = $2, edited_at = $3 WHERE id = $1 AND NOT is_deleted`,
		id, body, editedAt,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.UpdateBody: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Delete blanks the body instead of removing the row, so the room log keeps
// its shape for clients that already rendered the message.
func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("msg.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET is_deleted = TRUE, body = '' WHERE id = $1 AND NOT is_deleted`,
		id,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *MessageRepository) UpsertThread(ctx context.Context, t *model.ConversationThread) error {
	defer logger.DeferLogDuration("msg.UpsertThread", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO threads (thread_key, user_a, user_b, last_body, last_author_id, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (thread_key) DO UPDATE
		 SET last_body = EXCLUDED.last_body,
		     last_author_id = EXCLUDED.last_author_id,
		     updated_at = EXCLUDED.updated_at`,
		t.ThreadKey, t.UserA, t.UserB, t.LastBody, t.LastAuthorID, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.UpsertThread: %w", err)
	}
	return nil
}

func (r *MessageRepository) ListThreads(ctx context.Context, userID string) ([]model.ConversationThread, error) {
	defer logger.DeferLogDuration("msg.ListThreads", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT thread_key, user_a, user_b, last_body, last_author_id, updated_at
		 FROM threads
		 WHERE user_a = $1 OR user_b = $1
		 ORDER BY updated_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.ListThreads query: %w", err)
	}
	defer rows.Close()

	threads := make([]model.ConversationThread, 0, 8)
	for rows.Next() {
		var t model.ConversationThread
		if err := rows.Scan(&t.ThreadKey, &t.UserA, &t.UserB, &t.LastBody, &t.LastAuthorID, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("msgRepo.ListThreads scan: %w", err)
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.ListThreads rows: %w", err)
	}
	return threads, nil
}
