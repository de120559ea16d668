package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agora/internal/logger"
	"github.com/agora/internal/model"
)

type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

// SaveSubscription upserts by endpoint: a browser re-subscribing after a key
// rotation replaces its old keys instead of duplicating the row.
func (r *SubscriptionRepository) SaveSubscription(ctx context.Context, s *model.PushSubscription) error {
	defer logger.DeferLogDuration("sub.SaveSubscription", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (endpoint) DO UPDATE
		 SET user_id = EXCLUDED.user_id, p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth`,
		s.UserID, s.Endpoint, s.P256dh, s.Auth, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("subRepo.SaveSubscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) RemoveSubscription(ctx context.Context, endpoint string) error {
	defer logger.DeferLogDuration("sub.RemoveSubscription", time.Now())()
	_, err := r.pool.Exec(ctx,
		`DELETE FROM push_subscriptions WHERE endpoint = $1`, endpoint,
	)
	if err != nil {
		return fmt.Errorf("subRepo.RemoveSubscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	defer logger.DeferLogDuration("sub.ListSubscriptions", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, endpoint, p256dh, auth FROM push_subscriptions`,
	)
	if err != nil {
		return nil, fmt.Errorf("subRepo.ListSubscriptions query: %w", err)
	}
	defer rows.Close()

	subs := make([]model.PushSubscription, 0, 16)
	for rows.Next() {
		var s model.PushSubscription
		if err := rows.Scan(&s.UserID, &s.Endpoint, &s.P256dh, &s.Auth); err != nil {
			return nil, fmt.Errorf("subRepo.ListSubscriptions scan: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("subRepo.ListSubscriptions rows: %w", err)
	}
	return subs, nil
}
