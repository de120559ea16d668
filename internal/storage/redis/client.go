// Package redis backs the presence lease store with Redis key TTLs. A lease
// is a JSON-encoded record under presence:{userID} with EX set to the
// heartbeat window, so expiry happens server-side without our involvement.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agora/internal/model"
)

const presencePrefix = "presence:"

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// Redis exposes the underlying client for the pub/sub announcer, which shares
// this connection pool.
func (c *Client) Redis() *redis.Client {
	return c.cli
}

// Renew writes the lease with the heartbeat TTL. SET is an upsert, so a
// second session of the same user just refreshes the one lease.
func (c *Client) Renew(ctx context.Context, rec model.PresenceRecord, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("presence marshal: %w", err)
	}
	return c.cli.Set(ctx, presencePrefix+rec.UserID, raw, ttl).Err()
}

func (c *Client) Remove(ctx context.Context, userID string) error {
	return c.cli.Del(ctx, presencePrefix+userID).Err()
}

// ListOnline scans the presence keyspace. Keys that expire between SCAN and
// GET are simply skipped.
func (c *Client) ListOnline(ctx context.Context) ([]model.PresenceRecord, error) {
	var out []model.PresenceRecord
	iter := c.cli.Scan(ctx, 0, presencePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := c.cli.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("presence get %s: %w", iter.Val(), err)
		}
		var rec model.PresenceRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		if rec.Online {
			out = append(out, rec)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("presence scan: %w", err)
	}
	return out, nil
}

// Sweep is a no-op here: Redis evicts expired leases itself. The tracker
// still calls it on its interval so the memory store stays honest in -dev.
func (c *Client) Sweep(ctx context.Context) (int, error) {
	return 0, nil
}
