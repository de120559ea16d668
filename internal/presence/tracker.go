// Package presence tracks who is online via heartbeat leases. A user is
// online while their lease is younger than the heartbeat window; missing a
// renewal lets the lease lapse, and the sweeper reclaims what the store does
// not expire on its own.
package presence

import (
	"context"
	"time"

	"github.com/agora/internal/broker"
	"github.com/agora/internal/logger"
	"github.com/agora/internal/model"
	"github.com/agora/internal/storage"
)

// onlineTopic is the single broker topic for the online roster.
const onlineTopic = "online"

type Tracker struct {
	store  storage.PresenceStore
	window time.Duration
	sweep  time.Duration
	roster *broker.Broker[model.PresenceRecord]
}

// New wires a tracker over a lease store. window is how long a lease lives
// without renewal; sweepEvery is how often lapsed leases are reclaimed.
func New(store storage.PresenceStore, window, sweepEvery time.Duration) *Tracker {
	t := &Tracker{store: store, window: window, sweep: sweepEvery}
	t.roster = broker.New(
		func(ctx context.Context, _ string) ([]model.PresenceRecord, error) {
			return store.ListOnline(ctx)
		},
		func(a, b model.PresenceRecord) bool { return a.DisplayName < b.DisplayName },
	)
	return t
}

// Heartbeat renews the caller's lease and returns the record as renewed.
// Presence is advisory: a store failure is logged and the caller still gets
// a record, because a UI must never error out over a missed heartbeat.
func (t *Tracker) Heartbeat(ctx context.Context, userID, displayName string) model.PresenceRecord {
	rec := model.PresenceRecord{
		UserID:          userID,
		DisplayName:     displayName,
		LastHeartbeatAt: time.Now().UTC(),
		Online:          true,
	}
	if err := t.store.Renew(ctx, rec, t.window); err != nil {
		logger.Errorf("presence heartbeat user=%s: %v", userID, err)
		return rec
	}
	t.roster.Publish(ctx, onlineTopic)
	return rec
}

// Leave drops the lease immediately instead of waiting for it to lapse.
// Idempotent: leaving twice, or after the sweeper already reclaimed the
// lease, is not an error.
func (t *Tracker) Leave(ctx context.Context, userID string) {
	if err := t.store.Remove(ctx, userID); err != nil {
		logger.Errorf("presence leave user=%s: %v", userID, err)
		return
	}
	t.roster.Publish(ctx, onlineTopic)
}

func (t *Tracker) ListOnline(ctx context.Context) ([]model.PresenceRecord, error) {
	return t.store.ListOnline(ctx)
}

// SubscribeOnline delivers the online roster now and on every change. The
// returned function detaches the subscriber.
func (t *Tracker) SubscribeOnline(ctx context.Context, fn func([]model.PresenceRecord)) (func(), error) {
	sub, err := t.roster.Subscribe(ctx, onlineTopic, fn)
	if err != nil {
		return nil, err
	}
	return sub.Unsubscribe, nil
}

// Run sweeps lapsed leases on the configured interval until ctx ends. The
// sweep may race concurrent heartbeats; the store keeps each eviction atomic
// against a renewal.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := t.store.Sweep(ctx)
			if err != nil {
				logger.Errorf("presence sweep: %v", err)
				continue
			}
			if n > 0 {
				logger.Infof("presence sweep reclaimed %d lease(s)", n)
				t.roster.Publish(ctx, onlineTopic)
			}
		}
	}
}

// Close detaches all roster subscribers.
func (t *Tracker) Close() {
	t.roster.Close()
}
