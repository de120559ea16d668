package broker

import (
	"context"

	"github.com/agora/internal/logger"
	"github.com/redis/go-redis/v9"
)

const announceChannel = "agora:room-changed"

// Announcer relays topic-change signals between instances over Redis
// pub/sub, so a subscriber attached to one process sees writes made through
// another. A nil Announcer disables cross-instance fan-out.
type Announcer struct {
	cli *redis.Client
}

func NewAnnouncer(cli *redis.Client) *Announcer {
	if cli == nil {
		return nil
	}
	return &Announcer{cli: cli}
}

// Announce signals that topic changed. Best-effort: a pub/sub hiccup must
// not fail the write that triggered it.
func (a *Announcer) Announce(ctx context.Context, topic string) {
	if a == nil {
		return
	}
	if err := a.cli.Publish(ctx, announceChannel, topic).Err(); err != nil {
		logger.Errorf("announce topic=%s: %v", topic, err)
	}
}

// Run listens for announcements from other instances and republishes them
// locally through onTopic. Blocks until ctx is cancelled.
func (a *Announcer) Run(ctx context.Context, onTopic func(topic string)) {
	if a == nil {
		return
	}
	pubsub := a.cli.Subscribe(ctx, announceChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		logger.Errorf("announce subscribe: %v", err)
		return
	}
	logger.Infof("announce bridge listening on %s", announceChannel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			onTopic(msg.Payload)
		}
	}
}
