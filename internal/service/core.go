// Package service is the realtime social core: rooms, direct threads, live
// subscriptions and the write path that feeds them.
package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agora/internal/broker"
	"github.com/agora/internal/logger"
	"github.com/agora/internal/model"
	"github.com/agora/internal/storage"
	"github.com/agora/internal/thread"
)

var (
	ErrEmptyBody = errors.New("message body is empty")
	ErrNotOwner  = errors.New("not the message author")
)

// Announcer mirrors room-changed signals across instances. Optional; a nil
// implementation keeps everything single-node.
type Announcer interface {
	Announce(ctx context.Context, topic string)
}

type Core struct {
	messages storage.MessageStore
	rooms    *broker.Broker[model.Message]
	announce Announcer
	notify   Notifier
}

// Notifier receives site-wide events from the global room. Optional.
type Notifier interface {
	Notify(ctx context.Context, title, body, category, sourceRef string) *model.Notification
}

func NewCore(messages storage.MessageStore, announce Announcer, notify Notifier) *Core {
	c := &Core{messages: messages, announce: announce, notify: notify}
	c.rooms = broker.New(
		func(ctx context.Context, roomID string) ([]model.Message, error) {
			return messages.ListRoom(ctx, roomID)
		},
		// Presentation order: send time, message id as the tiebreak so equal
		// timestamps still render identically everywhere.
		func(a, b model.Message) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		},
	)
	return c
}

// SendMessage validates, stamps and stores a message, then rebroadcasts the
// room. The timestamp is always assigned here, server-side UTC, so client
// clock skew cannot reorder history.
func (c *Core) SendMessage(ctx context.Context, room model.Room, authorID, authorName, body string) (*model.Message, error) {
	defer logger.DeferLogDuration("core.SendMessage", time.Now())()
	if err := room.Validate(); err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyBody
	}
	m := &model.Message{
		ID:         uuid.NewString(),
		RoomID:     room.ID(),
		AuthorID:   authorID,
		AuthorName: authorName,
		Body:       body,
		CreatedAt:  time.Now().UTC(),
	}
	if err := c.messages.Append(ctx, m); err != nil {
		return nil, err
	}

	if room.Kind == model.RoomDirect {
		c.touchThread(ctx, room.ThreadKey, m)
	}
	if room.Kind == model.RoomGlobal && c.notify != nil {
		c.notify.Notify(ctx, authorName, m.Body, "global_message", m.ID)
	}

	c.rebroadcast(ctx, m.RoomID)
	return m, nil
}

// touchThread refreshes the direct-thread index entry. The message is
// already durable; an index failure only stales the inbox, so it is
// logged and not returned.
func (c *Core) touchThread(ctx context.Context, key string, m *model.Message) {
	userA, userB, ok := thread.Participants(key)
	if !ok {
		logger.Errorf("thread index: bad key %q", key)
		return
	}
	t := &model.ConversationThread{
		ThreadKey:    key,
		UserA:        userA,
		UserB:        userB,
		LastBody:     m.Body,
		LastAuthorID: m.AuthorID,
		UpdatedAt:    m.CreatedAt,
	}
	if err := c.messages.UpsertThread(ctx, t); err != nil {
		logger.Errorf("thread index upsert %s: %v", key, err)
	}
}

// EditMessage replaces the body of the caller's own message and rebroadcasts
// the room. Ownership is checked here, against the stored row, regardless of
// what the client claims.
func (c *Core) EditMessage(ctx context.Context, id, actorID, body string, asModerator bool) (*model.Message, error) {
	defer logger.DeferLogDuration("core.EditMessage", time.Now())()
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyBody
	}
	m, err := c.messages.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !asModerator && m.AuthorID != actorID {
		return nil, ErrNotOwner
	}
	editedAt := time.Now().UTC()
	if err := c.messages.UpdateBody(ctx, id, body, editedAt); err != nil {
		return nil, err
	}
	m.Body = body
	m.EditedAt = &editedAt
	c.rebroadcast(ctx, m.RoomID)
	return m, nil
}

// DeleteMessage removes a message (author or moderator) and rebroadcasts.
func (c *Core) DeleteMessage(ctx context.Context, id, actorID string, asModerator bool) error {
	defer logger.DeferLogDuration("core.DeleteMessage", time.Now())()
	m, err := c.messages.Get(ctx, id)
	if err != nil {
		return err
	}
	if !asModerator && m.AuthorID != actorID {
		return ErrNotOwner
	}
	if err := c.messages.Delete(ctx, id); err != nil {
		return err
	}
	c.rebroadcast(ctx, m.RoomID)
	return nil
}

// OpenDirect resolves the canonical room for a pair of users. Both sides of
// the pair always land in the same room regardless of who opened it.
func (c *Core) OpenDirect(userA, userB string) (model.Room, error) {
	key, err := thread.Resolve(userA, userB)
	if err != nil {
		return model.Room{}, err
	}
	return model.DirectRoom(key), nil
}

// History returns a room's messages in presentation order.
func (c *Core) History(ctx context.Context, room model.Room) ([]model.Message, error) {
	if err := room.Validate(); err != nil {
		return nil, err
	}
	msgs, err := c.messages.ListRoom(ctx, room.ID())
	if err != nil {
		return nil, err
	}
	sortMessages(msgs)
	return msgs, nil
}

// ListThreads returns the caller's direct-message inbox, newest first.
func (c *Core) ListThreads(ctx context.Context, userID string) ([]model.ConversationThread, error) {
	ts, err := c.messages.ListThreads(ctx, userID)
	if err != nil {
		return nil, err
	}
	sortThreads(ts)
	return ts, nil
}

// SubscribeRoom delivers the room's snapshot now and after every change. The
// returned function detaches the subscriber; it is safe to call twice.
func (c *Core) SubscribeRoom(ctx context.Context, room model.Room, fn func([]model.Message)) (func(), error) {
	if err := room.Validate(); err != nil {
		return nil, err
	}
	sub, err := c.rooms.Subscribe(ctx, room.ID(), fn)
	if err != nil {
		return nil, err
	}
	return sub.Unsubscribe, nil
}

// Rebroadcast re-delivers a room's snapshot to local subscribers. The ws
// announcer calls this when another instance reports a change.
func (c *Core) Rebroadcast(ctx context.Context, roomID string) {
	c.rooms.Publish(ctx, roomID)
}

// rebroadcast serves local subscribers and signals peer instances.
func (c *Core) rebroadcast(ctx context.Context, roomID string) {
	c.rooms.Publish(ctx, roomID)
	if c.announce != nil {
		c.announce.Announce(ctx, roomID)
	}
}

// Close detaches all room subscribers.
func (c *Core) Close() {
	c.rooms.Close()
}

func sortMessages(msgs []model.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
}

func sortThreads(ts []model.ConversationThread) {
	sort.SliceStable(ts, func(i, j int) bool { return ts[i].UpdatedAt.After(ts[j].UpdatedAt) })
}
