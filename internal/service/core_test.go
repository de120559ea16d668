package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/agora/internal/model"
	"github.com/agora/internal/storage"
	"github.com/agora/internal/storage/memory"
)

type fakeNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (f *fakeNotifier) Notify(ctx context.Context, title, body, category, sourceRef string) *model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.titles = append(f.titles, title)
	return &model.Notification{Title: title}
}

type fakeAnnouncer struct {
	mu     sync.Mutex
	topics []string
}

func (f *fakeAnnouncer) Announce(ctx context.Context, topic string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
}

func TestSendMessageStampsServerTime(t *testing.T) {
	core := NewCore(memory.New(), nil, nil)
	defer core.Close()

	before := time.Now().UTC()
	m, err := core.SendMessage(context.Background(), model.GlobalRoom(), "alice", "Alice", "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	after := time.Now().UTC()

	if m.CreatedAt.Before(before) || m.CreatedAt.After(after) {
		t.Fatalf("created_at %v outside [%v, %v]", m.CreatedAt, before, after)
	}
	if m.ID == "" {
		t.Fatal("no id assigned")
	}
}

func TestSendMessageValidation(t *testing.T) {
	core := NewCore(memory.New(), nil, nil)
	defer core.Close()
	ctx := context.Background()

	if _, err := core.SendMessage(ctx, model.GlobalRoom(), "alice", "Alice", "   "); !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("blank body: want ErrEmptyBody, got %v", err)
	}
	if _, err := core.SendMessage(ctx, model.LocationRoom(""), "alice", "Alice", "hi"); !errors.Is(err, model.ErrInvalidRoom) {
		t.Fatalf("empty location: want ErrInvalidRoom, got %v", err)
	}
}

func TestGlobalMessageNotifies(t *testing.T) {
	notifier := &fakeNotifier{}
	core := NewCore(memory.New(), nil, notifier)
	defer core.Close()
	ctx := context.Background()

	if _, err := core.SendMessage(ctx, model.GlobalRoom(), "alice", "Alice", "to everyone"); err != nil {
		t.Fatalf("global send: %v", err)
	}
	if _, err := core.SendMessage(ctx, model.LocationRoom("cafe"), "alice", "Alice", "to the cafe"); err != nil {
		t.Fatalf("location send: %v", err)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.titles) != 1 {
		t.Fatalf("notified %d times, want 1 (global only)", len(notifier.titles))
	}
}

func TestSendAnnouncesRoomTopic(t *testing.T) {
	ann := &fakeAnnouncer{}
	core := NewCore(memory.New(), ann, nil)
	defer core.Close()

	if _, err := core.SendMessage(context.Background(), model.LocationRoom("park"), "alice", "Alice", "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}

	ann.mu.Lock()
	defer ann.mu.Unlock()
	if len(ann.topics) != 1 || ann.topics[0] != "loc:park" {
		t.Fatalf("announced %v, want [loc:park]", ann.topics)
	}
}

func TestDirectMessageUpdatesThreadIndex(t *testing.T) {
	core := NewCore(memory.New(), nil, nil)
	defer core.Close()
	ctx := context.Background()

	room, err := core.OpenDirect("bob", "alice")
	if err != nil {
		t.Fatalf("open direct: %v", err)
	}
	if _, err := core.SendMessage(ctx, room, "bob", "Bob", "hey alice"); err != nil {
		t.Fatalf("send: %v", err)
	}

	// Both participants see the same thread in their inbox.
	for _, user := range []string{"alice", "bob"} {
		ts, err := core.ListThreads(ctx, user)
		if err != nil {
			t.Fatalf("list threads %s: %v", user, err)
		}
		if len(ts) != 1 {
			t.Fatalf("%s inbox has %d threads, want 1", user, len(ts))
		}
		if ts[0].LastBody != "hey alice" || ts[0].LastAuthorID != "bob" {
			t.Fatalf("%s thread preview = %+v", user, ts[0])
		}
	}
}

func TestOpenDirectIsCommutative(t *testing.T) {
	core := NewCore(memory.New(), nil, nil)
	defer core.Close()

	r1, err := core.OpenDirect("alice", "bob")
	if err != nil {
		t.Fatalf("open a->b: %v", err)
	}
	r2, err := core.OpenDirect("bob", "alice")
	if err != nil {
		t.Fatalf("open b->a: %v", err)
	}
	if r1.ID() != r2.ID() {
		t.Fatalf("room ids differ: %q vs %q", r1.ID(), r2.ID())
	}

	if _, err := core.OpenDirect("alice", "alice"); err == nil {
		t.Fatal("self-thread allowed")
	}
}

func TestEditRequiresOwnership(t *testing.T) {
	core := NewCore(memory.New(), nil, nil)
	defer core.Close()
	ctx := context.Background()

	m, err := core.SendMessage(ctx, model.GlobalRoom(), "alice", "Alice", "original")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, err := core.EditMessage(ctx, m.ID, "mallory", "hijacked", false); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("want ErrNotOwner, got %v", err)
	}

	edited, err := core.EditMessage(ctx, m.ID, "alice", "fixed", false)
	if err != nil {
		t.Fatalf("owner edit: %v", err)
	}
	if edited.Body != "fixed" || edited.EditedAt == nil {
		t.Fatalf("edited = %+v", edited)
	}
}

func TestModeratorDelete(t *testing.T) {
	core := NewCore(memory.New(), nil, nil)
	defer core.Close()
	ctx := context.Background()

	m, err := core.SendMessage(ctx, model.GlobalRoom(), "alice", "Alice", "remove me")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := core.DeleteMessage(ctx, m.ID, "mallory", false); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("non-owner delete: want ErrNotOwner, got %v", err)
	}
	if err := core.DeleteMessage(ctx, m.ID, "mod", true); err != nil {
		t.Fatalf("moderator delete: %v", err)
	}
	if err := core.DeleteMessage(ctx, m.ID, "mod", true); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("double delete: want ErrNotFound, got %v", err)
	}

	msgs, err := core.History(ctx, model.GlobalRoom())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("deleted message still in history: %+v", msgs)
	}
}

func TestSubscribeRoomDeliversOrderedSnapshots(t *testing.T) {
	core := NewCore(memory.New(), nil, nil)
	defer core.Close()
	ctx := context.Background()

	got := make(chan []model.Message, 8)
	unsub, err := core.SubscribeRoom(ctx, model.LocationRoom("plaza"), func(msgs []model.Message) {
		got <- msgs
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	waitSnapshot := func(want int) []model.Message {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case msgs := <-got:
				if len(msgs) == want {
					return msgs
				}
			case <-deadline:
				t.Fatalf("no snapshot with %d message(s)", want)
			}
		}
	}

	waitSnapshot(0)
	room := model.LocationRoom("plaza")
	if _, err := core.SendMessage(ctx, room, "alice", "Alice", "one"); err != nil {
		t.Fatalf("send one: %v", err)
	}
	if _, err := core.SendMessage(ctx, room, "bob", "Bob", "two"); err != nil {
		t.Fatalf("send two: %v", err)
	}

	msgs := waitSnapshot(2)
	if msgs[0].Body != "one" || msgs[1].Body != "two" {
		t.Fatalf("snapshot order %q, %q; want one, two", msgs[0].Body, msgs[1].Body)
	}
	if !msgs[0].CreatedAt.Before(msgs[1].CreatedAt) && !msgs[0].CreatedAt.Equal(msgs[1].CreatedAt) {
		t.Fatal("snapshot not in timestamp order")
	}

	unsub()
	unsub() // safe to call twice
}

// History re-sorts whatever the store returns, so rows appended with older
// timestamps still render by send time.
func TestHistoryReordersBackfill(t *testing.T) {
	store := memory.New()
	core := NewCore(store, nil, nil)
	defer core.Close()
	ctx := context.Background()

	now := time.Now().UTC()
	for i, offset := range []time.Duration{0, -2 * time.Minute, -time.Minute} {
		m := &model.Message{
			ID:        string(rune('a' + i)),
			RoomID:    "global",
			AuthorID:  "alice",
			Body:      string(rune('a' + i)),
			CreatedAt: now.Add(offset),
		}
		if err := store.Append(ctx, m); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	msgs, err := core.History(ctx, model.GlobalRoom())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("history has %d messages, want 3", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatalf("history out of order at %d", i)
		}
	}
}
