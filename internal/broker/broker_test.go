package broker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agora/internal/model"
)

// feed is a loader backed by a mutable slice; Append deliberately preserves
// arrival order so tests can feed the broker out of timestamp order.
type feed struct {
	mu    sync.Mutex
	items map[string][]model.Message
}

func newFeed() *feed {
	return &feed{items: make(map[string][]model.Message)}
}

func (f *feed) Append(topic string, m model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[topic] = append(f.items[topic], m)
}

func (f *feed) Load(ctx context.Context, topic string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Message, len(f.items[topic]))
	copy(out, f.items[topic])
	return out, nil
}

func byCreatedAt(a, b model.Message) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func msgAt(id string, t time.Time) model.Message {
	return model.Message{ID: id, RoomID: "global", Body: id, CreatedAt: t}
}

func waitSnapshot(t *testing.T, ch <-chan []model.Message, want int) []model.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-ch:
			if len(snap) == want {
				return snap
			}
		case <-deadline:
			t.Fatalf("timed out waiting for snapshot of %d items", want)
		}
	}
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	f := newFeed()
	base := time.Now().UTC()
	f.Append("global", msgAt("m1", base))
	f.Append("global", msgAt("m2", base.Add(time.Second)))

	b := New(f.Load, byCreatedAt)
	defer b.Close()

	got := make(chan []model.Message, 8)
	sub, err := b.Subscribe(context.Background(), "global", func(s []model.Message) { got <- s })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	snap := waitSnapshot(t, got, 2)
	if snap[0].ID != "m1" || snap[1].ID != "m2" {
		t.Errorf("initial snapshot order = %s, %s; want m1, m2", snap[0].ID, snap[1].ID)
	}
}

func TestOutOfOrderPushesRenderByTimestamp(t *testing.T) {
	f := newFeed()
	b := New(f.Load, byCreatedAt)
	defer b.Close()

	got := make(chan []model.Message, 8)
	sub, err := b.Subscribe(context.Background(), "global", func(s []model.Message) { got <- s })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()
	waitSnapshot(t, got, 0)

	// Arrival order t3, t1, t2: the transport gives no ordering guarantee.
	base := time.Now().UTC()
	t1, t2, t3 := base, base.Add(time.Second), base.Add(2*time.Second)
	f.Append("global", msgAt("m3", t3))
	b.Publish(context.Background(), "global")
	f.Append("global", msgAt("m1", t1))
	b.Publish(context.Background(), "global")
	f.Append("global", msgAt("m2", t2))
	b.Publish(context.Background(), "global")

	snap := waitSnapshot(t, got, 3)
	for i, want := range []string{"m1", "m2", "m3"} {
		if snap[i].ID != want {
			t.Fatalf("snapshot[%d] = %s, want %s (full: %v)", i, snap[i].ID, want, ids(snap))
		}
	}
}

func ids(snap []model.Message) []string {
	out := make([]string, len(snap))
	for i, m := range snap {
		out[i] = m.ID
	}
	return out
}

// A write landing while a subscriber's first load is still in flight must
// reach that subscriber, and the stale first snapshot must not displace it.
func TestSubscribeConcurrentWithPublish(t *testing.T) {
	f := newFeed()
	firstLoad := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	load := func(ctx context.Context, topic string) ([]model.Message, error) {
		if calls.Add(1) == 1 {
			close(firstLoad)
			<-release
			// The state as of when this load began, before the write below.
			return nil, nil
		}
		return f.Load(ctx, topic)
	}

	b := New(load, byCreatedAt)
	defer b.Close()

	got := make(chan []model.Message, 8)
	subErr := make(chan error, 1)
	go func() {
		_, err := b.Subscribe(context.Background(), "global", func(s []model.Message) { got <- s })
		subErr <- err
	}()

	<-firstLoad
	f.Append("global", msgAt("m1", time.Now().UTC()))
	b.Publish(context.Background(), "global")
	close(release)

	if err := <-subErr; err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	waitSnapshot(t, got, 1)

	// The unblocked initial (empty) snapshot must never arrive now.
	settle := time.After(100 * time.Millisecond)
	for {
		select {
		case snap := <-got:
			if len(snap) != 1 {
				t.Fatalf("stale snapshot delivered after the write: %v", ids(snap))
			}
		case <-settle:
			return
		}
	}
}

func TestUnsubscribeIdempotentAndStopsDelivery(t *testing.T) {
	f := newFeed()
	b := New(f.Load, byCreatedAt)
	defer b.Close()

	var mu sync.Mutex
	calls := 0
	sub, err := b.Subscribe(context.Background(), "global", func([]model.Message) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// Let the initial snapshot land, then detach twice.
	time.Sleep(50 * time.Millisecond)
	sub.Unsubscribe()
	sub.Unsubscribe()

	mu.Lock()
	before := calls
	mu.Unlock()

	f.Append("global", msgAt("m1", time.Now().UTC()))
	b.Publish(context.Background(), "global")
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	after := calls
	mu.Unlock()
	if after != before {
		t.Errorf("callback invoked %d times after Unsubscribe", after-before)
	}
}

func TestPublishSkipsLoaderWithoutSubscribers(t *testing.T) {
	loads := 0
	b := New(func(ctx context.Context, topic string) ([]model.Message, error) {
		loads++
		return nil, nil
	}, byCreatedAt)
	defer b.Close()

	b.Publish(context.Background(), "global")
	if loads != 0 {
		t.Errorf("loader called %d times with no subscribers, want 0", loads)
	}
}

func TestCloseDetachesAllSubscribers(t *testing.T) {
	f := newFeed()
	b := New(f.Load, byCreatedAt)

	got := make(chan []model.Message, 8)
	if _, err := b.Subscribe(context.Background(), "global", func(s []model.Message) { got <- s }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	waitSnapshot(t, got, 0)

	b.Close()

	if _, err := b.Subscribe(context.Background(), "global", func([]model.Message) {}); err == nil {
		t.Error("Subscribe after Close should fail")
	}
}
