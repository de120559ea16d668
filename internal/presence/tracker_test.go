package presence

import (
	"context"
	"testing"
	"time"

	"github.com/agora/internal/model"
	"github.com/agora/internal/storage/memory"
)

func TestHeartbeatMarksOnline(t *testing.T) {
	tr := New(memory.New(), time.Minute, time.Minute)
	defer tr.Close()
	ctx := context.Background()

	rec := tr.Heartbeat(ctx, "alice", "Alice")
	if !rec.Online || rec.UserID != "alice" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	online, err := tr.ListOnline(ctx)
	if err != nil {
		t.Fatalf("list online: %v", err)
	}
	if len(online) != 1 || online[0].UserID != "alice" {
		t.Fatalf("online roster = %+v, want [alice]", online)
	}
}

// A second heartbeat from the same user renews the one lease; the roster
// never grows a duplicate entry.
func TestRepeatedHeartbeatKeepsOneRecord(t *testing.T) {
	tr := New(memory.New(), time.Minute, time.Minute)
	defer tr.Close()
	ctx := context.Background()

	first := tr.Heartbeat(ctx, "alice", "Alice")
	time.Sleep(5 * time.Millisecond)
	tr.Heartbeat(ctx, "alice", "Alice")

	online, err := tr.ListOnline(ctx)
	if err != nil {
		t.Fatalf("list online: %v", err)
	}
	if len(online) != 1 {
		t.Fatalf("roster = %+v, want exactly one record", online)
	}
	if !online[0].LastHeartbeatAt.After(first.LastHeartbeatAt) {
		t.Fatalf("lease not refreshed: %v is not after %v", online[0].LastHeartbeatAt, first.LastHeartbeatAt)
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	tr := New(memory.New(), time.Minute, time.Minute)
	defer tr.Close()
	ctx := context.Background()

	tr.Heartbeat(ctx, "alice", "Alice")
	tr.Leave(ctx, "alice")
	tr.Leave(ctx, "alice") // second leave must be a no-op

	online, err := tr.ListOnline(ctx)
	if err != nil {
		t.Fatalf("list online: %v", err)
	}
	if len(online) != 0 {
		t.Fatalf("roster not empty after leave: %+v", online)
	}
}

func TestMissedHeartbeatsLapse(t *testing.T) {
	tr := New(memory.New(), 30*time.Millisecond, time.Minute)
	defer tr.Close()
	ctx := context.Background()

	tr.Heartbeat(ctx, "alice", "Alice")
	time.Sleep(60 * time.Millisecond)

	// No sweep ran, but the lapsed lease already counts as offline.
	online, err := tr.ListOnline(ctx)
	if err != nil {
		t.Fatalf("list online: %v", err)
	}
	if len(online) != 0 {
		t.Fatalf("lapsed lease still listed: %+v", online)
	}
}

// The sweep loop must reclaim a lapsed lease and push the shrunken roster to
// subscribers without any further heartbeat activity.
func TestSweeperReclaimsLapsedLeases(t *testing.T) {
	tr := New(memory.New(), 20*time.Millisecond, 10*time.Millisecond)
	defer tr.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go tr.Run(ctx)

	tr.Heartbeat(ctx, "alice", "Alice")

	got := make(chan int, 8)
	unsub, err := tr.SubscribeOnline(ctx, func(users []model.PresenceRecord) {
		got <- len(users)
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-got:
			if n == 0 {
				return
			}
		case <-deadline:
			t.Fatal("lease never reclaimed")
		}
	}
}

func TestSubscribeOnlineFollowsRoster(t *testing.T) {
	tr := New(memory.New(), time.Minute, time.Minute)
	defer tr.Close()
	ctx := context.Background()

	got := make(chan []model.PresenceRecord, 8)
	unsub, err := tr.SubscribeOnline(ctx, func(users []model.PresenceRecord) {
		got <- users
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	waitRoster := func(want int) []model.PresenceRecord {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case users := <-got:
				if len(users) == want {
					return users
				}
			case <-deadline:
				t.Fatalf("no roster with %d user(s)", want)
			}
		}
	}

	waitRoster(0)
	tr.Heartbeat(ctx, "bob", "Bob")
	tr.Heartbeat(ctx, "alice", "Alice")
	users := waitRoster(2)
	// Roster is sorted by display name.
	if users[0].DisplayName != "Alice" || users[1].DisplayName != "Bob" {
		t.Fatalf("roster order %v, want Alice then Bob", []string{users[0].DisplayName, users[1].DisplayName})
	}

	tr.Leave(ctx, "bob")
	waitRoster(1)

	unsub()
	unsub() // idempotent
}
