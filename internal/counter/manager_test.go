package counter

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/agora/internal/model"
	"github.com/agora/internal/storage"
	"github.com/agora/internal/storage/memory"
)

func newManager(t *testing.T) (*Manager, *memory.Client) {
	t.Helper()
	store := memory.New()
	store.SeedContent(model.KindPost, "p1")
	return New(store, store), store
}

func TestAdjustRejectsBadDelta(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	for _, delta := range []int{0, 2, -2, 10} {
		if err := m.Adjust(ctx, model.KindPost, "p1", model.FieldCommentCount, delta); !errors.Is(err, ErrBadDelta) {
			t.Errorf("delta %d: want ErrBadDelta, got %v", delta, err)
		}
	}
	if err := m.Adjust(ctx, model.KindPost, "p1", model.FieldCommentCount, 1); err != nil {
		t.Fatalf("delta +1: %v", err)
	}
	if err := m.Adjust(ctx, model.KindPost, "p1", model.FieldCommentCount, -1); err != nil {
		t.Fatalf("delta -1: %v", err)
	}
}

func TestAdjustFloorsAtZero(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	if err := m.Adjust(ctx, model.KindPost, "p1", model.FieldLikeCount, -1); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	ec, err := m.Counters(ctx, model.KindPost, "p1")
	if err != nil {
		t.Fatalf("counters: %v", err)
	}
	if ec.LikeCount != 0 {
		t.Fatalf("like_count = %d, want 0 (never negative)", ec.LikeCount)
	}
}

func TestAdjustUnknownContent(t *testing.T) {
	m, _ := newManager(t)
	err := m.Adjust(context.Background(), model.KindRecipePost, "nope", model.FieldLikeCount, 1)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestToggleLikeRoundTrip(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	liked, ec, err := m.ToggleLike(ctx, model.KindPost, "p1", "alice")
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if !liked || ec.LikeCount != 1 {
		t.Fatalf("first toggle: liked=%v count=%d, want true/1", liked, ec.LikeCount)
	}

	liked, ec, err = m.ToggleLike(ctx, model.KindPost, "p1", "alice")
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if liked || ec.LikeCount != 0 || len(ec.LikedBy) != 0 {
		t.Fatalf("second toggle: liked=%v count=%d likedBy=%v, want false/0/empty", liked, ec.LikeCount, ec.LikedBy)
	}
}

// Concurrent toggles by distinct users must keep like_count equal to the
// size of the liked_by set. Each user toggles an odd number of times, so at
// the end everyone is a liker exactly once.
func TestToggleLikeConcurrent(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	const users = 32
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := string(rune('a'+n%26)) + string(rune('0'+n/26))
			for j := 0; j < 3; j++ {
				if _, _, err := m.ToggleLike(ctx, model.KindPost, "p1", user); err != nil {
					t.Errorf("toggle user=%s: %v", user, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	ec, err := m.Counters(ctx, model.KindPost, "p1")
	if err != nil {
		t.Fatalf("counters: %v", err)
	}
	if ec.LikeCount != len(ec.LikedBy) {
		t.Fatalf("like_count=%d but liked_by has %d entries", ec.LikeCount, len(ec.LikedBy))
	}
	if ec.LikeCount != users {
		t.Fatalf("like_count=%d, want %d", ec.LikeCount, users)
	}
}

func TestDriftAndRepair(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()

	// Two real comments, but a counter that claims five.
	for _, id := range []string{"c1", "c2"} {
		c := &model.Comment{ID: id, ParentKind: model.KindPost, ParentID: "p1", AuthorID: "alice", Body: "hi"}
		if err := store.CreateComment(ctx, c); err != nil {
			t.Fatalf("create comment: %v", err)
		}
	}
	if err := store.SetCommentCount(ctx, model.KindPost, "p1", 5); err != nil {
		t.Fatalf("set count: %v", err)
	}

	stored, actual, drifted, err := m.CheckDrift(ctx, model.KindPost, "p1")
	if err != nil {
		t.Fatalf("check drift: %v", err)
	}
	if !drifted || stored != 5 || actual != 2 {
		t.Fatalf("drift: stored=%d actual=%d drifted=%v, want 5/2/true", stored, actual, drifted)
	}

	n, err := m.Repair(ctx, model.KindPost, "p1")
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if n != 2 {
		t.Fatalf("repair returned %d, want 2", n)
	}
	_, _, drifted, err = m.CheckDrift(ctx, model.KindPost, "p1")
	if err != nil {
		t.Fatalf("check drift after repair: %v", err)
	}
	if drifted {
		t.Fatal("still drifted after repair")
	}
}
