// Package broker delivers live snapshots to room and presence subscribers.
// The underlying change feed pushes in no particular order, so every
// delivery is a full snapshot re-sorted before it reaches the subscriber.
package broker

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agora/internal/logger"
)

// Loader fetches the current (possibly unordered) state of one topic.
type Loader[T any] func(ctx context.Context, topic string) ([]T, error)

// Broker fans re-sorted snapshots out to subscribers per topic. Publish is
// cheap when a topic has no subscribers: the loader is not called at all.
type Broker[T any] struct {
	load Loader[T]
	less func(a, b T) bool
	seq  atomic.Uint64

	mu     sync.RWMutex
	subs   map[string]map[*Subscription[T]]struct{}
	closed bool
	wg     sync.WaitGroup
}

func New[T any](load Loader[T], less func(a, b T) bool) *Broker[T] {
	return &Broker[T]{
		load: load,
		less: less,
		subs: make(map[string]map[*Subscription[T]]struct{}),
	}
}

// snapshot is one load result. seq increases with every load, so the
// delivery path can always tell which of two snapshots is fresher.
type snapshot[T any] struct {
	seq   uint64
	items []T
}

// Subscription is one subscriber's handle. Unsubscribe is idempotent and
// stops the delivery goroutine; no background work survives it.
type Subscription[T any] struct {
	b     *Broker[T]
	topic string
	ch    chan snapshot[T]
	done  chan struct{}
	once  sync.Once
}

// Subscribe registers fn for topic and delivers the current snapshot first.
// Registration happens before the initial load, so a mutation landing while
// that load is in flight still reaches this subscriber through Publish, and
// the sequence check keeps whichever snapshot is fresher. fn is invoked
// sequentially from a dedicated goroutine; slow subscribers coalesce
// intermediate snapshots (latest wins) instead of blocking writers.
func (b *Broker[T]) Subscribe(ctx context.Context, topic string, fn func([]T)) (*Subscription[T], error) {
	sub := &Subscription[T]{
		b:     b,
		topic: topic,
		ch:    make(chan snapshot[T], 1),
		done:  make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.done)
		return nil, context.Canceled
	}
	if _, ok := b.subs[topic]; !ok {
		b.subs[topic] = make(map[*Subscription[T]]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	b.wg.Add(1)
	b.mu.Unlock()

	go sub.run(fn)

	snap, err := b.snapshot(ctx, topic)
	if err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	sub.push(snap)
	return sub, nil
}

func (s *Subscription[T]) run(fn func([]T)) {
	defer s.b.wg.Done()
	var delivered uint64
	for {
		select {
		case <-s.done:
			return
		case snap := <-s.ch:
			if snap.seq < delivered {
				continue
			}
			delivered = snap.seq
			fn(snap.items)
		}
	}
}

// push hands a snapshot to the delivery goroutine. Whichever snapshot was
// loaded later wins; an in-flight older one never displaces it.
func (s *Subscription[T]) push(snap snapshot[T]) {
	select {
	case <-s.done:
		return
	default:
	}
	for {
		select {
		case s.ch <- snap:
			return
		default:
			select {
			case pending := <-s.ch:
				if pending.seq > snap.seq {
					snap = pending
				}
			default:
			}
		}
	}
}

// Unsubscribe detaches the subscriber. Safe to call multiple times and from
// any goroutine.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		s.b.mu.Lock()
		if set, ok := s.b.subs[s.topic]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.b.subs, s.topic)
			}
		}
		s.b.mu.Unlock()
		close(s.done)
	})
}

// Publish reloads the topic and delivers the re-sorted snapshot to every
// subscriber. Load failures are logged, not propagated: the triggering
// write already succeeded and must not be failed retroactively.
func (b *Broker[T]) Publish(ctx context.Context, topic string) {
	defer logger.DeferLogDuration("broker.Publish", time.Now())()
	b.mu.RLock()
	set, ok := b.subs[topic]
	targets := make([]*Subscription[T], 0, len(set))
	if ok {
		for sub := range set {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	snap, err := b.snapshot(ctx, topic)
	if err != nil {
		logger.Errorf("broker publish topic=%s: %v", topic, err)
		return
	}
	for _, sub := range targets {
		sub.push(snap)
	}
}

// snapshot loads a topic and sorts it into presentation order. The loader's
// order is untrusted by contract. The sequence number is claimed before the
// load starts, so a load that began after another one finished always
// carries the higher number.
func (b *Broker[T]) snapshot(ctx context.Context, topic string) (snapshot[T], error) {
	seq := b.seq.Add(1)
	items, err := b.load(ctx, topic)
	if err != nil {
		return snapshot[T]{}, err
	}
	sort.SliceStable(items, func(i, j int) bool { return b.less(items[i], items[j]) })
	return snapshot[T]{seq: seq, items: items}, nil
}

// Close detaches all subscribers and waits for their delivery goroutines.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	b.closed = true
	all := make([]*Subscription[T], 0, 16)
	for _, set := range b.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range all {
		sub.Unsubscribe()
	}
	b.wg.Wait()
}
