package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event carries one in-memory signal between components.
//
// Publish never blocks, so every subscriber channel is buffered and a
// subscriber that falls behind loses events rather than stalling the
// publisher. Data stays small; run payloads are plain structs.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
	// Drops reports how many events were discarded because a subscriber
	// buffer was full. Useful as a health signal.
	Drops() uint64
}

// New returns an in-memory fanout bus. It runs no goroutines of its own.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu    sync.RWMutex
	subs  map[uint64]chan Event
	seq   atomic.Uint64
	drops atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	// Take a snapshot under the read lock, deliver without it.
	b.mu.RLock()
	targets := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		b.offer(ch, e)
	}
}

// offer attempts one non-blocking send. A concurrent unsubscribe may close
// the channel mid-send; the recover absorbs that race.
func (b *memBus) offer(ch chan Event, e Event) {
	defer func() { _ = recover() }()
	select {
	case ch <- e:
	default:
		b.drops.Add(1)
	}
}

func (b *memBus) Drops() uint64 {
	return b.drops.Load()
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			// Safe because offer recovers from sends on a closed channel.
			close(ch)
		})
	}
	return ch, unsub
}
