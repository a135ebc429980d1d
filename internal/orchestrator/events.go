package orchestrator

import (
	"sync"
	"time"
)

// EventBus stores recent snapshots and fans them out to subscribers.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Snapshot
	subs      map[int]chan Snapshot
	nextSub   int
}

// NewEventBus creates a bounded in-memory snapshot history.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Snapshot, 0, maxEvents),
		subs:      make(map[int]chan Snapshot),
	}
}

// Publish appends one snapshot and assigns its sequence number.
func (b *EventBus) Publish(s Snapshot) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	s.Seq = b.nextSeq
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}

	b.events = append(b.events, s)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Snapshot(nil), b.events[trim:]...)
	}

	for _, ch := range b.subs {
		deliverLatest(ch, s.clone())
	}
	return s
}

// Since returns snapshots with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Snapshot, 0, len(b.events))
	for _, s := range b.events {
		if s.Seq > seq {
			out = append(out, s.clone())
		}
	}
	return out
}

// Subscribe returns a channel receiving every published snapshot. When the
// reader falls behind, older undelivered snapshots are dropped so the newest
// one always arrives. The returned func unsubscribes and closes the channel.
func (b *EventBus) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Snapshot, buffer)

	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func deliverLatest(ch chan Snapshot, s Snapshot) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
