package events

import (
	"sync"
	"time"
)

const subscriberBuffer = 64

// Bus is an in-process, per-topic publish/subscribe registry. Publish
// never blocks: a subscriber whose buffer is full has the event
// dropped rather than the publisher stalling. A slow subscriber causes
// drops for itself, never back-pressure on the publisher or on other
// subscribers.
//
// The registry map is guarded by sync.RWMutex, with a snapshot-then-send
// broadcast so the lock is never held across a channel send to a
// potentially slow receiver.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}

	droppedMu sync.Mutex
	dropped   map[string]int
}

type subscriber struct {
	ch chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		subs:    make(map[string]map[*subscriber]struct{}),
		dropped: make(map[string]int),
	}
}

// Subscription is a live handle returned by Subscribe; callers must
// call Close when done to release the registry slot.
type Subscription struct {
	bus   *Bus
	topic string
	sub   *subscriber
}

// Events returns the channel new events arrive on.
func (s *Subscription) Events() <-chan Event { return s.sub.ch }

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if set, ok := s.bus.subs[s.topic]; ok {
		delete(set, s.sub)
		if len(set) == 0 {
			delete(s.bus.subs, s.topic)
		}
	}
	close(s.sub.ch)
}

// Subscribe registers for events published on topic after this call
// returns — there is no replay here; SSE catchup is served separately
// from the store's events table.
func (b *Bus) Subscribe(topic string) *Subscription {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}

	b.mu.Lock()
	set, ok := b.subs[topic]
	if !ok {
		set = make(map[*subscriber]struct{})
		b.subs[topic] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()

	return &Subscription{bus: b, topic: topic, sub: sub}
}

// Publish delivers ev to every current subscriber of topic. Events
// from a single publisher goroutine are delivered in call order to
// each subscriber's channel; cross-publisher order is unspecified.
func (b *Bus) Publish(topic string, typ Type, payload any) {
	ev := Event{Topic: topic, Type: typ, Payload: payload, Timestamp: time.Now()}

	b.mu.RLock()
	set := b.subs[topic]
	snapshot := make([]*subscriber, 0, len(set))
	for sub := range set {
		snapshot = append(snapshot, sub)
	}
	b.mu.RUnlock()

	for _, sub := range snapshot {
		select {
		case sub.ch <- ev:
		default:
			b.recordDrop(topic)
		}
	}
}

func (b *Bus) recordDrop(topic string) {
	b.droppedMu.Lock()
	b.dropped[topic]++
	b.droppedMu.Unlock()
}

// DroppedCount reports how many events were dropped for topic due to a
// full subscriber buffer, for health/metrics reporting.
func (b *Bus) DroppedCount(topic string) int {
	b.droppedMu.Lock()
	defer b.droppedMu.Unlock()
	return b.dropped[topic]
}
