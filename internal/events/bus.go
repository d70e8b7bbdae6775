package events

import "sync"

// defaultBuffer is the subscriber channel capacity used when the caller does
// not pick one.
const defaultBuffer = 256

// subscription is one subscriber channel. An empty topic matches every event.
type subscription struct {
	topic string
	ch    chan Event
}

// EventBus fans events out to subscriber channels, either per topic or across
// all topics. Delivery never blocks the publisher: a subscriber that falls
// behind loses events once its buffer fills.
type EventBus struct {
	mu     sync.RWMutex
	subs   []subscription
	closed bool
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe returns a channel receiving events published to the given topic.
// bufSize <= 0 selects the default buffer. A closed bus returns a closed
// channel.
func (b *EventBus) Subscribe(topic string, bufSize int) <-chan Event {
	return b.subscribe(topic, bufSize)
}

// SubscribeAll returns a channel receiving events from every topic.
func (b *EventBus) SubscribeAll(bufSize int) <-chan Event {
	return b.subscribe("", bufSize)
}

func (b *EventBus) subscribe(topic string, bufSize int) <-chan Event {
	if bufSize <= 0 {
		bufSize = defaultBuffer
	}
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, subscription{topic: topic, ch: ch})
	return ch
}

// Publish delivers an event to every subscriber of the topic and to every
// all-topic subscriber. Full channels are skipped.
func (b *EventBus) Publish(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, sub := range b.subs {
		if sub.topic != "" && sub.topic != topic {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Subscriber buffer full; drop rather than stall the publisher
		}
	}
}

// Close closes every subscriber channel. Idempotent; Publish after Close is a
// no-op.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}
