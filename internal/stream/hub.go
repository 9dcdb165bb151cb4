// Package stream distributes engine events to subscribers with a fan-out hub.
// Subscribers are fire-and-forget: a slow consumer drops events, it never
// stalls the engine.
package stream

import (
	"sync"
	"time"
)

// EventType enumerates the events the engine publishes.
type EventType string

const (
	EventStarted       EventType = "started"
	EventStopped       EventType = "stopped"
	EventTradeOpened   EventType = "trade_opened"
	EventTradeClosed   EventType = "trade_closed"
	EventSignal        EventType = "signal"
	EventRiskDenied    EventType = "risk_denied"
	EventError         EventType = "error"
	EventConfigUpdated EventType = "config_updated"
)

// Event is one published engine event. Payload holds the relevant domain
// entity (signal, position, trade result, error text).
type Event struct {
	Type      EventType
	Symbol    string
	Payload   interface{}
	Timestamp time.Time
}

// HubConfig controls buffering behaviour.
type HubConfig struct {
	SubscriberBufferSize int
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{SubscriberBufferSize: 64}
}

// Subscriber is one registered event consumer.
type Subscriber struct {
	ID        string
	Channel   chan Event
	Types     map[EventType]bool // nil means all types
	Dropped   uint64
	CreatedAt time.Time
}

// Hub fans events out to subscribers with non-blocking sends.
type Hub struct {
	config HubConfig

	mu          sync.RWMutex
	subscribers []*Subscriber
	closed      bool

	metricsMu sync.Mutex
	published uint64
	delivered uint64
	dropped   uint64
}

// NewHub creates a hub with default configuration.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultHubConfig())
}

// NewHubWithConfig creates a hub with custom configuration.
func NewHubWithConfig(config HubConfig) *Hub {
	return &Hub{config: config}
}

// Subscribe registers for all event types and returns the receive channel.
func (h *Hub) Subscribe(id string) <-chan Event {
	return h.SubscribeTypes(id)
}

// SubscribeTypes registers for specific event types only. With no types given
// the subscriber receives everything.
func (h *Hub) SubscribeTypes(id string, types ...EventType) <-chan Event {
	sub := &Subscriber{
		ID:        id,
		Channel:   make(chan Event, h.config.SubscriberBufferSize),
		CreatedAt: time.Now(),
	}
	if len(types) > 0 {
		sub.Types = make(map[EventType]bool, len(types))
		for _, t := range types {
			sub.Types[t] = true
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.Channel)
		return sub.Channel
	}
	h.subscribers = append(h.subscribers, sub)
	return sub.Channel
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(ch <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, sub := range h.subscribers {
		if sub.Channel == ch {
			close(sub.Channel)
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			return
		}
	}
}

// Publish fans an event out to every matching subscriber. Sends are
// non-blocking: a full subscriber buffer drops the event for that subscriber
// only.
func (h *Hub) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	h.mu.RLock()
	subs := h.subscribers
	closed := h.closed
	h.mu.RUnlock()

	h.metricsMu.Lock()
	h.published++
	h.metricsMu.Unlock()

	if closed {
		return
	}

	for _, sub := range subs {
		if sub.Types != nil && !sub.Types[event.Type] {
			continue
		}
		select {
		case sub.Channel <- event:
			h.metricsMu.Lock()
			h.delivered++
			h.metricsMu.Unlock()
		default:
			h.metricsMu.Lock()
			sub.Dropped++
			h.dropped++
			h.metricsMu.Unlock()
		}
	}
}

// Emit is shorthand for publishing a typed event.
func (h *Hub) Emit(t EventType, symbol string, payload interface{}) {
	h.Publish(Event{Type: t, Symbol: symbol, Payload: payload})
}

// Close closes all subscriber channels. Further publishes are dropped and
// further subscriptions receive a closed channel. Idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for _, sub := range h.subscribers {
		close(sub.Channel)
	}
	h.subscribers = nil
}

// SubscriberCount returns the number of registered subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Metrics reports publish/delivery/drop counters.
func (h *Hub) Metrics() HubMetrics {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	return HubMetrics{
		Published: h.published,
		Delivered: h.delivered,
		Dropped:   h.dropped,
	}
}

// HubMetrics contains hub performance counters.
type HubMetrics struct {
	Published uint64
	Delivered uint64
	Dropped   uint64
}
