// Package observer carries typed engine events to dashboards and other
// listeners. Delivery is outbound-only, fire-and-forget, at-most-once:
// the engine never blocks on or assumes anything about its observers.
package observer

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType enumerates the event stream pushed to observers.
type EventType string

const (
	EventIndicators EventType = "indicators"
	EventSentiment  EventType = "sentiment"
	EventDecision   EventType = "decision"
	EventExecution  EventType = "execution"
	EventPortfolio  EventType = "portfolio"
)

// Event is one occurrence pushed once to every registered observer.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
	Ts      time.Time `json:"ts"`
}

// Observer receives events. Implementations must not block; slow
// consumers drop events rather than stall the engine.
type Observer interface {
	Notify(Event)
}

// Hub fans one event out to every registered observer. A panicking
// observer is isolated and logged; it never reaches the control loop.
type Hub struct {
	mu        sync.RWMutex
	observers []Observer
	log       zerolog.Logger
}

// NewHub builds an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{log: log.With().Str("component", "observer").Logger()}
}

// Register adds an observer. Registration order is delivery order.
func (h *Hub) Register(o Observer) {
	if o == nil {
		return
	}
	h.mu.Lock()
	h.observers = append(h.observers, o)
	h.mu.Unlock()
}

// Publish stamps and delivers the event to each observer, best-effort.
func (h *Hub) Publish(eventType EventType, payload any) {
	event := Event{Type: eventType, Payload: payload, Ts: time.Now().UTC()}

	h.mu.RLock()
	observers := make([]Observer, len(h.observers))
	copy(observers, h.observers)
	h.mu.RUnlock()

	for _, o := range observers {
		h.deliver(o, event)
	}
}

func (h *Hub) deliver(o Observer, event Event) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Warn().Interface("panic", r).Str("event", string(event.Type)).Msg("observer panicked")
		}
	}()
	o.Notify(event)
}
