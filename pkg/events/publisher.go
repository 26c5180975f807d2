// Package events is the in-process publish/subscribe channel between the
// game core and the transport layer.
package events

import "sync"

// EventType represents the type of event
type EventType string

// Define event types
const (
	EventSessionCreated   EventType = "SESSION_CREATED"
	EventSessionStarted   EventType = "SESSION_STARTED"
	EventMoveApplied      EventType = "MOVE_APPLIED"
	EventSessionEnded     EventType = "SESSION_ENDED"
	EventOfferPending     EventType = "OFFER_PENDING"
	EventOfferResolved    EventType = "OFFER_RESOLVED"
	EventPresenceChanged  EventType = "PRESENCE_CHANGED"
	EventMatchFound       EventType = "MATCH_FOUND"
	EventConnectionClosed EventType = "CONNECTION_CLOSED"
)

// Event represents an event in the system
type Event struct {
	Type      EventType
	SessionID string // Optional, can be empty for non-session events
	Payload   interface{}
}

// Handler is a function that processes events
type Handler func(event Event)

// Publisher is the central event publisher
type Publisher struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Handler
}

// NewPublisher creates a new event publisher
func NewPublisher() *Publisher {
	return &Publisher{
		subscribers: make(map[EventType][]Handler),
	}
}

// Subscribe registers a handler for a specific event type
func (p *Publisher) Subscribe(eventType EventType, handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.subscribers[eventType] = append(p.subscribers[eventType], handler)
}

// Publish delivers an event to all subscribers in the caller's goroutine.
// Delivery is synchronous on purpose: session mutations publish while they
// hold the session lock, so events reach the transport layer in commit
// order. Handlers must be non-blocking and must not mutate sessions.
func (p *Publisher) Publish(event Event) {
	p.mu.RLock()
	handlers := p.subscribers[event.Type]
	p.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}
