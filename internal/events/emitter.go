// Package events carries airdrop lifecycle notifications from services to
// in-process observers (websocket fanout, metrics) and, through an optional
// bridge, to NATS.
package events

import (
	"log"
	"sync"
	"time"
)

// EventType airdrop lifecycle event name
type EventType string

const (
	EventAirdropQueued                   EventType = "airdropQueued"
	EventBatchQueued                     EventType = "batchQueued"
	EventBatchCompleted                  EventType = "batchCompleted"
	EventAutonomousDistributionProcessed EventType = "autonomousDistributionProcessed"
	EventAutonomousDistributionFailed    EventType = "autonomousDistributionFailed"
)

// Event is one lifecycle notification. Payload contents depend on Type.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
}

// Handler receives events. Handlers must not block; slow consumers should
// buffer on their side.
type Handler func(Event)

// Emitter is an explicit observer registry. Services receive an *Emitter
// through their constructor and publish into it; observers register with
// Subscribe and detach with the returned function.
type Emitter struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
}

// NewEmitter creates an empty registry.
func NewEmitter() *Emitter {
	return &Emitter{
		handlers: make(map[int]Handler),
	}
}

// Subscribe registers a handler for all event types and returns the
// unsubscribe function.
func (e *Emitter) Subscribe(handler Handler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.handlers[id] = handler

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.handlers, id)
	}
}

// Emit delivers the event to every registered handler. A panicking handler
// is dropped from the delivery, not allowed to take the service down.
func (e *Emitter) Emit(eventType EventType, payload map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	e.mu.RLock()
	handlers := make([]Handler, 0, len(e.handlers))
	for _, h := range e.handlers {
		handlers = append(handlers, h)
	}
	e.mu.RUnlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("⚠️ [Events] Handler panicked on %s event: %v", eventType, r)
				}
			}()
			handler(event)
		}()
	}
}

// SubscriberCount reports the number of registered handlers.
func (e *Emitter) SubscriberCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers)
}

// EventPublisher is what the NATS bridge needs from the messaging client.
type EventPublisher interface {
	PublishEvent(eventType string, payload interface{})
}

// BridgeToNATS forwards every emitted event to NATS. Returns the unsubscribe
// function.
func BridgeToNATS(emitter *Emitter, publisher EventPublisher) func() {
	return emitter.Subscribe(func(event Event) {
		publisher.PublishEvent(string(event.Type), event)
	})
}
