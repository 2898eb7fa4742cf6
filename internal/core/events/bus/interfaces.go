package bus

import "time"

// EventBus is an in-process pub/sub bus used to announce runtime lifecycle
// changes (entity created/destroyed, manager teardown).
//
// Delivery is synchronous: Publish runs every handler in the caller goroutine,
// in subscription order. Handler errors are joined and returned. All methods
// are safe for concurrent use, though the runtime itself only publishes from
// the update thread.
type EventBus interface {
	// Publish delivers the event to every active subscriber of event.Type().
	Publish(event Event) error
	// PublishBatch publishes events sequentially and aggregates errors across them.
	PublishBatch(events ...Event) error
	// Subscribe registers a handler for an event type.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. Nil is ignored.
	Unsubscribe(Subscription) error
	// SubscriberCount reports the active subscribers of an event type.
	SubscriberCount(eventType string) int
	// AddObserver registers an observer that sees every delivery.
	AddObserver(obs EventBusObserver)
	// GetMetrics returns a snapshot of accumulated counters. Counters only move
	// while at least one observer is registered.
	GetMetrics() EventBusMetrics
}

// Event is an immutable message transported by the EventBus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
	Metadata() map[string]any
}

type (
	// EventHandler is invoked per delivered event.
	EventHandler func(event Event) error
)

// Subscription is a registered handler bound to an event type.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// EventBusObserver is notified about deliveries and errors.
type EventBusObserver interface {
	OnPublish(eventType string, event Event)
	OnDelivered(eventType string, handlers int, err error, durationMicros int64)
}

type EventBusMetrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
}
