// Package eventbus fans search events out to metrics sinks, the MQTT
// publisher and any other in-process listener.
package eventbus

// Event represents an arbitrary event passed on the bus.
type Event interface{}

// EventBus implements a simple publish/subscribe event bus.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus is the untyped bus the search engine publishes on.
type Bus = TypedBus[Event]

var _ EventBus = (*Bus)(nil)

// New creates a new Bus.
func New(opts ...Option) *Bus { return NewTyped[Event](opts...) }
