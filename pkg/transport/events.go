package transport

import "time"

// EventType enumerates the diagnostic events an Endpoint raises over its
// lifetime. These carry no wire behavior of their own — they exist so that
// logging (pkg/logger) and metrics (metrics.go) can observe the endpoint
// without THE CORE importing either.
type EventType int

const (
	EventHandshakeComplete EventType = iota
	EventPacketSent
	EventPacketReceived
	EventCorruptDiscarded
	EventMalformedDiscarded
	EventFastRetransmit
	EventRetransmitTimeout
	EventWindowUpdate
	EventDelivered
	EventBytesInFlightChanged
)

func (t EventType) String() string {
	switch t {
	case EventHandshakeComplete:
		return "handshake_complete"
	case EventPacketSent:
		return "packet_sent"
	case EventPacketReceived:
		return "packet_received"
	case EventCorruptDiscarded:
		return "corrupt_discarded"
	case EventMalformedDiscarded:
		return "malformed_discarded"
	case EventFastRetransmit:
		return "fast_retransmit"
	case EventRetransmitTimeout:
		return "retransmit_timeout"
	case EventWindowUpdate:
		return "window_update"
	case EventDelivered:
		return "delivered"
	case EventBytesInFlightChanged:
		return "bytes_in_flight_changed"
	default:
		return "unknown"
	}
}

// Event is a single diagnostic observation raised by an Endpoint.
type Event struct {
	Type      EventType
	ConnID    string
	Seq       uint16
	Ack       uint16
	Win       uint16
	Bytes     int
	Timestamp time.Time
}

// EventHandler observes events raised on an EventBus.
type EventHandler func(Event)

// EventBus is a minimal synchronous pub-sub, fired inline on the event
// loop goroutine — there is no buffering or async dispatch, matching the
// loop's single-threaded, cooperative scheduling model (spec.md §5).
type EventBus struct {
	handlers map[EventType][]EventHandler
}

// NewEventBus returns an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[EventType][]EventHandler)}
}

// Subscribe registers handler to be called for every event of type t.
func (b *EventBus) Subscribe(t EventType, handler EventHandler) {
	b.handlers[t] = append(b.handlers[t], handler)
}

// Publish calls every handler subscribed to ev.Type, in registration order.
func (b *EventBus) Publish(ev Event) {
	for _, h := range b.handlers[ev.Type] {
		h(ev)
	}
}
