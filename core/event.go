package core

type IEvent interface {
	GetId() string // Returns the unique identifier of the event kind.
}

// EventSink receives event packets emitted by the voice coordinator and the
// chat session. Implementations must not block for long; they are called
// outside the emitter's locks but on the emitter's goroutine.
type EventSink interface {
	Publish(packet *EventPacket)
}

// EventSinkFunc adapts a plain function to EventSink.
type EventSinkFunc func(packet *EventPacket)

func (f EventSinkFunc) Publish(packet *EventPacket) {
	f(packet)
}

// FanOut publishes every packet to each non-nil sink in order.
type FanOut []EventSink

func (f FanOut) Publish(packet *EventPacket) {
	for _, s := range f {
		if s != nil {
			s.Publish(packet)
		}
	}
}
