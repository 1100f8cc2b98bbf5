package core

import (
	"time"

	"github.com/google/uuid"
)

type EventPacket struct {
	Event     IEvent
	Uid       string    // Unique identifier for tracking the event packet.
	Relayer   string    // Identifier of the component that emitted the event.
	CreatedAt time.Time // Emission instant.
}

func NewEventPacket(event IEvent, relayer string) *EventPacket {
	return &EventPacket{
		Event:     event,
		Uid:       uuid.New().String(),
		Relayer:   relayer,
		CreatedAt: time.Now(),
	}
}

// Emit wraps event in a packet and publishes it when sink is set.
func Emit(sink EventSink, event IEvent, relayer string) {
	if sink == nil {
		return
	}
	sink.Publish(NewEventPacket(event, relayer))
}
