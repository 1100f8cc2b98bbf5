package chat

import "neurotome/core"

type MessageAppendedEvent struct {
	Message core.Message
}

func (e *MessageAppendedEvent) GetId() string {
	return "chat.message_appended"
}

type RequestStartedEvent struct {
	HistorySize int // messages included in the prompt window
}

func (e *RequestStartedEvent) GetId() string {
	return "chat.request_started"
}

// RequestSettledEvent is fired after the assistant message for a turn has
// been appended.
type RequestSettledEvent struct {
	Fallback bool
	Error    string
}

func (e *RequestSettledEvent) GetId() string {
	return "chat.request_settled"
}

type MessagesClearedEvent struct{}

func (e *MessagesClearedEvent) GetId() string {
	return "chat.messages_cleared"
}
