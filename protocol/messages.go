package protocol

import (
	"encoding/json"
	"time"
)

// MessageType enumerates all control-plane message types.
type MessageType string

const (
	// Agent -> UI
	MsgRegister     MessageType = "register"
	MsgHeartbeat    MessageType = "heartbeat"
	MsgLog          MessageType = "log"
	MsgLogEnd       MessageType = "log_end"
	MsgEvent        MessageType = "event"
	MsgVoiceState   MessageType = "voice_state"
	MsgSessionState MessageType = "session_state"
	MsgAvatar       MessageType = "avatar"

	// UI -> Agent
	MsgPushToTalk    MessageType = "push_to_talk"
	MsgStopSpeaking  MessageType = "stop_speaking"
	MsgSelectMood    MessageType = "select_mood"
	MsgSendText      MessageType = "send_text"
	MsgClearMessages MessageType = "clear_messages"
	MsgShutdown      MessageType = "shutdown"
	MsgAck           MessageType = "ack"
)

// Envelope is the outer JSON wrapper for all WebSocket messages.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- Agent -> UI payloads ---

// RegisterPayload is sent once by the agent immediately after connecting.
type RegisterPayload struct {
	AgentID      string            `json:"agent_id"`
	SessionID    string            `json:"session_id"`
	Version      string            `json:"version,omitempty"`
	Capabilities []string          `json:"capabilities,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// HeartbeatPayload is sent periodically to keep the connection alive.
type HeartbeatPayload struct {
	AgentID   string    `json:"agent_id"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"` // "idle", "listening", "thinking", "speaking"
}

// LogPayload carries a single log entry.
type LogPayload struct {
	AgentID   string   `json:"agent_id"`
	SessionID string   `json:"session_id"`
	Entry     LogEntry `json:"entry"`
}

// LogEntry is a structured log line.
type LogEntry struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Message   string                 `json:"msg"`
	Attrs     map[string]interface{} `json:"attrs,omitempty"`
}

// LogEndPayload signals that a session's log stream has ended.
type LogEndPayload struct {
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`
}

// EventPayload carries a core event for external consumers.
type EventPayload struct {
	SessionID string          `json:"session_id"`
	EventID   string          `json:"event_id"`
	Uid       string          `json:"uid"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// VoiceStatePayload mirrors the coordinator flags.
type VoiceStatePayload struct {
	IsListening bool `json:"is_listening"`
	IsSpeaking  bool `json:"is_speaking"`
	IsSupported bool `json:"is_supported"`
}

// MessagePayload is one conversation log entry as rendered by the UI.
type MessagePayload struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Mood      string    `json:"mood,omitempty"`
}

// SessionStatePayload carries the full conversation state.
type SessionStatePayload struct {
	SessionID string           `json:"session_id"`
	Messages  []MessagePayload `json:"messages"`
	IsLoading bool             `json:"is_loading"`
	Error     string           `json:"error,omitempty"`
}

// AvatarPayload tells the UI which expression to render.
type AvatarPayload struct {
	Expression string `json:"expression"` // "neutral", "listening", "speaking", "empathetic"
}

// --- UI -> Agent payloads ---

// SelectMoodPayload carries the mood picked on the check-in screen.
type SelectMoodPayload struct {
	Mood string `json:"mood"`
}

// SendTextPayload carries a typed message.
type SendTextPayload struct {
	Text string `json:"text"`
}

// ShutdownPayload requests the agent to shut down gracefully.
type ShutdownPayload struct {
	Reason string `json:"reason,omitempty"`
}

// AckPayload acknowledges a received message.
type AckPayload struct {
	AckedType MessageType `json:"acked_type"`
	OK        bool        `json:"ok"`
	Error     string      `json:"error,omitempty"`
}
