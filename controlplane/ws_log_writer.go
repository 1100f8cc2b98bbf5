package controlplane

import (
	"time"

	"neurotome/protocol"
)

// WSLogWriter implements core.LogWriter by sending log entries over the
// control plane WebSocket.
type WSLogWriter struct {
	client *Client
}

// NewWSLogWriter creates a LogWriter that routes logs to the control plane.
func NewWSLogWriter(client *Client) *WSLogWriter {
	return &WSLogWriter{client: client}
}

// Write sends a log entry over the WebSocket.
func (w *WSLogWriter) Write(level, msg string, attrs map[string]interface{}) {
	w.client.SendLog(protocol.LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		Attrs:     stringifyErrors(attrs),
	})
}

// Close signals the end of the session's log stream.
func (w *WSLogWriter) Close() {
	w.client.SendLogEnd()
}

// stringifyErrors replaces error values, which marshal as {}, with their text.
func stringifyErrors(attrs map[string]interface{}) map[string]interface{} {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		if err, ok := v.(error); ok {
			out[k] = err.Error()
			continue
		}
		out[k] = v
	}
	return out
}
