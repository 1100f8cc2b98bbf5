package chat

import "time"

const (
	defaultHistoryWindow  = 10
	defaultAssistantName  = "Neurotome"
	defaultRequestTimeout = 30 * time.Second

	// DefaultReply stands in when the endpoint answers without a reply field.
	DefaultReply = "I'm here for you. How can I help?"
	// FallbackReply is spoken when the endpoint cannot be reached or fails.
	FallbackReply = "I'm having trouble connecting right now, but I'm still here with you. Take a deep breath, and let's try again in a moment."
)

// Config holds configuration for Session.
type Config struct {
	// HistoryWindow is how many prior messages go into each prompt.
	HistoryWindow int `json:"history_window"`
	// AssistantName labels assistant lines in the prompt and the response cue.
	AssistantName string `json:"assistant_name"`
	// Preamble replaces the built-in persona and guidelines when set.
	Preamble string `json:"preamble,omitempty"`
	// RequestTimeout bounds one completion call. Zero means the default.
	RequestTimeout time.Duration `json:"request_timeout"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		HistoryWindow:  defaultHistoryWindow,
		AssistantName:  defaultAssistantName,
		Preamble:       SystemPreamble,
		RequestTimeout: defaultRequestTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = defaultHistoryWindow
	}
	if c.AssistantName == "" {
		c.AssistantName = defaultAssistantName
	}
	if c.Preamble == "" {
		c.Preamble = SystemPreamble
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	return c
}
