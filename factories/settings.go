package factories

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/bytedance/sonic"
)

// SessionAPIConfig describes an HTTP endpoint that returns a SessionConfig
// JSON payload. It is called once at startup so a deployment can tune the
// persona and voice without shipping a new settings file.
type SessionAPIConfig struct {
	// URL is the endpoint to request.
	URL string `json:"url"`
	// Method is the HTTP method. Defaults to "POST" when Body is set, "GET" otherwise.
	Method string `json:"method,omitempty"`
	// Headers are additional HTTP headers to include in the request.
	Headers map[string]string `json:"headers,omitempty"`
	// Body is an optional JSON body to send with the request.
	Body json.RawMessage `json:"body,omitempty"`
}

var sessionAPIClient = &http.Client{Timeout: 10 * time.Second}

// Fetch calls the configured endpoint and parses the response as a SessionConfig.
func (c *SessionAPIConfig) Fetch(ctx context.Context) (SessionConfig, error) {
	method := c.Method
	if method == "" {
		if len(c.Body) > 0 {
			method = http.MethodPost
		} else {
			method = http.MethodGet
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL, bytes.NewReader(c.Body))
	if err != nil {
		return SessionConfig{}, fmt.Errorf("session api: %w", err)
	}
	if len(c.Body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	resp, err := sessionAPIClient.Do(req)
	if err != nil {
		return SessionConfig{}, fmt.Errorf("session api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SessionConfig{}, fmt.Errorf("session api: unexpected status %d from %s", resp.StatusCode, c.URL)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return SessionConfig{}, fmt.Errorf("session api: read response: %w", err)
	}

	return SessionConfigFromJSON(buf.Bytes())
}

// ControlPlaneConfig points the agent at an external UI.
type ControlPlaneConfig struct {
	// URL is the UI's agent WebSocket endpoint. Empty runs standalone.
	URL     string `json:"url,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	// HeartbeatInterval of zero keeps the client default.
	HeartbeatInterval time.Duration `json:"heartbeat_interval,omitempty"`
}

// SettingsConfig is the top-level config loaded from settings.json.
type SettingsConfig struct {
	// LogLevel is the lowest level printed to the console.
	LogLevel string `json:"log_level"`
	// Completer selects the inference backend.
	Completer CompleterFactoryConfig `json:"completer"`
	// Speech selects the speech engines.
	Speech SpeechFactoryConfig `json:"speech"`
	// ControlPlane, when its URL is set, links the agent to a UI.
	ControlPlane ControlPlaneConfig `json:"control_plane"`
	// SessionAPI, when set, is called at startup to fetch the SessionConfig.
	SessionAPI *SessionAPIConfig `json:"session_api,omitempty"`
	// Session provides inline session config directly in settings.json.
	Session *SessionConfig `json:"session_config,omitempty"`
}

// DefaultSettingsConfig returns a SettingsConfig pre-filled with defaults.
func DefaultSettingsConfig() SettingsConfig {
	return SettingsConfig{
		LogLevel:  "INFO",
		Completer: DefaultCompleterFactoryConfig(),
		Speech:    DefaultSpeechFactoryConfig(),
	}
}

// SettingsConfigFromJSON parses a JSON blob over the defaults, so keys the
// blob omits keep their default values.
func SettingsConfigFromJSON(data []byte) (SettingsConfig, error) {
	// session_config is parsed separately so it starts from its own defaults.
	var raw struct {
		SessionConfig json.RawMessage `json:"session_config,omitempty"`
	}
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: %w", err)
	}

	cfg := DefaultSettingsConfig()
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: %w", err)
	}
	cfg.Session = nil

	if len(raw.SessionConfig) > 0 && string(raw.SessionConfig) != "null" {
		sc, err := SessionConfigFromJSON(raw.SessionConfig)
		if err != nil {
			return DefaultSettingsConfig(), fmt.Errorf("settings: %w", err)
		}
		cfg.Session = &sc
	}
	return cfg, nil
}

// SettingsConfigFromFile reads and parses a SettingsConfig from a JSON file.
func SettingsConfigFromFile(path string) (SettingsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: read %q: %w", path, err)
	}
	return SettingsConfigFromJSON(data)
}

// ResolveSession returns the session config from the session API, the inline
// config, or the defaults, in that order of precedence.
func (s SettingsConfig) ResolveSession(ctx context.Context) (SessionConfig, error) {
	switch {
	case s.SessionAPI != nil:
		return s.SessionAPI.Fetch(ctx)
	case s.Session != nil:
		return *s.Session, nil
	default:
		return DefaultSessionConfig(), nil
	}
}
