package factories

import (
	"fmt"

	"github.com/bytedance/sonic"

	"neurotome/handlers/chat"
	"neurotome/handlers/voice"
	"neurotome/runner"
)

// SessionConfig tunes one conversation: how the companion listens and
// speaks, and how it talks to the inference backend.
type SessionConfig struct {
	Voice voice.Config `json:"voice"`
	Chat  chat.Config  `json:"chat"`
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Voice: voice.DefaultConfig(),
		Chat:  chat.DefaultConfig(),
	}
}

// SessionConfigFromJSON parses a JSON blob over DefaultSessionConfig.
func SessionConfigFromJSON(data []byte) (SessionConfig, error) {
	cfg := DefaultSessionConfig()
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return DefaultSessionConfig(), fmt.Errorf("session config: %w", err)
	}
	return cfg, nil
}

// RunnerConfig converts the session config for runner.NewRunner.
func (c SessionConfig) RunnerConfig() runner.Config {
	return runner.Config{
		Voice: c.Voice,
		Chat:  c.Chat,
	}
}
