package factories

import (
	"io"

	"neurotome/core"
	"neurotome/handlers/voice"
	"neurotome/services/console"
)

// SpeechFactoryConfig selects the speech engines.
type SpeechFactoryConfig struct {
	// Disabled runs without speech engines; voice operations become no-ops
	// and the conversation is typed.
	Disabled bool `json:"disabled"`
	// ConsoleConfig configures the terminal engines.
	ConsoleConfig *console.SynthesizerConfig `json:"console,omitempty"`
}

func DefaultSpeechFactoryConfig() SpeechFactoryConfig {
	cfg := console.DefaultSynthesizerConfig()
	return SpeechFactoryConfig{ConsoleConfig: &cfg}
}

// SpeechEngines holds the concrete engines so the caller can feed typed
// lines to the recognizer.
type SpeechEngines struct {
	Recognizer  *console.Recognizer
	Synthesizer *console.Synthesizer
}

// Engines returns the engines as the coordinator sees them. Missing engines
// stay nil interfaces.
func (e *SpeechEngines) Engines() voice.Engines {
	var engines voice.Engines
	if e.Recognizer != nil {
		engines.Recognizer = e.Recognizer
	}
	if e.Synthesizer != nil {
		engines.Synthesizer = e.Synthesizer
	}
	return engines
}

// BuildSpeechEngines constructs the console engines writing speech to out.
func BuildSpeechEngines(config SpeechFactoryConfig, out io.Writer, logger *core.Logger) *SpeechEngines {
	if config.Disabled {
		return &SpeechEngines{}
	}
	synCfg := console.DefaultSynthesizerConfig()
	if config.ConsoleConfig != nil {
		synCfg = *config.ConsoleConfig
	}
	return &SpeechEngines{
		Recognizer:  console.NewRecognizer(logger),
		Synthesizer: console.NewSynthesizer(synCfg, out, logger),
	}
}
