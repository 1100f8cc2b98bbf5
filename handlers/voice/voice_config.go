package voice

import "neurotome/core"

// Config holds configuration for the Coordinator.
type Config struct {
	// Recognition is handed to the capture engine on every StartListening.
	Recognition core.RecognitionConfig `json:"recognition"`
	// Rate, Pitch and Volume are applied to every utterance.
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
	// PreferredVoices are matched as substrings of installed voice names,
	// in order. No match means the platform default voice.
	PreferredVoices []string `json:"preferred_voices"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Recognition: core.RecognitionConfig{
			Lang:           "en-US",
			Continuous:     false,
			InterimResults: true,
		},
		Rate:            0.9,
		Pitch:           1.0,
		Volume:          1.0,
		PreferredVoices: []string{"Samantha", "Google", "Microsoft"},
	}
}

// withDefaults fills zero values so a partially specified JSON config still
// produces audible, calm speech.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Recognition.Lang == "" {
		c.Recognition.Lang = def.Recognition.Lang
	}
	if c.Rate == 0 {
		c.Rate = def.Rate
	}
	if c.Pitch == 0 {
		c.Pitch = def.Pitch
	}
	if c.Volume == 0 {
		c.Volume = def.Volume
	}
	if c.PreferredVoices == nil {
		c.PreferredVoices = def.PreferredVoices
	}
	return c
}
