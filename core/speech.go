package core

// RecognitionConfig mirrors the knobs a speech capture engine exposes.
type RecognitionConfig struct {
	Lang           string `json:"lang"`
	Continuous     bool   `json:"continuous"`
	InterimResults bool   `json:"interim_results"`
}

// RecognitionResult is one entry of an engine result batch.
type RecognitionResult struct {
	Transcript string
	IsFinal    bool
}

// RecognitionListener receives capture engine notifications. Engines may
// call it from any goroutine.
type RecognitionListener interface {
	OnResult(results []RecognitionResult)
	OnEnd()
	OnError(err error)
}

// SpeechRecognizer is the speech-to-text capability.
type SpeechRecognizer interface {
	// Start begins one capture session. Results, end and errors for that
	// session are reported to l.
	Start(cfg RecognitionConfig, l RecognitionListener) error
	// Stop asks the engine to finish and deliver what it heard.
	Stop() error
	// Abort ends capture immediately, discarding pending results.
	Abort() error
}

// Voice is an installed synthesis voice.
type Voice struct {
	Name    string `json:"name"`
	Lang    string `json:"lang"`
	Default bool   `json:"default"`
}

// Utterance is one unit of synthesized speech. A nil Voice selects the
// platform default.
type Utterance struct {
	Text   string
	Voice  *Voice
	Rate   float64
	Pitch  float64
	Volume float64
}

// UtteranceListener receives playback notifications for one utterance.
type UtteranceListener interface {
	OnStart()
	OnEnd()
	OnError(err error)
}

// SpeechSynthesizer is the text-to-speech capability.
type SpeechSynthesizer interface {
	Speak(u Utterance, l UtteranceListener) error
	// Cancel stops the current utterance and drops anything queued.
	Cancel()
	Voices() []Voice
}
