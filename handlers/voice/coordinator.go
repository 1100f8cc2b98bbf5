package voice

import (
	"fmt"
	"strings"
	"sync"

	"neurotome/core"
	voiceevents "neurotome/events/voice"
)

// State is the coordinator's externally visible mode.
type State int

const (
	StateIdle State = iota
	StateListening
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateSpeaking:
		return "speaking"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// VoiceState is a snapshot of the coordinator flags.
type VoiceState struct {
	IsListening bool `json:"is_listening"`
	IsSpeaking  bool `json:"is_speaking"`
	IsSupported bool `json:"is_supported"`
}

// Engines bundles the platform speech capabilities. A nil member means the
// capability is missing from the environment.
type Engines struct {
	Recognizer  core.SpeechRecognizer
	Synthesizer core.SpeechSynthesizer
}

// Callbacks run without the state lock held, so they may query the
// coordinator. They can run on the goroutine of a public method or of an
// engine, and must hand off (not call synchronously) any StartListening,
// StopListening, Speak or StopSpeaking they trigger.
type Callbacks struct {
	// OnTranscript fires once per finalized utterance.
	OnTranscript func(text string)
	// OnSpeechEnd fires once per capture session, whatever ended it.
	OnSpeechEnd func()
	// OnStateChange receives the flags after every transition.
	OnStateChange func(VoiceState)
	// Events receives voice events; optional.
	Events core.EventSink
}

type capturePhase int

const (
	captureNone capturePhase = iota
	captureActive
	// captureDraining: the caller stopped listening but the engine may still
	// deliver the final result of the session.
	captureDraining
)

// Coordinator is the listening/speaking state machine over the injected
// speech engines. Listening and speaking are mutually exclusive.
//
// Every capture session and utterance carries a generation number; engine
// callbacks are routed through dispatch, which drops anything that belongs to
// a superseded generation or arrives after Close.
type Coordinator struct {
	engines   Engines
	config    Config
	callbacks Callbacks
	logger    *core.Logger
	supported bool

	// opMu serialises calls into the engines. mu guards state only and is
	// never held while an engine method runs.
	opMu sync.Mutex
	mu   sync.Mutex

	state        State
	phase        capturePhase
	captureGen   uint64
	delivered    bool
	utteranceGen uint64
	closed       bool
}

// NewCoordinator computes capability support once, from the engines given.
func NewCoordinator(engines Engines, cfg Config, callbacks Callbacks, logger *core.Logger) *Coordinator {
	if logger == nil {
		logger = core.NopLogger()
	}
	c := &Coordinator{
		engines:   engines,
		config:    cfg.withDefaults(),
		callbacks: callbacks,
		logger:    logger.With(map[string]interface{}{"component": "voice"}),
		supported: engines.Recognizer != nil && engines.Synthesizer != nil,
	}
	if !c.supported {
		c.logger.Warn("speech capture or synthesis unavailable, voice disabled")
	}
	return c
}

func (c *Coordinator) IsSupported() bool {
	return c.supported
}

func (c *Coordinator) IsListening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateListening
}

func (c *Coordinator) IsSpeaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateSpeaking
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) Snapshot() VoiceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() VoiceState {
	return VoiceState{
		IsListening: c.state == StateListening,
		IsSpeaking:  c.state == StateSpeaking,
		IsSupported: c.supported,
	}
}

// effects collects the notifications produced by one transition so they can
// be delivered after the state lock is released.
type effects struct {
	listeningEnded   string
	speakingEnded    string
	listeningStarted bool
	speakingStarted  *voiceevents.SpeakingStartedEvent
	interim          *string
	transcript       *string
	stateChanged     bool
	snapshot         VoiceState
}

func (c *Coordinator) deliver(fx effects) {
	sink := c.callbacks.Events
	if fx.listeningEnded != "" {
		core.Emit(sink, &voiceevents.ListeningEndedEvent{Reason: fx.listeningEnded}, "VoiceCoordinator")
		if c.callbacks.OnSpeechEnd != nil {
			c.callbacks.OnSpeechEnd()
		}
	}
	if fx.speakingEnded != "" {
		core.Emit(sink, &voiceevents.SpeakingEndedEvent{Reason: fx.speakingEnded}, "VoiceCoordinator")
	}
	if fx.listeningStarted {
		core.Emit(sink, &voiceevents.ListeningStartedEvent{}, "VoiceCoordinator")
	}
	if fx.speakingStarted != nil {
		core.Emit(sink, fx.speakingStarted, "VoiceCoordinator")
	}
	if fx.stateChanged && c.callbacks.OnStateChange != nil {
		c.callbacks.OnStateChange(fx.snapshot)
	}
	if fx.interim != nil {
		core.Emit(sink, &voiceevents.InterimTranscriptEvent{Text: *fx.interim}, "VoiceCoordinator")
	}
	if fx.transcript != nil {
		core.Emit(sink, &voiceevents.FinalTranscriptEvent{Text: *fx.transcript}, "VoiceCoordinator")
		if c.callbacks.OnTranscript != nil {
			c.callbacks.OnTranscript(*fx.transcript)
		}
	}
}

// StartListening moves idle -> listening. Playback in progress is canceled
// first. It is a logged no-op when voice is unsupported or capture is
// already active.
func (c *Coordinator) StartListening() {
	if !c.supported {
		c.logger.Debug("start listening ignored: unsupported")
		return
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.state == StateListening {
		c.mu.Unlock()
		c.logger.Debug("start listening ignored: already listening")
		return
	}
	var fx effects
	wasSpeaking := c.state == StateSpeaking
	if wasSpeaking {
		c.utteranceGen++
		fx.speakingEnded = "interrupted"
	}
	abortDrain := c.phase == captureDraining
	c.captureGen++
	gen := c.captureGen
	c.phase = captureActive
	c.delivered = false
	c.state = StateListening
	fx.listeningStarted = true
	fx.stateChanged = true
	fx.snapshot = c.snapshotLocked()
	c.mu.Unlock()

	if wasSpeaking {
		c.engines.Synthesizer.Cancel()
	}
	if abortDrain {
		if err := c.engines.Recognizer.Abort(); err != nil {
			c.logger.With(map[string]interface{}{"error": err}).Warn("failed to abort draining capture")
		}
	}
	c.deliver(fx)

	err := c.engines.Recognizer.Start(c.config.Recognition, &captureListener{c: c, gen: gen})
	if err == nil {
		c.logger.Debug("listening started", "capture", gen)
		return
	}

	c.logger.With(map[string]interface{}{"error": err}).Error("failed to start listening")
	c.mu.Lock()
	if c.captureGen != gen || c.phase != captureActive {
		c.mu.Unlock()
		return
	}
	c.captureGen++
	c.phase = captureNone
	c.state = StateIdle
	fx = effects{stateChanged: true, snapshot: c.snapshotLocked()}
	c.mu.Unlock()
	c.deliver(fx)
}

// StopListening moves listening -> idle. A final result the engine delivers
// while finishing the session is still handed to OnTranscript.
func (c *Coordinator) StopListening() {
	if !c.supported {
		return
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.closed || c.state != StateListening {
		c.mu.Unlock()
		return
	}
	c.phase = captureDraining
	c.state = StateIdle
	fx := effects{listeningEnded: "stopped", stateChanged: true, snapshot: c.snapshotLocked()}
	c.mu.Unlock()

	if err := c.engines.Recognizer.Stop(); err != nil {
		c.logger.With(map[string]interface{}{"error": err}).Warn("failed to stop capture, aborting")
		c.abortCapture()
	}
	c.deliver(fx)
}

// abortCapture discards the draining session. Caller holds opMu.
func (c *Coordinator) abortCapture() {
	c.mu.Lock()
	if c.phase == captureNone {
		c.mu.Unlock()
		return
	}
	c.captureGen++
	c.phase = captureNone
	c.mu.Unlock()
	if err := c.engines.Recognizer.Abort(); err != nil {
		c.logger.With(map[string]interface{}{"error": err}).Warn("failed to abort capture")
	}
}

// Speak plays text, replacing any utterance in progress. Capture in progress
// is aborted first, so on return the coordinator is speaking. Text with
// nothing left to say after normalisation still aborts capture but leaves
// playback untouched.
func (c *Coordinator) Speak(text string) {
	if !c.supported {
		c.logger.Debug("speak ignored: unsupported")
		return
	}
	spoken := normalizeForSpeech(text)
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	var fx effects
	abortCapture := false
	switch {
	case c.state == StateListening:
		fx.listeningEnded = "interrupted"
		abortCapture = true
	case c.phase == captureDraining:
		abortCapture = true
	}
	if abortCapture {
		c.captureGen++
		c.phase = captureNone
	}
	if spoken == "" {
		if c.state == StateListening {
			c.state = StateIdle
			fx.stateChanged = true
			fx.snapshot = c.snapshotLocked()
		}
		c.mu.Unlock()
		if abortCapture {
			c.logger.Debug("nothing to say, capture aborted")
			if err := c.engines.Recognizer.Abort(); err != nil {
				c.logger.With(map[string]interface{}{"error": err}).Warn("failed to abort capture")
			}
		}
		c.deliver(fx)
		return
	}
	if c.state == StateSpeaking {
		fx.speakingEnded = "replaced"
	}
	c.utteranceGen++
	gen := c.utteranceGen
	c.state = StateSpeaking
	fx.stateChanged = true
	fx.snapshot = c.snapshotLocked()
	c.mu.Unlock()

	if abortCapture {
		if err := c.engines.Recognizer.Abort(); err != nil {
			c.logger.With(map[string]interface{}{"error": err}).Warn("failed to abort capture")
		}
	}
	c.engines.Synthesizer.Cancel()

	utterance := core.Utterance{
		Text:   spoken,
		Voice:  SelectVoice(c.engines.Synthesizer.Voices(), c.config.PreferredVoices),
		Rate:   c.config.Rate,
		Pitch:  c.config.Pitch,
		Volume: c.config.Volume,
	}
	started := &voiceevents.SpeakingStartedEvent{Text: spoken}
	if utterance.Voice != nil {
		started.Voice = utterance.Voice.Name
	}
	fx.speakingStarted = started
	c.deliver(fx)

	if err := c.engines.Synthesizer.Speak(utterance, &utteranceListener{c: c, gen: gen}); err != nil {
		c.logger.With(map[string]interface{}{"error": err}).Error("failed to submit utterance")
		c.dispatch(engineEvent{kind: evPlaybackError, gen: gen, err: err})
		return
	}
	c.logger.Debug("speaking started", "utterance", gen, "voice", started.Voice)
}

// StopSpeaking cancels playback and returns to idle.
func (c *Coordinator) StopSpeaking() {
	if !c.supported {
		return
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	var fx effects
	if c.state == StateSpeaking {
		c.utteranceGen++
		c.state = StateIdle
		fx = effects{speakingEnded: "stopped", stateChanged: true, snapshot: c.snapshotLocked()}
	}
	c.mu.Unlock()

	c.engines.Synthesizer.Cancel()
	c.deliver(fx)
}

// Close aborts capture and cancels playback. No callback fires afterwards.
func (c *Coordinator) Close() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	hadCapture := c.phase != captureNone
	c.captureGen++
	c.utteranceGen++
	c.phase = captureNone
	c.state = StateIdle
	c.mu.Unlock()

	if !c.supported {
		return
	}
	if hadCapture {
		if err := c.engines.Recognizer.Abort(); err != nil {
			c.logger.With(map[string]interface{}{"error": err}).Warn("failed to abort capture on close")
		}
	}
	c.engines.Synthesizer.Cancel()
	c.logger.Debug("voice coordinator closed")
}

type engineEventKind int

const (
	evResult engineEventKind = iota
	evCaptureEnd
	evCaptureError
	evPlaybackStart
	evPlaybackEnd
	evPlaybackError
)

type engineEvent struct {
	kind    engineEventKind
	gen     uint64
	results []core.RecognitionResult
	err     error
}

// dispatch is the only place engine notifications change state.
func (c *Coordinator) dispatch(ev engineEvent) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	var fx effects
	switch ev.kind {
	case evResult:
		if ev.gen != c.captureGen || c.phase == captureNone || c.delivered {
			break
		}
		text, final := joinResults(ev.results)
		if !final {
			if c.phase == captureActive && text != "" {
				fx.interim = &text
			}
			break
		}
		if strings.TrimSpace(text) == "" {
			break
		}
		c.delivered = true
		fx.transcript = &text

	case evCaptureEnd, evCaptureError:
		if ev.gen != c.captureGen || c.phase == captureNone {
			break
		}
		if ev.kind == evCaptureError {
			c.logger.With(map[string]interface{}{"error": ev.err}).Warn("speech recognition error")
		}
		wasActive := c.phase == captureActive
		c.phase = captureNone
		if wasActive {
			c.state = StateIdle
			fx.listeningEnded = "ended"
			if ev.kind == evCaptureError {
				fx.listeningEnded = "error"
			}
			fx.stateChanged = true
			fx.snapshot = c.snapshotLocked()
		}

	case evPlaybackStart:
		if ev.gen == c.utteranceGen && c.state == StateSpeaking {
			c.logger.Trace("utterance playback started", "utterance", ev.gen)
		}

	case evPlaybackEnd, evPlaybackError:
		if ev.gen != c.utteranceGen || c.state != StateSpeaking {
			break
		}
		c.state = StateIdle
		fx.speakingEnded = "completed"
		if ev.kind == evPlaybackError {
			c.logger.With(map[string]interface{}{"error": ev.err}).Warn("speech synthesis error")
			fx.speakingEnded = "error"
		}
		fx.stateChanged = true
		fx.snapshot = c.snapshotLocked()
	}
	c.mu.Unlock()
	c.deliver(fx)
}

// joinResults concatenates a result batch. The batch counts as final only
// when every entry is final; an empty batch is never final.
func joinResults(results []core.RecognitionResult) (string, bool) {
	if len(results) == 0 {
		return "", false
	}
	var b strings.Builder
	final := true
	for _, r := range results {
		b.WriteString(r.Transcript)
		if !r.IsFinal {
			final = false
		}
	}
	return b.String(), final
}

type captureListener struct {
	c   *Coordinator
	gen uint64
}

func (l *captureListener) OnResult(results []core.RecognitionResult) {
	l.c.dispatch(engineEvent{kind: evResult, gen: l.gen, results: results})
}

func (l *captureListener) OnEnd() {
	l.c.dispatch(engineEvent{kind: evCaptureEnd, gen: l.gen})
}

func (l *captureListener) OnError(err error) {
	l.c.dispatch(engineEvent{kind: evCaptureError, gen: l.gen, err: err})
}

type utteranceListener struct {
	c   *Coordinator
	gen uint64
}

func (l *utteranceListener) OnStart() {
	l.c.dispatch(engineEvent{kind: evPlaybackStart, gen: l.gen})
}

func (l *utteranceListener) OnEnd() {
	l.c.dispatch(engineEvent{kind: evPlaybackEnd, gen: l.gen})
}

func (l *utteranceListener) OnError(err error) {
	l.c.dispatch(engineEvent{kind: evPlaybackError, gen: l.gen, err: err})
}
