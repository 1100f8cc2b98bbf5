package console

import (
	"errors"
	"strings"
	"sync"

	"neurotome/core"
)

var (
	ErrAlreadyListening = errors.New("console stt: capture already started")
	ErrAborted          = errors.New("console stt: aborted")
)

// Recognizer turns typed lines into recognition results. Lines fed while no
// capture session is active are rejected.
type Recognizer struct {
	mu       sync.Mutex
	listener core.RecognitionListener
	cfg      core.RecognitionConfig
	logger   *core.Logger
}

func NewRecognizer(logger *core.Logger) *Recognizer {
	if logger == nil {
		logger = core.NopLogger()
	}
	return &Recognizer{logger: logger.With(map[string]interface{}{"component": "console_stt"})}
}

func (r *Recognizer) Start(cfg core.RecognitionConfig, l core.RecognitionListener) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener != nil {
		return ErrAlreadyListening
	}
	r.listener = l
	r.cfg = cfg
	return nil
}

// Listening reports whether a capture session is open.
func (r *Recognizer) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listener != nil
}

// Feed delivers one typed utterance to the open session. Interim results are
// emitted word by word when enabled; a non-continuous session ends after the
// final result.
func (r *Recognizer) Feed(text string) bool {
	r.mu.Lock()
	l := r.listener
	cfg := r.cfg
	if l != nil && !cfg.Continuous {
		r.listener = nil
	}
	r.mu.Unlock()
	if l == nil {
		return false
	}

	text = strings.TrimSpace(text)
	if cfg.InterimResults {
		words := strings.Fields(text)
		for i := 1; i < len(words); i++ {
			l.OnResult([]core.RecognitionResult{{Transcript: strings.Join(words[:i], " ")}})
		}
	}
	if text != "" {
		l.OnResult([]core.RecognitionResult{{Transcript: text, IsFinal: true}})
	}
	if !cfg.Continuous {
		l.OnEnd()
	}
	return true
}

func (r *Recognizer) Stop() error {
	r.end(nil)
	return nil
}

func (r *Recognizer) Abort() error {
	r.end(ErrAborted)
	return nil
}

func (r *Recognizer) end(err error) {
	r.mu.Lock()
	l := r.listener
	r.listener = nil
	r.mu.Unlock()
	if l == nil {
		return
	}
	// Engines report the end asynchronously.
	go func() {
		if err != nil {
			l.OnError(err)
		}
		l.OnEnd()
	}()
}
