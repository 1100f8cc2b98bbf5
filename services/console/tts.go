package console

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"neurotome/core"
)

var ErrInterrupted = errors.New("console tts: interrupted")

// SynthesizerConfig holds configuration for the console synthesizer.
type SynthesizerConfig struct {
	// Speaker prefixes every printed utterance.
	Speaker string `json:"speaker"`
	// WordDuration is the simulated speaking time per word at rate 1.0.
	WordDuration time.Duration `json:"word_duration"`
	// Voices are advertised to voice selection.
	Voices []core.Voice `json:"voices"`
}

func DefaultSynthesizerConfig() SynthesizerConfig {
	return SynthesizerConfig{
		Speaker:      "Neurotome",
		WordDuration: 250 * time.Millisecond,
		Voices: []core.Voice{
			{Name: "Console Samantha", Lang: "en-US"},
			{Name: "Console Default", Lang: "en-US", Default: true},
		},
	}
}

type playback struct {
	timer    *time.Timer
	listener core.UtteranceListener
}

// Synthesizer prints utterances and reports completion after a duration
// proportional to the word count and rate.
type Synthesizer struct {
	config SynthesizerConfig
	out    io.Writer
	logger *core.Logger
	label  func(a ...interface{}) string

	mu      sync.Mutex
	current *playback
}

func NewSynthesizer(config SynthesizerConfig, out io.Writer, logger *core.Logger) *Synthesizer {
	if config.Speaker == "" {
		config.Speaker = DefaultSynthesizerConfig().Speaker
	}
	if logger == nil {
		logger = core.NopLogger()
	}
	return &Synthesizer{
		config: config,
		out:    out,
		logger: logger.With(map[string]interface{}{"component": "console_tts"}),
		label:  color.New(color.FgCyan, color.Bold).SprintFunc(),
	}
}

func (s *Synthesizer) Speak(u core.Utterance, l core.UtteranceListener) error {
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	words := len(strings.Fields(u.Text))
	d := time.Duration(float64(s.config.WordDuration) * float64(words) / rate)

	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		return fmt.Errorf("console tts: utterance already playing")
	}
	p := &playback{listener: l}
	p.timer = time.AfterFunc(d, func() { s.finish(p) })
	s.current = p
	s.mu.Unlock()

	voice := "default"
	if u.Voice != nil {
		voice = u.Voice.Name
	}
	s.logger.Trace("utterance queued", "voice", voice, "words", words)
	fmt.Fprintf(s.out, "%s %s\n", s.label(s.config.Speaker+":"), u.Text)
	go l.OnStart()
	return nil
}

func (s *Synthesizer) finish(p *playback) {
	s.mu.Lock()
	if s.current != p {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.mu.Unlock()
	p.listener.OnEnd()
}

func (s *Synthesizer) Cancel() {
	s.mu.Lock()
	p := s.current
	s.current = nil
	s.mu.Unlock()
	if p == nil {
		return
	}
	p.timer.Stop()
	go p.listener.OnError(ErrInterrupted)
}

func (s *Synthesizer) Voices() []core.Voice {
	return append([]core.Voice(nil), s.config.Voices...)
}
