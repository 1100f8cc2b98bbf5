package console

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"neurotome/core"
)

type captureLog struct {
	mu      sync.Mutex
	results [][]core.RecognitionResult
	ends    int
	errs    []error
	ended   chan struct{}
}

func newCaptureLog() *captureLog {
	return &captureLog{ended: make(chan struct{}, 4)}
}

func (c *captureLog) OnResult(results []core.RecognitionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, results)
}

func (c *captureLog) OnEnd() {
	c.mu.Lock()
	c.ends++
	c.mu.Unlock()
	c.ended <- struct{}{}
}

func (c *captureLog) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func TestRecognizer_FeedEmitsInterimThenFinal(t *testing.T) {
	r := NewRecognizer(nil)
	l := newCaptureLog()
	if err := r.Start(core.RecognitionConfig{Lang: "en-US", InterimResults: true}, l); err != nil {
		t.Fatalf("start: %v", err)
	}

	if !r.Feed("I feel a bit anxious") {
		t.Fatal("expected feed to be accepted")
	}

	if len(l.results) != 5 {
		t.Fatalf("expected 4 interim and 1 final result, got %d", len(l.results))
	}
	for _, batch := range l.results[:4] {
		if batch[0].IsFinal {
			t.Errorf("expected interim result, got final %q", batch[0].Transcript)
		}
	}
	last := l.results[4][0]
	if !last.IsFinal || last.Transcript != "I feel a bit anxious" {
		t.Errorf("unexpected final result %+v", last)
	}
	if l.ends != 1 || r.Listening() {
		t.Errorf("expected session to end after the final result, ends=%d", l.ends)
	}
}

func TestRecognizer_FeedWithoutSession(t *testing.T) {
	r := NewRecognizer(nil)
	if r.Feed("hello") {
		t.Error("expected feed to be rejected without a session")
	}
}

func TestRecognizer_StartTwice(t *testing.T) {
	r := NewRecognizer(nil)
	r.Start(core.RecognitionConfig{}, newCaptureLog())
	if err := r.Start(core.RecognitionConfig{}, newCaptureLog()); !errors.Is(err, ErrAlreadyListening) {
		t.Errorf("expected ErrAlreadyListening, got %v", err)
	}
}

func TestRecognizer_AbortReportsErrorThenEnd(t *testing.T) {
	r := NewRecognizer(nil)
	l := newCaptureLog()
	r.Start(core.RecognitionConfig{}, l)

	r.Abort()

	select {
	case <-l.ended:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for end")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.errs) != 1 || !errors.Is(l.errs[0], ErrAborted) {
		t.Errorf("expected aborted error, got %v", l.errs)
	}
}

type playbackLog struct {
	started chan struct{}
	ended   chan struct{}
	failed  chan error
}

func newPlaybackLog() *playbackLog {
	return &playbackLog{
		started: make(chan struct{}, 1),
		ended:   make(chan struct{}, 1),
		failed:  make(chan error, 1),
	}
}

func (p *playbackLog) OnStart()          { p.started <- struct{}{} }
func (p *playbackLog) OnEnd()            { p.ended <- struct{}{} }
func (p *playbackLog) OnError(err error) { p.failed <- err }

func TestSynthesizer_PrintsAndCompletes(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultSynthesizerConfig()
	cfg.WordDuration = time.Millisecond
	s := NewSynthesizer(cfg, &out, nil)
	l := newPlaybackLog()

	if err := s.Speak(core.Utterance{Text: "Breathe in slowly", Rate: 0.9}, l); err != nil {
		t.Fatalf("speak: %v", err)
	}

	select {
	case <-l.ended:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for playback end")
	}
	if !strings.Contains(out.String(), "Breathe in slowly") {
		t.Errorf("expected utterance printed, got %q", out.String())
	}
}

func TestSynthesizer_CancelInterrupts(t *testing.T) {
	cfg := DefaultSynthesizerConfig()
	cfg.WordDuration = time.Hour
	s := NewSynthesizer(cfg, &bytes.Buffer{}, nil)
	l := newPlaybackLog()
	s.Speak(core.Utterance{Text: "a very long story"}, l)

	if err := s.Speak(core.Utterance{Text: "overlap"}, newPlaybackLog()); err == nil {
		t.Error("expected overlapping utterance to be rejected")
	}

	s.Cancel()

	select {
	case err := <-l.failed:
		if !errors.Is(err, ErrInterrupted) {
			t.Errorf("expected ErrInterrupted, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for interruption")
	}
	if err := s.Speak(core.Utterance{Text: "again"}, newPlaybackLog()); err != nil {
		t.Errorf("expected speak after cancel to succeed, got %v", err)
	}
	s.Cancel()
}

func TestSynthesizer_VoicesAreCopied(t *testing.T) {
	s := NewSynthesizer(DefaultSynthesizerConfig(), &bytes.Buffer{}, nil)
	v := s.Voices()
	v[0].Name = "changed"
	if s.Voices()[0].Name == "changed" {
		t.Error("voices slice aliases internal state")
	}
}
