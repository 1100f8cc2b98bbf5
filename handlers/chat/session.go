package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"neurotome/core"
	chatevents "neurotome/events/chat"
)

// Completer sends one prompt to the inference backend. An empty reply with a
// nil error means the backend answered without a usable reply field.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a plain function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// State is a snapshot of the session as observers see it.
type State struct {
	Messages  []core.Message `json:"messages"`
	IsLoading bool           `json:"is_loading"`
	Error     string         `json:"error,omitempty"`
}

// Session owns the message log of one conversation and runs one
// request/response cycle per user utterance. Callers are expected to
// serialise SendMessage calls (e.g. by disabling input while loading);
// overlapping calls are still safe but their replies may interleave.
type Session struct {
	id        string
	completer Completer
	config    Config
	logger    *core.Logger
	events    core.EventSink
	onChange  func(State)
	now       func() time.Time

	mu       sync.Mutex
	messages []core.Message
	inFlight int
	err      string
}

// Option customises a Session.
type Option func(*Session)

// WithEventSink routes chat events to sink.
func WithEventSink(sink core.EventSink) Option {
	return func(s *Session) {
		s.events = sink
	}
}

// WithObserver registers fn to receive a snapshot after every mutation.
func WithObserver(fn func(State)) Option {
	return func(s *Session) {
		s.onChange = fn
	}
}

// WithSessionID replaces the generated session id, e.g. with one already
// registered with a control plane.
func WithSessionID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithClock overrides the message timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

func NewSession(completer Completer, cfg Config, logger *core.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = core.NopLogger()
	}
	s := &Session{
		id:        uuid.NewString(),
		completer: completer,
		config:    cfg.withDefaults(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.With(map[string]interface{}{"component": "chat", "session_id": s.id})
	return s
}

func (s *Session) ID() string {
	return s.id
}

// SendMessage appends text as a user message, asks the completer for a reply
// and appends that reply, or the fallback on failure. It always returns a
// non-empty reply and never leaves the session loading.
func (s *Session) SendMessage(ctx context.Context, text string) Reply {
	return s.send(ctx, text, nil)
}

// SendMoodCheckIn records "I'm feeling <mood>" tagged with the mood and runs
// it as a normal turn.
func (s *Session) SendMoodCheckIn(ctx context.Context, mood core.Mood) Reply {
	m := mood
	return s.send(ctx, mood.CheckInText(), &m)
}

func (s *Session) send(ctx context.Context, text string, mood *core.Mood) Reply {
	s.mu.Lock()
	history := cloneMessages(HistoryWindow(s.messages, s.config.HistoryWindow))
	userMsg := core.NewMessage(core.RoleUser, text, s.now())
	userMsg.Mood = mood
	s.messages = append(s.messages, userMsg)
	s.inFlight++
	s.err = ""
	state := s.stateLocked()
	s.mu.Unlock()

	s.publish(&chatevents.MessageAppendedEvent{Message: cloneMessage(userMsg)})
	s.publish(&chatevents.RequestStartedEvent{HistorySize: len(history)})
	s.notify(state)

	s.logger.Info("sending message", "history", len(history), "mood", moodString(mood))

	prompt := BuildPrompt(s.config, history, text)
	reply := s.complete(ctx, prompt)
	s.settle(reply)
	return reply
}

// complete never panics; a panicking completer counts as a failure.
func (s *Session) complete(ctx context.Context, prompt string) (reply Reply) {
	defer func() {
		if r := recover(); r != nil {
			reply = s.fallback(fmt.Errorf("chat: completer panicked: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	text, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return s.fallback(err)
	}
	if strings.TrimSpace(text) == "" {
		s.logger.Debug("reply missing from response, using default reply")
		return Reply{Text: DefaultReply, Kind: ReplyOK}
	}
	return Reply{Text: text, Kind: ReplyOK}
}

func (s *Session) fallback(err error) Reply {
	s.logger.With(map[string]interface{}{"error": err}).Warn("completion failed, replying with fallback")
	return Reply{Text: FallbackReply, Kind: ReplyFallback, Reason: err}
}

// settle appends the assistant message and clears loading in one step.
func (s *Session) settle(reply Reply) {
	s.mu.Lock()
	assistantMsg := core.NewMessage(core.RoleAssistant, reply.Text, s.now())
	s.messages = append(s.messages, assistantMsg)
	if reply.Reason != nil {
		s.err = reply.Reason.Error()
	}
	s.inFlight--
	state := s.stateLocked()
	s.mu.Unlock()

	settled := &chatevents.RequestSettledEvent{Fallback: reply.IsFallback()}
	if reply.Reason != nil {
		settled.Error = reply.Reason.Error()
	}
	s.publish(&chatevents.MessageAppendedEvent{Message: cloneMessage(assistantMsg)})
	s.publish(settled)
	s.notify(state)

	s.logger.Info("turn settled", "kind", reply.Kind.String(), "messages", len(state.Messages))
}

// ClearMessages empties the log and the error. Loading state is untouched.
func (s *Session) ClearMessages() {
	s.mu.Lock()
	s.messages = nil
	s.err = ""
	state := s.stateLocked()
	s.mu.Unlock()

	s.publish(&chatevents.MessagesClearedEvent{})
	s.notify(state)
	s.logger.Info("messages cleared")
}

// Messages returns a copy of the log in insertion order.
func (s *Session) Messages() []core.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMessages(s.messages)
}

func (s *Session) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight > 0
}

// Error is the last failure's description, or "" when there is none.
func (s *Session) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	return State{
		Messages:  cloneMessages(s.messages),
		IsLoading: s.inFlight > 0,
		Error:     s.err,
	}
}

func (s *Session) publish(event core.IEvent) {
	core.Emit(s.events, event, "ChatSession")
}

func (s *Session) notify(state State) {
	if s.onChange != nil {
		s.onChange(state)
	}
}

func cloneMessage(m core.Message) core.Message {
	if m.Mood != nil {
		mood := *m.Mood
		m.Mood = &mood
	}
	return m
}

func cloneMessages(msgs []core.Message) []core.Message {
	out := make([]core.Message, len(msgs))
	for i, m := range msgs {
		out[i] = cloneMessage(m)
	}
	return out
}

func moodString(m *core.Mood) string {
	if m == nil {
		return ""
	}
	return string(*m)
}
