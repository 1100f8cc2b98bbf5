package runner

import (
	"context"
	"strings"
	"sync"

	"neurotome/core"
	"neurotome/handlers/chat"
	"neurotome/handlers/voice"
	"neurotome/protocol"
)

// Expression is the avatar face matching the companion's activity.
type Expression string

const (
	ExpressionNeutral    Expression = "neutral"
	ExpressionListening  Expression = "listening"
	ExpressionSpeaking   Expression = "speaking"
	ExpressionEmpathetic Expression = "empathetic"
)

// WelcomeText opens a conversation before the mood check-in.
const WelcomeText = "Hello, I'm Neurotome, your mental wellness companion. Let's start by checking in. How are you feeling today?"

// Publisher receives state for an external UI. controlplane.Client
// satisfies it.
type Publisher interface {
	SendVoiceState(p protocol.VoiceStatePayload)
	SendSessionState(p protocol.SessionStatePayload)
	SendAvatar(expression string)
}

// Config bundles the configuration of the two core components.
type Config struct {
	Voice voice.Config
	Chat  chat.Config
}

func DefaultConfig() Config {
	return Config{
		Voice: voice.DefaultConfig(),
		Chat:  chat.DefaultConfig(),
	}
}

// Option customises a Runner.
type Option func(*Runner)

// WithPublisher mirrors voice state, session state and avatar changes to p.
func WithPublisher(p Publisher) Option {
	return func(r *Runner) {
		r.publisher = p
	}
}

// WithEventSink routes voice and chat events to sink.
func WithEventSink(sink core.EventSink) Option {
	return func(r *Runner) {
		r.events = sink
	}
}

// WithSessionID fixes the conversation session id.
func WithSessionID(id string) Option {
	return func(r *Runner) {
		r.sessionID = id
	}
}

// WithLogger overrides the global logger.
func WithLogger(logger *core.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// Runner wires the speech coordinator to the conversation session: a final
// transcript becomes a user message, and the reply is spoken back. All
// inputs are queued and handled in order on one goroutine; only the
// completion request runs beside it.
type Runner struct {
	voice     *voice.Coordinator
	session   *chat.Session
	publisher Publisher
	events    core.EventSink
	logger    *core.Logger
	sessionID string

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	queue   []func()
	started bool
	stopped bool

	// Owned by the loop goroutine.
	busy       bool
	voiceState voice.VoiceState
	loading    bool
	expression Expression
	status     string
}

func NewRunner(cfg Config, engines voice.Engines, completer chat.Completer, opts ...Option) *Runner {
	r := &Runner{
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		expression: ExpressionNeutral,
		status:     "idle",
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = core.GetLogger()
	}
	r.logger = r.logger.With(map[string]interface{}{"component": "runner"})

	r.session = chat.NewSession(completer, cfg.Chat, r.logger,
		chat.WithEventSink(r.events),
		chat.WithSessionID(r.sessionID),
		chat.WithObserver(func(st chat.State) {
			r.post(func() { r.onSessionChange(st) })
		}),
	)
	r.voice = voice.NewCoordinator(engines, cfg.Voice, voice.Callbacks{
		OnTranscript: func(text string) {
			r.post(func() { r.onTranscript(text) })
		},
		OnSpeechEnd: func() {
			r.post(r.onSpeechEnd)
		},
		OnStateChange: func(vs voice.VoiceState) {
			r.post(func() { r.onVoiceChange(vs) })
		},
		Events: r.events,
	}, r.logger)
	r.voiceState = r.voice.Snapshot()
	return r
}

// Start launches the loop. Cancelling ctx has the same effect as Stop,
// without closing the coordinator.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = true
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	go r.loop()

	r.post(func() {
		r.publishVoice()
		r.publishSession(r.session.State())
		r.publishAvatar()
	})
	r.logger.Info("runner started", "session_id", r.session.ID(), "voice_supported", r.voice.IsSupported())
	return nil
}

// Stop ends the loop and silences the coordinator. Pending inputs are
// dropped.
func (r *Runner) Stop() error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	r.queue = nil
	cancel := r.cancel
	started := r.started
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.voice.Close()
	if started {
		<-r.done
	}
	core.Emit(r.events, &core.ShutdownEvent{Reason: "runner stopped"}, "Runner")
	r.logger.Info("runner stopped")
	return nil
}

// Reset clears the conversation log.
func (r *Runner) Reset() error {
	r.ClearMessages()
	return nil
}

// Done is closed once the loop has exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) Session() *chat.Session {
	return r.session
}

func (r *Runner) Voice() *voice.Coordinator {
	return r.voice
}

// PushToTalk toggles listening. Ignored while a reply is pending.
func (r *Runner) PushToTalk() {
	r.post(func() {
		if r.voice.IsListening() {
			r.voice.StopListening()
			return
		}
		if r.busy {
			r.logger.Debug("push to talk ignored: reply pending")
			return
		}
		r.voice.StartListening()
	})
}

func (r *Runner) StopSpeaking() {
	r.post(r.voice.StopSpeaking)
}

// Welcome speaks the opening line that precedes the mood check-in.
func (r *Runner) Welcome() {
	r.post(func() { r.voice.Speak(WelcomeText) })
}

// SelectMood speaks the greeting for mood and records the check-in. The
// reply to the check-in is added to the log but not spoken, since the
// greeting already answers it.
func (r *Runner) SelectMood(mood core.Mood) {
	r.post(func() {
		if r.busy {
			r.logger.Debug("mood selection ignored: reply pending", "mood", string(mood))
			return
		}
		r.voice.Speak(mood.Greeting())
		r.startTurn(func(ctx context.Context) chat.Reply {
			return r.session.SendMoodCheckIn(ctx, mood)
		}, false)
	})
}

// SendText runs a typed message as a turn, as if it had been spoken.
func (r *Runner) SendText(text string) {
	r.post(func() { r.onTranscript(text) })
}

func (r *Runner) ClearMessages() {
	r.post(r.session.ClearMessages)
}

// Expression is the avatar expression last derived.
func (r *Runner) Expression() Expression {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expression
}

// Status summarises activity for heartbeats: idle, listening, thinking or
// speaking.
func (r *Runner) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// post queues fn for the loop. It never blocks, so engine callbacks may
// call it from inside coordinator methods.
func (r *Runner) post(fn func()) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.queue = append(r.queue, fn)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runner) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.wake:
		case <-r.ctx.Done():
			return
		}
		for {
			r.mu.Lock()
			if r.stopped || len(r.queue) == 0 {
				r.mu.Unlock()
				break
			}
			fn := r.queue[0]
			r.queue = r.queue[1:]
			r.mu.Unlock()
			fn()
		}
	}
}

func (r *Runner) onTranscript(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if r.busy {
		r.logger.Warn("transcript dropped: reply pending", "length", len(text))
		return
	}
	r.setExpression(ExpressionEmpathetic)
	r.startTurn(func(ctx context.Context) chat.Reply {
		return r.session.SendMessage(ctx, text)
	}, true)
}

// startTurn runs send beside the loop and speaks the reply when asked to.
func (r *Runner) startTurn(send func(ctx context.Context) chat.Reply, speak bool) {
	r.busy = true
	r.refresh()
	ctx := r.ctx
	go func() {
		reply := send(ctx)
		r.post(func() { r.finishTurn(reply, speak) })
	}()
}

func (r *Runner) finishTurn(reply chat.Reply, speak bool) {
	r.busy = false
	if reply.IsFallback() {
		r.logger.Warn("turn ended with fallback reply")
	}
	if speak {
		r.voice.Speak(reply.Text)
	}
	r.refresh()
}

func (r *Runner) onSpeechEnd() {
	r.setExpression(ExpressionNeutral)
}

func (r *Runner) onVoiceChange(vs voice.VoiceState) {
	r.voiceState = vs
	r.publishVoice()
	r.refresh()
}

func (r *Runner) onSessionChange(st chat.State) {
	r.loading = st.IsLoading
	r.publishSession(st)
	r.refresh()
}

// refresh re-derives the expression and status from the latest flags.
func (r *Runner) refresh() {
	loading := r.loading || r.busy
	if next, ok := deriveExpression(r.voiceState, loading); ok {
		r.setExpression(next)
	}

	status := "idle"
	switch {
	case r.voiceState.IsListening:
		status = "listening"
	case r.voiceState.IsSpeaking:
		status = "speaking"
	case loading:
		status = "thinking"
	}
	r.mu.Lock()
	r.status = status
	r.mu.Unlock()
}

// deriveExpression applies listening > speaking > loading. With none of
// them set the current expression is kept.
func deriveExpression(vs voice.VoiceState, loading bool) (Expression, bool) {
	switch {
	case vs.IsListening:
		return ExpressionListening, true
	case vs.IsSpeaking:
		return ExpressionSpeaking, true
	case loading:
		return ExpressionEmpathetic, true
	default:
		return "", false
	}
}

func (r *Runner) setExpression(e Expression) {
	r.mu.Lock()
	changed := r.expression != e
	r.expression = e
	r.mu.Unlock()
	if changed {
		r.publishAvatar()
	}
}

func (r *Runner) publishVoice() {
	if r.publisher == nil {
		return
	}
	r.publisher.SendVoiceState(protocol.VoiceStatePayload{
		IsListening: r.voiceState.IsListening,
		IsSpeaking:  r.voiceState.IsSpeaking,
		IsSupported: r.voiceState.IsSupported,
	})
}

func (r *Runner) publishSession(st chat.State) {
	if r.publisher == nil {
		return
	}
	r.publisher.SendSessionState(SessionPayload(r.session.ID(), st))
}

func (r *Runner) publishAvatar() {
	if r.publisher == nil {
		return
	}
	r.publisher.SendAvatar(string(r.Expression()))
}

// SessionPayload converts a session snapshot to its wire form.
func SessionPayload(sessionID string, st chat.State) protocol.SessionStatePayload {
	msgs := make([]protocol.MessagePayload, len(st.Messages))
	for i, m := range st.Messages {
		msgs[i] = protocol.MessagePayload{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp,
		}
		if m.Mood != nil {
			msgs[i].Mood = string(*m.Mood)
		}
	}
	return protocol.SessionStatePayload{
		SessionID: sessionID,
		Messages:  msgs,
		IsLoading: st.IsLoading,
		Error:     st.Error,
	}
}
