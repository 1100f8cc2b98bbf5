package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"neurotome/core"
	"neurotome/protocol"
)

const (
	defaultHeartbeatInterval = 5 * time.Second
	defaultSendBufferSize    = 256
	writeTimeout             = 10 * time.Second
)

// ClientConfig configures the control plane WebSocket client.
type ClientConfig struct {
	ConnectURL        string
	AgentID           string
	SessionID         string
	Version           string
	Capabilities      []string
	Metadata          map[string]string
	HeartbeatInterval time.Duration
	Logger            *core.Logger
}

// Client is the agent-side WebSocket client that connects outward to the UI
// server. It publishes voice/session state, avatar changes, logs and events,
// and receives the user's intents (push-to-talk, mood selection, typed text).
type Client struct {
	config ClientConfig
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	logger *core.Logger

	// Callbacks set by the agent. Each runs on the read loop goroutine.
	OnPushToTalk    func()
	OnStopSpeaking  func()
	OnSelectMood    func(mood core.Mood)
	OnSendText      func(text string)
	OnClearMessages func()
	OnShutdown      func(reason string)

	// StatusFunc reports the status carried by heartbeats. Defaults to "idle".
	StatusFunc func() string

	sendCh    chan []byte
	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once
}

// NewClient creates a new control plane client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = core.GetLogger()
	}
	return &Client{
		config: cfg,
		logger: cfg.Logger.With(map[string]interface{}{"component": "controlplane"}),
		sendCh: make(chan []byte, defaultSendBufferSize),
		done:   make(chan struct{}),
	}
}

// Connect dials the UI server WebSocket endpoint, sends the registration
// message, and starts the read/write/heartbeat loops. Cancelling ctx closes
// the connection.
func (c *Client) Connect(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.logger.With(map[string]interface{}{"url": c.config.ConnectURL}).Info("connecting to control plane")

	conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, c.config.ConnectURL, nil)
	if err != nil {
		c.cancel()
		return fmt.Errorf("controlplane: dial %q: %w", c.config.ConnectURL, err)
	}
	c.conn = conn

	reg := protocol.RegisterPayload{
		AgentID:      c.config.AgentID,
		SessionID:    c.config.SessionID,
		Version:      c.config.Version,
		Capabilities: c.config.Capabilities,
		Metadata:     c.config.Metadata,
		Timestamp:    time.Now().UTC(),
	}
	if err := c.send(protocol.MsgRegister, reg); err != nil {
		conn.Close()
		c.cancel()
		return fmt.Errorf("controlplane: send register: %w", err)
	}

	c.logger.With(map[string]interface{}{"agent_id": c.config.AgentID}).Info("registered with control plane")

	go c.readLoop()
	go c.writeLoop()
	go c.heartbeatLoop()

	return nil
}

// SendLog sends a log entry for the session to the UI.
func (c *Client) SendLog(entry protocol.LogEntry) {
	c.enqueue(protocol.MsgLog, protocol.LogPayload{
		AgentID:   c.config.AgentID,
		SessionID: c.config.SessionID,
		Entry:     entry,
	})
}

// SendLogEnd signals that the session's log stream has ended.
func (c *Client) SendLogEnd() {
	c.enqueue(protocol.MsgLogEnd, protocol.LogEndPayload{
		AgentID:   c.config.AgentID,
		SessionID: c.config.SessionID,
	})
}

// SendVoiceState publishes the coordinator flags.
func (c *Client) SendVoiceState(p protocol.VoiceStatePayload) {
	c.enqueue(protocol.MsgVoiceState, p)
}

// SendSessionState publishes the conversation log and loading/error flags.
func (c *Client) SendSessionState(p protocol.SessionStatePayload) {
	c.enqueue(protocol.MsgSessionState, p)
}

// SendAvatar publishes the avatar expression.
func (c *Client) SendAvatar(expression string) {
	c.enqueue(protocol.MsgAvatar, protocol.AvatarPayload{Expression: expression})
}

// Publish implements core.EventSink by forwarding the packet as an event
// message.
func (c *Client) Publish(packet *core.EventPacket) {
	if packet == nil || packet.Event == nil {
		return
	}
	data, err := sonic.Marshal(packet.Event)
	if err != nil {
		c.logger.With(map[string]interface{}{"error": err, "event": packet.Event.GetId()}).Warn("failed to marshal event, dropping")
		return
	}
	c.enqueue(protocol.MsgEvent, protocol.EventPayload{
		SessionID: c.config.SessionID,
		EventID:   packet.Event.GetId(),
		Uid:       packet.Uid,
		Data:      data,
	})
}

// Done is closed when the connection drops or the context is cancelled.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the connection drops or the context is cancelled.
func (c *Client) Wait() error {
	<-c.done
	return nil
}

// Close shuts down the client.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) send(msgType protocol.MessageType, payload interface{}) error {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) enqueue(msgType protocol.MessageType, payload interface{}) {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		c.logger.With(map[string]interface{}{"error": err, "type": string(msgType)}).Warn("failed to marshal message, dropping")
		return
	}
	select {
	case c.sendCh <- data:
	default:
		// Buffer full: drop oldest and push new.
		select {
		case <-c.sendCh:
		default:
		}
		select {
		case c.sendCh <- data:
		default:
		}
	}
}

func (c *Client) readLoop() {
	defer func() {
		c.doneOnce.Do(func() { close(c.done) })
		c.cancel()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.With(map[string]interface{}{"error": err}).Warn("control plane connection lost")
			}
			return
		}

		msgType, payload, err := protocol.Unmarshal(data)
		if err != nil {
			c.logger.With(map[string]interface{}{"error": err}).Warn("invalid message from control plane")
			continue
		}

		if stop := c.handle(msgType, payload); stop {
			return
		}
	}
}

// handle dispatches one intent. It reports whether the read loop should stop.
func (c *Client) handle(msgType protocol.MessageType, payload json.RawMessage) bool {
	switch msgType {
	case protocol.MsgPushToTalk:
		if c.OnPushToTalk != nil {
			c.OnPushToTalk()
		}

	case protocol.MsgStopSpeaking:
		if c.OnStopSpeaking != nil {
			c.OnStopSpeaking()
		}

	case protocol.MsgSelectMood:
		p, err := protocol.UnmarshalPayload[protocol.SelectMoodPayload](payload)
		if err != nil {
			c.logger.With(map[string]interface{}{"error": err}).Warn("invalid select_mood payload")
			return false
		}
		mood, err := core.ParseMood(p.Mood)
		if err != nil {
			c.logger.With(map[string]interface{}{"error": err}).Warn("unknown mood from control plane")
			return false
		}
		if c.OnSelectMood != nil {
			c.OnSelectMood(mood)
		}

	case protocol.MsgSendText:
		p, err := protocol.UnmarshalPayload[protocol.SendTextPayload](payload)
		if err != nil {
			c.logger.With(map[string]interface{}{"error": err}).Warn("invalid send_text payload")
			return false
		}
		if c.OnSendText != nil {
			c.OnSendText(p.Text)
		}

	case protocol.MsgClearMessages:
		if c.OnClearMessages != nil {
			c.OnClearMessages()
		}

	case protocol.MsgAck:
		p, _ := protocol.UnmarshalPayload[protocol.AckPayload](payload)
		if !p.OK {
			c.logger.With(map[string]interface{}{"type": string(p.AckedType), "error": p.Error}).Warn("control plane rejected message")
		}

	case protocol.MsgShutdown:
		p, _ := protocol.UnmarshalPayload[protocol.ShutdownPayload](payload)
		reason := p.Reason
		if reason == "" {
			reason = "shutdown requested by control plane"
		}
		c.logger.With(map[string]interface{}{"reason": reason}).Info("shutdown requested")
		if c.OnShutdown != nil {
			c.OnShutdown(reason)
		}
		return true

	default:
		c.logger.With(map[string]interface{}{"type": string(msgType)}).Warn("unknown message type from control plane")
	}
	return false
}

func (c *Client) writeLoop() {
	for {
		select {
		case data := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.With(map[string]interface{}{"error": err}).Warn("write to control plane failed")
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			status := "idle"
			if c.StatusFunc != nil {
				status = c.StatusFunc()
			}
			c.enqueue(protocol.MsgHeartbeat, protocol.HeartbeatPayload{
				AgentID:   c.config.AgentID,
				Timestamp: time.Now().UTC(),
				Status:    status,
			})
		case <-c.ctx.Done():
			return
		}
	}
}
