// Package realtime maintains a resilient WebSocket event stream to the
// trading server for one session: connect, authenticate, heartbeat,
// reconnect with exponential backoff, graceful teardown. Inbound frames are
// delivered to the owner on a buffered channel in arrival order.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"live-clientv1/internal/metrics"
	"live-clientv1/internal/model"
)

// CloseAuthRejected is the close code the server reserves for authentication
// rejection. No reconnect is ever attempted after it.
const CloseAuthRejected = 4401

const (
	defaultHeartbeat   = 30 * time.Second
	defaultBackoffBase = 1 * time.Second
	defaultBackoffCap  = 30 * time.Second
	defaultMaxAttempts = 5

	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
	eventBuffer      = 256
)

var (
	// ErrAuthUnavailable blocks connection attempts when no token is present.
	ErrAuthUnavailable = errors.New("realtime: auth token unavailable")
	// ErrAuthRejected terminates the channel after a 4401 close.
	ErrAuthRejected = errors.New("realtime: authentication rejected by server")
	// ErrRetriesExhausted terminates the channel after the backoff gives up.
	ErrRetriesExhausted = errors.New("realtime: reconnect attempts exhausted")
)

// State is the connection state of the channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "disconnected"
	}
}

// EventKind discriminates events delivered to the channel owner.
type EventKind int

const (
	// KindConnected fires on every successful open, including reconnects.
	KindConnected EventKind = iota
	// KindFrame carries one decoded inbound frame.
	KindFrame
	// KindDisconnected fires on an ordinary close; a reconnect may be pending.
	KindDisconnected
	// KindClosed is terminal: auth rejection or retry exhaustion, Err set.
	KindClosed
)

// Event is one item delivered on Events(), in arrival order.
type Event struct {
	Kind  EventKind
	Frame model.Frame
	Err   error
}

// Config configures a Channel.
type Config struct {
	BaseURL   string // ws:// or wss:// root, no trailing slash
	SessionID string
	Token     string

	Heartbeat   time.Duration
	BackoffBase time.Duration
	BackoffCap  time.Duration
	MaxAttempts int

	// Running reports whether the owning session is still running. Reconnects
	// are only scheduled while it returns true.
	Running func() bool

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Channel is a resilient WebSocket stream scoped to one session.
type Channel struct {
	baseURL     string
	sessionID   string
	token       string
	heartbeat   time.Duration
	backoffBase time.Duration
	backoffCap  time.Duration
	maxAttempts int
	running     func() bool

	log    *slog.Logger
	met    *metrics.Metrics
	dialer *websocket.Dialer
	events chan Event

	writeMu sync.Mutex // serializes writes (heartbeat vs close)

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	stop      chan struct{} // per-connection heartbeat stop
	attempt   int
	reconnect *time.Timer
	lastPong  time.Time
	closed    bool // Disconnect was called
	terminal  bool // auth rejected or retries exhausted
}

// New creates a Channel. Connect must be called to open it.
func New(cfg Config) (*Channel, error) {
	if cfg.BaseURL == "" || cfg.SessionID == "" {
		return nil, errors.New("realtime: base URL and session id are required")
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaultHeartbeat
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = defaultBackoffCap
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Channel{
		baseURL:     cfg.BaseURL,
		sessionID:   cfg.SessionID,
		token:       cfg.Token,
		heartbeat:   cfg.Heartbeat,
		backoffBase: cfg.BackoffBase,
		backoffCap:  cfg.BackoffCap,
		maxAttempts: cfg.MaxAttempts,
		running:     cfg.Running,
		log:         cfg.Logger.With("component", "realtime", "session_id", cfg.SessionID),
		met:         cfg.Metrics,
		dialer:      &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		events:      make(chan Event, eventBuffer),
	}, nil
}

// Events returns the stream of channel events, delivered in arrival order.
func (c *Channel) Events() <-chan Event { return c.events }

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ReconnectPending reports whether a reconnect timer is currently scheduled.
func (c *Channel) ReconnectPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnect != nil
}

// LastPong returns the time of the most recent pong frame.
func (c *Channel) LastPong() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPong
}

// Connect opens the transport. It fails fast with ErrAuthUnavailable when no
// token is configured, without attempting a dial.
func (c *Channel) Connect() error {
	if c.token == "" {
		return ErrAuthUnavailable
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("realtime: channel already torn down")
	}
	if c.state != StateDisconnected {
		s := c.state
		c.mu.Unlock()
		return fmt.Errorf("realtime: connect while %s", s)
	}
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	conn, _, err := c.dialer.Dial(c.endpoint(), nil)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if err == nil {
			conn.Close()
		}
		return errors.New("realtime: channel torn down during connect")
	}
	if err != nil {
		c.setStateLocked(StateDisconnected)
		c.mu.Unlock()
		return fmt.Errorf("realtime: dial: %w", err)
	}
	c.installLocked(conn)
	c.mu.Unlock()

	c.log.Info("channel open")
	c.emit(Event{Kind: KindConnected})
	return nil
}

// Disconnect tears the channel down: cancels any pending reconnect timer,
// stops the heartbeat, closes the transport. Idempotent.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.setStateLocked(StateClosing)
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	conn := c.conn
	c.conn = nil
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		c.writeMu.Unlock()
		conn.Close()
	}
	c.log.Info("channel closed")
	c.emit(Event{Kind: KindDisconnected})
}

func (c *Channel) endpoint() string {
	return c.baseURL + "/realtime/" + c.sessionID + "?token=" + url.QueryEscape(c.token)
}

// installLocked wires a freshly dialed connection. Caller holds mu.
func (c *Channel) installLocked(conn *websocket.Conn) {
	c.conn = conn
	c.attempt = 0
	c.setStateLocked(StateOpen)
	stop := make(chan struct{})
	c.stop = stop
	go c.readLoop(conn)
	go c.heartbeatLoop(conn, stop)
}

func (c *Channel) setStateLocked(s State) {
	c.state = s
	c.met.SetChannelState(float64(s))
}

// readLoop decodes inbound frames until the connection fails.
func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}

		var frame model.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.Warn("dropping malformed frame", "err", err)
			c.met.IncDropped()
			continue
		}

		switch frame.Type {
		case model.FramePong:
			c.met.IncFrame(frame.Type)
			c.mu.Lock()
			c.lastPong = time.Now()
			c.mu.Unlock()
		case model.FrameBar, model.FrameTrade, model.FrameStateUpdate, model.FrameError:
			c.met.IncFrame(frame.Type)
			c.emit(Event{Kind: KindFrame, Frame: frame})
		default:
			c.log.Warn("ignoring unrecognized frame type", "type", frame.Type)
		}
	}
}

// heartbeatLoop sends a ping frame at a fixed interval while the connection
// is open. A failed write closes the connection; readLoop surfaces it.
func (c *Channel) heartbeatLoop(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			open := c.state == StateOpen && c.conn == conn
			c.mu.Unlock()
			if !open {
				return
			}
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteJSON(model.Frame{Type: model.FramePing})
			c.writeMu.Unlock()
			if err != nil {
				c.log.Warn("heartbeat write failed", "err", err)
				conn.Close()
				return
			}
			c.met.IncHeartbeat()
		}
	}
}

// handleClose reacts to a read failure: terminal on auth rejection, backoff
// reconnect on any other close while the session is still running.
func (c *Channel) handleClose(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		// A stale loop from a previous connection; teardown already handled.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	conn.Close()

	if c.closed {
		c.setStateLocked(StateDisconnected)
		c.mu.Unlock()
		return
	}
	c.setStateLocked(StateDisconnected)

	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code == CloseAuthRejected {
		c.terminal = true
		c.mu.Unlock()
		c.log.Error("authentication rejected, not reconnecting")
		c.emit(Event{Kind: KindClosed, Err: ErrAuthRejected})
		return
	}

	if c.running != nil && !c.running() {
		c.mu.Unlock()
		c.log.Info("connection closed, session not running", "err", err)
		c.emit(Event{Kind: KindDisconnected})
		return
	}

	ev := c.scheduleReconnectLocked(err)
	c.mu.Unlock()
	c.emit(ev)
}

// scheduleReconnectLocked arms the backoff timer or gives up after the
// attempt limit. Caller holds mu; the returned event is emitted after unlock.
func (c *Channel) scheduleReconnectLocked(cause error) Event {
	if c.attempt >= c.maxAttempts {
		c.terminal = true
		c.log.Error("reconnect attempts exhausted", "attempts", c.attempt)
		return Event{Kind: KindClosed, Err: ErrRetriesExhausted}
	}
	c.attempt++
	delay := c.backoffDelay(c.attempt)
	c.reconnect = time.AfterFunc(delay, c.redial)
	c.log.Warn("connection lost, reconnect scheduled",
		"attempt", c.attempt, "delay", delay, "err", cause)
	return Event{Kind: KindDisconnected}
}

// backoffDelay is min(base * 2^attempt, cap).
func (c *Channel) backoffDelay(attempt int) time.Duration {
	delay := c.backoffBase * (1 << uint(attempt))
	if delay > c.backoffCap {
		delay = c.backoffCap
	}
	return delay
}

// redial runs on the backoff timer and attempts one reconnection.
func (c *Channel) redial() {
	c.mu.Lock()
	c.reconnect = nil
	if c.closed || c.terminal || c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	c.met.IncReconnect()
	conn, _, err := c.dialer.Dial(c.endpoint(), nil)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if err == nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		c.setStateLocked(StateDisconnected)
		ev := c.scheduleReconnectLocked(err)
		c.mu.Unlock()
		c.emit(ev)
		return
	}
	c.installLocked(conn)
	c.mu.Unlock()

	c.log.Info("channel reconnected")
	c.emit(Event{Kind: KindConnected})
}

// emit delivers an event without blocking the read loop. A full queue drops
// the event; the owner resynchronizes from history on reconnect anyway.
func (c *Channel) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn("event queue full, dropping event", "kind", ev.Kind)
		c.met.IncDropped()
	}
}
