// Package controller owns the live trading session state machine. One
// Controller instance manages one session: it drives lifecycle calls against
// the session API, holds the realtime channel, and maintains the bar, marker
// and indicator snapshots the presentation layer reads.
package controller

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"live-clientv1/internal/history"
	"live-clientv1/internal/indicator"
	"live-clientv1/internal/journal"
	"live-clientv1/internal/metrics"
	"live-clientv1/internal/model"
	"live-clientv1/internal/publish"
	"live-clientv1/internal/realtime"
	"live-clientv1/internal/sessionapi"
)

// Config wires a Controller.
type Config struct {
	API         *sessionapi.Client
	RealtimeURL string // ws:// root of the realtime endpoint
	Token       string // realtime auth token; may be empty, Start will refuse

	BarCap     int
	MarkerCap  int
	Indicators indicator.Config

	// Optional collaborators; nil disables them.
	Journal   *journal.Journal
	Publisher *publish.Publisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	// Channel tuning; zero values fall back to the channel defaults.
	Heartbeat   time.Duration
	BackoffBase time.Duration
	BackoffCap  time.Duration
	MaxAttempts int
}

// Controller is the session owner. All store mutation happens on its event
// loop; external callers only see read-only snapshots.
type Controller struct {
	api         *sessionapi.Client
	realtimeURL string
	token       string
	indCfg      indicator.Config
	barLimit    int
	markerLimit int

	heartbeat   time.Duration
	backoffBase time.Duration
	backoffCap  time.Duration
	maxAttempts int

	jrnl *journal.Journal
	pub  *publish.Publisher
	met  *metrics.Metrics
	log  *slog.Logger

	bars    *history.BarStore
	markers *history.MarkerStore

	mu         sync.RWMutex
	status     model.Status
	sessionID  string
	cfg        model.SessionConfig
	lastState  *model.SessionState
	summary    model.Summary
	series     indicator.Series
	lastErr    error
	startedAt  time.Time
	stoppedAt  time.Time
	opInFlight bool
	disposed   bool

	ch         *realtime.Channel
	loopCancel context.CancelFunc
	loopWG     sync.WaitGroup
}

// New creates a Controller in the "none" state.
func New(cfg Config) *Controller {
	if cfg.BarCap <= 0 {
		cfg.BarCap = history.DefaultBarCap
	}
	if cfg.MarkerCap <= 0 {
		cfg.MarkerCap = history.DefaultMarkerCap
	}
	if cfg.Indicators == (indicator.Config{}) {
		cfg.Indicators = indicator.DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		api:         cfg.API,
		realtimeURL: cfg.RealtimeURL,
		token:       cfg.Token,
		indCfg:      cfg.Indicators,
		barLimit:    cfg.BarCap,
		markerLimit: cfg.MarkerCap,
		heartbeat:   cfg.Heartbeat,
		backoffBase: cfg.BackoffBase,
		backoffCap:  cfg.BackoffCap,
		maxAttempts: cfg.MaxAttempts,
		jrnl:        cfg.Journal,
		pub:         cfg.Publisher,
		met:         cfg.Metrics,
		log:         cfg.Logger.With("component", "controller"),
		bars:        history.NewBarStore(cfg.BarCap),
		markers:     history.NewMarkerStore(cfg.MarkerCap),
		status:      model.StatusNone,
	}
}

// Create validates the config locally, then registers the session with the
// API. Real-mode sessions additionally require confirmReal.
func (c *Controller) Create(ctx context.Context, cfg model.SessionConfig, confirmReal bool) error {
	if err := c.beginOp(); err != nil {
		return err
	}
	defer c.endOp()

	if st := c.Status(); st != model.StatusNone {
		return &InvalidTransitionError{From: st, Op: "create"}
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}
	if cfg.Mode == "" {
		cfg.Mode = model.ModePaper
	}
	if cfg.Mode == model.ModeReal && !confirmReal {
		return ErrConfirmationRequired
	}

	resp, err := c.api.CreateSession(ctx, cfg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.sessionID = resp.SessionID
	c.cfg = cfg
	c.status = model.StatusCreated
	c.mu.Unlock()

	c.met.IncTransition(string(model.StatusCreated))
	c.log.Info("session created", "session_id", resp.SessionID, "mode", cfg.Mode)
	return nil
}

// Start begins strategy execution: API start, realtime channel, history
// backfill and the duration clock. Valid from created or stopped.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.beginOp(); err != nil {
		return err
	}
	defer c.endOp()

	st := c.Status()
	if st != model.StatusCreated && st != model.StatusStopped {
		return &InvalidTransitionError{From: st, Op: "start"}
	}
	// The channel would refuse anyway; check here so the API is not called
	// for a session we can never observe.
	if c.token == "" {
		return realtime.ErrAuthUnavailable
	}

	id := c.SessionID()
	if _, err := c.api.StartSession(ctx, id); err != nil {
		return err
	}

	ch, err := realtime.New(realtime.Config{
		BaseURL:     c.realtimeURL,
		SessionID:   id,
		Token:       c.token,
		Heartbeat:   c.heartbeat,
		BackoffBase: c.backoffBase,
		BackoffCap:  c.backoffCap,
		MaxAttempts: c.maxAttempts,
		Running:     func() bool { return c.Status() == model.StatusRunning },
		Logger:      c.log,
		Metrics:     c.met,
	})
	if err != nil {
		return err
	}
	if err := ch.Connect(); err != nil {
		// Roll the server back so it is not left running unobserved
		if _, stopErr := c.api.StopSession(ctx, id); stopErr != nil {
			c.log.Warn("rollback stop failed", "err", stopErr)
		}
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.ch = ch
	c.loopCancel = cancel
	c.startedAt = time.Now()
	c.stoppedAt = time.Time{}
	c.lastErr = nil
	c.status = model.StatusRunning
	c.mu.Unlock()

	c.loopWG.Add(1)
	go c.runLoop(loopCtx, ch)

	c.met.IncTransition(string(model.StatusRunning))
	c.log.Info("session running", "session_id", id)
	return nil
}

// Stop halts strategy execution and tears the channel down. Valid from
// running. Open positions are not implicitly closed.
func (c *Controller) Stop(ctx context.Context) error {
	if err := c.beginOp(); err != nil {
		return err
	}
	defer c.endOp()

	if st := c.Status(); st != model.StatusRunning {
		return &InvalidTransitionError{From: st, Op: "stop"}
	}

	id := c.SessionID()
	if _, err := c.api.StopSession(ctx, id); err != nil {
		return err
	}

	// Leave running before the disconnect so the channel will not reconnect
	c.mu.Lock()
	c.status = model.StatusStopped
	c.stoppedAt = time.Now()
	ch := c.ch
	cancel := c.loopCancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ch != nil {
		ch.Disconnect()
	}
	c.loopWG.Wait()

	c.met.IncTransition(string(model.StatusStopped))
	c.log.Info("session stopped", "session_id", id)
	return nil
}

// Dispose releases the channel, event loop, journal and publisher.
// Idempotent; safe from both explicit stop and process-teardown paths.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	ch := c.ch
	cancel := c.loopCancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ch != nil {
		ch.Disconnect()
	}
	c.loopWG.Wait()

	if c.jrnl != nil {
		c.jrnl.Close()
	}
	if c.pub != nil {
		c.pub.Close()
	}
	c.log.Info("controller disposed")
}

func (c *Controller) beginOp() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	if c.opInFlight {
		return ErrOperationInFlight
	}
	c.opInFlight = true
	return nil
}

func (c *Controller) endOp() {
	c.mu.Lock()
	c.opInFlight = false
	c.mu.Unlock()
}

func validateConfig(cfg model.SessionConfig) error {
	if cfg.Strategy == "" {
		return &ValidationError{Field: "strategy", Reason: "no strategy selected"}
	}
	d := cfg.InitialDeposit
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return &ValidationError{Field: "initial_deposit", Reason: "must be a finite number"}
	}
	if d < MinDeposit {
		return &ValidationError{Field: "initial_deposit", Reason: "below the $10 minimum"}
	}
	if d > MaxDeposit {
		return &ValidationError{Field: "initial_deposit", Reason: "above the $1,000,000 maximum"}
	}
	return nil
}

// Status returns the current lifecycle state.
func (c *Controller) Status() model.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// SessionID returns the API-assigned session id ("" before Create).
func (c *Controller) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// LastError returns the terminal channel failure, if any. A non-nil value
// means the realtime stream is down and needs user action.
func (c *Controller) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Bars returns a read-only snapshot of the bar history.
func (c *Controller) Bars() []model.Bar { return c.bars.Snapshot() }

// Markers returns a read-only snapshot of the trade markers.
func (c *Controller) Markers() []model.Marker { return c.markers.Snapshot() }

// Series returns the derived indicator series for the current bar history.
func (c *Controller) Series() indicator.Series {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.series
}

// Summary returns the derived session metrics.
func (c *Controller) Summary() model.Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.summary
}

// LastState returns a copy of the most recent state snapshot, or nil.
func (c *Controller) LastState() *model.SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastState == nil {
		return nil
	}
	cp := *c.lastState
	return &cp
}

// Elapsed returns the session run duration so far.
func (c *Controller) Elapsed() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.startedAt.IsZero() {
		return 0
	}
	if c.status == model.StatusRunning {
		return time.Since(c.startedAt)
	}
	return c.stoppedAt.Sub(c.startedAt)
}
