// Package monitor supervises the external node and publishes its
// reconciled state.
//
// A Controller owns the node's run flag and lifecycle phase, runs one
// cancellable polling goroutine per node session, classifies every status
// report into a NodeState and publishes it through a Feed. Start, stop and
// publication from the polling loop are serialized by a single mutex, so
// nothing is published for a session once RequestStop has returned.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Klingon-tech/tipwatch/internal/bridge"
	klog "github.com/Klingon-tech/tipwatch/internal/log"
	"github.com/Klingon-tech/tipwatch/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultPollInterval is the delay between two status polls.
const DefaultPollInterval = time.Second

var (
	// ErrStartInProgress is returned by RequestStart while a previous
	// start has not completed.
	ErrStartInProgress = errors.New("node start already in progress")
	// ErrStartAbandoned is returned by RequestStart when RequestStop was
	// called before the node finished starting.
	ErrStartAbandoned = errors.New("node start abandoned by stop request")
	// ErrClosed is returned by RequestStart once the controller is closed.
	ErrClosed = errors.New("controller closed")
)

// NodeHandle is the controller's view of the external node.
type NodeHandle interface {
	Start(network, dataDir string) error
	Stop()
	Status() (*bridge.RawStatus, error)
}

// Phase is the controller's internal lifecycle phase. It is separate from
// the published NodeState.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseStarting
	PhaseRunning
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseStopped:
		return "stopped"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Options configures a Controller.
type Options struct {
	// DataDir is handed unchanged to the node on every start.
	DataDir string
	// PollInterval is the delay between polls (DefaultPollInterval if zero).
	PollInterval time.Duration
	// MaxPollFailures stops the session after that many consecutive poll
	// errors. Zero retries forever.
	MaxPollFailures int
	// Metrics is optional.
	Metrics *metrics.Monitor
}

// Session describes the running node session.
type Session struct {
	ID        string
	Network   string
	StartedAt time.Time
}

// Controller is the node lifecycle controller.
type Controller struct {
	handle  NodeHandle
	opts    Options
	feed    *Feed
	metrics *metrics.Monitor
	logger  zerolog.Logger

	mu      sync.Mutex
	phase   Phase
	closed  bool
	running bool   // run flag: a node session is active
	attempt uint64 // incremented by every start and every teardown
	session Session
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a controller for handle. Nothing runs until RequestStart.
func New(handle NodeHandle, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Controller{
		handle:  handle,
		opts:    opts,
		feed:    NewFeed(Idle()),
		metrics: opts.Metrics,
		logger:  klog.WithComponent("monitor"),
		phase:   PhaseNotStarted,
	}
}

// State returns the latest published state.
func (c *Controller) State() NodeState {
	return c.feed.Current()
}

// Subscribe returns a subscription delivering the current state followed by
// future updates. Callers must Close it.
func (c *Controller) Subscribe() *Subscription {
	return c.feed.Subscribe()
}

// Running reports the run flag.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Phase returns the lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Session returns the active session. The zero Session is returned when no
// node is running.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return Session{}
	}
	return c.session
}

// RequestStart starts the node on network and begins polling it.
//
// Idle and then Bootstrapping("Starting node...") are published before the
// node is started. A running session is torn down first. Start failures
// are published as Failed and also returned; there is no retry.
func (c *Controller) RequestStart(network string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	switch c.phase {
	case PhaseStarting:
		c.mu.Unlock()
		return ErrStartInProgress
	case PhaseRunning:
		c.logger.Info().Str("network", network).Msg("Restarting node")
		c.teardownLocked()
	}
	c.attempt++
	attempt := c.attempt
	c.phase = PhaseStarting
	c.publishLocked(Idle())
	c.publishLocked(Bootstrapping(MsgStarting))
	c.mu.Unlock()

	err := c.handle.Start(network, c.opts.DataDir)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attempt != attempt {
		// RequestStop ran while the node was starting.
		if err == nil {
			c.handle.Stop()
		}
		c.metrics.ObserveStart("abandoned")
		c.logger.Info().Str("network", network).Msg("Node start abandoned")
		return ErrStartAbandoned
	}

	if err != nil {
		c.phase = PhaseStopped
		c.metrics.ObserveStart("failed")
		c.logger.Error().Err(err).Str("network", network).Msg("Node start failed")
		c.publishLocked(Failed(err.Error()))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.running = true
	c.phase = PhaseRunning
	c.session = Session{
		ID:        uuid.NewString(),
		Network:   network,
		StartedAt: time.Now(),
	}
	c.metrics.ObserveStart("ok")
	c.logger.Info().
		Str("network", network).
		Str("session", c.session.ID).
		Dur("interval", c.opts.PollInterval).
		Msg("Node session started")

	c.wg.Add(1)
	go c.pollLoop(ctx, c.session.ID)
	return nil
}

// RequestStop cancels polling, stops the node and publishes Idle. It may be
// called from any goroutine and any number of times.
func (c *Controller) RequestStop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardownLocked()
	c.publishLocked(Idle())
}

// Close stops the node and waits for the polling goroutine to exit. Later
// calls to RequestStart fail with ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.teardownLocked()
	c.publishLocked(Idle())
	c.mu.Unlock()

	c.wg.Wait()
}

// teardownLocked ends the current session or abandons an in-flight start.
func (c *Controller) teardownLocked() {
	switch c.phase {
	case PhaseStarting:
		c.attempt++
	case PhaseRunning:
		c.logger.Info().Str("session", c.session.ID).Msg("Stopping node session")
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.running {
		c.handle.Stop()
		c.running = false
	}
	if c.phase != PhaseNotStarted {
		c.phase = PhaseStopped
	}
}

// publishLocked publishes s. Caller holds c.mu.
func (c *Controller) publishLocked(s NodeState) {
	prev := c.feed.Current()
	c.feed.Publish(s)

	c.metrics.SetState(s.Kind.String())
	if s.Kind == KindReady {
		c.metrics.SetTip(s.Tip.Slot, s.Tip.Epoch)
	}

	if prev.Kind != s.Kind || prev.Message != s.Message {
		c.logger.Debug().Str("from", prev.String()).Str("to", s.String()).Msg("State changed")
	}
}

// pollLoop polls the node until ctx is cancelled.
func (c *Controller) pollLoop(ctx context.Context, sessionID string) {
	defer c.wg.Done()

	logger := c.logger.With().Str("session", sessionID).Logger()
	failures := 0

	timer := time.NewTimer(c.opts.PollInterval)
	timer.Stop()
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		raw, err := c.handle.Status()

		var next NodeState
		if err != nil {
			failures++
			c.metrics.ObservePoll(pollOutcome(err))
			logger.Warn().Err(err).Int("failures", failures).Msg("Status poll failed")
			next = Failed(pollErrorPrefix + err.Error())
		} else {
			failures = 0
			c.metrics.ObservePoll("ok")
			next = Classify(raw)
			logger.Debug().
				Str("status", raw.Status).
				Uint64("slot", raw.Slot).
				Msg("Status polled")
		}

		if !c.publishIfActive(ctx, next) {
			return
		}

		if failures > 0 && c.opts.MaxPollFailures > 0 && failures >= c.opts.MaxPollFailures {
			c.abandonSession(ctx, failures)
			return
		}

		timer.Reset(c.opts.PollInterval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// publishIfActive publishes s unless the session was cancelled. It reports
// whether the session is still active.
func (c *Controller) publishIfActive(ctx context.Context, s NodeState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil {
		return false
	}
	c.publishLocked(s)
	return true
}

// abandonSession ends the session after too many consecutive poll errors.
func (c *Controller) abandonSession(ctx context.Context, failures int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	c.logger.Error().
		Str("session", c.session.ID).
		Int("failures", failures).
		Msg("Giving up on node after repeated polling errors")

	c.teardownLocked()
	c.publishLocked(Failed(fmt.Sprintf("Node unreachable after %d consecutive polling errors", failures)))
}

func pollOutcome(err error) string {
	var malformed *bridge.MalformedError
	switch {
	case errors.As(err, &malformed):
		return "malformed"
	case errors.Is(err, bridge.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
