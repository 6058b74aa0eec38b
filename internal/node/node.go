// Package node assembles the tipwatch daemon: the node backend, the bridge,
// the lifecycle controller, metrics and the RPC server. It can be embedded
// in any binary.
package node

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Klingon-tech/tipwatch/config"
	"github.com/Klingon-tech/tipwatch/internal/bridge"
	klog "github.com/Klingon-tech/tipwatch/internal/log"
	"github.com/Klingon-tech/tipwatch/internal/metrics"
	"github.com/Klingon-tech/tipwatch/internal/monitor"
	"github.com/Klingon-tech/tipwatch/internal/rpc"
	"github.com/Klingon-tech/tipwatch/internal/rpcnode"
	"github.com/Klingon-tech/tipwatch/internal/simnode"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Node is a fully-initialized tipwatch daemon.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	// Node backend
	native bridge.Native
	handle *bridge.Handle

	// Lifecycle
	metrics *metrics.Monitor
	ctrl    *monitor.Controller

	// RPC
	rpcServer *rpc.Server

	// Background goroutines
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// New creates and initializes a new Node. It performs all setup steps
// (logger, backend, controller, metrics, RPC) but does NOT start the node.
// Call Start() for that.
func New(cfg *config.Config) (*Node, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(logsDir, "tipwatch.log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.WithComponent("node")

	logger.Info().
		Str("network", string(cfg.Network)).
		Str("backend", string(cfg.Node.Backend)).
		Str("datadir", cfg.DataDir).
		Msg("Starting tipwatch")

	// ── 2. Node backend ─────────────────────────────────────────────
	if err := os.MkdirAll(cfg.NodeDataDir(), 0755); err != nil {
		return nil, fmt.Errorf("creating node data dir: %w", err)
	}
	native, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}
	handle := bridge.New(native)

	// ── 3. Metrics ──────────────────────────────────────────────────
	var m *metrics.Monitor
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// ── 4. Lifecycle controller ─────────────────────────────────────
	ctrl := monitor.New(handle, monitor.Options{
		DataDir:         cfg.NodeDataDir(),
		PollInterval:    cfg.Monitor.Interval,
		MaxPollFailures: cfg.Monitor.MaxFailures,
		Metrics:         m,
	})

	// ── 5. RPC server ───────────────────────────────────────────────
	var rpcServer *rpc.Server
	if cfg.RPC.Enabled {
		rpcAddr := cfg.RPCListenAddr()
		rpcServer = rpc.New(rpcAddr, cfg.RPC)
		rpcServer.SetMonitor(ctrl)
		if m != nil {
			rpcServer.SetMetricsHandler(m.Handler())
		}
		if err := rpcServer.Start(); err != nil {
			return nil, fmt.Errorf("start RPC at %s: %w", rpcAddr, err)
		}
		logger.Info().Str("addr", rpcServer.Addr()).Bool("metrics", m != nil).Msg("RPC server started")
	} else {
		logger.Warn().Msg("RPC disabled by config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	return &Node{
		cfg:       cfg,
		logger:    logger,
		native:    native,
		handle:    handle,
		metrics:   m,
		ctrl:      ctrl,
		rpcServer: rpcServer,
		ctx:       ctx,
		cancel:    cancel,
		group:     group,
	}, nil
}

// newBackend builds the configured node backend.
func newBackend(cfg *config.Config) (bridge.Native, error) {
	switch cfg.Node.Backend {
	case config.BackendSim:
		return simnode.New(simnode.Config{
			StepInterval: cfg.Sim.Step,
			SlotsPerStep: cfg.Sim.Slots,
			TargetSlot:   cfg.Sim.Target,
			SnapshotSlot: cfg.Sim.Target / 2,
		}), nil
	case config.BackendRPC:
		return rpcnode.New(cfg.Node.Endpoint, cfg.Node.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported node backend: %q", cfg.Node.Backend)
	}
}

// Start launches the state logger and, with monitor.autostart, starts the
// node on the configured network. It does not wait for the node.
func (n *Node) Start() error {
	sub := n.ctrl.Subscribe()
	n.group.Go(func() error {
		defer sub.Close()
		n.logStates(n.ctx, sub)
		return nil
	})

	if n.cfg.Monitor.AutoStart {
		network := string(n.cfg.Network)
		n.group.Go(func() error {
			if n.ctx.Err() != nil {
				return nil
			}
			err := n.ctrl.RequestStart(network)
			if err != nil && !errors.Is(err, monitor.ErrStartAbandoned) && !errors.Is(err, monitor.ErrClosed) {
				n.logger.Error().Err(err).Str("network", network).Msg("Autostart failed")
			}
			return nil
		})
	}

	n.logger.Info().
		Bool("autostart", n.cfg.Monitor.AutoStart).
		Dur("interval", n.cfg.Monitor.Interval).
		Msg("Monitor started")
	return nil
}

// logStates logs every published state change until ctx is done.
func (n *Node) logStates(ctx context.Context, sub *monitor.Subscription) {
	var last monitor.NodeState
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-sub.Updates():
			if !ok {
				return
			}
			if s == last {
				continue
			}
			last = s
			ev := n.logger.Info()
			if s.Kind == monitor.KindFailed {
				ev = n.logger.Warn()
			}
			ev.Str("state", s.Kind.String()).Msg(s.String())
		}
	}
}

// Stop performs graceful shutdown in reverse order.
func (n *Node) Stop() {
	n.cancel()
	n.ctrl.Close()
	n.group.Wait()

	if n.rpcServer != nil {
		n.rpcServer.Stop()
	}

	n.logger.Info().Msg("Goodbye!")
}

// Controller returns the lifecycle controller.
func (n *Node) Controller() *monitor.Controller {
	return n.ctrl
}

// Metrics returns the metrics monitor (nil when disabled).
func (n *Node) Metrics() *metrics.Monitor {
	return n.metrics
}

// RPCAddr returns the address the RPC server is listening on.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}
