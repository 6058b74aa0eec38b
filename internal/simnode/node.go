// Package simnode is an in-process stand-in for the external chain node.
//
// It speaks the node's native interface (integer start codes, JSON status
// reports) and walks through snapshot bootstrap, syncing and caught-up
// phases on a timer, emitting the same trace events the real node does.
package simnode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	klog "github.com/Klingon-tech/tipwatch/internal/log"
	"github.com/Klingon-tech/tipwatch/internal/trace"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Start result codes.
const (
	CodeOK                 int64 = 0
	CodeInvalidNetworkArg  int64 = -1
	CodeInvalidDataDirArg  int64 = -2
	CodeUnsupportedNetwork int64 = -3
	CodeRuntimeInitFailure int64 = -4
	CodeAlreadyRunning     int64 = -6
)

// Marker file written into ledger.db once a snapshot has been imported.
const ledgerMarker = "CURRENT"

var upstreamPeers = map[string][]string{
	"mainnet": {"relays.cardano-mainnet.iohk.io:3001"},
	"preprod": {"preprod-node.play.dev.cardano.org:3001"},
	"preview": {
		"preview-node.play.dev.cardano.org:3001",
		"relays.cardano-preview.iohkdev.io:3001",
	},
}

// Networks returns the supported network names, sorted.
func Networks() []string {
	names := make([]string, 0, len(upstreamPeers))
	for n := range upstreamPeers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Peers returns the upstream peers of network.
func Peers(network string) []string {
	return append([]string(nil), upstreamPeers[strings.ToLower(network)]...)
}

// Config controls the pace of the simulated chain.
type Config struct {
	// StepInterval is the delay between two simulated events.
	StepInterval time.Duration
	// SlotsPerStep is how far the tip advances per step.
	SlotsPerStep uint64
	// TargetSlot is the network tip. The node syncs until it reaches it and
	// reports caught-up tips from then on.
	TargetSlot uint64
	// SnapshotSlot is the slot a fresh node resumes from after importing
	// snapshots.
	SnapshotSlot uint64
	// FlushInterval is how often trace events are applied to the status.
	FlushInterval time.Duration
}

// DefaultConfig returns a configuration that reaches the tip in a few
// seconds.
func DefaultConfig() Config {
	return Config{
		StepInterval:  200 * time.Millisecond,
		SlotsPerStep:  20,
		TargetSlot:    2000,
		SnapshotSlot:  1000,
		FlushInterval: trace.DefaultFlushInterval,
	}
}

// Node is a simulated chain node. The zero value is not usable; call New.
type Node struct {
	cfg    Config
	logger zerolog.Logger

	initOnce sync.Once

	mu      sync.Mutex
	tracker *trace.Tracker
	session *session
}

type session struct {
	network string
	cancel  context.CancelFunc
	done    chan struct{} // closed once the goroutines exited and the store is closed
}

// New creates a stopped node.
func New(cfg Config) *Node {
	def := DefaultConfig()
	if cfg.StepInterval <= 0 {
		cfg.StepInterval = def.StepInterval
	}
	if cfg.SlotsPerStep == 0 {
		cfg.SlotsPerStep = def.SlotsPerStep
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	return &Node{
		cfg:     cfg,
		logger:  klog.WithComponent("simnode"),
		tracker: trace.NewTracker(),
	}
}

// InitLogging is called once per process by the bridge.
func (n *Node) InitLogging() {
	n.initOnce.Do(func() {
		n.logger.Info().Strs("networks", Networks()).Msg("Simulated node logging initialized")
	})
}

// Start begins running the node on network with its stores under
// dataDir/network. It returns immediately with a result code.
func (n *Node) Start(network, dataDir string) int64 {
	if strings.TrimSpace(network) == "" {
		return CodeInvalidNetworkArg
	}
	if strings.TrimSpace(dataDir) == "" {
		return CodeInvalidDataDirArg
	}
	network = strings.ToLower(network)
	if _, ok := upstreamPeers[network]; !ok {
		n.logger.Error().Str("network", network).Msg("Invalid network name")
		return CodeUnsupportedNetwork
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.session != nil {
		n.logger.Error().Str("network", network).Msg("Start called while the node is already running")
		return CodeAlreadyRunning
	}

	root := filepath.Join(dataDir, network)
	ledgerDir := filepath.Join(root, "ledger.db")
	chainDir := filepath.Join(root, "chain.db")
	for _, dir := range []string{ledgerDir, chainDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			n.logger.Error().Err(err).Str("dir", dir).Msg("Failed to create store directory")
			return CodeRuntimeInitFailure
		}
	}

	store, err := openChainStore(chainDir)
	if err != nil {
		n.logger.Error().Err(err).Msg("Failed to open chain store")
		return CodeRuntimeInitFailure
	}

	tracker := trace.NewTracker()
	tracker.SetStatus(trace.Bootstrapping)
	collector := trace.NewCollector()

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		collector.Run(gctx, n.cfg.FlushInterval, tracker)
		return nil
	})
	g.Go(func() error {
		r := &runner{
			cfg:       n.cfg,
			network:   network,
			ledgerDir: ledgerDir,
			store:     store,
			tracker:   tracker,
			collector: collector,
			logger:    n.logger.With().Str("network", network).Logger(),
		}
		return r.run(gctx)
	})

	sess := &session{network: network, cancel: cancel, done: make(chan struct{})}
	n.tracker = tracker
	n.session = sess
	go n.supervise(sess, g, store)

	n.logger.Info().
		Str("network", network).
		Str("datadir", root).
		Strs("peers", Peers(network)).
		Msg("Node started")
	return CodeOK
}

// GetStatus returns the latest status report as JSON.
func (n *Node) GetStatus() string {
	n.mu.Lock()
	tracker := n.tracker
	n.mu.Unlock()
	return tracker.ReportJSON()
}

// supervise waits for the session's goroutines and releases its store. A
// session that fails on its own is dropped, so Running reports false and the
// status falls back to NotStarted.
func (n *Node) supervise(s *session, g *errgroup.Group, store *chainStore) {
	defer close(s.done)

	err := g.Wait()
	if cerr := store.Close(); cerr != nil {
		n.logger.Warn().Err(cerr).Msg("Failed to close chain store")
	}
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	n.logger.Error().Err(err).Str("network", s.network).Msg("Node exited with error")

	n.mu.Lock()
	if n.session == s {
		n.session = nil
		n.tracker.Reset()
	}
	n.mu.Unlock()
	s.cancel()
}

// Stop shuts the node down and waits for its goroutines. It is a no-op when
// the node is not running.
func (n *Node) Stop() {
	n.mu.Lock()
	s := n.session
	n.session = nil
	n.mu.Unlock()

	if s == nil {
		return
	}
	s.cancel()
	<-s.done
	n.logger.Info().Str("network", s.network).Msg("Node stopped")
}

// Running reports whether a session is active.
func (n *Node) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.session != nil
}
