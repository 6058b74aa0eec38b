// Package bridge is the synchronous boundary to the external node process.
//
// A Handle turns the node's native calls (integer result codes and JSON
// status strings) into Go errors and decoded RawStatus values. It keeps no
// state machine of its own beyond whether a node session is open.
package bridge

import (
	"os"
	"strings"
	"sync"

	klog "github.com/Klingon-tech/tipwatch/internal/log"
	"github.com/rs/zerolog"
)

// Native is the external node's command/query interface.
type Native interface {
	// InitLogging is called once per process before any other call.
	InitLogging()
	// Start begins running the node in the background and returns 0 on
	// success or a negative result code.
	Start(network, dataDir string) int64
	// GetStatus returns the latest status as a JSON-encoded RawStatus.
	GetStatus() string
	// Stop shuts the node down. It must tolerate being called when the
	// node is not running.
	Stop()
}

// RemoteNative is a Native hosted in another process. Its data directory
// lives on the remote side and is not checked locally.
type RemoteNative interface {
	Native
	Endpoint() string
}

// liveness is implemented by natives that can stop on their own.
type liveness interface {
	Running() bool
}

var initLogging sync.Once

// Handle is a synchronous facade over a Native node.
type Handle struct {
	native Native
	logger zerolog.Logger

	startMu sync.Mutex // held for the duration of a Start call

	// mu guards running. Status holds it for reading while the native
	// report is fetched so that a concurrent Stop waits for the report.
	mu      sync.RWMutex
	running bool
}

// New creates a handle for the given node. The node's InitLogging is
// invoked on the first New call in the process.
func New(native Native) *Handle {
	initLogging.Do(native.InitLogging)
	return &Handle{
		native: native,
		logger: klog.WithComponent("bridge"),
	}
}

// Start starts the node on network using dataDir as its data directory.
// It returns nil, ErrStartInFlight, or a *StartError.
func (h *Handle) Start(network, dataDir string) error {
	if !h.startMu.TryLock() {
		return ErrStartInFlight
	}
	defer h.startMu.Unlock()

	if strings.TrimSpace(network) == "" {
		return ErrInvalidNetworkArg
	}
	ev := h.logger.Info()
	if remote, ok := h.native.(RemoteNative); ok {
		ev = ev.Str("endpoint", remote.Endpoint())
	} else if info, err := os.Stat(dataDir); err != nil || !info.IsDir() {
		h.logger.Warn().Str("datadir", dataDir).Msg("Data directory does not exist")
		return ErrInvalidDataDirArg
	}
	ev.Str("network", network).Str("datadir", dataDir).Msg("Starting node")

	code := h.native.Start(network, dataDir)
	if err := startErrorFromCode(code); err != nil {
		h.logger.Error().
			Int64("code", code).
			Bool("known", err.Known()).
			Str("reason", err.Error()).
			Msg("Node failed to start")
		return err
	}

	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	h.logger.Info().Str("network", network).Msg("Node running")
	return nil
}

// Stop shuts the node down. It is a no-op when no node is running and never
// panics.
func (h *Handle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return
	}
	h.running = false

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().Interface("panic", r).Msg("Node stop panicked")
		}
	}()
	h.native.Stop()
	h.logger.Info().Msg("Node stopped")
}

// Status fetches and decodes the latest status report. It returns
// ErrUnavailable when no node is running, including a node that exited on
// its own, and a *MalformedError when the report cannot be decoded.
func (h *Handle) Status() (*RawStatus, error) {
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return nil, ErrUnavailable
	}
	if l, ok := h.native.(liveness); ok && !l.Running() {
		h.mu.RUnlock()
		return nil, ErrUnavailable
	}
	report := h.native.GetStatus()
	h.mu.RUnlock()

	raw, err := DecodeStatus(report)
	if err != nil {
		h.logger.Debug().Err(err).Msg("Malformed status report")
		return nil, err
	}
	return raw, nil
}

// Running reports whether a node session is open.
func (h *Handle) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}
