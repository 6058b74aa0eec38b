package trace

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Klingon-tech/tipwatch/internal/bridge"
	klog "github.com/Klingon-tech/tipwatch/internal/log"
	"github.com/rs/zerolog"
)

// PendingHash is reported as the block hash before any tip is known.
const PendingHash = "pending"

// Tracker holds the latest sync status and tip. It is safe for concurrent
// use.
type Tracker struct {
	mu     sync.RWMutex
	status SyncStatus
	tip    *bridge.Tip
	logger zerolog.Logger
}

// NewTracker creates a tracker in the NotStarted state.
func NewTracker() *Tracker {
	return &Tracker{
		status: NotStarted,
		logger: klog.WithComponent("trace"),
	}
}

// SetStatus overrides the sync status.
func (t *Tracker) SetStatus(s SyncStatus) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

// Status returns the sync status.
func (t *Tracker) Status() SyncStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Tip returns the latest tip, or nil if none was seen.
func (t *Tracker) Tip() *bridge.Tip {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.tip == nil {
		return nil
	}
	tip := *t.tip
	return &tip
}

// Reset returns the tracker to NotStarted with no tip.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.status = NotStarted
	t.tip = nil
	t.mu.Unlock()
}

// Apply decodes one JSON trace line and applies it.
func (t *Tracker) Apply(line []byte) error {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return fmt.Errorf("decode trace line: %w", err)
	}
	t.ApplyEvent(ev)
	return nil
}

// ApplyEvent folds ev into the status and tip. Unknown events are ignored.
func (t *Tracker) ApplyEvent(ev Event) {
	name := ev.Name
	if name != "" && !verbose(name) {
		t.logger.Info().Str("event", name).Msg("Trace")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch name {
	case EventDownloadingSnapshot:
		t.status = DownloadingSnapshots
	case EventImportingSnapshots, EventImportingSnapshot:
		t.status = ImportingSnapshots
	case EventImportedSnapshots:
		t.status = Syncing
	}

	switch name {
	case EventStarting:
		if ev.Tip != nil {
			t.setTipLocked(ev.Tip.Slot, ev.Tip.Hash, true)
			t.logger.Info().Uint64("slot", ev.Tip.Slot).Msg("Starting from tip")
		}
	case EventCaughtUpNewTip:
		if slot, hash, ok := parsePoint(ev.Point); ok {
			t.setTipLocked(slot, hash, false)
			t.status = CaughtUp
			t.logger.Info().Uint64("slot", slot).Msg("Caught up")
		}
	case EventSyncingNewTip:
		if slot, hash, ok := parsePoint(ev.Point); ok {
			t.setTipLocked(slot, hash, true)
			t.logger.Debug().Uint64("slot", slot).Msg("Syncing")
		}
	default:
		if slot, hash, ok := parseForward(name); ok {
			t.setTipLocked(slot, hash, true)
			if slot%1000 == 0 {
				t.logger.Info().Uint64("slot", slot).Str("hash", shortHash(hash)).Msg("Syncing")
			}
		}
	}
}

func (t *Tracker) setTipLocked(slot uint64, hash string, syncing bool) {
	t.tip = &bridge.Tip{
		Slot:        slot,
		BlockHash:   hash,
		BlockNumber: slot / SlotsPerBlock,
		Epoch:       slot / SlotsPerEpoch,
		IsSyncing:   syncing,
	}
}

// Report returns the current status report. Before any tip is known the
// report carries slot 0 and the "pending" hash.
func (t *Tracker) Report() bridge.RawStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.tip == nil {
		return bridge.RawStatus{
			Status:    t.status.String(),
			BlockHash: PendingHash,
			IsSyncing: true,
		}
	}
	return bridge.RawStatus{
		Status:      t.status.String(),
		Slot:        t.tip.Slot,
		BlockHash:   t.tip.BlockHash,
		BlockNumber: t.tip.BlockNumber,
		Epoch:       t.tip.Epoch,
		IsSyncing:   t.tip.IsSyncing,
	}
}

// ReportJSON returns Report encoded the way the node reports it.
func (t *Tracker) ReportJSON() string {
	data, err := json.Marshal(t.Report())
	if err != nil {
		return ""
	}
	return string(data)
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
