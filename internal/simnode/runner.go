package simnode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	klog "github.com/Klingon-tech/tipwatch/internal/log"
	"github.com/Klingon-tech/tipwatch/internal/trace"
	"github.com/rs/zerolog"
)

// syncingTipEvery controls how often a syncing tip is announced through
// track_peers rather than a forward_chain header.
const syncingTipEvery = 10

// runner drives one node session.
type runner struct {
	cfg       Config
	network   string
	ledgerDir string
	store     *chainStore
	tracker   *trace.Tracker
	collector *trace.Collector
	logger    zerolog.Logger
}

func (r *runner) run(ctx context.Context) error {
	bootstrapped, err := r.bootstrap(ctx)
	if err != nil {
		return err
	}
	if !bootstrapped {
		r.tracker.SetStatus(trace.Syncing)
	}

	slot, hash, ok, err := r.store.Tip()
	if err != nil {
		return fmt.Errorf("read tip: %w", err)
	}
	if ok {
		r.collector.Emit(trace.Event{Name: trace.EventStarting, Tip: &trace.Point{Slot: slot, Hash: hash}})
	}
	r.logger.Info().Uint64("slot", slot).Uint64("target", r.cfg.TargetSlot).Msg("Starting chain sync")

	steps := 0
	for {
		if !r.wait(ctx) {
			return nil
		}
		steps++
		slot += r.cfg.SlotsPerStep
		hash = nextHash(hash, slot)
		if err := r.store.Append(slot, hash); err != nil {
			return fmt.Errorf("append header at slot %d: %w", slot, err)
		}

		switch {
		case slot >= r.cfg.TargetSlot:
			r.collector.Emit(trace.Event{Name: trace.EventCaughtUpNewTip, Point: trace.PointString(slot, hash)})
		case steps%syncingTipEvery == 0:
			r.collector.Emit(trace.Event{Name: trace.EventSyncingNewTip, Point: trace.PointString(slot, hash)})
		default:
			r.collector.Emit(trace.Event{Name: trace.ForwardEventName(slot, hash)})
		}
	}
}

// bootstrap imports the ledger snapshot unless one is already present. It
// reports whether an import took place.
func (r *runner) bootstrap(ctx context.Context) (bool, error) {
	marker := filepath.Join(r.ledgerDir, ledgerMarker)
	if _, err := os.Stat(marker); err == nil {
		r.logger.Info().Msg("Ledger already exists, skipping bootstrap")
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("check ledger marker: %w", err)
	}

	done := klog.Benchmark("bootstrap " + r.network)
	defer done()

	r.logger.Info().Msg("Bootstrapping ledger from snapshots")
	r.collector.Emit(trace.Event{Name: trace.EventDownloadingSnapshot})
	if !r.wait(ctx) {
		return false, ctx.Err()
	}
	r.collector.Emit(trace.Event{Name: trace.EventImportingSnapshots})
	if !r.wait(ctx) {
		return false, ctx.Err()
	}

	hash := nextHash(r.network, r.cfg.SnapshotSlot)
	if err := r.store.Append(r.cfg.SnapshotSlot, hash); err != nil {
		return false, fmt.Errorf("store snapshot tip: %w", err)
	}
	if err := os.WriteFile(marker, []byte(hash+"\n"), 0644); err != nil {
		return false, fmt.Errorf("write ledger marker: %w", err)
	}
	r.collector.Emit(trace.Event{Name: trace.EventImportedSnapshots})
	r.logger.Info().Uint64("slot", r.cfg.SnapshotSlot).Msg("Bootstrap complete")
	return true, nil
}

// wait sleeps one step. It returns false when ctx is cancelled.
func (r *runner) wait(ctx context.Context) bool {
	t := time.NewTimer(r.cfg.StepInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
