package trace

import (
	"context"
	"testing"
	"time"

	"github.com/Klingon-tech/tipwatch/internal/bridge"
)

func TestTracker_PendingReport(t *testing.T) {
	tr := NewTracker()
	got := tr.Report()
	want := bridge.RawStatus{Status: "NotStarted", BlockHash: "pending", IsSyncing: true}
	if got != want {
		t.Fatalf("Report() = %+v, want %+v", got, want)
	}

	raw, err := bridge.DecodeStatus(tr.ReportJSON())
	if err != nil {
		t.Fatalf("DecodeStatus(ReportJSON()): %v", err)
	}
	if *raw != want {
		t.Errorf("decoded = %+v, want %+v", *raw, want)
	}
}

func TestTracker_BootstrapEvents(t *testing.T) {
	tests := []struct {
		name string
		want SyncStatus
	}{
		{EventDownloadingSnapshot, DownloadingSnapshots},
		{EventImportingSnapshots, ImportingSnapshots},
		{EventImportingSnapshot, ImportingSnapshots},
		{EventImportedSnapshots, Syncing},
	}
	for _, tt := range tests {
		tr := NewTracker()
		tr.SetStatus(Bootstrapping)
		tr.ApplyEvent(Event{Name: tt.name})
		if got := tr.Status(); got != tt.want {
			t.Errorf("%q: status = %v, want %v", tt.name, got, tt.want)
		}
		if tr.Tip() != nil {
			t.Errorf("%q: unexpected tip", tt.name)
		}
	}
}

func TestTracker_StartingTip(t *testing.T) {
	tr := NewTracker()
	tr.SetStatus(Syncing)
	tr.ApplyEvent(Event{Name: EventStarting, Tip: &Point{Slot: 864000, Hash: "aa"}})

	got := tr.Report()
	want := bridge.RawStatus{
		Status: "Syncing", Slot: 864000, BlockHash: "aa",
		BlockNumber: 43200, Epoch: 2, IsSyncing: true,
	}
	if got != want {
		t.Errorf("Report() = %+v, want %+v", got, want)
	}

	// A starting event without a tip changes nothing.
	tr.ApplyEvent(Event{Name: EventStarting})
	if tr.Tip().Slot != 864000 {
		t.Errorf("tip slot changed to %d", tr.Tip().Slot)
	}
}

func TestTracker_TrackPeers(t *testing.T) {
	tr := NewTracker()
	tr.SetStatus(Syncing)

	tr.ApplyEvent(Event{Name: EventSyncingNewTip, Point: PointString(100, "bb")})
	tip := tr.Tip()
	if tip == nil || tip.Slot != 100 || tip.BlockHash != "bb" || !tip.IsSyncing || tip.BlockNumber != 5 {
		t.Fatalf("syncing tip = %+v", tip)
	}
	if tr.Status() != Syncing {
		t.Errorf("status = %v, want Syncing", tr.Status())
	}

	tr.ApplyEvent(Event{Name: EventCaughtUpNewTip, Point: PointString(12345, "cc")})
	tip = tr.Tip()
	if tip.Slot != 12345 || tip.BlockHash != "cc" || tip.IsSyncing {
		t.Fatalf("caught up tip = %+v", tip)
	}
	if tr.Status() != CaughtUp {
		t.Errorf("status = %v, want CaughtUp", tr.Status())
	}

	// Unparseable points are ignored.
	tr.ApplyEvent(Event{Name: EventSyncingNewTip, Point: "x.dd"})
	tr.ApplyEvent(Event{Name: EventSyncingNewTip})
	if tr.Tip().Slot != 12345 {
		t.Errorf("bad point changed tip: %+v", tr.Tip())
	}
}

func TestTracker_ForwardChain(t *testing.T) {
	tr := NewTracker()
	name := ForwardEventName(4242, "fedc1ee5")
	tr.ApplyEvent(Event{Name: name})

	tip := tr.Tip()
	if tip == nil {
		t.Fatalf("no tip from %q", name)
	}
	if tip.Slot != 4242 || tip.BlockHash != "fedc1ee5" || !tip.IsSyncing || tip.BlockNumber != 212 {
		t.Errorf("tip = %+v", tip)
	}
}

func TestParseForward(t *testing.T) {
	tests := []struct {
		name string
		slot uint64
		hash string
		ok   bool
	}{
		{`diffusion.forward_chain: Forward(BlockHeader { hash: "ab", slot: 77, prev: None })`, 77, "ab", true},
		{`forward_chain Forward(BlockHeader { slot: 9 })`, 9, "", true},
		{`forward_chain Forward(BlockHeader { hash: "ab" })`, 0, "", false},
		{`forward_chain Backward(slot: 9)`, 0, "", false},
		{`chain_sync Forward(BlockHeader { slot: 9 })`, 0, "", false},
	}
	for _, tt := range tests {
		slot, hash, ok := parseForward(tt.name)
		if ok != tt.ok || slot != tt.slot || hash != tt.hash {
			t.Errorf("parseForward(%q) = (%d, %q, %v), want (%d, %q, %v)",
				tt.name, slot, hash, ok, tt.slot, tt.hash, tt.ok)
		}
	}
}

func TestTracker_ApplyLine(t *testing.T) {
	tr := NewTracker()
	if err := tr.Apply([]byte(`{"name":"track_peers.caught_up.new_tip","point":"20.h"}`)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if tr.Status() != CaughtUp || tr.Tip().BlockNumber != 1 {
		t.Errorf("status %v tip %+v", tr.Status(), tr.Tip())
	}
	if err := tr.Apply([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid line")
	}
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker()
	tr.ApplyEvent(Event{Name: EventCaughtUpNewTip, Point: "5.x"})
	tr.Reset()
	if tr.Status() != NotStarted || tr.Tip() != nil {
		t.Errorf("after Reset: status %v tip %+v", tr.Status(), tr.Tip())
	}
}

func TestCollector_FlushOrder(t *testing.T) {
	c := NewCollector()
	c.Emit(Event{Name: EventDownloadingSnapshot})
	c.Emit(Event{Name: EventImportedSnapshots})
	c.EmitLine([]byte(`{bad`))

	lines := c.Flush()
	if len(lines) != 3 {
		t.Fatalf("flushed %d lines, want 3", len(lines))
	}
	if len(c.Flush()) != 0 {
		t.Error("second flush not empty")
	}

	tr := NewTracker()
	for _, l := range lines {
		_ = tr.Apply(l)
	}
	if tr.Status() != Syncing {
		t.Errorf("status = %v, want Syncing", tr.Status())
	}
}

func TestCollector_Run(t *testing.T) {
	c := NewCollector()
	tr := NewTracker()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, 5*time.Millisecond, tr)
		close(done)
	}()

	c.Emit(Event{Name: EventSyncingNewTip, Point: "40.h"})
	deadline := time.Now().Add(2 * time.Second)
	for tr.Tip() == nil {
		if time.Now().After(deadline) {
			t.Fatal("collector never drained")
		}
		time.Sleep(time.Millisecond)
	}

	c.Emit(Event{Name: EventCaughtUpNewTip, Point: "60.h"})
	cancel()
	<-done
	if tr.Tip().Slot != 60 {
		t.Errorf("final drain missed: tip %+v", tr.Tip())
	}
}

func TestSyncStatus_String(t *testing.T) {
	if CaughtUp.String() != "CaughtUp" || NotStarted.String() != "NotStarted" {
		t.Error("unexpected labels")
	}
	if SyncStatus(42).String() != "SyncStatus(42)" {
		t.Errorf("unknown = %q", SyncStatus(42).String())
	}
}
