package main

import (
	"testing"

	"github.com/Klingon-tech/tipwatch/internal/rpc"
)

func TestStateLine(t *testing.T) {
	tests := []struct {
		name string
		res  rpc.StateResult
		want string
	}{
		{"idle", rpc.StateResult{State: "idle"}, "idle"},
		{"bootstrapping", rpc.StateResult{State: "bootstrapping", Message: "Preparing ledger..."}, "bootstrapping: Preparing ledger..."},
		{"failed", rpc.StateResult{State: "failed", Message: "Invalid network name"}, "failed: Invalid network name"},
		{"syncing", rpc.StateResult{State: "ready", Tip: &rpc.TipResult{Slot: 12345, BlockNumber: 617, IsSyncing: true}},
			"ready slot=12345 block=617 epoch=0 (syncing)"},
		{"caught up", rpc.StateResult{State: "ready", Tip: &rpc.TipResult{Slot: 864000, BlockNumber: 43200, Epoch: 2}},
			"ready slot=864000 block=43200 epoch=2 (caught up)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stateLine(&tt.res); got != tt.want {
				t.Errorf("stateLine() = %q, want %q", got, tt.want)
			}
		})
	}
}
