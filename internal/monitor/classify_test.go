package monitor

import (
	"fmt"
	"testing"

	"github.com/Klingon-tech/tipwatch/internal/bridge"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tip := bridge.Tip{Slot: 12345, BlockHash: "abc", BlockNumber: 99, Epoch: 5}

	tests := []struct {
		name string
		raw  bridge.RawStatus
		want NodeState
	}{
		{"bootstrapping", bridge.RawStatus{Status: "Bootstrapping"}, Bootstrapping(MsgPreparingLedger)},
		{"bootstrapping with slot", bridge.RawStatus{Status: "Bootstrapping", Slot: 500}, Bootstrapping(MsgPreparingLedger)},
		{"downloading", bridge.RawStatus{Status: "DownloadingSnapshots", Slot: 9}, Bootstrapping(MsgDownloadingSnapshots)},
		{"importing", bridge.RawStatus{Status: "ImportingSnapshots"}, Bootstrapping(MsgImportingData)},
		{"syncing at genesis", bridge.RawStatus{Status: "Syncing", IsSyncing: true}, Bootstrapping(MsgConnectingPeers)},
		{"caught up at genesis", bridge.RawStatus{Status: "CaughtUp"}, Bootstrapping(MsgConnectingPeers)},
		{
			"caught up",
			bridge.RawStatus{Status: "CaughtUp", Slot: 12345, BlockHash: "abc", BlockNumber: 99, Epoch: 5},
			Ready(tip),
		},
		{
			"syncing keeps flag",
			bridge.RawStatus{Status: "Syncing", Slot: 12345, BlockHash: "abc", BlockNumber: 99, Epoch: 5, IsSyncing: true},
			Ready(bridge.Tip{Slot: 12345, BlockHash: "abc", BlockNumber: 99, Epoch: 5, IsSyncing: true}),
		},
		{"unknown label at genesis", bridge.RawStatus{Status: "Rolling back"}, Bootstrapping(MsgStarting)},
		{
			"unknown label with slot",
			bridge.RawStatus{Status: "Rolling back", Slot: 12345, BlockHash: "abc", BlockNumber: 99, Epoch: 5},
			Ready(tip),
		},
		{"empty label", bridge.RawStatus{}, Bootstrapping(MsgStarting)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := tt.raw
			assert.Equal(t, tt.want, Classify(&raw))
		})
	}
}

func TestClassify_NeverReadyAtSlotZero(t *testing.T) {
	labels := []string{
		"Bootstrapping", "DownloadingSnapshots", "ImportingSnapshots",
		"Syncing", "CaughtUp", "", "caughtup", "Stopped", "Rolling back",
	}
	for _, label := range labels {
		got := Classify(&bridge.RawStatus{Status: label, BlockHash: "pending", IsSyncing: true})
		assert.NotEqual(t, KindReady, got.Kind, "label %q", label)
		assert.NotEqual(t, KindFailed, got.Kind, "label %q", label)
	}
}

func TestClassify_ReadyCarriesReportedTip(t *testing.T) {
	for slot := uint64(1); slot < 2_000_000; slot = slot*3 + 7 {
		raw := &bridge.RawStatus{
			Status:      "Syncing",
			Slot:        slot,
			BlockHash:   fmt.Sprintf("h%d", slot),
			BlockNumber: slot / 20,
			Epoch:       slot / 432000,
			IsSyncing:   true,
		}
		got := Classify(raw)
		if assert.Equal(t, KindReady, got.Kind) {
			assert.Equal(t, raw.Tip(), got.Tip)
		}
	}
}

func TestNodeState_String(t *testing.T) {
	assert.Equal(t, "Idle", Idle().String())
	assert.Equal(t, "Bootstrapping(Starting node...)", Bootstrapping(MsgStarting).String())
	assert.Equal(t, "Failed(Invalid network name)", Failed("Invalid network name").String())
	assert.Equal(t, "Ready(slot=12345 block=99 epoch=5)", Ready(bridge.Tip{Slot: 12345, BlockNumber: 99, Epoch: 5}).String())
	assert.Equal(t, "ready", KindReady.String())
}
