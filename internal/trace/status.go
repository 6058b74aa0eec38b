// Package trace folds the external node's trace events into the status
// report read by the bridge.
package trace

import "fmt"

// Chain timing constants used to derive block number and epoch from a slot.
const (
	SlotsPerBlock = 20
	SlotsPerEpoch = 432000
)

// SyncStatus is the node's coarse sync progress.
type SyncStatus int

const (
	NotStarted SyncStatus = iota
	Bootstrapping
	DownloadingSnapshots
	ImportingSnapshots
	Syncing
	CaughtUp
)

// String returns the label carried in status reports.
func (s SyncStatus) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case Bootstrapping:
		return "Bootstrapping"
	case DownloadingSnapshots:
		return "DownloadingSnapshots"
	case ImportingSnapshots:
		return "ImportingSnapshots"
	case Syncing:
		return "Syncing"
	case CaughtUp:
		return "CaughtUp"
	default:
		return fmt.Sprintf("SyncStatus(%d)", int(s))
	}
}
