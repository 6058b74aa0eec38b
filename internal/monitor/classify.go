package monitor

import "github.com/Klingon-tech/tipwatch/internal/bridge"

// Classify maps a raw status report to the state shown to observers.
//
// The node's status labels are an open set. Labels that aren't listed fall
// through to the same slot-based split as Syncing/CaughtUp, so a report
// with slot 0 is never Ready.
func Classify(raw *bridge.RawStatus) NodeState {
	switch raw.Status {
	case "Bootstrapping":
		return Bootstrapping(MsgPreparingLedger)
	case "DownloadingSnapshots":
		return Bootstrapping(MsgDownloadingSnapshots)
	case "ImportingSnapshots":
		return Bootstrapping(MsgImportingData)
	case "Syncing", "CaughtUp":
		if raw.Slot > 0 {
			return Ready(raw.Tip())
		}
		return Bootstrapping(MsgConnectingPeers)
	default:
		if raw.Slot > 0 {
			return Ready(raw.Tip())
		}
		return Bootstrapping(MsgStarting)
	}
}
