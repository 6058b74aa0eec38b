package trace

import (
	"fmt"
	"strconv"
	"strings"
)

// Event names emitted by the node.
const (
	EventDownloadingSnapshot = "Downloading snapshot"
	EventImportingSnapshots  = "Importing snapshots"
	EventImportingSnapshot   = "Importing snapshot"
	EventImportedSnapshots   = "Imported snapshots"
	EventStarting            = "starting"
	EventCaughtUpNewTip      = "track_peers.caught_up.new_tip"
	EventSyncingNewTip       = "track_peers.syncing.new_tip"
)

// Point is a chain position as carried by the "starting" event.
type Point struct {
	Slot uint64 `json:"slot"`
	Hash string `json:"hash"`
}

// Event is one JSON trace line. Point is "slot.hash" for the track_peers
// events. Forward chain events carry their header in Name.
type Event struct {
	Name  string `json:"name"`
	Point string `json:"point,omitempty"`
	Tip   *Point `json:"tip,omitempty"`
}

// PointString formats a point for the track_peers events.
func PointString(slot uint64, hash string) string {
	return strconv.FormatUint(slot, 10) + "." + hash
}

// ForwardEventName builds the name of a forward_chain event for a header.
func ForwardEventName(slot uint64, hash string) string {
	return fmt.Sprintf(`diffusion.forward_chain: Forward(BlockHeader { hash: %q, slot: %d })`, hash, slot)
}

// parsePoint splits "slot.hash". The hash is empty when missing.
func parsePoint(point string) (uint64, string, bool) {
	slotPart, hash, _ := strings.Cut(point, ".")
	slot, err := strconv.ParseUint(slotPart, 10, 64)
	if err != nil {
		return 0, "", false
	}
	if i := strings.IndexByte(hash, '.'); i >= 0 {
		hash = hash[:i]
	}
	return slot, hash, true
}

// parseForward extracts slot and hash from a forward_chain event name.
func parseForward(name string) (uint64, string, bool) {
	if !strings.Contains(name, "forward_chain") || !strings.Contains(name, "Forward(BlockHeader") {
		return 0, "", false
	}
	idx := strings.Index(name, "slot: ")
	if idx < 0 {
		return 0, "", false
	}
	digits := name[idx+len("slot: "):]
	end := strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' })
	if end >= 0 {
		digits = digits[:end]
	}
	slot, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, "", false
	}

	var hash string
	if h := strings.Index(name, `hash: "`); h >= 0 {
		rest := name[h+len(`hash: "`):]
		if q := strings.IndexByte(rest, '"'); q >= 0 {
			hash = rest[:q]
		}
	}
	return slot, hash, true
}

// verbose reports whether events with this name are too frequent to log at
// info level.
func verbose(name string) bool {
	for _, s := range []string{"checkout", "pooling", "idle", "forward_chain", "chain_sync", "diffusion", "consensus.store"} {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}
