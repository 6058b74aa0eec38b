package monitor

import (
	"fmt"

	"github.com/Klingon-tech/tipwatch/internal/bridge"
)

// Kind identifies one of the four published node states.
type Kind int

const (
	// KindIdle means no poll has completed yet.
	KindIdle Kind = iota
	// KindBootstrapping means the node is alive but not usable yet.
	KindBootstrapping
	// KindReady means the node reported a meaningful chain position.
	KindReady
	// KindFailed means a poll or lifecycle operation failed.
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindIdle:
		return "idle"
	case KindBootstrapping:
		return "bootstrapping"
	case KindReady:
		return "ready"
	case KindFailed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Progress and failure messages shown to observers.
const (
	MsgStarting             = "Starting node..."
	MsgPreparingLedger      = "Preparing ledger..."
	MsgDownloadingSnapshots = "Downloading snapshots..."
	MsgImportingData        = "Importing blockchain data..."
	MsgConnectingPeers      = "Connecting to peers..."

	pollErrorPrefix = "Polling error: "
)

// NodeState is the reconciled state published to observers. It is a plain
// value: Message is set for Bootstrapping and Failed, Tip for Ready.
type NodeState struct {
	Kind    Kind
	Message string
	Tip     bridge.Tip
}

// Idle returns the state published before any poll has completed.
func Idle() NodeState {
	return NodeState{Kind: KindIdle}
}

// Bootstrapping returns a bootstrapping state with a progress message.
func Bootstrapping(message string) NodeState {
	return NodeState{Kind: KindBootstrapping, Message: message}
}

// Ready returns a ready state carrying tip.
func Ready(tip bridge.Tip) NodeState {
	return NodeState{Kind: KindReady, Tip: tip}
}

// Failed returns a failed state with a human-readable message.
func Failed(message string) NodeState {
	return NodeState{Kind: KindFailed, Message: message}
}

func (s NodeState) String() string {
	switch s.Kind {
	case KindIdle:
		return "Idle"
	case KindReady:
		return fmt.Sprintf("Ready(slot=%d block=%d epoch=%d)", s.Tip.Slot, s.Tip.BlockNumber, s.Tip.Epoch)
	case KindBootstrapping:
		return fmt.Sprintf("Bootstrapping(%s)", s.Message)
	default:
		return fmt.Sprintf("Failed(%s)", s.Message)
	}
}
