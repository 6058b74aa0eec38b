package rpc

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000

	// CodeStartFailed carries a node start failure. Data holds the node's
	// result code when it reported one.
	CodeStartFailed = -32001
	// CodeConflict is returned when a lifecycle request collides with one
	// already in flight.
	CodeConflict = -32002
	// CodeRateLimited is returned when start requests exceed rpc.startrate.
	CodeRateLimited = -32005
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// MonitorStartParam is used by monitor_start.
type MonitorStartParam struct {
	Network string `json:"network"`
}

// NodeStartParam is used by node_start.
type NodeStartParam struct {
	Network string `json:"network"`
	DataDir string `json:"dataDir"`
}

// ── Monitor result types ────────────────────────────────────────────────

// TipResult is a ready node's chain position.
type TipResult struct {
	Slot        uint64 `json:"slot"`
	BlockHash   string `json:"blockHash"`
	BlockNumber uint64 `json:"blockNumber"`
	Epoch       uint64 `json:"epoch"`
	IsSyncing   bool   `json:"isSyncing"`
}

// SessionResult describes the running node session.
type SessionResult struct {
	ID        string `json:"id"`
	Network   string `json:"network"`
	StartedAt int64  `json:"startedAt"` // unix seconds
}

// StateResult is returned by monitor_getState, monitor_start and
// monitor_stop.
type StateResult struct {
	State   string         `json:"state"` // idle, bootstrapping, ready, failed
	Message string         `json:"message,omitempty"`
	Tip     *TipResult     `json:"tip,omitempty"`
	Running bool           `json:"running"`
	Phase   string         `json:"phase"`
	Session *SessionResult `json:"session,omitempty"`
}

// ── Node result types ───────────────────────────────────────────────────

// NodeStartResult carries the node's raw start result code.
type NodeStartResult struct {
	Code int64 `json:"code"`
}

// NodeStatusResult carries the node's status report verbatim.
type NodeStatusResult struct {
	Report string `json:"report"`
}
