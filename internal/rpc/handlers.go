package rpc

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/tipwatch/internal/bridge"
	"github.com/Klingon-tech/tipwatch/internal/monitor"
)

// ── Monitor endpoints ───────────────────────────────────────────────────

func (s *Server) handleMonitorGetState(_ *Request) (interface{}, *Error) {
	if s.monitor == nil {
		return nil, &Error{Code: CodeNotFound, Message: "monitor not enabled"}
	}
	return s.stateResult(), nil
}

func (s *Server) handleMonitorStart(req *Request) (interface{}, *Error) {
	if s.monitor == nil {
		return nil, &Error{Code: CodeNotFound, Message: "monitor not enabled"}
	}

	var params MonitorStartParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Network == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "network is required"}
	}

	if err := s.monitor.RequestStart(params.Network); err != nil {
		return nil, startError(err)
	}
	return s.stateResult(), nil
}

func (s *Server) handleMonitorStop(_ *Request) (interface{}, *Error) {
	if s.monitor == nil {
		return nil, &Error{Code: CodeNotFound, Message: "monitor not enabled"}
	}
	s.monitor.RequestStop()
	return s.stateResult(), nil
}

// stateResult snapshots the monitor for an RPC response.
func (s *Server) stateResult() *StateResult {
	state := s.monitor.State()
	res := &StateResult{
		State:   state.Kind.String(),
		Message: state.Message,
		Running: s.monitor.Running(),
		Phase:   s.monitor.Phase().String(),
	}
	if state.Kind == monitor.KindReady {
		res.Tip = &TipResult{
			Slot:        state.Tip.Slot,
			BlockHash:   state.Tip.BlockHash,
			BlockNumber: state.Tip.BlockNumber,
			Epoch:       state.Tip.Epoch,
			IsSyncing:   state.Tip.IsSyncing,
		}
	}
	if sess := s.monitor.Session(); sess.ID != "" {
		res.Session = &SessionResult{
			ID:        sess.ID,
			Network:   sess.Network,
			StartedAt: sess.StartedAt.Unix(),
		}
	}
	return res
}

// startError maps a RequestStart error to an RPC error.
func startError(err error) *Error {
	var startErr *bridge.StartError
	switch {
	case errors.Is(err, monitor.ErrStartInProgress),
		errors.Is(err, monitor.ErrStartAbandoned),
		errors.Is(err, monitor.ErrClosed),
		errors.Is(err, bridge.ErrStartInFlight):
		return &Error{Code: CodeConflict, Message: err.Error()}
	case errors.As(err, &startErr):
		return &Error{Code: CodeStartFailed, Message: err.Error(), Data: startErr.Code}
	default:
		return &Error{Code: CodeStartFailed, Message: err.Error()}
	}
}

// ── Node endpoints ──────────────────────────────────────────────────────
//
// These expose a bridge.Native as-is so that a node hosted in another
// process can be driven through rpcnode.

func (s *Server) handleNodeStart(req *Request) (interface{}, *Error) {
	if s.node == nil {
		return nil, &Error{Code: CodeNotFound, Message: "node backend not enabled"}
	}

	var params NodeStartParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}

	code := s.node.Start(params.Network, params.DataDir)
	if code != 0 {
		s.logger.Warn().
			Int64("code", code).
			Str("network", params.Network).
			Msg("node_start rejected")
	}
	return &NodeStartResult{Code: code}, nil
}

func (s *Server) handleNodeGetStatus(_ *Request) (interface{}, *Error) {
	if s.node == nil {
		return nil, &Error{Code: CodeNotFound, Message: "node backend not enabled"}
	}
	return &NodeStatusResult{Report: s.node.GetStatus()}, nil
}

func (s *Server) handleNodeStop(_ *Request) (interface{}, *Error) {
	if s.node == nil {
		return nil, &Error{Code: CodeNotFound, Message: "node backend not enabled"}
	}
	s.node.Stop()
	return true, nil
}

// methodNotFound builds the error for an unknown method.
func methodNotFound(method string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", method)}
}
