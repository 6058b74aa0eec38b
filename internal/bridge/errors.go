package bridge

import (
	"errors"
	"fmt"
)

// Start result codes returned by the external node. This table is version 1
// of the contract with the node's native interface; any code outside it is
// reported as unknown.
const (
	CodeOK                 int64 = 0
	CodeInvalidNetworkArg  int64 = -1
	CodeInvalidDataDirArg  int64 = -2
	CodeUnsupportedNetwork int64 = -3
	CodeRuntimeInitFailure int64 = -4
)

// StartError is a non-zero start result code from the external node.
type StartError struct {
	Code int64
}

// Start errors with a known meaning. Compare with errors.Is.
var (
	ErrInvalidNetworkArg  = &StartError{Code: CodeInvalidNetworkArg}
	ErrInvalidDataDirArg  = &StartError{Code: CodeInvalidDataDirArg}
	ErrUnsupportedNetwork = &StartError{Code: CodeUnsupportedNetwork}
	ErrRuntimeInitFailure = &StartError{Code: CodeRuntimeInitFailure}
)

// ErrStartInFlight is returned when Start is called while another Start on
// the same handle has not returned yet.
var ErrStartInFlight = errors.New("node start already in flight")

// ErrUnavailable is the poll error returned when no node is running.
var ErrUnavailable = errors.New("node is not running")

// Error returns the user-facing message for the code.
func (e *StartError) Error() string {
	switch e.Code {
	case CodeInvalidNetworkArg:
		return "Failed to get network name"
	case CodeInvalidDataDirArg:
		return "Failed to get data directory"
	case CodeUnsupportedNetwork:
		return "Invalid network name"
	case CodeRuntimeInitFailure:
		return "Failed to create runtime"
	default:
		return fmt.Sprintf("Unknown error: %d", e.Code)
	}
}

// Known reports whether the code is part of the contract table.
func (e *StartError) Known() bool {
	return e.Code <= CodeInvalidNetworkArg && e.Code >= CodeRuntimeInitFailure
}

// Is matches start errors by code.
func (e *StartError) Is(target error) bool {
	t, ok := target.(*StartError)
	return ok && t.Code == e.Code
}

// startErrorFromCode maps a native result code to an error (nil for success).
func startErrorFromCode(code int64) *StartError {
	if code == CodeOK {
		return nil
	}
	return &StartError{Code: code}
}

// MalformedError is the poll error returned when a status report cannot be
// decoded into a RawStatus.
type MalformedError struct {
	Detail string
}

func (e *MalformedError) Error() string {
	return e.Detail
}
