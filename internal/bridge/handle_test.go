package bridge

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const caughtUpReport = `{"status":"CaughtUp","slot":12345,"epoch":5,"blockHash":"abc","blockNumber":99,"isSyncing":false}`

// fakeNative is a scriptable Native.
type fakeNative struct {
	mu     sync.Mutex
	code   int64
	report string
	inits  int
	starts int
	stops  int

	startGate  chan struct{} // Start blocks until closed when non-nil
	statusGate chan struct{} // GetStatus blocks until closed when non-nil
	inStatus   chan struct{} // signalled when GetStatus is entered
}

func (f *fakeNative) InitLogging() {
	f.mu.Lock()
	f.inits++
	f.mu.Unlock()
}

func (f *fakeNative) Start(network, dataDir string) int64 {
	f.mu.Lock()
	f.starts++
	gate := f.startGate
	code := f.code
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return code
}

func (f *fakeNative) GetStatus() string {
	f.mu.Lock()
	gate, entered, report := f.statusGate, f.inStatus, f.report
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return report
}

func (f *fakeNative) Stop() {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
}

func (f *fakeNative) counts() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

func TestDecodeStatus(t *testing.T) {
	raw, err := DecodeStatus(caughtUpReport)
	require.NoError(t, err)
	assert.Equal(t, &RawStatus{
		Slot:        12345,
		BlockHash:   "abc",
		BlockNumber: 99,
		Epoch:       5,
		IsSyncing:   false,
		Status:      "CaughtUp",
	}, raw)
	assert.Equal(t, Tip{Slot: 12345, BlockHash: "abc", BlockNumber: 99, Epoch: 5}, raw.Tip())
}

func TestDecodeStatus_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		report string
	}{
		{"empty", ""},
		{"whitespace", "  \n"},
		{"not json", "status: CaughtUp"},
		{"missing status", `{"slot":1,"epoch":0,"blockHash":"a","blockNumber":0,"isSyncing":true}`},
		{"missing slot", `{"status":"Syncing","epoch":0,"blockHash":"a","blockNumber":0,"isSyncing":true}`},
		{"null hash", `{"status":"Syncing","slot":1,"epoch":0,"blockHash":null,"blockNumber":0,"isSyncing":true}`},
		{"slot as string", `{"status":"Syncing","slot":"1","epoch":0,"blockHash":"a","blockNumber":0,"isSyncing":true}`},
		{"negative slot", `{"status":"Syncing","slot":-1,"epoch":0,"blockHash":"a","blockNumber":0,"isSyncing":true}`},
		{"syncing as number", `{"status":"Syncing","slot":1,"epoch":0,"blockHash":"a","blockNumber":0,"isSyncing":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeStatus(tt.report)
			var malformed *MalformedError
			require.ErrorAs(t, err, &malformed)
			assert.NotEmpty(t, malformed.Detail)
		})
	}
}

func TestDecodeStatus_UnknownLabelAccepted(t *testing.T) {
	raw, err := DecodeStatus(`{"status":"Rolling back","slot":7,"epoch":0,"blockHash":"h","blockNumber":0,"isSyncing":true,"extra":1}`)
	require.NoError(t, err)
	assert.Equal(t, "Rolling back", raw.Status)
}

func TestStartError_Messages(t *testing.T) {
	tests := []struct {
		code  int64
		msg   string
		known bool
	}{
		{CodeInvalidNetworkArg, "Failed to get network name", true},
		{CodeInvalidDataDirArg, "Failed to get data directory", true},
		{CodeUnsupportedNetwork, "Invalid network name", true},
		{CodeRuntimeInitFailure, "Failed to create runtime", true},
		{-6, "Unknown error: -6", false},
		{7, "Unknown error: 7", false},
	}
	for _, tt := range tests {
		err := &StartError{Code: tt.code}
		assert.Equal(t, tt.msg, err.Error())
		assert.Equal(t, tt.known, err.Known(), "code %d", tt.code)
	}
	assert.ErrorIs(t, &StartError{Code: -3}, ErrUnsupportedNetwork)
	assert.NotErrorIs(t, &StartError{Code: -3}, ErrInvalidNetworkArg)
}

func TestHandle_InitLoggingOnce(t *testing.T) {
	a, b := &fakeNative{}, &fakeNative{}
	New(a)
	New(b)
	assert.LessOrEqual(t, a.inits+b.inits, 1)
}

func TestHandle_StartCodes(t *testing.T) {
	tests := []struct {
		code int64
		want error
	}{
		{CodeInvalidNetworkArg, ErrInvalidNetworkArg},
		{CodeInvalidDataDirArg, ErrInvalidDataDirArg},
		{CodeUnsupportedNetwork, ErrUnsupportedNetwork},
		{CodeRuntimeInitFailure, ErrRuntimeInitFailure},
		{-42, &StartError{Code: -42}},
	}
	for _, tt := range tests {
		native := &fakeNative{code: tt.code}
		h := New(native)
		err := h.Start("preprod", t.TempDir())
		assert.ErrorIs(t, err, tt.want)
		assert.False(t, h.Running())
	}
}

func TestHandle_StartRejectsBadArgs(t *testing.T) {
	native := &fakeNative{}
	h := New(native)

	assert.ErrorIs(t, h.Start("", t.TempDir()), ErrInvalidNetworkArg)
	assert.ErrorIs(t, h.Start("preprod", ""), ErrInvalidDataDirArg)
	assert.ErrorIs(t, h.Start("preprod", "/nonexistent/tipwatch"), ErrInvalidDataDirArg)

	starts, _ := native.counts()
	assert.Zero(t, starts, "native start must not be reached")
}

func TestHandle_StartInFlight(t *testing.T) {
	native := &fakeNative{startGate: make(chan struct{})}
	h := New(native)
	dir := t.TempDir()

	done := make(chan error, 1)
	go func() { done <- h.Start("preprod", dir) }()

	require.Eventually(t, func() bool {
		starts, _ := native.counts()
		return starts == 1
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, h.Start("preprod", dir), ErrStartInFlight)

	close(native.startGate)
	require.NoError(t, <-done)
	assert.True(t, h.Running())
}

func TestHandle_Status(t *testing.T) {
	native := &fakeNative{report: caughtUpReport}
	h := New(native)

	_, err := h.Status()
	assert.ErrorIs(t, err, ErrUnavailable)

	require.NoError(t, h.Start("preprod", t.TempDir()))
	raw, err := h.Status()
	require.NoError(t, err)
	assert.Equal(t, uint64(12345), raw.Slot)

	h.Stop()
	_, err = h.Status()
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHandle_StatusMalformed(t *testing.T) {
	native := &fakeNative{report: `{"slot":1}`}
	h := New(native)
	require.NoError(t, h.Start("preprod", t.TempDir()))

	_, err := h.Status()
	var malformed *MalformedError
	require.True(t, errors.As(err, &malformed))
	assert.Contains(t, malformed.Detail, "status")
}

func TestHandle_StopIdempotent(t *testing.T) {
	native := &fakeNative{}
	h := New(native)

	h.Stop()
	require.NoError(t, h.Start("preprod", t.TempDir()))
	h.Stop()
	h.Stop()

	_, stops := native.counts()
	assert.Equal(t, 1, stops)
	assert.False(t, h.Running())
}

func TestHandle_StopWaitsForInFlightStatus(t *testing.T) {
	native := &fakeNative{
		report:     caughtUpReport,
		statusGate: make(chan struct{}),
		inStatus:   make(chan struct{}, 1),
	}
	h := New(native)
	require.NoError(t, h.Start("preprod", t.TempDir()))

	statusDone := make(chan error, 1)
	go func() {
		_, err := h.Status()
		statusDone <- err
	}()
	<-native.inStatus

	stopDone := make(chan struct{})
	go func() {
		h.Stop()
		close(stopDone)
	}()

	select {
	case <-stopDone:
		t.Fatal("Stop returned while a status report was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(native.statusGate)
	require.NoError(t, <-statusDone)
	<-stopDone

	_, stops := native.counts()
	assert.Equal(t, 1, stops)
}

// remoteNative is a fakeNative hosted "elsewhere".
type remoteNative struct {
	*fakeNative
}

func (remoteNative) Endpoint() string { return "http://127.0.0.1:9900/" }

func TestHandle_RemoteDataDirNotCheckedLocally(t *testing.T) {
	native := &fakeNative{}
	h := New(remoteNative{native})

	require.NoError(t, h.Start("preprod", "/srv/remote-node/data"))
	starts, _ := native.counts()
	assert.Equal(t, 1, starts)
	assert.True(t, h.Running())

	// The remote node still validates the path itself.
	h.Stop()
	native.mu.Lock()
	native.code = CodeInvalidDataDirArg
	native.mu.Unlock()
	assert.ErrorIs(t, h.Start("preprod", ""), ErrInvalidDataDirArg)
}

// exitingNative is a fakeNative that can stop on its own.
type exitingNative struct {
	*fakeNative
	mu    sync.Mutex
	alive bool
}

func (e *exitingNative) Start(network, dataDir string) int64 {
	e.mu.Lock()
	e.alive = true
	e.mu.Unlock()
	return e.fakeNative.Start(network, dataDir)
}

func (e *exitingNative) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.alive
}

func (e *exitingNative) exit() {
	e.mu.Lock()
	e.alive = false
	e.mu.Unlock()
}

func TestHandle_StatusAfterNodeExited(t *testing.T) {
	native := &exitingNative{fakeNative: &fakeNative{report: caughtUpReport}}
	h := New(native)
	require.NoError(t, h.Start("preprod", t.TempDir()))

	_, err := h.Status()
	require.NoError(t, err)

	native.exit()
	_, err = h.Status()
	assert.ErrorIs(t, err, ErrUnavailable)

	h.Stop()
	_, stops := native.counts()
	assert.Equal(t, 1, stops)
}
