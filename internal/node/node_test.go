package node

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Klingon-tech/tipwatch/config"
	"github.com/Klingon-tech/tipwatch/internal/monitor"
	"github.com/Klingon-tech/tipwatch/internal/rpc"
	"github.com/Klingon-tech/tipwatch/internal/rpcclient"
	"github.com/Klingon-tech/tipwatch/internal/simnode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultPreprod()
	cfg.DataDir = t.TempDir()
	cfg.RPC.Port = 0
	cfg.Monitor.Interval = 5 * time.Millisecond
	cfg.Sim = config.SimConfig{Step: 2 * time.Millisecond, Slots: 20, Target: 200}
	cfg.Log.Level = "error"
	return cfg
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Network = "devnet"
	_, err := New(cfg)
	require.Error(t, err)
}

func TestNode_AutostartReachesReady(t *testing.T) {
	cfg := testConfig(t)
	n, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, n.Start())
	t.Cleanup(n.Stop)

	require.Eventually(t, func() bool {
		s := n.Controller().State()
		return s.Kind == monitor.KindReady && !s.Tip.IsSyncing
	}, 10*time.Second, 10*time.Millisecond)

	sess := n.Controller().Session()
	assert.Equal(t, "preprod", sess.Network)
	assert.NotEmpty(t, sess.ID)
	assert.DirExists(t, cfg.NodeDataDir()+"/preprod/ledger.db")

	// The same state is visible over RPC.
	require.NotEmpty(t, n.RPCAddr())
	client := rpcclient.New("http://" + n.RPCAddr() + "/")
	var res rpc.StateResult
	require.NoError(t, client.Call("monitor_getState", nil, &res))
	assert.Equal(t, "ready", res.State)
	assert.True(t, res.Running)
	require.NotNil(t, res.Tip)
	assert.GreaterOrEqual(t, res.Tip.Slot, uint64(200))
}

func TestNode_StopReturnsToIdle(t *testing.T) {
	n, err := New(testConfig(t))
	require.NoError(t, err)
	require.NoError(t, n.Start())

	require.Eventually(t, func() bool {
		return n.Controller().Running()
	}, 5*time.Second, 5*time.Millisecond)

	n.Stop()
	assert.Equal(t, monitor.Idle(), n.Controller().State())
	assert.False(t, n.Controller().Running())
	assert.Equal(t, monitor.PhaseStopped, n.Controller().Phase())
}

func TestNode_StopRightAfterStart(t *testing.T) {
	for i := 0; i < 5; i++ {
		n, err := New(testConfig(t))
		require.NoError(t, err)
		require.NoError(t, n.Start())
		n.Stop()

		sim, ok := n.native.(*simnode.Node)
		require.True(t, ok)
		assert.False(t, n.Controller().Running(), "run %d", i)
		assert.False(t, sim.Running(), "run %d", i)

		time.Sleep(20 * time.Millisecond)
		assert.False(t, n.Controller().Running(), "run %d", i)
		assert.False(t, sim.Running(), "run %d", i)
		assert.Equal(t, monitor.Idle(), n.Controller().State(), "run %d", i)
	}
}

func TestNode_NoAutostart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Monitor.AutoStart = false
	n, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, n.Start())
	t.Cleanup(n.Stop)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, monitor.Idle(), n.Controller().State())
	assert.Equal(t, monitor.PhaseNotStarted, n.Controller().Phase())

	// Start on demand over RPC, on another network.
	client := rpcclient.New("http://" + n.RPCAddr() + "/")
	var res rpc.StateResult
	require.NoError(t, client.Call("monitor_start", rpc.MonitorStartParam{Network: "preview"}, &res))
	assert.True(t, res.Running)
	assert.Equal(t, "preview", n.Controller().Session().Network)
}

func TestNode_RPCDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.RPC.Enabled = false
	cfg.Metrics.Enabled = false
	cfg.Monitor.AutoStart = false
	n, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(n.Stop)

	assert.Empty(t, n.RPCAddr())
	assert.Nil(t, n.Metrics())
}

func TestNode_RemoteBackendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	cfg := testConfig(t)
	cfg.Node.Backend = config.BackendRPC
	cfg.Node.Endpoint = endpoint
	cfg.Node.Timeout = 200 * time.Millisecond
	n, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, n.Start())
	t.Cleanup(n.Stop)

	require.Eventually(t, func() bool {
		return n.Controller().State().Kind == monitor.KindFailed
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, monitor.Failed("Unknown error: -100"), n.Controller().State())
	assert.False(t, n.Controller().Running())
}

func TestNode_MetricsServed(t *testing.T) {
	n, err := New(testConfig(t))
	require.NoError(t, err)
	require.NoError(t, n.Start())
	t.Cleanup(n.Stop)

	require.Eventually(t, func() bool {
		return n.Controller().State().Kind == monitor.KindReady
	}, 10*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + n.RPCAddr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
