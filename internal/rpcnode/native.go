// Package rpcnode drives a node hosted in another process through its
// node_* JSON-RPC endpoints.
package rpcnode

import (
	"context"
	"time"

	klog "github.com/Klingon-tech/tipwatch/internal/log"
	"github.com/Klingon-tech/tipwatch/internal/rpc"
	"github.com/Klingon-tech/tipwatch/internal/rpcclient"
	"github.com/rs/zerolog"
)

// CodeTransportFailure is returned by Start when the remote node could not
// be reached. It is outside the node's own result code table.
const CodeTransportFailure int64 = -100

// Native is a bridge.Native backed by a remote node.
type Native struct {
	client  *rpcclient.Client
	timeout time.Duration
	logger  zerolog.Logger
}

// New creates a remote node client for endpoint. Every call is bounded by
// timeout (rpcclient.DefaultTimeout if zero).
func New(endpoint string, timeout time.Duration) *Native {
	if timeout <= 0 {
		timeout = rpcclient.DefaultTimeout
	}
	client := rpcclient.NewWithTimeout(endpoint, timeout)
	return &Native{
		client:  client,
		timeout: timeout,
		logger:  klog.WithComponent("rpcnode").With().Str("endpoint", client.Endpoint()).Logger(),
	}
}

// Endpoint returns the remote node's RPC URL.
func (n *Native) Endpoint() string {
	return n.client.Endpoint()
}

// InitLogging only logs locally. The remote node owns its own logging.
func (n *Native) InitLogging() {
	n.logger.Info().Dur("timeout", n.timeout).Msg("Using remote node backend")
}

// Start asks the remote node to start and returns its result code.
func (n *Native) Start(network, dataDir string) int64 {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	var res rpc.NodeStartResult
	err := n.client.CallContext(ctx, "node_start", rpc.NodeStartParam{
		Network: network,
		DataDir: dataDir,
	}, &res)
	if err != nil {
		n.logger.Error().Err(err).Str("network", network).Msg("node_start failed")
		return CodeTransportFailure
	}
	return res.Code
}

// GetStatus returns the remote report verbatim, or "" when the node could
// not be reached. The bridge reports an empty report as malformed.
func (n *Native) GetStatus() string {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	var res rpc.NodeStatusResult
	if err := n.client.CallContext(ctx, "node_getStatus", nil, &res); err != nil {
		n.logger.Warn().Err(err).Msg("node_getStatus failed")
		return ""
	}
	return res.Report
}

// Stop asks the remote node to stop. Failures are logged only.
func (n *Native) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := n.client.CallContext(ctx, "node_stop", nil, nil); err != nil {
		n.logger.Warn().Err(err).Msg("node_stop failed")
	}
}
