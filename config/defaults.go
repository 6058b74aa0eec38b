package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultPreprod returns the default configuration. Preprod is the network
// the daemon starts on when none is given.
func DefaultPreprod() *Config {
	return &Config{
		Network: Preprod,
		DataDir: DefaultDataDir(),
		Node: NodeConfig{
			Backend: BackendSim,
			Timeout: 10 * time.Second,
		},
		Monitor: MonitorConfig{
			Interval:  time.Second,
			AutoStart: true,
		},
		Sim: SimConfig{
			Step:   200 * time.Millisecond,
			Slots:  20,
			Target: 2000,
		},
		RPC: RPCConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       defaultRPCPort(Preprod),
			AllowedIPs: []string{"127.0.0.1"},
			StartRate:  30,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	cfg := DefaultPreprod()
	switch network {
	case Mainnet, Preview:
		cfg.Network = network
		cfg.RPC.Port = defaultRPCPort(network)
	}
	return cfg
}

func defaultRPCPort(network NetworkType) int {
	switch network {
	case Mainnet:
		return 9545
	case Preview:
		return 9745
	default:
		return 9645
	}
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
