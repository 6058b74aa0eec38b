// Package config handles tipwatch configuration.
//
// Settings are layered: per-network defaults, then the key = value file in
// the data directory, then command-line flags.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType names the chain network the node joins.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Preprod NetworkType = "preprod"
	Preview NetworkType = "preview"
)

// Networks lists the supported networks.
var Networks = []NetworkType{Mainnet, Preprod, Preview}

// BackendType selects how the node is reached.
type BackendType string

const (
	// BackendSim runs the simulated node in-process.
	BackendSim BackendType = "sim"
	// BackendRPC drives a node behind a node_* JSON-RPC endpoint.
	BackendRPC BackendType = "rpc"
)

// Config holds the daemon's runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// External node
	Node NodeConfig

	// Lifecycle controller
	Monitor MonitorConfig

	// Simulated node (node.backend = sim)
	Sim SimConfig

	// RPC server
	RPC RPCConfig

	// Prometheus metrics
	Metrics MetricsConfig

	// Logging
	Log LogConfig
}

// NodeConfig selects and reaches the node backend.
type NodeConfig struct {
	Backend  BackendType   `conf:"node.backend"`
	Endpoint string        `conf:"node.endpoint"` // node_* RPC URL (rpc backend)
	Timeout  time.Duration `conf:"node.timeout"`  // per-call timeout (rpc backend)
}

// MonitorConfig holds lifecycle controller settings.
type MonitorConfig struct {
	Interval    time.Duration `conf:"monitor.interval"`
	MaxFailures int           `conf:"monitor.maxfailures"` // 0 = poll forever
	AutoStart   bool          `conf:"monitor.autostart"`
}

// SimConfig paces the simulated node.
type SimConfig struct {
	Step   time.Duration `conf:"sim.step"`
	Slots  uint64        `conf:"sim.slots"` // slots per step
	Target uint64        `conf:"sim.target"`
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"` // Allowed CORS origins ("*" = all).
	// StartRate caps monitor_start and node_start calls per minute
	// (0 = unlimited).
	StartRate float64 `conf:"rpc.startrate"`
}

// MetricsConfig controls the /metrics endpoint on the RPC server.
type MetricsConfig struct {
	Enabled bool `conf:"metrics.enabled"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.tipwatch
//	macOS:   ~/Library/Application Support/Tipwatch
//	Windows: %APPDATA%\Tipwatch
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tipwatch"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Tipwatch")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Tipwatch")
		}
		return filepath.Join(home, "AppData", "Roaming", "Tipwatch")
	default:
		return filepath.Join(home, ".tipwatch")
	}
}

// NodeDataDir is handed unchanged to the node on every start. The node keeps
// one subdirectory per network below it.
func (c *Config) NodeDataDir() string {
	return filepath.Join(c.DataDir, "node")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "tipwatch.conf")
}

// RPCListenAddr returns host:port for the RPC server.
func (c *Config) RPCListenAddr() string {
	return joinHostPort(c.RPC.Addr, c.RPC.Port)
}
