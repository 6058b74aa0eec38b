package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads configuration values from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key. Unknown keys are ignored.
func setConfigValue(cfg *Config, key, value string) error {
	var err error
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(strings.ToLower(value))
	case "datadir":
		cfg.DataDir = value

	// Node
	case "node.backend":
		cfg.Node.Backend = BackendType(strings.ToLower(value))
	case "node.endpoint":
		cfg.Node.Endpoint = value
	case "node.timeout":
		cfg.Node.Timeout, err = time.ParseDuration(value)

	// Monitor
	case "monitor.interval":
		cfg.Monitor.Interval, err = time.ParseDuration(value)
	case "monitor.maxfailures":
		cfg.Monitor.MaxFailures, err = strconv.Atoi(value)
	case "monitor.autostart":
		cfg.Monitor.AutoStart = parseBool(value)

	// Simulated node
	case "sim.step":
		cfg.Sim.Step, err = time.ParseDuration(value)
	case "sim.slots":
		cfg.Sim.Slots, err = strconv.ParseUint(value, 10, 64)
	case "sim.target":
		cfg.Sim.Target, err = strconv.ParseUint(value, 10, 64)

	// RPC
	case "rpc.enabled", "rpc":
		cfg.RPC.Enabled = parseBool(value)
	case "rpc.addr":
		cfg.RPC.Addr = value
	case "rpc.port":
		cfg.RPC.Port, err = strconv.Atoi(value)
	case "rpc.allowed":
		cfg.RPC.AllowedIPs = parseStringList(value)
	case "rpc.cors":
		cfg.RPC.CORSOrigins = parseStringList(value)
	case "rpc.startrate":
		cfg.RPC.StartRate, err = strconv.ParseFloat(value, 64)

	// Metrics
	case "metrics.enabled", "metrics":
		cfg.Metrics.Enabled = parseBool(value)

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)
	}
	return err
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	content := `# tipwatch configuration

# Network the node is started on: mainnet, preprod or preview
network = ` + string(network) + `

# Data directory (default: ~/.tipwatch)
# datadir = ~/.tipwatch

# ============================================================================
# Node
# ============================================================================

# Backend: sim (in-process simulated node) or rpc (remote node_* endpoint)
node.backend = sim
# node.endpoint = http://127.0.0.1:9900/
node.timeout = 10s

# ============================================================================
# Monitor
# ============================================================================

monitor.interval = 1s
# Give up after this many consecutive polling errors (0 = never)
monitor.maxfailures = 0
# Start the node when the daemon starts
monitor.autostart = true

# ============================================================================
# Simulated node
# ============================================================================

sim.step = 200ms
sim.slots = 20
sim.target = 2000

# ============================================================================
# RPC Server
# ============================================================================

rpc.enabled = true
rpc.addr = 127.0.0.1
rpc.port = ` + strconv.Itoa(defaultRPCPort(network)) + `
rpc.allowed = 127.0.0.1
# CORS allowed origins ("*" for all)
# rpc.cors = http://localhost:3000
# Node start requests allowed per minute (0 = unlimited)
rpc.startrate = 30

# Serve Prometheus metrics on /metrics
metrics.enabled = true

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
