package config

import "fmt"

// Validate checks the config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if !validNetwork(cfg.Network) {
		return fmt.Errorf("network must be %q, %q or %q", Mainnet, Preprod, Preview)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir must not be empty")
	}

	switch cfg.Node.Backend {
	case BackendSim:
		if cfg.Sim.Step <= 0 {
			return fmt.Errorf("sim.step must be positive")
		}
		if cfg.Sim.Slots == 0 {
			return fmt.Errorf("sim.slots must be positive")
		}
	case BackendRPC:
		if cfg.Node.Endpoint == "" {
			return fmt.Errorf("node.backend=rpc requires node.endpoint")
		}
	default:
		return fmt.Errorf("node.backend must be %q or %q", BackendSim, BackendRPC)
	}
	if cfg.Node.Timeout < 0 {
		return fmt.Errorf("node.timeout must not be negative")
	}

	if cfg.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive")
	}
	if cfg.Monitor.MaxFailures < 0 {
		return fmt.Errorf("monitor.maxfailures must not be negative")
	}

	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}
	if cfg.RPC.StartRate < 0 {
		return fmt.Errorf("rpc.startrate must not be negative")
	}

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error")
	}
	return nil
}

func validNetwork(n NetworkType) bool {
	for _, known := range Networks {
		if n == known {
			return true
		}
	}
	return false
}
