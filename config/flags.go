package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Version is reported by --version.
const Version = "0.1.0"

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	DataDir string
	Config  string

	// Node
	Backend  string
	Endpoint string
	Timeout  time.Duration

	// Monitor
	Interval    time.Duration
	MaxFailures int
	AutoStart   bool

	// Simulated node
	SimStep   time.Duration
	SimTarget uint64

	// RPC
	RPC        bool
	RPCAddr    string
	RPCPort    int
	RPCAllowed string
	RPCCORS    string
	StartRate  float64

	// Metrics
	Metrics bool

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set flags (for zero-value and true/false overrides).
	SetMaxFailures bool
	SetAutoStart   bool
	SetRPC         bool
	SetMetrics     bool
	SetLogJSON     bool
	SetStartRate   bool
}

// ParseFlags parses os.Args and exits on malformed flags.
func ParseFlags() *Flags {
	f, err := ParseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return f
}

// ParseArgs parses the given command-line arguments. Errors are also
// reported to errOut.
func ParseArgs(args []string, errOut io.Writer) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("tipwatchd", flag.ContinueOnError)
	fs.SetOutput(errOut)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.Network, "network", "", "Network: mainnet, preprod or preview")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	// Node
	fs.StringVar(&f.Backend, "backend", "", "Node backend: sim or rpc")
	fs.StringVar(&f.Endpoint, "endpoint", "", "node_* RPC endpoint (rpc backend)")
	fs.DurationVar(&f.Timeout, "node-timeout", 0, "Per-call timeout for the rpc backend")

	// Monitor
	fs.DurationVar(&f.Interval, "interval", 0, "Status poll interval")
	fs.IntVar(&f.MaxFailures, "max-failures", 0, "Consecutive poll errors before giving up (0 = never)")
	fs.BoolVar(&f.AutoStart, "autostart", true, "Start the node on launch")

	// Simulated node
	fs.DurationVar(&f.SimStep, "sim-step", 0, "Simulated node step interval")
	fs.Uint64Var(&f.SimTarget, "sim-target", 0, "Simulated network tip slot")

	// RPC
	fs.BoolVar(&f.RPC, "rpc", true, "Enable RPC server")
	fs.StringVar(&f.RPCAddr, "rpc-addr", "", "RPC listen address")
	fs.IntVar(&f.RPCPort, "rpc-port", 0, "RPC listen port")
	fs.StringVar(&f.RPCAllowed, "rpc-allowed", "", "Allowed IPs for RPC")
	fs.StringVar(&f.RPCCORS, "rpc-cors", "", "Allowed CORS origins for RPC (comma-separated)")
	fs.Float64Var(&f.StartRate, "rpc-start-rate", 0, "Node start requests allowed per minute (0 = unlimited)")

	// Metrics
	fs.BoolVar(&f.Metrics, "metrics", true, "Serve Prometheus metrics on the RPC server")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	fs.Usage = func() {
		printUsage(errOut)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	f.SetMaxFailures = isFlagSet(fs, "max-failures")
	f.SetAutoStart = isFlagSet(fs, "autostart")
	f.SetRPC = isFlagSet(fs, "rpc")
	f.SetMetrics = isFlagSet(fs, "metrics")
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.SetStartRate = isFlagSet(fs, "rpc-start-rate")

	f.Args = fs.Args()
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("flag %q was not parsed (positional argument stopped parsing)", arg)
		}
	}

	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.Network != "" {
		cfg.Network = NetworkType(strings.ToLower(f.Network))
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// Node
	if f.Backend != "" {
		cfg.Node.Backend = BackendType(strings.ToLower(f.Backend))
	}
	if f.Endpoint != "" {
		cfg.Node.Endpoint = f.Endpoint
	}
	if f.Timeout != 0 {
		cfg.Node.Timeout = f.Timeout
	}

	// Monitor
	if f.Interval != 0 {
		cfg.Monitor.Interval = f.Interval
	}
	if f.SetMaxFailures {
		cfg.Monitor.MaxFailures = f.MaxFailures
	}
	if f.SetAutoStart {
		cfg.Monitor.AutoStart = f.AutoStart
	}

	// Simulated node
	if f.SimStep != 0 {
		cfg.Sim.Step = f.SimStep
	}
	if f.SimTarget != 0 {
		cfg.Sim.Target = f.SimTarget
	}

	// RPC
	if f.SetRPC {
		cfg.RPC.Enabled = f.RPC
	}
	if f.RPCAddr != "" {
		cfg.RPC.Addr = f.RPCAddr
	}
	if f.RPCPort != 0 {
		cfg.RPC.Port = f.RPCPort
	}
	if f.RPCAllowed != "" {
		cfg.RPC.AllowedIPs = parseStringList(f.RPCAllowed)
	}
	if f.RPCCORS != "" {
		cfg.RPC.CORSOrigins = parseStringList(f.RPCCORS)
	}
	if f.SetStartRate {
		cfg.RPC.StartRate = f.StartRate
	}

	// Metrics
	if f.SetMetrics {
		cfg.Metrics.Enabled = f.Metrics
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printUsage(w io.Writer) {
	usage := `tipwatchd - chain node lifecycle and status monitor

Usage:
  tipwatchd [options]
  tipwatchd --help

Commands:
  --help, -h        Show this help message
  --version, -v     Show version information

Core Options:
  --network         Network: mainnet, preprod (default) or preview
  --datadir         Data directory (default: ~/.tipwatch)
  --config, -c      Config file path (default: <datadir>/tipwatch.conf)

Node Options:
  --backend         Node backend: sim (default) or rpc
  --endpoint        node_* JSON-RPC endpoint for the rpc backend
  --node-timeout    Per-call timeout for the rpc backend (default: 10s)

Monitor Options:
  --interval        Status poll interval (default: 1s)
  --max-failures    Consecutive poll errors before giving up (default: 0, never)
  --autostart       Start the node on launch (default: true)

Simulated Node Options:
  --sim-step        Step interval (default: 200ms)
  --sim-target      Network tip slot (default: 2000)

RPC Options:
  --rpc             Enable RPC server (default: true)
  --rpc-addr        RPC listen address (default: 127.0.0.1)
  --rpc-port        RPC port (mainnet: 9545, preprod: 9645, preview: 9745)
  --rpc-allowed     Allowed IPs for RPC (comma-separated)
  --rpc-cors        Allowed CORS origins for RPC (comma-separated)
  --rpc-start-rate  Node start requests allowed per minute (default: 30, 0 = unlimited)
  --metrics         Serve Prometheus metrics on /metrics (default: true)

Logging Options:
  --log-level       Log level: debug, info, warn, error (default: info)
  --log-file        Log file path (default: stdout)
  --log-json        Output logs as JSON

Examples:
  # Watch a simulated preprod node
  tipwatchd

  # Drive a remote node exposed by simnoded
  tipwatchd --backend=rpc --endpoint=http://127.0.0.1:9900/ --network=preview
`
	fmt.Fprint(w, usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load() (*Config, *Flags, error) {
	flags := ParseFlags()

	if flags.Help {
		printUsage(os.Stdout)
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("tipwatchd version " + Version)
		os.Exit(0)
	}

	cfg, err := LoadWithFlags(flags)
	if err != nil {
		return nil, nil, err
	}
	return cfg, flags, nil
}

// LoadWithFlags builds the configuration from defaults, the config file and
// already parsed flags.
func LoadWithFlags(flags *Flags) (*Config, error) {
	// Network first: it selects the defaults.
	network := Preprod
	if flags.Network != "" {
		network = NetworkType(strings.ToLower(flags.Network))
	}
	cfg := Default(network)

	if flags.DataDir != "" {
		cfg.DataDir = expandHome(flags.DataDir)
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, fmt.Errorf("applying config file: %w", err)
	}

	ApplyFlags(cfg, flags)
	cfg.DataDir = expandHome(cfg.DataDir)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Safe to call on every startup.
func EnsureDataDirs(cfg *Config) error {
	for _, dir := range []string{cfg.DataDir, cfg.NodeDataDir(), cfg.LogsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}
	return nil
}
