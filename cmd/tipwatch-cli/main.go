// tipwatch-cli is a command-line client for a running tipwatchd.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Klingon-tech/tipwatch/internal/rpc"
	"github.com/Klingon-tech/tipwatch/internal/rpcclient"
	"golang.org/x/term"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	rpcURL := "http://127.0.0.1:9645"

	// Scan for --rpc before the subcommand.
	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = args[0][len("--rpc="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	client := rpcclient.New(rpcURL)
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "status":
		cmdStatus(client)
	case "start":
		cmdStart(client, cmdArgs)
	case "stop":
		cmdStop(client)
	case "watch":
		cmdWatch(client, cmdArgs)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: tipwatch-cli [global flags] <command> [flags]

Global flags:
  --rpc <url>         RPC endpoint (default: http://127.0.0.1:9645)

Commands:
  status                          Show node state
  start [network]                 Start (or restart) the node (default: preprod)
  stop                            Stop the node
  watch [--interval 1s]           Follow the node state until interrupted
`)
}

// ── status ──────────────────────────────────────────────────────────────

func cmdStatus(client *rpcclient.Client) {
	var res rpc.StateResult
	if err := client.Call("monitor_getState", nil, &res); err != nil {
		fatal("monitor_getState: %v", err)
	}
	printState(&res)
}

func printState(res *rpc.StateResult) {
	fmt.Printf("State:    %s\n", res.State)
	if res.Message != "" {
		fmt.Printf("Message:  %s\n", res.Message)
	}
	fmt.Printf("Phase:    %s\n", res.Phase)
	fmt.Printf("Running:  %v\n", res.Running)
	if res.Session != nil {
		fmt.Printf("Network:  %s\n", res.Session.Network)
		fmt.Printf("Session:  %s\n", res.Session.ID)
		fmt.Printf("Since:    %s\n", time.Unix(res.Session.StartedAt, 0).Format(time.RFC3339))
	}
	if res.Tip != nil {
		fmt.Printf("Slot:     %d\n", res.Tip.Slot)
		fmt.Printf("Block:    %d\n", res.Tip.BlockNumber)
		fmt.Printf("Epoch:    %d\n", res.Tip.Epoch)
		fmt.Printf("Hash:     %s\n", res.Tip.BlockHash)
		fmt.Printf("Syncing:  %v\n", res.Tip.IsSyncing)
	}
}

// ── start / stop ────────────────────────────────────────────────────────

func cmdStart(client *rpcclient.Client, args []string) {
	network := "preprod"
	if len(args) > 0 {
		network = args[0]
	}

	var res rpc.StateResult
	if err := client.Call("monitor_start", rpc.MonitorStartParam{Network: network}, &res); err != nil {
		fatal("monitor_start: %v", err)
	}
	printState(&res)
}

func cmdStop(client *rpcclient.Client) {
	var res rpc.StateResult
	if err := client.Call("monitor_stop", nil, &res); err != nil {
		fatal("monitor_stop: %v", err)
	}
	printState(&res)
}

// ── watch ───────────────────────────────────────────────────────────────

func cmdWatch(client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	interval := fs.Duration("interval", time.Second, "Refresh interval")
	fs.Parse(args)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Redraw a single line on a terminal, print one line per change otherwise.
	interactive := term.IsTerminal(int(os.Stdout.Fd()))

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	last := ""
	for {
		var res rpc.StateResult
		line := ""
		if err := client.Call("monitor_getState", nil, &res); err != nil {
			line = fmt.Sprintf("unreachable: %v", err)
		} else {
			line = stateLine(&res)
		}

		if interactive {
			fmt.Printf("\r\033[K%s %s", time.Now().Format("15:04:05"), line)
		} else if line != last {
			fmt.Printf("%s %s\n", time.Now().Format("15:04:05"), line)
		}
		last = line

		select {
		case <-sigCh:
			if interactive {
				fmt.Println()
			}
			return
		case <-ticker.C:
		}
	}
}

// stateLine renders a state on one line.
func stateLine(res *rpc.StateResult) string {
	switch {
	case res.Tip != nil:
		sync := "caught up"
		if res.Tip.IsSyncing {
			sync = "syncing"
		}
		return fmt.Sprintf("%s slot=%d block=%d epoch=%d (%s)",
			res.State, res.Tip.Slot, res.Tip.BlockNumber, res.Tip.Epoch, sync)
	case res.Message != "":
		return fmt.Sprintf("%s: %s", res.State, res.Message)
	default:
		return res.State
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
