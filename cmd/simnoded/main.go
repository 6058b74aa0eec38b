// simnoded hosts a simulated chain node behind node_* JSON-RPC endpoints so
// that tipwatchd --backend=rpc can drive it from another process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Klingon-tech/tipwatch/config"
	klog "github.com/Klingon-tech/tipwatch/internal/log"
	"github.com/Klingon-tech/tipwatch/internal/rpc"
	"github.com/Klingon-tech/tipwatch/internal/simnode"
	"golang.org/x/sync/errgroup"
)

func main() {
	def := simnode.DefaultConfig()

	addr := flag.String("addr", "127.0.0.1:9900", "RPC listen address")
	allowed := flag.String("allowed", "127.0.0.1", "Allowed IPs for RPC (comma-separated, empty = all)")
	step := flag.Duration("step", def.StepInterval, "Step interval")
	slots := flag.Uint64("slots", def.SlotsPerStep, "Slots per step")
	target := flag.Uint64("target", def.TargetSlot, "Network tip slot")
	snapshot := flag.Uint64("snapshot", def.SnapshotSlot, "Slot restored by the snapshot import")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logJSON := flag.Bool("log-json", false, "Output logs as JSON")
	flag.Parse()

	if err := klog.Init(*logLevel, *logJSON, ""); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := klog.WithComponent("simnoded")

	sim := simnode.New(simnode.Config{
		StepInterval:  *step,
		SlotsPerStep:  *slots,
		TargetSlot:    *target,
		SnapshotSlot:  *snapshot,
		FlushInterval: def.FlushInterval,
	})
	sim.InitLogging()

	var allowedIPs []string
	for _, ip := range strings.Split(*allowed, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			allowedIPs = append(allowedIPs, ip)
		}
	}
	srv := rpc.New(*addr, config.RPCConfig{AllowedIPs: allowedIPs})
	srv.SetNodeBackend(sim)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return err
		}
		logger.Info().
			Str("addr", srv.Addr()).
			Strs("networks", simnode.Networks()).
			Msg("Simulated node ready")
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sim.Stop()
		return srv.Stop()
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error().Err(err).Msg("simnoded exited")
		os.Exit(1)
	}

	logger.Info().Msg("Goodbye!")
}
