// Command ursad runs the content-addressed networking core as a
// standalone daemon: it loads configuration, brings up the swarm, and
// keeps it running until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/tribe-health/ursanet/internal/auth"
	"github.com/tribe-health/ursanet/internal/config"
	"github.com/tribe-health/ursanet/internal/store"
	"github.com/tribe-health/ursanet/pkg/ursanet"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ursad:", err)
		os.Exit(1)
	}
}

func run() error {
	var configFlag string
	flag.StringVar(&configFlag, "config", "", "path to ursad config file")
	flag.Parse()

	cfgFile, err := config.FindConfigFile(configFlag)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	config.ResolveConfigPaths(cfg, filepath.Dir(cfgFile))
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	priv, err := ursanet.LoadOrCreateIdentity(cfg.Identity.KeyFile)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	var gater *auth.AuthorizedPeerGater
	if cfg.Security.EnableConnectionGating {
		if cfg.Security.AuthorizedKeysFile == "" {
			return fmt.Errorf("connection gating enabled but no authorized_keys_file specified")
		}
		authorizedPeers, err := auth.LoadAuthorizedKeys(cfg.Security.AuthorizedKeysFile)
		if err != nil {
			return fmt.Errorf("load authorized_keys: %w", err)
		}
		gater = auth.NewAuthorizedPeerGater(authorizedPeers)
	} else {
		slog.Warn("ursad: connection gating disabled, any peer may connect")
	}

	metrics := ursanet.NewMetrics()
	if cfg.Telemetry.Metrics.Enabled {
		addr := cfg.Telemetry.Metrics.ListenAddress
		if addr == "" {
			addr = "127.0.0.1:9091"
		}
		go serveMetrics(addr, metrics)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svcCfg := ursanet.Config{
		ListenAddr:     cfg.Swarm.ListenAddr,
		BootstrapNodes: cfg.Swarm.BootstrapNodes,
		RelayClient:    cfg.Swarm.RelayClient,
		Autonat:        cfg.Swarm.Autonat,
		MDNS:           cfg.Swarm.MDNS,
	}
	if gater != nil {
		svcCfg.Gater = gater
	}

	blockStore := store.NewMemoryBlockStore()
	indexProvider := store.NewMemoryIndexProvider()

	svc, err := ursanet.NewService(ctx, priv, svcCfg, blockStore, indexProvider, metrics)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	go drainEvents(ctx, svc.Events)

	slog.Info("ursad: starting", "listen_addr", cfg.Swarm.ListenAddr)
	err = svc.Run(ctx)
	if err != nil && ctx.Err() != nil {
		return nil // clean shutdown on signal
	}
	return err
}

func drainEvents(ctx context.Context, events ursanet.Events) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events.Out:
			if !ok {
				return
			}
			slog.Debug("ursad: event", "kind", evt.Kind, "peer", evt.Peer)
		}
	}
}

func serveMetrics(addr string, m *ursanet.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("ursad: metrics server failed", "err", err)
	}
}
