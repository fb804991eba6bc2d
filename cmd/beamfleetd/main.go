// beamfleetd — the control-plane daemon. Owns one Core for its entire
// process lifetime and serves the operation surface (spec §6) over
// HTTP on PORT for the outer tool-dispatch framework to invoke (spec
// §1). Keeps this file deliberately thin: load config, wire up the
// logger/metrics/core/api layers, block until a shutdown signal.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/f9-o/beamfleet/internal/api"
	"github.com/f9-o/beamfleet/internal/core"
	"github.com/f9-o/beamfleet/internal/core/config"
	"github.com/f9-o/beamfleet/internal/core/logger"
	"github.com/f9-o/beamfleet/internal/core/shutdown"
	"github.com/f9-o/beamfleet/internal/metrics"
)

// Build-time variables injected via:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=abc1234 -X main.buildDate=2025-01-01"
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "beamfleetd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("BEAMFLEET_CONFIG"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fleetHome := config.FleetHome()
	if err := os.MkdirAll(fleetHome, 0750); err != nil {
		return fmt.Errorf("create fleet home: %w", err)
	}
	logFile := filepath.Join(fleetHome, "logs", "beamfleetd.log")

	log, err := logger.Init(cfg.Log.Level, cfg.Log.Format, logFile, fleetHome, false)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	log.Info("beamfleetd starting", "version", version, "commit", commit, "hosts", len(cfg.Hosts))
	if cfg.MCPURL != "" {
		log.Info("MCP_URL configured for outer framework", "mcp_url", cfg.MCPURL)
	}
	if len(cfg.Hosts) == 0 {
		log.Warn("no SSH_HOSTS configured — node operations will fail with ConfigMissing until set")
	}

	metricsAddr := ""
	if cfg.Metrics.Enabled {
		metricsAddr = fmt.Sprintf(":%d", cfg.Metrics.Port)
	}
	m := metrics.New(metricsAddr)
	m.Start()

	c := core.New(cfg, log, m)

	addr := cfg.Port
	if addr == "" {
		addr = "8080"
	}
	if addr[0] != ':' {
		addr = ":" + addr
	}
	srv := api.New(c, log, addr)
	srv.Start()

	shutdown.Wait(c, m, log, srv)
	return nil
}
