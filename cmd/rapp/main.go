package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/infrasonar/rapp/internal/audit"
	"github.com/infrasonar/rapp/internal/clock"
	"github.com/infrasonar/rapp/internal/config"
	"github.com/infrasonar/rapp/internal/connector"
	"github.com/infrasonar/rapp/internal/logging"
	"github.com/infrasonar/rapp/internal/manifest"
	"github.com/infrasonar/rapp/internal/metrics"
	"github.com/infrasonar/rapp/internal/protocol"
	"github.com/infrasonar/rapp/internal/runtime"
	"github.com/infrasonar/rapp/internal/state"
)

const metricsTextfileInterval = 15 * time.Second

var version = "dev"

func main() {
	cfg := config.Load()
	log := logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogColorized)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Println("rapp " + version)
	fmt.Printf("AGENTCORE_HOST=%s AGENTCORE_PORT=%d\n", cfg.AgentcoreHost, cfg.AgentcorePort)
	fmt.Printf("COMPOSE_FILE=%s CONFIG_FILE=%s ENV_FILE=%s\n", cfg.ComposeFile, cfg.ConfigFile, cfg.EnvFile)

	store := manifest.NewStore(cfg.ComposeFile, cfg.ConfigFile, cfg.EnvFile)
	driver := runtime.NewDriver(cfg, log, runtime.ExecRunner{})
	clk := clock.Real{}

	core, err := state.NewCore(cfg, log, store, driver, clk)
	if err != nil {
		log.Error("failed to load manifests", "error", err)
		os.Exit(1)
	}

	if err := core.SelfTest(ctx); err != nil {
		log.Error("startup self-test failed", "error", err)
		os.Exit(1)
	}

	go core.RunReaper(ctx)

	if cfg.AuditSchedule != "" {
		auditor := audit.New(store, log)
		if err := auditor.Start(ctx, cfg.AuditSchedule); err != nil {
			log.Error("failed to start audit sweep", "error", err)
			os.Exit(1)
		}
	}

	if cfg.MetricsTextfile != "" {
		go func() {
			ticker := time.NewTicker(metricsTextfileInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
						log.Warn("failed to write metrics textfile", "path", cfg.MetricsTextfile, "error", err)
					}
				}
			}
		}()
	}

	disp := protocol.NewDispatcher(core, driver.Gate, log)
	conn := connector.New(cfg.AgentcoreHost, cfg.AgentcorePort, disp, log)
	conn.Run(ctx)

	log.Info("shutting down")
}
