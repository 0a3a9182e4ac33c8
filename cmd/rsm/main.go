// Command rsm is the subordinate radar-signal module server: it hosts up
// to four configured instances, each listening on its own TCP port for a
// single CCU connection, and serves the CCU/RSM binary protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittofs/internal/logger"
	"github.com/marmos91/dittofs/internal/rsm"
	"github.com/marmos91/dittofs/internal/telemetry"
	"github.com/marmos91/dittofs/pkg/config"
	"github.com/marmos91/dittofs/pkg/metrics"
	"github.com/marmos91/dittofs/pkg/metrics/prometheus"
	"github.com/marmos91/dittofs/pkg/version"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("rsm"))
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.MustLoad(configPath, "rsm")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	ctx := context.Background()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "rsm",
		ServiceVersion: version.Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = telemetryShutdown(ctx) }()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "rsm",
		ServiceVersion: version.Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("profiling: %w", err)
	}
	defer func() { _ = profilingShutdown() }()

	var m metrics.RSMMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		m = prometheus.NewRSMMetrics()
	}

	instances := make([]*rsm.Instance, 0, len(cfg.Instances))
	for _, ic := range cfg.Instances {
		faults := rsm.FaultConfig{
			SimulateControlFailure:  ic.SimulateControlFailure,
			DisconnectAfterMessages: ic.DisconnectAfterMessages,
			SimulateResponseTimeout: ic.SimulateResponseTimeout,
			SendWarningOnConfirm:    ic.SendWarningOnConfirm,
			WarningTKS:              ic.WarningTKS,
		}
		instances = append(instances, rsm.NewInstance(ic.ID, ic.Port, ic.LAK, rsm.FirmwareInfo{}, faults))
	}

	if len(instances) == 0 {
		return fmt.Errorf("no instances configured")
	}

	srv := rsm.NewServer(instances, m)

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("rsm server running", "instances", len(instances))

	select {
	case <-sigCh:
		signal.Stop(sigCh)
		logger.Info("shutdown signal received")
	case <-done:
		logger.Info("server stopped unexpectedly")
	}

	srv.Shutdown()
	<-done
	return nil
}
