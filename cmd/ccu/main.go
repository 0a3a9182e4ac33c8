// Command ccu is the central control unit client: it opens one connection
// per configured RSM target, drives each through initialization, self-test,
// line-state query and session preparation, then serves the steady-state
// dispatch loop with keep-alive watchdog until shut down.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittofs/internal/ccu"
	"github.com/marmos91/dittofs/internal/logger"
	"github.com/marmos91/dittofs/internal/statuspub"
	"github.com/marmos91/dittofs/internal/telemetry"
	"github.com/marmos91/dittofs/pkg/config"
	"github.com/marmos91/dittofs/pkg/metrics"
	"github.com/marmos91/dittofs/pkg/metrics/prometheus"
	"github.com/marmos91/dittofs/pkg/version"
	"github.com/olekukonko/tablewriter"
)

// printStatusInterval is how often -print-status redraws the link table.
const printStatusInterval = 2 * time.Second

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	printStatus := flag.Bool("print-status", false, "periodically print the link table to stdout")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("ccu"))
		return
	}

	modeArg := ""
	if flag.NArg() > 0 {
		modeArg = flag.Arg(0)
	}

	if err := run(*configPath, modeArg, *printStatus); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, modeArg string, printStatus bool) error {
	mode, ok := ccu.ParseMode(modeArg)
	if !ok {
		return fmt.Errorf("unknown mode %q: expected DR, OR, OR1, or VR", modeArg)
	}

	cfg, err := config.MustLoad(configPath, "ccu")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	ctx := context.Background()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "ccu",
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
		ServiceName:    "ccu",
		ServiceVersion: version.Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("profiling: %w", err)
	}
	defer func() { _ = profilingShutdown() }()

	var m metrics.CCUMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		m = prometheus.NewCCUMetrics()
	}

	if len(cfg.Instances) == 0 {
		return fmt.Errorf("no targets configured")
	}

	runID := uuid.NewString()
	logger.Info("ccu process starting", "run_id", runID, "mode", mode)

	manager := ccu.NewManager(mode, cfg.UVMTarget.TargetIP, cfg.Instances, m)

	var pub *statuspub.Publisher
	if cfg.StatusPublisher.Enabled {
		pub, err = statuspub.New(cfg.StatusPublisher)
		if err != nil {
			return fmt.Errorf("status publisher: %w", err)
		}
		go pub.Run(manager.Events(), manager.Snapshots)
		defer pub.Shutdown()
	}

	if printStatus {
		go printStatusTable(manager)
	}

	done := make(chan int, 1)
	go func() {
		done <- manager.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("ccu client running", "mode", mode, "targets", len(cfg.Instances))

	var everConnected int
	select {
	case <-sigCh:
		signal.Stop(sigCh)
		logger.Info("shutdown signal received")
		manager.Shutdown()
		everConnected = <-done
	case everConnected = <-done:
		logger.Info("all links terminated")
	}

	if everConnected == 0 {
		return fmt.Errorf("no targets could be connected")
	}
	return nil
}

// printStatusTable redraws the current link table to stdout every
// printStatusInterval, for operators running the CCU interactively instead
// of (or alongside) the §6 status publication stream.
func printStatusTable(m *ccu.Manager) {
	ticker := time.NewTicker(printStatusInterval)
	defer ticker.Stop()

	for range ticker.C {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"ID", "Status", "LAK", "SentType", "SentNum", "RecvType", "RecvNum"})
		table.SetAutoWrapText(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetCenterSeparator("")
		table.SetColumnSeparator("")
		table.SetRowSeparator("")
		table.SetHeaderLine(false)
		table.SetBorder(false)
		table.SetTablePadding("  ")
		table.SetNoWhiteSpace(true)

		for _, s := range m.Snapshots() {
			table.Append([]string{
				fmt.Sprintf("%d", s.ID),
				s.Status.String(),
				fmt.Sprintf("0x%02X", s.LAK),
				fmt.Sprintf("%d", s.LastSentType),
				fmt.Sprintf("%d", s.LastSentNum),
				fmt.Sprintf("%d", s.LastRecvType),
				fmt.Sprintf("%d", s.LastRecvNum),
			})
		}
		table.Render()
	}
}
