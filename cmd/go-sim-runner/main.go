// Package main provides the go-sim-runner CLI entry point.
//
// go-sim-runner runs batches of Unreal Engine simulations against a ROS 2
// stack: one bridge process for the batch, and for every simulation a series
// of engine + launch-file iterations, each bounded by a maximum duration.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/randomizedcoder/go-sim-runner/internal/config"
	"github.com/randomizedcoder/go-sim-runner/internal/job"
	"github.com/randomizedcoder/go-sim-runner/internal/logging"
	"github.com/randomizedcoder/go-sim-runner/internal/orchestrator"
	"github.com/randomizedcoder/go-sim-runner/internal/process"
	"github.com/randomizedcoder/go-sim-runner/internal/tui"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-sim-runner
var version = "dev"

// Exit codes.
const (
	exitOK          = 0
	exitFailed      = 1
	exitInterrupted = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("go-sim-runner %s\n", version)
			return exitOK
		}
	}

	cfg, err := config.ParseFlags()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return exitFailed
	}

	if cfg.InitPath != "" {
		if err := job.WriteExample(cfg.InitPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing example job: %v\n", err)
			return exitFailed
		}
		fmt.Printf("Wrote example job description to %s\n", cfg.InitPath)
		return exitOK
	}

	// The dashboard owns the terminal, so logs are dropped while it runs
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewDiscardLogger()
	} else {
		logger = logging.NewLogger(cfg.LogFormat, "info", cfg.Verbose)
	}
	logging.SetDefault(logger)

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return exitFailed
	}

	if cfg.Check {
		config.ApplyCheckMode(cfg)
		logger.Info("check_mode_enabled", "max_iterations", cfg.MaxIterations, "failure_policy", cfg.FailurePolicy)
	}

	if err := config.ResolveEngine(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailed
	}

	jd, err := job.Load(cfg.JobPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading job description: %v\n", err)
		return exitFailed
	}

	if cfg.PrintCmd {
		printCommands(os.Stdout, cfg, jd)
		return exitOK
	}

	logger.Info("starting",
		"version", version,
		"job", cfg.JobPath,
		"engine", cfg.EnginePath,
		"simulations", len(jd.Simulations),
		"iterations", jd.TotalIterations(cfg.MaxIterations),
		"metrics_addr", cfg.MetricsAddr,
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctx, stop := signalContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := orchestrator.Options{
		Registry:      registry,
		Version:       version,
		IgnoreSignals: true,
	}

	if cfg.TUIEnabled {
		err = runWithTUI(ctx, cfg, jd, logger, opts)
	} else {
		printBanner(cfg, jd)
		var orch *orchestrator.Orchestrator
		orch, err = orchestrator.New(cfg, jd, logger, opts)
		if err == nil {
			err = orch.Run(ctx)
		}
	}

	return exitCode(err)
}

// runWithTUI runs the batch and the dashboard side by side. Quitting the
// dashboard cancels the batch; the exit summary is printed once the
// terminal is released.
func runWithTUI(ctx context.Context, cfg *config.Config, jd *job.Description, logger *slog.Logger, opts orchestrator.Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sender := &programSender{}
	var summary bytes.Buffer
	opts.Out = &summary
	opts.Callbacks = tui.Callbacks(sender)

	orch, err := orchestrator.New(cfg, jd, logger, opts)
	if err != nil {
		return err
	}

	model := tui.New(tui.Config{
		JobPath:     cfg.JobPath,
		RunID:       orch.RunID(),
		MetricsAddr: cfg.MetricsAddr,
		StatsSource: orch.Stats(),
		Cancel:      cancel,
	})
	p := tea.NewProgram(model, tea.WithAltScreen())
	sender.p = p

	var runErr error
	var g errgroup.Group
	g.Go(func() error {
		runErr = orch.Run(ctx)
		tui.SendDone(p, runErr)
		return nil
	})
	g.Go(func() error {
		_, err := p.Run()
		cancel()
		if err != nil {
			return fmt.Errorf("tui: %w", err)
		}
		return nil
	})

	tuiErr := g.Wait()
	fmt.Print(summary.String())
	if tuiErr != nil {
		logger.Error("tui_failed", "error", tuiErr)
	}
	return runErr
}

// signalContext is signal.NotifyContext that stops relaying once the context
// is done, so a second signal during teardown gets the default action.
func signalContext(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, sigs...)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}

// programSender forwards batch events to the program once it exists.
type programSender struct {
	p *tea.Program
}

func (s *programSender) Send(msg tea.Msg) {
	if s.p != nil {
		s.p.Send(msg)
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, orchestrator.ErrInterrupted):
		return exitInterrupted
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailed
	}
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config, jd *job.Description) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                          go-sim-runner                            ║")
	fmt.Println("║        Unreal Engine + ROS 2 Simulation Batch Orchestration       ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Job:         %s\n", cfg.JobPath)
	fmt.Printf("  Project:     %s\n", jd.EngineProject)
	fmt.Printf("  Simulations: %d (%d iterations)\n", len(jd.Simulations), jd.TotalIterations(cfg.MaxIterations))
	fmt.Printf("  Engine:      %s\n", cfg.EnginePath)
	if jd.RestartBridge {
		fmt.Println("  Bridge:      restarted per simulation")
	}
	if cfg.MetricsAddr != "" {
		fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()
}

// printCommands prints the commands that the batch would run.
func printCommands(w io.Writer, cfg *config.Config, jd *job.Description) {
	catalog := process.NewCatalog(process.CatalogConfig{
		EnginePath:       cfg.EnginePath,
		Launcher:         cfg.Launcher,
		BridgePackage:    cfg.BridgePackage,
		BridgeLaunchFile: cfg.BridgeLaunchFile,
	})

	fmt.Fprintln(w, "# Bridge (once per batch)")
	if jd.RestartBridge {
		fmt.Fprintln(w, "# restartBridge: restarted before every simulation after the first")
	}
	fmt.Fprintln(w, catalog.BridgeCommand().CommandString())

	for i, sim := range jd.Simulations {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "# Simulation %d: %s (%d iterations, max %s)\n",
			i+1, sim.Name, sim.EffectiveIterations(cfg.MaxIterations), sim.MaxDuration)
		fmt.Fprintln(w, catalog.EngineCommand(jd.EngineProject, sim, 1).CommandString())
		fmt.Fprintln(w, catalog.CompanionCommand(sim).CommandString())
	}
}
