// Package orchestrator runs a simulation batch: one bridge process for the
// batch (or per simulation with restartBridge), and for every simulation a
// sequence of engine + companion iterations.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-sim-runner/internal/config"
	"github.com/randomizedcoder/go-sim-runner/internal/job"
	"github.com/randomizedcoder/go-sim-runner/internal/metrics"
	"github.com/randomizedcoder/go-sim-runner/internal/preflight"
	"github.com/randomizedcoder/go-sim-runner/internal/process"
	"github.com/randomizedcoder/go-sim-runner/internal/readiness"
	"github.com/randomizedcoder/go-sim-runner/internal/stats"
	"github.com/randomizedcoder/go-sim-runner/internal/supervisor"
)

// ErrInterrupted is returned by Run when the batch was cancelled by a signal
// or by its context before every iteration ran.
var ErrInterrupted = errors.New("batch interrupted")

// Options holds the collaborators of an Orchestrator. Every field is optional.
type Options struct {
	// Commands builds the bridge, engine and companion commands.
	// Defaults to a process.Catalog built from the config.
	Commands Commands

	// Waiter gates companion start. Defaults to the -readiness mode.
	Waiter readiness.Waiter

	// BridgeWaiter gates the first iteration after a bridge start.
	// Defaults to a websocket probe when -bridge-ready-addr is set.
	BridgeWaiter readiness.Waiter

	// Callbacks observe the batch (the TUI uses them).
	Callbacks Callbacks

	// Registry receives the batch metrics. Defaults to a new registry.
	Registry *prometheus.Registry

	// Out receives preflight results and the exit summary.
	// Defaults to os.Stdout.
	Out io.Writer

	// Version is reported in sim_runner_info.
	Version string

	// IgnoreSignals disables SIGINT/SIGTERM handling inside Run, for callers
	// that cancel the context themselves.
	IgnoreSignals bool
}

// Orchestrator coordinates all components for a simulation batch.
type Orchestrator struct {
	config *config.Config
	job    *job.Description
	logger *slog.Logger
	runID  string

	commands     Commands
	bridgeWaiter readiness.Waiter
	iterations   *IterationRunner
	callbacks    Callbacks

	registry      *prometheus.Registry
	metrics       *metrics.Collector
	metricsServer *metrics.Server
	tracker       *stats.Tracker

	out           io.Writer
	ignoreSignals bool

	startTime time.Time
}

// New creates a new Orchestrator for jd. cfg.EnginePath must already be
// resolved for the platform.
func New(cfg *config.Config, jd *job.Description, logger *slog.Logger, opts Options) (*Orchestrator, error) {
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	commands := opts.Commands
	if commands == nil {
		commands = process.NewCatalog(process.CatalogConfig{
			EnginePath:       cfg.EnginePath,
			Launcher:         cfg.Launcher,
			BridgePackage:    cfg.BridgePackage,
			BridgeLaunchFile: cfg.BridgeLaunchFile,
		})
	}

	waiter := opts.Waiter
	if waiter == nil {
		w, err := readiness.New(cfg.Readiness, cfg.ReadinessAddr, logger)
		if err != nil {
			return nil, err
		}
		waiter = w
	}

	bridgeWaiter := opts.BridgeWaiter
	if bridgeWaiter == nil && cfg.BridgeReadyAddr != "" {
		bridgeWaiter = readiness.NewWebSocketProbe(cfg.BridgeReadyAddr, logger)
	}

	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	collector := metrics.NewCollectorWithRegistry(metrics.CollectorConfig{
		Version:         opts.Version,
		RunID:           runID,
		JobPath:         cfg.JobPath,
		Simulations:     len(jd.Simulations),
		TotalIterations: jd.TotalIterations(cfg.MaxIterations),
	}, registry)

	tracker := stats.NewTracker()
	for i, sim := range jd.Simulations {
		tracker.Plan(i, sim.Name, sim.EffectiveIterations(cfg.MaxIterations))
	}

	o := &Orchestrator{
		config:        cfg,
		job:           jd,
		logger:        logger,
		runID:         runID,
		commands:      commands,
		bridgeWaiter:  bridgeWaiter,
		registry:      registry,
		metrics:       collector,
		tracker:       tracker,
		out:           out,
		ignoreSignals: opts.IgnoreSignals,
	}
	if cfg.MetricsAddr != "" {
		o.metricsServer = metrics.NewServer(cfg.MetricsAddr, registry, logger)
	}

	o.callbacks = chain(o.internalCallbacks(), opts.Callbacks)
	o.iterations = NewIterationRunner(IterationConfig{
		Commands:     commands,
		Waiter:       waiter,
		Logger:       logger,
		Output:       supervisor.OutputMode(cfg.ChildOutput),
		Verbose:      cfg.Verbose,
		PollInterval: cfg.PollInterval,
		StopGrace:    cfg.StopGrace,
		Callbacks:    o.callbacks,
	})

	return o, nil
}

// Run executes the batch. It blocks until every iteration has run, the
// batch aborts, or a signal arrives. The bridge is stopped before Run
// returns on every path once it was started.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startTime = time.Now()

	// Run preflight checks
	if !o.config.SkipPreflight {
		o.phase(PhasePreflight)
		result := preflight.RunAll(o.preflightOptions())
		preflight.PrintResults(o.out, result)
		if !result.Passed {
			return fmt.Errorf("preflight checks failed (use -skip-preflight to override)")
		}
	}

	// Start metrics server
	if o.metricsServer != nil {
		if err := o.metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	// Setup signal handling
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !o.ignoreSignals {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigCh)

		go func() {
			select {
			case sig := <-sigCh:
				o.logger.Info("received_signal", "signal", sig.String())
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	o.logger.Info("batch_starting",
		"job", o.config.JobPath,
		"simulations", len(o.job.Simulations),
		"iterations", o.job.TotalIterations(o.config.MaxIterations),
		"restart_bridge", o.job.RestartBridge,
		"failure_policy", o.config.FailurePolicy,
	)

	err := o.runBatch(ctx)
	o.phase(PhaseDone)

	switch {
	case err == nil:
		o.logger.Info("batch_finished", "duration", time.Since(o.startTime).String())
	case errors.Is(err, ErrInterrupted):
		o.logger.Warn("batch_interrupted", "duration", time.Since(o.startTime).String())
	default:
		o.logger.Error("batch_failed", "error", err, "duration", time.Since(o.startTime).String())
	}

	if o.metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if serr := o.metricsServer.Shutdown(shutdownCtx); serr != nil {
			o.logger.Warn("metrics_server_shutdown_error", "error", serr)
		}
		shutdownCancel()
	}

	if o.config.MetricsTextfile != "" {
		if werr := metrics.WriteTextfile(o.registry, o.config.MetricsTextfile); werr != nil {
			o.logger.Error("metrics_textfile_failed", "path", o.config.MetricsTextfile, "error", werr)
		} else {
			o.logger.Info("metrics_textfile_written", "path", o.config.MetricsTextfile)
		}
	}

	fmt.Fprint(o.out, o.ExitSummary(err))

	return err
}

// runBatch owns the bridge. Whatever happens inside the loop, the current
// bridge is stopped exactly once before runBatch returns.
func (o *Orchestrator) runBatch(ctx context.Context) error {
	bridge, err := o.startBridge(ctx)
	if err != nil {
		return err
	}
	defer func() {
		o.stopBridge(bridge)
	}()

	if err := o.awaitBridge(ctx); err != nil {
		return err
	}

	for i, sim := range o.job.Simulations {
		if i > 0 && o.job.RestartBridge {
			o.stopBridge(bridge)
			bridge = nil
			if ctx.Err() != nil {
				return ErrInterrupted
			}
			if bridge, err = o.startBridge(ctx); err != nil {
				return err
			}
			o.metrics.BridgeRestarted()
			if err := o.awaitBridge(ctx); err != nil {
				return err
			}
		}

		iterations := sim.EffectiveIterations(o.config.MaxIterations)
		o.logger.Info("simulation_starting",
			"simulation", sim.Name,
			"index", i,
			"iterations", iterations,
			"scenario", sim.Scenario,
			"max_duration", sim.MaxDuration.String(),
		)

		for it := 1; it <= iterations; it++ {
			if ctx.Err() != nil {
				return ErrInterrupted
			}

			o.callbacks.OnIterationStart(i, sim, it)
			res, err := o.iterations.Run(ctx, o.job.EngineProject, i, sim, it)
			o.callbacks.OnIterationEnd(res)

			if res.Reason == ReasonInterrupted {
				return ErrInterrupted
			}
			if err != nil {
				if o.config.FailurePolicy == config.FailureAbort {
					return fmt.Errorf("simulation %q iteration %d: %w", sim.Name, it, err)
				}
				o.logger.Warn("iteration_failed_continuing",
					"simulation", sim.Name,
					"iteration", it,
					"error", err,
				)
			}
		}
	}

	return nil
}

// startBridge launches the bridge. A launch failure is fatal to the batch.
func (o *Orchestrator) startBridge(ctx context.Context) (*supervisor.Handle, error) {
	o.phase(PhaseStartingBridge)

	h, err := supervisor.Start(ctx, o.commands.Bridge(), supervisor.Options{
		Logger:  o.logger,
		Output:  supervisor.OutputMode(o.config.ChildOutput),
		Verbose: o.config.Verbose,
		Callbacks: supervisor.Callbacks{
			OnStart: o.callbacks.OnProcessStart,
			OnExit:  o.callbacks.OnProcessExit,
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrInterrupted
		}
		o.callbacks.OnLaunchError(process.Bridge, err)
		return nil, err
	}

	o.logger.Info("bridge_started", "pid", h.Pid())
	return h, nil
}

// awaitBridge runs the optional bridge readiness probe.
func (o *Orchestrator) awaitBridge(ctx context.Context) error {
	if o.bridgeWaiter == nil {
		return nil
	}

	o.logger.Info("awaiting_bridge_ready", "timeout", o.config.BridgeReadyTimeout.String())
	if err := o.bridgeWaiter.Wait(ctx, o.config.BridgeReadyTimeout); err != nil {
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		return fmt.Errorf("bridge readiness: %w", err)
	}
	o.logger.Info("bridge_ready")
	return nil
}

// stopBridge stops h and waits for it, escalating after the stop grace.
// A nil handle is ignored so the deferred call is safe after a failed restart.
func (o *Orchestrator) stopBridge(h *supervisor.Handle) {
	if h == nil {
		return
	}

	o.phase(PhaseStoppingBridge)
	o.callbacks.OnStopRequested(process.Bridge)

	code, err := h.Shutdown(o.config.StopGrace)
	if errors.Is(err, supervisor.ErrForcedKill) {
		o.callbacks.OnForcedKill(process.Bridge)
	}
	o.logger.Info("bridge_stopped",
		"exit_code", code,
		"forced", h.Forced(),
		"uptime", h.Uptime().Round(time.Millisecond).String(),
	)
}

// internalCallbacks feed the metrics collector and stats tracker.
func (o *Orchestrator) internalCallbacks() Callbacks {
	return Callbacks{
		OnProcessStart: func(id process.Identity, pid int) {
			o.metrics.ProcessStarted(id.String())
		},
		OnProcessExit: func(id process.Identity, exitCode int, uptime time.Duration) {
			o.metrics.RecordExit(id.String(), exitCode, uptime)
		},
		OnLaunchError: func(id process.Identity, err error) {
			o.metrics.LaunchFailed(id.String())
		},
		OnForcedKill: func(id process.Identity) {
			o.metrics.ForcedKill(id.String())
		},
		OnIterationEnd: func(r IterationResult) {
			o.tracker.RecordIteration(r.SimulationIndex, string(r.Reason), r.Duration)
			if r.Reason == ReasonFailed {
				o.tracker.RecordLaunchFailure(r.SimulationIndex)
			}
			o.metrics.IterationFinished(r.Simulation, string(r.Reason), r.Duration)

			o.logger.Info("iteration_finished",
				"simulation", r.Simulation,
				"iteration", r.Iteration,
				"reason", string(r.Reason),
				"duration", r.Duration.Round(time.Millisecond).String(),
				"engine_exit", r.EngineExit,
				"companion_exit", r.CompanionExit,
			)
		},
	}
}

func (o *Orchestrator) phase(p Phase) {
	o.callbacks.OnPhase(p)
}

func (o *Orchestrator) preflightOptions() preflight.Options {
	scenarios := make([]string, 0, len(o.job.Simulations))
	for _, sim := range o.job.Simulations {
		scenarios = append(scenarios, sim.Scenario)
	}
	return preflight.Options{
		EnginePath:  o.config.EnginePath,
		Launcher:    o.config.Launcher,
		ProjectPath: o.job.EngineProject,
		Scenarios:   scenarios,
	}
}

// ExitSummary formats the end-of-batch summary for err (nil = completed).
func (o *Orchestrator) ExitSummary(err error) string {
	summary := o.metrics.GenerateSummary()

	outcome := "completed"
	switch {
	case errors.Is(err, ErrInterrupted):
		outcome = "interrupted"
	case err != nil:
		outcome = "failed: " + err.Error()
	}

	metricsAddr := ""
	if o.metricsServer != nil {
		metricsAddr = o.metricsServer.Addr()
	}

	return stats.FormatExitSummary(o.tracker.Snapshot(), stats.SummaryConfig{
		RunID:        o.runID,
		JobPath:      o.config.JobPath,
		Duration:     time.Since(o.startTime),
		MetricsAddr:  metricsAddr,
		TextfilePath: o.config.MetricsTextfile,
		ExitCodes:    summary.ExitCodes,
		TotalStarts:  summary.TotalStarts,
		ForcedKills:  summary.ForcedKills,
		Outcome:      outcome,
	})
}

// RunID returns the batch run ID attached to logs and metrics.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Metrics returns the metrics collector for external access.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}

// Stats returns the per-simulation tracker for external access.
func (o *Orchestrator) Stats() *stats.Tracker {
	return o.tracker
}
