package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/randomizedcoder/go-sim-runner/internal/job"
	"github.com/randomizedcoder/go-sim-runner/internal/logging"
	"github.com/randomizedcoder/go-sim-runner/internal/process"
	"github.com/randomizedcoder/go-sim-runner/internal/readiness"
	"github.com/randomizedcoder/go-sim-runner/internal/supervisor"
)

// Reason is why an iteration ended.
type Reason string

const (
	// ReasonProcessExited means the engine or the companion exited on its own.
	ReasonProcessExited Reason = "process_exited"

	// ReasonTimeout means both processes outlived the simulation's max duration.
	ReasonTimeout Reason = "timeout"

	// ReasonInterrupted means the batch context was cancelled mid-iteration.
	ReasonInterrupted Reason = "interrupted"

	// ReasonFailed means the engine or companion could not be launched or
	// never became ready.
	ReasonFailed Reason = "failed"
)

// ShutdownOrder is the order in which still-running iteration processes are
// stopped at the end of an iteration. Each is stopped and awaited before the
// next one is asked to stop.
var ShutdownOrder = []process.Identity{process.Engine, process.Companion}

// notReadyOutputLines is how many engine stderr lines are logged when the
// engine misses its readiness deadline.
const notReadyOutputLines = 10

// Commands builds the processes the batch runs.
// *process.Catalog satisfies it.
type Commands interface {
	Bridge() process.Builder
	Engine(project string, sim job.Simulation, iteration int) process.Builder
	Companion(sim job.Simulation) process.Builder
}

// IterationResult describes one finished iteration.
type IterationResult struct {
	SimulationIndex int
	Simulation      string
	Iteration       int
	Reason          Reason

	// Duration runs from engine start to the end of teardown.
	Duration time.Duration

	// Supervised is the time spent in the supervision loop, measured from
	// companion start. Zero if the companion never started.
	Supervised time.Duration

	// Exit codes, -1 if the process was never started.
	EngineExit    int
	CompanionExit int

	// Stopped lists the processes that were asked to stop, in order.
	// A process that exited on its own is not in the list.
	Stopped []process.Identity

	// Err is set when Reason is ReasonFailed.
	Err error
}

// IterationConfig configures an IterationRunner.
type IterationConfig struct {
	Commands Commands
	Waiter   readiness.Waiter
	Logger   *slog.Logger

	Output  supervisor.OutputMode
	Verbose bool

	// PollInterval is the supervision loop's liveness poll period.
	PollInterval time.Duration

	// StopGrace bounds each awaited exit during teardown before SIGKILL.
	StopGrace time.Duration

	Callbacks Callbacks
}

// IterationRunner runs one engine + companion iteration at a time.
type IterationRunner struct {
	commands     Commands
	waiter       readiness.Waiter
	logger       *slog.Logger
	output       supervisor.OutputMode
	verbose      bool
	pollInterval time.Duration
	stopGrace    time.Duration
	callbacks    Callbacks
}

// NewIterationRunner creates an IterationRunner.
func NewIterationRunner(cfg IterationConfig) *IterationRunner {
	waiter := cfg.Waiter
	if waiter == nil {
		waiter = readiness.Delay{}
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	grace := cfg.StopGrace
	if grace <= 0 {
		grace = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	return &IterationRunner{
		commands:     cfg.Commands,
		waiter:       waiter,
		logger:       logger,
		output:       cfg.Output,
		verbose:      cfg.Verbose,
		pollInterval: poll,
		stopGrace:    grace,
		callbacks:    cfg.Callbacks,
	}
}

// Run executes one iteration: start the engine, wait for readiness, start the
// companion, supervise both, then stop whatever is still running in
// ShutdownOrder.
//
// A process exiting during supervision is the normal end of an iteration and
// is not an error. The returned error is non-nil only when a process could
// not be launched or the engine never became ready; in that case everything
// already started in this iteration has been stopped.
func (r *IterationRunner) Run(ctx context.Context, project string, simIndex int, sim job.Simulation, iteration int) (IterationResult, error) {
	start := time.Now()
	res := IterationResult{
		SimulationIndex: simIndex,
		Simulation:      sim.Name,
		Iteration:       iteration,
		EngineExit:      -1,
		CompanionExit:   -1,
	}
	logger := r.logger.With("simulation", sim.Name, "iteration", iteration)

	finish := func(reason Reason, err error) (IterationResult, error) {
		res.Reason = reason
		res.Err = err
		res.Duration = time.Since(start)
		return res, err
	}

	// 1. Engine
	r.phase(PhaseEngineStarting)
	engine, err := r.start(ctx, r.commands.Engine(project, sim, iteration), logger)
	if err != nil {
		if ctx.Err() != nil {
			return finish(ReasonInterrupted, nil)
		}
		logger.Error("engine_launch_failed", "error", err)
		return finish(ReasonFailed, err)
	}
	handles := map[process.Identity]*supervisor.Handle{process.Engine: engine}

	// 2. Readiness
	r.phase(PhaseAwaitingReady)
	logger.Info("awaiting_engine_ready", "timeout", sim.ReadinessTimeout.String())
	if err := r.waiter.Wait(ctx, sim.ReadinessTimeout); err != nil {
		r.teardown(handles, &res, logger)
		if ctx.Err() != nil {
			return finish(ReasonInterrupted, nil)
		}
		err = fmt.Errorf("engine readiness: %w", err)
		logger.Error("engine_not_ready",
			"error", err,
			"engine_uptime", engine.Uptime().Round(time.Millisecond).String(),
			"recent_output", engine.RecentOutput(notReadyOutputLines),
		)
		if r.callbacks.OnLaunchError != nil {
			r.callbacks.OnLaunchError(process.Engine, err)
		}
		return finish(ReasonFailed, err)
	}

	// 3. Companion
	r.phase(PhaseCompanionStarting)
	companion, err := r.start(ctx, r.commands.Companion(sim), logger)
	if err != nil {
		r.teardown(handles, &res, logger)
		if ctx.Err() != nil {
			return finish(ReasonInterrupted, nil)
		}
		logger.Error("companion_launch_failed", "error", err)
		return finish(ReasonFailed, err)
	}
	handles[process.Companion] = companion

	// 4. Supervision
	r.phase(PhaseSupervising)
	supervisedFrom := time.Now()
	reason := r.supervise(ctx, engine, companion, sim.MaxDuration)
	res.Supervised = time.Since(supervisedFrom)
	logger.Info("supervision_finished",
		"reason", string(reason),
		"elapsed", res.Supervised.Round(time.Millisecond).String(),
		"engine_alive", engine.Alive(),
		"companion_alive", companion.Alive(),
	)

	// 5. Teardown
	r.teardown(handles, &res, logger)
	return finish(reason, nil)
}

// start launches b and reports launch failures through the callbacks.
func (r *IterationRunner) start(ctx context.Context, b process.Builder, logger *slog.Logger) (*supervisor.Handle, error) {
	h, err := supervisor.Start(ctx, b, supervisor.Options{
		Logger:  logger,
		Output:  r.output,
		Verbose: r.verbose,
		Callbacks: supervisor.Callbacks{
			OnStart: r.callbacks.OnProcessStart,
			OnExit:  r.callbacks.OnProcessExit,
		},
	})
	if err != nil {
		var launchErr *supervisor.LaunchError
		if errors.As(err, &launchErr) && r.callbacks.OnLaunchError != nil && ctx.Err() == nil {
			r.callbacks.OnLaunchError(launchErr.Identity, err)
		}
		return nil, err
	}
	return h, nil
}

// supervise polls both processes until one exits, the budget runs out, or
// ctx is cancelled. Liveness is checked before the budget so a process exit
// wins a tie. The budget check is strict: elapsed must exceed maxDuration.
func (r *IterationRunner) supervise(ctx context.Context, engine, companion *supervisor.Handle, maxDuration time.Duration) Reason {
	started := time.Now()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	deadline := time.NewTimer(maxDuration)
	defer deadline.Stop()

	for {
		if !engine.Alive() || !companion.Alive() {
			return ReasonProcessExited
		}
		if time.Since(started) > maxDuration {
			return ReasonTimeout
		}

		select {
		case <-ticker.C:
		case <-deadline.C:
		case <-engine.Done():
		case <-companion.Done():
		case <-ctx.Done():
			return ReasonInterrupted
		}
	}
}

// teardown stops the still-running handles in ShutdownOrder, awaiting each
// exit (bounded by the stop grace) before moving to the next.
func (r *IterationRunner) teardown(handles map[process.Identity]*supervisor.Handle, res *IterationResult, logger *slog.Logger) {
	r.phase(PhaseTeardown)

	for _, id := range ShutdownOrder {
		h, ok := handles[id]
		if !ok {
			continue
		}

		if h.Alive() {
			res.Stopped = append(res.Stopped, id)
			if r.callbacks.OnStopRequested != nil {
				r.callbacks.OnStopRequested(id)
			}
			if _, err := h.Shutdown(r.stopGrace); errors.Is(err, supervisor.ErrForcedKill) {
				logger.Warn("process_force_killed", "process", id.String())
				if r.callbacks.OnForcedKill != nil {
					r.callbacks.OnForcedKill(id)
				}
			}
		} else if r.verbose {
			logger.Debug("process_already_exited",
				"process", id.String(),
				"exit_code", h.ExitCode(),
				"uptime", h.Uptime().Round(time.Millisecond).String(),
			)
		}

		// Bounded by Shutdown above; for processes that exited on their
		// own Done is already closed.
		<-h.Done()

		switch id {
		case process.Engine:
			res.EngineExit = h.ExitCode()
		case process.Companion:
			res.CompanionExit = h.ExitCode()
		}
	}
}

func (r *IterationRunner) phase(p Phase) {
	if r.callbacks.OnPhase != nil {
		r.callbacks.OnPhase(p)
	}
}
