package orchestrator

import (
	"time"

	"github.com/randomizedcoder/go-sim-runner/internal/job"
	"github.com/randomizedcoder/go-sim-runner/internal/process"
)

// Phase names what the batch is currently doing.
type Phase string

const (
	PhasePreflight         Phase = "preflight"
	PhaseStartingBridge    Phase = "starting_bridge"
	PhaseEngineStarting    Phase = "engine_starting"
	PhaseAwaitingReady     Phase = "awaiting_ready"
	PhaseCompanionStarting Phase = "companion_starting"
	PhaseSupervising       Phase = "supervising"
	PhaseTeardown          Phase = "teardown"
	PhaseStoppingBridge    Phase = "stopping_bridge"
	PhaseDone              Phase = "done"
)

// Callbacks contains optional callbacks for batch events.
// They are called synchronously from the batch goroutine, except
// OnProcessExit which runs on the process reaper goroutine.
type Callbacks struct {
	// OnPhase is called when the batch moves to a new phase.
	OnPhase func(phase Phase)

	// OnIterationStart is called before an iteration's engine is started.
	OnIterationStart func(simIndex int, sim job.Simulation, iteration int)

	// OnIterationEnd is called after an iteration's teardown.
	OnIterationEnd func(result IterationResult)

	// OnProcessStart is called once a process has been spawned.
	OnProcessStart func(id process.Identity, pid int)

	// OnStopRequested is called before a running process is asked to stop.
	OnStopRequested func(id process.Identity)

	// OnProcessExit is called after a process has been reaped.
	OnProcessExit func(id process.Identity, exitCode int, uptime time.Duration)

	// OnLaunchError is called when a process could not be spawned, or when
	// the engine never became ready.
	OnLaunchError func(id process.Identity, err error)

	// OnForcedKill is called when a process had to be killed after the
	// stop grace period.
	OnForcedKill func(id process.Identity)
}

// chain returns callbacks that call a first, then b.
func chain(a, b Callbacks) Callbacks {
	return Callbacks{
		OnPhase: func(p Phase) {
			if a.OnPhase != nil {
				a.OnPhase(p)
			}
			if b.OnPhase != nil {
				b.OnPhase(p)
			}
		},
		OnIterationStart: func(i int, s job.Simulation, it int) {
			if a.OnIterationStart != nil {
				a.OnIterationStart(i, s, it)
			}
			if b.OnIterationStart != nil {
				b.OnIterationStart(i, s, it)
			}
		},
		OnIterationEnd: func(r IterationResult) {
			if a.OnIterationEnd != nil {
				a.OnIterationEnd(r)
			}
			if b.OnIterationEnd != nil {
				b.OnIterationEnd(r)
			}
		},
		OnProcessStart: func(id process.Identity, pid int) {
			if a.OnProcessStart != nil {
				a.OnProcessStart(id, pid)
			}
			if b.OnProcessStart != nil {
				b.OnProcessStart(id, pid)
			}
		},
		OnStopRequested: func(id process.Identity) {
			if a.OnStopRequested != nil {
				a.OnStopRequested(id)
			}
			if b.OnStopRequested != nil {
				b.OnStopRequested(id)
			}
		},
		OnProcessExit: func(id process.Identity, code int, uptime time.Duration) {
			if a.OnProcessExit != nil {
				a.OnProcessExit(id, code, uptime)
			}
			if b.OnProcessExit != nil {
				b.OnProcessExit(id, code, uptime)
			}
		},
		OnLaunchError: func(id process.Identity, err error) {
			if a.OnLaunchError != nil {
				a.OnLaunchError(id, err)
			}
			if b.OnLaunchError != nil {
				b.OnLaunchError(id, err)
			}
		},
		OnForcedKill: func(id process.Identity) {
			if a.OnForcedKill != nil {
				a.OnForcedKill(id)
			}
			if b.OnForcedKill != nil {
				b.OnForcedKill(id)
			}
		},
	}
}
