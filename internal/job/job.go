// Package job loads and validates simulation job descriptions.
//
// A job description names the engine project, whether the bridge is restarted
// between simulations, and an ordered list of simulations. Each simulation is
// run for a number of iterations by the orchestrator.
package job

import (
	"fmt"
	"time"
)

// DefaultPath is the job description file read when no -config flag is given.
const DefaultPath = "simulation_config.json"

// Description is a validated job description.
type Description struct {
	// RestartBridge stops and restarts the bridge between simulations.
	RestartBridge bool

	// EngineProject is the engine project file (.uproject) passed to every engine launch.
	EngineProject string

	// Simulations run in order. Never empty after Load.
	Simulations []Simulation
}

// Simulation describes one simulation scenario and how often to run it.
type Simulation struct {
	Name       string
	Iterations int

	// Scenario is the engine scenario file passed via -config.
	Scenario string

	// LaunchPackage and LaunchFile select the companion launch file.
	LaunchPackage string
	LaunchFile    string

	// ReadinessTimeout is how long to wait between engine start and companion start.
	ReadinessTimeout time.Duration

	// MaxDuration bounds supervision of the engine/companion pair.
	MaxDuration time.Duration
}

// TotalIterations returns the number of iterations across all simulations.
// If maxPerSim is positive, each simulation contributes at most maxPerSim.
func (d *Description) TotalIterations(maxPerSim int) int {
	total := 0
	for _, sim := range d.Simulations {
		total += sim.EffectiveIterations(maxPerSim)
	}
	return total
}

// EffectiveIterations returns Iterations capped by maxPerSim (0 = no cap).
func (s Simulation) EffectiveIterations(maxPerSim int) int {
	if maxPerSim > 0 && s.Iterations > maxPerSim {
		return maxPerSim
	}
	return s.Iterations
}

// ConfigError reports a missing, unreadable or invalid job description.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("job description %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
