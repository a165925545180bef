// Package supervisor manages the lifecycle of the external processes a batch runs.
package supervisor

// State represents the current state of a managed process.
type State int

const (
	// StateStarting indicates the process is being spawned.
	StateStarting State = iota

	// StateRunning indicates the process is alive.
	StateRunning

	// StateStopped indicates the process exited cleanly or after a stop request.
	StateStopped

	// StateFailed indicates the process exited on its own with a non-zero code.
	StateFailed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
