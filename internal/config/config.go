// Package config provides configuration management for go-sim-runner.
package config

import "time"

// Failure policies for an iteration that could not launch.
const (
	FailureContinue = "continue"
	FailureAbort    = "abort"
)

// Config holds all configuration options for the orchestrator.
// The job itself (simulations, iterations) comes from the job description
// file named by JobPath.
type Config struct {
	// Job
	JobPath       string `json:"job_path"`
	MaxIterations int    `json:"max_iterations"` // 0 = as configured per simulation
	FailurePolicy string `json:"failure_policy"` // continue, abort

	// Processes
	EnginePath       string `json:"engine_path"` // empty = platform default
	Launcher         string `json:"launcher"`
	BridgePackage    string `json:"bridge_package"`
	BridgeLaunchFile string `json:"bridge_launch_file"`
	ChildOutput      string `json:"child_output"` // log, inherit, discard

	// Supervision
	PollInterval time.Duration `json:"poll_interval"`
	StopGrace    time.Duration `json:"stop_grace"`

	// Readiness
	Readiness          string        `json:"readiness"` // delay, tcp, websocket
	ReadinessAddr      string        `json:"readiness_addr"`
	BridgeReadyAddr    string        `json:"bridge_ready_addr"` // empty = no bridge probe
	BridgeReadyTimeout time.Duration `json:"bridge_ready_timeout"`

	// Observability
	MetricsAddr     string `json:"metrics_addr"` // empty = disabled
	MetricsTextfile string `json:"metrics_textfile"`
	Verbose         bool   `json:"verbose"`
	LogFormat       string `json:"log_format"` // json, text
	TUIEnabled      bool   `json:"tui_enabled"`

	// Diagnostic modes
	PrintCmd      bool   `json:"print_cmd"`
	Check         bool   `json:"check"`
	SkipPreflight bool   `json:"skip_preflight"`
	InitPath      string `json:"init_path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Job
		JobPath:       "simulation_config.json",
		MaxIterations: 0,
		FailurePolicy: FailureContinue,

		// Processes
		Launcher:         "ros2",
		BridgePackage:    "rosbridge_server",
		BridgeLaunchFile: "rosbridge_websocket_launch.xml",
		ChildOutput:      "log",

		// Supervision
		PollInterval: time.Second,
		StopGrace:    10 * time.Second,

		// Readiness
		Readiness:          "delay",
		BridgeReadyTimeout: 30 * time.Second,

		// Observability
		Verbose:   false,
		LogFormat: "json",
	}
}
