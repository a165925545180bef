package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseFlags parses os.Args and returns a Config.
func ParseFlags() (*Config, error) {
	return ParseArgs(os.Args[1:], os.Stderr)
}

// ParseArgs parses args into a Config, writing usage and errors to output.
// A single positional argument is accepted as the job description path.
func ParseArgs(args []string, output io.Writer) (*Config, error) {
	cfg := DefaultConfig()
	fs := flag.NewFlagSet("go-sim-runner", flag.ContinueOnError)
	fs.SetOutput(output)

	// Custom usage message
	fs.Usage = func() {
		fmt.Fprintf(output, `go-sim-runner - batch simulation runner for Unreal Engine and ROS 2

Usage:
  go-sim-runner [flags] [job-file]

Job Flags:
`)
		// Print flags by category
		printFlagCategory(fs, output, []string{"config", "max-iterations", "failure-policy", "init"})

		fmt.Fprintf(output, "\nProcesses:\n")
		printFlagCategory(fs, output, []string{"unreal-path", "launcher", "bridge-package", "bridge-launch-file", "child-output"})

		fmt.Fprintf(output, "\nSupervision:\n")
		printFlagCategory(fs, output, []string{"poll-interval", "stop-grace"})

		fmt.Fprintf(output, "\nReadiness:\n")
		printFlagCategory(fs, output, []string{"readiness", "readiness-addr", "bridge-ready-addr", "bridge-ready-timeout"})

		fmt.Fprintf(output, "\nSafety & Diagnostics:\n")
		printFlagCategory(fs, output, []string{"print-cmd", "check", "skip-preflight"})

		fmt.Fprintf(output, "\nObservability:\n")
		printFlagCategory(fs, output, []string{"metrics", "metrics-textfile", "v", "log-format", "tui"})

		fmt.Fprintf(output, `
Examples:
  # Write a starter job description, edit it, then run it
  go-sim-runner -init simulation_config.json
  go-sim-runner -config simulation_config.json -unreal-path /opt/UnrealEngine/Engine/Binaries/Linux/UnrealEditor

  # Show the commands that would be run
  go-sim-runner -print-cmd -config jobs/pick_place.yaml

  # Probe rosbridge instead of a fixed delay, with a live dashboard
  go-sim-runner -readiness websocket -readiness-addr ws://127.0.0.1:9090 -tui

`)
	}

	// Job
	fs.StringVar(&cfg.JobPath, "config", cfg.JobPath, "Path to the job description (JSON or YAML)")
	fs.IntVar(&cfg.MaxIterations, "max-iterations", cfg.MaxIterations, "Cap iterations per simulation (0 = as configured)")
	fs.StringVar(&cfg.FailurePolicy, "failure-policy", cfg.FailurePolicy, `On a failed iteration: "continue" or "abort"`)
	fs.StringVar(&cfg.InitPath, "init", cfg.InitPath, "Write an example job description to this path and exit")

	// Processes
	fs.StringVar(&cfg.EnginePath, "unreal-path", cfg.EnginePath, "Path to the Unreal Engine executable (default: platform specific)")
	fs.StringVar(&cfg.Launcher, "launcher", cfg.Launcher, "Launch tool for the bridge and companion processes")
	fs.StringVar(&cfg.BridgePackage, "bridge-package", cfg.BridgePackage, "Package containing the bridge launch file")
	fs.StringVar(&cfg.BridgeLaunchFile, "bridge-launch-file", cfg.BridgeLaunchFile, "Bridge launch file")
	fs.StringVar(&cfg.ChildOutput, "child-output", cfg.ChildOutput, `Child stdout/stderr: "log", "inherit" or "discard"`)

	// Supervision
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Liveness poll interval")
	fs.DurationVar(&cfg.StopGrace, "stop-grace", cfg.StopGrace, "Time allowed after SIGTERM before SIGKILL")

	// Readiness
	fs.StringVar(&cfg.Readiness, "readiness", cfg.Readiness, `Engine readiness check: "delay", "tcp" or "websocket"`)
	fs.StringVar(&cfg.ReadinessAddr, "readiness-addr", cfg.ReadinessAddr, "host:port (tcp) or ws:// URL (websocket) to probe")
	fs.StringVar(&cfg.BridgeReadyAddr, "bridge-ready-addr", cfg.BridgeReadyAddr, "Websocket URL to probe after starting the bridge (e.g. ws://127.0.0.1:9090)")
	fs.DurationVar(&cfg.BridgeReadyTimeout, "bridge-ready-timeout", cfg.BridgeReadyTimeout, "Upper bound for the bridge probe")

	// Safety & Diagnostics
	fs.BoolVar(&cfg.PrintCmd, "print-cmd", cfg.PrintCmd, "Print the commands that would be run and exit")
	fs.BoolVar(&cfg.Check, "check", cfg.Check, "Validate, run preflight and one iteration per simulation")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	// Observability
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address, e.g. 0.0.0.0:17093 (empty = disabled)")
	fs.StringVar(&cfg.MetricsTextfile, "metrics-textfile", cfg.MetricsTextfile, "Write final metrics in text format to this file")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable live terminal dashboard")

	// Parse
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Positional argument: job description path
	rest := fs.Args()
	switch len(rest) {
	case 0:
	case 1:
		cfg.JobPath = rest[0]
	default:
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(rest[1:], " "))
	}

	return cfg, nil
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(fs *flag.FlagSet, w io.Writer, names []string) {
	fs.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(w, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" {
					fmt.Fprintf(w, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(w)
				return
			}
		}
	})
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	// Infer type from default value format
	switch f.DefValue {
	case "true", "false":
		return ""
	}

	// Check if it looks like a duration
	if strings.HasSuffix(f.DefValue, "s") || strings.HasSuffix(f.DefValue, "m") || strings.HasSuffix(f.DefValue, "h") {
		return "duration"
	}

	// Check if numeric
	if _, err := fmt.Sscanf(f.DefValue, "%d", new(int)); err == nil {
		return "int"
	}

	return "string"
}
