// Package preflight provides startup validation checks.
package preflight

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// A batch holds at most three children at once (bridge, engine, companion),
// each with stdout/stderr pipes, plus the metrics server and its clients.
const (
	requiredFileDescriptors = 256
	requiredProcesses       = 64
)

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// Options names what the batch is about to launch.
type Options struct {
	EnginePath  string
	Launcher    string
	ProjectPath string

	// Scenarios are the engine scenario files of every simulation.
	// Missing scenarios only warn: the engine may resolve them relative to
	// the project.
	Scenarios []string
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks.
func RunAll(opts Options) *Result {
	result := &Result{
		Checks: make([]Check, 0, 6),
		Passed: true,
	}

	add := func(c Check) {
		result.Checks = append(result.Checks, c)
		if !c.Passed {
			result.Passed = false
		}
	}

	add(checkExecutable("engine", opts.EnginePath))
	add(checkExecutable("launcher", opts.Launcher))
	add(checkProject(opts.ProjectPath))
	add(checkScenarios(opts.Scenarios))
	add(checkFileDescriptors())
	add(checkProcessLimit())

	return result
}

// checkExecutable verifies that path resolves to an executable, either
// directly or through PATH.
func checkExecutable(name, path string) Check {
	if path == "" {
		return Check{
			Name:    name,
			Passed:  false,
			Message: "no executable configured",
		}
	}

	resolved, err := exec.LookPath(path)
	if err != nil {
		return Check{
			Name:    name,
			Passed:  false,
			Message: fmt.Sprintf("not found at %s: %v", path, err),
		}
	}

	return Check{
		Name:    name,
		Passed:  true,
		Message: fmt.Sprintf("found at %s", resolved),
	}
}

// checkProject verifies the engine project file exists.
func checkProject(path string) Check {
	info, err := os.Stat(path)
	if err != nil {
		return Check{
			Name:    "engine_project",
			Passed:  false,
			Message: fmt.Sprintf("%s: %v", path, err),
		}
	}
	if info.IsDir() {
		return Check{
			Name:    "engine_project",
			Passed:  false,
			Message: fmt.Sprintf("%s is a directory, expected a project file", path),
		}
	}

	return Check{
		Name:    "engine_project",
		Passed:  true,
		Message: path,
	}
}

// checkScenarios warns about scenario files that do not exist locally.
func checkScenarios(scenarios []string) Check {
	seen := make(map[string]bool, len(scenarios))
	var missing []string
	for _, s := range scenarios {
		if seen[s] {
			continue
		}
		seen[s] = true
		if _, err := os.Stat(s); err != nil {
			missing = append(missing, s)
		}
	}

	if len(missing) > 0 {
		return Check{
			Name:    "scenarios",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("%d of %d not found locally: %s", len(missing), len(seen), strings.Join(missing, ", ")),
		}
	}

	return Check{
		Name:    "scenarios",
		Passed:  true,
		Message: fmt.Sprintf("%d found", len(seen)),
	}
}

// checkFileDescriptors verifies sufficient file descriptors are available.
func checkFileDescriptors() Check {
	actual, ok := fileDescriptorLimit()
	if !ok {
		return Check{
			Name:    "file_descriptors",
			Passed:  true,
			Warning: true,
			Message: "unable to check on this platform",
		}
	}

	return Check{
		Name:     "file_descriptors",
		Required: requiredFileDescriptors,
		Actual:   actual,
		Passed:   actual >= requiredFileDescriptors,
		Message:  fmt.Sprintf("ulimit -n %d (need %d)", actual, requiredFileDescriptors),
	}
}

// checkProcessLimit verifies sufficient process slots are available.
// The soft limit is read from /proc/self/limits.
func checkProcessLimit() Check {
	data, err := os.ReadFile("/proc/self/limits")
	if err != nil {
		// Non-Linux or restricted access, assume OK
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to check (non-Linux or restricted)",
		}
	}

	actual := parseMaxProcesses(string(data))
	if actual == 0 {
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to determine (assuming OK)",
		}
	}

	return Check{
		Name:     "process_limit",
		Required: requiredProcesses,
		Actual:   actual,
		Passed:   actual >= requiredProcesses,
		Message:  fmt.Sprintf("ulimit -u %d (need %d)", actual, requiredProcesses),
	}
}

// parseMaxProcesses extracts the soft "Max processes" limit from the
// contents of /proc/self/limits. It returns 0 if the line is absent.
func parseMaxProcesses(limits string) int {
	for _, line := range strings.Split(limits, "\n") {
		if !strings.HasPrefix(line, "Max processes") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return 0
		}
		if fields[2] == "unlimited" {
			return 1000000
		}
		actual := 0
		fmt.Sscanf(fields[2], "%d", &actual)
		return actual
	}
	return 0
}

// PrintResults writes the preflight check results to w.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "file_descriptors":
		return "ulimit -n 8192 (or edit /etc/security/limits.conf)"
	case "process_limit":
		return "ulimit -u 4096 (or edit /etc/security/limits.conf)"
	case "engine":
		return "pass the editor binary with -unreal-path"
	case "launcher":
		return "source the ROS 2 setup script (source /opt/ros/<distro>/setup.bash) or set -launcher"
	case "engine_project":
		return "check ueProject in the job description"
	default:
		return "see documentation"
	}
}
