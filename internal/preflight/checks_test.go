package preflight

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheck_String(t *testing.T) {
	t.Run("passed_with_required", func(t *testing.T) {
		c := Check{
			Name:     "test_check",
			Required: 100,
			Actual:   200,
			Passed:   true,
		}
		s := c.String()
		if !strings.Contains(s, "✓") {
			t.Error("Passed check should have ✓")
		}
		if !strings.Contains(s, "200") {
			t.Error("Should contain actual value")
		}
		if !strings.Contains(s, "100") {
			t.Error("Should contain required value")
		}
	})

	t.Run("failed_check", func(t *testing.T) {
		c := Check{
			Name:     "test_check",
			Required: 100,
			Actual:   50,
			Passed:   false,
		}
		s := c.String()
		if !strings.Contains(s, "✗") {
			t.Error("Failed check should have ✗")
		}
	})

	t.Run("warning_check", func(t *testing.T) {
		c := Check{
			Name:    "test_check",
			Passed:  true,
			Warning: true,
			Message: "warning message",
		}
		s := c.String()
		if !strings.Contains(s, "⚠") {
			t.Error("Warning check should have ⚠")
		}
		if !strings.Contains(s, "warning message") {
			t.Error("Should contain message")
		}
	})

	t.Run("passed_with_message_only", func(t *testing.T) {
		c := Check{
			Name:    "test_check",
			Passed:  true,
			Message: "all good",
		}
		s := c.String()
		if !strings.Contains(s, "✓") {
			t.Error("Passed check should have ✓")
		}
		if !strings.Contains(s, "all good") {
			t.Error("Should contain message")
		}
	})
}

// testOptions returns options where every required check can pass on a
// typical Unix test host.
func testOptions(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	project := filepath.Join(dir, "Robots.uproject")
	if err := os.WriteFile(project, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	return Options{
		EnginePath:  "sh",
		Launcher:    "sh",
		ProjectPath: project,
	}
}

func findCheck(t *testing.T, result *Result, name string) Check {
	t.Helper()
	for _, c := range result.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("expected %s check in results", name)
	return Check{}
}

func TestRunAll_Passes(t *testing.T) {
	result := RunAll(testOptions(t))

	if result == nil {
		t.Fatal("RunAll returned nil")
	}
	if len(result.Checks) != 6 {
		t.Errorf("Expected 6 checks, got %d", len(result.Checks))
	}

	for _, name := range []string{"engine", "launcher", "engine_project", "scenarios"} {
		if c := findCheck(t, result, name); !c.Passed {
			t.Errorf("%s check should pass: %s", name, c.Message)
		}
	}
}

func TestRunAll_MissingEngine(t *testing.T) {
	opts := testOptions(t)
	opts.EnginePath = "/nonexistent/UnrealEditor"

	result := RunAll(opts)

	c := findCheck(t, result, "engine")
	if c.Passed {
		t.Error("engine check should fail with invalid path")
	}
	if !strings.Contains(c.Message, "not found") {
		t.Errorf("Message should mention 'not found': %s", c.Message)
	}
	if result.Passed {
		t.Error("Result should fail when the engine is not found")
	}
}

func TestRunAll_MissingLauncher(t *testing.T) {
	opts := testOptions(t)
	opts.Launcher = "definitely-not-a-real-launcher-binary"

	result := RunAll(opts)

	if c := findCheck(t, result, "launcher"); c.Passed {
		t.Error("launcher check should fail when not on PATH")
	}
	if result.Passed {
		t.Error("Result should fail when the launcher is missing")
	}
}

func TestRunAll_MissingProject(t *testing.T) {
	opts := testOptions(t)
	opts.ProjectPath = filepath.Join(t.TempDir(), "missing.uproject")

	result := RunAll(opts)

	if c := findCheck(t, result, "engine_project"); c.Passed {
		t.Error("engine_project check should fail for a missing file")
	}
	if result.Passed {
		t.Error("Result should fail when the project is missing")
	}
}

func TestRunAll_MissingScenarioOnlyWarns(t *testing.T) {
	opts := testOptions(t)
	opts.Scenarios = []string{"Scenarios/missing.json", "Scenarios/missing.json"}

	result := RunAll(opts)

	c := findCheck(t, result, "scenarios")
	if !c.Passed || !c.Warning {
		t.Errorf("missing scenario should be a warning, got %+v", c)
	}
	if !strings.Contains(c.Message, "1 of 1") {
		t.Errorf("duplicates should be counted once: %s", c.Message)
	}
}

func TestRunAll_ProcessLimitCheck(t *testing.T) {
	result := RunAll(testOptions(t))

	c := findCheck(t, result, "process_limit")
	// Either passes with actual value or is a warning (non-Linux)
	if !c.Passed && !c.Warning && c.Actual >= requiredProcesses {
		t.Errorf("Process limit should pass when actual >= required: %s", c.Message)
	}
}

func TestSuggestFix(t *testing.T) {
	testCases := []struct {
		name     string
		expected string
	}{
		{"file_descriptors", "ulimit -n"},
		{"process_limit", "ulimit -u"},
		{"engine", "-unreal-path"},
		{"launcher", "setup"},
		{"engine_project", "ueProject"},
		{"unknown", "documentation"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fix := suggestFix(tc.name)
			if !strings.Contains(fix, tc.expected) {
				t.Errorf("suggestFix(%q) = %q, should contain %q", tc.name, fix, tc.expected)
			}
		})
	}
}

func TestCheckExecutable_EdgeCases(t *testing.T) {
	t.Run("empty_path", func(t *testing.T) {
		if check := checkExecutable("engine", ""); check.Passed {
			t.Error("Empty path should fail")
		}
	})

	t.Run("directory_as_path", func(t *testing.T) {
		if check := checkExecutable("engine", t.TempDir()); check.Passed {
			t.Error("Directory as executable path should fail")
		}
	})

	t.Run("not_executable", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "editor")
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		if check := checkExecutable("engine", path); check.Passed {
			t.Error("Non-executable file should fail")
		}
	})
}

func TestCheckProject_Directory(t *testing.T) {
	check := checkProject(t.TempDir())
	if check.Passed {
		t.Error("Directory as project should fail")
	}
}

func TestParseMaxProcesses(t *testing.T) {
	limits := `Limit                     Soft Limit           Hard Limit           Units
Max cpu time              unlimited            unlimited            seconds
Max processes             4096                 63704                processes
Max open files            1024                 1048576              files
`
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"soft limit", limits, 4096},
		{"unlimited", "Max processes             unlimited            unlimited            processes\n", 1000000},
		{"missing", "Max open files 1024 4096 files\n", 0},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseMaxProcesses(tt.input); got != tt.want {
				t.Errorf("parseMaxProcesses() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResult_PassedMatchesChecks(t *testing.T) {
	opts := testOptions(t)
	opts.Scenarios = []string{"missing.json"}

	result := RunAll(opts)

	// Warnings never fail the result
	want := true
	for _, c := range result.Checks {
		if !c.Passed {
			want = false
		}
	}
	if result.Passed != want {
		t.Errorf("Passed = %v, want %v", result.Passed, want)
	}
}

func TestCheckFileDescriptors(t *testing.T) {
	check := checkFileDescriptors()

	if check.Name != "file_descriptors" {
		t.Errorf("Name = %q, want file_descriptors", check.Name)
	}
	if check.Warning {
		t.Skip("descriptor limit not available on this platform")
	}
	if check.Actual <= 0 {
		t.Errorf("Actual should be positive: %d", check.Actual)
	}
	if check.Required != requiredFileDescriptors {
		t.Errorf("Required = %d, want %d", check.Required, requiredFileDescriptors)
	}
	if !check.Passed && check.Actual >= requiredFileDescriptors {
		t.Errorf("Check should pass when actual >= required: actual=%d, required=%d",
			check.Actual, check.Required)
	}
}

func TestPrintResults(t *testing.T) {
	result := &Result{
		Checks: []Check{
			{Name: "engine", Passed: true, Message: "ok"},
			{Name: "file_descriptors", Passed: false, Required: 100, Actual: 50},
		},
		Passed: false,
	}

	var buf bytes.Buffer
	PrintResults(&buf, result)

	out := buf.String()
	if !strings.Contains(out, "Preflight checks:") {
		t.Error("missing header")
	}
	if !strings.Contains(out, "Fix: ulimit -n") {
		t.Errorf("failed check should print a fix:\n%s", out)
	}
	if strings.Count(out, "Fix:") != 1 {
		t.Errorf("only failed checks print a fix:\n%s", out)
	}
}
