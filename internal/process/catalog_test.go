package process

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/randomizedcoder/go-sim-runner/internal/job"
)

func testSimulation() job.Simulation {
	return job.Simulation{
		Name:             "pick-place",
		Iterations:       2,
		Scenario:         "scenarios/pick place.json",
		LaunchPackage:    "moveit2_tutorials",
		LaunchFile:       "pick_place_demo.launch.py",
		ReadinessTimeout: 3 * time.Second,
		MaxDuration:      10 * time.Second,
	}
}

// =============================================================================
// Table-Driven Tests: Identity
// =============================================================================

func TestIdentity_String(t *testing.T) {
	tests := []struct {
		id   Identity
		want string
	}{
		{Bridge, "bridge"},
		{Engine, "engine"},
		{Companion, "companion"},
		{Identity(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.id.String(); got != tt.want {
				t.Errorf("Identity(%d).String() = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Catalog command construction
// =============================================================================

func TestDefaultCatalogConfig(t *testing.T) {
	cfg := DefaultCatalogConfig("/opt/UnrealEditor")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"EnginePath", cfg.EnginePath, "/opt/UnrealEditor"},
		{"Launcher", cfg.Launcher, "ros2"},
		{"BridgePackage", cfg.BridgePackage, "rosbridge_server"},
		{"BridgeLaunchFile", cfg.BridgeLaunchFile, "rosbridge_websocket_launch.xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestCatalog_Bridge(t *testing.T) {
	c := NewCatalog(DefaultCatalogConfig("/opt/UnrealEditor"))
	cmd := c.BridgeCommand()

	if cmd.Identity() != Bridge {
		t.Errorf("Identity() = %v, want bridge", cmd.Identity())
	}
	if cmd.Path() != "ros2" {
		t.Errorf("Path() = %q, want ros2", cmd.Path())
	}
	want := []string{"launch", "rosbridge_server", "rosbridge_websocket_launch.xml"}
	assertArgs(t, cmd.Args(), want)
}

func TestCatalog_Engine(t *testing.T) {
	c := NewCatalog(DefaultCatalogConfig("/opt/UnrealEditor"))
	cmd := c.EngineCommand("/srv/RoboDemo.uproject", testSimulation(), 7)

	if cmd.Identity() != Engine {
		t.Errorf("Identity() = %v, want engine", cmd.Identity())
	}
	if cmd.Path() != "/opt/UnrealEditor" {
		t.Errorf("Path() = %q", cmd.Path())
	}
	want := []string{
		"/srv/RoboDemo.uproject",
		"-config=scenarios/pick place.json",
		"-autostart=true",
		"-iteration=7",
	}
	assertArgs(t, cmd.Args(), want)
}

func TestCatalog_Companion(t *testing.T) {
	c := NewCatalog(CatalogConfig{Launcher: "/usr/bin/ros2"})
	cmd := c.CompanionCommand(testSimulation())

	if cmd.Identity() != Companion {
		t.Errorf("Identity() = %v, want companion", cmd.Identity())
	}
	want := []string{"launch", "moveit2_tutorials", "pick_place_demo.launch.py"}
	assertArgs(t, cmd.Args(), want)
}

func TestCatalog_BuildersMatchCommands(t *testing.T) {
	c := NewCatalog(DefaultCatalogConfig("/opt/UnrealEditor"))
	sim := testSimulation()

	builders := []struct {
		b    Builder
		want Identity
	}{
		{c.Bridge(), Bridge},
		{c.Engine("p", sim, 1), Engine},
		{c.Companion(sim), Companion},
	}
	for _, tt := range builders {
		if tt.b.Identity() != tt.want {
			t.Errorf("builder identity = %v, want %v", tt.b.Identity(), tt.want)
		}
	}
}

// =============================================================================
// Command
// =============================================================================

func TestCommand_BuildCommand(t *testing.T) {
	cmd := NewCommand(Engine, "sleep", "1")
	execCmd, err := cmd.BuildCommand(context.Background())
	if err != nil {
		t.Fatalf("BuildCommand() error = %v", err)
	}
	if execCmd.Process != nil {
		t.Error("BuildCommand() must not start the process")
	}
	if len(execCmd.Args) != 2 || execCmd.Args[1] != "1" {
		t.Errorf("exec args = %v", execCmd.Args)
	}
}

func TestCommand_BuildCommandCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewCommand(Engine, "sleep", "1").BuildCommand(ctx); err == nil {
		t.Error("BuildCommand() with cancelled context should fail")
	}
}

func TestCommand_ArgsIsCopy(t *testing.T) {
	cmd := NewCommand(Companion, "ros2", "launch", "pkg", "file")
	args := cmd.Args()
	args[0] = "mutated"
	if cmd.Args()[0] != "launch" {
		t.Error("Args() must return a copy")
	}
}

func TestCommand_CommandString(t *testing.T) {
	tests := []struct {
		name string
		cmd  *Command
		want string
	}{
		{
			name: "plain",
			cmd:  NewCommand(Bridge, "ros2", "launch", "rosbridge_server", "rosbridge_websocket_launch.xml"),
			want: "ros2 launch rosbridge_server rosbridge_websocket_launch.xml",
		},
		{
			name: "spaces are quoted",
			cmd:  NewCommand(Engine, `C:\Program Files\UnrealEditor.exe`, "-config=a b.json"),
			want: `"C:\Program Files\UnrealEditor.exe" "-config=a b.json"`,
		},
		{
			name: "empty argument",
			cmd:  NewCommand(Companion, "ros2", ""),
			want: `ros2 ""`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cmd.CommandString()
			if got != tt.want {
				t.Errorf("CommandString() = %q, want %q", got, tt.want)
			}
			if strings.Count(got, `"`)%2 != 0 {
				t.Errorf("unbalanced quotes in %q", got)
			}
		})
	}
}

func assertArgs(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
