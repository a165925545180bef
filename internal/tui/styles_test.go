package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-sim-runner/internal/orchestrator"
)

func TestReasonStyle(t *testing.T) {
	tests := []struct {
		reason orchestrator.Reason
		want   lipgloss.Style
	}{
		{orchestrator.ReasonProcessExited, statusOK},
		{orchestrator.ReasonTimeout, statusInfo},
		{orchestrator.ReasonInterrupted, statusWarning},
		{orchestrator.ReasonFailed, statusError},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			got := ReasonStyle(tt.reason)
			if got.GetForeground() != tt.want.GetForeground() {
				t.Errorf("ReasonStyle(%q) foreground = %v, want %v", tt.reason, got.GetForeground(), tt.want.GetForeground())
			}
		})
	}
}

func TestExitCodeStyle(t *testing.T) {
	tests := []struct {
		code int
		want lipgloss.Style
	}{
		{0, statusOK},
		{143, statusOK},
		{-1, dimStyle},
		{130, statusWarning},
		{137, statusWarning},
		{1, statusError},
		{3, statusError},
	}
	for _, tt := range tests {
		got := ExitCodeStyle(tt.code)
		if got.GetForeground() != tt.want.GetForeground() {
			t.Errorf("ExitCodeStyle(%d) foreground = %v, want %v", tt.code, got.GetForeground(), tt.want.GetForeground())
		}
	}
}

func TestPhaseLabel(t *testing.T) {
	phases := []orchestrator.Phase{
		orchestrator.PhasePreflight,
		orchestrator.PhaseStartingBridge,
		orchestrator.PhaseEngineStarting,
		orchestrator.PhaseAwaitingReady,
		orchestrator.PhaseCompanionStarting,
		orchestrator.PhaseSupervising,
		orchestrator.PhaseTeardown,
		orchestrator.PhaseStoppingBridge,
		orchestrator.PhaseDone,
	}
	seen := make(map[string]bool)
	for _, p := range phases {
		label := PhaseLabel(p)
		if label == "" || label == "Initializing" {
			t.Errorf("PhaseLabel(%q) = %q", p, label)
		}
		if seen[label] {
			t.Errorf("PhaseLabel(%q) = %q is not unique", p, label)
		}
		seen[label] = true
	}
	if PhaseLabel("") != "Initializing" {
		t.Error("unknown phase should read Initializing")
	}
}

func TestRenderKeyValue(t *testing.T) {
	got := RenderKeyValue("Simulation", "pick_place")
	if !strings.Contains(got, "Simulation:") || !strings.Contains(got, "pick_place") {
		t.Errorf("RenderKeyValue() = %q", got)
	}
}

func TestRenderExitCode(t *testing.T) {
	if got := renderExitCode(-1); !strings.Contains(got, "-") {
		t.Errorf("renderExitCode(-1) = %q", got)
	}
	if got := renderExitCode(143); !strings.Contains(got, "143") {
		t.Errorf("renderExitCode(143) = %q", got)
	}
}
