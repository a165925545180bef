// Package tui provides a live terminal dashboard for a simulation batch.
//
// The TUI uses Bubble Tea for the application framework, Bubbles for the
// spinner and progress bar, and Lipgloss for styling. It displays the
// current phase, the running iteration and its processes, per-simulation
// results, and the most recent iterations.
package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-sim-runner/internal/orchestrator"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorSecondary = lipgloss.Color("#06B6D4") // Cyan

	colorSuccess = lipgloss.Color("#10B981") // Green
	colorWarning = lipgloss.Color("#F59E0B") // Amber
	colorError   = lipgloss.Color("#EF4444") // Red
	colorInfo    = lipgloss.Color("#3B82F6") // Blue

	colorText      = lipgloss.Color("#E5E7EB") // Light gray
	colorTextMuted = lipgloss.Color("#9CA3AF") // Medium gray
	colorTextDim   = lipgloss.Color("#6B7280") // Dark gray
	colorBorder    = lipgloss.Color("#374151") // Border gray
)

// =============================================================================
// Base Styles
// =============================================================================

var (
	mutedStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	statusOK = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	statusWarning = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	statusError = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	statusInfo = lipgloss.NewStyle().
			Foreground(colorInfo).
			Bold(true)
)

// =============================================================================
// Layout Styles
// =============================================================================

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorPrimary).
			Bold(true).
			Padding(0, 1).
			MarginBottom(1)

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(colorBorder)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			MarginTop(1)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			Width(16)

	tableHeaderStyle = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true)
)

// =============================================================================
// Status Styles
// =============================================================================

// ReasonStyle returns the style for an iteration termination reason.
func ReasonStyle(reason orchestrator.Reason) lipgloss.Style {
	switch reason {
	case orchestrator.ReasonProcessExited:
		return statusOK
	case orchestrator.ReasonTimeout:
		return statusInfo
	case orchestrator.ReasonInterrupted:
		return statusWarning
	default:
		return statusError
	}
}

// ExitCodeStyle returns the style for a process exit code.
// 143 (SIGTERM) is the expected result of a requested stop.
func ExitCodeStyle(code int) lipgloss.Style {
	switch code {
	case 0, 143:
		return statusOK
	case -1:
		return dimStyle
	case 130, 137:
		return statusWarning
	default:
		return statusError
	}
}

// PhaseLabel returns a short human label for a batch phase.
func PhaseLabel(p orchestrator.Phase) string {
	switch p {
	case orchestrator.PhasePreflight:
		return "Running preflight checks"
	case orchestrator.PhaseStartingBridge:
		return "Starting bridge"
	case orchestrator.PhaseEngineStarting:
		return "Starting engine"
	case orchestrator.PhaseAwaitingReady:
		return "Waiting for engine"
	case orchestrator.PhaseCompanionStarting:
		return "Starting companion"
	case orchestrator.PhaseSupervising:
		return "Supervising"
	case orchestrator.PhaseTeardown:
		return "Stopping iteration"
	case orchestrator.PhaseStoppingBridge:
		return "Stopping bridge"
	case orchestrator.PhaseDone:
		return "Done"
	default:
		return "Initializing"
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// RenderKeyValue renders a label-value pair.
func RenderKeyValue(label string, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render(label+":"),
		valueStyle.Render(value),
	)
}

func renderExitCode(code int) string {
	if code == -1 {
		return dimStyle.Render("-")
	}
	return ExitCodeStyle(code).Render(fmt.Sprintf("%d", code))
}
