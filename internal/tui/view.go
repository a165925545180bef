package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-sim-runner/internal/orchestrator"
	"github.com/randomizedcoder/go-sim-runner/internal/process"
	"github.com/randomizedcoder/go-sim-runner/internal/stats"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderSummaryView renders the main dashboard.
func (m Model) renderSummaryView() string {
	sections := []string{
		m.renderHeader(),
		m.renderProgress(),
		m.renderIteration(),
	}
	if len(m.recent) > 0 {
		sections = append(sections, m.renderRecent())
	}
	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderDetailedView renders the per-simulation table.
func (m Model) renderDetailedView() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderSimulationTable(),
		m.renderFooter(),
	)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	runID := m.runID
	if len(runID) > 8 {
		runID = runID[:8]
	}

	header := fmt.Sprintf(
		" go-sim-runner │ run %s │ Iterations: %d/%d │ Elapsed: %s ",
		runID,
		m.finished,
		m.planned,
		formatDuration(m.Elapsed()),
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Progress Section
// =============================================================================

func (m Model) renderProgress() string {
	barWidth := m.width - 16
	if barWidth < 20 {
		barWidth = 20
	}
	bar := m.progress
	bar.Width = barWidth

	var status string
	switch {
	case m.done && m.err == nil:
		status = statusOK.Render("✓ Batch completed")
	case m.done:
		status = statusError.Render("✗ " + m.err.Error())
	case m.stopping:
		status = m.spinner.View() + statusWarning.Render(" Stopping, waiting for processes to exit...")
	default:
		status = m.spinner.View() + " " + PhaseLabel(m.phase)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Batch Progress"),
		bar.ViewAs(m.Progress())+" "+valueStyle.Render(formatPercent(m.Progress())),
		status,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Current Iteration
// =============================================================================

func (m Model) renderIteration() string {
	lines := []string{sectionHeaderStyle.Render("Current Iteration")}

	if !m.inIteration {
		lines = append(lines, mutedStyle.Render("No iteration running"))
	} else {
		planned := m.simulation.Iterations
		if m.simIndex < len(m.simulations) {
			planned = m.simulations[m.simIndex].Planned
		}
		elapsed := time.Since(m.iterStart)

		lines = append(lines,
			RenderKeyValue("Simulation", fmt.Sprintf("%s (#%d)", m.simulation.Name, m.simIndex+1)),
			RenderKeyValue("Iteration", fmt.Sprintf("%d / %d", m.iteration, planned)),
			RenderKeyValue("Scenario", m.simulation.Scenario),
			RenderKeyValue("Elapsed", fmt.Sprintf("%s / %s", formatDuration(elapsed), formatDuration(m.simulation.MaxDuration))),
		)
	}

	lines = append(lines, "", m.renderProcesses())
	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) renderProcesses() string {
	var b strings.Builder
	b.WriteString(tableHeaderStyle.Render(fmt.Sprintf("%-10s %8s %-9s %6s %10s", "Process", "PID", "State", "Exit", "Uptime")))

	for _, id := range []process.Identity{process.Bridge, process.Engine, process.Companion} {
		b.WriteString("\n")
		ps, ok := m.processes[id]
		if !ok {
			b.WriteString(dimStyle.Render(fmt.Sprintf("%-10s %8s %-9s %6s %10s", id, "-", "idle", "-", "-")))
			continue
		}

		state := statusOK.Render(fmt.Sprintf("%-9s", "running"))
		uptime := formatDuration(time.Since(ps.started))
		if !ps.running {
			state = mutedStyle.Render(fmt.Sprintf("%-9s", "exited"))
			uptime = "-"
		}
		fmt.Fprintf(&b, "%-10s %8d %s %6s %10s", id, ps.pid, state, renderExitCode(ps.exitCode), uptime)
	}
	return b.String()
}

// =============================================================================
// Recent Iterations
// =============================================================================

func (m Model) renderRecent() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Recent Iterations"))
	b.WriteString("\n")
	b.WriteString(tableHeaderStyle.Render(fmt.Sprintf("%-20s %4s %-15s %10s %7s %9s", "Simulation", "#", "Reason", "Duration", "Engine", "Companion")))

	for i := len(m.recent) - 1; i >= 0; i-- {
		r := m.recent[i]
		b.WriteString("\n")
		fmt.Fprintf(&b, "%-20s %4d %s %10s %7s %9s",
			truncate(r.Simulation, 20),
			r.Iteration,
			ReasonStyle(r.Reason).Render(fmt.Sprintf("%-15s", r.Reason)),
			stats.FormatDuration(r.Duration),
			renderExitCode(r.EngineExit),
			renderExitCode(r.CompanionExit),
		)
	}

	return boxStyle.Width(m.width - 2).Render(b.String())
}

// =============================================================================
// Simulation Table
// =============================================================================

func (m Model) renderSimulationTable() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Simulations"))
	b.WriteString("\n")
	b.WriteString(tableHeaderStyle.Render(fmt.Sprintf("%-18s %9s %8s %7s %7s %9s %9s", "Simulation", "Done", "Timeout", "Exited", "Failed", "Mean", "P95")))

	if len(m.simulations) == 0 {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("No simulations"))
	}

	for _, s := range m.simulations {
		failed := s.Reasons[string(orchestrator.ReasonFailed)]
		failedText := fmt.Sprintf("%7d", failed)
		if failed > 0 {
			failedText = statusError.Render(failedText)
		}

		b.WriteString("\n")
		fmt.Fprintf(&b, "%-18s %9s %8d %7d %s %9s %9s",
			truncate(s.Name, 18),
			fmt.Sprintf("%d/%d", s.Finished, s.Planned),
			s.Reasons[string(orchestrator.ReasonTimeout)],
			s.Reasons[string(orchestrator.ReasonProcessExited)],
			failedText,
			stats.FormatDuration(s.MeanDuration()),
			stats.FormatDuration(s.P95),
		)
	}

	return boxStyle.Width(m.width - 2).Render(b.String())
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	parts := []string{"q: stop batch", "d: toggle simulations"}
	if m.stopping {
		parts[0] = "q: quit now"
	}
	if m.metricsAddr != "" {
		parts = append(parts, fmt.Sprintf("metrics: http://%s/metrics", m.metricsAddr))
	}
	if m.jobPath != "" {
		parts = append(parts, m.jobPath)
	}
	return footerStyle.Render(strings.Join(parts, " │ "))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
