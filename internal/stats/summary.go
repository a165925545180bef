package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	heavyRule = "═══════════════════════════════════════════════════════════════════════════════\n"
	lightRule = "───────────────────────────────────────────────────────────────────────────────\n"
)

// SummaryConfig holds batch-level information for summary formatting.
type SummaryConfig struct {
	// RunID identifies the batch in logs and metrics
	RunID string

	// JobPath is the job description that was run
	JobPath string

	// Duration is the total batch duration
	Duration time.Duration

	// MetricsAddr is the Prometheus metrics endpoint address, if enabled
	MetricsAddr string

	// TextfilePath is where the metrics textfile was written, if enabled
	TextfilePath string

	// ExitCodes is a map of exit codes to counts (from metrics.Collector)
	ExitCodes map[int]int64

	// TotalStarts is the number of processes spawned, bridge included
	TotalStarts int64

	// ForcedKills is the number of processes killed after the stop grace
	ForcedKills int64

	// Outcome is a one-line batch result ("completed", "interrupted", or the error)
	Outcome string
}

// FormatExitSummary formats per-simulation statistics for display at batch end.
func FormatExitSummary(sims []SimulationStats, cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(heavyRule)
	b.WriteString("                          go-sim-runner Exit Summary\n")
	b.WriteString(heavyRule + "\n")

	// Run info
	if cfg.RunID != "" {
		fmt.Fprintf(&b, "Run ID:                 %s\n", cfg.RunID)
	}
	if cfg.JobPath != "" {
		fmt.Fprintf(&b, "Job:                    %s\n", cfg.JobPath)
	}
	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(cfg.Duration))
	if cfg.Outcome != "" {
		fmt.Fprintf(&b, "Outcome:                %s\n", cfg.Outcome)
	}

	finished, planned := 0, 0
	for _, s := range sims {
		finished += s.Finished
		planned += s.Planned
	}
	fmt.Fprintf(&b, "Iterations:             %d / %d\n\n", finished, planned)

	if len(sims) > 0 {
		b.WriteString(lightRule)
		b.WriteString("                                 Simulations\n")
		b.WriteString(lightRule + "\n")

		fmt.Fprintf(&b, "  %-24s %7s %8s %8s %8s %8s\n",
			"Simulation", "Runs", "Exited", "Timeout", "Failed", "Intr")
		b.WriteString("  " + strings.Repeat("─", 68) + "\n")
		for _, s := range sims {
			fmt.Fprintf(&b, "  %-24s %7s %8d %8d %8d %8d\n",
				truncate(s.Name, 24),
				fmt.Sprintf("%d/%d", s.Finished, s.Planned),
				s.Reasons[ReasonProcessExited],
				s.Reasons[ReasonTimeout],
				s.Reasons[ReasonFailed],
				s.Reasons[ReasonInterrupted],
			)
		}
		b.WriteString("\n")

		b.WriteString(lightRule)
		b.WriteString("                             Iteration Duration\n")
		b.WriteString(lightRule + "\n")

		fmt.Fprintf(&b, "  %-24s %10s %10s %10s %10s\n", "Simulation", "Mean", "P50", "P95", "Max")
		b.WriteString("  " + strings.Repeat("─", 68) + "\n")
		for _, s := range sims {
			if s.Finished == 0 {
				fmt.Fprintf(&b, "  %-24s %10s\n", truncate(s.Name, 24), "-")
				continue
			}
			fmt.Fprintf(&b, "  %-24s %10s %10s %10s %10s\n",
				truncate(s.Name, 24),
				FormatDuration(s.MeanDuration()),
				FormatDuration(s.P50),
				FormatDuration(s.P95),
				FormatDuration(s.MaxDuration),
			)
		}
		b.WriteString("\n")
	}

	// Lifecycle
	launchFailures := 0
	for _, s := range sims {
		launchFailures += s.LaunchFailures
	}
	if cfg.TotalStarts > 0 || launchFailures > 0 || cfg.ForcedKills > 0 {
		b.WriteString(lightRule)
		b.WriteString("                                  Lifecycle\n")
		b.WriteString(lightRule + "\n")

		fmt.Fprintf(&b, "  Process Starts:       %d\n", cfg.TotalStarts)
		fmt.Fprintf(&b, "  Launch Failures:      %d\n", launchFailures)
		fmt.Fprintf(&b, "  Forced Kills:         %d\n\n", cfg.ForcedKills)
	}

	// Exit codes (from metrics.Collector)
	if len(cfg.ExitCodes) > 0 {
		b.WriteString(lightRule)
		b.WriteString("                                 Exit Codes\n")
		b.WriteString(lightRule + "\n")

		codes := make([]int, 0, len(cfg.ExitCodes))
		for code := range cfg.ExitCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)

		for _, code := range codes {
			fmt.Fprintf(&b, "  %3d %-16s %d\n", code, ExitCodeLabel(code), cfg.ExitCodes[code])
		}
		b.WriteString("\n")
	}

	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}
	if cfg.TextfilePath != "" {
		fmt.Fprintf(&b, "Metrics written to:   %s\n", cfg.TextfilePath)
	}

	b.WriteString(heavyRule)

	return b.String()
}

// ExitCodeLabel returns a human-readable label for common exit codes.
func ExitCodeLabel(code int) string {
	switch code {
	case 0:
		return "(clean)"
	case 1:
		return "(error)"
	case 130:
		return "(SIGINT)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatSeconds formats a duration with one decimal place of seconds, for
// short durations where HH:MM:SS loses too much.
func FormatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
