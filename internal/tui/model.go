package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-sim-runner/internal/job"
	"github.com/randomizedcoder/go-sim-runner/internal/orchestrator"
	"github.com/randomizedcoder/go-sim-runner/internal/process"
	"github.com/randomizedcoder/go-sim-runner/internal/stats"
)

// recentLimit is how many finished iterations the dashboard lists.
const recentLimit = 8

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// PhaseMsg reports a batch phase change.
type PhaseMsg struct {
	Phase orchestrator.Phase
}

// IterationStartMsg reports that an iteration is about to start.
type IterationStartMsg struct {
	SimulationIndex int
	Simulation      job.Simulation
	Iteration       int
}

// IterationEndMsg reports a finished iteration.
type IterationEndMsg struct {
	Result orchestrator.IterationResult
}

// ProcessStartMsg reports a spawned process.
type ProcessStartMsg struct {
	ID  process.Identity
	PID int
}

// ProcessExitMsg reports a reaped process.
type ProcessExitMsg struct {
	ID       process.Identity
	ExitCode int
	Uptime   time.Duration
}

// DoneMsg reports that the batch returned. The TUI exits on it.
type DoneMsg struct {
	Err error
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// procState is the last known state of one process.
type procState struct {
	pid      int
	running  bool
	exitCode int
	started  time.Time
}

// Model represents the TUI state.
type Model struct {
	// Configuration
	jobPath     string
	runID       string
	metricsAddr string
	statsSource StatsSource
	cancel      func()

	// Batch state
	phase        orchestrator.Phase
	simIndex     int
	simulation   job.Simulation
	iteration    int
	iterStart    time.Time
	inIteration  bool
	processes    map[process.Identity]procState
	recent       []orchestrator.IterationResult
	simulations  []stats.SimulationStats
	finished     int
	planned      int
	startTime    time.Time
	lastUpdate   time.Time
	detailedView bool

	spinner  spinner.Model
	progress progress.Model

	width  int
	height int

	stopping bool
	done     bool
	err      error
	quitting bool
}

// StatsSource provides per-simulation statistics.
// *stats.Tracker satisfies it.
type StatsSource interface {
	Snapshot() []stats.SimulationStats
	Progress() (finished, planned int)
}

// Config holds TUI configuration.
type Config struct {
	JobPath     string
	RunID       string
	MetricsAddr string
	StatsSource StatsSource

	// Cancel stops the batch. It is called on the first quit key press.
	Cancel func()
}

// New creates a new TUI model.
func New(cfg Config) Model {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = statusInfo

	m := Model{
		jobPath:     cfg.JobPath,
		runID:       cfg.RunID,
		metricsAddr: cfg.MetricsAddr,
		statsSource: cfg.StatsSource,
		cancel:      cfg.Cancel,
		processes:   make(map[process.Identity]procState, 3),
		spinner:     s,
		progress:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		startTime:   time.Now(),
		lastUpdate:  time.Now(),
		width:       80,
		height:      24,
	}
	m.refresh()
	return m
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.spinner.Tick)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.stopping || m.done {
				m.quitting = true
				return m, tea.Quit
			}
			// First press stops the batch; the TUI stays up for teardown.
			m.stopping = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		case "d":
			m.detailedView = !m.detailedView
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		m.refresh()
		m.lastUpdate = time.Now()
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case PhaseMsg:
		m.phase = msg.Phase
		return m, nil

	case IterationStartMsg:
		m.simIndex = msg.SimulationIndex
		m.simulation = msg.Simulation
		m.iteration = msg.Iteration
		m.iterStart = time.Now()
		m.inIteration = true
		delete(m.processes, process.Engine)
		delete(m.processes, process.Companion)
		return m, nil

	case IterationEndMsg:
		m.inIteration = false
		m.recent = append(m.recent, msg.Result)
		if len(m.recent) > recentLimit {
			m.recent = m.recent[len(m.recent)-recentLimit:]
		}
		m.refresh()
		return m, nil

	case ProcessStartMsg:
		m.processes[msg.ID] = procState{pid: msg.PID, running: true, exitCode: -1, started: time.Now()}
		return m, nil

	case ProcessExitMsg:
		ps := m.processes[msg.ID]
		ps.running = false
		ps.exitCode = msg.ExitCode
		m.processes[msg.ID] = ps
		return m, nil

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		m.quitting = true
		m.refresh()
		return m, tea.Quit

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.detailedView {
		return m.renderDetailedView()
	}
	return m.renderSummaryView()
}

// refresh pulls the latest statistics from the stats source.
func (m *Model) refresh() {
	if m.statsSource == nil {
		return
	}
	m.simulations = m.statsSource.Snapshot()
	m.finished, m.planned = m.statsSource.Progress()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the batch started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// Progress returns finished iterations as a fraction of planned iterations.
func (m Model) Progress() float64 {
	if m.planned == 0 {
		return 0
	}
	p := float64(m.finished) / float64(m.planned)
	if p > 1 {
		p = 1
	}
	return p
}

// Stopping reports whether the user asked the batch to stop.
func (m Model) Stopping() bool {
	return m.stopping
}

// =============================================================================
// Batch Wiring
// =============================================================================

// Sender delivers messages to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Callbacks returns orchestrator callbacks that forward batch events to p.
func Callbacks(p Sender) orchestrator.Callbacks {
	return orchestrator.Callbacks{
		OnPhase: func(phase orchestrator.Phase) {
			p.Send(PhaseMsg{Phase: phase})
		},
		OnIterationStart: func(simIndex int, sim job.Simulation, iteration int) {
			p.Send(IterationStartMsg{SimulationIndex: simIndex, Simulation: sim, Iteration: iteration})
		},
		OnIterationEnd: func(r orchestrator.IterationResult) {
			p.Send(IterationEndMsg{Result: r})
		},
		OnProcessStart: func(id process.Identity, pid int) {
			p.Send(ProcessStartMsg{ID: id, PID: pid})
		},
		OnProcessExit: func(id process.Identity, code int, uptime time.Duration) {
			p.Send(ProcessExitMsg{ID: id, ExitCode: code, Uptime: uptime})
		},
	}
}

// SendDone tells the TUI that the batch returned.
func SendDone(p Sender, err error) {
	if p != nil {
		p.Send(DoneMsg{Err: err})
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p Sender) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatPercent formats a fraction as a percentage.
func formatPercent(value float64) string {
	return fmt.Sprintf("%.1f%%", value*100)
}
