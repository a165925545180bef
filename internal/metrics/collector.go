// Package metrics provides Prometheus metrics for go-sim-runner.
//
// All metrics carry the sim_runner_ prefix. Per-simulation labels use the
// simulation name from the job description, so cardinality is bounded by the
// size of the job.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version         string
	RunID           string
	JobPath         string
	Simulations     int
	TotalIterations int
}

// Collector manages all Prometheus metrics for a batch.
type Collector struct {
	// --- Batch overview ---
	info              *prometheus.GaugeVec
	simulations       prometheus.Gauge
	iterationsPlanned prometheus.Gauge
	batchProgress     prometheus.Gauge
	elapsedSeconds    prometheus.Gauge

	// --- Iterations ---
	iterationsTotal   *prometheus.CounterVec
	iterationDuration *prometheus.HistogramVec
	bridgeRestarts    prometheus.Counter

	// --- Processes ---
	processStarts   *prometheus.CounterVec
	launchFailures  *prometheus.CounterVec
	processExits    *prometheus.CounterVec
	forcedKills     *prometheus.CounterVec
	activeProcesses *prometheus.GaugeVec
	processUptime   *prometheus.HistogramVec

	totalIterations int
	startTime       time.Time

	// For summary generation
	mu                sync.Mutex
	active            int
	peakActive        int
	totalStarts       int64
	totalLaunchErrors int64
	totalForcedKills  int64
	iterationsDone    int
	exitCodes         map[int]int64
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sim_runner_info",
				Help: "Information about the batch (value always 1)",
			},
			[]string{"version", "run_id", "job"},
		),
		simulations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sim_runner_simulations",
			Help: "Number of simulations in the job description",
		}),
		iterationsPlanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sim_runner_iterations_planned",
			Help: "Total iterations the batch will attempt",
		}),
		batchProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sim_runner_batch_progress",
			Help: "Finished iterations as a fraction of planned iterations (0.0 to 1.0)",
		}),
		elapsedSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sim_runner_elapsed_seconds",
			Help: "Seconds since the batch started",
		}),
		iterationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sim_runner_iterations_total",
				Help: "Finished iterations by simulation and termination reason",
			},
			[]string{"simulation", "reason"},
		),
		iterationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "sim_runner_iteration_duration_seconds",
				Help: "Wall-clock duration of an iteration, engine start to teardown",
				Buckets: []float64{
					1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800, 3600,
				},
			},
			[]string{"simulation"},
		),
		bridgeRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sim_runner_bridge_restarts_total",
			Help: "Bridge restarts between simulations (restartBridge)",
		}),
		processStarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sim_runner_process_starts_total",
				Help: "Processes successfully spawned",
			},
			[]string{"process"},
		),
		launchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sim_runner_launch_failures_total",
				Help: "Processes that could not be spawned or never became ready",
			},
			[]string{"process"},
		),
		processExits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sim_runner_process_exits_total",
				Help: "Process exits by category (success, error, signal)",
			},
			[]string{"process", "category"},
		),
		forcedKills: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sim_runner_forced_kills_total",
				Help: "Processes killed after the stop grace period",
			},
			[]string{"process"},
		),
		activeProcesses: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sim_runner_active_processes",
				Help: "Currently running processes",
			},
			[]string{"process"},
		),
		processUptime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sim_runner_process_uptime_seconds",
				Help:    "Process lifetime distribution",
				Buckets: []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600, 7200},
			},
			[]string{"process"},
		),
		totalIterations: cfg.TotalIterations,
		startTime:       time.Now(),
		exitCodes:       make(map[int]int64),
	}

	registry.MustRegister(
		c.info,
		c.simulations,
		c.iterationsPlanned,
		c.batchProgress,
		c.elapsedSeconds,
		c.iterationsTotal,
		c.iterationDuration,
		c.bridgeRestarts,
		c.processStarts,
		c.launchFailures,
		c.processExits,
		c.forcedKills,
		c.activeProcesses,
		c.processUptime,
	)

	// Set initial values
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	c.info.WithLabelValues(version, cfg.RunID, cfg.JobPath).Set(1)
	c.simulations.Set(float64(cfg.Simulations))
	c.iterationsPlanned.Set(float64(cfg.TotalIterations))

	return c
}

// =============================================================================
// Event Recording Methods
// =============================================================================

// ProcessStarted records a successful spawn.
func (c *Collector) ProcessStarted(process string) {
	c.processStarts.WithLabelValues(process).Inc()
	c.activeProcesses.WithLabelValues(process).Inc()

	c.mu.Lock()
	c.totalStarts++
	c.active++
	if c.active > c.peakActive {
		c.peakActive = c.active
	}
	c.mu.Unlock()
}

// LaunchFailed records a process that could not be started.
func (c *Collector) LaunchFailed(process string) {
	c.launchFailures.WithLabelValues(process).Inc()

	c.mu.Lock()
	c.totalLaunchErrors++
	c.mu.Unlock()
}

// RecordExit records a process exit event.
func (c *Collector) RecordExit(process string, exitCode int, uptime time.Duration) {
	c.processExits.WithLabelValues(process, ExitCategory(exitCode)).Inc()
	c.processUptime.WithLabelValues(process).Observe(uptime.Seconds())
	c.activeProcesses.WithLabelValues(process).Dec()

	c.mu.Lock()
	c.exitCodes[exitCode]++
	c.active--
	c.mu.Unlock()
}

// ForcedKill records a process that needed SIGKILL.
func (c *Collector) ForcedKill(process string) {
	c.forcedKills.WithLabelValues(process).Inc()

	c.mu.Lock()
	c.totalForcedKills++
	c.mu.Unlock()
}

// IterationFinished records one finished iteration and updates progress.
func (c *Collector) IterationFinished(simulation, reason string, d time.Duration) {
	c.iterationsTotal.WithLabelValues(simulation, reason).Inc()
	c.iterationDuration.WithLabelValues(simulation).Observe(d.Seconds())

	c.mu.Lock()
	c.iterationsDone++
	done := c.iterationsDone
	c.mu.Unlock()

	if c.totalIterations > 0 {
		c.batchProgress.Set(float64(done) / float64(c.totalIterations))
	}
	c.elapsedSeconds.Set(time.Since(c.startTime).Seconds())
}

// BridgeRestarted records a bridge restart between simulations.
func (c *Collector) BridgeRestarted() {
	c.bridgeRestarts.Inc()
}

// ExitCategory buckets an exit code the way the exit counter labels it.
func ExitCategory(exitCode int) string {
	switch {
	case exitCode == 0:
		return "success"
	case exitCode > 128:
		return "signal"
	default:
		return "error"
	}
}

// =============================================================================
// Summary Generation
// =============================================================================

// Summary holds process-level totals for the exit summary.
type Summary struct {
	Duration       time.Duration
	PeakActive     int
	TotalStarts    int64
	LaunchFailures int64
	ForcedKills    int64
	Iterations     int
	ExitCodes      map[int]int64
}

// GenerateSummary creates a summary of the run.
func (c *Collector) GenerateSummary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Summary{
		Duration:       time.Since(c.startTime),
		PeakActive:     c.peakActive,
		TotalStarts:    c.totalStarts,
		LaunchFailures: c.totalLaunchErrors,
		ForcedKills:    c.totalForcedKills,
		Iterations:     c.iterationsDone,
		ExitCodes:      make(map[int]int64, len(c.exitCodes)),
	}

	// Copy exit codes
	for code, count := range c.exitCodes {
		s.ExitCodes[code] = count
	}

	return s
}

// PeakActive returns the peak number of concurrently running processes.
func (c *Collector) PeakActive() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peakActive
}

// TotalStarts returns the total number of process starts.
func (c *Collector) TotalStarts() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalStarts
}
