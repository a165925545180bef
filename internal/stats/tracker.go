// Package stats tracks per-simulation iteration statistics for a batch and
// formats the exit summary.
package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

// Iteration termination reasons as reported by the orchestrator.
const (
	ReasonProcessExited = "process_exited"
	ReasonTimeout       = "timeout"
	ReasonInterrupted   = "interrupted"
	ReasonFailed        = "failed"
)

// SimulationStats is a point-in-time copy of one simulation's statistics.
type SimulationStats struct {
	Index   int
	Name    string
	Planned int

	// Finished counts iterations that reached teardown, whatever the reason.
	Finished       int
	Reasons        map[string]int
	LaunchFailures int

	TotalDuration time.Duration
	MinDuration   time.Duration
	MaxDuration   time.Duration

	// Iteration duration percentiles from a t-digest. Zero until the first
	// iteration finishes.
	P50 time.Duration
	P95 time.Duration
	P99 time.Duration
}

// MeanDuration returns the mean iteration duration.
func (s SimulationStats) MeanDuration() time.Duration {
	if s.Finished == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.Finished)
}

// simulationState is the mutable record behind SimulationStats.
type simulationState struct {
	name           string
	planned        int
	finished       int
	reasons        map[string]int
	launchFailures int

	total time.Duration
	min   time.Duration
	max   time.Duration

	digest *tdigest.TDigest // not thread-safe, guarded by Tracker.mu
}

// Tracker collects iteration outcomes per simulation. Simulations are keyed by
// their index in the job description since names need not be unique.
//
// Thread-safe: callbacks from the orchestrator and reads from the TUI may run
// concurrently.
type Tracker struct {
	mu        sync.Mutex
	sims      map[int]*simulationState
	startTime time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		sims:      make(map[int]*simulationState),
		startTime: time.Now(),
	}
}

// Plan registers a simulation and its planned iteration count.
// Calling Plan again for the same index updates name and count only.
func (t *Tracker) Plan(index int, name string, iterations int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.get(index)
	s.name = name
	s.planned = iterations
}

// RecordIteration records one finished iteration.
func (t *Tracker) RecordIteration(index int, reason string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.get(index)
	s.finished++
	s.reasons[reason]++
	s.total += d
	if s.finished == 1 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
	s.digest.Add(float64(d), 1)
}

// RecordLaunchFailure records an engine or companion that failed to launch
// or never became ready.
func (t *Tracker) RecordLaunchFailure(index int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.get(index).launchFailures++
}

// get returns the state for index, creating it. Caller holds t.mu.
func (t *Tracker) get(index int) *simulationState {
	s, ok := t.sims[index]
	if !ok {
		s = &simulationState{
			reasons: make(map[string]int),
			digest:  tdigest.NewWithCompression(100),
		}
		t.sims[index] = s
	}
	return s
}

// Snapshot returns a copy of every simulation's statistics in index order.
func (t *Tracker) Snapshot() []SimulationStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]SimulationStats, 0, len(t.sims))
	for index, s := range t.sims {
		st := SimulationStats{
			Index:          index,
			Name:           s.name,
			Planned:        s.planned,
			Finished:       s.finished,
			Reasons:        make(map[string]int, len(s.reasons)),
			LaunchFailures: s.launchFailures,
			TotalDuration:  s.total,
			MinDuration:    s.min,
			MaxDuration:    s.max,
		}
		for r, n := range s.reasons {
			st.Reasons[r] = n
		}
		if s.digest.Count() > 0 {
			st.P50 = time.Duration(s.digest.Quantile(0.50))
			st.P95 = time.Duration(s.digest.Quantile(0.95))
			st.P99 = time.Duration(s.digest.Quantile(0.99))
		}
		out = append(out, st)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Progress returns finished and planned iteration totals across simulations.
func (t *Tracker) Progress() (finished, planned int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range t.sims {
		finished += s.finished
		planned += s.planned
	}
	return finished, planned
}

// Failures returns the number of iterations that ended with ReasonFailed.
func (t *Tracker) Failures() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, s := range t.sims {
		n += s.reasons[ReasonFailed]
	}
	return n
}

// Elapsed returns time since the tracker was created.
func (t *Tracker) Elapsed() time.Duration {
	return time.Since(t.startTime)
}
