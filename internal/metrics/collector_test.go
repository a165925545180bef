package metrics

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// =============================================================================
// Test Helpers
// =============================================================================

// newTestCollector creates a collector with a test registry.
func newTestCollector(cfg CollectorConfig) (*Collector, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	c := NewCollectorWithRegistry(cfg, registry)
	return c, registry
}

// findMetric returns the sample of family name whose labels include want.
func findMetric(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m.GetLabel(), want) {
				return m
			}
		}
	}
	return nil
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, lp := range pairs {
		if v, ok := want[lp.GetName()]; ok {
			if v != lp.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	m := findMetric(t, reg, name, labels)
	if m == nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	m := findMetric(t, reg, name, labels)
	if m == nil {
		t.Fatalf("gauge %s%v not found", name, labels)
	}
	return m.GetGauge().GetValue()
}

func testConfig() CollectorConfig {
	return CollectorConfig{
		Version:         "1.2.3",
		RunID:           "run-1",
		JobPath:         "simulation_config.json",
		Simulations:     2,
		TotalIterations: 4,
	}
}

// =============================================================================
// Tests: NewCollector
// =============================================================================

func TestNewCollector(t *testing.T) {
	_, reg := newTestCollector(testConfig())

	info := gaugeValue(t, reg, "sim_runner_info", map[string]string{
		"version": "1.2.3",
		"run_id":  "run-1",
		"job":     "simulation_config.json",
	})
	if info != 1 {
		t.Errorf("sim_runner_info = %v, want 1", info)
	}
	if v := gaugeValue(t, reg, "sim_runner_iterations_planned", nil); v != 4 {
		t.Errorf("iterations_planned = %v, want 4", v)
	}
	if v := gaugeValue(t, reg, "sim_runner_simulations", nil); v != 2 {
		t.Errorf("simulations = %v, want 2", v)
	}
}

func TestNewCollector_DefaultVersion(t *testing.T) {
	_, reg := newTestCollector(CollectorConfig{RunID: "r"})

	if m := findMetric(t, reg, "sim_runner_info", map[string]string{"version": "dev"}); m == nil {
		t.Error("empty version should be reported as dev")
	}
}

func TestNewCollector_SeparateRegistries(t *testing.T) {
	// Two collectors must not collide
	newTestCollector(testConfig())
	newTestCollector(testConfig())
}

// =============================================================================
// Tests: Event Recording
// =============================================================================

func TestCollector_ProcessLifecycle(t *testing.T) {
	c, reg := newTestCollector(testConfig())

	c.ProcessStarted("bridge")
	c.ProcessStarted("engine")
	c.ProcessStarted("companion")

	if v := gaugeValue(t, reg, "sim_runner_active_processes", map[string]string{"process": "engine"}); v != 1 {
		t.Errorf("active engine = %v, want 1", v)
	}
	if c.PeakActive() != 3 {
		t.Errorf("PeakActive() = %d, want 3", c.PeakActive())
	}

	c.RecordExit("engine", 143, 30*time.Second)
	c.RecordExit("companion", 0, 29*time.Second)

	if v := gaugeValue(t, reg, "sim_runner_active_processes", map[string]string{"process": "engine"}); v != 0 {
		t.Errorf("active engine after exit = %v, want 0", v)
	}
	if v := counterValue(t, reg, "sim_runner_process_exits_total", map[string]string{"process": "engine", "category": "signal"}); v != 1 {
		t.Errorf("engine signal exits = %v, want 1", v)
	}
	if v := counterValue(t, reg, "sim_runner_process_exits_total", map[string]string{"process": "companion", "category": "success"}); v != 1 {
		t.Errorf("companion success exits = %v, want 1", v)
	}
	if c.TotalStarts() != 3 {
		t.Errorf("TotalStarts() = %d, want 3", c.TotalStarts())
	}
	if c.PeakActive() != 3 {
		t.Errorf("PeakActive() should not drop, got %d", c.PeakActive())
	}
}

func TestCollector_LaunchFailedAndForcedKill(t *testing.T) {
	c, reg := newTestCollector(testConfig())

	c.LaunchFailed("companion")
	c.LaunchFailed("companion")
	c.ForcedKill("engine")

	if v := counterValue(t, reg, "sim_runner_launch_failures_total", map[string]string{"process": "companion"}); v != 2 {
		t.Errorf("launch failures = %v, want 2", v)
	}
	if v := counterValue(t, reg, "sim_runner_forced_kills_total", map[string]string{"process": "engine"}); v != 1 {
		t.Errorf("forced kills = %v, want 1", v)
	}

	s := c.GenerateSummary()
	if s.LaunchFailures != 2 || s.ForcedKills != 1 {
		t.Errorf("summary = %+v", s)
	}
}

func TestCollector_IterationFinished(t *testing.T) {
	c, reg := newTestCollector(testConfig())

	c.IterationFinished("pick_place", "timeout", 2*time.Second)
	c.IterationFinished("pick_place", "process_exited", time.Second)

	if v := counterValue(t, reg, "sim_runner_iterations_total", map[string]string{"simulation": "pick_place", "reason": "timeout"}); v != 1 {
		t.Errorf("timeout iterations = %v, want 1", v)
	}
	if v := gaugeValue(t, reg, "sim_runner_batch_progress", nil); v != 0.5 {
		t.Errorf("batch_progress = %v, want 0.5", v)
	}

	m := findMetric(t, reg, "sim_runner_iteration_duration_seconds", map[string]string{"simulation": "pick_place"})
	if m == nil {
		t.Fatal("iteration duration histogram missing")
	}
	if got := m.GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("histogram sample count = %d, want 2", got)
	}
	if got := m.GetHistogram().GetSampleSum(); got != 3 {
		t.Errorf("histogram sample sum = %v, want 3", got)
	}
}

func TestCollector_BridgeRestarted(t *testing.T) {
	c, reg := newTestCollector(testConfig())

	c.BridgeRestarted()

	if v := counterValue(t, reg, "sim_runner_bridge_restarts_total", nil); v != 1 {
		t.Errorf("bridge restarts = %v, want 1", v)
	}
}

func TestExitCategory(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "success"},
		{1, "error"},
		{3, "error"},
		{128, "error"},
		{137, "signal"},
		{143, "signal"},
	}

	for _, tt := range tests {
		if got := ExitCategory(tt.code); got != tt.want {
			t.Errorf("ExitCategory(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

// =============================================================================
// Tests: Summary
// =============================================================================

func TestCollector_GenerateSummary(t *testing.T) {
	c, _ := newTestCollector(testConfig())

	c.ProcessStarted("engine")
	c.RecordExit("engine", 0, time.Second)
	c.ProcessStarted("engine")
	c.RecordExit("engine", 143, time.Second)
	c.IterationFinished("a", "timeout", time.Second)

	s := c.GenerateSummary()
	if s.TotalStarts != 2 {
		t.Errorf("TotalStarts = %d, want 2", s.TotalStarts)
	}
	if s.ExitCodes[0] != 1 || s.ExitCodes[143] != 1 {
		t.Errorf("ExitCodes = %v", s.ExitCodes)
	}
	if s.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", s.Iterations)
	}
	if s.Duration <= 0 {
		t.Error("Duration should be positive")
	}

	// Summary is a copy
	s.ExitCodes[0] = 99
	if c.GenerateSummary().ExitCodes[0] != 1 {
		t.Error("GenerateSummary should copy exit codes")
	}
}

func TestCollector_GenerateSummary_Empty(t *testing.T) {
	c, _ := newTestCollector(CollectorConfig{})

	s := c.GenerateSummary()
	if s.TotalStarts != 0 || len(s.ExitCodes) != 0 || s.PeakActive != 0 {
		t.Errorf("empty summary = %+v", s)
	}
}

// =============================================================================
// Tests: Textfile and Server
// =============================================================================

func TestWriteTextfile(t *testing.T) {
	c, reg := newTestCollector(testConfig())
	c.IterationFinished("pick_place", "timeout", time.Second)

	path := filepath.Join(t.TempDir(), "sim_runner.prom")
	if err := WriteTextfile(reg, path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{
		"# TYPE sim_runner_iterations_total counter",
		`sim_runner_iterations_total{reason="timeout",simulation="pick_place"} 1`,
		`sim_runner_info{job="simulation_config.json",run_id="run-1",version="1.2.3"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("textfile missing %q", want)
		}
	}

	// No temp files left behind
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}
}

func TestWriteTextfile_BadDirectory(t *testing.T) {
	_, reg := newTestCollector(testConfig())

	err := WriteTextfile(reg, filepath.Join(t.TempDir(), "missing", "x.prom"))
	if err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestServer(t *testing.T) {
	_, reg := newTestCollector(testConfig())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := NewServer("127.0.0.1:0", reg, logger)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Shutdown(context.Background())

	base := "http://" + srv.Addr()

	resp, err := http.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d", resp.StatusCode)
	}

	resp, err = http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "sim_runner_iterations_planned 4") {
		t.Errorf("/metrics missing planned iterations:\n%s", body)
	}
}

func TestServer_BindError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	first := NewServer("127.0.0.1:0", prometheus.NewRegistry(), logger)
	if err := first.Start(); err != nil {
		t.Fatal(err)
	}
	defer first.Shutdown(context.Background())

	second := NewServer(first.Addr(), prometheus.NewRegistry(), logger)
	if err := second.Start(); err == nil {
		second.Shutdown(context.Background())
		t.Error("expected bind error on a port in use")
	}
}

// =============================================================================
// Tests: Thread Safety
// =============================================================================

func TestCollector_ThreadSafety(t *testing.T) {
	c, reg := newTestCollector(testConfig())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.ProcessStarted("engine")
				c.RecordExit("engine", j%2, time.Second)
				c.LaunchFailed("companion")
				c.IterationFinished("sim", "timeout", time.Second)
				_ = c.GenerateSummary()
				_ = c.PeakActive()
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			_, _ = reg.Gather()
		}
	}()
	wg.Wait()

	if c.TotalStarts() != 500 {
		t.Errorf("TotalStarts() = %d, want 500", c.TotalStarts())
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkCollector_IterationFinished(b *testing.B) {
	c, _ := newTestCollector(testConfig())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.IterationFinished("sim", "timeout", time.Second)
	}
}
