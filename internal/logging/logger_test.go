package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"Error", slog.LevelError},
		{"", slog.LevelInfo},
		{"trace", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger_VerboseEnablesDebug(t *testing.T) {
	ctx := context.Background()

	if NewLogger("json", "info", false).Enabled(ctx, slog.LevelDebug) {
		t.Error("info logger should not enable debug")
	}
	if !NewLogger("text", "info", true).Enabled(ctx, slog.LevelDebug) {
		t.Error("verbose should enable debug regardless of level")
	}
	if !NewLogger("json", "error", false).Enabled(ctx, slog.LevelError) {
		t.Error("error logger should enable error")
	}
}

func TestNewLoggerWithWriter_JSONEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "json", "info").With("run_id", "run-1")

	logger.Info("iteration_finished", "simulation", "pick_place", "iteration", 2, "reason", "timeout")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	for key, want := range map[string]any{
		"msg":        "iteration_finished",
		"run_id":     "run-1",
		"simulation": "pick_place",
		"iteration":  float64(2),
		"reason":     "timeout",
	} {
		if rec[key] != want {
			t.Errorf("%s = %v, want %v", key, rec[key], want)
		}
	}
}

func TestNewLoggerWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerWithWriter(&buf, "text", "info").Info("bridge_started", "pid", 4242)

	out := buf.String()
	if !strings.Contains(out, "msg=bridge_started") || !strings.Contains(out, "pid=4242") {
		t.Errorf("unexpected text output: %s", out)
	}
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	tests := []struct {
		level   string
		logged  []string
		dropped []string
	}{
		{"debug", []string{"debug msg", "info msg", "warn msg", "error msg"}, nil},
		{"info", []string{"info msg", "warn msg", "error msg"}, []string{"debug msg"}},
		{"warn", []string{"warn msg", "error msg"}, []string{"debug msg", "info msg"}},
		{"error", []string{"error msg"}, []string{"debug msg", "info msg", "warn msg"}},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(&buf, "text", tt.level)
			logger.Debug("debug msg")
			logger.Info("info msg")
			logger.Warn("warn msg")
			logger.Error("error msg")

			out := buf.String()
			for _, m := range tt.logged {
				if !strings.Contains(out, m) {
					t.Errorf("%q missing at level %s", m, tt.level)
				}
			}
			for _, m := range tt.dropped {
				if strings.Contains(out, m) {
					t.Errorf("%q should be filtered at level %s", m, tt.level)
				}
			}
		})
	}
}

func TestNewLoggerWithWriter_Defaults(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerWithWriter(&buf, "", "").Info("batch_starting")

	out := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(out, "{") {
		t.Errorf("default format should be JSON, got: %s", out)
	}

	// A nil writer is treated as io.Discard
	NewLoggerWithWriter(nil, "text", "info").Info("dropped")
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	var buf bytes.Buffer
	SetDefault(NewLoggerWithWriter(&buf, "text", "info"))

	slog.Info("from default logger")
	if !strings.Contains(buf.String(), "from default logger") {
		t.Error("SetDefault did not set the default logger")
	}
}

func TestNewDiscardLogger(t *testing.T) {
	logger := NewDiscardLogger()
	if logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("discard logger should only enable error level")
	}
	logger.Error("dropped")
}
