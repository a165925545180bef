package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single log line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the maximum number of lines kept per stream.
	MaxBufferedLines = 100
)

// OutputHandler receives the stdout or stderr of one managed process.
// It splits the stream into lines, logs them with the process identity, and
// keeps the most recent lines so they can be reported when the process fails.
//
// OutputHandler implements io.Writer so it can be assigned to exec.Cmd.Stdout.
type OutputHandler struct {
	process string
	stream  string
	pid     int
	logger  *slog.Logger
	verbose bool

	mu      sync.Mutex
	partial []byte

	// Circular buffer for recent lines
	buffer []string
	bufIdx int
}

// NewOutputHandler creates a handler for one stream ("stdout" or "stderr") of a process.
func NewOutputHandler(process, stream string, logger *slog.Logger, verbose bool) *OutputHandler {
	return &OutputHandler{
		process: process,
		stream:  stream,
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// SetPID records the pid once the process has started.
func (h *OutputHandler) SetPID(pid int) {
	h.mu.Lock()
	h.pid = pid
	h.mu.Unlock()
}

// Write splits p into lines. An incomplete trailing line is held until the
// next Write or Flush.
func (h *OutputHandler) Write(p []byte) (int, error) {
	h.mu.Lock()
	h.partial = append(h.partial, p...)
	var lines []string
	for {
		idx := bytes.IndexByte(h.partial, '\n')
		if idx < 0 {
			break
		}
		lines = append(lines, strings.TrimRight(string(h.partial[:idx]), "\r"))
		h.partial = h.partial[idx+1:]
	}
	// A runaway line without newline is cut so memory stays bounded.
	if len(h.partial) > MaxLineLength {
		lines = append(lines, string(h.partial))
		h.partial = nil
	}
	h.mu.Unlock()

	for _, line := range lines {
		h.HandleLine(line)
	}
	return len(p), nil
}

// Flush emits any buffered partial line.
func (h *OutputHandler) Flush() {
	h.mu.Lock()
	rest := string(h.partial)
	h.partial = nil
	h.mu.Unlock()

	if rest != "" {
		h.HandleLine(rest)
	}
}

// HandleLine processes a single line of process output.
func (h *OutputHandler) HandleLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	pid := h.pid
	h.mu.Unlock()

	h.logLine(line, pid)
}

// logLine logs the line at a level derived from its content.
func (h *OutputHandler) logLine(line string, pid int) {
	if h.logger == nil {
		return
	}

	level := h.classifyLine(line)

	// In non-verbose mode, only log warnings and errors
	if !h.verbose && level < slog.LevelInfo {
		return
	}

	h.logger.Log(context.Background(), level, "process_output",
		"process", h.process,
		"stream", h.stream,
		"pid", pid,
		"line", line,
	)
}

// classifyLine maps ROS 2 and Unreal log prefixes to slog levels.
func (h *OutputHandler) classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	switch {
	case strings.Contains(lower, "[fatal]"),
		strings.Contains(lower, "[error]"),
		strings.Contains(lower, "fatal error"),
		strings.Contains(lower, "segmentation fault"),
		strings.Contains(lower, "process has died"),
		strings.Contains(lower, ": error:"):
		return slog.LevelWarn

	case strings.Contains(lower, "[warn]"),
		strings.Contains(lower, "[warning]"),
		strings.Contains(lower, ": warning:"):
		return slog.LevelInfo
	}

	return slog.LevelDebug
}

// RecentLines returns up to n of the most recent lines, oldest first.
func (h *OutputHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		if h.buffer[idx] != "" {
			lines = append(lines, h.buffer[idx])
		}
	}

	return lines
}

// ErrorPatterns are the patterns counted for failure diagnostics.
var ErrorPatterns = []string{
	"[ERROR]",
	"[FATAL]",
	"process has died",
	"Fatal error",
	"Segmentation fault",
	"Address already in use",
}

// CountErrors counts occurrences of error patterns in the buffer.
func (h *OutputHandler) CountErrors() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make(map[string]int)
	for _, line := range h.buffer {
		if line == "" {
			continue
		}
		for _, pattern := range ErrorPatterns {
			if strings.Contains(line, pattern) {
				counts[pattern]++
			}
		}
	}

	return counts
}
