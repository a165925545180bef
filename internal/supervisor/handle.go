package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/randomizedcoder/go-sim-runner/internal/logging"
	"github.com/randomizedcoder/go-sim-runner/internal/process"
)

// OutputMode selects where child stdout/stderr goes.
type OutputMode string

const (
	// OutputLog routes each line into the structured logger.
	OutputLog OutputMode = "log"

	// OutputInherit connects the child directly to our stdout/stderr.
	OutputInherit OutputMode = "inherit"

	// OutputDiscard drops child output.
	OutputDiscard OutputMode = "discard"
)

// outputDrainTimeout bounds how long reap waits for the output pipes to
// reach EOF after the process exits. A grandchild that inherited the pipes
// (a ros2 launch node, say) can hold them open well past the leader's exit;
// its later output is still logged, but the exit is reported without it.
const outputDrainTimeout = 200 * time.Millisecond

// recentOutputLines is how many stderr lines are logged when a process fails.
const recentOutputLines = 20

// ErrForcedKill is returned by Shutdown when the grace period ran out.
var ErrForcedKill = errors.New("process did not exit gracefully")

// LaunchError reports that a process could not be built or spawned.
// It is scoped to that one process.
type LaunchError struct {
	Identity process.Identity
	Err      error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Identity, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Callbacks contains optional callback functions for process events.
type Callbacks struct {
	// OnStateChange is called when the process state changes.
	OnStateChange func(id process.Identity, oldState, newState State)

	// OnStart is called once the process has been spawned.
	OnStart func(id process.Identity, pid int)

	// OnExit is called after the process has been reaped.
	OnExit func(id process.Identity, exitCode int, uptime time.Duration)
}

// Options configures Start.
type Options struct {
	Logger    *slog.Logger
	Output    OutputMode
	Verbose   bool
	Callbacks Callbacks
}

// Handle owns one running OS process. It is created by Start and is not
// reused; the process is reaped in the background so Alive never blocks.
type Handle struct {
	identity  process.Identity
	cmd       *exec.Cmd
	pid       int
	logger    *slog.Logger
	callbacks Callbacks
	startTime time.Time

	stdout  *logging.OutputHandler
	stderr  *logging.OutputHandler
	drained chan struct{}

	state   State
	stateMu sync.RWMutex

	done     chan struct{}
	exitCode int
	uptime   time.Duration

	stopOnce      sync.Once
	stopErr       error
	stopRequested atomic.Bool
	forced        atomic.Bool
}

// Start builds and spawns the process described by b. Any failure to build
// or spawn the command is returned as a *LaunchError.
func Start(ctx context.Context, b process.Builder, opts Options) (*Handle, error) {
	id := b.Identity()
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	h := &Handle{
		identity:  id,
		logger:    logger,
		callbacks: opts.Callbacks,
		state:     StateStarting,
		done:      make(chan struct{}),
	}

	cmd, err := b.BuildCommand(ctx)
	if err != nil {
		return nil, &LaunchError{Identity: id, Err: err}
	}

	switch opts.Output {
	case OutputInherit:
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	case OutputDiscard:
	default:
		h.stdout = logging.NewOutputHandler(id.String(), "stdout", logger, opts.Verbose)
		h.stderr = logging.NewOutputHandler(id.String(), "stderr", logger, opts.Verbose)
	}

	// Our own pipes rather than exec's copy goroutines, so Wait returns as
	// soon as the process exits even if a grandchild keeps them open.
	var readers, writers []*os.File
	if h.stdout != nil {
		readers, writers, err = outputPipes(2)
		if err != nil {
			return nil, &LaunchError{Identity: id, Err: err}
		}
		cmd.Stdout = writers[0]
		cmd.Stderr = writers[1]
	}

	// Own process group so a stop reaches everything the process spawned
	setProcAttr(cmd)

	h.startTime = time.Now()
	err = cmd.Start()
	closeFiles(writers)
	if err != nil {
		closeFiles(readers)
		logger.Error("failed_to_start_process",
			"process", id.String(),
			"path", cmd.Path,
			"error", err,
		)
		return nil, &LaunchError{Identity: id, Err: err}
	}

	h.cmd = cmd
	h.pid = cmd.Process.Pid
	if h.stdout != nil {
		h.stdout.SetPID(h.pid)
		h.stderr.SetPID(h.pid)
		h.drained = make(chan struct{})
		go drain(h.drained, readers, []io.Writer{h.stdout, h.stderr})
	}
	h.setState(StateRunning)

	logger.Info("process_started",
		"process", id.String(),
		"pid", h.pid,
	)

	if h.callbacks.OnStart != nil {
		h.callbacks.OnStart(id, h.pid)
	}

	go h.reap()

	return h, nil
}

// reap waits for the process and records its exit.
func (h *Handle) reap() {
	waitErr := h.cmd.Wait()
	h.uptime = time.Since(h.startTime)
	h.exitCode = extractExitCode(waitErr)

	if h.stdout != nil {
		select {
		case <-h.drained:
		case <-time.After(outputDrainTimeout):
			h.logger.Debug("process_output_still_open",
				"process", h.identity.String(),
				"pid", h.pid,
			)
		}
		h.stdout.Flush()
		h.stderr.Flush()
	}

	newState := StateStopped
	if h.exitCode != 0 && !h.stopRequested.Load() {
		newState = StateFailed
	}

	attrs := []any{
		"process", h.identity.String(),
		"pid", h.pid,
		"exit_code", h.exitCode,
		"uptime", h.uptime.String(),
		"stop_requested", h.stopRequested.Load(),
	}
	if newState == StateFailed && h.stderr != nil {
		attrs = append(attrs, "recent_output", h.stderr.RecentLines(recentOutputLines))
		if counts := h.stderr.CountErrors(); len(counts) > 0 {
			attrs = append(attrs, "error_patterns", counts)
		}
	}
	h.logger.Info("process_exited", attrs...)

	h.setState(newState)

	if h.callbacks.OnExit != nil {
		h.callbacks.OnExit(h.identity, h.exitCode, h.uptime)
	}

	close(h.done)
}

// Alive reports whether the process has not yet been reaped. Non-blocking.
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Stop asks the process to terminate and returns immediately.
// Calling it more than once, or after the process exited, is a no-op.
func (h *Handle) Stop() error {
	if !h.Alive() {
		return nil
	}
	h.stopOnce.Do(func() {
		h.stopRequested.Store(true)
		h.logger.Debug("process_stop_requested",
			"process", h.identity.String(),
			"pid", h.pid,
		)
		h.stopErr = terminate(h.cmd.Process)
	})
	return h.stopErr
}

// AwaitExit blocks until the process has exited and returns its exit code.
func (h *Handle) AwaitExit(ctx context.Context) (int, error) {
	select {
	case <-h.done:
		return h.exitCode, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Shutdown stops the process and waits up to grace for it to exit before
// killing it. It returns ErrForcedKill together with the exit code when the
// kill was needed.
func (h *Handle) Shutdown(grace time.Duration) (int, error) {
	if err := h.Stop(); err != nil {
		h.logger.Warn("process_stop_failed",
			"process", h.identity.String(),
			"pid", h.pid,
			"error", err,
		)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-h.done:
		return h.exitCode, nil
	case <-timer.C:
	}

	h.logger.Warn("force_killing_process",
		"process", h.identity.String(),
		"pid", h.pid,
		"grace", grace.String(),
	)
	h.forced.Store(true)
	if err := kill(h.cmd.Process); err != nil {
		h.logger.Error("process_kill_failed",
			"process", h.identity.String(),
			"pid", h.pid,
			"error", err,
		)
	}

	<-h.done
	return h.exitCode, ErrForcedKill
}

// Identity returns the role of the managed process.
func (h *Handle) Identity() process.Identity {
	return h.identity
}

// Pid returns the OS process id.
func (h *Handle) Pid() int {
	return h.pid
}

// ExitCode returns the exit code, or -1 while the process is alive.
func (h *Handle) ExitCode() int {
	if h.Alive() {
		return -1
	}
	return h.exitCode
}

// Uptime returns how long the process has been (or was) running.
func (h *Handle) Uptime() time.Duration {
	if h.Alive() {
		return time.Since(h.startTime)
	}
	return h.uptime
}

// StopRequested reports whether Stop was called before the process exited.
func (h *Handle) StopRequested() bool {
	return h.stopRequested.Load()
}

// Forced reports whether Shutdown had to kill the process.
func (h *Handle) Forced() bool {
	return h.forced.Load()
}

// RecentOutput returns up to n recent stderr lines when output is logged.
func (h *Handle) RecentOutput(n int) []string {
	if h.stderr == nil {
		return nil
	}
	return h.stderr.RecentLines(n)
}

// State returns the current state of the process.
func (h *Handle) State() State {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.state
}

// setState updates the state and calls the callback if registered.
func (h *Handle) setState(newState State) {
	h.stateMu.Lock()
	oldState := h.state
	h.state = newState
	h.stateMu.Unlock()

	if h.callbacks.OnStateChange != nil && oldState != newState {
		h.callbacks.OnStateChange(h.identity, oldState, newState)
	}
}

// outputPipes creates n pipes and returns their read and write ends.
func outputPipes(n int) (readers, writers []*os.File, err error) {
	for i := 0; i < n; i++ {
		r, w, perr := os.Pipe()
		if perr != nil {
			closeFiles(readers)
			closeFiles(writers)
			return nil, nil, fmt.Errorf("create output pipe: %w", perr)
		}
		readers = append(readers, r)
		writers = append(writers, w)
	}
	return readers, writers, nil
}

func closeFiles(files []*os.File) {
	for _, f := range files {
		f.Close()
	}
}

// drain copies each reader into its writer until EOF, then closes done.
func drain(done chan<- struct{}, readers []*os.File, writers []io.Writer) {
	var wg sync.WaitGroup
	for i := range readers {
		wg.Add(1)
		go func(r *os.File, w io.Writer) {
			defer wg.Done()
			defer r.Close()
			_, _ = io.Copy(w, r)
		}(readers[i], writers[i])
	}
	wg.Wait()
	close(done)
}

// signalProcess signals p directly, treating an already reaped process as success.
func signalProcess(p *os.Process, sig os.Signal) error {
	if err := p.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// extractExitCode extracts the exit code from a Wait() error.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// Signal exit: 128 + signal number
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}

	// Unknown error, assume exit code 1
	return 1
}
