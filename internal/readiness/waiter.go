// Package readiness decides when a freshly started process can be used.
//
// Every Waiter honours the same contract: Wait returns nil once the process
// is considered ready, or an error no later than the given timeout. It never
// blocks indefinitely.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNotReady is returned when a probe did not succeed within its timeout.
var ErrNotReady = errors.New("not ready")

// Modes accepted by New.
const (
	ModeDelay     = "delay"
	ModeTCP       = "tcp"
	ModeWebSocket = "websocket"
)

// Waiter blocks until a process is ready or the timeout elapses.
type Waiter interface {
	Wait(ctx context.Context, timeout time.Duration) error
}

// New returns the Waiter for mode. addr is required for the probing modes.
func New(mode, addr string, logger *slog.Logger) (Waiter, error) {
	switch mode {
	case "", ModeDelay:
		return Delay{}, nil
	case ModeTCP:
		if addr == "" {
			return nil, fmt.Errorf("readiness mode %q requires an address", mode)
		}
		return NewTCPProbe(addr, logger), nil
	case ModeWebSocket:
		if !strings.HasPrefix(addr, "ws://") && !strings.HasPrefix(addr, "wss://") {
			return nil, fmt.Errorf("readiness mode %q requires a ws:// or wss:// URL, got %q", mode, addr)
		}
		return NewWebSocketProbe(addr, logger), nil
	default:
		return nil, fmt.Errorf("unknown readiness mode %q", mode)
	}
}

// Delay waits for exactly the timeout. It does not look at the process.
type Delay struct{}

// Wait sleeps for timeout, returning early only if ctx is cancelled.
func (Delay) Wait(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ProbeFunc performs one readiness attempt.
type ProbeFunc func(ctx context.Context) error

// Poller retries a probe with backoff until it succeeds or the timeout elapses.
type Poller struct {
	Name    string
	Probe   ProbeFunc
	Backoff BackoffConfig
	Logger  *slog.Logger
}

// Wait polls until the probe succeeds. A timeout of zero or less makes a
// single attempt.
func (p *Poller) Wait(ctx context.Context, timeout time.Duration) error {
	start := time.Now()

	if timeout <= 0 {
		if err := p.Probe(ctx); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrNotReady, p.Name, err)
		}
		return nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	backoff := NewBackoff(start.UnixNano(), p.Backoff)
	var lastErr error

	for {
		err := p.Probe(probeCtx)
		if err == nil {
			p.log().Debug("readiness_probe_succeeded",
				"probe", p.Name,
				"attempts", backoff.Attempts()+1,
				"elapsed", time.Since(start).String(),
			)
			return nil
		}
		lastErr = err

		delay := backoff.Next()
		p.log().Debug("readiness_probe_retry",
			"probe", p.Name,
			"attempt", backoff.Attempts(),
			"delay", delay.String(),
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-probeCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %s after %v: %v", ErrNotReady, p.Name, timeout, lastErr)
		case <-timer.C:
		}
	}
}

func (p *Poller) log() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// NewTCPProbe polls until a TCP connection to addr can be opened.
func NewTCPProbe(addr string, logger *slog.Logger) *Poller {
	return &Poller{
		Name: "tcp " + addr,
		Probe: func(ctx context.Context) error {
			var d net.Dialer
			conn, err := d.DialContext(ctx, "tcp", addr)
			if err != nil {
				return err
			}
			return conn.Close()
		},
		Backoff: DefaultBackoffConfig(),
		Logger:  logger,
	}
}

// NewWebSocketProbe polls until a websocket handshake with url succeeds.
// rosbridge listens on ws://<host>:9090 by default.
func NewWebSocketProbe(url string, logger *slog.Logger) *Poller {
	return &Poller{
		Name: "websocket " + url,
		Probe: func(ctx context.Context) error {
			conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			if err != nil {
				if resp != nil {
					return fmt.Errorf("%w (http %d)", err, resp.StatusCode)
				}
				return err
			}
			defer conn.Close()
			return conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
		},
		Backoff: DefaultBackoffConfig(),
		Logger:  logger,
	}
}
