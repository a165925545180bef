// Package process provides abstractions for building the external commands
// the orchestrator runs: the bridge, the engine and the companion launch file.
package process

import (
	"context"
	"os/exec"
	"strings"
)

// Identity names the role a managed process plays in a batch.
type Identity int

const (
	// Bridge is the long-lived middleware bridge spanning the batch.
	Bridge Identity = iota

	// Engine is the 3D engine instance started fresh per iteration.
	Engine

	// Companion is the launch-file process driving one iteration.
	Companion
)

// String returns a human-readable name for the identity.
func (i Identity) String() string {
	switch i {
	case Bridge:
		return "bridge"
	case Engine:
		return "engine"
	case Companion:
		return "companion"
	default:
		return "unknown"
	}
}

// Builder creates executable commands.
// This interface allows the supervisor to be process-agnostic.
type Builder interface {
	// BuildCommand returns a ready-to-start command.
	// The command should NOT be started yet.
	BuildCommand(ctx context.Context) (*exec.Cmd, error)

	// Identity returns the role of the process this builder creates.
	Identity() Identity
}

// Command is a Builder for a fixed executable and argument list.
type Command struct {
	identity Identity
	path     string
	args     []string
}

// NewCommand returns a Builder that runs path with args.
func NewCommand(identity Identity, path string, args ...string) *Command {
	return &Command{
		identity: identity,
		path:     path,
		args:     args,
	}
}

// BuildCommand creates an exec.Cmd for the configured executable.
// The context is not bound to the command; lifetime is owned by the supervisor.
func (c *Command) BuildCommand(ctx context.Context) (*exec.Cmd, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return exec.Command(c.path, c.args...), nil
}

// Identity returns the role of this command.
func (c *Command) Identity() Identity {
	return c.identity
}

// Path returns the executable path.
func (c *Command) Path() string {
	return c.path
}

// Args returns a copy of the argument list.
func (c *Command) Args() []string {
	return append([]string(nil), c.args...)
}

// CommandString returns the command that would be executed (for debugging).
func (c *Command) CommandString() string {
	parts := make([]string, 0, len(c.args)+1)
	parts = append(parts, quote(c.path))
	for _, a := range c.args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

// quote wraps arguments containing whitespace so printed commands can be pasted.
func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}
