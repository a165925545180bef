package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config) error {
	var errs []error

	// Job path is required unless we are only writing an example
	if cfg.JobPath == "" && cfg.InitPath == "" {
		errs = append(errs, ValidationError{
			Field:   "config",
			Message: "job description path is required",
		})
	}

	if cfg.MaxIterations < 0 {
		errs = append(errs, ValidationError{
			Field:   "max_iterations",
			Message: "must not be negative",
		})
	}

	validPolicies := map[string]bool{FailureContinue: true, FailureAbort: true}
	if !validPolicies[cfg.FailurePolicy] {
		errs = append(errs, ValidationError{
			Field:   "failure_policy",
			Message: fmt.Sprintf("must be 'continue' or 'abort' (got %q)", cfg.FailurePolicy),
		})
	}

	if strings.TrimSpace(cfg.Launcher) == "" {
		errs = append(errs, ValidationError{
			Field:   "launcher",
			Message: "must not be empty",
		})
	}
	if cfg.BridgePackage == "" || cfg.BridgeLaunchFile == "" {
		errs = append(errs, ValidationError{
			Field:   "bridge",
			Message: "bridge package and launch file are required",
		})
	}

	validOutputs := map[string]bool{"log": true, "inherit": true, "discard": true}
	if !validOutputs[cfg.ChildOutput] {
		errs = append(errs, ValidationError{
			Field:   "child_output",
			Message: fmt.Sprintf("must be 'log', 'inherit' or 'discard' (got %q)", cfg.ChildOutput),
		})
	}

	// The dashboard owns the terminal
	if cfg.TUIEnabled && cfg.ChildOutput == "inherit" {
		errs = append(errs, ValidationError{
			Field:   "child_output",
			Message: "'inherit' cannot be combined with -tui",
		})
	}

	if cfg.PollInterval < 10*time.Millisecond {
		errs = append(errs, ValidationError{
			Field:   "poll_interval",
			Message: fmt.Sprintf("must be at least 10ms (got %v)", cfg.PollInterval),
		})
	}
	if cfg.StopGrace <= 0 {
		errs = append(errs, ValidationError{
			Field:   "stop_grace",
			Message: "must be positive",
		})
	}

	switch cfg.Readiness {
	case "delay":
	case "tcp":
		if cfg.ReadinessAddr == "" {
			errs = append(errs, ValidationError{
				Field:   "readiness_addr",
				Message: "required for -readiness tcp",
			})
		} else if strings.Contains(cfg.ReadinessAddr, "://") {
			errs = append(errs, ValidationError{
				Field:   "readiness_addr",
				Message: "must be host:port for -readiness tcp, not a URL",
			})
		}
	case "websocket":
		if err := validateWebSocketURL(cfg.ReadinessAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "readiness_addr",
				Message: err.Error(),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "readiness",
			Message: fmt.Sprintf("must be 'delay', 'tcp' or 'websocket' (got %q)", cfg.Readiness),
		})
	}

	if cfg.BridgeReadyAddr != "" {
		if err := validateWebSocketURL(cfg.BridgeReadyAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "bridge_ready_addr",
				Message: err.Error(),
			})
		}
		if cfg.BridgeReadyTimeout <= 0 {
			errs = append(errs, ValidationError{
				Field:   "bridge_ready_timeout",
				Message: "must be positive",
			})
		}
	}

	// Log format must be valid
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	// Return combined errors
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// validateWebSocketURL checks that rawURL is a ws:// or wss:// URL with a host.
func validateWebSocketURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("websocket URL is required")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("URL scheme must be ws or wss (got %q)", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must have a host")
	}

	return nil
}

// ApplyCheckMode modifies config for --check mode.
func ApplyCheckMode(cfg *Config) {
	cfg.MaxIterations = 1
	cfg.FailurePolicy = FailureAbort
	cfg.Verbose = true
}
