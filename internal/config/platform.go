package config

import (
	"fmt"
	"runtime"
)

// Default engine executables per platform. The Linux entry is a placeholder
// that must be overridden with -unreal-path.
const (
	DefaultWindowsEnginePath = `C:\Program Files\Epic Games\UE_5.3\Engine\Binaries\Win64\UnrealEditor.exe`
	DefaultLinuxEnginePath   = "/path/to/UnrealEditor"
)

// UnsupportedPlatformError is returned when no engine default exists for GOOS.
type UnsupportedPlatformError struct {
	GOOS string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %q: no default engine path (supported: windows, linux)", e.GOOS)
}

// ResolveEnginePath returns override if set, otherwise the default for goos.
// Platforms other than windows and linux are rejected even with an override.
func ResolveEnginePath(goos, override string) (string, error) {
	var def string
	switch goos {
	case "windows":
		def = DefaultWindowsEnginePath
	case "linux":
		def = DefaultLinuxEnginePath
	default:
		return "", &UnsupportedPlatformError{GOOS: goos}
	}
	if override != "" {
		return override, nil
	}
	return def, nil
}

// ResolveEngine sets cfg.EnginePath for the running platform.
func ResolveEngine(cfg *Config) error {
	path, err := ResolveEnginePath(runtime.GOOS, cfg.EnginePath)
	if err != nil {
		return err
	}
	cfg.EnginePath = path
	return nil
}
