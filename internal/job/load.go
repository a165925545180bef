package job

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the on-disk encoding of a job description.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the decoder from the file extension.
// Anything that is not .yaml or .yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// fileDescription mirrors the document written by the configuration wizard.
// The engine-neutral key names (engineProjectPath, launchFile, ...) are
// accepted as aliases.
type fileDescription struct {
	RestartBridge     *bool            `json:"restartBridge" yaml:"restartBridge"`
	UEProject         *string          `json:"ueProject" yaml:"ueProject"`
	EngineProjectPath *string          `json:"engineProjectPath" yaml:"engineProjectPath"`
	Simulations       []fileSimulation `json:"simulations" yaml:"simulations"`
}

type fileSimulation struct {
	Iterations *int   `json:"iterations" yaml:"iterations"`
	Name       string `json:"name" yaml:"name"`

	UEScenario     *string `json:"ueScenario" yaml:"ueScenario"`
	EngineScenario *string `json:"engineScenario" yaml:"engineScenario"`

	ROS2Pkg       *string `json:"ros2Pkg" yaml:"ros2Pkg"`
	LaunchPackage *string `json:"launchPackage" yaml:"launchPackage"`

	ROS2Launch *string `json:"ros2Launch" yaml:"ros2Launch"`
	LaunchFile *string `json:"launchFile" yaml:"launchFile"`

	Timeout                 *int `json:"timeout" yaml:"timeout"`
	ReadinessTimeoutSeconds *int `json:"readinessTimeoutSeconds" yaml:"readinessTimeoutSeconds"`

	MaxSimTime         *int `json:"maxSimTime" yaml:"maxSimTime"`
	MaxDurationSeconds *int `json:"maxDurationSeconds" yaml:"maxDurationSeconds"`
}

// Load reads, decodes and validates the job description at path.
// Every failure is returned as a *ConfigError.
func Load(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	desc, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return desc, nil
}

// Parse decodes and validates a job description held in memory.
func Parse(data []byte, format Format) (*Description, error) {
	var f fileDescription

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatJSON:
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, errors.New("decode json: empty document")
		}
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown job description format %q", format)
	}

	return f.validate()
}
