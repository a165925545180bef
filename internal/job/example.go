package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Example returns the document the configuration wizard writes when every
// prompt is answered with its default.
func Example() map[string]any {
	return map[string]any{
		"restartBridge": false,
		"ueProject":     "RoboDemo/RoboDemo.uproject",
		"simulations": []map[string]any{
			{
				"iterations": 3,
				"name":       "MoveIt2 Pick and Place Demo",
				"ueScenario": "config.json",
				"ros2Launch": "pick_place_demo.launch.py",
				"ros2Pkg":    "moveit2_tutorials",
				"timeout":    3,
				"maxSimTime": 10,
			},
		},
	}
}

// WriteExample writes Example to path in the format implied by its
// extension. An existing file is never overwritten.
func WriteExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	var (
		data []byte
		err  error
	)
	switch FormatFromPath(path) {
	case FormatYAML:
		data, err = yaml.Marshal(Example())
	default:
		data, err = json.MarshalIndent(Example(), "", "    ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("encode example: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}
