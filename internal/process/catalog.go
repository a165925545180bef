package process

import (
	"strconv"

	"github.com/randomizedcoder/go-sim-runner/internal/job"
)

// CatalogConfig holds the fixed parts of every command the batch runs.
type CatalogConfig struct {
	// EnginePath is the engine executable (resolved per platform at startup).
	EnginePath string

	// Launcher is the middleware launch tool ("ros2").
	Launcher string

	// BridgePackage and BridgeLaunchFile select the bridge launch file.
	BridgePackage    string
	BridgeLaunchFile string
}

// DefaultCatalogConfig returns the rosbridge-over-ros2 defaults.
func DefaultCatalogConfig(enginePath string) CatalogConfig {
	return CatalogConfig{
		EnginePath:       enginePath,
		Launcher:         "ros2",
		BridgePackage:    "rosbridge_server",
		BridgeLaunchFile: "rosbridge_websocket_launch.xml",
	}
}

// Catalog builds the bridge, engine and companion commands.
type Catalog struct {
	config CatalogConfig
}

// NewCatalog creates a Catalog from cfg.
func NewCatalog(cfg CatalogConfig) *Catalog {
	return &Catalog{config: cfg}
}

// Bridge returns the bridge command. It takes no per-simulation parameters.
func (c *Catalog) Bridge() Builder {
	return c.BridgeCommand()
}

// BridgeCommand is Bridge with the concrete type, for printing.
func (c *Catalog) BridgeCommand() *Command {
	return NewCommand(Bridge, c.config.Launcher, "launch", c.config.BridgePackage, c.config.BridgeLaunchFile)
}

// Engine returns the engine command for one iteration of sim.
func (c *Catalog) Engine(project string, sim job.Simulation, iteration int) Builder {
	return c.EngineCommand(project, sim, iteration)
}

// EngineCommand is Engine with the concrete type, for printing.
func (c *Catalog) EngineCommand(project string, sim job.Simulation, iteration int) *Command {
	return NewCommand(Engine, c.config.EnginePath,
		project,
		"-config="+sim.Scenario,
		"-autostart=true",
		"-iteration="+strconv.Itoa(iteration),
	)
}

// Companion returns the launch-file command for sim.
func (c *Catalog) Companion(sim job.Simulation) Builder {
	return c.CompanionCommand(sim)
}

// CompanionCommand is Companion with the concrete type, for printing.
func (c *Catalog) CompanionCommand(sim job.Simulation) *Command {
	return NewCommand(Companion, c.config.Launcher, "launch", sim.LaunchPackage, sim.LaunchFile)
}
