// Package config loads and validates swarm configuration.
//
// Configuration is resolved once at startup from three layers, later layers
// winning: built-in defaults, the optional swarm.yaml file, and SWARM_*
// environment variables. The engine never re-reads configuration while
// running.
package config

// Config is the root configuration object handed to the rest of the system.
type Config struct {
	configDir string

	Engine    *EngineConfig
	Services  *ServicesConfig
	Workspace *WorkspaceConfig
}

// ConfigDir returns the directory configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}
