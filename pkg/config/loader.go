package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// SwarmYAMLConfig represents the complete swarm.yaml file structure
type SwarmYAMLConfig struct {
	Engine    *EngineConfig    `yaml:"engine"`
	Services  *ServicesConfig  `yaml:"services"`
	Workspace *WorkspaceConfig `yaml:"workspace"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load swarm.yaml from configDir (missing file falls back to defaults)
//  2. Expand environment variables in the YAML
//  3. Merge user values over built-in defaults
//  4. Apply SWARM_* environment overrides
//  5. Validate all configuration
//  6. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	log.Info("Configuration initialized successfully",
		"poll_interval", cfg.Engine.PollInterval,
		"max_concurrent", cfg.Engine.MaxConcurrent,
		"heartbeat_interval", cfg.Engine.HeartbeatInterval,
		"stale_threshold", cfg.Engine.StaleThreshold,
		"verify_max_retries", cfg.Engine.VerifyMaxRetries)

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{
		configDir: configDir,
	}

	swarmConfig, err := loader.loadSwarmYAML()
	if err != nil {
		return nil, NewLoadError("swarm.yaml", err)
	}

	// Start with defaults, then merge user config on top so unset fields
	// keep their defaults.
	engineCfg := DefaultEngineConfig()
	if swarmConfig.Engine != nil {
		if err := mergo.Merge(engineCfg, swarmConfig.Engine, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge engine config: %w", err)
		}
	}

	servicesCfg := DefaultServicesConfig()
	if swarmConfig.Services != nil {
		if err := mergo.Merge(servicesCfg, swarmConfig.Services, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge services config: %w", err)
		}
	}

	workspaceCfg := DefaultWorkspaceConfig()
	if swarmConfig.Workspace != nil {
		if err := mergo.Merge(workspaceCfg, swarmConfig.Workspace, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge workspace config: %w", err)
		}
	}

	// Environment wins over YAML for the operational knobs.
	if err := applyEngineEnvOverrides(engineCfg); err != nil {
		return nil, err
	}

	return &Config{
		configDir: configDir,
		Engine:    engineCfg,
		Services:  servicesCfg,
		Workspace: workspaceCfg,
	}, nil
}

// validate performs comprehensive validation on loaded configuration
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax
	// Note: ExpandEnv passes through original data on parse/execution errors,
	// allowing YAML parser to handle the content (or fail with clearer error message)
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadSwarmYAML() (*SwarmYAMLConfig, error) {
	var config SwarmYAMLConfig

	if err := l.loadYAML("swarm.yaml", &config); err != nil {
		// The engine runs fine on defaults plus environment variables, so a
		// missing file is not an error.
		if errors.Is(err, ErrConfigNotFound) {
			slog.Info("No swarm.yaml found, using built-in defaults",
				"config_dir", l.configDir)
			return &config, nil
		}
		return nil, err
	}

	return &config, nil
}
