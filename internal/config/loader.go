package config

import "fmt"

// Load builds the final Config by layering, in increasing precedence:
// hardcoded defaults, the INI file (-c, default config.ini), environment
// variables, and command-line flags. The merged result is then validated.
func Load() (*Config, error) {
	RegisterFlags()
	path := ConfigPathFlag()
	explicit := path != DefaultConfigFile

	cfg := GetDefaults()

	if err := LoadFromFile(cfg, path, explicit); err != nil {
		return nil, err
	}

	LoadFromEnvironment(cfg)
	ApplyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
