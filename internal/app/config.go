package app

import "hangar/internal/config"

// Config holds the application-level settings that come from CLI flags,
// as distinct from the hangar document loaded from ConfigPath.
type Config struct {
	Debug      bool
	ConfigPath string

	HangarConfig *config.Config
}

// NewConfig creates a new application configuration.
func NewConfig(debug bool, configPath string) *Config {
	return &Config{Debug: debug, ConfigPath: configPath}
}
