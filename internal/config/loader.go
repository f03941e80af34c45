package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads, parses, defaults, and validates the config document at path.
// On any parse or validation error it returns a non-nil error and a nil
// Config; the caller (typically the hot-reload worker) must leave running
// state untouched when this happens.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a YAML document into a validated, defaulted Config.
func Parse(raw []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if c.Providers == nil {
		c.Providers = make(map[string]Provider)
	}
	if c.Groups == nil {
		c.Groups = make(map[string]Group)
	}

	c.applyDefaults()

	if errs := Validate(&c); errs.HasErrors() {
		return nil, errs
	}

	return &c, nil
}
