// Package config loads the optional pyton.yaml that sits next to an
// entrypoint file, providing project-level defaults for the artifact
// directory, the optimize flag, and extra module search roots. The search
// roots are parsed into Config.ModuleRoots but nothing reads them: import
// resolution (internal/imports.Resolve) looks only next to the importing
// file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the config file pyton looks for alongside the entrypoint.
const FileName = "pyton.yaml"

// Config is pyton.yaml's unmarshalled shape. Every field is optional;
// zero values fall back to cmd/pyton's own flag defaults.
type Config struct {
	Artifacts   string   `yaml:"artifacts"`
	Optimize    bool     `yaml:"optimize"`
	ModuleRoots []string `yaml:"module_roots"`
}

// Load reads and parses dir/pyton.yaml. A missing file isn't an error —
// it returns a zero-value Config so callers can apply flag defaults on
// top of it unconditionally.
func Load(dir string) (Config, error) {
	path := filepath.Join(dir, FileName)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyDefaults fills in cfg's zero-valued fields in the CLI's default
// flag values, so an unset pyton.yaml key never overrides an explicit
// command-line flag.
func ApplyDefaults(cfg Config, artifacts string, optimize bool) (string, bool) {
	if cfg.Artifacts != "" {
		artifacts = cfg.Artifacts
	}
	if cfg.Optimize {
		optimize = true
	}
	return artifacts, optimize
}
