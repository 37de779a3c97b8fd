// Package config loads this module's runtime configuration from YAML,
// the same layered-default approach the teacher repo's deployment
// manifests use.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/protonmail/drive-node-core/pkg/logging"
)

// Config is the full set of knobs a drivecore instance is constructed
// with, beyond the injected external collaborators.
type Config struct {
	// DurableCacheDir is the base directory the reference bbolt-backed
	// entity store opens its database files under.
	DurableCacheDir string `yaml:"durableCacheDir"`

	// BatchLoadingSize overrides the default node batch-fetch size (30).
	BatchLoadingSize int `yaml:"batchLoadingSize"`

	// DecryptionConcurrency overrides the default bounded decrypt
	// parallelism (15).
	DecryptionConcurrency int `yaml:"decryptionConcurrency"`

	// TelemetryEnabled toggles whether the telemetry sink receives
	// events at all; false makes it a no-op.
	TelemetryEnabled bool `yaml:"telemetryEnabled"`

	LogLevel      logging.Level `yaml:"logLevel"`
	LogJSONOutput bool          `yaml:"logJSONOutput"`
}

// Default returns the configuration this module uses absent a config
// file: the batch/concurrency bounds spec'd for the node-access pipeline,
// telemetry on, and info-level console logging.
func Default() *Config {
	return &Config{
		DurableCacheDir:       "./drive-cache",
		BatchLoadingSize:      30,
		DecryptionConcurrency: 15,
		TelemetryEnabled:      true,
		LogLevel:              logging.InfoLevel,
		LogJSONOutput:         false,
	}
}

// Load reads a YAML document at path and layers it over Default.
func Load(path string) (*Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.BatchLoadingSize <= 0 {
		cfg.BatchLoadingSize = 30
	}
	if cfg.DecryptionConcurrency <= 0 {
		cfg.DecryptionConcurrency = 15
	}
	return cfg, nil
}
