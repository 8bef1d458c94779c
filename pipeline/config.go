// Package pipeline - Runtime configuration.
package pipeline

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/models"
)

// DefaultStatusBuffer is the event backlog kept before new events are counted
// and discarded instead of blocking the loop.
const DefaultStatusBuffer = 64

// Config is the complete runtime configuration of a pipeline: which model to
// run, where to run it and how the status stream behaves.
type Config struct {
	// Model selects the network, its input size and both thresholds.
	Model models.Config `json:"model" yaml:"model"`
	// Provider selects the execution hardware.
	Provider providers.Config `json:"provider" yaml:"provider"`
	// StatusBuffer caps pending status events. Zero uses
	// DefaultStatusBuffer.
	StatusBuffer int `json:"statusBuffer" yaml:"statusBuffer"`
}

// Validate checks every nested section.
//
// Returns:
//   - error: A description of the first offending field, or nil.
func (c Config) Validate() error {
	if err := c.Model.Validate(); err != nil {
		return errors.Wrap(err, "model")
	}
	if err := c.Provider.Validate(); err != nil {
		return errors.Wrap(err, "provider")
	}
	if c.StatusBuffer < 0 {
		return errors.Errorf("status buffer must not be negative, got %d", c.StatusBuffer)
	}
	return nil
}

// statusBuffer resolves the configured backlog size.
func (c Config) statusBuffer() int {
	if c.StatusBuffer > 0 {
		return c.StatusBuffer
	}
	return DefaultStatusBuffer
}

// LoadConfig reads and validates a YAML configuration file.
//
// Arguments:
//   - path: The configuration file path.
//
// Returns:
//   - Config: The parsed configuration.
//   - error: An error if reading, parsing or validation fails.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "validating config %s", path)
	}
	return cfg, nil
}
