// Package models - registry of known model configurations.
package models

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/models/postprocess"
)

// defaultNMS is the suppression setup models register with unless overridden.
var defaultNMS = postprocess.NMSConfig{
	IoUThreshold: 0.45,
	ClassAware:   false,
}

var (
	registryMu sync.RWMutex
	registry   = map[Name]Config{
		ModelNameYOLOv8n: {
			Name:                ModelNameYOLOv8n,
			Family:              FamilyYOLO,
			InputSize:           640,
			ConfidenceThreshold: 0.25,
			NMS:                 defaultNMS,
			WarmupRuns:          3,
		},
		ModelNameYOLOv8s: {
			Name:                ModelNameYOLOv8s,
			Family:              FamilyYOLO,
			InputSize:           640,
			ConfidenceThreshold: 0.25,
			NMS:                 defaultNMS,
			WarmupRuns:          3,
		},
		ModelNameYOLOv8m: {
			Name:                ModelNameYOLOv8m,
			Family:              FamilyYOLO,
			InputSize:           640,
			ConfidenceThreshold: 0.25,
			NMS:                 defaultNMS,
			WarmupRuns:          3,
		},
		ModelNameYOLO11n: {
			Name:                ModelNameYOLO11n,
			Family:              FamilyYOLO,
			InputSize:           640,
			ConfidenceThreshold: 0.25,
			NMS:                 defaultNMS,
			WarmupRuns:          3,
		},
	}
)

// Register adds a model configuration to the registry.
//
// Arguments:
//   - cfg: The configuration to register. Name must be set and unused.
//
// Returns:
//   - error: An error if the name is empty or already registered.
func Register(cfg Config) error {
	if cfg.Name == "" {
		return errors.New("cannot register a model without a name")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[cfg.Name]; exists {
		return errors.Errorf("model %q already registered", cfg.Name)
	}
	registry[cfg.Name] = cfg
	return nil
}

// Get retrieves a registered model configuration by name.
func Get(name Name) (Config, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	cfg, ok := registry[name]
	return cfg, ok
}

// List returns the registered model names in lexical order.
func List() []Name {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]Name, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// NewConfig resolves a registered model by name and binds it to a graph file.
//
// Arguments:
//   - name: The registered model identifier.
//   - path: Filesystem path of the ONNX graph to load.
//
// Returns:
//   - Config: The resolved configuration with the path applied.
//   - error: An error if the name is unknown or the result fails validation.
func NewConfig(name Name, path string) (Config, error) {
	cfg, ok := Get(name)
	if !ok {
		return Config{}, errors.Errorf("unsupported model name: %s", name)
	}
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "model %s", name)
	}
	return cfg, nil
}
