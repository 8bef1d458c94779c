package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models"
)

// Scenario defines one measured configuration: the model whose output layout
// is simulated, how crowded the synthetic scene is, the render target the
// mapper scales to, and how many iterations to sample.
type Scenario struct {
	Name  string        `json:"name"`
	Model models.Config `json:"model"`

	// Positions overrides the candidate position count N of the output
	// tensor. Zero derives it from the model input size.
	Positions int `json:"positions,omitempty"`

	// Candidates is how many synthetic boxes score above the confidence
	// threshold per frame.
	Candidates int `json:"candidates"`

	RenderWidth  int `json:"render_width"`
	RenderHeight int `json:"render_height"`

	Iterations int `json:"iterations"`
	WarmupRuns int `json:"warmup_runs"`

	// Latency is the simulated inference time of the synthetic engine.
	Latency time.Duration `json:"latency,omitempty"`
}

// positions resolves the effective candidate position count.
func (s Scenario) positions() int {
	if s.Positions > 0 {
		return s.Positions
	}
	return s.Model.OutputPositions()
}

// Validate checks the scenario for values the runner cannot work with.
func (s Scenario) Validate() error {
	if s.Name == "" {
		return errors.New("scenario name is required")
	}
	if err := s.Model.Validate(); err != nil {
		return errors.Wrapf(err, "scenario %s", s.Name)
	}
	if s.Iterations <= 0 {
		return errors.Errorf("scenario %s: iterations must be positive, got %d", s.Name, s.Iterations)
	}
	if s.WarmupRuns < 0 {
		return errors.Errorf("scenario %s: warmup runs must not be negative, got %d", s.Name, s.WarmupRuns)
	}
	if s.RenderWidth <= 0 || s.RenderHeight <= 0 {
		return errors.Errorf("scenario %s: render target must be positive, got %dx%d",
			s.Name, s.RenderWidth, s.RenderHeight)
	}
	if s.Candidates < 0 || s.Candidates > s.positions() {
		return errors.Errorf("scenario %s: candidates must be in [0,%d], got %d",
			s.Name, s.positions(), s.Candidates)
	}
	return nil
}

// ScenarioBuilder assembles scenarios with a fluent API.
type ScenarioBuilder struct {
	scenario Scenario
	err      error
}

// NewScenarioBuilder starts a scenario with sane defaults: 100 iterations,
// 10 warmups, 32 candidates, a 720p render target.
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:         name,
			Candidates:   32,
			RenderWidth:  1280,
			RenderHeight: 720,
			Iterations:   100,
			WarmupRuns:   10,
		},
	}
}

// WithModel sets the full model configuration.
func (sb *ScenarioBuilder) WithModel(cfg models.Config) *ScenarioBuilder {
	sb.scenario.Model = cfg
	return sb
}

// WithPreset resolves a registered model by name. Synthetic runs never open
// the graph file, so any placeholder path will do.
func (sb *ScenarioBuilder) WithPreset(name models.Name, path string) *ScenarioBuilder {
	cfg, err := models.NewConfig(name, path)
	if err != nil && sb.err == nil {
		sb.err = err
		return sb
	}
	sb.scenario.Model = cfg
	return sb
}

// WithInputSize overrides the model input side length.
func (sb *ScenarioBuilder) WithInputSize(size int) *ScenarioBuilder {
	sb.scenario.Model.InputSize = size
	return sb
}

// WithCandidates sets how many synthetic boxes score above threshold.
func (sb *ScenarioBuilder) WithCandidates(n int) *ScenarioBuilder {
	sb.scenario.Candidates = n
	return sb
}

// WithPositions overrides the output tensor's position count.
func (sb *ScenarioBuilder) WithPositions(n int) *ScenarioBuilder {
	sb.scenario.Positions = n
	return sb
}

// WithRenderTarget sets the mapper's destination dimensions.
func (sb *ScenarioBuilder) WithRenderTarget(width, height int) *ScenarioBuilder {
	sb.scenario.RenderWidth = width
	sb.scenario.RenderHeight = height
	return sb
}

// WithRenderResolution sets the render target from a resolution standard.
func (sb *ScenarioBuilder) WithRenderResolution(t images.ResolutionType) *ScenarioBuilder {
	res, ok := images.GetResolutionByType(t)
	if !ok {
		if sb.err == nil {
			sb.err = errors.Errorf("unknown resolution type: %s", t)
		}
		return sb
	}
	sb.scenario.RenderWidth = res.Pixels.Width
	sb.scenario.RenderHeight = res.Pixels.Height
	return sb
}

// WithIterations sets the sample count.
func (sb *ScenarioBuilder) WithIterations(n int) *ScenarioBuilder {
	sb.scenario.Iterations = n
	return sb
}

// WithWarmupRuns sets how many unrecorded iterations precede sampling.
func (sb *ScenarioBuilder) WithWarmupRuns(n int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = n
	return sb
}

// WithLatency sets the simulated inference time.
func (sb *ScenarioBuilder) WithLatency(d time.Duration) *ScenarioBuilder {
	sb.scenario.Latency = d
	return sb
}

// Build returns the configured scenario.
//
// Returns:
//   - Scenario: The assembled scenario.
//   - error: The first builder or validation error.
func (sb *ScenarioBuilder) Build() (Scenario, error) {
	if sb.err != nil {
		return Scenario{}, sb.err
	}
	if err := sb.scenario.Validate(); err != nil {
		return Scenario{}, err
	}
	return sb.scenario, nil
}

// MustBuild is Build for static scenario tables; it panics on error.
func (sb *ScenarioBuilder) MustBuild() Scenario {
	s, err := sb.Build()
	if err != nil {
		panic(err)
	}
	return s
}

// ScenarioSet is a named collection of related scenarios.
type ScenarioSet struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Scenarios   []Scenario `json:"scenarios"`
}

// ResolutionSweep compares decode cost across model input sizes with a fixed
// scene density.
func ResolutionSweep(model models.Config) *ScenarioSet {
	sizes := []int{320, 416, 640}
	set := &ScenarioSet{
		Name:        "Resolution Sweep",
		Description: "Same scene density across model input sizes",
	}
	for _, size := range sizes {
		set.Scenarios = append(set.Scenarios, NewScenarioBuilder(
			fmt.Sprintf("resolution_%s_%d", model.Name, size)).
			WithModel(model).
			WithInputSize(size).
			WithCandidates(50).
			MustBuild())
	}
	return set
}

// DensitySweep compares suppression cost across scene crowdedness.
func DensitySweep(model models.Config) *ScenarioSet {
	densities := []struct {
		label string
		count int
	}{
		{"sparse", 4},
		{"busy", 64},
		{"crowded", 256},
	}
	set := &ScenarioSet{
		Name:        "Density Sweep",
		Description: "Same model across sparse to crowded scenes",
	}
	for _, d := range densities {
		set.Scenarios = append(set.Scenarios, NewScenarioBuilder(
			fmt.Sprintf("density_%s_%s", model.Name, d.label)).
			WithModel(model).
			WithCandidates(d.count).
			MustBuild())
	}
	return set
}

// RenderTargetSweep compares mapping cost across display resolutions.
func RenderTargetSweep(model models.Config) *ScenarioSet {
	set := &ScenarioSet{
		Name:        "Render Target Sweep",
		Description: "Same model mapped onto every known display resolution",
	}
	for _, res := range images.GetAllResolutions() {
		set.Scenarios = append(set.Scenarios, NewScenarioBuilder(
			fmt.Sprintf("render_%s_%dx%d", model.Name, res.Pixels.Width, res.Pixels.Height)).
			WithModel(model).
			WithRenderTarget(res.Pixels.Width, res.Pixels.Height).
			MustBuild())
	}
	return set
}

// QuickSet is a small smoke set for fast comparisons.
func QuickSet(model models.Config) *ScenarioSet {
	set := &ScenarioSet{
		Name:        "Quick Set",
		Description: "Two input sizes, short runs",
	}
	for _, size := range []int{416, 640} {
		set.Scenarios = append(set.Scenarios, NewScenarioBuilder(
			fmt.Sprintf("quick_%s_%d", model.Name, size)).
			WithModel(model).
			WithInputSize(size).
			WithIterations(50).
			WithWarmupRuns(5).
			MustBuild())
	}
	return set
}

// SaveScenarioSet writes a scenario set to a JSON file.
func SaveScenarioSet(set *ScenarioSet, filename string) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling scenario set")
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing scenario file %s", filename)
	}
	return nil
}

// LoadScenarioSet reads a scenario set from a JSON file.
func LoadScenarioSet(filename string) (*ScenarioSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "reading scenario file %s", filename)
	}

	var set ScenarioSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, errors.Wrapf(err, "parsing scenario file %s", filename)
	}
	return &set, nil
}
