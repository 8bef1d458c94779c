package benchmark

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// EngineFactory builds the engine a scenario runs against. The default
// synthetic factory replays a generated tensor; hand in an onnxruntime
// constructor to benchmark real inference.
type EngineFactory func(Scenario) (inference.Engine, error)

// SyntheticEngineFactory builds a static engine replaying the scenario's
// generated output tensor.
func SyntheticEngineFactory(s Scenario) (inference.Engine, error) {
	return inference.NewStaticEngine(syntheticOutput(s), s.Latency)
}

// syntheticOutput generates a [1, 4+C, N] tensor with the scenario's
// candidate count scoring above threshold. Candidates come in overlapping
// pairs laid out on a grid: within a pair the boxes overlap past the usual
// suppression thresholds, across cells they never touch. Decoding yields
// exactly Candidates boxes and suppression keeps one per pair.
func syntheticOutput(s Scenario) *tensor.Dense {
	numClasses := s.Model.NumClasses()
	positions := s.positions()
	data := make([]float32, (4+numClasses)*positions)

	size := float32(s.Model.InputSize)
	cells := (s.Candidates + 1) / 2
	gridSide := 1
	if cells > 0 {
		gridSide = int(math.Ceil(math.Sqrt(float64(cells))))
	}
	cell := size / float32(gridSide)
	side := 0.6 * cell

	for i := 0; i < s.Candidates; i++ {
		cellIndex := i / 2
		row := cellIndex / gridSide
		col := cellIndex % gridSide

		cx := (float32(col) + 0.5) * cell
		cy := (float32(row) + 0.5) * cell
		if i%2 == 1 {
			// The odd member of a pair sits close enough that its overlap
			// with the even member exceeds an IoU of 0.5.
			cx += 0.1 * cell
			cy += 0.1 * cell
		}

		score := 0.35 + 0.6*float32((i*37)%97)/97.0

		data[0*positions+i] = cx
		data[1*positions+i] = cy
		data[2*positions+i] = side
		data[3*positions+i] = side
		data[(4+i%numClasses)*positions+i] = score
	}

	return tensor.New(
		tensor.WithShape(1, 4+numClasses, positions),
		tensor.WithBacking(data),
	)
}

// Suite collects scenarios, runs them and persists the results.
type Suite struct {
	logger    *zap.Logger
	outputDir string
	factory   EngineFactory

	mu        sync.RWMutex
	scenarios []Scenario
	results   []Result
}

// NewSuite creates a suite running against the synthetic engine.
//
// Arguments:
//   - outputDir: Where results are written. Empty disables persistence.
//   - logger: Progress logging. Nil logs nothing.
//
// Returns:
//   - *Suite: The empty suite.
func NewSuite(outputDir string, logger *zap.Logger) *Suite {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suite{
		logger:    logger,
		outputDir: outputDir,
		factory:   SyntheticEngineFactory,
	}
}

// UseEngineFactory swaps the engine construction, e.g. for benchmarking a
// real runtime.
func (bs *Suite) UseEngineFactory(f EngineFactory) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.factory = f
}

// AddScenario appends one scenario to the run list.
func (bs *Suite) AddScenario(s Scenario) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.scenarios = append(bs.scenarios, s)
}

// AddSet appends every scenario of a set.
func (bs *Suite) AddSet(set *ScenarioSet) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.scenarios = append(bs.scenarios, set.Scenarios...)
}

// Results returns a copy of everything measured so far.
func (bs *Suite) Results() []Result {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	out := make([]Result, len(bs.results))
	copy(out, bs.results)
	return out
}

// RunScenario executes one scenario and returns its measurement.
//
// Arguments:
//   - ctx: Cancels the run between iterations.
//   - scenario: What to measure.
//
// Returns:
//   - *Result: The aggregated measurement.
//   - error: An error if the scenario is invalid, the engine cannot be
//     built, or the context was canceled mid-run.
func (bs *Suite) RunScenario(ctx context.Context, scenario Scenario) (res *Result, err error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	bs.mu.RLock()
	factory := bs.factory
	bs.mu.RUnlock()

	engine, err := factory(scenario)
	if err != nil {
		return nil, errors.Wrapf(err, "engine for scenario %s", scenario.Name)
	}
	defer func() {
		err = multierr.Append(err, engine.Close())
	}()

	mapper, err := postprocess.NewMapper(scenario.Model.InputSize, scenario.RenderWidth, scenario.RenderHeight)
	if err != nil {
		return nil, err
	}

	// The synthetic engine never reads the frame; a real one preprocesses it.
	frame := image.NewRGBA(image.Rect(0, 0, scenario.Model.InputSize, scenario.Model.InputSize))

	for i := 0; i < scenario.WarmupRuns; i++ {
		if out, wErr := engine.Infer(ctx, frame); wErr == nil {
			if cands, dErr := postprocess.DecodeDetections(out, scenario.Model.NumClasses(), scenario.Model.ConfidenceThreshold); dErr == nil {
				mapper.Apply(postprocess.Suppress(cands, scenario.Model.NMS))
			}
		}
	}

	inferSamples := make([]time.Duration, 0, scenario.Iterations)
	decodeSamples := make([]time.Duration, 0, scenario.Iterations)
	suppressSamples := make([]time.Duration, 0, scenario.Iterations)
	mapSamples := make([]time.Duration, 0, scenario.Iterations)

	var startMem, endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	result := Result{
		Scenario:   scenario,
		Timestamp:  time.Now(),
		Iterations: scenario.Iterations,
		NumCPU:     runtime.NumCPU(),
	}

	startTime := time.Now()
	for i := 0; i < scenario.Iterations; i++ {
		if cErr := ctx.Err(); cErr != nil {
			return nil, cErr
		}

		stage := time.Now()
		out, iErr := engine.Infer(ctx, frame)
		inferSamples = append(inferSamples, time.Since(stage))
		if iErr != nil {
			result.Errors++
			continue
		}

		stage = time.Now()
		candidates, dErr := postprocess.DecodeDetections(out, scenario.Model.NumClasses(), scenario.Model.ConfidenceThreshold)
		decodeSamples = append(decodeSamples, time.Since(stage))
		if dErr != nil {
			result.Errors++
			continue
		}
		result.Candidates += len(candidates)

		stage = time.Now()
		kept := postprocess.Suppress(candidates, scenario.Model.NMS)
		suppressSamples = append(suppressSamples, time.Since(stage))

		stage = time.Now()
		mapped := mapper.Apply(kept)
		mapSamples = append(mapSamples, time.Since(stage))
		result.Detections += len(mapped)
	}
	result.TotalDuration = time.Since(startTime)

	runtime.GC()
	runtime.ReadMemStats(&endMem)

	if result.TotalDuration > 0 {
		result.Throughput = float64(scenario.Iterations) / result.TotalDuration.Seconds()
	}
	result.ErrorRate = float64(result.Errors) / float64(scenario.Iterations)
	result.Infer = newStageStats(inferSamples)
	result.Decode = newStageStats(decodeSamples)
	result.Suppress = newStageStats(suppressSamples)
	result.Map = newStageStats(mapSamples)
	result.Memory = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		SysBytes:        endMem.Sys,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
		HeapSysBytes:    endMem.HeapSys,
	}

	return &result, nil
}

// RunAll executes every added scenario, keeps what succeeded, and persists
// results when an output directory is configured. A failing scenario is
// logged and skipped; a canceled context aborts the rest.
func (bs *Suite) RunAll(ctx context.Context) error {
	bs.mu.RLock()
	scenarios := make([]Scenario, len(bs.scenarios))
	copy(scenarios, bs.scenarios)
	bs.mu.RUnlock()

	for _, scenario := range scenarios {
		result, err := bs.RunScenario(ctx, scenario)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			bs.logger.Warn("scenario failed",
				zap.String("scenario", scenario.Name),
				zap.Error(err),
			)
			continue
		}

		bs.mu.Lock()
		bs.results = append(bs.results, *result)
		bs.mu.Unlock()

		bs.logger.Info("scenario completed",
			zap.String("scenario", scenario.Name),
			zap.Float64("throughput_fps", result.Throughput),
			zap.Duration("decode_p95", result.Decode.P95),
			zap.Duration("suppress_p95", result.Suppress.P95),
			zap.Int("detections", result.Detections),
		)
	}

	if bs.outputDir == "" {
		return nil
	}
	return bs.SaveResults()
}

// SaveResults writes the collected results as timestamped JSON plus a CSV
// summary into the output directory.
func (bs *Suite) SaveResults() error {
	results := bs.Results()

	if err := os.MkdirAll(bs.outputDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating output directory %s", bs.outputDir)
	}

	stamp := time.Now().Format("2006-01-02_15-04-05")

	resultsFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_results_%s.json", stamp))
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing results file %s", resultsFile)
	}

	summaryFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", stamp))
	if err := bs.writeSummaryCSV(summaryFile, results); err != nil {
		return errors.Wrapf(err, "writing summary file %s", summaryFile)
	}

	bs.logger.Info("results saved",
		zap.String("results", resultsFile),
		zap.String("summary", summaryFile),
	)
	return nil
}

func (bs *Suite) writeSummaryCSV(filename string, results []Result) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	header := []string{
		"scenario", "model", "input_size", "candidates", "iterations",
		"throughput_fps", "infer_p50_us", "decode_p50_us", "decode_p95_us",
		"suppress_p50_us", "suppress_p95_us", "map_p50_us",
		"detections", "error_rate",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	micros := func(d time.Duration) string {
		return strconv.FormatFloat(float64(d.Nanoseconds())/1e3, 'f', 2, 64)
	}
	for _, r := range results {
		row := []string{
			r.Scenario.Name,
			string(r.Scenario.Model.Name),
			strconv.Itoa(r.Scenario.Model.InputSize),
			strconv.Itoa(r.Scenario.Candidates),
			strconv.Itoa(r.Iterations),
			strconv.FormatFloat(r.Throughput, 'f', 2, 64),
			micros(r.Infer.P50),
			micros(r.Decode.P50),
			micros(r.Decode.P95),
			micros(r.Suppress.P50),
			micros(r.Suppress.P95),
			micros(r.Map.P50),
			strconv.Itoa(r.Detections),
			strconv.FormatFloat(r.ErrorRate, 'f', 4, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
