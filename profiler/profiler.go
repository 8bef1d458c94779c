// Package profiler - Runtime monitoring for live detection sessions.
//
// The profiler samples process health at a fixed interval, polls registered
// collectors for application metrics, and emits periodic structured reports.
// It sits beside the pipeline rather than inside it: the pipeline exposes its
// counters through the MetricsCollector interface and stays unaware of who is
// watching.
package profiler

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
)

// MetricsCollector is implemented by components that expose point-in-time
// metrics. Collectors are polled on every sample tick.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// Options configures the runtime profiler. Zero values take defaults.
type Options struct {
	// ReportInterval is how often a status report is logged (default 2s).
	ReportInterval time.Duration
	// SampleInterval is how often samples are collected (default 100ms).
	SampleInterval time.Duration
	// MaxSamples bounds the history kept per series (default 600).
	MaxSamples int
}

func (o Options) withDefaults() Options {
	if o.ReportInterval == 0 {
		o.ReportInterval = 2 * time.Second
	}
	if o.SampleInterval == 0 {
		o.SampleInterval = 100 * time.Millisecond
	}
	if o.MaxSamples == 0 {
		o.MaxSamples = 600
	}
	return o
}

// metricSeries holds the bounded sample window for one metric. Min, max and
// count are lifetime values; the average is over the current window.
type metricSeries struct {
	values []float64
	min    float64
	max    float64
	count  int64
}

func (m *metricSeries) record(value float64, maxSamples int) {
	if m.count == 0 {
		m.min = value
		m.max = value
	}
	m.values = append(m.values, value)
	if len(m.values) > maxSamples {
		m.values = m.values[1:]
	}
	m.count++
	if value < m.min {
		m.min = value
	}
	if value > m.max {
		m.max = value
	}
}

// operationSeries holds the bounded duration window for one timed operation.
type operationSeries struct {
	durations []time.Duration
	min       time.Duration
	max       time.Duration
	count     int64
}

func (o *operationSeries) record(d time.Duration, maxSamples int) {
	if o.count == 0 {
		o.min = d
		o.max = d
	}
	o.durations = append(o.durations, d)
	if len(o.durations) > maxSamples {
		o.durations = o.durations[1:]
	}
	o.count++
	if d < o.min {
		o.min = d
	}
	if d > o.max {
		o.max = d
	}
}

// MetricSummary is the windowed view of one metric.
type MetricSummary struct {
	Avg     float64
	Min     float64
	Max     float64
	Samples int
	Count   int64
}

// OperationSummary is the windowed view of one timed operation.
type OperationSummary struct {
	Avg   time.Duration
	P95   time.Duration
	Min   time.Duration
	Max   time.Duration
	Count int64
}

// Snapshot is a point-in-time view of everything the profiler tracks.
type Snapshot struct {
	Uptime      time.Duration
	Goroutines  int
	CgoCalls    int64
	HeapAlloc   uint64
	HeapObjects uint64
	GCCycles    uint32
	Metrics     map[string]MetricSummary
	Operations  map[string]OperationSummary
}

// RuntimeProfiler samples, aggregates and reports. Safe for concurrent use;
// Start and Stop may be called repeatedly.
type RuntimeProfiler struct {
	opts   Options
	logger *zap.Logger
	clock  clock.Clock

	mu         sync.RWMutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	startTime  time.Time
	collectors []MetricsCollector
	metrics    map[string]*metricSeries
	operations map[string]*operationSeries
}

// New creates a profiler. Nothing runs until Start.
//
// Arguments:
//   - opts: Intervals and window size. Zero values take defaults.
//   - logger: Destination for periodic reports. Nil logs nothing.
//
// Returns:
//   - *RuntimeProfiler: The configured profiler.
func New(opts Options, logger *zap.Logger) *RuntimeProfiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuntimeProfiler{
		opts:       opts.withDefaults(),
		logger:     logger,
		clock:      clock.New(),
		metrics:    make(map[string]*metricSeries),
		operations: make(map[string]*operationSeries),
	}
}

// Start launches the sampling and reporting goroutines. Calling Start on a
// running profiler does nothing.
func (rp *RuntimeProfiler) Start() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return
	}
	rp.running = true
	rp.startTime = rp.clock.Now()

	ctx, cancel := context.WithCancel(context.Background())
	rp.cancel = cancel

	// Tickers are created before the goroutines exist so a caller advancing a
	// mock clock right after Start cannot miss the first tick.
	sampleTicker := rp.clock.Ticker(rp.opts.SampleInterval)
	reportTicker := rp.clock.Ticker(rp.opts.ReportInterval)

	rp.wg.Add(2)
	go rp.sampleLoop(ctx, sampleTicker)
	go rp.reportLoop(ctx, reportTicker)
}

// Stop halts sampling and reporting and waits for both loops to exit.
// Calling Stop on an idle profiler does nothing.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.running = false
	cancel := rp.cancel
	rp.mu.Unlock()

	cancel()
	rp.wg.Wait()
}

// AddMetricsCollector registers a collector polled on every sample tick.
func (rp *RuntimeProfiler) AddMetricsCollector(c MetricsCollector) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.collectors = append(rp.collectors, c)
}

// RecordMetric records one value for a named metric.
func (rp *RuntimeProfiler) RecordMetric(name string, value float64) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.recordLocked(name, value)
}

func (rp *RuntimeProfiler) recordLocked(name string, value float64) {
	series, ok := rp.metrics[name]
	if !ok {
		series = &metricSeries{values: make([]float64, 0, rp.opts.MaxSamples)}
		rp.metrics[name] = series
	}
	series.record(value, rp.opts.MaxSamples)
}

// StartOperation begins timing a named operation.
//
// Arguments:
//   - name: The operation label reported in summaries.
//
// Returns:
//   - func(): Call when the operation completes to record its duration.
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	start := rp.clock.Now()
	return func() {
		d := rp.clock.Since(start)

		rp.mu.Lock()
		defer rp.mu.Unlock()
		series, ok := rp.operations[name]
		if !ok {
			series = &operationSeries{durations: make([]time.Duration, 0, rp.opts.MaxSamples)}
			rp.operations[name] = series
		}
		series.record(d, rp.opts.MaxSamples)
	}
}

// Snapshot returns the current aggregated view.
func (rp *RuntimeProfiler) Snapshot() Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	rp.mu.RLock()
	defer rp.mu.RUnlock()

	snap := Snapshot{
		Goroutines:  runtime.NumGoroutine(),
		CgoCalls:    runtime.NumCgoCall(),
		HeapAlloc:   mem.HeapAlloc,
		HeapObjects: mem.HeapObjects,
		GCCycles:    mem.NumGC,
		Metrics:     make(map[string]MetricSummary, len(rp.metrics)),
		Operations:  make(map[string]OperationSummary, len(rp.operations)),
	}
	if !rp.startTime.IsZero() {
		snap.Uptime = rp.clock.Since(rp.startTime)
	}

	for name, series := range rp.metrics {
		if len(series.values) == 0 {
			continue
		}
		avg, _ := stats.Mean(series.values)
		snap.Metrics[name] = MetricSummary{
			Avg:     avg,
			Min:     series.min,
			Max:     series.max,
			Samples: len(series.values),
			Count:   series.count,
		}
	}

	for name, series := range rp.operations {
		if len(series.durations) == 0 {
			continue
		}
		values := make([]float64, len(series.durations))
		var total time.Duration
		for i, d := range series.durations {
			values[i] = float64(d.Nanoseconds())
			total += d
		}
		p95, _ := stats.Percentile(values, 95)
		snap.Operations[name] = OperationSummary{
			Avg:   total / time.Duration(len(series.durations)),
			P95:   time.Duration(p95),
			Min:   series.min,
			Max:   series.max,
			Count: series.count,
		}
	}
	return snap
}

// sampleLoop polls the registered collectors on every tick.
func (rp *RuntimeProfiler) sampleLoop(ctx context.Context, ticker *clock.Ticker) {
	defer rp.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rp.sample()
		}
	}
}

func (rp *RuntimeProfiler) sample() {
	rp.mu.Lock()
	collectors := make([]MetricsCollector, len(rp.collectors))
	copy(collectors, rp.collectors)
	rp.mu.Unlock()

	// Collectors run outside the lock; a slow collector must not stall
	// RecordMetric callers.
	polled := make(map[string]float64)
	for _, c := range collectors {
		for name, value := range c.CollectMetrics() {
			polled[name] = value
		}
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()
	for name, value := range polled {
		rp.recordLocked(name, value)
	}
}

// reportLoop logs a status report on every tick.
func (rp *RuntimeProfiler) reportLoop(ctx context.Context, ticker *clock.Ticker) {
	defer rp.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rp.report()
		}
	}
}

func (rp *RuntimeProfiler) report() {
	snap := rp.Snapshot()

	rp.logger.Info("runtime status",
		zap.Duration("uptime", snap.Uptime.Truncate(time.Millisecond)),
		zap.Int("goroutines", snap.Goroutines),
		zap.Int64("cgo_calls", snap.CgoCalls),
		zap.String("heap_alloc", formatBytes(snap.HeapAlloc)),
		zap.Uint64("heap_objects", snap.HeapObjects),
		zap.Uint32("gc_cycles", snap.GCCycles),
	)

	for name, m := range snap.Metrics {
		rp.logger.Info("metric",
			zap.String("name", name),
			zap.Float64("avg", m.Avg),
			zap.Float64("min", m.Min),
			zap.Float64("max", m.Max),
			zap.Int("samples", m.Samples),
		)
	}

	for name, o := range snap.Operations {
		rp.logger.Info("operation timing",
			zap.String("operation", name),
			zap.Duration("avg", o.Avg.Truncate(time.Microsecond)),
			zap.Duration("p95", o.P95.Truncate(time.Microsecond)),
			zap.Duration("min", o.Min.Truncate(time.Microsecond)),
			zap.Duration("max", o.Max.Truncate(time.Microsecond)),
			zap.Int64("count", o.Count),
		)
	}
}

// formatBytes renders byte counts in human-readable form.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
