// Package benchmark - Offline performance measurement of the detection path.
//
// The suite drives synthetic output tensors through the decode, suppress and
// map stages the live pipeline runs per frame, so stage costs can be measured
// across model sizes and scene densities without cameras or native runtimes.
// A real engine can be plugged in through the factory to benchmark full
// inference as well.
package benchmark

import (
	"time"

	"github.com/montanaflynn/stats"
)

// StageStats summarizes the duration samples of one processing stage.
type StageStats struct {
	Mean    time.Duration `json:"mean"`
	P50     time.Duration `json:"p50"`
	P95     time.Duration `json:"p95"`
	P99     time.Duration `json:"p99"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Samples int           `json:"samples"`
}

// newStageStats aggregates raw duration samples into percentile form.
func newStageStats(samples []time.Duration) StageStats {
	if len(samples) == 0 {
		return StageStats{}
	}

	values := make([]float64, len(samples))
	for i, d := range samples {
		values[i] = float64(d.Nanoseconds())
	}

	mean, _ := stats.Mean(values)
	p50, _ := stats.Median(values)
	p95, _ := stats.Percentile(values, 95)
	p99, _ := stats.Percentile(values, 99)
	low, _ := stats.Min(values)
	high, _ := stats.Max(values)

	return StageStats{
		Mean:    time.Duration(mean),
		P50:     time.Duration(p50),
		P95:     time.Duration(p95),
		P99:     time.Duration(p99),
		Min:     time.Duration(low),
		Max:     time.Duration(high),
		Samples: len(samples),
	}
}

// MemoryMetrics captures allocation behavior across one scenario run.
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
}

// Result is the complete measurement of one scenario.
type Result struct {
	Scenario      Scenario      `json:"scenario"`
	Timestamp     time.Time     `json:"timestamp"`
	TotalDuration time.Duration `json:"total_duration"`
	Throughput    float64       `json:"throughput_fps"`
	Iterations    int           `json:"iterations"`
	Errors        int           `json:"errors"`
	ErrorRate     float64       `json:"error_rate"`

	// Candidates counts decoder output summed over all iterations;
	// Detections counts what survived suppression.
	Candidates int `json:"candidates"`
	Detections int `json:"detections"`

	Infer    StageStats `json:"infer"`
	Decode   StageStats `json:"decode"`
	Suppress StageStats `json:"suppress"`
	Map      StageStats `json:"map"`

	Memory MemoryMetrics `json:"memory"`
	NumCPU int           `json:"num_cpu"`
}
