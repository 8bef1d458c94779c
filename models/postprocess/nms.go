// Package postprocess - Non-Maximum Suppression for detection candidates.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-detect/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// Overlap threshold for suppression. A lower-ranked box is removed when
	// its IoU with an accepted box strictly exceeds this value, so 1.0
	// suppresses nothing.
	IoUThreshold float32 `json:"iouThreshold" yaml:"iouThreshold"`
	// If true, suppress only within the same class. The live pipeline runs
	// class-agnostic and leaves this false.
	ClassAware bool `json:"classAware" yaml:"classAware"`
}

// Suppress filters overlapping detections using greedy Non-Maximum
// Suppression.
//
// The input is stable-sorted by descending score first, so equal scores keep
// their decode order and the outcome is deterministic for a fixed input. The
// caller's slice is left untouched.
//
// Arguments:
//   - detections: Candidate detections in any order.
//   - config: Suppression parameters.
//
// Returns:
//   - Surviving detections in descending-score order. Nil when the input is
//     empty.
func Suppress(detections []Detection, config NMSConfig) []Detection {
	if len(detections) == 0 {
		return nil
	}

	sorted := make([]Detection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	return ApplyGreedyNMS(sorted, config)
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression over
// detections already sorted by descending confidence.
//
// Arguments:
//   - detections: Slice of detections sorted by descending confidence.
//   - config: Suppression parameters.
//
// Returns:
//   - Filtered slice of detections.
func ApplyGreedyNMS(detections []Detection, config NMSConfig) []Detection {
	n := len(detections)
	if n == 0 {
		return nil
	}

	filtered := make([]Detection, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := detections[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && anchor.Class != detections[j].Class {
				continue
			}

			// Suppress if IoU exceeds threshold
			if images.CalculateIoU(anchor.Box, detections[j].Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
