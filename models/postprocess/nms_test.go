package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detect/images"
)

func TestSuppress_Empty(t *testing.T) {
	assert.Nil(t, Suppress(nil, NMSConfig{IoUThreshold: 0.5}))
	assert.Nil(t, Suppress([]Detection{}, NMSConfig{IoUThreshold: 0.5}))
}

func TestSuppress_RemovesHeavyOverlap(t *testing.T) {
	detections := []Detection{
		{Box: images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}, Score: 0.9, Class: 0},
		{Box: images.Rect{X1: 5, Y1: 5, X2: 105, Y2: 105}, Score: 0.8, Class: 0},
		{Box: images.Rect{X1: 300, Y1: 300, X2: 400, Y2: 400}, Score: 0.7, Class: 0},
	}

	survivors := Suppress(detections, NMSConfig{IoUThreshold: 0.5})
	require.Len(t, survivors, 2)
	assert.InDelta(t, 0.9, survivors[0].Score, 1e-6)
	assert.InDelta(t, 0.7, survivors[1].Score, 1e-6)
}

func TestSuppress_NeverGrows(t *testing.T) {
	detections := []Detection{
		{Box: images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}, Score: 0.9},
		{Box: images.Rect{X1: 10, Y1: 10, X2: 110, Y2: 110}, Score: 0.85},
		{Box: images.Rect{X1: 20, Y1: 20, X2: 120, Y2: 120}, Score: 0.8},
		{Box: images.Rect{X1: 500, Y1: 500, X2: 600, Y2: 600}, Score: 0.75},
	}

	for _, threshold := range []float32{0.01, 0.3, 0.5, 0.7, 0.99, 1.0} {
		survivors := Suppress(detections, NMSConfig{IoUThreshold: threshold})
		assert.LessOrEqual(t, len(survivors), len(detections), "threshold %v", threshold)
		assert.NotEmpty(t, survivors, "the top-scored detection always survives")
	}
}

func TestSuppress_ThresholdOneKeepsEverything(t *testing.T) {
	// IoU never strictly exceeds 1.0, so a threshold of 1.0 suppresses
	// nothing, even exact duplicates.
	box := images.Rect{X1: 10, Y1: 10, X2: 50, Y2: 50}
	detections := []Detection{
		{Box: box, Score: 0.9, Class: 0},
		{Box: box, Score: 0.8, Class: 1},
		{Box: box, Score: 0.7, Class: 2},
	}

	survivors := Suppress(detections, NMSConfig{IoUThreshold: 1.0})
	assert.Len(t, survivors, len(detections))
}

func TestSuppress_ClassAgnosticByDefault(t *testing.T) {
	// Same geometry, different classes: agnostic suppression still removes
	// the lower-scored one.
	detections := []Detection{
		{Box: images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}, Score: 0.9, Class: 3},
		{Box: images.Rect{X1: 2, Y1: 2, X2: 102, Y2: 102}, Score: 0.8, Class: 7},
	}

	survivors := Suppress(detections, NMSConfig{IoUThreshold: 0.5})
	require.Len(t, survivors, 1)
	assert.Equal(t, 3, survivors[0].Class)
}

func TestSuppress_ClassAware(t *testing.T) {
	detections := []Detection{
		{Box: images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}, Score: 0.9, Class: 3},
		{Box: images.Rect{X1: 2, Y1: 2, X2: 102, Y2: 102}, Score: 0.8, Class: 7},
		{Box: images.Rect{X1: 4, Y1: 4, X2: 104, Y2: 104}, Score: 0.7, Class: 3},
	}

	survivors := Suppress(detections, NMSConfig{IoUThreshold: 0.5, ClassAware: true})
	require.Len(t, survivors, 2)
	assert.Equal(t, 3, survivors[0].Class)
	assert.Equal(t, 7, survivors[1].Class)
}

func TestSuppress_SortsByScoreFirst(t *testing.T) {
	// Input deliberately unsorted: the strongest box arrives last.
	detections := []Detection{
		{Box: images.Rect{X1: 5, Y1: 5, X2: 105, Y2: 105}, Score: 0.6, Class: 0},
		{Box: images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}, Score: 0.95, Class: 0},
	}

	survivors := Suppress(detections, NMSConfig{IoUThreshold: 0.5})
	require.Len(t, survivors, 1)
	assert.InDelta(t, 0.95, survivors[0].Score, 1e-6)

	// The caller's slice must keep its original order.
	assert.InDelta(t, 0.6, detections[0].Score, 1e-6)
}

func TestSuppress_EqualScoresKeepInputOrder(t *testing.T) {
	// Two disjoint boxes with identical scores: stable sort keeps decode
	// order, so the first one stays first in the result.
	detections := []Detection{
		{Box: images.Rect{X1: 0, Y1: 0, X2: 50, Y2: 50}, Score: 0.8, Class: 1},
		{Box: images.Rect{X1: 200, Y1: 200, X2: 250, Y2: 250}, Score: 0.8, Class: 2},
	}

	survivors := Suppress(detections, NMSConfig{IoUThreshold: 0.5})
	require.Len(t, survivors, 2)
	assert.Equal(t, 1, survivors[0].Class)
	assert.Equal(t, 2, survivors[1].Class)

	// With identical overlapping boxes, the earlier candidate wins.
	overlapping := []Detection{
		{Box: images.Rect{X1: 0, Y1: 0, X2: 50, Y2: 50}, Score: 0.8, Class: 1},
		{Box: images.Rect{X1: 0, Y1: 0, X2: 50, Y2: 50}, Score: 0.8, Class: 2},
	}
	survivors = Suppress(overlapping, NMSConfig{IoUThreshold: 0.5})
	require.Len(t, survivors, 1)
	assert.Equal(t, 1, survivors[0].Class)
}

func TestApplyGreedyNMS_ChainSuppression(t *testing.T) {
	// B overlaps A heavily and C overlaps B but not A. Greedy accepts A,
	// suppresses B, then accepts C because C was only close to B.
	detections := []Detection{
		{Box: images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}, Score: 0.9},
		{Box: images.Rect{X1: 40, Y1: 0, X2: 140, Y2: 100}, Score: 0.8},
		{Box: images.Rect{X1: 80, Y1: 0, X2: 180, Y2: 100}, Score: 0.7},
	}

	survivors := ApplyGreedyNMS(detections, NMSConfig{IoUThreshold: 0.4})
	require.Len(t, survivors, 2)
	assert.InDelta(t, 0.9, survivors[0].Score, 1e-6)
	assert.InDelta(t, 0.7, survivors[1].Score, 1e-6)
}

// TestDecodeThenSuppress exercises the full candidate path: a 2-class,
// 3-position tensor where one candidate dies at the confidence gate and one
// dies in suppression.
func TestDecodeThenSuppress(t *testing.T) {
	// Channel-major layout, 3 positions per channel:
	//   position 0: box (100,100,50,50), class-0 score 0.9
	//   position 1: box (300,300,40,40), class-0 score 0.2 (below threshold)
	//   position 2: box (110,105,50,50), class-0 score 0.85 (overlaps 0)
	data := []float32{
		100, 300, 110, // cx
		100, 300, 105, // cy
		50, 40, 50, // w
		50, 40, 50, // h
		0.9, 0.2, 0.85, // class 0
		0.1, 0.05, 0.0, // class 1
	}
	out := tensor.New(tensor.WithShape(1, 6, 3), tensor.WithBacking(data))

	decoded, err := DecodeDetections(out, 2, 0.3)
	require.NoError(t, err)
	require.Len(t, decoded, 2)

	survivors := Suppress(decoded, NMSConfig{IoUThreshold: 0.5})
	require.Len(t, survivors, 1)
	assert.InDelta(t, 0.9, survivors[0].Score, 1e-6)
	assert.Equal(t, 0, survivors[0].Class)
	assert.Equal(t, images.Rect{X1: 75, Y1: 75, X2: 125, Y2: 125}, survivors[0].Box)
}
