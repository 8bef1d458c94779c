package pipeline

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detect/capture"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/nvr-ai/go-detect/render"
)

const waitTimeout = 5 * time.Second

// cand places one scoring candidate at a tensor position.
type cand struct {
	cx, cy, w, h float32
	score        float32
	class        int
}

// outputTensor lays candidates out in the flat [1, 4+C, N] arrangement.
func outputTensor(numClasses, positions int, cands []cand) *tensor.Dense {
	data := make([]float32, (4+numClasses)*positions)
	for i, c := range cands {
		data[0*positions+i] = c.cx
		data[1*positions+i] = c.cy
		data[2*positions+i] = c.w
		data[3*positions+i] = c.h
		data[(4+c.class)*positions+i] = c.score
	}
	return tensor.New(
		tensor.WithShape(1, 4+numClasses, positions),
		tensor.WithBacking(data),
	)
}

// standardTensor holds two heavily overlapping class-0 candidates above
// threshold and one below, so one detection survives suppression.
func standardTensor() *tensor.Dense {
	return outputTensor(80, 3, []cand{
		{cx: 100, cy: 100, w: 50, h: 50, score: 0.9, class: 0},
		{cx: 300, cy: 300, w: 40, h: 40, score: 0.2, class: 0},
		{cx: 110, cy: 105, w: 50, h: 50, score: 0.85, class: 0},
	})
}

type fakeEngine struct {
	mu     sync.Mutex
	output *tensor.Dense
	err    error
	closed bool

	// block, when non-nil, delays every Infer return until it is closed.
	// entered receives a signal as each call begins.
	block      chan struct{}
	respectCtx bool
	entered    chan struct{}

	calls      int
	concurrent int
	overlapped bool
}

func (e *fakeEngine) Infer(ctx context.Context, _ image.Image) (*tensor.Dense, error) {
	e.mu.Lock()
	e.calls++
	e.concurrent++
	if e.concurrent > 1 {
		e.overlapped = true
	}
	block := e.block
	respect := e.respectCtx
	entered := e.entered
	e.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}

	if block != nil {
		if respect {
			select {
			case <-block:
			case <-ctx.Done():
				e.mu.Lock()
				e.concurrent--
				e.mu.Unlock()
				return nil, ctx.Err()
			}
		} else {
			<-block
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.concurrent--
	if e.err != nil {
		return nil, e.err
	}
	return e.output, nil
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *fakeEngine) setErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

func (e *fakeEngine) setOutput(out *tensor.Dense) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.output = out
}

func (e *fakeEngine) stats() (calls int, overlapped, closed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls, e.overlapped, e.closed
}

type fakeSource struct {
	mu         sync.Mutex
	frames     chan capture.Frame
	acquireErr error
	acquires   int
	releases   int
}

func newFakeSource(buffer int) *fakeSource {
	return &fakeSource{frames: make(chan capture.Frame, buffer)}
}

func (f *fakeSource) push(seq uint64) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	f.frames <- capture.NewFrame(img, seq)
}

func (f *fakeSource) end() {
	close(f.frames)
}

func (f *fakeSource) Acquire(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return f.acquireErr
	}
	f.acquires++
	return nil
}

func (f *fakeSource) Read(ctx context.Context) (capture.Frame, error) {
	select {
	case frame, ok := <-f.frames:
		if !ok {
			return capture.Frame{}, capture.ErrStreamEnded
		}
		return frame, nil
	case <-ctx.Done():
		return capture.Frame{}, ctx.Err()
	}
}

func (f *fakeSource) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	return nil
}

func (f *fakeSource) counts() (acquires, releases int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquires, f.releases
}

type fakeRenderer struct {
	mu     sync.Mutex
	width  int
	height int
	err    error
	draws  [][]render.Overlay
}

func (r *fakeRenderer) Size() (int, int) {
	return r.width, r.height
}

func (r *fakeRenderer) Draw(_ capture.Frame, overlays []render.Overlay) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.draws = append(r.draws, overlays)
	return nil
}

func (r *fakeRenderer) Close() error {
	return nil
}

func (r *fakeRenderer) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *fakeRenderer) drawCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.draws)
}

func (r *fakeRenderer) lastDraw() []render.Overlay {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.draws) == 0 {
		return nil
	}
	return r.draws[len(r.draws)-1]
}

func testConfig(inputSize int) Config {
	return Config{
		Model: models.Config{
			Name:                models.ModelNameYOLOv8n,
			Family:              models.FamilyYOLO,
			Path:                "testdata/model.onnx",
			InputSize:           inputSize,
			ConfidenceThreshold: 0.3,
			NMS:                 postprocess.NMSConfig{IoUThreshold: 0.5},
		},
		Provider: providers.Config{Device: "cpu"},
	}
}

func singleEngineFactory(e *fakeEngine) EngineFactory {
	return func(models.Config, providers.Config) (inference.Engine, error) {
		return e, nil
	}
}

func waitEvent(t *testing.T, events <-chan Event, want EventType) Event {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case e := <-events:
			if e.Type == want {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
		}
	}
}

func drainEvents(events <-chan Event) []Event {
	var out []Event
	for {
		select {
		case e := <-events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestNew_Validation(t *testing.T) {
	src := newFakeSource(1)
	rnd := &fakeRenderer{width: 1280, height: 720}
	eng := &fakeEngine{output: standardTensor()}

	_, err := New(nil, rnd, singleEngineFactory(eng), testConfig(640), nil)
	assert.Error(t, err)

	_, err = New(src, nil, singleEngineFactory(eng), testConfig(640), nil)
	assert.Error(t, err)

	_, err = New(src, rnd, nil, testConfig(640), nil)
	assert.Error(t, err)

	_, err = New(src, rnd, singleEngineFactory(eng), Config{}, nil)
	assert.Error(t, err)
}

func TestStart_AcquireFailureIsFatal(t *testing.T) {
	src := newFakeSource(1)
	src.acquireErr = errors.New("device busy")
	eng := &fakeEngine{output: standardTensor()}
	factoryCalls := 0
	factory := func(models.Config, providers.Config) (inference.Engine, error) {
		factoryCalls++
		return eng, nil
	}

	p, err := New(src, &fakeRenderer{width: 1280, height: 720}, factory, testConfig(640), nil)
	require.NoError(t, err)

	err = p.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, capture.ErrResourceUnavailable)
	assert.Equal(t, 0, factoryCalls, "no model load after a failed acquire")
	assert.False(t, p.Running())
	assert.Equal(t, uint64(0), p.Cycles())
}

func TestStart_ModelLoadFailureIsFatal(t *testing.T) {
	src := newFakeSource(1)
	factory := func(models.Config, providers.Config) (inference.Engine, error) {
		return nil, errors.New("unsupported opset")
	}

	p, err := New(src, &fakeRenderer{width: 1280, height: 720}, factory, testConfig(640), nil)
	require.NoError(t, err)

	err = p.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, inference.ErrModelLoadFailed)
	assert.False(t, p.Running())

	acquires, releases := src.counts()
	assert.Equal(t, 1, acquires)
	assert.Equal(t, 1, releases, "acquired stream released after failed load")
}

func TestStart_UnknownFamilyFailsLoad(t *testing.T) {
	src := newFakeSource(1)
	eng := &fakeEngine{output: standardTensor()}
	cfg := testConfig(640)
	cfg.Model.Family = models.Family("voc")

	p, err := New(src, &fakeRenderer{width: 1280, height: 720},
		singleEngineFactory(eng), cfg, nil)
	require.NoError(t, err)

	err = p.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, inference.ErrModelLoadFailed)
	assert.False(t, p.Running())

	_, _, closed := eng.stats()
	assert.True(t, closed, "engine torn down when no decoder serves the family")
	_, releases := src.counts()
	assert.Equal(t, 1, releases)
}

func TestStart_Twice(t *testing.T) {
	src := newFakeSource(4)
	eng := &fakeEngine{output: standardTensor()}
	p, err := New(src, &fakeRenderer{width: 1280, height: 720},
		singleEngineFactory(eng), testConfig(640), nil)
	require.NoError(t, err)

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	assert.Error(t, p.Start(context.Background()))
}

func TestPipeline_RendersMappedDetections(t *testing.T) {
	src := newFakeSource(4)
	rnd := &fakeRenderer{width: 1280, height: 720}
	eng := &fakeEngine{output: standardTensor()}

	p, err := New(src, rnd, singleEngineFactory(eng), testConfig(640), nil)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	started := waitEvent(t, p.Events(), EventStarted)
	assert.NotEqual(t, uuid.Nil, started.Stream)
	assert.Equal(t, models.ModelNameYOLOv8n, started.Config)

	src.push(1)
	done := waitEvent(t, p.Events(), EventCycleCompleted)

	require.NotNil(t, done.Cycle)
	assert.Equal(t, uint64(1), done.Cycle.Sequence)
	assert.Equal(t, 2, done.Cycle.Candidates, "two candidates clear the threshold")
	assert.Equal(t, 1, done.Cycle.Rendered, "suppression keeps the top scorer")
	assert.NotEqual(t, uuid.Nil, done.Cycle.FrameID)
	assert.GreaterOrEqual(t, done.Cycle.Latency, time.Duration(0))

	overlays := rnd.lastDraw()
	require.Len(t, overlays, 1)
	o := overlays[0]
	assert.Equal(t, "person", o.Label)
	assert.InDelta(t, 0.9, o.Score, 1e-6)
	// Model space (75,75)-(125,125) scaled by 1280/640 and 720/640.
	assert.InDelta(t, 150.0, o.Box.X1, 1e-3)
	assert.InDelta(t, 84.375, o.Box.Y1, 1e-3)
	assert.InDelta(t, 250.0, o.Box.X2, 1e-3)
	assert.InDelta(t, 140.625, o.Box.Y2, 1e-3)

	// A second cycle has a predecessor, so it reports a real rate.
	src.push(2)
	second := waitEvent(t, p.Events(), EventCycleCompleted)
	require.NotNil(t, second.Cycle)
	assert.Greater(t, second.Cycle.FPS, 0.0)
}

func TestPipeline_AtMostOneInferenceInFlight(t *testing.T) {
	src := newFakeSource(16)
	rnd := &fakeRenderer{width: 1280, height: 720}
	eng := &fakeEngine{
		output:  standardTensor(),
		block:   make(chan struct{}),
		entered: make(chan struct{}, 8),
	}

	p, err := New(src, rnd, singleEngineFactory(eng), testConfig(640), nil)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	src.push(1)
	select {
	case <-eng.entered:
	case <-time.After(waitTimeout):
		t.Fatal("first inference never started")
	}

	// The gate holds while the first inference runs: all of these are
	// dropped, never queued.
	for seq := uint64(2); seq <= 5; seq++ {
		src.push(seq)
	}
	for want := int64(1); want <= 4; want++ {
		e := waitEvent(t, p.Events(), EventFrameDropped)
		assert.Equal(t, want, e.Dropped, "drop counter snapshots in order")
	}
	assert.Equal(t, int64(4), p.Dropped())

	close(eng.block)
	waitEvent(t, p.Events(), EventCycleCompleted)

	// A fresh frame after completion is admitted again.
	src.push(6)
	waitEvent(t, p.Events(), EventCycleCompleted)

	calls, overlapped, _ := eng.stats()
	assert.Equal(t, 2, calls, "dropped frames never reach the engine")
	assert.False(t, overlapped, "inference calls must never overlap")
	assert.Equal(t, 2, rnd.drawCount())
}

func TestStop_MidInferenceDiscardsResult(t *testing.T) {
	src := newFakeSource(4)
	rnd := &fakeRenderer{width: 1280, height: 720}
	eng := &fakeEngine{
		output:  standardTensor(),
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
		// The engine finishes on its own terms; the result must still be
		// thrown away.
		respectCtx: false,
	}

	p, err := New(src, rnd, singleEngineFactory(eng), testConfig(640), nil)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	src.push(1)
	select {
	case <-eng.entered:
	case <-time.After(waitTimeout):
		t.Fatal("inference never started")
	}

	stopErr := make(chan error, 1)
	go func() {
		stopErr <- p.Stop()
	}()

	// Let the in-flight call finish; Stop is waiting on it.
	time.Sleep(20 * time.Millisecond)
	close(eng.block)

	select {
	case err := <-stopErr:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Stop never returned")
	}

	assert.Equal(t, 0, rnd.drawCount(), "discarded result must not render")
	assert.False(t, p.Running())
	assert.False(t, p.Busy())

	// Nothing renders or schedules after Stop has returned.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, rnd.drawCount())
	for _, e := range drainEvents(p.Events()) {
		assert.NotEqual(t, EventCycleCompleted, e.Type)
	}

	_, _, closed := eng.stats()
	assert.True(t, closed, "engine released on stop")
	_, releases := src.counts()
	assert.Equal(t, 1, releases, "device released on stop")
}

func TestStop_Idempotent(t *testing.T) {
	src := newFakeSource(4)
	eng := &fakeEngine{output: standardTensor()}
	p, err := New(src, &fakeRenderer{width: 1280, height: 720},
		singleEngineFactory(eng), testConfig(640), nil)
	require.NoError(t, err)

	assert.NoError(t, p.Stop(), "stop before start is a no-op")

	require.NoError(t, p.Start(context.Background()))
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop(), "second stop is a no-op")

	_, releases := src.counts()
	assert.Equal(t, 1, releases)
}

func TestStop_FromEventConsumer(t *testing.T) {
	src := newFakeSource(4)
	eng := &fakeEngine{output: standardTensor()}
	p, err := New(src, &fakeRenderer{width: 1280, height: 720},
		singleEngineFactory(eng), testConfig(640), nil)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	stopErr := make(chan error, 1)
	go func() {
		for e := range p.Events() {
			if e.Type == EventCycleCompleted {
				stopErr <- p.Stop()
				return
			}
		}
	}()

	src.push(1)

	select {
	case err := <-stopErr:
		assert.NoError(t, err, "stop from the completion consumer must not deadlock")
	case <-time.After(waitTimeout):
		t.Fatal("Stop never returned")
	}
	assert.False(t, p.Running())
}

func TestSwitchConfig_MidCycleIsAtomic(t *testing.T) {
	src := newFakeSource(8)
	rnd := &fakeRenderer{width: 1280, height: 720}

	engineA := &fakeEngine{
		output:  standardTensor(),
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	engineB := &fakeEngine{output: standardTensor()}

	var mu sync.Mutex
	var loaded []models.Config
	factory := func(m models.Config, _ providers.Config) (inference.Engine, error) {
		mu.Lock()
		defer mu.Unlock()
		loaded = append(loaded, m)
		if len(loaded) == 1 {
			return engineA, nil
		}
		return engineB, nil
	}

	p, err := New(src, rnd, factory, testConfig(640), nil)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	src.push(1)
	select {
	case <-engineA.entered:
	case <-time.After(waitTimeout):
		t.Fatal("inference never started")
	}

	switchErr := make(chan error, 1)
	go func() {
		switchErr <- p.SwitchConfig(context.Background(), testConfig(416))
	}()

	time.Sleep(20 * time.Millisecond)
	close(engineA.block)

	select {
	case err := <-switchErr:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("SwitchConfig never returned")
	}

	waitEvent(t, p.Events(), EventConfigSwitched)

	assert.Equal(t, 0, rnd.drawCount(), "old configuration's in-flight cycle is discarded")
	_, _, closedA := engineA.stats()
	assert.True(t, closedA, "old engine torn down")
	assert.Equal(t, 416, p.Config().Model.InputSize)

	mu.Lock()
	require.Len(t, loaded, 2)
	assert.Equal(t, 640, loaded[0].InputSize)
	assert.Equal(t, 416, loaded[1].InputSize)
	mu.Unlock()

	// The first rendered cycle uses the new input size: same model-space
	// box, new 1280/416 and 720/416 scale.
	src.push(2)
	waitEvent(t, p.Events(), EventCycleCompleted)

	overlays := rnd.lastDraw()
	require.Len(t, overlays, 1)
	assert.InDelta(t, 75.0*1280.0/416.0, overlays[0].Box.X1, 1e-2)
	assert.InDelta(t, 75.0*720.0/416.0, overlays[0].Box.Y1, 1e-2)
	assert.InDelta(t, 125.0*1280.0/416.0, overlays[0].Box.X2, 1e-2)
	assert.InDelta(t, 125.0*720.0/416.0, overlays[0].Box.Y2, 1e-2)

	require.NoError(t, p.Stop())
}

func TestSwitchConfig_WhileStoppedStarts(t *testing.T) {
	src := newFakeSource(4)
	eng := &fakeEngine{output: standardTensor()}
	p, err := New(src, &fakeRenderer{width: 1280, height: 720},
		singleEngineFactory(eng), testConfig(640), nil)
	require.NoError(t, err)

	require.NoError(t, p.SwitchConfig(context.Background(), testConfig(416)))
	assert.True(t, p.Running())
	assert.Equal(t, 416, p.Config().Model.InputSize)

	require.NoError(t, p.Stop())
}

func TestCycleFailure_LoopContinues(t *testing.T) {
	src := newFakeSource(8)
	rnd := &fakeRenderer{width: 1280, height: 720}
	eng := &fakeEngine{output: standardTensor()}
	eng.setErr(errors.New("kernel launch failed"))

	p, err := New(src, rnd, singleEngineFactory(eng), testConfig(640), nil)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	src.push(1)
	failed := waitEvent(t, p.Events(), EventCycleFailed)
	require.Error(t, failed.Err)
	assert.ErrorIs(t, failed.Err, inference.ErrInferenceFailure)
	assert.False(t, p.Busy(), "busy gate reopens after a failed cycle")

	// The loop advances: the next frame processes normally.
	eng.setErr(nil)
	src.push(2)
	waitEvent(t, p.Events(), EventCycleCompleted)
	assert.Equal(t, 1, rnd.drawCount())
}

func TestShapeMismatch_AbandonsCycleAndContinues(t *testing.T) {
	src := newFakeSource(8)
	rnd := &fakeRenderer{width: 1280, height: 720}
	// Six channels means two classes; the active configuration expects 80.
	eng := &fakeEngine{output: outputTensor(2, 3, []cand{
		{cx: 100, cy: 100, w: 50, h: 50, score: 0.9, class: 0},
	})}

	p, err := New(src, rnd, singleEngineFactory(eng), testConfig(640), nil)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	src.push(1)
	failed := waitEvent(t, p.Events(), EventCycleFailed)
	assert.ErrorIs(t, failed.Err, postprocess.ErrShapeMismatch)
	assert.Equal(t, 0, rnd.drawCount())

	eng.setOutput(standardTensor())
	src.push(2)
	waitEvent(t, p.Events(), EventCycleCompleted)
	assert.Equal(t, 1, rnd.drawCount())
}

func TestRenderFailure_AbandonsCycleAndContinues(t *testing.T) {
	src := newFakeSource(8)
	rnd := &fakeRenderer{width: 1280, height: 720}
	rnd.setErr(errors.New("surface lost"))
	eng := &fakeEngine{output: standardTensor()}

	p, err := New(src, rnd, singleEngineFactory(eng), testConfig(640), nil)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	src.push(1)
	failed := waitEvent(t, p.Events(), EventCycleFailed)
	require.Error(t, failed.Err)

	rnd.setErr(nil)
	src.push(2)
	waitEvent(t, p.Events(), EventCycleCompleted)
}

func TestStreamEnded_ReportedAndStoppable(t *testing.T) {
	src := newFakeSource(4)
	eng := &fakeEngine{output: standardTensor()}
	p, err := New(src, &fakeRenderer{width: 1280, height: 720},
		singleEngineFactory(eng), testConfig(640), nil)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	src.push(1)
	waitEvent(t, p.Events(), EventCycleCompleted)

	src.end()
	waitEvent(t, p.Events(), EventStreamEnded)

	// The loop has wound down; the owner still tears the session down.
	require.NoError(t, p.Stop())
	waitEvent(t, p.Events(), EventStopped)
	_, releases := src.counts()
	assert.Equal(t, 1, releases)
}

func TestPipeline_RestartAfterStop(t *testing.T) {
	src := newFakeSource(8)
	rnd := &fakeRenderer{width: 1280, height: 720}
	eng := &fakeEngine{output: standardTensor()}

	p, err := New(src, rnd, singleEngineFactory(eng), testConfig(640), nil)
	require.NoError(t, err)

	for run := 1; run <= 2; run++ {
		require.NoError(t, p.Start(context.Background()), "run %d", run)
		src.push(uint64(run))
		done := waitEvent(t, p.Events(), EventCycleCompleted)
		require.NotNil(t, done.Cycle)
		assert.Equal(t, 0.0, done.Cycle.FPS, "run %d starts with fresh timing history", run)
		require.NoError(t, p.Stop(), "run %d", run)
	}

	acquires, releases := src.counts()
	assert.Equal(t, 2, acquires)
	assert.Equal(t, 2, releases)
	assert.Equal(t, 2, rnd.drawCount())
}
