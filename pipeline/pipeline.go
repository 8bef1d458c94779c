// Package pipeline - Lifecycle controller and frame loop.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/capture"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/nvr-ai/go-detect/render"
)

// EngineFactory builds an inference engine for a model and provider pair.
// The factory is the seam that keeps this package free of native bindings:
// binaries hand in the onnxruntime constructor, tests hand in fakes.
type EngineFactory func(models.Config, providers.Config) (inference.Engine, error)

// Pipeline owns one detection loop end to end: it acquires the capture
// source, builds the engine, drives the capture, infer, decode, suppress,
// map, render cycle and reports everything through its status events.
//
// Start, Stop and SwitchConfig are safe for concurrent use. The cycle itself
// runs on two internal goroutines: a reader pulling frames at source pace and
// a worker executing at most one cycle at a time.
type Pipeline struct {
	source   capture.Source
	renderer render.Renderer
	factory  EngineFactory
	logger   *zap.Logger
	clock    clock.Clock

	state      *SchedulerState
	events     chan Event
	lostEvents atomic.Int64

	mu     sync.Mutex
	cfg    Config
	active *session
}

// session is everything owned by one Start to Stop span.
type session struct {
	stream  uuid.UUID
	model   models.Config
	engine  inference.Engine
	decoder models.Decoder
	mapper  postprocess.Mapper
	cancel  context.CancelFunc
	work    chan capture.Frame
	wg      sync.WaitGroup
}

// New assembles a pipeline around its collaborators. Nothing is acquired or
// loaded until Start.
//
// Arguments:
//   - source: The frame source. Acquired on Start, released on Stop.
//   - renderer: The presentation target. Owned by the caller.
//   - factory: Builds the inference engine per configuration.
//   - cfg: The initial configuration.
//   - logger: Structured logger. Nil logs nothing.
//
// Returns:
//   - *Pipeline: The assembled pipeline.
//   - error: An error if a collaborator is missing or the config is invalid.
func New(
	source capture.Source,
	renderer render.Renderer,
	factory EngineFactory,
	cfg Config,
	logger *zap.Logger,
) (*Pipeline, error) {
	if source == nil {
		return nil, errors.New("capture source is required")
	}
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if factory == nil {
		return nil, errors.New("engine factory is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{
		source:   source,
		renderer: renderer,
		factory:  factory,
		logger:   logger,
		clock:    clock.New(),
		state:    NewSchedulerState(),
		events:   make(chan Event, cfg.statusBuffer()),
		cfg:      cfg,
	}, nil
}

// Events returns the status stream. The channel is never closed; it belongs
// to the pipeline for its whole lifetime, across restarts and config
// switches.
func (p *Pipeline) Events() <-chan Event {
	return p.events
}

// Running reports whether a session is live.
func (p *Pipeline) Running() bool {
	return p.state.Running()
}

// Busy reports whether a cycle is in flight right now.
func (p *Pipeline) Busy() bool {
	return p.state.Busy()
}

// Dropped returns the frames dropped by the busy gate this session.
func (p *Pipeline) Dropped() int64 {
	return p.state.Dropped()
}

// Cycles returns the completed cycle count this session.
func (p *Pipeline) Cycles() uint64 {
	return p.state.Cycles()
}

// EventsLost returns how many status events overflowed the buffer and were
// discarded.
func (p *Pipeline) EventsLost() int64 {
	return p.lostEvents.Load()
}

// Config returns the active configuration.
func (p *Pipeline) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// CollectMetrics exposes the session counters for periodic polling. The map
// shape satisfies the profiler's collector interface.
func (p *Pipeline) CollectMetrics() map[string]float64 {
	return map[string]float64{
		"pipeline_cycles":      float64(p.state.Cycles()),
		"pipeline_dropped":     float64(p.state.Dropped()),
		"pipeline_events_lost": float64(p.lostEvents.Load()),
	}
}

// Start acquires the stream, loads the model and begins cycling.
//
// The context only governs acquisition and loading; the loop itself runs
// until Stop. Acquisition failures wrap capture.ErrResourceUnavailable and
// load failures inference.ErrModelLoadFailed; in both cases no cycle starts.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startLocked(ctx)
}

func (p *Pipeline) startLocked(ctx context.Context) error {
	if p.active != nil {
		return errors.New("pipeline already running")
	}

	if err := p.source.Acquire(ctx); err != nil {
		return classifyAcquire(err)
	}

	engine, err := p.factory(p.cfg.Model, p.cfg.Provider)
	if err != nil {
		if rErr := p.source.Release(); rErr != nil {
			p.logger.Warn("releasing source after failed start", zap.Error(rErr))
		}
		return classifyLoad(err)
	}

	decoder, err := models.NewDecoder(p.cfg.Model)
	if err != nil {
		err = multierr.Combine(classifyLoad(err), engine.Close(), p.source.Release())
		return err
	}

	width, height := p.renderer.Size()
	mapper, err := postprocess.NewMapper(p.cfg.Model.InputSize, width, height)
	if err != nil {
		err = multierr.Combine(err, engine.Close(), p.source.Release())
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s := &session{
		stream:  uuid.New(),
		model:   p.cfg.Model,
		engine:  engine,
		decoder: decoder,
		mapper:  mapper,
		cancel:  cancel,
		work:    make(chan capture.Frame, 1),
	}

	p.state.Reset()
	p.state.SetRunning(true)
	p.active = s

	s.wg.Add(2)
	go p.readLoop(loopCtx, s)
	go p.cycleLoop(loopCtx, s)

	p.emit(Event{Type: EventStarted, At: p.clock.Now(), Stream: s.stream, Config: s.model.Name})
	p.logger.Info("pipeline started",
		zap.String("stream", s.stream.String()),
		zap.String("model", string(s.model.Name)),
		zap.String("device", p.cfg.Provider.Device),
		zap.Int("input_size", s.model.InputSize),
	)
	return nil
}

// Stop halts scheduling, lets an in-flight inference finish and discards its
// result, releases the capture device and resets the scheduler state.
//
// Idempotent, and safe to call from a status event consumer: the loop never
// blocks on the event channel, so it always winds down.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

func (p *Pipeline) stopLocked() error {
	if p.active == nil {
		return nil
	}
	s := p.active
	p.active = nil

	// Flag first so nothing re-arms, then cancel the blocking reads.
	p.state.SetRunning(false)
	s.cancel()
	s.wg.Wait()

	err := multierr.Append(s.engine.Close(), p.source.Release())

	cycles := p.state.Cycles()
	dropped := p.state.Dropped()
	p.state.Reset()

	p.emit(Event{Type: EventStopped, At: p.clock.Now(), Stream: s.stream, Config: s.model.Name})
	p.logger.Info("pipeline stopped",
		zap.String("stream", s.stream.String()),
		zap.Uint64("cycles", cycles),
		zap.Int64("dropped", dropped),
	)
	return err
}

// SwitchConfig tears the current session down and starts a new one under the
// given configuration. Atomic for external observers: no cycle of the old
// configuration runs once the switch begins, and the first cycle to render
// afterwards uses the new model's input size.
func (p *Pipeline) SwitchConfig(ctx context.Context, cfg Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := p.stopLocked(); err != nil {
		p.logger.Warn("teardown during config switch", zap.Error(err))
	}

	p.cfg = cfg
	if err := p.startLocked(ctx); err != nil {
		return err
	}

	p.emit(Event{
		Type:   EventConfigSwitched,
		At:     p.clock.Now(),
		Stream: p.active.stream,
		Config: cfg.Model.Name,
	})
	return nil
}

// readLoop pulls frames at source pace. Every frame is a cycle request: the
// busy gate either admits it or drops it on the floor.
func (p *Pipeline) readLoop(ctx context.Context, s *session) {
	defer s.wg.Done()
	defer close(s.work)

	for {
		if ctx.Err() != nil || !p.state.Running() {
			return
		}

		frame, err := p.source.Read(ctx)
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				return
			case errors.Is(err, capture.ErrStreamEnded):
				p.emit(Event{Type: EventStreamEnded, At: p.clock.Now(), Stream: s.stream, Config: s.model.Name})
				p.logger.Info("stream ended", zap.String("stream", s.stream.String()))
				return
			default:
				p.emit(Event{
					Type:   EventCycleFailed,
					At:     p.clock.Now(),
					Stream: s.stream,
					Config: s.model.Name,
					Err:    err,
				})
				p.logger.Warn("frame read failed", zap.Error(err))
				continue
			}
		}

		if !p.state.Request() {
			dropped := p.state.RecordDrop()
			p.emit(Event{
				Type:    EventFrameDropped,
				At:      p.clock.Now(),
				Stream:  s.stream,
				Config:  s.model.Name,
				Dropped: dropped,
			})
			continue
		}

		// Request owns the cycle slot, so the channel is empty and this send
		// cannot block.
		s.work <- frame
	}
}

// cycleLoop executes admitted cycles one at a time. The busy gate opens again
// only after a cycle fully completes, failures included.
func (p *Pipeline) cycleLoop(ctx context.Context, s *session) {
	defer s.wg.Done()

	for frame := range s.work {
		metrics, err := p.runCycle(ctx, s, frame)

		end := p.clock.Now()
		metrics.End = end
		metrics.Latency = end.Sub(metrics.Start)
		metrics.FPS = p.state.CompleteCycle(end)

		switch {
		case err == nil:
			p.emit(Event{
				Type:   EventCycleCompleted,
				At:     end,
				Stream: s.stream,
				Config: s.model.Name,
				Cycle:  &metrics,
			})
			p.logger.Debug("cycle completed",
				zap.Uint64("sequence", metrics.Sequence),
				zap.Int("rendered", metrics.Rendered),
				zap.Float64("fps", metrics.FPS),
				zap.Duration("latency", metrics.Latency),
			)
		case errors.Is(err, context.Canceled):
			// Stopped mid-cycle; the result is discarded, not reported.
		default:
			p.emit(Event{
				Type:   EventCycleFailed,
				At:     end,
				Stream: s.stream,
				Config: s.model.Name,
				Cycle:  &metrics,
				Err:    err,
			})
			p.logger.Warn("cycle failed",
				zap.Uint64("sequence", metrics.Sequence),
				zap.Error(err),
			)
		}
	}
}

// runCycle pushes one frame through the five processing stages. It returns
// partial metrics alongside the error when a stage fails; the caller owns
// the Busy to Idle transition.
func (p *Pipeline) runCycle(
	ctx context.Context,
	s *session,
	frame capture.Frame,
) (CycleMetrics, error) {
	m := CycleMetrics{
		FrameID:    frame.ID,
		Sequence:   frame.Sequence,
		CapturedAt: frame.CapturedAt,
		Start:      p.clock.Now(),
	}

	stage := p.clock.Now()
	out, err := s.engine.Infer(ctx, frame.Image)
	m.InferTime = p.clock.Since(stage)
	if cErr := ctx.Err(); cErr != nil {
		// Stopped during inference: the result is discarded before it can
		// reach the renderer.
		return m, cErr
	}
	if err != nil {
		return m, classifyInfer(err)
	}

	stage = p.clock.Now()
	candidates, err := s.decoder.Decode(out)
	m.DecodeTime = p.clock.Since(stage)
	if err != nil {
		return m, err
	}
	m.Candidates = len(candidates)

	stage = p.clock.Now()
	kept := postprocess.Suppress(candidates, s.model.NMS)
	m.SuppressTime = p.clock.Since(stage)

	stage = p.clock.Now()
	mapped := s.mapper.Apply(kept)
	m.MapTime = p.clock.Since(stage)

	stage = p.clock.Now()
	err = p.renderer.Draw(frame, p.overlays(s.model.Family, mapped))
	m.RenderTime = p.clock.Since(stage)
	if err != nil {
		return m, err
	}
	m.Rendered = len(mapped)
	return m, nil
}

// overlays resolves class labels for the final render list. Unknown indices
// keep a numeric label rather than losing the detection.
func (p *Pipeline) overlays(family models.Family, detections []postprocess.Detection) []render.Overlay {
	if len(detections) == 0 {
		return nil
	}

	manager := models.DefaultClassManager()
	out := make([]render.Overlay, len(detections))
	for i, d := range detections {
		label, err := manager.GetName(family, d.Class)
		if err != nil {
			label = fmt.Sprintf("class %d", d.Class)
		}
		out[i] = render.Overlay{Box: d.Box, Label: label, Score: d.Score, Class: d.Class}
	}
	return out
}

// emit never blocks: the loop must not stall on a slow status consumer, so
// overflow is counted and discarded instead.
func (p *Pipeline) emit(e Event) {
	select {
	case p.events <- e:
	default:
		p.lostEvents.Inc()
	}
}

// classifyAcquire pins arbitrary source errors to the taxonomy callers match
// on with errors.Is.
func classifyAcquire(err error) error {
	if errors.Is(err, capture.ErrResourceUnavailable) {
		return err
	}
	return errors.Wrapf(capture.ErrResourceUnavailable, "%v", err)
}

// classifyLoad does the same for engine construction failures.
func classifyLoad(err error) error {
	if errors.Is(err, inference.ErrModelLoadFailed) {
		return err
	}
	return errors.Wrapf(inference.ErrModelLoadFailed, "%v", err)
}

// classifyInfer does the same for per-cycle engine run failures.
func classifyInfer(err error) error {
	if errors.Is(err, inference.ErrInferenceFailure) {
		return err
	}
	return errors.Wrapf(inference.ErrInferenceFailure, "%v", err)
}
