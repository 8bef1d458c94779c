// Command livedetect runs the live object detection pipeline against a
// camera, a video file, a directory of stills, or a synthetic test pattern.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nvr-ai/go-detect/capture"
	"github.com/nvr-ai/go-detect/capture/webcam"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/ort"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/pipeline"
	"github.com/nvr-ai/go-detect/profiler"
	"github.com/nvr-ai/go-detect/render"
	"github.com/nvr-ai/go-detect/render/window"
)

// defaultDeviceID is the OpenCV index of the default camera.
const defaultDeviceID = 0

var supportedVideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv"}

// InputType selects where frames come from.
type InputType int

const (
	InputCamera InputType = iota
	InputVideo
	InputFrames
	InputSynthetic
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to a pipeline YAML configuration")
		modelName   = flag.String("model", "yolov8n", "Registered model preset")
		modelPath   = flag.String("model-path", "", "Path to the ONNX graph (required without -config)")
		device      = flag.String("device", "cpu", "Execution device: cpu, gpu, coreml, openvino or tensorrt")
		libraryPath = flag.String("onnxruntime", "", "Override the onnxruntime shared library path")
		videoPath   = flag.String("video", "", "Path to a video file (.mp4, .avi, .mov, .mkv)")
		framesDir   = flag.String("frames", "", "Directory of still images to replay")
		loopFrames  = flag.Bool("loop", false, "Restart the frames directory when exhausted")
		synthetic   = flag.Bool("synthetic", false, "Use the synthetic test pattern source")
		cameraID    = flag.Int("camera", defaultDeviceID, "Video capture device ID")
		width       = flag.Int("width", 1280, "Render surface width")
		height      = flag.Int("height", 720, "Render surface height")
		interval    = flag.Duration("interval", 33*time.Millisecond, "Synthetic source frame interval")
		showWindow  = flag.Bool("show-window", true, "Display the detection window")
		profile     = flag.Bool("profile", true, "Run the periodic runtime profiler")
		debug       = flag.Bool("debug", false, "Verbose logging")
	)
	flag.Parse()

	logger, err := buildLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := resolveConfig(*configPath, *modelName, *modelPath, *device, *libraryPath)
	if err != nil {
		logger.Fatal("resolving configuration", zap.Error(err))
	}

	input, err := validateInputFlags(*videoPath, *framesDir, *synthetic)
	if err != nil {
		logger.Fatal("validating input flags", zap.Error(err))
	}

	resolution, ok := images.GetHighestResolutionUnderDimensions(*width, *height)
	if !ok {
		resolution, _ = images.GetResolutionByType(images.ResolutionTypeHD720p)
	}

	var source capture.Source
	switch input {
	case InputVideo:
		source = webcam.NewFile(*videoPath)
	case InputFrames:
		source = capture.NewDirectorySource(*framesDir, *loopFrames)
	case InputSynthetic:
		source = capture.NewSyntheticSource(resolution, *interval)
	default:
		source = webcam.NewDevice(*cameraID, resolution)
	}

	var (
		renderer render.Renderer
		win      *window.Window
	)
	if *showWindow {
		win = window.New("Live Detection", *width, *height)
		renderer = win
	} else {
		renderer = render.NewLogRenderer(*width, *height, logger)
	}

	p, err := pipeline.New(source, renderer, buildEngine, cfg, logger)
	if err != nil {
		logger.Fatal("assembling pipeline", zap.Error(err))
	}

	rp := profiler.New(profiler.Options{}, logger)
	if *profile {
		rp.AddMetricsCollector(p)
		rp.Start()
		defer rp.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.Start(ctx); err != nil {
		logger.Fatal("starting pipeline", zap.Error(err))
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case e := <-p.Events():
			switch e.Type {
			case pipeline.EventCycleCompleted:
				if e.Cycle == nil {
					continue
				}
				if *profile {
					rp.RecordMetric("fps", e.Cycle.FPS)
					rp.RecordMetric("latency_ms", millis(e.Cycle.Latency))
					rp.RecordMetric("infer_ms", millis(e.Cycle.InferTime))
					rp.RecordMetric("decode_ms", millis(e.Cycle.DecodeTime))
					rp.RecordMetric("suppress_ms", millis(e.Cycle.SuppressTime))
					rp.RecordMetric("map_ms", millis(e.Cycle.MapTime))
					rp.RecordMetric("render_ms", millis(e.Cycle.RenderTime))
				}
				if win != nil {
					win.SetStatus(fmt.Sprintf("%s | %.1f fps | %d objects",
						cfg.Model.Name, e.Cycle.FPS, e.Cycle.Rendered))
				}
			case pipeline.EventStreamEnded:
				break loop
			}
		}
	}

	if err := p.Stop(); err != nil {
		logger.Warn("stopping pipeline", zap.Error(err))
	}
	if err := renderer.Close(); err != nil {
		logger.Warn("closing renderer", zap.Error(err))
	}
}

func millis(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

// buildEngine is the pipeline's engine factory: it constructs the
// onnxruntime-backed engine for the active configuration.
func buildEngine(m models.Config, p providers.Config) (inference.Engine, error) {
	engine, err := ort.NewBuilder().WithModel(m).WithProvider(p).Build()
	if err != nil {
		return nil, err
	}
	return engine, nil
}

func buildLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return cfg.Build()
}

// resolveConfig builds the pipeline configuration from a YAML file when given
// one, otherwise from the individual flags.
func resolveConfig(configPath, modelName, modelPath, device, libraryPath string) (pipeline.Config, error) {
	if configPath != "" {
		return pipeline.LoadConfig(configPath)
	}
	if modelPath == "" {
		return pipeline.Config{}, errors.New("either -config or -model-path is required")
	}

	model, err := models.NewConfig(models.Name(modelName), modelPath)
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		Model:    model,
		Provider: providers.Config{Device: device, LibraryPath: libraryPath},
	}, nil
}

// validateInputFlags checks that at most one input is selected and that it
// exists, defaulting to the camera.
func validateInputFlags(videoPath, framesDir string, synthetic bool) (InputType, error) {
	selected := 0
	if videoPath != "" {
		selected++
	}
	if framesDir != "" {
		selected++
	}
	if synthetic {
		selected++
	}
	if selected > 1 {
		return InputCamera, errors.New("choose at most one of -video, -frames and -synthetic")
	}

	switch {
	case videoPath != "":
		if err := validateFile(videoPath, supportedVideoExtensions); err != nil {
			return InputCamera, errors.Wrap(err, "video validation")
		}
		return InputVideo, nil
	case framesDir != "":
		info, err := os.Stat(framesDir)
		if err != nil {
			return InputCamera, errors.Wrapf(err, "frames directory %s", framesDir)
		}
		if !info.IsDir() {
			return InputCamera, errors.Errorf("%s is not a directory", framesDir)
		}
		return InputFrames, nil
	case synthetic:
		return InputSynthetic, nil
	default:
		return InputCamera, nil
	}
}

// validateFile checks that the file exists and carries a supported extension.
func validateFile(path string, supported []string) error {
	if _, err := os.Stat(path); err != nil {
		return errors.Wrapf(err, "file %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range supported {
		if ext == s {
			return nil
		}
	}
	return errors.Errorf("unsupported file extension %s, supported: %v", ext, supported)
}
