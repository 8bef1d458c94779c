// Package ort - onnxruntime-backed inference engine.
//
// This is the only package in the module that touches the native runtime.
// Everything above it (providers, postprocessing, the pipeline) is pure Go, so
// tests and benchmarks run without the shared library installed.
package ort

import (
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"

	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/models"
)

// Node names YOLO-family ONNX exports use for their single input and output.
const (
	inputName  = "images"
	outputName = "output0"
)

var (
	initOnce sync.Once
	initErr  error
)

// DefaultLibraryPath returns the conventional location of the onnxruntime
// shared library for the current platform. Used when the provider config does
// not name a path explicitly.
//
// Returns:
//   - string: The path to the shared library.
//   - error: An error when no library is bundled for this platform.
func DefaultLibraryPath() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if runtime.GOARCH == "amd64" {
			return "../third_party/onnxruntime.dll", nil
		}
	case "darwin":
		return "./third_party/libonnxruntime.1.23.0.dylib", nil
	case "linux":
		if runtime.GOARCH == "arm64" {
			return "../third_party/onnxruntime_arm64.so", nil
		}
		return "../third_party/onnxruntime.so", nil
	}
	return "", errors.Errorf(
		"no onnxruntime library bundled for %s/%s", runtime.GOOS, runtime.GOARCH)
}

// initRuntime loads the native library and initializes the onnxruntime
// environment. The environment is process-wide, so the first caller's library
// path wins and every later session reuses it.
func initRuntime(libPath string) error {
	initOnce.Do(func() {
		ort.SetEnvironmentLogLevel(ort.LoggingLevelWarning)
		// Point onnxruntime to the exact shared library path (overrides the
		// default search).
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			initErr = errors.Wrap(err, "initializing ORT environment")
		}
	})
	return initErr
}

// session owns the native state behind one loaded model: the advanced session
// plus its preallocated input and output tensors.
type session struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// Close releases the native tensors and the session itself.
//
// Returns:
//   - error: The combined destroy errors, or nil.
func (s *session) Close() error {
	var err error
	if s.input != nil {
		err = multierr.Append(err, s.input.Destroy())
		s.input = nil
	}
	if s.output != nil {
		err = multierr.Append(err, s.output.Destroy())
		s.output = nil
	}
	if s.session != nil {
		err = multierr.Append(err, s.session.Destroy())
		s.session = nil
	}
	return err
}

// newSession creates an onnxruntime session with preallocated input and
// output tensors for the given model.
//
// Order of operations:
//  1. Library path check: ensures the native runtime is accessible.
//  2. Environment setup: loads the library and prepares internal state.
//  3. Tensor allocation: fixed-shape buffers for input [1,3,S,S] and output
//     [1,4+C,N] data, reused across every run.
//  4. Session options: threading and graph optimization level.
//  5. Execution providers: GPU or accelerated CPU paths when configured.
//  6. Session creation: loads the model and binds the tensors.
//
// Arguments:
//   - model: The model to load.
//   - cfg: The execution side of the session configuration.
//
// Returns:
//   - *session: The wrapped native session, ready to Run.
//   - error: An error if any step of the setup fails.
func newSession(model models.Config, cfg providers.Config) (*session, error) {
	provider, err := cfg.Provider()
	if err != nil {
		return nil, err
	}

	libPath := cfg.LibraryPath
	if libPath == "" {
		libPath, err = DefaultLibraryPath()
		if err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(libPath); err != nil {
		return nil, errors.Wrapf(err, "onnxruntime library not found at %s", libPath)
	}
	if err := initRuntime(libPath); err != nil {
		return nil, err
	}

	// The input follows the common deep learning layout [batch, channels,
	// height, width]. The shape is copied by the runtime, so it is not needed
	// after this call.
	size := int64(model.InputSize)
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}

	// The output matches the YOLO-family detection head: 4 box channels plus
	// one channel per class, across every candidate position.
	channels := int64(4 + model.NumClasses())
	positions := int64(model.OutputPositions())
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, channels, positions))
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "creating output tensor")
	}

	options, err := sessionOptions(provider, cfg)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	defer options.Destroy()

	// Ties everything together: loads the model into an inference session,
	// binds the preallocated tensors for zero-copy data exchange and applies
	// the configured options and execution providers.
	advanced, err := ort.NewAdvancedSession(
		model.Path,
		[]string{inputName},
		[]string{outputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "creating ORT session")
	}

	return &session{session: advanced, input: input, output: output}, nil
}

// sessionOptions builds the session options for the given provider: thread
// counts, graph optimization level and the execution provider registration.
func sessionOptions(
	provider providers.ExecutionProvider,
	cfg providers.Config,
) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "creating ORT session options")
	}

	// Intra-op threads parallelize work inside a single graph node (e.g.
	// matrix multiplication), inter-op threads run independent nodes
	// concurrently. Zero keeps the runtime default.
	if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
		options.Destroy()
		return nil, errors.Wrap(err, "setting intra-op threads")
	}
	if err := options.SetInterOpNumThreads(cfg.InterOpThreads); err != nil {
		options.Destroy()
		return nil, errors.Wrap(err, "setting inter-op threads")
	}
	// Extended graph optimization fuses operations and folds constants while
	// the graph loads.
	level := ort.GraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)
	if err := options.SetGraphOptimizationLevel(level); err != nil {
		options.Destroy()
		return nil, errors.Wrap(err, "setting graph optimization level")
	}

	if err := appendProvider(options, provider); err != nil {
		options.Destroy()
		return nil, err
	}
	return options, nil
}

// appendProvider registers the configured execution provider on the session
// options. The CPU backend is the runtime default and needs no registration.
func appendProvider(options *ort.SessionOptions, provider providers.ExecutionProvider) error {
	switch provider.Backend() {
	case providers.CPUProviderBackend:
		return nil

	case providers.CoreMLProviderBackend:
		opts, ok := provider.Options().(providers.CoreMLOptions)
		if !ok {
			return errors.Errorf("invalid options type for CoreML: %T", provider.Options())
		}
		if err := options.AppendExecutionProviderCoreML(opts.Flags()); err != nil {
			return errors.Wrap(err, "enabling CoreML")
		}

	case providers.OpenVINOProviderBackend:
		opts, ok := provider.Options().(providers.OpenVINOOptions)
		if !ok {
			return errors.Errorf("invalid options type for OpenVINO: %T", provider.Options())
		}
		if err := options.AppendExecutionProviderOpenVINO(opts.ToMap()); err != nil {
			return errors.Wrap(err, "enabling OpenVINO")
		}

	case providers.CUDAProviderBackend:
		opts, ok := provider.Options().(providers.CUDAOptions)
		if !ok {
			return errors.Errorf("invalid options type for CUDA: %T", provider.Options())
		}
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "creating CUDA provider options")
		}
		// The options are copied into the session options on append.
		defer cuda.Destroy()
		if err := cuda.Update(opts.ToMap()); err != nil {
			return errors.Wrap(err, "applying CUDA provider options")
		}
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return errors.Wrap(err, "enabling CUDA")
		}

	case providers.TensorRTProviderBackend:
		opts, ok := provider.Options().(providers.TensorRTOptions)
		if !ok {
			return errors.Errorf("invalid options type for TensorRT: %T", provider.Options())
		}
		trt, err := ort.NewTensorRTProviderOptions()
		if err != nil {
			return errors.Wrap(err, "creating TensorRT provider options")
		}
		defer trt.Destroy()
		if err := trt.Update(opts.ToMap()); err != nil {
			return errors.Wrap(err, "applying TensorRT provider options")
		}
		if err := options.AppendExecutionProviderTensorRT(trt); err != nil {
			return errors.Wrap(err, "enabling TensorRT")
		}

	default:
		return errors.Errorf("unsupported backend %q", provider.Backend())
	}
	return nil
}
