// Package providers - Session-level provider configuration.
package providers

import (
	"github.com/pkg/errors"
)

// Config is the execution side of a session configuration: which hardware to
// run on and how to set up the runtime around it. It deliberately holds one
// options struct per backend so a config file can carry settings for several
// targets and switch between them by flipping Device.
type Config struct {
	// Device selects the provider backend: "cpu", "gpu" (CUDA), "coreml",
	// "openvino" or "tensorrt". Empty means cpu.
	Device string `json:"device" yaml:"device"`

	// LibraryPath points at the onnxruntime shared library to load.
	LibraryPath string `json:"libraryPath" yaml:"libraryPath"`

	// IntraOpThreads sets the number of threads used to parallelize execution
	// within onnxruntime graph nodes. Zero uses the runtime default.
	IntraOpThreads int `json:"intraOpThreads" yaml:"intraOpThreads"`

	// InterOpThreads sets the number of threads used to parallelize execution
	// across separate onnxruntime graph nodes. Zero uses the runtime default.
	InterOpThreads int `json:"interOpThreads" yaml:"interOpThreads"`

	// Per-backend options. Only the struct matching Device is read.
	CUDA     *CUDAOptions     `json:"cuda,omitempty"     yaml:"cuda,omitempty"`
	CoreML   *CoreMLOptions   `json:"coreml,omitempty"   yaml:"coreml,omitempty"`
	OpenVINO *OpenVINOOptions `json:"openvino,omitempty" yaml:"openvino,omitempty"`
	TensorRT *TensorRTOptions `json:"tensorrt,omitempty" yaml:"tensorrt,omitempty"`
}

// Validate checks that the device name resolves to a known backend.
func (c Config) Validate() error {
	_, err := BackendForDevice(c.Device)
	return err
}

// Provider resolves the configured device into an execution provider carrying
// the matching backend options.
//
// Returns:
//   - ExecutionProvider: The provider for the session builder to append.
//   - error: An error when the device name is not recognized.
func (c Config) Provider() (ExecutionProvider, error) {
	backend, err := BackendForDevice(c.Device)
	if err != nil {
		return nil, err
	}

	switch backend {
	case CPUProviderBackend:
		return NewProvider(CPUOptions{})
	case CUDAProviderBackend:
		opts := CUDAOptions{}
		if c.CUDA != nil {
			opts = *c.CUDA
		}
		return NewProvider(opts)
	case CoreMLProviderBackend:
		opts := CoreMLOptions{}
		if c.CoreML != nil {
			opts = *c.CoreML
		}
		return NewProvider(opts)
	case OpenVINOProviderBackend:
		opts := OpenVINOOptions{}
		if c.OpenVINO != nil {
			opts = *c.OpenVINO
		}
		return NewProvider(opts)
	case TensorRTProviderBackend:
		opts := TensorRTOptions{}
		if c.TensorRT != nil {
			opts = *c.TensorRT
		}
		return NewProvider(opts)
	default:
		return nil, errors.Errorf("unsupported backend %q", backend)
	}
}
