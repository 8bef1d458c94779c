// Package providers - Execution provider selection for onnxruntime sessions.
//
// Everything here is plain configuration data: the conversion into native
// runtime options happens in the cgo-backed session builder, so this package
// stays importable from pure code and tests.
package providers

import (
	"github.com/pkg/errors"
)

// ProviderBackend represents the ONNX Runtime execution providers a session
// can be built against.
type ProviderBackend string

const (
	// CPUProviderBackend runs on the default CPU provider.
	CPUProviderBackend ProviderBackend = "cpu"
	// CUDAProviderBackend uses NVIDIA CUDA for inference acceleration.
	CUDAProviderBackend ProviderBackend = "cuda"
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
	// OpenVINOProviderBackend uses Intel OpenVINO for inference acceleration.
	OpenVINOProviderBackend ProviderBackend = "openvino"
	// TensorRTProviderBackend uses NVIDIA TensorRT for inference acceleration.
	TensorRTProviderBackend ProviderBackend = "tensorrt"
)

// Backends lists every supported provider backend.
var Backends = []ProviderBackend{
	CPUProviderBackend,
	CUDAProviderBackend,
	CoreMLProviderBackend,
	OpenVINOProviderBackend,
	TensorRTProviderBackend,
}

// BackendForDevice maps a user-facing device name to a provider backend.
// "gpu" selects CUDA, the most common acceleration target; every backend name
// is also accepted verbatim.
//
// Arguments:
//   - device: The device name from configuration ("cpu", "gpu", "coreml",
//     "openvino", "tensorrt").
//
// Returns:
//   - ProviderBackend: The backend to build the session with.
//   - error: An error when the device name is not recognized.
func BackendForDevice(device string) (ProviderBackend, error) {
	switch device {
	case "", "cpu":
		return CPUProviderBackend, nil
	case "gpu", "cuda":
		return CUDAProviderBackend, nil
	case "coreml":
		return CoreMLProviderBackend, nil
	case "openvino":
		return OpenVINOProviderBackend, nil
	case "tensorrt":
		return TensorRTProviderBackend, nil
	default:
		return "", errors.Errorf("unsupported device %q", device)
	}
}

// ProviderOptions is a marker interface for provider-specific config.
type ProviderOptions interface {
	isProviderOptions()
}

// ExecutionProvider represents the contract that all execution providers
// must implement.
type ExecutionProvider interface {
	Backend() ProviderBackend
	Options() ProviderOptions
}

// NewProvider creates an execution provider from backend-specific options.
//
// Arguments:
//   - options: The options for the provider.
//
// Returns:
//   - ExecutionProvider: The new provider.
//   - error: An error if the options type is unsupported.
func NewProvider(options ProviderOptions) (ExecutionProvider, error) {
	switch opts := options.(type) {
	case CPUOptions:
		return &CPUProvider{options: opts}, nil
	case CUDAOptions:
		return &CUDAProvider{options: opts}, nil
	case CoreMLOptions:
		return &CoreMLProvider{options: opts}, nil
	case OpenVINOOptions:
		return &OpenVINOProvider{options: opts}, nil
	case TensorRTOptions:
		return &TensorRTProvider{options: opts}, nil
	default:
		return nil, errors.Errorf("unsupported provider options type: %T", opts)
	}
}
