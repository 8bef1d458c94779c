// Package providers - NVIDIA CUDA execution provider.
package providers

import "strconv"

// CUDAOptions contains arguments for the CUDA provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/CUDA-ExecutionProvider.html#configuration-options
type CUDAOptions struct {
	// The device ID.
	DeviceID int `json:"deviceID" yaml:"deviceID"`
	// The size limit of the device memory arena in bytes. Zero defers to the
	// runtime default (no limit).
	GPUMemLimit int64 `json:"gpuMemLimit" yaml:"gpuMemLimit"`
	// The strategy for extending the device memory arena:
	// "kNextPowerOfTwo" or "kSameAsRequested". Empty defers to the runtime.
	ArenaExtendStrategy string `json:"arenaExtendStrategy" yaml:"arenaExtendStrategy"`
	// The type of search done for cuDNN convolution algorithms:
	// "EXHAUSTIVE", "HEURISTIC" or "DEFAULT". Empty defers to the runtime.
	CudnnConvAlgoSearch string `json:"cudnnConvAlgoSearch" yaml:"cudnnConvAlgoSearch"`
	// TF32 is a math mode available on NVIDIA GPUs since Ampere, running
	// float32 matrix multiplications on tensor cores with reduced precision.
	UseTF32 bool `json:"useTF32" yaml:"useTF32"`
	// Capture the model into a CUDA graph and replay it on later runs.
	EnableCudaGraph bool `json:"enableCudaGraph" yaml:"enableCudaGraph"`
}

// isProviderOptions is a marker function to ensure the options are valid.
func (CUDAOptions) isProviderOptions() {}

// ToMap converts the options into the key/value form the native CUDA provider
// options are updated with. Zero values are omitted so the runtime keeps its
// own defaults.
func (o CUDAOptions) ToMap() map[string]string {
	m := map[string]string{
		"device_id": strconv.Itoa(o.DeviceID),
	}
	if o.GPUMemLimit > 0 {
		m["gpu_mem_limit"] = strconv.FormatInt(o.GPUMemLimit, 10)
	}
	if o.ArenaExtendStrategy != "" {
		m["arena_extend_strategy"] = o.ArenaExtendStrategy
	}
	if o.CudnnConvAlgoSearch != "" {
		m["cudnn_conv_algo_search"] = o.CudnnConvAlgoSearch
	}
	if o.UseTF32 {
		m["use_tf32"] = "1"
	}
	if o.EnableCudaGraph {
		m["enable_cuda_graph"] = "1"
	}
	return m
}

// CUDAProvider implements the ExecutionProvider interface.
type CUDAProvider struct {
	options CUDAOptions
}

// Backend returns the backend of the CUDA provider.
func (p *CUDAProvider) Backend() ProviderBackend {
	return CUDAProviderBackend
}

// Options returns the options of the CUDA provider.
func (p *CUDAProvider) Options() ProviderOptions {
	return p.options
}
