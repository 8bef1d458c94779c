// Package providers - NVIDIA TensorRT execution provider.
package providers

import "strconv"

// TensorRTOptions contains arguments for the TensorRT provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/TensorRT-ExecutionProvider.html#configurations
type TensorRTOptions struct {
	// The device ID.
	DeviceID int `json:"deviceID" yaml:"deviceID"`
	// Maximum workspace size for TensorRT engine builds, in bytes. Zero
	// defers to the runtime default (1GB).
	MaxWorkspaceSize int64 `json:"maxWorkspaceSize" yaml:"maxWorkspaceSize"`
	// Build engines with FP16 kernels enabled.
	FP16Enable bool `json:"fp16Enable" yaml:"fp16Enable"`
	// Cache built engines on disk so later loads skip the build step, which
	// can take minutes for larger models.
	EngineCacheEnable bool `json:"engineCacheEnable" yaml:"engineCacheEnable"`
	// Directory the engine cache lives in. Only read when caching is on.
	EngineCachePath string `json:"engineCachePath" yaml:"engineCachePath"`
}

// isProviderOptions is a marker function to ensure the options are valid.
func (TensorRTOptions) isProviderOptions() {}

// ToMap converts the options into the key/value form the native TensorRT
// provider options are updated with. Zero values are omitted so the runtime
// keeps its own defaults.
func (o TensorRTOptions) ToMap() map[string]string {
	m := map[string]string{
		"device_id": strconv.Itoa(o.DeviceID),
	}
	if o.MaxWorkspaceSize > 0 {
		m["trt_max_workspace_size"] = strconv.FormatInt(o.MaxWorkspaceSize, 10)
	}
	if o.FP16Enable {
		m["trt_fp16_enable"] = "1"
	}
	if o.EngineCacheEnable {
		m["trt_engine_cache_enable"] = "1"
	}
	if o.EngineCachePath != "" {
		m["trt_engine_cache_path"] = o.EngineCachePath
	}
	return m
}

// TensorRTProvider implements the ExecutionProvider interface.
type TensorRTProvider struct {
	options TensorRTOptions
}

// Backend returns the backend of the TensorRT provider.
func (p *TensorRTProvider) Backend() ProviderBackend {
	return TensorRTProviderBackend
}

// Options returns the options of the TensorRT provider.
func (p *TensorRTProvider) Options() ProviderOptions {
	return p.options
}
