// Package providers - Intel OpenVINO execution provider.
package providers

import "strconv"

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	// The hardware device ID, e.g. "0".
	DeviceID string `json:"deviceID" yaml:"deviceID"`
	// Overrides the accelerator hardware type at runtime: "CPU", "GPU" or
	// "NPU". If unset, the default hardware chosen at build time is used.
	DeviceType string `json:"deviceType" yaml:"deviceType"`
	// Numeric precision to execute with. Supported per hardware:
	// CPU: FP32; GPU: FP32, FP16, ACCURACY; NPU: FP16. ACCURACY keeps the
	// model's own input precision.
	Precision Precision `json:"precision" yaml:"precision"`
	// Overrides the accelerator default number of threads at runtime.
	NumOfThreads int `json:"numOfThreads" yaml:"numOfThreads"`
	// Overrides the accelerator default number of streams at runtime.
	NumStreams int `json:"numStreams" yaml:"numStreams"`
	// Rewrites dynamic shaped models to static shape at runtime.
	DisableDynamicShapes bool `json:"disableDynamicShapes" yaml:"disableDynamicShapes"`
}

// isProviderOptions is a marker function to ensure the options are valid.
func (OpenVINOOptions) isProviderOptions() {}

// ToMap converts the options into the key/value form the provider append call
// takes. Zero values are omitted so the runtime keeps its own defaults.
func (o OpenVINOOptions) ToMap() map[string]string {
	m := map[string]string{}
	if o.DeviceID != "" {
		m["device_id"] = o.DeviceID
	}
	if o.DeviceType != "" {
		m["device_type"] = o.DeviceType
	}
	if o.Precision != "" {
		m["precision"] = string(o.Precision)
	}
	if o.NumOfThreads > 0 {
		m["num_of_threads"] = strconv.Itoa(o.NumOfThreads)
	}
	if o.NumStreams > 0 {
		m["num_streams"] = strconv.Itoa(o.NumStreams)
	}
	if o.DisableDynamicShapes {
		m["disable_dynamic_shapes"] = "true"
	}
	return m
}

// OpenVINOProvider implements the ExecutionProvider interface.
type OpenVINOProvider struct {
	options OpenVINOOptions
}

// Backend returns the backend of the OpenVINO provider.
func (p *OpenVINOProvider) Backend() ProviderBackend {
	return OpenVINOProviderBackend
}

// Options returns the options of the OpenVINO provider.
func (p *OpenVINOProvider) Options() ProviderOptions {
	return p.options
}
