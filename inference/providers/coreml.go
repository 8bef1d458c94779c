// Package providers - Apple CoreML execution provider.
package providers

// CoreML provider flags, matching the COREML_FLAG_* values of the runtime's
// C API.
const (
	coremlFlagUseCPUOnly       uint32 = 0x001
	coremlFlagOnlyEnableOnANE  uint32 = 0x004
	coremlFlagOnlyStaticShapes uint32 = 0x008
	coremlFlagCreateMLProgram  uint32 = 0x010
	coremlFlagUseCPUAndGPU     uint32 = 0x020
)

// CoreMLOptions contains arguments for the CoreML provider.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
type CoreMLOptions struct {
	// Limit CoreML to running on CPU only.
	UseCPUOnly bool `json:"useCPUOnly" yaml:"useCPUOnly"`
	// Enable CoreML only on devices with a compatible Apple Neural Engine.
	OnlyEnableOnANE bool `json:"onlyEnableOnANE" yaml:"onlyEnableOnANE"`
	// Only allow CoreML to take nodes with statically shaped inputs; dynamic
	// shapes can regress performance on this provider.
	RequireStaticInputShapes bool `json:"requireStaticInputShapes" yaml:"requireStaticInputShapes"`
	// Create an MLProgram format model. Requires Core ML 5 or later
	// (iOS 15+ or macOS 12+); the default is the NeuralNetwork format.
	CreateMLProgram bool `json:"createMLProgram" yaml:"createMLProgram"`
	// Allow CoreML on both CPU and GPU but not the neural engine.
	UseCPUAndGPU bool `json:"useCPUAndGPU" yaml:"useCPUAndGPU"`
}

// isProviderOptions is a marker function to ensure the options are valid.
func (CoreMLOptions) isProviderOptions() {}

// Flags folds the options into the flag word the provider append call takes.
func (o CoreMLOptions) Flags() uint32 {
	var flags uint32
	if o.UseCPUOnly {
		flags |= coremlFlagUseCPUOnly
	}
	if o.OnlyEnableOnANE {
		flags |= coremlFlagOnlyEnableOnANE
	}
	if o.RequireStaticInputShapes {
		flags |= coremlFlagOnlyStaticShapes
	}
	if o.CreateMLProgram {
		flags |= coremlFlagCreateMLProgram
	}
	if o.UseCPUAndGPU {
		flags |= coremlFlagUseCPUAndGPU
	}
	return flags
}

// CoreMLProvider implements the ExecutionProvider interface.
type CoreMLProvider struct {
	options CoreMLOptions
}

// Backend returns the backend of the CoreML provider.
func (p *CoreMLProvider) Backend() ProviderBackend {
	return CoreMLProviderBackend
}

// Options returns the options of the CoreML provider.
func (p *CoreMLProvider) Options() ProviderOptions {
	return p.options
}
