// Package providers - CPU based execution provider.
package providers

// CPUOptions contains arguments for the default CPU provider. The CPU
// provider is always available and needs no append call, so the only knobs
// are the ones every session carries (thread counts, in Config).
type CPUOptions struct{}

// isProviderOptions is a marker function to ensure the options are valid.
func (CPUOptions) isProviderOptions() {}

// CPUProvider implements the ExecutionProvider interface.
type CPUProvider struct {
	options CPUOptions
}

// Backend returns the backend of the CPU provider.
func (p *CPUProvider) Backend() ProviderBackend {
	return CPUProviderBackend
}

// Options returns the options of the CPU provider.
func (p *CPUProvider) Options() ProviderOptions {
	return p.options
}
