package inference

import "github.com/pkg/errors"

// ErrModelLoadFailed indicates the engine rejected the model configuration at
// load time. Fatal to pipeline start and to configuration switches.
var ErrModelLoadFailed = errors.New("model load failed")

// ErrInferenceFailure indicates a single run call failed. The cycle that
// issued it is abandoned; the loop itself keeps going.
var ErrInferenceFailure = errors.New("inference failure")
