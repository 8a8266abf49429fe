package swrast

import "github.com/gogpu/swrast/pipeline"

// DeviceOption configures a Device during creation.
// Use functional options to customize device behavior.
//
// Example:
//
//	// Default CPU translation and code generation
//	dev, err := phys.CreateDevice(info)
//
//	// Custom backend (dependency injection)
//	dev, err := phys.CreateDevice(info, swrast.WithBackend(myBackend))
type DeviceOption func(*deviceOptions)

// deviceOptions holds optional configuration for Device creation.
type deviceOptions struct {
	translator pipeline.Translator
	backend    pipeline.Backend
	target     pipeline.TargetMachine
	targetSet  bool
	workers    int
}

// defaultDeviceOptions returns the default device options. The translator
// and backend default to the shader package's CPU implementations when nil.
func defaultDeviceOptions() deviceOptions {
	return deviceOptions{}
}

// WithTranslator sets a custom shader translator for the device's pipeline
// compiler. Use this for dependency injection in tests or to plug in an
// alternative translation path.
func WithTranslator(t pipeline.Translator) DeviceOption {
	return func(o *deviceOptions) {
		o.translator = t
	}
}

// WithBackend sets a custom code-generation backend for the device's
// pipeline compiler.
func WithBackend(b pipeline.Backend) DeviceOption {
	return func(o *deviceOptions) {
		o.backend = b
	}
}

// WithTargetMachine overrides the target machine pipelines are optimized
// for. The default is the host machine.
func WithTargetMachine(t pipeline.TargetMachine) DeviceOption {
	return func(o *deviceOptions) {
		o.target = t
		o.targetSet = true
	}
}

// WithWorkers sets the number of worker goroutines the device uses for
// draw execution. Zero or negative selects GOMAXPROCS.
func WithWorkers(n int) DeviceOption {
	return func(o *deviceOptions) {
		o.workers = n
	}
}
