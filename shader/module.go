// Package shader provides the shader module type and the CPU translation
// collaborators of the pipeline compiler: a Translator that maps validated
// entry points onto native Go kernels, and a Backend that optimizes and
// links them.
package shader

import (
	"errors"
	"fmt"

	"github.com/gogpu/naga"
)

// Errors reported by module creation and translation.
var (
	// ErrCompile is returned when the WGSL source does not validate.
	ErrCompile = errors.New("shader: source does not compile")

	// ErrUnknownEntryPoint is returned when no kernel backs the requested
	// entry point.
	ErrUnknownEntryPoint = errors.New("shader: unknown entry point")

	// ErrStageMismatch is returned when an entry point is requested for a
	// stage it was not written for.
	ErrStageMismatch = errors.New("shader: entry point stage mismatch")
)

// Module is a validated, immutable shader module: the WGSL source it was
// created from plus the SPIR-V emitted for it. Modules carry no device
// state and may be shared freely between pipelines.
type Module struct {
	source string
	words  []uint32
}

// NewModule validates source and returns the compiled module. The returned
// module is immutable.
func NewModule(source string) (*Module, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompile, err)
	}

	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	return &Module{source: source, words: words}, nil
}

// Source returns the WGSL source the module was created from.
func (m *Module) Source() string { return m.source }

// Words returns the module's SPIR-V words. Callers must not mutate the
// returned slice.
func (m *Module) Words() []uint32 { return m.words }
