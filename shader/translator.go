package shader

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/swrast/pipeline"
)

// Translator maps validated shader modules onto the registered native
// kernels. It is stateless; a single value may serve any number of
// concurrent compilations.
type Translator struct{}

// NewTranslator returns the CPU translator.
func NewTranslator() *Translator { return &Translator{} }

// Translate resolves entryPoint against the kernel registry and packages
// it as an unoptimized module for the backend. The module source must
// declare the entry point it is compiled for.
func (t *Translator) Translate(module pipeline.ShaderSource, entryPoint string, stage gputypes.ShaderStage) (*pipeline.TranslatedModule, error) {
	if src := module.Source(); src != "" && !strings.Contains(src, "fn "+entryPoint) {
		return nil, fmt.Errorf("%w: %q not declared by module", ErrUnknownEntryPoint, entryPoint)
	}
	k, ok := lookupKernel(entryPoint)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntryPoint, entryPoint)
	}
	switch stage {
	case gputypes.ShaderStageVertex:
		if k.Vertex == nil {
			return nil, fmt.Errorf("%w: %q is not a vertex entry", ErrStageMismatch, entryPoint)
		}
	case gputypes.ShaderStageFragment:
		if k.Fragment == nil {
			return nil, fmt.Errorf("%w: %q is not a fragment entry", ErrStageMismatch, entryPoint)
		}
	default:
		return nil, fmt.Errorf("%w: stage %v", ErrStageMismatch, stage)
	}
	return &pipeline.TranslatedModule{
		Symbol: entryPoint,
		Stage:  stage,
		Layout: k.Layout,
		Code:   k,
	}, nil
}

// Backend is the CPU code generator. Kernels are already machine code, so
// optimization reduces to the deterministic identity transform and linking
// reduces to handing out the kernel's entry function.
type Backend struct{}

// NewBackend returns the CPU backend.
func NewBackend() *Backend { return &Backend{} }

// Name identifies the backend in diagnostics.
func (b *Backend) Name() string { return "cpu" }

// Optimize marks the module optimized for target. The transform is a pure
// function of its inputs: repeated calls yield identical modules.
func (b *Backend) Optimize(m *pipeline.TranslatedModule, target pipeline.TargetMachine) (*pipeline.TranslatedModule, error) {
	if _, ok := m.Code.(*Kernel); !ok {
		return nil, fmt.Errorf("%w: module %q has no kernel payload", ErrUnknownEntryPoint, m.Symbol)
	}
	out := *m
	out.Optimized = true
	out.Target = target
	return &out, nil
}

// ResolveVertex resolves the module's symbol to its vertex entry point.
func (b *Backend) ResolveVertex(m *pipeline.TranslatedModule) (pipeline.VertexEntry, error) {
	k, ok := m.Code.(*Kernel)
	if !ok || k.Vertex == nil {
		return nil, fmt.Errorf("%w: %q", ErrStageMismatch, m.Symbol)
	}
	return k.Vertex, nil
}

// ResolveFragment resolves the module's symbol to its fragment entry point.
func (b *Backend) ResolveFragment(m *pipeline.TranslatedModule) (pipeline.FragmentEntry, error) {
	k, ok := m.Code.(*Kernel)
	if !ok || k.Fragment == nil {
		return nil, fmt.Errorf("%w: %q", ErrStageMismatch, m.Symbol)
	}
	return k.Fragment, nil
}
