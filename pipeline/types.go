// Package pipeline turns a declarative graphics-pipeline description into
// two callable entry points with a fixed calling contract, and drives those
// entry points across a draw call's geometry.
//
// Compilation is a synchronous, CPU-bound call: translate each shader stage
// through an external Translator, optimize through an external Backend, link
// the two entry points, and package the immutable Pipeline. Execution (Run)
// touches only caller-supplied memory, so one compiled Pipeline may be run
// concurrently from any number of goroutines.
package pipeline

import (
	"errors"
	"runtime"

	"github.com/gogpu/gputypes"
)

// VertexEntry is the fixed calling contract of a linked vertex stage.
// It writes one output record per vertex index in [vertexStart, vertexEnd)
// into out at offset (index-vertexStart)*recordSize.
type VertexEntry func(vertexStart, vertexEnd, instanceID uint32, out []byte, bindings [][]byte, uniforms []byte)

// FragmentEntry is the fixed calling contract of a linked fragment stage.
// It writes the final color value at the given pixel storage location.
type FragmentEntry func(pixel []byte, uniforms []byte)

// VertexLayout describes the per-vertex output record produced by a
// translated vertex stage. The position offset is carried explicitly:
// downstream fixed-function code reads clip-space position from a stable
// location no matter how many other varyings precede it.
type VertexLayout struct {
	// StructSize is the total record size in bytes.
	StructSize uint32

	// PositionOffset is the byte offset of the vec4 clip-space position
	// within the record. PositionOffset+16 <= StructSize always holds for
	// a valid layout.
	PositionOffset uint32
}

// positionSize is the storage of one 4-component float vector.
const positionSize = 16

// Valid reports whether the position field fits inside the record.
func (l VertexLayout) Valid() bool {
	return l.StructSize > 0 && l.PositionOffset+positionSize <= l.StructSize
}

// TargetMachine identifies the machine code is generated for. Optimization
// must be a pure function of (module, target machine) so repeated
// compilation yields bit-identical results.
type TargetMachine struct {
	Triple string
	CPU    string
}

// HostTargetMachine describes the machine the process runs on.
func HostTargetMachine() TargetMachine {
	return TargetMachine{
		Triple: runtime.GOARCH + "-" + runtime.GOOS,
		CPU:    runtime.GOARCH,
	}
}

// TranslatedModule is the native-IR form of one shader stage, produced by a
// Translator and consumed by a Backend. Code is a backend-owned payload;
// this package never inspects it.
type TranslatedModule struct {
	// Symbol is the entry-point symbol to resolve after optimization.
	Symbol string

	// Stage is the shader stage this module was translated for.
	Stage gputypes.ShaderStage

	// Layout is the vertex output record layout. Meaningful only for
	// vertex-stage modules.
	Layout VertexLayout

	// Code is the backend-owned module payload.
	Code any

	// Optimized records whether the module passed through Backend.Optimize.
	Optimized bool

	// Target is the machine the module was optimized for.
	Target TargetMachine
}

// ShaderSource is the view of a shader module the compilation engine needs.
// The swrast shader package provides the concrete implementation.
type ShaderSource interface {
	// Source returns the module's shader source text.
	Source() string

	// Words returns the module's validated SPIR-V words.
	Words() []uint32
}

// Translator converts a parsed shader module and entry-point name into an
// unoptimized native-IR module. For vertex stages the translator also
// reports the exact output record layout.
type Translator interface {
	Translate(module ShaderSource, entryPoint string, stage gputypes.ShaderStage) (*TranslatedModule, error)
}

// Backend is the code-generation collaborator: it optimizes a translated
// module for a target machine and resolves native entry points from symbols.
//
// Optimize must be deterministic and side-effect free: the same module and
// target must always produce bit-identical code.
type Backend interface {
	// Name identifies the backend for diagnostics.
	Name() string

	// Optimize runs the standard optimization pipeline against target.
	Optimize(m *TranslatedModule, target TargetMachine) (*TranslatedModule, error)

	// ResolveVertex resolves the module's symbol to a vertex entry point.
	ResolveVertex(m *TranslatedModule) (VertexEntry, error)

	// ResolveFragment resolves the module's symbol to a fragment entry
	// point.
	ResolveFragment(m *TranslatedModule) (FragmentEntry, error)
}

// Viewport is the fixed viewport transform baked into a pipeline.
type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// Rect is an integer rectangle; the pipeline's scissor and attachment
// bounds are expressed with it.
type Rect struct {
	X, Y          int32
	Width, Height uint32
}

// Intersect returns the overlap of two rectangles; empty results have zero
// width or height.
func (r Rect) Intersect(o Rect) Rect {
	x0 := max(r.X, o.X)
	y0 := max(r.Y, o.Y)
	x1 := min(r.X+int32(r.Width), o.X+int32(o.Width))
	y1 := min(r.Y+int32(r.Height), o.Y+int32(o.Height))
	if x1 <= x0 || y1 <= y0 {
		return Rect{X: x0, Y: y0}
	}
	return Rect{X: x0, Y: y0, Width: uint32(x1 - x0), Height: uint32(y1 - y0)}
}

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool { return r.Width == 0 || r.Height == 0 }

// Structure tags. Create infos carry one of these so malformed descriptions
// are rejected before any compilation work begins.
const (
	// TagGraphicsCreateInfo marks a graphics pipeline description.
	TagGraphicsCreateInfo uint32 = 0x73775001

	// TagCacheCreateInfo marks a pipeline cache description.
	TagCacheCreateInfo uint32 = 0x73775002
)

// StageInfo names one shader stage of a pipeline description.
type StageInfo struct {
	Module     ShaderSource
	EntryPoint string
	Stage      gputypes.ShaderStage
}

// VertexBinding describes one vertex input binding slot.
type VertexBinding struct {
	Binding uint32
	Stride  uint32
}

// CreateInfo is the declarative graphics pipeline description.
// The viewport and scissor are fixed at creation; this core has no dynamic
// viewport state.
type CreateInfo struct {
	Tag            uint32
	Stages         []StageInfo
	VertexBindings []VertexBinding
	Viewport       Viewport
	Scissor        Rect
	ColorFormat    gputypes.TextureFormat
}

// Compilation and execution errors.
var (
	// ErrBadCreateInfo is returned for a malformed description: wrong
	// structure tag, missing stages, or inconsistent inline data.
	ErrBadCreateInfo = errors.New("pipeline: malformed create info")

	// ErrUnsupportedFormat is returned when the target attachment format
	// cannot back a color attachment.
	ErrUnsupportedFormat = errors.New("pipeline: attachment format not renderable")

	// ErrBadLayout is returned when a translated vertex layout cannot hold
	// the clip-space position.
	ErrBadLayout = errors.New("pipeline: position field exceeds output record")

	// ErrReleased is returned when operating on a pipeline whose last
	// reference was already dropped.
	ErrReleased = errors.New("pipeline: released pipeline")

	// ErrBadAttachment is returned by Run for a missing or mismatched
	// color attachment.
	ErrBadAttachment = errors.New("pipeline: bad color attachment")
)
