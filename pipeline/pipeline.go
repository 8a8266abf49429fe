package pipeline

import (
	"fmt"
	"io"
	"math"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/swrast/capability"
)

// Compiler orchestrates pipeline creation for one device: it owns the
// translator and backend collaborators and the target machine description.
// Independent Create calls share no mutable state and may run concurrently,
// provided the collaborators are reentrant.
type Compiler struct {
	Translator Translator
	Backend    Backend
	Target     TargetMachine
}

// implementation is the shared, refcounted compiled artifact of a pipeline.
// Several Pipeline values may reference one implementation; the compiled
// code and its backing modules are dropped exactly when the last reference
// goes away.
type implementation struct {
	refs atomic.Int32

	vertex   VertexEntry
	fragment FragmentEntry

	vertexCode   *TranslatedModule
	fragmentCode *TranslatedModule
}

func (im *implementation) retain() { im.refs.Add(1) }

func (im *implementation) release() {
	if im.refs.Add(-1) != 0 {
		return
	}
	// Last reference: free the compiled entry points and native modules.
	im.vertex = nil
	im.fragment = nil
	im.vertexCode = nil
	im.fragmentCode = nil
}

// Pipeline is an immutable compiled graphics pipeline: two native entry
// points, the vertex output record layout, and the fixed viewport and
// scissor. Pipelines never change after creation; only the per-draw
// bindings and uniforms vary.
type Pipeline struct {
	impl     *implementation
	layout   VertexLayout
	viewport Viewport
	scissor  Rect
	format   gputypes.TextureFormat
}

// Create compiles info into an immutable Pipeline. cache may be nil.
//
// The whole call is atomic: a malformed description is rejected before any
// compilation work begins, and a translation or optimization failure leaves
// no partially-built pipeline reachable.
func (c *Compiler) Create(cache *Cache, info *CreateInfo) (*Pipeline, error) {
	vs, fs, err := validateCreateInfo(info)
	if err != nil {
		return nil, err
	}
	if c.Translator == nil || c.Backend == nil {
		return nil, fmt.Errorf("pipeline: compiler missing translator or backend: %w", ErrBadCreateInfo)
	}

	log := Logger()

	var key uint64
	if cache != nil {
		key = hashCreateInfo(info)
		if entry, ok := cache.get(key); ok {
			entry.impl.retain()
			log.Debug("pipeline cache hit", "key", key)
			return &Pipeline{
				impl:     entry.impl,
				layout:   entry.layout,
				viewport: info.Viewport,
				scissor:  info.Scissor,
				format:   info.ColorFormat,
			}, nil
		}
	}

	start := time.Now()

	// Translate. The vertex stage also yields the output record layout.
	vmod, err := c.Translator.Translate(vs.Module, vs.EntryPoint, gputypes.ShaderStageVertex)
	if err != nil {
		return nil, fmt.Errorf("pipeline: translate vertex %q: %w", vs.EntryPoint, err)
	}
	fmod, err := c.Translator.Translate(fs.Module, fs.EntryPoint, gputypes.ShaderStageFragment)
	if err != nil {
		return nil, fmt.Errorf("pipeline: translate fragment %q: %w", fs.EntryPoint, err)
	}
	layout := vmod.Layout
	if !layout.Valid() {
		return nil, fmt.Errorf("pipeline: %q: size %d offset %d: %w",
			vs.EntryPoint, layout.StructSize, layout.PositionOffset, ErrBadLayout)
	}

	// Optimize, once per stage. This dominates creation latency and must
	// be a pure function of (module, target).
	vmod, err = c.Backend.Optimize(vmod, c.Target)
	if err != nil {
		return nil, fmt.Errorf("pipeline: optimize vertex %q: %w", vs.EntryPoint, err)
	}
	fmod, err = c.Backend.Optimize(fmod, c.Target)
	if err != nil {
		return nil, fmt.Errorf("pipeline: optimize fragment %q: %w", fs.EntryPoint, err)
	}

	// Link the two entry points.
	vertex, err := c.Backend.ResolveVertex(vmod)
	if err != nil {
		return nil, fmt.Errorf("pipeline: link vertex %q: %w", vs.EntryPoint, err)
	}
	fragment, err := c.Backend.ResolveFragment(fmod)
	if err != nil {
		return nil, fmt.Errorf("pipeline: link fragment %q: %w", fs.EntryPoint, err)
	}

	im := &implementation{
		vertex:       vertex,
		fragment:     fragment,
		vertexCode:   vmod,
		fragmentCode: fmod,
	}
	im.refs.Store(1)

	log.Debug("pipeline compiled",
		"backend", c.Backend.Name(),
		"vertex", vs.EntryPoint,
		"fragment", fs.EntryPoint,
		"recordSize", layout.StructSize,
		"elapsed", time.Since(start))

	if cache != nil {
		cache.put(key, &cacheEntry{impl: im, layout: layout})
	}

	return &Pipeline{
		impl:     im,
		layout:   layout,
		viewport: info.Viewport,
		scissor:  info.Scissor,
		format:   info.ColorFormat,
	}, nil
}

// validateCreateInfo rejects malformed descriptions and returns the vertex
// and fragment stage infos.
func validateCreateInfo(info *CreateInfo) (vs, fs *StageInfo, err error) {
	if info == nil {
		return nil, nil, fmt.Errorf("pipeline: nil create info: %w", ErrBadCreateInfo)
	}
	if info.Tag != TagGraphicsCreateInfo {
		return nil, nil, fmt.Errorf("pipeline: structure tag %#x: %w", info.Tag, ErrBadCreateInfo)
	}
	for i := range info.Stages {
		s := &info.Stages[i]
		if s.Module == nil || s.EntryPoint == "" {
			return nil, nil, fmt.Errorf("pipeline: stage %d incomplete: %w", i, ErrBadCreateInfo)
		}
		switch s.Stage {
		case gputypes.ShaderStageVertex:
			if vs != nil {
				return nil, nil, fmt.Errorf("pipeline: duplicate vertex stage: %w", ErrBadCreateInfo)
			}
			vs = s
		case gputypes.ShaderStageFragment:
			if fs != nil {
				return nil, nil, fmt.Errorf("pipeline: duplicate fragment stage: %w", ErrBadCreateInfo)
			}
			fs = s
		default:
			return nil, nil, fmt.Errorf("pipeline: stage %d has unsupported stage flag: %w", i, ErrBadCreateInfo)
		}
	}
	if vs == nil || fs == nil {
		return nil, nil, fmt.Errorf("pipeline: vertex and fragment stages required: %w", ErrBadCreateInfo)
	}
	if info.Viewport.Width <= 0 || info.Viewport.Height <= 0 {
		return nil, nil, fmt.Errorf("pipeline: viewport %gx%g: %w",
			info.Viewport.Width, info.Viewport.Height, ErrBadCreateInfo)
	}
	if !capability.RenderableFormat(info.ColorFormat) {
		return nil, nil, fmt.Errorf("pipeline: format %v: %w", info.ColorFormat, ErrUnsupportedFormat)
	}
	return vs, fs, nil
}

// Clone returns a new Pipeline sharing this pipeline's compiled
// implementation by reference. Each clone must be released independently.
func (p *Pipeline) Clone() *Pipeline {
	p.impl.retain()
	clone := *p
	return &clone
}

// Release drops this pipeline's reference to the compiled implementation.
// The compiled code is freed when the last reference is dropped. Using the
// pipeline after Release is a contract violation reported as ErrReleased.
func (p *Pipeline) Release() {
	p.impl.release()
}

// OutputStructSize returns the byte size of one vertex output record.
func (p *Pipeline) OutputStructSize() uint32 { return p.layout.StructSize }

// PositionOutputOffset returns the byte offset of the clip-space position
// within a vertex output record.
func (p *Pipeline) PositionOutputOffset() uint32 { return p.layout.PositionOffset }

// FixedViewport returns the pipeline's baked viewport.
func (p *Pipeline) FixedViewport() Viewport { return p.viewport }

// FixedScissor returns the pipeline's baked scissor rectangle.
func (p *Pipeline) FixedScissor() Rect { return p.scissor }

// ColorFormat returns the attachment format the pipeline targets.
func (p *Pipeline) ColorFormat() gputypes.TextureFormat { return p.format }

// RunVertex invokes the vertex entry point directly. out must hold at least
// (vertexEnd-vertexStart)*OutputStructSize() bytes.
func (p *Pipeline) RunVertex(vertexStart, vertexEnd, instanceID uint32, out []byte, bindings [][]byte, uniforms []byte) error {
	entry := p.impl.vertex
	if entry == nil {
		return ErrReleased
	}
	entry(vertexStart, vertexEnd, instanceID, out, bindings, uniforms)
	return nil
}

// RunFragment invokes the fragment entry point directly for one pixel.
func (p *Pipeline) RunFragment(pixel []byte, uniforms []byte) error {
	entry := p.impl.fragment
	if entry == nil {
		return ErrReleased
	}
	entry(pixel, uniforms)
	return nil
}

// DumpVertexOutput writes a human-readable rendering of one vertex output
// record for debugging, decoding the position field at its stored offset.
func (p *Pipeline) DumpVertexOutput(w io.Writer, record []byte) error {
	if uint32(len(record)) < p.layout.StructSize {
		return fmt.Errorf("pipeline: record is %d bytes, layout needs %d: %w",
			len(record), p.layout.StructSize, ErrBadCreateInfo)
	}
	pos := record[p.layout.PositionOffset:]
	x := math.Float32frombits(leUint32(pos[0:]))
	y := math.Float32frombits(leUint32(pos[4:]))
	z := math.Float32frombits(leUint32(pos[8:]))
	wv := math.Float32frombits(leUint32(pos[12:]))
	if _, err := fmt.Fprintf(w, "output struct: %d bytes\nposition @%d: (%g, %g, %g, %g)\n",
		p.layout.StructSize, p.layout.PositionOffset, x, y, z, wv); err != nil {
		return err
	}
	for off := uint32(0); off+4 <= p.layout.StructSize; off += 4 {
		if off == p.layout.PositionOffset {
			off += positionSize - 4
			continue
		}
		word := leUint32(record[off:])
		if _, err := fmt.Fprintf(w, "  +%-3d %#08x (%g)\n", off, word, math.Float32frombits(word)); err != nil {
			return err
		}
	}
	return nil
}

func leUint32(b []byte) uint32 {
	_ = b[3]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func floatBits(f float32) uint32 { return math.Float32bits(f) }
