package pipeline

import (
	"fmt"
	"math"

	"github.com/gogpu/swrast/internal/parallel"
	"github.com/gogpu/swrast/internal/raster"
)

// Run drives the compiled pipeline across one draw call: it invokes the
// vertex entry exactly once over [vertexStart, vertexEnd), assembles the
// output records into triangles, and invokes the fragment entry once for
// every covered pixel inside the scissor and attachment bounds.
//
// Within one call every vertex invocation a primitive depends on completes
// before any of its fragment invocations; pixel order is unspecified and
// fragment entries must not rely on it. Run reads only the pipeline's
// immutable state — the scratch buffer and the attachment are the only
// memory written, both caller-visible — so one Pipeline may be run
// concurrently from any number of goroutines.
//
// Run blocks the calling goroutine for the full draw; there is no timeout
// or cancellation path.
func (p *Pipeline) Run(vertexStart, vertexEnd, instanceID uint32, colorAttachment *Image, bindings [][]byte, uniforms []byte) error {
	vertex := p.impl.vertex
	fragment := p.impl.fragment
	if vertex == nil || fragment == nil {
		return ErrReleased
	}
	if colorAttachment == nil {
		return fmt.Errorf("pipeline: nil attachment: %w", ErrBadAttachment)
	}
	if colorAttachment.Format() != p.format {
		return fmt.Errorf("pipeline: attachment format %v, pipeline targets %v: %w",
			colorAttachment.Format(), p.format, ErrBadAttachment)
	}
	if vertexEnd <= vertexStart {
		// An empty range invokes neither entry point.
		return nil
	}

	count := vertexEnd - vertexStart
	recordSize := p.layout.StructSize
	scratch := make([]byte, int(count)*int(recordSize))

	// Shade the whole vertex range in one invocation.
	vertex(vertexStart, vertexEnd, instanceID, scratch, bindings, uniforms)

	clipRect := p.scissor.Intersect(colorAttachment.Bounds())
	if clipRect.Empty() {
		return nil
	}
	p.rasterize(scratch, int(count), fragment, colorAttachment, uniforms, raster.Clip{
		X0: int(clipRect.X),
		Y0: int(clipRect.Y),
		X1: int(clipRect.X) + int(clipRect.Width),
		Y1: int(clipRect.Y) + int(clipRect.Height),
	})
	return nil
}

// RunParallel is Run with rasterization spread over a worker pool: the
// clipped attachment area is split into horizontal bands, one task per
// band. Bands are disjoint, so workers never write the same pixel and the
// output is identical to Run's. Vertex shading still happens exactly once,
// before any band task starts.
//
// A nil pool falls back to Run.
func (p *Pipeline) RunParallel(vertexStart, vertexEnd, instanceID uint32, colorAttachment *Image, bindings [][]byte, uniforms []byte, pool *parallel.Pool) error {
	if pool == nil {
		return p.Run(vertexStart, vertexEnd, instanceID, colorAttachment, bindings, uniforms)
	}
	vertex := p.impl.vertex
	fragment := p.impl.fragment
	if vertex == nil || fragment == nil {
		return ErrReleased
	}
	if colorAttachment == nil {
		return fmt.Errorf("pipeline: nil attachment: %w", ErrBadAttachment)
	}
	if colorAttachment.Format() != p.format {
		return fmt.Errorf("pipeline: attachment format %v, pipeline targets %v: %w",
			colorAttachment.Format(), p.format, ErrBadAttachment)
	}
	if vertexEnd <= vertexStart {
		return nil
	}

	count := vertexEnd - vertexStart
	scratch := make([]byte, int(count)*int(p.layout.StructSize))
	vertex(vertexStart, vertexEnd, instanceID, scratch, bindings, uniforms)

	clipRect := p.scissor.Intersect(colorAttachment.Bounds())
	if clipRect.Empty() {
		return nil
	}
	clip := raster.Clip{
		X0: int(clipRect.X),
		Y0: int(clipRect.Y),
		X1: int(clipRect.X) + int(clipRect.Width),
		Y1: int(clipRect.Y) + int(clipRect.Height),
	}

	bands := pool.Workers() * 2
	if h := clip.Y1 - clip.Y0; bands > h {
		bands = h
	}
	if bands <= 1 {
		p.rasterize(scratch, int(count), fragment, colorAttachment, uniforms, clip)
		return nil
	}

	tasks := make([]func(), 0, bands)
	step := (clip.Y1 - clip.Y0 + bands - 1) / bands
	for y0 := clip.Y0; y0 < clip.Y1; y0 += step {
		band := clip
		band.Y0 = y0
		band.Y1 = y0 + step
		if band.Y1 > clip.Y1 {
			band.Y1 = clip.Y1
		}
		tasks = append(tasks, func() {
			p.rasterize(scratch, int(count), fragment, colorAttachment, uniforms, band)
		})
	}
	pool.Run(tasks)
	return nil
}

// rasterize assembles triangles from the shaded records and shades every
// covered pixel inside clip.
func (p *Pipeline) rasterize(scratch []byte, count int, fragment FragmentEntry, attachment *Image, uniforms []byte, clip raster.Clip) {
	raster.Triangles(count, func(i0, i1, i2 int) {
		a, ok0 := p.screenPosition(scratch, i0)
		b, ok1 := p.screenPosition(scratch, i1)
		c, ok2 := p.screenPosition(scratch, i2)
		if !ok0 || !ok1 || !ok2 {
			// A vertex behind the projection plane; the primitive is
			// dropped rather than clipped in this core.
			return
		}
		raster.FillTriangle(a, b, c, clip, func(x, y int) {
			fragment(attachment.Pixel(x, y), uniforms)
		})
	})
}

// screenPosition reads the clip-space position of record index i from the
// scratch buffer, applies the perspective divide and the fixed viewport
// transform, and returns the attachment-space point.
func (p *Pipeline) screenPosition(scratch []byte, i int) (raster.Point, bool) {
	off := i*int(p.layout.StructSize) + int(p.layout.PositionOffset)
	x := math.Float32frombits(leUint32(scratch[off:]))
	y := math.Float32frombits(leUint32(scratch[off+4:]))
	w := math.Float32frombits(leUint32(scratch[off+12:]))
	if w <= 0 {
		return raster.Point{}, false
	}
	ndcX := x / w
	ndcY := y / w
	vp := p.viewport
	return raster.Point{
		X: vp.X + (ndcX+1)*0.5*vp.Width,
		Y: vp.Y + (ndcY+1)*0.5*vp.Height,
	}, true
}
