// Package raster assembles vertex output records into triangles and walks
// their pixel coverage. It implements the primitive traversal contract the
// pipeline execution engine consumes: sample points are pixel centers, and
// edge tests run in 26.6 fixed point so shared edges never double-hit or
// leave gaps.
package raster

import (
	"github.com/chewxy/math32"
	"golang.org/x/image/math/fixed"
)

// Point is a screen-space vertex position after the viewport transform.
type Point struct {
	X, Y float32
}

// Clip is the pixel rectangle coverage is restricted to: the intersection
// of the scissor and the attachment bounds. X1/Y1 are exclusive.
type Clip struct {
	X0, Y0, X1, Y1 int
}

// Empty reports whether the clip rectangle covers no pixels.
func (c Clip) Empty() bool { return c.X1 <= c.X0 || c.Y1 <= c.Y0 }

// fix converts a float coordinate to 26.6 fixed point.
func fix(v float32) fixed.Int26_6 {
	return fixed.Int26_6(math32.Round(v * 64))
}

// orient computes twice the signed area of triangle (a, b, c) in fixed
// point. Positive means counterclockwise in a y-down coordinate system.
func orient(a, b, c fixed.Point26_6) int64 {
	abx := int64(b.X - a.X)
	aby := int64(b.Y - a.Y)
	acx := int64(c.X - a.X)
	acy := int64(c.Y - a.Y)
	return abx*acy - aby*acx
}

// bias implements the top-left fill rule for edge a->b of a triangle in
// normalized winding: a sample exactly on a top or left edge counts as
// covered (bias 0), one on a right or bottom edge does not (bias -1).
// Adjacent triangles sharing an edge therefore cover each pixel center on
// that edge exactly once.
func bias(a, b fixed.Point26_6) int64 {
	if (a.Y == b.Y && b.X > a.X) || b.Y < a.Y {
		return 0
	}
	return -1
}

// FillTriangle invokes emit once for every pixel whose center lies inside
// triangle (a, b, c) and inside clip. Centers exactly on an edge follow
// the top-left fill rule, so two triangles sharing an edge cover each of
// its pixels exactly once. Winding does not matter; degenerate triangles
// emit nothing. Emission order is top-to-bottom, left-to-right, but
// callers must not depend on it.
func FillTriangle(a, b, c Point, clip Clip, emit func(x, y int)) {
	if clip.Empty() {
		return
	}

	fa := fixed.Point26_6{X: fix(a.X), Y: fix(a.Y)}
	fb := fixed.Point26_6{X: fix(b.X), Y: fix(b.Y)}
	fc := fixed.Point26_6{X: fix(c.X), Y: fix(c.Y)}

	area := orient(fa, fb, fc)
	if area == 0 {
		return
	}
	if area < 0 {
		fb, fc = fc, fb
	}

	b0 := bias(fb, fc)
	b1 := bias(fc, fa)
	b2 := bias(fa, fb)

	// Pixel bounding box, clamped to the clip rectangle.
	minX := int(math32.Floor(math32.Min(a.X, math32.Min(b.X, c.X))))
	minY := int(math32.Floor(math32.Min(a.Y, math32.Min(b.Y, c.Y))))
	maxX := int(math32.Ceil(math32.Max(a.X, math32.Max(b.X, c.X))))
	maxY := int(math32.Ceil(math32.Max(a.Y, math32.Max(b.Y, c.Y))))
	minX = max(minX, clip.X0)
	minY = max(minY, clip.Y0)
	maxX = min(maxX, clip.X1)
	maxY = min(maxY, clip.Y1)

	for y := minY; y < maxY; y++ {
		for x := minX; x < maxX; x++ {
			// Sample at the pixel center.
			p := fixed.Point26_6{
				X: fixed.Int26_6(x*64 + 32),
				Y: fixed.Int26_6(y*64 + 32),
			}
			w0 := orient(fb, fc, p)
			w1 := orient(fc, fa, p)
			w2 := orient(fa, fb, p)
			if w0+b0 >= 0 && w1+b1 >= 0 && w2+b2 >= 0 {
				emit(x, y)
			}
		}
	}
}

// Triangles walks a triangle list of vertexCount vertices, calling tri with
// the record indices of each complete triangle. A trailing partial
// primitive is dropped, matching triangle-list assembly.
func Triangles(vertexCount int, tri func(i0, i1, i2 int)) {
	for i := 0; i+2 < vertexCount; i += 3 {
		tri(i, i+1, i+2)
	}
}
