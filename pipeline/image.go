package pipeline

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/swrast/capability"
)

// Image is a CPU-resident color attachment: a rectangular pixel buffer in
// one of the renderable formats. The execution engine writes fragments
// straight into its storage.
type Image struct {
	width  int
	height int
	stride int
	bpp    int
	format gputypes.TextureFormat
	pix    []byte
}

// NewImage allocates an attachment of the given size and format. Only
// renderable formats are accepted.
func NewImage(width, height int, format gputypes.TextureFormat) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("pipeline: image size %dx%d: %w", width, height, ErrBadAttachment)
	}
	props, ok := capability.Properties(format)
	if !ok || !props.Renderable {
		return nil, fmt.Errorf("pipeline: image format %v: %w", format, ErrUnsupportedFormat)
	}
	stride := width * props.BytesPerPixel
	return &Image{
		width:  width,
		height: height,
		stride: stride,
		bpp:    props.BytesPerPixel,
		format: format,
		pix:    make([]byte, stride*height),
	}, nil
}

// Width returns the attachment width in pixels.
func (im *Image) Width() int { return im.width }

// Height returns the attachment height in pixels.
func (im *Image) Height() int { return im.height }

// Format returns the attachment's pixel format.
func (im *Image) Format() gputypes.TextureFormat { return im.format }

// Pix returns the raw pixel storage.
func (im *Image) Pix() []byte { return im.pix }

// Bounds returns the attachment rectangle anchored at the origin.
func (im *Image) Bounds() Rect {
	return Rect{Width: uint32(im.width), Height: uint32(im.height)}
}

// Pixel returns the storage slice of the pixel at (x, y). The coordinates
// must be inside the attachment bounds.
func (im *Image) Pixel(x, y int) []byte {
	i := y*im.stride + x*im.bpp
	return im.pix[i : i+im.bpp : i+im.bpp]
}

// Clear fills every pixel with the given raw value. The value length must
// equal the format's pixel size.
func (im *Image) Clear(value []byte) error {
	if len(value) != im.bpp {
		return fmt.Errorf("pipeline: clear value is %d bytes, format needs %d: %w",
			len(value), im.bpp, ErrBadAttachment)
	}
	for i := 0; i < len(im.pix); i += im.bpp {
		copy(im.pix[i:i+im.bpp], value)
	}
	return nil
}
