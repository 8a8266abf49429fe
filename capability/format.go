package capability

import (
	"github.com/gogpu/gputypes"
)

// FormatProperties classifies what a pixel format can be used for in this
// core. Formats absent from the table are wholly unsupported.
type FormatProperties struct {
	// Renderable formats may back a color attachment.
	Renderable bool

	// Blendable formats additionally support fixed-function blending.
	// This core carries the classification but no blend stage yet.
	Blendable bool

	// BytesPerPixel is the storage size of one pixel, 0 for block or
	// unsupported formats.
	BytesPerPixel int
}

// formatTable is the static format classification, built once at package
// init and indexed by the format enumeration value. Classification lives
// here only; nothing else re-derives it from the format value.
var formatTable = buildFormatTable()

func buildFormatTable() map[gputypes.TextureFormat]FormatProperties {
	return map[gputypes.TextureFormat]FormatProperties{
		gputypes.TextureFormatRGBA8Unorm: {
			Renderable:    true,
			Blendable:     true,
			BytesPerPixel: 4,
		},
		gputypes.TextureFormatBGRA8Unorm: {
			Renderable:    true,
			Blendable:     true,
			BytesPerPixel: 4,
		},
		// Known but not renderable by the CPU core yet.
		gputypes.TextureFormatR8Unorm: {
			BytesPerPixel: 1,
		},
		gputypes.TextureFormatDepth24PlusStencil8: {
			BytesPerPixel: 4,
		},
	}
}

// Properties returns the classification of format. ok is false for formats
// this implementation knows nothing about.
func Properties(format gputypes.TextureFormat) (props FormatProperties, ok bool) {
	props, ok = formatTable[format]
	return props, ok
}

// RenderableFormat reports whether format may back a color attachment.
// Pipeline creation consults this to reject impossible target formats.
func RenderableFormat(format gputypes.TextureFormat) bool {
	return formatTable[format].Renderable
}
