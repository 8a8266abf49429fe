// Package capability holds the static hardware-like limits, features and
// pixel-format data reported by the swrast physical device.
//
// Everything here is read-only data fixed at build time, except the memory
// heap size which is derived once from the amount of usable system RAM.
package capability

import (
	"github.com/gogpu/gputypes"
)

// DeviceName is the renderer name reported through device properties.
const DeviceName = "swrast CPU renderer"

// VendorID is the vendor identifier reported through device properties.
// It lies in the range reserved for software implementations.
const VendorID = 0x10003

// Limits extends the common gputypes limits with the fixed-function bounds
// this CPU core honors.
type Limits struct {
	gputypes.Limits

	// MaxViewports is 1: the pipeline bakes a single fixed viewport.
	MaxViewports uint32

	// ViewportSubPixelBits is the subpixel precision of the viewport
	// transform.
	ViewportSubPixelBits uint32

	// MaxFramebufferWidth and MaxFramebufferHeight bound attachments.
	MaxFramebufferWidth  uint32
	MaxFramebufferHeight uint32
}

// DefaultLimits returns the limits advertised by the physical device.
func DefaultLimits() Limits {
	base := gputypes.DefaultLimits()
	return Limits{
		Limits:               base,
		MaxViewports:         1,
		ViewportSubPixelBits: 16,
		MaxFramebufferWidth:  1 << 20,
		MaxFramebufferHeight: 1 << 20,
	}
}

// Features is the optional-feature vector a device may enable. Only
// features a CPU renderer can honor without fixed-function hardware are
// supported; everything absent from this struct is permanently off.
type Features struct {
	FullDrawIndexUint32       bool
	IndependentBlend          bool
	MultiDrawIndirect         bool
	DrawIndirectFirstInstance bool
	ShaderInt64               bool
}

// SupportedFeatures returns the feature vector the physical device can
// enable.
func SupportedFeatures() Features {
	return Features{
		FullDrawIndexUint32:       true,
		IndependentBlend:          true,
		MultiDrawIndirect:         true,
		DrawIndirectFirstInstance: true,
		ShaderInt64:               true,
	}
}

// Subset reports whether every feature enabled in f is also enabled in of.
// Device creation rejects feature requests that are not a subset of the
// supported vector.
func (f Features) Subset(of Features) bool {
	switch {
	case f.FullDrawIndexUint32 && !of.FullDrawIndexUint32,
		f.IndependentBlend && !of.IndependentBlend,
		f.MultiDrawIndirect && !of.MultiDrawIndirect,
		f.DrawIndirectFirstInstance && !of.DrawIndirectFirstInstance,
		f.ShaderInt64 && !of.ShaderInt64:
		return false
	}
	return true
}

// heapTransitionSize is the RAM size above which the heap takes 3/4 of
// usable memory instead of 1/2.
const heapTransitionSize = 4 << 30

// HeapSize derives the advertised device-local heap size from the total
// usable system RAM: three quarters of RAM on machines with at least 4 GiB,
// half of RAM below that.
func HeapSize(totalUsableRAM uint64) uint64 {
	if totalUsableRAM >= heapTransitionSize {
		return totalUsableRAM / 4 * 3
	}
	return totalUsableRAM / 2
}
