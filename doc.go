// Package swrast is a software implementation of a graphics driver core.
//
// # Overview
//
// swrast executes graphics pipelines entirely on the CPU. It provides the
// object model of a driver front end (instances, physical devices, devices,
// queues) together with a pipeline compiler and a rasterizing execution
// engine, with no GPU or window system involved.
//
// # Quick Start
//
//	import "github.com/gogpu/swrast"
//
//	inst, _ := swrast.CreateInstance(&swrast.InstanceCreateInfo{
//	    Tag: swrast.TagInstanceCreateInfo,
//	})
//	defer inst.Destroy()
//
//	phys, _ := inst.PhysicalDevice(inst.EnumeratePhysicalDevices()[0])
//	dev, _ := phys.CreateDevice(&swrast.DeviceCreateInfo{
//	    Tag: swrast.TagDeviceCreateInfo,
//	})
//	defer dev.Destroy()
//
// Devices create shader modules, pipeline caches and graphics pipelines,
// all addressed through generation-checked handles. Compiled pipelines are
// immutable and may be executed concurrently.
//
// # Architecture
//
// The library is organized into:
//   - Public API: Instance, PhysicalDevice, Device, Queue
//   - extension: instance and device extension resolution
//   - handle: the generation-checked object registry
//   - capability: device limits, features and format support
//   - pipeline: compilation and execution of graphics pipelines
//   - shader: shader modules and the CPU translation backend
//
// # Coordinate System
//
// Attachments use standard framebuffer coordinates: origin (0,0) at the
// top-left, X increasing right, Y increasing down. Clip-space positions
// follow the usual convention and are mapped through the pipeline's fixed
// viewport transform.
package swrast

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
