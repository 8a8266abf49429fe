package swrast

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/swrast/capability"
	"github.com/gogpu/swrast/extension"
	"github.com/gogpu/swrast/handle"
)

// Structure tags for the top-level create infos.
const (
	// TagInstanceCreateInfo marks an instance description.
	TagInstanceCreateInfo uint32 = 0x73775003

	// TagDeviceCreateInfo marks a device description.
	TagDeviceCreateInfo uint32 = 0x73775004
)

// Creation errors.
var (
	// ErrBadCreateInfo is returned for a malformed description.
	ErrBadCreateInfo = errors.New("swrast: malformed create info")

	// ErrFeatureNotSupported is returned when a device description enables
	// a feature the physical device does not offer.
	ErrFeatureNotSupported = errors.New("swrast: feature not supported")

	// ErrDestroyed is returned when operating on a destroyed object.
	ErrDestroyed = errors.New("swrast: destroyed object")
)

// ApplicationInfo identifies the client application. All fields are
// optional and informational.
type ApplicationInfo struct {
	Name          string
	Version       uint32
	EngineName    string
	EngineVersion uint32
	APIVersion    uint32
}

// InstanceCreateInfo describes an instance. Extensions names the
// instance-scope extensions to enable; unknown names or names of
// device-scope extensions reject the whole creation.
type InstanceCreateInfo struct {
	Tag         uint32
	Application *ApplicationInfo
	Extensions  []string
}

// Instance is the root driver object. It owns the handle registry for the
// dispatchable object graph and exposes the single CPU physical device.
type Instance struct {
	reg        *handle.Registry
	hnd        handle.Handle
	app        ApplicationInfo
	extensions extension.Set
	physDev    *PhysicalDevice

	mu      sync.Mutex
	devices []*Device
}

// CreateInstance creates the root driver object, resolving the requested
// instance extensions. Creation is atomic: any rejected extension name
// leaves no instance behind.
func CreateInstance(info *InstanceCreateInfo) (*Instance, error) {
	if info == nil || info.Tag != TagInstanceCreateInfo {
		return nil, fmt.Errorf("swrast: instance structure tag: %w", ErrBadCreateInfo)
	}
	exts, err := extension.ResolveSet(info.Extensions, extension.ScopeInstance)
	if err != nil {
		return nil, fmt.Errorf("swrast: instance extensions: %w", err)
	}

	inst := &Instance{
		reg:        handle.NewRegistry(),
		extensions: exts,
	}
	if info.Application != nil {
		inst.app = *info.Application
	}
	inst.hnd = inst.reg.Put(handle.KindInstance, inst)

	phys := &PhysicalDevice{
		inst:     inst,
		limits:   capability.DefaultLimits(),
		features: capability.SupportedFeatures(),
		heapSize: capability.HeapSize(capability.TotalUsableRAM()),
	}
	phys.hnd = inst.reg.Put(handle.KindPhysicalDevice, phys)
	inst.physDev = phys

	Logger().Info("instance created",
		"application", inst.app.Name,
		"extensions", exts.Names())
	return inst, nil
}

// Handle returns the instance's dispatchable handle.
func (inst *Instance) Handle() handle.Handle { return inst.hnd }

// Extensions returns the set of enabled instance extensions.
func (inst *Instance) Extensions() extension.Set { return inst.extensions }

// EnumeratePhysicalDevices returns the handles of the available physical
// devices. A software implementation always exposes exactly one.
func (inst *Instance) EnumeratePhysicalDevices() []handle.Handle {
	return []handle.Handle{inst.physDev.hnd}
}

// PhysicalDevice resolves a physical device handle.
func (inst *Instance) PhysicalDevice(h handle.Handle) (*PhysicalDevice, error) {
	obj, err := inst.reg.Get(h, handle.KindPhysicalDevice)
	if err != nil {
		return nil, err
	}
	return obj.(*PhysicalDevice), nil
}

// Device resolves a device handle.
func (inst *Instance) Device(h handle.Handle) (*Device, error) {
	obj, err := inst.reg.Get(h, handle.KindDevice)
	if err != nil {
		return nil, err
	}
	return obj.(*Device), nil
}

// Destroy tears down the instance and every device created from it. All
// handles minted by the instance become stale.
func (inst *Instance) Destroy() {
	inst.mu.Lock()
	devices := inst.devices
	inst.devices = nil
	inst.mu.Unlock()

	for _, d := range devices {
		d.Destroy()
	}
	if _, err := inst.reg.Take(inst.physDev.hnd, handle.KindPhysicalDevice); err != nil {
		Logger().Warn("instance destroyed twice", "error", err)
		return
	}
	if _, err := inst.reg.Take(inst.hnd, handle.KindInstance); err != nil {
		Logger().Warn("instance destroyed twice", "error", err)
	}
}

// PhysicalDevice represents the single CPU device behind an instance.
type PhysicalDevice struct {
	inst     *Instance
	hnd      handle.Handle
	limits   capability.Limits
	features capability.Features
	heapSize uint64
}

// Handle returns the physical device's dispatchable handle.
func (pd *PhysicalDevice) Handle() handle.Handle { return pd.hnd }

// Name returns the device name reported to clients.
func (pd *PhysicalDevice) Name() string { return capability.DeviceName }

// VendorID returns the vendor identifier reported to clients.
func (pd *PhysicalDevice) VendorID() uint32 { return capability.VendorID }

// Limits returns the device limits.
func (pd *PhysicalDevice) Limits() capability.Limits { return pd.limits }

// Features returns the feature set the device supports.
func (pd *PhysicalDevice) Features() capability.Features { return pd.features }

// HeapSize returns the advertised size of the device-local memory heap,
// derived from the machine's usable RAM.
func (pd *PhysicalDevice) HeapSize() uint64 { return pd.heapSize }

// FormatProperties reports the capabilities of a texture format.
func (pd *PhysicalDevice) FormatProperties(format gputypes.TextureFormat) (capability.FormatProperties, bool) {
	return capability.Properties(format)
}

// EnumerateDeviceExtensions returns the device-scope extensions this
// physical device offers.
func (pd *PhysicalDevice) EnumerateDeviceExtensions() []extension.Properties {
	return extension.Enumerate(extension.ScopeDevice)
}
