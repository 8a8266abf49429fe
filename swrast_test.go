package swrast

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/swrast/capability"
	"github.com/gogpu/swrast/extension"
	"github.com/gogpu/swrast/handle"
	"github.com/gogpu/swrast/pipeline"
)

const testShaderWGSL = `
@vertex
fn vs_fullscreen(@builtin(vertex_index) vi: u32) -> @builtin(position) vec4<f32> {
    let x = f32(i32(vi % 2u) * 4 - 1);
    let y = f32(i32(vi / 2u) * 4 - 1);
    return vec4<f32>(x, y, 0.0, 1.0);
}

@fragment
fn fs_white() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 1.0, 1.0, 1.0);
}
`

func newTestInstance(t *testing.T, extensions ...string) *Instance {
	t.Helper()
	inst, err := CreateInstance(&InstanceCreateInfo{
		Tag:         TagInstanceCreateInfo,
		Application: &ApplicationInfo{Name: "swrast test"},
		Extensions:  extensions,
	})
	if err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}
	t.Cleanup(inst.Destroy)
	return inst
}

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	inst := newTestInstance(t)
	phys, err := inst.PhysicalDevice(inst.EnumeratePhysicalDevices()[0])
	if err != nil {
		t.Fatalf("PhysicalDevice() error = %v", err)
	}
	dev, err := phys.CreateDevice(&DeviceCreateInfo{Tag: TagDeviceCreateInfo})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	return dev
}

func TestCreateInstanceValidation(t *testing.T) {
	tests := []struct {
		name string
		info *InstanceCreateInfo
	}{
		{"nil info", nil},
		{"wrong tag", &InstanceCreateInfo{Tag: TagDeviceCreateInfo}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CreateInstance(tt.info); !errors.Is(err, ErrBadCreateInfo) {
				t.Errorf("CreateInstance() error = %v, want %v", err, ErrBadCreateInfo)
			}
		})
	}
}

func TestCreateInstanceUnknownExtension(t *testing.T) {
	_, err := CreateInstance(&InstanceCreateInfo{
		Tag:        TagInstanceCreateInfo,
		Extensions: []string{"VK_KHR_surface", "VK_EXT_nonsense"},
	})
	if !errors.Is(err, extension.ErrNotSupported) {
		t.Fatalf("CreateInstance() error = %v, want %v", err, extension.ErrNotSupported)
	}
}

func TestInstanceSurfaceExtension(t *testing.T) {
	inst := newTestInstance(t, "VK_KHR_surface")
	if !inst.Extensions().Has(extension.KHRSurface) {
		t.Error("KHR_surface not enabled")
	}
}

func TestInstanceXCBSurfaceExtension(t *testing.T) {
	if extension.KHRXCBSurface.ExtScope() != extension.ScopeInstance {
		t.Skip("xcb surface not available on this platform")
	}
	// Requesting the dependent extension together with its dependency must
	// succeed in either order.
	for _, names := range [][]string{
		{"VK_KHR_surface", "VK_KHR_xcb_surface"},
		{"VK_KHR_xcb_surface", "VK_KHR_surface"},
	} {
		inst := newTestInstance(t, names...)
		if !inst.Extensions().Has(extension.KHRXCBSurface) {
			t.Errorf("%v: KHR_xcb_surface not enabled", names)
		}
	}

	// Alone it must fail, leaving no instance.
	_, err := CreateInstance(&InstanceCreateInfo{
		Tag:        TagInstanceCreateInfo,
		Extensions: []string{"VK_KHR_xcb_surface"},
	})
	if !errors.Is(err, extension.ErrMissingDependency) {
		t.Fatalf("CreateInstance() error = %v, want %v", err, extension.ErrMissingDependency)
	}
}

func TestPhysicalDeviceProperties(t *testing.T) {
	inst := newTestInstance(t)
	handles := inst.EnumeratePhysicalDevices()
	if len(handles) != 1 {
		t.Fatalf("EnumeratePhysicalDevices() returned %d devices, want 1", len(handles))
	}
	if !handles[0].Dispatchable() {
		t.Error("physical device handle is not dispatchable")
	}

	phys, err := inst.PhysicalDevice(handles[0])
	if err != nil {
		t.Fatalf("PhysicalDevice() error = %v", err)
	}
	if phys.Name() != capability.DeviceName {
		t.Errorf("Name() = %q", phys.Name())
	}
	if phys.VendorID() != capability.VendorID {
		t.Errorf("VendorID() = %#x", phys.VendorID())
	}
	if phys.HeapSize() == 0 {
		t.Error("HeapSize() = 0")
	}
	if props, ok := phys.FormatProperties(gputypes.TextureFormatRGBA8Unorm); !ok || !props.Renderable {
		t.Error("RGBA8 not renderable")
	}
}

func TestCreateDeviceValidation(t *testing.T) {
	inst := newTestInstance(t)
	phys, err := inst.PhysicalDevice(inst.EnumeratePhysicalDevices()[0])
	if err != nil {
		t.Fatalf("PhysicalDevice() error = %v", err)
	}

	if _, err := phys.CreateDevice(&DeviceCreateInfo{Tag: TagInstanceCreateInfo}); !errors.Is(err, ErrBadCreateInfo) {
		t.Errorf("CreateDevice(wrong tag) error = %v, want %v", err, ErrBadCreateInfo)
	}

	// Instance-scope extensions are rejected at device scope.
	_, err = phys.CreateDevice(&DeviceCreateInfo{
		Tag:        TagDeviceCreateInfo,
		Extensions: []string{"VK_KHR_surface"},
	})
	if !errors.Is(err, extension.ErrWrongScope) {
		t.Errorf("CreateDevice(instance extension) error = %v, want %v", err, extension.ErrWrongScope)
	}
}

func TestCreateDeviceFeatures(t *testing.T) {
	inst := newTestInstance(t)
	phys, err := inst.PhysicalDevice(inst.EnumeratePhysicalDevices()[0])
	if err != nil {
		t.Fatalf("PhysicalDevice() error = %v", err)
	}

	dev, err := phys.CreateDevice(&DeviceCreateInfo{
		Tag:             TagDeviceCreateInfo,
		EnabledFeatures: capability.SupportedFeatures(),
	})
	if err != nil {
		t.Fatalf("CreateDevice(all supported features) error = %v", err)
	}
	if !dev.Handle().Dispatchable() {
		t.Error("device handle is not dispatchable")
	}
	if !dev.Queue().Handle().Dispatchable() {
		t.Error("queue handle is not dispatchable")
	}
	if err := dev.WaitIdle(); err != nil {
		t.Errorf("WaitIdle() error = %v", err)
	}
}

func TestDeviceExtensionsIncludeInstanceSet(t *testing.T) {
	inst := newTestInstance(t, "VK_KHR_surface")
	phys, err := inst.PhysicalDevice(inst.EnumeratePhysicalDevices()[0])
	if err != nil {
		t.Fatalf("PhysicalDevice() error = %v", err)
	}
	dev, err := phys.CreateDevice(&DeviceCreateInfo{Tag: TagDeviceCreateInfo})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	if !dev.Extensions().Has(extension.KHRSurface) {
		t.Error("device extension set does not include the instance's KHR_surface")
	}
}

func TestShaderModuleLifecycle(t *testing.T) {
	dev := newTestDevice(t)

	h, err := dev.CreateShaderModule(testShaderWGSL)
	if err != nil {
		t.Fatalf("CreateShaderModule() error = %v", err)
	}
	if h.Dispatchable() {
		t.Error("shader module handle carries the loader sentinel")
	}
	if _, err := dev.ShaderModule(h); err != nil {
		t.Errorf("ShaderModule() error = %v", err)
	}

	if err := dev.DestroyShaderModule(h); err != nil {
		t.Fatalf("DestroyShaderModule() error = %v", err)
	}
	if _, err := dev.ShaderModule(h); !errors.Is(err, handle.ErrStaleHandle) {
		t.Errorf("ShaderModule(stale) error = %v, want %v", err, handle.ErrStaleHandle)
	}

	if _, err := dev.CreateShaderModule("not wgsl"); err == nil {
		t.Error("CreateShaderModule accepted invalid source")
	}
}

func testPipelineInfo(t *testing.T, dev *Device) *GraphicsPipelineCreateInfo {
	t.Helper()
	mod, err := dev.CreateShaderModule(testShaderWGSL)
	if err != nil {
		t.Fatalf("CreateShaderModule() error = %v", err)
	}
	return &GraphicsPipelineCreateInfo{
		Tag: pipeline.TagGraphicsCreateInfo,
		Stages: []ShaderStageInfo{
			{Module: mod, EntryPoint: "vs_fullscreen", Stage: gputypes.ShaderStageVertex},
			{Module: mod, EntryPoint: "fs_white", Stage: gputypes.ShaderStageFragment},
		},
		Viewport:    pipeline.Viewport{Width: 16, Height: 16, MaxDepth: 1},
		Scissor:     pipeline.Rect{Width: 16, Height: 16},
		ColorFormat: gputypes.TextureFormatRGBA8Unorm,
	}
}

func TestDrawEndToEnd(t *testing.T) {
	dev := newTestDevice(t)

	h, err := dev.CreateGraphicsPipeline(0, testPipelineInfo(t, dev))
	if err != nil {
		t.Fatalf("CreateGraphicsPipeline() error = %v", err)
	}
	p, err := dev.Pipeline(h)
	if err != nil {
		t.Fatalf("Pipeline() error = %v", err)
	}

	img, err := pipeline.NewImage(16, 16, gputypes.TextureFormatRGBA8Unorm)
	if err != nil {
		t.Fatalf("NewImage() error = %v", err)
	}
	if err := p.Run(0, 3, 0, img, nil, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := bytes.Repeat([]byte{0xff}, 16*16*4)
	if !bytes.Equal(img.Pix(), want) {
		t.Error("fullscreen draw did not fill the attachment white")
	}

	if err := dev.DestroyPipeline(h); err != nil {
		t.Fatalf("DestroyPipeline() error = %v", err)
	}
	if _, err := dev.Pipeline(h); !errors.Is(err, handle.ErrStaleHandle) {
		t.Errorf("Pipeline(stale) error = %v, want %v", err, handle.ErrStaleHandle)
	}
}

func TestCreateGraphicsPipelineErrors(t *testing.T) {
	dev := newTestDevice(t)
	info := testPipelineInfo(t, dev)

	t.Run("wrong tag", func(t *testing.T) {
		bad := *info
		bad.Tag = 0
		if _, err := dev.CreateGraphicsPipeline(0, &bad); !errors.Is(err, ErrBadCreateInfo) {
			t.Errorf("error = %v, want %v", err, ErrBadCreateInfo)
		}
	})

	t.Run("stale module handle", func(t *testing.T) {
		bad := *info
		bad.Stages = append([]ShaderStageInfo(nil), info.Stages...)
		mod, err := dev.CreateShaderModule(testShaderWGSL)
		if err != nil {
			t.Fatalf("CreateShaderModule() error = %v", err)
		}
		if err := dev.DestroyShaderModule(mod); err != nil {
			t.Fatalf("DestroyShaderModule() error = %v", err)
		}
		bad.Stages[0].Module = mod
		if _, err := dev.CreateGraphicsPipeline(0, &bad); !errors.Is(err, handle.ErrStaleHandle) {
			t.Errorf("error = %v, want %v", err, handle.ErrStaleHandle)
		}
	})

	t.Run("stale cache handle", func(t *testing.T) {
		cache, err := dev.CreatePipelineCache(&pipeline.CacheCreateInfo{Tag: pipeline.TagCacheCreateInfo})
		if err != nil {
			t.Fatalf("CreatePipelineCache() error = %v", err)
		}
		if err := dev.DestroyPipelineCache(cache); err != nil {
			t.Fatalf("DestroyPipelineCache() error = %v", err)
		}
		if _, err := dev.CreateGraphicsPipeline(cache, info); !errors.Is(err, handle.ErrStaleHandle) {
			t.Errorf("error = %v, want %v", err, handle.ErrStaleHandle)
		}
	})
}

func TestPipelineCacheAcrossCreates(t *testing.T) {
	dev := newTestDevice(t)
	cache, err := dev.CreatePipelineCache(&pipeline.CacheCreateInfo{Tag: pipeline.TagCacheCreateInfo})
	if err != nil {
		t.Fatalf("CreatePipelineCache() error = %v", err)
	}
	info := testPipelineInfo(t, dev)

	h1, err := dev.CreateGraphicsPipeline(cache, info)
	if err != nil {
		t.Fatalf("first CreateGraphicsPipeline() error = %v", err)
	}
	h2, err := dev.CreateGraphicsPipeline(cache, info)
	if err != nil {
		t.Fatalf("second CreateGraphicsPipeline() error = %v", err)
	}
	if h1 == h2 {
		t.Error("two pipeline creations returned the same handle")
	}

	data, err := dev.PipelineCacheData(cache)
	if err != nil {
		t.Fatalf("PipelineCacheData() error = %v", err)
	}
	if len(data) == 0 {
		t.Error("PipelineCacheData() is empty")
	}
}

func TestConcurrentPipelineCreation(t *testing.T) {
	dev := newTestDevice(t)
	info := testPipelineInfo(t, dev)

	const workers = 16
	var mu sync.Mutex
	seen := make(map[handle.Handle]bool)
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			h, err := dev.CreateGraphicsPipeline(0, info)
			if err != nil {
				t.Errorf("CreateGraphicsPipeline() error = %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[h] {
				t.Errorf("handle %#x minted twice", uint64(h))
			}
			seen[h] = true
		}()
	}
	wg.Wait()
}

func TestInstanceDestroyCascades(t *testing.T) {
	inst, err := CreateInstance(&InstanceCreateInfo{Tag: TagInstanceCreateInfo})
	if err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}
	phys, err := inst.PhysicalDevice(inst.EnumeratePhysicalDevices()[0])
	if err != nil {
		t.Fatalf("PhysicalDevice() error = %v", err)
	}
	dev, err := phys.CreateDevice(&DeviceCreateInfo{Tag: TagDeviceCreateInfo})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	devHandle := dev.Handle()

	inst.Destroy()
	if _, err := inst.Device(devHandle); !errors.Is(err, handle.ErrStaleHandle) {
		t.Errorf("Device(after instance destroy) error = %v, want %v", err, handle.ErrStaleHandle)
	}
}

func TestQueueDraw(t *testing.T) {
	dev := newTestDevice(t)
	h, err := dev.CreateGraphicsPipeline(0, testPipelineInfo(t, dev))
	if err != nil {
		t.Fatalf("CreateGraphicsPipeline() error = %v", err)
	}

	img, err := pipeline.NewImage(16, 16, gputypes.TextureFormatRGBA8Unorm)
	if err != nil {
		t.Fatalf("NewImage() error = %v", err)
	}
	if err := dev.Queue().Draw(h, 0, 3, 0, img, nil, nil); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	want := bytes.Repeat([]byte{0xff}, 16*16*4)
	if !bytes.Equal(img.Pix(), want) {
		t.Error("queued draw did not fill the attachment white")
	}

	if err := dev.Queue().Draw(0, 0, 3, 0, img, nil, nil); !errors.Is(err, handle.ErrNilHandle) {
		t.Errorf("Draw(zero handle) error = %v, want %v", err, handle.ErrNilHandle)
	}
}

func TestShaderModuleCompilationShared(t *testing.T) {
	dev := newTestDevice(t)

	h1, err := dev.CreateShaderModule(testShaderWGSL)
	if err != nil {
		t.Fatalf("CreateShaderModule() error = %v", err)
	}
	h2, err := dev.CreateShaderModule(testShaderWGSL)
	if err != nil {
		t.Fatalf("CreateShaderModule() error = %v", err)
	}
	if h1 == h2 {
		t.Fatal("two module creations returned the same handle")
	}

	m1, err := dev.ShaderModule(h1)
	if err != nil {
		t.Fatalf("ShaderModule() error = %v", err)
	}
	m2, err := dev.ShaderModule(h2)
	if err != nil {
		t.Fatalf("ShaderModule() error = %v", err)
	}
	if m1 != m2 {
		t.Error("identical source compiled twice")
	}
}
