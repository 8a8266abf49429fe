package swrast

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/swrast/capability"
	"github.com/gogpu/swrast/extension"
	"github.com/gogpu/swrast/handle"
	"github.com/gogpu/swrast/internal/parallel"
	"github.com/gogpu/swrast/pipeline"
	"github.com/gogpu/swrast/shader"
)

// DeviceCreateInfo describes a logical device. EnabledFeatures must be a
// subset of the physical device's supported features; Extensions names the
// device-scope extensions to enable.
type DeviceCreateInfo struct {
	Tag             uint32
	Extensions      []string
	EnabledFeatures capability.Features
}

// Device is a logical device: it owns a registry for the resources created
// through it (shader modules, pipelines, caches) and the pipeline compiler
// configured for this machine.
type Device struct {
	inst     *Instance
	phys     *PhysicalDevice
	hnd      handle.Handle
	queue    *Queue
	features capability.Features
	exts     extension.Set

	resources *handle.Registry
	compiler  pipeline.Compiler
	modules   *shader.ModuleCache
	pool      *parallel.Pool
}

// Queue is the device's single execution queue. Draw execution in this
// implementation is synchronous, so the queue exists for the object model
// and for idle synchronization.
type Queue struct {
	dev *Device
	hnd handle.Handle
}

// Handle returns the queue's dispatchable handle.
func (q *Queue) Handle() handle.Handle { return q.hnd }

// WaitIdle blocks until all queue work completes. Draws run synchronously
// on the calling goroutine, so there is never outstanding work.
func (q *Queue) WaitIdle() error { return nil }

// Draw executes a pipeline over the vertex range into the attachment,
// spreading rasterization over the device's worker pool. The output is
// identical to calling the pipeline's Run directly.
func (q *Queue) Draw(p handle.Handle, vertexStart, vertexEnd, instanceID uint32, attachment *pipeline.Image, bindings [][]byte, uniforms []byte) error {
	pl, err := q.dev.Pipeline(p)
	if err != nil {
		return err
	}
	return pl.RunParallel(vertexStart, vertexEnd, instanceID, attachment, bindings, uniforms, q.dev.pool)
}

// CreateDevice creates a logical device on this physical device. Creation
// is atomic: a rejected extension or feature leaves no device behind.
func (pd *PhysicalDevice) CreateDevice(info *DeviceCreateInfo, opts ...DeviceOption) (*Device, error) {
	if info == nil || info.Tag != TagDeviceCreateInfo {
		return nil, fmt.Errorf("swrast: device structure tag: %w", ErrBadCreateInfo)
	}
	exts, err := extension.ResolveSet(info.Extensions, extension.ScopeDevice)
	if err != nil {
		return nil, fmt.Errorf("swrast: device extensions: %w", err)
	}
	if !info.EnabledFeatures.Subset(pd.features) {
		return nil, fmt.Errorf("swrast: enabled features exceed device support: %w", ErrFeatureNotSupported)
	}

	o := defaultDeviceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.translator == nil {
		o.translator = shader.NewTranslator()
	}
	if o.backend == nil {
		o.backend = shader.NewBackend()
	}
	if !o.targetSet {
		o.target = pipeline.HostTargetMachine()
	}

	dev := &Device{
		inst:      pd.inst,
		phys:      pd,
		features:  info.EnabledFeatures,
		exts:      exts.Union(pd.inst.extensions),
		resources: handle.NewRegistry(),
		modules:   shader.NewModuleCache(),
		pool:      parallel.NewPool(o.workers),
		compiler: pipeline.Compiler{
			Translator: o.translator,
			Backend:    o.backend,
			Target:     o.target,
		},
	}
	dev.hnd = pd.inst.reg.Put(handle.KindDevice, dev)
	dev.queue = &Queue{dev: dev}
	dev.queue.hnd = pd.inst.reg.Put(handle.KindQueue, dev.queue)

	pd.inst.mu.Lock()
	pd.inst.devices = append(pd.inst.devices, dev)
	pd.inst.mu.Unlock()

	Logger().Info("device created",
		"name", pd.Name(),
		"target", o.target.Triple,
		"extensions", exts.Names())
	return dev, nil
}

// Handle returns the device's dispatchable handle.
func (d *Device) Handle() handle.Handle { return d.hnd }

// Queue returns the device's single queue.
func (d *Device) Queue() *Queue { return d.queue }

// Features returns the features the device was created with.
func (d *Device) Features() capability.Features { return d.features }

// Extensions returns the enabled extensions: the union of the device's own
// set and the owning instance's.
func (d *Device) Extensions() extension.Set { return d.exts }

// WaitIdle blocks until all device work completes.
func (d *Device) WaitIdle() error { return d.queue.WaitIdle() }

// CreateShaderModule validates source and mints a shader module handle.
// Compilation of identical source is memoized per device, but every call
// mints a distinct handle.
func (d *Device) CreateShaderModule(source string) (handle.Handle, error) {
	m, err := d.modules.Compile(source)
	if err != nil {
		return 0, err
	}
	return d.resources.Put(handle.KindShaderModule, m), nil
}

// ShaderModule resolves a shader module handle.
func (d *Device) ShaderModule(h handle.Handle) (*shader.Module, error) {
	obj, err := d.resources.Get(h, handle.KindShaderModule)
	if err != nil {
		return nil, err
	}
	return obj.(*shader.Module), nil
}

// DestroyShaderModule retires a shader module handle. Pipelines already
// compiled from the module are unaffected.
func (d *Device) DestroyShaderModule(h handle.Handle) error {
	_, err := d.resources.Take(h, handle.KindShaderModule)
	return err
}

// CreatePipelineCache creates a pipeline cache and mints its handle.
func (d *Device) CreatePipelineCache(info *pipeline.CacheCreateInfo) (handle.Handle, error) {
	c, err := pipeline.NewCache(info)
	if err != nil {
		return 0, err
	}
	return d.resources.Put(handle.KindPipelineCache, c), nil
}

// PipelineCacheData serializes a pipeline cache for reuse across runs.
func (d *Device) PipelineCacheData(h handle.Handle) ([]byte, error) {
	obj, err := d.resources.Get(h, handle.KindPipelineCache)
	if err != nil {
		return nil, err
	}
	return obj.(*pipeline.Cache).Serialize(), nil
}

// DestroyPipelineCache retires a cache handle and releases the cached
// implementations. Pipelines created through the cache stay valid.
func (d *Device) DestroyPipelineCache(h handle.Handle) error {
	obj, err := d.resources.Take(h, handle.KindPipelineCache)
	if err != nil {
		return err
	}
	obj.(*pipeline.Cache).Destroy()
	return nil
}

// ShaderStageInfo names one shader stage of a pipeline description at the
// device level, referring to the module by handle.
type ShaderStageInfo struct {
	Module     handle.Handle
	EntryPoint string
	Stage      gputypes.ShaderStage
}

// GraphicsPipelineCreateInfo is the device-level pipeline description.
type GraphicsPipelineCreateInfo struct {
	Tag            uint32
	Stages         []ShaderStageInfo
	VertexBindings []pipeline.VertexBinding
	Viewport       pipeline.Viewport
	Scissor        pipeline.Rect
	ColorFormat    gputypes.TextureFormat
}

// CreateGraphicsPipeline compiles a pipeline, optionally through the given
// cache (pass the zero handle for none), and mints its handle. Concurrent
// calls are safe and never yield aliased handles.
func (d *Device) CreateGraphicsPipeline(cache handle.Handle, info *GraphicsPipelineCreateInfo) (handle.Handle, error) {
	if info == nil || info.Tag != pipeline.TagGraphicsCreateInfo {
		return 0, fmt.Errorf("swrast: pipeline structure tag: %w", ErrBadCreateInfo)
	}

	var pc *pipeline.Cache
	if !cache.IsZero() {
		obj, err := d.resources.Get(cache, handle.KindPipelineCache)
		if err != nil {
			return 0, err
		}
		pc = obj.(*pipeline.Cache)
	}

	stages := make([]pipeline.StageInfo, len(info.Stages))
	for i, s := range info.Stages {
		mod, err := d.ShaderModule(s.Module)
		if err != nil {
			return 0, fmt.Errorf("swrast: stage %d module: %w", i, err)
		}
		stages[i] = pipeline.StageInfo{
			Module:     mod,
			EntryPoint: s.EntryPoint,
			Stage:      s.Stage,
		}
	}

	p, err := d.compiler.Create(pc, &pipeline.CreateInfo{
		Tag:            info.Tag,
		Stages:         stages,
		VertexBindings: info.VertexBindings,
		Viewport:       info.Viewport,
		Scissor:        info.Scissor,
		ColorFormat:    info.ColorFormat,
	})
	if err != nil {
		return 0, err
	}
	return d.resources.Put(handle.KindPipeline, p), nil
}

// Pipeline resolves a pipeline handle.
func (d *Device) Pipeline(h handle.Handle) (*pipeline.Pipeline, error) {
	obj, err := d.resources.Get(h, handle.KindPipeline)
	if err != nil {
		return nil, err
	}
	return obj.(*pipeline.Pipeline), nil
}

// DestroyPipeline retires a pipeline handle and drops its reference to the
// compiled implementation.
func (d *Device) DestroyPipeline(h handle.Handle) error {
	obj, err := d.resources.Take(h, handle.KindPipeline)
	if err != nil {
		return err
	}
	obj.(*pipeline.Pipeline).Release()
	return nil
}

// Destroy tears down the device: every resource handle becomes stale,
// pipelines are released, caches destroyed. The caller must ensure no
// draws are in flight.
func (d *Device) Destroy() {
	if n := d.resources.Len(); n > 0 {
		Logger().Warn("device destroyed with live objects", "count", n)
	}
	d.resources.Drain(func(kind handle.Kind, obj any) {
		switch kind {
		case handle.KindPipeline:
			obj.(*pipeline.Pipeline).Release()
		case handle.KindPipelineCache:
			obj.(*pipeline.Cache).Destroy()
		}
	})

	d.pool.Close()

	if _, err := d.inst.reg.Take(d.queue.hnd, handle.KindQueue); err != nil {
		Logger().Warn("device destroyed twice", "error", err)
		return
	}
	if _, err := d.inst.reg.Take(d.hnd, handle.KindDevice); err != nil {
		Logger().Warn("device destroyed twice", "error", err)
	}

	d.inst.mu.Lock()
	for i, dev := range d.inst.devices {
		if dev == d {
			d.inst.devices = append(d.inst.devices[:i], d.inst.devices[i+1:]...)
			break
		}
	}
	d.inst.mu.Unlock()
}
