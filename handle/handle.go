// Package handle maps opaque client-visible handles to the implementation
// objects that back them.
//
// Instead of reinterpreting object addresses, handles index a
// generation-checked slot table: each handle packs the object kind, a slot
// index and the slot's generation counter at mint time. Resolving a handle
// whose generation no longer matches yields a typed error rather than
// undefined behavior, so stale or mismatched handles are always caught.
//
// Two handle categories exist. Dispatchable handles (instances, devices and
// their kin) carry a loader sentinel in the packed word so an external
// loader can recognize them; non-dispatchable handles (pipelines, caches,
// shader modules) omit it.
package handle

import (
	"errors"
	"fmt"
	"sync"
)

// Kind discriminates the object categories a handle may refer to.
type Kind uint8

const (
	KindInvalid Kind = iota

	// Dispatchable kinds.
	KindInstance
	KindPhysicalDevice
	KindDevice
	KindQueue

	// Non-dispatchable kinds.
	KindShaderModule
	KindPipeline
	KindPipelineCache
)

// Dispatchable reports whether objects of this kind take the dispatchable
// handle category with the loader sentinel.
func (k Kind) Dispatchable() bool {
	switch k {
	case KindInstance, KindPhysicalDevice, KindDevice, KindQueue:
		return true
	}
	return false
}

// String returns the kind name for diagnostics.
func (k Kind) String() string {
	switch k {
	case KindInstance:
		return "instance"
	case KindPhysicalDevice:
		return "physical device"
	case KindDevice:
		return "device"
	case KindQueue:
		return "queue"
	case KindShaderModule:
		return "shader module"
	case KindPipeline:
		return "pipeline"
	case KindPipelineCache:
		return "pipeline cache"
	}
	return "invalid"
}

// Handle is the opaque value handed to clients. The zero Handle is never
// valid.
//
// Bit layout: index in bits 0-23, generation in bits 24-47, kind in bits
// 48-55, and the loader sentinel byte in bits 56-63 for dispatchable kinds.
type Handle uint64

const (
	indexBits = 24
	genBits   = 24

	indexMask = 1<<indexBits - 1
	genMask   = 1<<genBits - 1

	genShift  = indexBits
	kindShift = indexBits + genBits

	// loaderSentinel marks dispatchable handles for the external loader.
	loaderSentinel = Handle(0xD5) << 56
)

// IsZero reports whether h is the invalid zero handle.
func (h Handle) IsZero() bool { return h == 0 }

// Kind returns the object kind packed into the handle.
func (h Handle) Kind() Kind { return Kind(h >> kindShift & 0xFF) }

// Dispatchable reports whether h carries the loader sentinel.
func (h Handle) Dispatchable() bool { return h&loaderSentinel == loaderSentinel }

func (h Handle) index() uint32      { return uint32(h & indexMask) }
func (h Handle) generation() uint32 { return uint32(h >> genShift & genMask) }

func pack(kind Kind, index, gen uint32) Handle {
	h := Handle(index&indexMask) |
		Handle(gen&genMask)<<genShift |
		Handle(kind)<<kindShift
	if kind.Dispatchable() {
		h |= loaderSentinel
	}
	return h
}

// Resolution errors.
var (
	// ErrNilHandle is returned when resolving the zero handle.
	ErrNilHandle = errors.New("handle: nil handle")

	// ErrStaleHandle is returned when a handle outlived its object.
	ErrStaleHandle = errors.New("handle: stale handle")

	// ErrWrongKind is returned when a handle refers to an object of a
	// different kind than the caller asked for.
	ErrWrongKind = errors.New("handle: wrong object kind")
)

// slot is one entry of the registry arena.
type slot struct {
	gen  uint32
	kind Kind
	obj  any
	live bool
}

// Registry is a generation-checked slot table. The zero value is not usable;
// call NewRegistry.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	slots []slot
	free  []uint32
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Put mints a handle for a live object, transferring ownership of obj to the
// handle until Take reconstitutes it. While the object is live the handle
// and the object are in bijection.
func (r *Registry) Put(kind Kind, obj any) Handle {
	if kind == KindInvalid || obj == nil {
		panic("handle: Put with invalid kind or nil object")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot{gen: 1})
		idx = uint32(len(r.slots) - 1)
	}
	s := &r.slots[idx]
	s.kind = kind
	s.obj = obj
	s.live = true
	return pack(kind, idx, s.gen)
}

// Get resolves a handle back to its object without transferring ownership.
func (r *Registry) Get(h Handle, kind Kind) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, err := r.lookup(h, kind)
	if err != nil {
		return nil, err
	}
	return s.obj, nil
}

// Take reconstitutes ownership of the object and retires the handle. The
// slot's generation advances, so every alias of h resolves to ErrStaleHandle
// from now on, and the slot is recycled for future mints. Taking the same
// minted handle twice is an error, never a double free.
func (r *Registry) Take(h Handle, kind Kind) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.lookup(h, kind)
	if err != nil {
		return nil, err
	}
	obj := s.obj
	s.obj = nil
	s.live = false
	s.kind = KindInvalid
	s.gen = (s.gen + 1) & genMask
	r.free = append(r.free, h.index())
	return obj, nil
}

// Drain retires every live slot, invoking fn with each object before its
// slot is recycled. All handles minted by this registry become stale.
func (r *Registry) Drain(fn func(kind Kind, obj any)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slots {
		s := &r.slots[i]
		if !s.live {
			continue
		}
		kind, obj := s.kind, s.obj
		s.obj = nil
		s.live = false
		s.kind = KindInvalid
		s.gen = (s.gen + 1) & genMask
		r.free = append(r.free, uint32(i))
		if fn != nil {
			fn(kind, obj)
		}
	}
}

// Len returns the number of live objects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for i := range r.slots {
		if r.slots[i].live {
			n++
		}
	}
	return n
}

// lookup validates h against the table. Callers hold r.mu.
func (r *Registry) lookup(h Handle, kind Kind) (*slot, error) {
	if h.IsZero() {
		return nil, ErrNilHandle
	}
	idx := h.index()
	if int(idx) >= len(r.slots) {
		return nil, fmt.Errorf("handle: index %d out of range: %w", idx, ErrStaleHandle)
	}
	s := &r.slots[idx]
	if !s.live || s.gen != h.generation() {
		return nil, ErrStaleHandle
	}
	if s.kind != kind || h.Kind() != kind {
		return nil, fmt.Errorf("handle: have %v, want %v: %w", s.kind, kind, ErrWrongKind)
	}
	return s, nil
}
