package shader

import (
	"math"
	"sync"

	"github.com/gogpu/swrast/pipeline"
)

// Kernel is the native Go implementation of one shader entry point. A
// kernel implements exactly one stage: vertex kernels carry the output
// record layout, fragment kernels leave it zero.
type Kernel struct {
	Name     string
	Vertex   pipeline.VertexEntry
	Fragment pipeline.FragmentEntry
	Layout   pipeline.VertexLayout
}

var (
	kernelMu sync.RWMutex
	kernels  = map[string]*Kernel{}
)

// RegisterKernel makes a kernel available to translation under its name.
// Registering a name twice panics; kernel names are a flat global namespace.
func RegisterKernel(k *Kernel) {
	if k.Name == "" || (k.Vertex == nil) == (k.Fragment == nil) {
		panic("shader: kernel must have a name and exactly one stage entry")
	}
	kernelMu.Lock()
	defer kernelMu.Unlock()
	if _, ok := kernels[k.Name]; ok {
		panic("shader: kernel " + k.Name + " registered twice")
	}
	kernels[k.Name] = k
}

func lookupKernel(name string) (*Kernel, bool) {
	kernelMu.RLock()
	defer kernelMu.RUnlock()
	k, ok := kernels[name]
	return k, ok
}

// vec4Size is the byte size of one 4-component float vector.
const vec4Size = 16

func putFloat32(b []byte, f float32) {
	bits := math.Float32bits(f)
	b[0] = byte(bits)
	b[1] = byte(bits >> 8)
	b[2] = byte(bits >> 16)
	b[3] = byte(bits >> 24)
}

// Built-in kernels. vs_passthrough copies vec4 positions from binding 0;
// vs_color additionally copies vec4 colors from binding 1 after the
// position; vs_fullscreen generates a viewport-covering triangle from the
// vertex index alone. Vertex kernels leave records zeroed when a binding
// runs short, which yields w=0 and drops the primitive downstream.
func init() {
	RegisterKernel(&Kernel{
		Name:   "vs_passthrough",
		Layout: pipeline.VertexLayout{StructSize: vec4Size, PositionOffset: 0},
		Vertex: func(vertexStart, vertexEnd, instanceID uint32, out []byte, bindings [][]byte, uniforms []byte) {
			if len(bindings) == 0 {
				return
			}
			positions := bindings[0]
			for v := vertexStart; v < vertexEnd; v++ {
				src := int(v) * vec4Size
				if src+vec4Size > len(positions) {
					return
				}
				copy(out[(v-vertexStart)*vec4Size:], positions[src:src+vec4Size])
			}
		},
	})

	RegisterKernel(&Kernel{
		Name:   "vs_color",
		Layout: pipeline.VertexLayout{StructSize: 2 * vec4Size, PositionOffset: 0},
		Vertex: func(vertexStart, vertexEnd, instanceID uint32, out []byte, bindings [][]byte, uniforms []byte) {
			if len(bindings) < 2 {
				return
			}
			positions, colors := bindings[0], bindings[1]
			for v := vertexStart; v < vertexEnd; v++ {
				src := int(v) * vec4Size
				if src+vec4Size > len(positions) || src+vec4Size > len(colors) {
					return
				}
				rec := out[(v-vertexStart)*2*vec4Size:]
				copy(rec, positions[src:src+vec4Size])
				copy(rec[vec4Size:], colors[src:src+vec4Size])
			}
		},
	})

	RegisterKernel(&Kernel{
		Name:   "vs_fullscreen",
		Layout: pipeline.VertexLayout{StructSize: vec4Size, PositionOffset: 0},
		Vertex: func(vertexStart, vertexEnd, instanceID uint32, out []byte, bindings [][]byte, uniforms []byte) {
			for v := vertexStart; v < vertexEnd; v++ {
				rec := out[(v-vertexStart)*vec4Size:]
				i := v % 3
				putFloat32(rec[0:], float32(int32(i%2)*4-1))
				putFloat32(rec[4:], float32(int32(i/2)*4-1))
				putFloat32(rec[8:], 0)
				putFloat32(rec[12:], 1)
			}
		},
	})

	RegisterKernel(&Kernel{
		Name: "fs_white",
		Fragment: func(pixel []byte, uniforms []byte) {
			for i := range pixel {
				pixel[i] = 0xff
			}
		},
	})

	RegisterKernel(&Kernel{
		Name: "fs_uniform_color",
		Fragment: func(pixel []byte, uniforms []byte) {
			n := copy(pixel, uniforms)
			for i := n; i < len(pixel); i++ {
				pixel[i] = 0
			}
		},
	})
}
