package shader

import (
	"errors"
	"strings"
	"testing"
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

// spirvMagic is the first word of every SPIR-V binary.
const spirvMagic = 0x07230203

func TestNewModule(t *testing.T) {
	m, err := NewModule(testShaderWGSL)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}
	if m.Source() != testShaderWGSL {
		t.Error("Source() does not round-trip")
	}
	words := m.Words()
	if len(words) == 0 {
		t.Fatal("Words() is empty")
	}
	if words[0] != spirvMagic {
		t.Errorf("Words()[0] = %#x, want %#x", words[0], spirvMagic)
	}
}

func TestNewModuleBadSource(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"not wgsl", "this is not a shader"},
		{"unclosed function", "@vertex fn vs_main() -> @builtin(position) vec4<f32> {"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewModule(tt.source)
			if !errors.Is(err, ErrCompile) {
				t.Fatalf("NewModule() error = %v, want %v", err, ErrCompile)
			}
			if m != nil {
				t.Error("NewModule() returned a module alongside an error")
			}
		})
	}
}

func TestRegisterKernelRejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		kernel *Kernel
	}{
		{"no name", &Kernel{Vertex: func(uint32, uint32, uint32, []byte, [][]byte, []byte) {}}},
		{"no entry", &Kernel{Name: "k"}},
		{
			"both entries",
			&Kernel{
				Name:     "k",
				Vertex:   func(uint32, uint32, uint32, []byte, [][]byte, []byte) {},
				Fragment: func([]byte, []byte) {},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("RegisterKernel() did not panic")
				}
			}()
			RegisterKernel(tt.kernel)
		})
	}
}

func TestRegisterKernelDuplicatePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("RegisterKernel() did not panic on a duplicate name")
		} else if !strings.Contains(r.(string), "vs_fullscreen") {
			t.Errorf("panic %q does not name the duplicate", r)
		}
	}()
	RegisterKernel(&Kernel{
		Name:   "vs_fullscreen",
		Vertex: func(uint32, uint32, uint32, []byte, [][]byte, []byte) {},
	})
}
