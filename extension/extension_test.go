package extension

import (
	"errors"
	"testing"
)

func TestScopeMatchesAvailability(t *testing.T) {
	// An extension compiles in with ScopeNotSupported exactly when it is
	// unavailable for the current target; everything else must carry a
	// real scope and a public name.
	for e := NotSupported + 1; e < extensionCount; e++ {
		scope := e.ExtScope()
		name := e.Name()
		if scope == ScopeNotSupported {
			continue
		}
		if name == "" {
			t.Errorf("extension %d has scope %v but no name", e, scope)
		}
		if table[e].props.SpecVersion == 0 {
			t.Errorf("extension %q has zero spec version", name)
		}
	}
	if NotSupported.ExtScope() != ScopeNotSupported {
		t.Error("NotSupported must have ScopeNotSupported")
	}
}

func TestEnumerateScopes(t *testing.T) {
	// Every supported extension appears in exactly one scope's enumeration.
	seen := map[string]Scope{}
	for _, scope := range []Scope{ScopeInstance, ScopeDevice} {
		for _, p := range Enumerate(scope) {
			if prev, ok := seen[p.Name]; ok {
				t.Errorf("%q enumerated under both %v and %v", p.Name, prev, scope)
			}
			seen[p.Name] = scope
		}
	}
	for e := NotSupported + 1; e < extensionCount; e++ {
		if e.ExtScope() == ScopeNotSupported {
			continue
		}
		if _, ok := seen[e.Name()]; !ok {
			t.Errorf("%q missing from Enumerate(%v)", e.Name(), e.ExtScope())
		}
	}
}

func TestEnumerateStableOrder(t *testing.T) {
	a := Enumerate(ScopeInstance)
	b := Enumerate(ScopeInstance)
	if len(a) != len(b) {
		t.Fatalf("enumeration length changed: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("enumeration order changed at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		want Extension
	}{
		{"VK_KHR_surface", KHRSurface},
		{"", NotSupported},
		{"VK_KHR_win32_surface", NotSupported},
		{"vk_khr_surface", NotSupported}, // exact comparison, no folding
	}
	for _, tt := range tests {
		if got := Parse(tt.name); got != tt.want {
			t.Errorf("Parse(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
	if KHRXCBSurface.ExtScope() != ScopeNotSupported {
		if got := Parse("VK_KHR_xcb_surface"); got != KHRXCBSurface {
			t.Errorf("Parse(VK_KHR_xcb_surface) = %v, want %v", got, KHRXCBSurface)
		}
	}
}

func TestResolveSet(t *testing.T) {
	tests := []struct {
		name      string
		requested []string
		scope     Scope
		wantErr   error
	}{
		{"empty request", nil, ScopeInstance, nil},
		{"surface alone", []string{"VK_KHR_surface"}, ScopeInstance, nil},
		{"unknown name", []string{"VK_KHR_android_surface"}, ScopeInstance, ErrNotSupported},
		{"instance ext at device scope", []string{"VK_KHR_surface"}, ScopeDevice, ErrWrongScope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := ResolveSet(tt.requested, tt.scope)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ResolveSet error = %v, want %v", err, tt.wantErr)
				}
				if set != 0 {
					t.Error("rejected request produced a partial set")
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveSet: %v", err)
			}
			if set.Len() != len(tt.requested) {
				t.Errorf("set has %d members, want %d", set.Len(), len(tt.requested))
			}
		})
	}
}

func TestResolveSetDependencies(t *testing.T) {
	if KHRXCBSurface.ExtScope() == ScopeNotSupported {
		t.Skip("xcb surface not compiled in on this target")
	}

	// Requesting the dependent extension without its dependency fails...
	_, err := ResolveSet([]string{"VK_KHR_xcb_surface"}, ScopeInstance)
	if !errors.Is(err, ErrMissingDependency) {
		t.Fatalf("got %v, want ErrMissingDependency", err)
	}

	// ...and both together succeed, in either order.
	orders := [][]string{
		{"VK_KHR_surface", "VK_KHR_xcb_surface"},
		{"VK_KHR_xcb_surface", "VK_KHR_surface"},
	}
	for _, req := range orders {
		set, err := ResolveSet(req, ScopeInstance)
		if err != nil {
			t.Fatalf("ResolveSet(%v): %v", req, err)
		}
		if !set.Has(KHRSurface) || !set.Has(KHRXCBSurface) {
			t.Errorf("ResolveSet(%v) = %v, missing members", req, set.Names())
		}
	}
}

func TestResolveSetDeterministic(t *testing.T) {
	req := []string{"VK_KHR_surface"}
	first, err1 := ResolveSet(req, ScopeInstance)
	second, err2 := ResolveSet(req, ScopeInstance)
	if first != second || (err1 == nil) != (err2 == nil) {
		t.Errorf("ResolveSet not deterministic: (%v,%v) vs (%v,%v)", first, err1, second, err2)
	}
}

func TestSet(t *testing.T) {
	s := NewSet(KHRSurface)
	if !s.Has(KHRSurface) {
		t.Error("expected KHRSurface in set")
	}
	if s.Has(KHRXCBSurface) {
		t.Error("did not expect KHRXCBSurface in set")
	}
	if s.Has(NotSupported) {
		t.Error("NotSupported can never be a set member")
	}
	u := s.Union(NewSet(KHRXCBSurface))
	if u.Len() != 2 {
		t.Errorf("union Len = %d, want 2", u.Len())
	}
	if got := s.Names(); len(got) != 1 || got[0] != "VK_KHR_surface" {
		t.Errorf("Names = %v", got)
	}
}
