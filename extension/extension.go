// Package extension implements the optional-feature negotiation for swrast
// instances and devices.
//
// Every extension the implementation knows about is a value of the closed
// Extension enumeration. Metadata (public name, scope, dependency set) is a
// static table fixed at build time; availability never depends on a live
// instance or device. Extensions that cannot be supported on the current
// target configuration compile in with ScopeNotSupported, so callers see one
// uniform rejection path instead of a separate "exists but disabled" state.
package extension

import (
	"errors"
	"fmt"
)

// Extension identifies one known extension.
type Extension int

// The closed set of extensions this implementation knows about.
// NotSupported doubles as the sentinel returned by Parse for unknown names.
const (
	NotSupported Extension = iota
	KHRSurface
	KHRXCBSurface

	extensionCount
)

// Scope tells at which level an extension may be enabled.
type Scope uint8

const (
	// ScopeNotSupported marks an extension unavailable on this target.
	ScopeNotSupported Scope = iota

	// ScopeInstance marks an instance-level extension.
	ScopeInstance

	// ScopeDevice marks a device-level extension.
	ScopeDevice
)

// String returns the scope name for diagnostics.
func (s Scope) String() string {
	switch s {
	case ScopeInstance:
		return "instance"
	case ScopeDevice:
		return "device"
	default:
		return "not supported"
	}
}

// Properties is the name/version record reported by Enumerate.
type Properties struct {
	Name        string
	SpecVersion uint32
}

// Resolution errors. ResolveSet wraps these with the offending
// extension name; use errors.Is to branch on the cause.
var (
	// ErrNotSupported is returned when a requested extension is unknown or
	// unavailable on this target.
	ErrNotSupported = errors.New("extension: not supported")

	// ErrWrongScope is returned when an extension is requested at the wrong
	// creation level, e.g. a device extension at instance creation.
	ErrWrongScope = errors.New("extension: wrong scope for creation context")

	// ErrMissingDependency is returned when a requested extension's
	// dependency is absent from the same request.
	ErrMissingDependency = errors.New("extension: dependency not in requested set")
)

// info is one row of the static metadata table.
type info struct {
	props Properties
	scope Scope
	deps  Set
}

// table is the per-extension metadata, indexed by the Extension value.
// The NotSupported row stays zero. Scopes that depend on the target platform
// (xcbSurfaceScope) are supplied by the build-tagged files in this package.
var table = [extensionCount]info{
	KHRSurface: {
		props: Properties{Name: "VK_KHR_surface", SpecVersion: 25},
		scope: ScopeInstance,
	},
	KHRXCBSurface: {
		props: Properties{Name: "VK_KHR_xcb_surface", SpecVersion: 6},
		scope: xcbSurfaceScope,
		deps:  NewSet(KHRSurface),
	},
}

// Name returns the public name of e, or "" for NotSupported.
func (e Extension) Name() string {
	if e <= NotSupported || e >= extensionCount {
		return ""
	}
	return table[e].props.Name
}

// ExtScope returns the compiled-in scope of e.
func (e Extension) ExtScope() Scope {
	if e <= NotSupported || e >= extensionCount {
		return ScopeNotSupported
	}
	return table[e].scope
}

// Dependencies returns the set of extensions that must be enabled
// together with e.
func (e Extension) Dependencies() Set {
	if e <= NotSupported || e >= extensionCount {
		return 0
	}
	return table[e].deps
}

// Enumerate reports the name/version record of every known extension whose
// scope equals scope, in enumeration order. The order is stable across calls
// and across processes.
func Enumerate(scope Scope) []Properties {
	var out []Properties
	for e := NotSupported + 1; e < extensionCount; e++ {
		if table[e].scope == scope {
			out = append(out, table[e].props)
		}
	}
	return out
}

// Parse resolves an extension name to its identifier by exact string
// comparison. Unrecognized or empty names yield NotSupported; Parse never
// fails hard, the caller branches on the result.
func Parse(name string) Extension {
	if name == "" {
		return NotSupported
	}
	for e := NotSupported + 1; e < extensionCount; e++ {
		if table[e].props.Name == name {
			return e
		}
	}
	return NotSupported
}

// ResolveSet validates a requested extension list against a creation scope
// and returns the enabled set. The whole call is rejected, producing no
// partial set, when any name is unknown, has the wrong scope, or names an
// extension whose declared dependency is absent from the same request.
// Explicit listings are validated as given; transitive dependencies are not
// auto-expanded on the caller's behalf.
//
// The outcome depends only on the contents of requested, not on its order.
func ResolveSet(requested []string, scope Scope) (Set, error) {
	var set Set
	for _, name := range requested {
		e := Parse(name)
		if e == NotSupported {
			return 0, fmt.Errorf("extension: %q: %w", name, ErrNotSupported)
		}
		set = set.With(e)
	}
	for _, name := range requested {
		e := Parse(name)
		if e.ExtScope() == ScopeNotSupported {
			return 0, fmt.Errorf("extension: %q: %w", name, ErrNotSupported)
		}
		if e.ExtScope() != scope {
			return 0, fmt.Errorf("extension: %q: %w", name, ErrWrongScope)
		}
		if deps := e.Dependencies(); deps&set != deps {
			return 0, fmt.Errorf("extension: %q: %w", name, ErrMissingDependency)
		}
	}
	return set, nil
}
