package extension

// Set is a bitset over the closed extension enumeration. The set enabled on
// an instance or device is computed once at creation and never changes.
type Set uint64

// NewSet builds a set from the given extensions.
func NewSet(exts ...Extension) Set {
	var s Set
	for _, e := range exts {
		s = s.With(e)
	}
	return s
}

// With returns s with e added. NotSupported is never representable in a set.
func (s Set) With(e Extension) Set {
	if e <= NotSupported || e >= extensionCount {
		return s
	}
	return s | 1<<uint(e)
}

// Has reports whether e is in the set.
func (s Set) Has(e Extension) bool {
	if e <= NotSupported || e >= extensionCount {
		return false
	}
	return s&(1<<uint(e)) != 0
}

// Union returns the combination of both sets. Device objects carry the
// union of their own extensions and the owning instance's.
func (s Set) Union(o Set) Set { return s | o }

// Len returns the number of extensions in the set.
func (s Set) Len() int {
	n := 0
	for e := NotSupported + 1; e < extensionCount; e++ {
		if s.Has(e) {
			n++
		}
	}
	return n
}

// Names returns the public names of the set members in enumeration order.
func (s Set) Names() []string {
	var out []string
	for e := NotSupported + 1; e < extensionCount; e++ {
		if s.Has(e) {
			out = append(out, e.Name())
		}
	}
	return out
}
