package closure

import "slices"

// VisitedSet holds the paths already discovered during one closure
// computation. It only grows.
type VisitedSet map[string]struct{}

// NewVisitedSet returns a set holding paths.
func NewVisitedSet(paths ...string) VisitedSet {
	v := make(VisitedSet, len(paths))
	for _, p := range paths {
		v[p] = struct{}{}
	}
	return v
}

// Add inserts p and reports whether it was new.
func (v VisitedSet) Add(p string) bool {
	if _, ok := v[p]; ok {
		return false
	}
	v[p] = struct{}{}
	return true
}

// Has reports whether p was visited.
func (v VisitedSet) Has(p string) bool {
	_, ok := v[p]
	return ok
}

// Sorted returns the paths in lexical order.
func (v VisitedSet) Sorted() []string {
	out := make([]string, 0, len(v))
	for p := range v {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
