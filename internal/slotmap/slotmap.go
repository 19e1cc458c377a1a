// Package slotmap implements the sparse, indexed slot sequences used by
// the Replica (proposals, decisions) and the Leader (proposals). See
// spec.md §3 "Sparse indexed sequence" and §9 "Sparse slot sequences".
//
// It is a growable vector of optionals: O(1) get/set by slot, and a
// "length" of one past the highest written index (0 if nothing has ever
// been written). The design note in spec.md §9 explicitly allows either a
// growable vector or a hash map; we follow the original Python's
// defaultlist and use the vector form.
package slotmap

// Map is a sparse slot -> value sequence. The zero value is ready to use.
type Map[T any] struct {
	entries []*T
}

// Get returns the value at slot and whether it has been written.
func (m *Map[T]) Get(slot int) (T, bool) {
	var zero T
	if slot < 0 || slot >= len(m.entries) || m.entries[slot] == nil {
		return zero, false
	}
	return *m.entries[slot], true
}

// Set writes v at slot, growing the sequence with empty holes as needed.
func (m *Map[T]) Set(slot int, v T) {
	if slot >= len(m.entries) {
		grown := make([]*T, slot+1)
		copy(grown, m.entries)
		m.entries = grown
	}
	vv := v
	m.entries[slot] = &vv
}

// Len is one past the highest slot ever written, or 0 if none has been.
func (m *Map[T]) Len() int {
	return len(m.entries)
}

// Contains reports whether v appears at any written slot, and if so at
// which one. Used by do_INVOKE to detect a client retry.
func Contains[T comparable](m *Map[T], v T) (int, bool) {
	return containsBefore(m, v, len(m.entries))
}

// ContainsBefore reports whether v appears at any written slot strictly
// below upto. Used by do_DECISION to detect a duplicate decision among
// slots already executed.
func ContainsBefore[T comparable](m *Map[T], v T, upto int) (int, bool) {
	return containsBefore(m, v, upto)
}

func containsBefore[T comparable](m *Map[T], v T, upto int) (int, bool) {
	if upto > len(m.entries) {
		upto = len(m.entries)
	}
	for i := 0; i < upto; i++ {
		e := m.entries[i]
		if e != nil && *e == v {
			return i, true
		}
	}
	return 0, false
}
