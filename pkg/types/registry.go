package types

// Registry interns Array and Tuple types by structural key so that two
// independent requests with structurally equal inputs return the same
// handle (testable property 1). A Registry's caches are single-writer by
// construction and need no locking: the compiler is single-threaded
// end-to-end (see §5 of the system overview).
type Registry struct {
	arrays map[arrayKey]*Array
	tuples map[string]*Tuple
}

type arrayKey struct {
	size int
	elem Type
}

// NewRegistry creates an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{
		arrays: make(map[arrayKey]*Array),
		tuples: make(map[string]*Tuple),
	}
}

// Int returns the Int32 singleton.
func (*Registry) Int() Type { return Int32T }

// Bool returns the Bool singleton.
func (*Registry) Bool() Type { return BoolT }

// Unit returns the Unit singleton.
func (*Registry) Unit() Type { return UnitT }

// UnknownType returns the Unknown singleton.
func (*Registry) UnknownType() Type { return Unknown }

// Any returns the Any error-recovery sentinel.
func (*Registry) Any() Type { return AnyT }

// Array returns the interned array type for (size, elem), creating it on
// first request.
func (r *Registry) Array(size int, elem Type) *Array {
	key := arrayKey{size: size, elem: elem}
	if a, ok := r.arrays[key]; ok {
		return a
	}
	a := &Array{Size: size, Elem: elem}
	r.arrays[key] = a
	return a
}

// Tuple returns the interned tuple type for elems, creating it on first
// request. The structural key is the concatenation of each element's
// canonical spelling, which is unique per Equal-distinguishable element.
func (r *Registry) Tuple(elems []Type) *Tuple {
	key := tupleKey(elems)
	if t, ok := r.tuples[key]; ok {
		return t
	}
	cp := make([]Type, len(elems))
	copy(cp, elems)
	t := &Tuple{Elems: cp}
	r.tuples[key] = t
	return t
}

// tupleKey builds a structural key from each element's canonical spelling.
// Interning is inductive: every element reaching this function is itself
// already canonical (a singleton or a previously-interned handle), so its
// String() form uniquely identifies it.
func tupleKey(elems []Type) string {
	key := ""
	for _, e := range elems {
		key += e.String() + "|"
	}
	return key
}
