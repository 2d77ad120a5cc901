package dataset

// Set is an ordered, de-duplicated list of column names. Operations keep the
// receiver's order and append new names in argument order.
type Set struct {
	names []string
	seen  map[string]struct{}
}

// NewSet builds a Set from names, dropping repeats and empty names.
func NewSet(names ...string) Set {
	s := Set{seen: make(map[string]struct{}, len(names))}
	for _, n := range names {
		s.add(n)
	}
	return s
}

func (s *Set) add(n string) {
	if n == "" {
		return
	}
	if s.seen == nil {
		s.seen = map[string]struct{}{}
	}
	if _, ok := s.seen[n]; ok {
		return
	}
	s.seen[n] = struct{}{}
	s.names = append(s.names, n)
}

// Len returns the number of names.
func (s Set) Len() int { return len(s.names) }

// Contains reports membership.
func (s Set) Contains(n string) bool {
	_, ok := s.seen[n]
	return ok
}

// Slice returns a copy of the names in order.
func (s Set) Slice() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Union returns s followed by the names of o not already in s.
func (s Set) Union(o Set) Set {
	out := NewSet(s.names...)
	for _, n := range o.names {
		out.add(n)
	}
	return out
}

// Minus returns the names of s that are not in o.
func (s Set) Minus(o Set) Set {
	out := NewSet()
	for _, n := range s.names {
		if !o.Contains(n) {
			out.add(n)
		}
	}
	return out
}

// Intersect returns the names of s that are also in o.
func (s Set) Intersect(o Set) Set {
	out := NewSet()
	for _, n := range s.names {
		if o.Contains(n) {
			out.add(n)
		}
	}
	return out
}
