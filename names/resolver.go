package names

import (
	"github.com/deepnoodle-ai/avm/errz"
	"github.com/golang/groupcache/lru"
)

// DefaultCacheSize is the number of static multinames whose candidate
// bindings are cached.
const DefaultCacheSize = 1024

// Resolver turns complete multinames into concrete bindings. Candidate lists
// for multinames without runtime parts are cached by identity, so resolving
// the same pool entry twice yields the same bindings.
type Resolver struct {
	cache *lru.Cache
}

// NewResolver returns a resolver caching up to size static multinames.
func NewResolver(size int) *Resolver {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Resolver{cache: lru.New(size)}
}

// Candidates returns the bindings m may denote, in lookup order.
func (r *Resolver) Candidates(m *MultiName) ([]Binding, error) {
	if m.IsRuntime() {
		return nil, errz.Malformed(errz.ErrInvalidMultiname, "multiname %s has unresolved runtime parts", m)
	}
	if v, ok := r.cache.Get(m); ok {
		return v.([]Binding), nil
	}
	out, err := Bindings(m)
	if err != nil {
		return nil, err
	}
	r.cache.Add(m, out)
	return out, nil
}

// Bindings returns the bindings m may denote without consulting a cache. It
// suits multinames completed at run time, which are fresh on every use.
func Bindings(m *MultiName) ([]Binding, error) {
	if m.IsRuntime() {
		return nil, errz.Malformed(errz.ErrInvalidMultiname, "multiname %s has unresolved runtime parts", m)
	}
	switch {
	case m.Kind.IsQualified():
		return []Binding{{NS: m.NS, Name: m.Name}}, nil
	case m.Kind.HasNamespaceSet():
		out := make([]Binding, 0, len(m.Set))
		for _, ns := range m.Set {
			out = append(out, Binding{NS: ns, Name: m.Name})
		}
		return out, nil
	}
	return nil, errz.Malformed(errz.ErrInvalidMultiname, "cannot resolve multiname kind %s", m.Kind)
}

// Resolve returns the first candidate binding accepted by has.
func (r *Resolver) Resolve(m *MultiName, has func(Binding) bool) (Binding, bool, error) {
	candidates, err := r.Candidates(m)
	if err != nil {
		return Binding{}, false, err
	}
	for _, b := range candidates {
		if has(b) {
			return b, true, nil
		}
	}
	return Binding{}, false, nil
}

// Len returns the number of cached entries.
func (r *Resolver) Len() int {
	return r.cache.Len()
}

// Table maps bindings to values, e.g. class definitions or script traits.
type Table[T any] struct {
	entries map[Key]T
	order   []Binding
}

// NewTable returns an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{entries: map[Key]T{}}
}

// Define adds a binding. It returns false if the binding already exists.
func (t *Table[T]) Define(b Binding, v T) bool {
	k := b.Key()
	if _, exists := t.entries[k]; exists {
		return false
	}
	t.entries[k] = v
	t.order = append(t.order, b)
	return true
}

// Get returns the value bound to b.
func (t *Table[T]) Get(b Binding) (T, bool) {
	v, ok := t.entries[b.Key()]
	return v, ok
}

// Lookup resolves m against the table.
func (t *Table[T]) Lookup(r *Resolver, m *MultiName) (T, Binding, bool, error) {
	var zero T
	b, ok, err := r.Resolve(m, func(b Binding) bool {
		_, ok := t.entries[b.Key()]
		return ok
	})
	if err != nil || !ok {
		return zero, Binding{}, false, err
	}
	return t.entries[b.Key()], b, true, nil
}

// Len returns the number of bindings.
func (t *Table[T]) Len() int {
	return len(t.order)
}

// Each visits bindings in definition order.
func (t *Table[T]) Each(fn func(b Binding, v T)) {
	for _, b := range t.order {
		fn(b, t.entries[b.Key()])
	}
}
