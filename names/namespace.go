// Package names models namespaces and multinames and resolves multinames to
// concrete (namespace, name) bindings.
package names

import "fmt"

// NamespaceKind is the encoded kind byte of a namespace pool entry.
type NamespaceKind uint8

const (
	KindPrivate         NamespaceKind = 0x05
	KindNamespace       NamespaceKind = 0x08
	KindPackage         NamespaceKind = 0x16
	KindPackageInternal NamespaceKind = 0x17
	KindProtected       NamespaceKind = 0x18
	KindExplicit        NamespaceKind = 0x19
	KindStaticProtected NamespaceKind = 0x1A
)

// Valid reports whether k is a known namespace kind.
func (k NamespaceKind) Valid() bool {
	switch k {
	case KindPrivate, KindNamespace, KindPackage, KindPackageInternal,
		KindProtected, KindExplicit, KindStaticProtected:
		return true
	}
	return false
}

func (k NamespaceKind) String() string {
	switch k {
	case KindPrivate:
		return "private"
	case KindNamespace:
		return "namespace"
	case KindPackage:
		return "package"
	case KindPackageInternal:
		return "internal"
	case KindProtected:
		return "protected"
	case KindExplicit:
		return "explicit"
	case KindStaticProtected:
		return "static protected"
	default:
		return fmt.Sprintf("kind(%#x)", uint8(k))
	}
}

// Namespace is an interned namespace. Two non-private namespaces with the
// same URI are the same *Namespace; every private namespace is distinct.
type Namespace struct {
	id   int
	URI  string
	Kind NamespaceKind
}

// ID returns the namespace's interning id.
func (ns *Namespace) ID() int {
	return ns.id
}

// IsPrivate reports whether the namespace is private.
func (ns *Namespace) IsPrivate() bool {
	return ns != nil && ns.Kind == KindPrivate
}

// Qualifier returns the namespace string passed to host objects. Private
// namespaces get a qualifier that no other namespace can produce.
func (ns *Namespace) Qualifier() string {
	if ns == nil {
		return ""
	}
	if ns.Kind == KindPrivate {
		return fmt.Sprintf("%s#private%d", ns.URI, ns.id)
	}
	return ns.URI
}

func (ns *Namespace) String() string {
	if ns == nil {
		return "*"
	}
	if ns.URI == "" {
		return fmt.Sprintf("%s:<public>", ns.Kind)
	}
	return fmt.Sprintf("%s:%s", ns.Kind, ns.URI)
}

// NamespaceSet is an ordered set of namespaces searched in order.
type NamespaceSet []*Namespace

// Interner allocates namespaces, unifying non-private ones by URI.
type Interner struct {
	byURI  map[string]*Namespace
	all    []*Namespace
	public *Namespace
}

// NewInterner returns an interner that already holds the public namespace.
func NewInterner() *Interner {
	in := &Interner{byURI: map[string]*Namespace{}}
	in.public = in.Intern(KindPackage, "")
	return in
}

// Public returns the public (empty URI) namespace.
func (in *Interner) Public() *Namespace {
	return in.public
}

// Intern returns the namespace for (kind, uri). Private namespaces are always
// freshly allocated and anonymous to the URI index.
func (in *Interner) Intern(kind NamespaceKind, uri string) *Namespace {
	if kind != KindPrivate {
		if ns, ok := in.byURI[uri]; ok {
			return ns
		}
	}
	ns := &Namespace{id: len(in.all), URI: uri, Kind: kind}
	in.all = append(in.all, ns)
	if kind != KindPrivate {
		in.byURI[uri] = ns
	}
	return ns
}

// Lookup returns the non-private namespace with the given URI, if interned.
func (in *Interner) Lookup(uri string) (*Namespace, bool) {
	ns, ok := in.byURI[uri]
	return ns, ok
}

// Len returns the number of allocated namespaces.
func (in *Interner) Len() int {
	return len(in.all)
}
