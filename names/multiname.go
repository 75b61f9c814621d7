package names

import (
	"fmt"
	"strings"
)

// Kind is the encoded kind byte of a multiname pool entry.
type Kind uint8

const (
	QName       Kind = 0x07
	QNameA      Kind = 0x0D
	RTQName     Kind = 0x0F
	RTQNameA    Kind = 0x10
	RTQNameL    Kind = 0x11
	RTQNameLA   Kind = 0x12
	Multiname   Kind = 0x09
	MultinameA  Kind = 0x0E
	MultinameL  Kind = 0x1B
	MultinameLA Kind = 0x1C
)

var kindNames = map[Kind]string{
	QName:       "QName",
	QNameA:      "QNameA",
	RTQName:     "RTQName",
	RTQNameA:    "RTQNameA",
	RTQNameL:    "RTQNameL",
	RTQNameLA:   "RTQNameLA",
	Multiname:   "Multiname",
	MultinameA:  "MultinameA",
	MultinameL:  "MultinameL",
	MultinameLA: "MultinameLA",
}

// Valid reports whether k is a known multiname kind.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%#x)", uint8(k))
}

// IsAttribute reports whether k names an attribute.
func (k Kind) IsAttribute() bool {
	switch k {
	case QNameA, RTQNameA, RTQNameLA, MultinameA, MultinameLA:
		return true
	}
	return false
}

// IsQualified reports whether k is fully resolved at parse time.
func (k Kind) IsQualified() bool {
	return k == QName || k == QNameA
}

// IsRuntimeNamespace reports whether the namespace is popped from the stack.
func (k Kind) IsRuntimeNamespace() bool {
	switch k {
	case RTQName, RTQNameA, RTQNameL, RTQNameLA:
		return true
	}
	return false
}

// IsRuntimeName reports whether the name is popped from the stack.
func (k Kind) IsRuntimeName() bool {
	switch k {
	case RTQNameL, RTQNameLA, MultinameL, MultinameLA:
		return true
	}
	return false
}

// HasNamespaceSet reports whether k carries a namespace set.
func (k Kind) HasNamespaceSet() bool {
	switch k {
	case Multiname, MultinameA, MultinameL, MultinameLA:
		return true
	}
	return false
}

// MultiName is a possibly partially runtime-resolved name. Runtime kinds
// must be completed with Complete before they can be resolved.
type MultiName struct {
	Kind Kind
	Name string
	NS   *Namespace
	Set  NamespaceSet
}

// IsRuntime reports whether any part must be supplied by the interpreter.
func (m *MultiName) IsRuntime() bool {
	return m.Kind.IsRuntimeName() || m.Kind.IsRuntimeNamespace()
}

// Complete returns a copy of m with its runtime parts filled in. The result
// is a QName when a namespace was supplied and a Multiname otherwise.
func (m *MultiName) Complete(ns *Namespace, name string) *MultiName {
	out := *m
	if m.Kind.IsRuntimeName() {
		out.Name = name
	}
	if m.Kind.IsRuntimeNamespace() {
		out.NS = ns
	}
	switch m.Kind {
	case RTQName, RTQNameL:
		out.Kind = QName
	case RTQNameA, RTQNameLA:
		out.Kind = QNameA
	case MultinameL:
		out.Kind = Multiname
	case MultinameLA:
		out.Kind = MultinameA
	}
	return &out
}

// Binding returns the concrete binding of a qualified multiname.
func (m *MultiName) Binding() (Binding, bool) {
	if !m.Kind.IsQualified() {
		return Binding{}, false
	}
	return Binding{NS: m.NS, Name: m.Name}, true
}

func (m *MultiName) String() string {
	name := m.Name
	if m.Kind.IsRuntimeName() {
		name = "<rt>"
	} else if name == "" {
		name = "*"
	}
	if m.Kind.IsAttribute() {
		name = "@" + name
	}
	switch {
	case m.Kind.IsRuntimeNamespace():
		return "<rt>::" + name
	case m.Kind.HasNamespaceSet():
		uris := make([]string, 0, len(m.Set))
		for _, ns := range m.Set {
			uris = append(uris, ns.URI)
		}
		return fmt.Sprintf("[%s]::%s", strings.Join(uris, ","), name)
	case m.NS == nil || m.NS.URI == "":
		return name
	default:
		return m.NS.URI + "::" + name
	}
}

// Binding is a concrete (namespace, name) pair.
type Binding struct {
	NS   *Namespace
	Name string
}

// Key returns the comparable table key of the binding.
func (b Binding) Key() Key {
	return Key{NS: b.NS.Qualifier(), Name: b.Name}
}

func (b Binding) String() string {
	if b.NS == nil || b.NS.URI == "" {
		return b.Name
	}
	return b.NS.URI + "::" + b.Name
}

// Key identifies a binding by namespace qualifier and local name.
type Key struct {
	NS   string
	Name string
}
