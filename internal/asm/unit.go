// Package asm assembles ABC units, method bodies and legacy action
// streams. It is used by tests and by the command line tool's demo units.
package asm

import (
	"github.com/deepnoodle-ai/avm/cursor"
	"github.com/deepnoodle-ai/avm/names"
)

// Unit accumulates the tables of an ABC unit. Pool entries are allocated
// on demand and their indices returned, so callers never count by hand.
type Unit struct {
	Minor uint16
	Major uint16

	ints       []int32
	uints      []uint32
	doubles    []float64
	strings    []string
	namespaces []nsEntry
	nssets     [][]int
	multinames [][]byte
	methods    []MethodDef
	metadata   []MetadataDef
	classes    []ClassDef
	scripts    []ScriptDef
	bodies     []BodyDef

	stringIndex map[string]int
}

type nsEntry struct {
	kind names.NamespaceKind
	uri  int
}

// NewUnit returns an empty unit with version 46.16.
func NewUnit() *Unit {
	return &Unit{Minor: 16, Major: 46, stringIndex: map[string]int{}}
}

// Int adds an int pool entry.
func (u *Unit) Int(v int32) int {
	u.ints = append(u.ints, v)
	return len(u.ints)
}

// Uint adds a uint pool entry.
func (u *Unit) Uint(v uint32) int {
	u.uints = append(u.uints, v)
	return len(u.uints)
}

// Double adds a double pool entry.
func (u *Unit) Double(v float64) int {
	u.doubles = append(u.doubles, v)
	return len(u.doubles)
}

// String returns the pool index of s, adding it if needed.
func (u *Unit) String(s string) int {
	if idx, ok := u.stringIndex[s]; ok {
		return idx
	}
	u.strings = append(u.strings, s)
	u.stringIndex[s] = len(u.strings)
	return len(u.strings)
}

// Namespace adds a namespace pool entry.
func (u *Unit) Namespace(kind names.NamespaceKind, uri string) int {
	u.namespaces = append(u.namespaces, nsEntry{kind: kind, uri: u.String(uri)})
	return len(u.namespaces)
}

// Package adds a package namespace.
func (u *Unit) Package(uri string) int {
	return u.Namespace(names.KindPackage, uri)
}

// NamespaceSet adds a namespace set of the given namespace indices.
func (u *Unit) NamespaceSet(ns ...int) int {
	u.nssets = append(u.nssets, ns)
	return len(u.nssets)
}

func (u *Unit) multiname(raw *cursor.Writer) int {
	u.multinames = append(u.multinames, raw.Bytes())
	return len(u.multinames)
}

// QName adds a qualified name in namespace ns.
func (u *Unit) QName(ns int, name string) int {
	return u.multiname(cursor.NewWriter().U8(uint8(names.QName)).U30(ns).U30(u.String(name)))
}

// Public adds a qualified name in the public (empty package) namespace.
func (u *Unit) Public(name string) int {
	return u.QName(u.Package(""), name)
}

// RTQName adds a name whose namespace is supplied at run time.
func (u *Unit) RTQName(name string) int {
	return u.multiname(cursor.NewWriter().U8(uint8(names.RTQName)).U30(u.String(name)))
}

// RTQNameL adds a name whose namespace and local name are supplied at run
// time.
func (u *Unit) RTQNameL() int {
	return u.multiname(cursor.NewWriter().U8(uint8(names.RTQNameL)))
}

// Multiname adds a name searched in every namespace of a set.
func (u *Unit) Multiname(name string, nsset int) int {
	return u.multiname(cursor.NewWriter().U8(uint8(names.Multiname)).U30(u.String(name)).U30(nsset))
}

// MultinameL adds a set-qualified name whose local name is supplied at run
// time.
func (u *Unit) MultinameL(nsset int) int {
	return u.multiname(cursor.NewWriter().U8(uint8(names.MultinameL)).U30(nsset))
}

// RawMultiname adds a multiname from pre-encoded bytes.
func (u *Unit) RawMultiname(b []byte) int {
	u.multinames = append(u.multinames, b)
	return len(u.multinames)
}

// OptionalDef is a default value reference of an optional parameter.
type OptionalDef struct {
	Index int
	Kind  uint8
}

// MethodDef describes a method signature. Params and Return are multiname
// indices; zero means any type.
type MethodDef struct {
	Name       string
	Params     []int
	Return     int
	Flags      uint8
	Optional   []OptionalDef
	ParamNames []string
}

// Method adds a method signature.
func (u *Unit) Method(m MethodDef) int {
	if m.Name != "" {
		u.String(m.Name)
	}
	for _, name := range m.ParamNames {
		u.String(name)
	}
	u.methods = append(u.methods, m)
	return len(u.methods) - 1
}

// MetadataDef is a metadata entry.
type MetadataDef struct {
	Name   string
	Keys   []string
	Values []string
}

// Metadata adds a metadata entry.
func (u *Unit) Metadata(md MetadataDef) int {
	u.String(md.Name)
	for _, s := range md.Keys {
		u.String(s)
	}
	for _, s := range md.Values {
		u.String(s)
	}
	u.metadata = append(u.metadata, md)
	return len(u.metadata) - 1
}

// TraitDef describes a trait. Kind carries the attribute nibble.
type TraitDef struct {
	Name     int
	Kind     uint8
	SlotID   int
	Type     int
	VIndex   int
	VKind    uint8
	DispID   int
	Method   int
	Class    int
	Metadata []int
}

// SlotTrait returns a slot trait with an optional initializer.
func SlotTrait(name, slotID, vindex int, vkind uint8) TraitDef {
	return TraitDef{Name: name, Kind: 0, SlotID: slotID, VIndex: vindex, VKind: vkind}
}

// ConstTrait returns a const trait.
func ConstTrait(name, slotID, vindex int, vkind uint8) TraitDef {
	return TraitDef{Name: name, Kind: 6, SlotID: slotID, VIndex: vindex, VKind: vkind}
}

// MethodTrait returns a method trait.
func MethodTrait(name, method int) TraitDef {
	return TraitDef{Name: name, Kind: 1, Method: method}
}

// GetterTrait returns a getter trait.
func GetterTrait(name, method int) TraitDef {
	return TraitDef{Name: name, Kind: 2, Method: method}
}

// SetterTrait returns a setter trait.
func SetterTrait(name, method int) TraitDef {
	return TraitDef{Name: name, Kind: 3, Method: method}
}

// ClassTrait returns a class trait.
func ClassTrait(name, slotID, class int) TraitDef {
	return TraitDef{Name: name, Kind: 4, SlotID: slotID, Class: class}
}

// FunctionTrait returns a function trait.
func FunctionTrait(name, slotID, method int) TraitDef {
	return TraitDef{Name: name, Kind: 5, SlotID: slotID, Method: method}
}

// ClassDef describes an instance descriptor and its class descriptor.
type ClassDef struct {
	Name         int
	Super        int
	Flags        uint8
	ProtectedNS  int
	Interfaces   []int
	Init         int
	Traits       []TraitDef
	StaticInit   int
	StaticTraits []TraitDef
}

// Class adds a class.
func (u *Unit) Class(c ClassDef) int {
	u.classes = append(u.classes, c)
	return len(u.classes) - 1
}

// ScriptDef describes a script.
type ScriptDef struct {
	Init   int
	Traits []TraitDef
}

// Script adds a script. The last script added is the entry point.
func (u *Unit) Script(init int, traits ...TraitDef) int {
	u.scripts = append(u.scripts, ScriptDef{Init: init, Traits: traits})
	return len(u.scripts) - 1
}

// ExceptionDef is an exception table entry. Type and VarName are multiname
// indices; zero catches everything and binds no name.
type ExceptionDef struct {
	From    int
	To      int
	Target  int
	Type    int
	VarName int
}

// BodyDef describes a method body.
type BodyDef struct {
	Method     int
	MaxStack   int
	LocalCount int
	InitScope  int
	MaxScope   int
	Code       []byte
	Exceptions []ExceptionDef
	Traits     []TraitDef
}

// Body adds a method body.
func (u *Unit) Body(b BodyDef) int {
	u.bodies = append(u.bodies, b)
	return len(u.bodies) - 1
}

// Function adds a method together with a body that runs code. MaxStack and
// MaxScope are set generously.
func (u *Unit) Function(m MethodDef, localCount int, code []byte, exceptions ...ExceptionDef) int {
	idx := u.Method(m)
	u.Body(BodyDef{
		Method:     idx,
		MaxStack:   16,
		LocalCount: localCount,
		InitScope:  0,
		MaxScope:   8,
		Code:       code,
		Exceptions: exceptions,
	})
	return idx
}

// Bytes encodes the unit.
func (u *Unit) Bytes() []byte {
	w := cursor.NewWriter()
	w.U16(u.Minor).U16(u.Major)

	w.U30(poolCount(len(u.ints)))
	for _, v := range u.ints {
		w.VarInt32(v)
	}
	w.U30(poolCount(len(u.uints)))
	for _, v := range u.uints {
		w.Raw(cursor.AppendVarUint32(nil, v))
	}
	w.U30(poolCount(len(u.doubles)))
	for _, v := range u.doubles {
		w.D64(v)
	}
	// Namespaces, multinames and methods may have added strings, so the
	// string pool is encoded from its final state.
	w.U30(poolCount(len(u.strings)))
	for _, s := range u.strings {
		w.String(s)
	}
	w.U30(poolCount(len(u.namespaces)))
	for _, ns := range u.namespaces {
		w.U8(uint8(ns.kind)).U30(ns.uri)
	}
	w.U30(poolCount(len(u.nssets)))
	for _, set := range u.nssets {
		w.U30(len(set))
		for _, ns := range set {
			w.U30(ns)
		}
	}
	w.U30(poolCount(len(u.multinames)))
	for _, raw := range u.multinames {
		w.Raw(raw)
	}

	w.U30(len(u.methods))
	for _, m := range u.methods {
		w.U30(len(m.Params)).U30(m.Return)
		for _, p := range m.Params {
			w.U30(p)
		}
		name := 0
		if m.Name != "" {
			name = u.String(m.Name)
		}
		flags := m.Flags
		if len(m.Optional) > 0 {
			flags |= 0x08
		}
		if len(m.ParamNames) > 0 {
			flags |= 0x80
		}
		w.U30(name).U8(flags)
		if len(m.Optional) > 0 {
			w.U30(len(m.Optional))
			for _, o := range m.Optional {
				w.U30(o.Index).U8(o.Kind)
			}
		}
		for _, pn := range m.ParamNames {
			w.U30(u.String(pn))
		}
	}

	w.U30(len(u.metadata))
	for _, md := range u.metadata {
		w.U30(u.String(md.Name)).U30(len(md.Keys))
		for _, k := range md.Keys {
			w.U30(u.String(k))
		}
		for _, v := range md.Values {
			w.U30(u.String(v))
		}
	}

	w.U30(len(u.classes))
	for _, c := range u.classes {
		w.U30(c.Name).U30(c.Super).U8(c.Flags)
		if c.Flags&0x08 != 0 {
			w.U30(c.ProtectedNS)
		}
		w.U30(len(c.Interfaces))
		for _, i := range c.Interfaces {
			w.U30(i)
		}
		w.U30(c.Init)
		writeTraits(w, c.Traits)
	}
	for _, c := range u.classes {
		w.U30(c.StaticInit)
		writeTraits(w, c.StaticTraits)
	}

	w.U30(len(u.scripts))
	for _, s := range u.scripts {
		w.U30(s.Init)
		writeTraits(w, s.Traits)
	}

	w.U30(len(u.bodies))
	for _, b := range u.bodies {
		w.U30(b.Method).U30(b.MaxStack).U30(b.LocalCount).U30(b.InitScope).U30(b.MaxScope)
		w.U30(len(b.Code)).Raw(b.Code)
		w.U30(len(b.Exceptions))
		for _, e := range b.Exceptions {
			w.U30(e.From).U30(e.To).U30(e.Target).U30(e.Type)
			if !(u.Major == 46 && u.Minor == 15) {
				w.U30(e.VarName)
			}
		}
		writeTraits(w, b.Traits)
	}
	return w.Bytes()
}

func poolCount(n int) int {
	if n == 0 {
		return 0
	}
	return n + 1
}

func writeTraits(w *cursor.Writer, traits []TraitDef) {
	w.U30(len(traits))
	for _, t := range traits {
		w.U30(t.Name).U8(t.Kind)
		switch t.Kind & 0x0F {
		case 0, 6:
			w.U30(t.SlotID).U30(t.Type).U30(t.VIndex)
			if t.VIndex != 0 {
				w.U8(t.VKind)
			}
		case 1, 2, 3:
			w.U30(t.DispID).U30(t.Method)
		case 4:
			w.U30(t.SlotID).U30(t.Class)
		case 5:
			w.U30(t.SlotID).U30(t.Method)
		}
		if t.Kind>>4&0x04 != 0 {
			w.U30(len(t.Metadata))
			for _, m := range t.Metadata {
				w.U30(m)
			}
		}
	}
}
