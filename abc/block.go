// Package abc parses ABC units: the constant pools, method signatures,
// class and script descriptors and method bodies consumed by the modern
// interpreter.
//
// A Block is created once by Parse and is read-only afterwards. Parse either
// returns a fully linked Block or an error; a failed parse never exposes a
// partially linked unit.
package abc

import (
	"fmt"

	"github.com/deepnoodle-ai/avm/names"
	"github.com/gofrs/uuid"
)

// Version numbers for which exception entries carry no variable name.
const (
	noVarNameMajor = 46
	noVarNameMinor = 15
)

// Block is a parsed unit.
type Block struct {
	ID    uuid.UUID
	Minor uint16
	Major uint16

	// Constant pools. Index 0 of every pool is a sentinel.
	Ints          []int32
	Uints         []uint32
	Doubles       []float64
	Strings       []string
	Namespaces    []*names.Namespace
	NamespaceSets []names.NamespaceSet
	Multinames    []*names.MultiName

	Methods  []*Method
	Metadata []*Metadata
	Classes  []*Class
	Scripts  []*Script
	Bodies   []*Body

	interner *names.Interner
	classes  *names.Table[*Class]
	resolver *names.Resolver
}

// Interner returns the namespace interner used while parsing.
func (b *Block) Interner() *names.Interner {
	return b.interner
}

// PublicNamespace returns the public namespace.
func (b *Block) PublicNamespace() *names.Namespace {
	return b.interner.Public()
}

// FindClass looks up a class defined by the block.
func (b *Block) FindClass(m *names.MultiName) (*Class, bool) {
	c, _, ok, err := b.classes.Lookup(b.resolver, m)
	if err != nil {
		return nil, false
	}
	return c, ok
}

// ClassByName looks up a class by namespace URI and local name.
func (b *Block) ClassByName(uri, name string) (*Class, bool) {
	ns, ok := b.interner.Lookup(uri)
	if !ok {
		return nil, false
	}
	return b.classes.Get(names.Binding{NS: ns, Name: name})
}

// EntryScript returns the script that runs last, which is the unit's entry
// point, or nil if the unit has no scripts.
func (b *Block) EntryScript() *Script {
	if len(b.Scripts) == 0 {
		return nil
	}
	return b.Scripts[len(b.Scripts)-1]
}

// StringAt returns the string at index, or a pool fault.
func (b *Block) StringAt(index int) (string, error) {
	if index < 0 || index >= len(b.Strings) {
		return "", poolFault("string", index, len(b.Strings))
	}
	return b.Strings[index], nil
}

// Multiname returns the multiname at index, or a pool fault. Index 0 is
// the any-name.
func (b *Block) Multiname(index int) (*names.MultiName, error) {
	if index < 0 || index >= len(b.Multinames) {
		return nil, poolFault("multiname", index, len(b.Multinames))
	}
	return b.Multinames[index], nil
}

// Namespace returns the namespace at index, or a pool fault.
func (b *Block) Namespace(index int) (*names.Namespace, error) {
	if index < 0 || index >= len(b.Namespaces) {
		return nil, poolFault("namespace", index, len(b.Namespaces))
	}
	return b.Namespaces[index], nil
}

// Int returns the int pool entry at index, or a pool fault.
func (b *Block) Int(index int) (int32, error) {
	if index < 0 || index >= len(b.Ints) {
		return 0, poolFault("int", index, len(b.Ints))
	}
	return b.Ints[index], nil
}

// Uint returns the uint pool entry at index, or a pool fault.
func (b *Block) Uint(index int) (uint32, error) {
	if index < 0 || index >= len(b.Uints) {
		return 0, poolFault("uint", index, len(b.Uints))
	}
	return b.Uints[index], nil
}

// Double returns the double pool entry at index, or a pool fault.
func (b *Block) Double(index int) (float64, error) {
	if index < 0 || index >= len(b.Doubles) {
		return 0, poolFault("double", index, len(b.Doubles))
	}
	return b.Doubles[index], nil
}

// Method returns the method at index, or a pool fault.
func (b *Block) Method(index int) (*Method, error) {
	if index < 0 || index >= len(b.Methods) {
		return nil, poolFault("method", index, len(b.Methods))
	}
	return b.Methods[index], nil
}

// Class returns the class at index, or a pool fault.
func (b *Block) Class(index int) (*Class, error) {
	if index < 0 || index >= len(b.Classes) {
		return nil, poolFault("class", index, len(b.Classes))
	}
	return b.Classes[index], nil
}

// MethodFlags are the flag bits of a method signature.
type MethodFlags uint8

const (
	NeedArguments  MethodFlags = 0x01
	NeedActivation MethodFlags = 0x02
	NeedRest       MethodFlags = 0x04
	HasOptional    MethodFlags = 0x08
	Native         MethodFlags = 0x20
	SetDxns        MethodFlags = 0x40
	HasParamNames  MethodFlags = 0x80
)

// Method is a method signature and, unless native, its body.
type Method struct {
	Index      int
	Name       string
	ParamTypes []*names.MultiName
	ReturnType *names.MultiName
	Flags      MethodFlags
	Optional   []Constant
	ParamNames []string
	Body       *Body
}

// ParamCount returns the declared parameter count.
func (m *Method) ParamCount() int {
	return len(m.ParamTypes)
}

// MinArgs returns the number of arguments a caller must supply.
func (m *Method) MinArgs() int {
	return len(m.ParamTypes) - len(m.Optional)
}

// MaxArgs returns the number of arguments the method accepts, or -1 when
// extra arguments are collected into an arguments or rest array.
func (m *Method) MaxArgs() int {
	if m.Flags&(NeedArguments|NeedRest) != 0 {
		return -1
	}
	return len(m.ParamTypes)
}

// Has reports whether every bit of f is set.
func (m *Method) Has(f MethodFlags) bool {
	return m.Flags&f == f
}

// IsNative reports whether the method has no body.
func (m *Method) IsNative() bool {
	return m.Body == nil
}

func (m *Method) String() string {
	if m.Name != "" {
		return m.Name
	}
	return fmt.Sprintf("method#%d", m.Index)
}

// ConstantKind tags a constant reference in optional parameter defaults and
// slot initializers.
type ConstantKind uint8

const (
	ConstUndefined       ConstantKind = 0x00
	ConstString          ConstantKind = 0x01
	ConstInt             ConstantKind = 0x03
	ConstUint            ConstantKind = 0x04
	ConstPrivateNS       ConstantKind = 0x05
	ConstDouble          ConstantKind = 0x06
	ConstNamespace       ConstantKind = 0x08
	ConstFalse           ConstantKind = 0x0A
	ConstTrue            ConstantKind = 0x0B
	ConstNull            ConstantKind = 0x0C
	ConstPackageNS       ConstantKind = 0x16
	ConstPackageInternal ConstantKind = 0x17
	ConstProtectedNS     ConstantKind = 0x18
	ConstExplicitNS      ConstantKind = 0x19
	ConstStaticProtected ConstantKind = 0x1A
)

// Constant is a resolved constant. Value holds an int32, uint32, float64,
// string, bool or *names.Namespace; it is nil for null and undefined.
type Constant struct {
	Kind  ConstantKind
	Value any
}

// IsNamespace reports whether the constant is a namespace.
func (c Constant) IsNamespace() bool {
	_, ok := c.Value.(*names.Namespace)
	return ok
}

func (c Constant) String() string {
	switch c.Kind {
	case ConstUndefined:
		return "undefined"
	case ConstNull:
		return "null"
	case ConstString:
		return fmt.Sprintf("%q", c.Value)
	}
	return fmt.Sprint(c.Value)
}

// Exception is one entry of a method body's exception table.
type Exception struct {
	From    int
	To      int
	Target  int
	Type    *names.MultiName // nil catches everything
	VarName *names.MultiName // nil when absent
}

// Body is a method body.
type Body struct {
	Method     *Method
	MaxStack   int
	LocalCount int
	InitScope  int
	MaxScope   int
	Code       []byte
	Exceptions []Exception
	Traits     []*Trait
}

// TraitKind is the kind of a trait.
type TraitKind uint8

const (
	TraitSlot     TraitKind = 0
	TraitMethod   TraitKind = 1
	TraitGetter   TraitKind = 2
	TraitSetter   TraitKind = 3
	TraitClass    TraitKind = 4
	TraitFunction TraitKind = 5
	TraitConst    TraitKind = 6
)

func (k TraitKind) String() string {
	switch k {
	case TraitSlot:
		return "slot"
	case TraitMethod:
		return "method"
	case TraitGetter:
		return "getter"
	case TraitSetter:
		return "setter"
	case TraitClass:
		return "class"
	case TraitFunction:
		return "function"
	case TraitConst:
		return "const"
	default:
		return fmt.Sprintf("trait(%d)", uint8(k))
	}
}

// Trait attribute bits, stored in the high nibble of the kind byte.
const (
	AttrFinal    = 0x01
	AttrOverride = 0x02
	AttrMetadata = 0x04
)

// Trait is a declared member of a class, instance, script or activation.
type Trait struct {
	Name   *names.MultiName
	Kind   TraitKind
	Attrs  uint8
	SlotID int

	// Slot and const traits
	TypeName *names.MultiName
	Value    *Constant // nil when the slot has no initializer

	// Method, getter and setter traits
	DispID int

	Method   *Method // method, getter, setter and function traits
	Class    *Class  // class traits
	Metadata []int
}

// Binding returns the trait's qualified binding.
func (t *Trait) Binding() names.Binding {
	return names.Binding{NS: t.Name.NS, Name: t.Name.Name}
}

// InstanceFlags are the flag bits of an instance descriptor.
type InstanceFlags uint8

const (
	ClassSealed      InstanceFlags = 0x01
	ClassFinal       InstanceFlags = 0x02
	ClassInterface   InstanceFlags = 0x04
	ClassProtectedNS InstanceFlags = 0x08
)

// Class pairs an instance descriptor with its static counterpart.
type Class struct {
	Index       int
	Name        *names.MultiName
	SuperName   *names.MultiName // nil for the root class
	Super       *Class           // nil when extending Object
	Flags       InstanceFlags
	ProtectedNS *names.Namespace
	Interfaces  []*names.MultiName

	Constructor    *Method // instance initializer
	StaticInit     *Method // class initializer
	InstanceTraits []*Trait
	StaticTraits   []*Trait

	// Placeholder is set on classes synthesized for superclasses the unit
	// references but does not define.
	Placeholder bool
}

// IsSealed reports whether instances reject dynamic properties.
func (c *Class) IsSealed() bool { return c.Flags&ClassSealed != 0 }

// IsFinal reports whether the class cannot be extended.
func (c *Class) IsFinal() bool { return c.Flags&ClassFinal != 0 }

// IsInterface reports whether the class is an interface.
func (c *Class) IsInterface() bool { return c.Flags&ClassInterface != 0 }

// IsDynamic reports whether instances accept dynamic properties.
func (c *Class) IsDynamic() bool { return !c.IsSealed() }

// Binding returns the class's qualified binding.
func (c *Class) Binding() names.Binding {
	return names.Binding{NS: c.Name.NS, Name: c.Name.Name}
}

// QualifiedName returns the dotted name of the class.
func (c *Class) QualifiedName() string {
	if c.Name.NS == nil || c.Name.NS.URI == "" {
		return c.Name.Name
	}
	return c.Name.NS.URI + "." + c.Name.Name
}

// IsSubclassOf reports whether c is other or inherits from it.
func (c *Class) IsSubclassOf(other *Class) bool {
	for k := c; k != nil; k = k.Super {
		if k == other {
			return true
		}
	}
	return false
}

func (c *Class) String() string {
	return c.QualifiedName()
}

// Script is a script descriptor: an initializer and the traits it defines
// on the global object.
type Script struct {
	Index  int
	Init   *Method
	Traits []*Trait
}

// Metadata is a metadata entry. The interpreters ignore it.
type Metadata struct {
	Name  string
	Items []MetadataItem
}

// MetadataItem is one key/value pair of a metadata entry.
type MetadataItem struct {
	Key   string
	Value string
}
