package abc

import (
	"fmt"

	"github.com/deepnoodle-ai/avm/cursor"
	"github.com/deepnoodle-ai/avm/errz"
	"github.com/deepnoodle-ai/avm/names"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
)

// maxCount bounds every table count. A count larger than the remaining
// input can never be satisfied, so it is rejected before allocating.
func (p *parser) maxCount(n int, what string) error {
	if n > p.c.Remaining() {
		return errz.Malformed(errz.ErrTruncatedInput,
			"%s count %d exceeds remaining %d byte(s) at offset %d", what, n, p.c.Remaining(), p.c.Tell())
	}
	return nil
}

type parser struct {
	c      *cursor.Cursor
	b      *Block
	logger zerolog.Logger
	known  map[knownKey]bool
}

// Parse reads an ABC unit. The unit is fully linked on success; on failure
// no part of it is returned.
func Parse(data []byte, opts ...Option) (*Block, error) {
	p := &parser{
		c:      cursor.New(data),
		logger: zerolog.Nop(),
		known:  map[knownKey]bool{},
	}
	WithKnownClasses(builtinClasses...)(p)
	for _, opt := range opts {
		opt(p)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	p.b = &Block{
		ID:       id,
		interner: names.NewInterner(),
		classes:  names.NewTable[*Class](),
		resolver: names.NewResolver(0),
	}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return p.b, nil
}

func (p *parser) parse() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"version", p.readVersion},
		{"int pool", p.readInts},
		{"uint pool", p.readUints},
		{"double pool", p.readDoubles},
		{"string pool", p.readStrings},
		{"namespace pool", p.readNamespaces},
		{"namespace set pool", p.readNamespaceSets},
		{"multiname pool", p.readMultinames},
		{"method table", p.readMethods},
		{"metadata table", p.readMetadata},
		{"instance table", p.readInstances},
		{"class table", p.readClasses},
		{"script table", p.readScripts},
		{"method body table", p.readBodies},
		{"class linking", p.linkClasses},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}
	p.logger.Debug().
		Str("block", p.b.ID.String()).
		Int("strings", len(p.b.Strings)).
		Int("multinames", len(p.b.Multinames)).
		Int("methods", len(p.b.Methods)).
		Int("classes", len(p.b.Classes)).
		Int("scripts", len(p.b.Scripts)).
		Msg("parsed unit")
	return nil
}

func poolFault(pool string, index, size int) error {
	return errz.PoolFault(pool, index, size)
}

func (p *parser) u30() (int, error) {
	return p.c.ReadU30()
}

// count reads a table count and checks it against the remaining input.
func (p *parser) count(what string) (int, error) {
	n, err := p.c.ReadU30()
	if err != nil {
		return 0, err
	}
	if err := p.maxCount(n, what); err != nil {
		return 0, err
	}
	return n, nil
}

// poolCount reads a pool count. A count of n describes entries 1..n-1; zero
// means the pool holds only its sentinel.
func (p *parser) poolCount(what string) (int, error) {
	n, err := p.count(what)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		n = 1
	}
	return n, nil
}

func (p *parser) readVersion() error {
	minor, err := p.c.ReadU16()
	if err != nil {
		return err
	}
	major, err := p.c.ReadU16()
	if err != nil {
		return err
	}
	p.b.Minor, p.b.Major = minor, major
	return nil
}

func (p *parser) readInts() error {
	n, err := p.poolCount("int")
	if err != nil {
		return err
	}
	p.b.Ints = make([]int32, n)
	for i := 1; i < n; i++ {
		if p.b.Ints[i], err = p.c.ReadVarInt32(); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) readUints() error {
	n, err := p.poolCount("uint")
	if err != nil {
		return err
	}
	p.b.Uints = make([]uint32, n)
	for i := 1; i < n; i++ {
		if p.b.Uints[i], err = p.c.ReadVarUint32(); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) readDoubles() error {
	n, err := p.poolCount("double")
	if err != nil {
		return err
	}
	p.b.Doubles = make([]float64, n)
	for i := 1; i < n; i++ {
		if p.b.Doubles[i], err = p.c.ReadD64(); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) readStrings() error {
	n, err := p.poolCount("string")
	if err != nil {
		return err
	}
	p.b.Strings = make([]string, n)
	for i := 1; i < n; i++ {
		size, err := p.u30()
		if err != nil {
			return err
		}
		raw, err := p.c.ReadBytes(size)
		if err != nil {
			return err
		}
		p.b.Strings[i] = string(raw)
	}
	return nil
}

func (p *parser) stringIndex() (string, error) {
	idx, err := p.u30()
	if err != nil {
		return "", err
	}
	return p.b.StringAt(idx)
}

func (p *parser) readNamespaces() error {
	n, err := p.poolCount("namespace")
	if err != nil {
		return err
	}
	p.b.Namespaces = make([]*names.Namespace, n)
	for i := 1; i < n; i++ {
		kind, err := p.c.ReadU8()
		if err != nil {
			return err
		}
		nsKind := names.NamespaceKind(kind)
		if !nsKind.Valid() {
			return errz.Malformed(nil, "namespace %d has unknown kind 0x%02x", i, kind)
		}
		uri, err := p.stringIndex()
		if err != nil {
			return err
		}
		p.b.Namespaces[i] = p.b.interner.Intern(nsKind, uri)
	}
	return nil
}

func (p *parser) readNamespaceSets() error {
	n, err := p.poolCount("namespace set")
	if err != nil {
		return err
	}
	p.b.NamespaceSets = make([]names.NamespaceSet, n)
	for i := 1; i < n; i++ {
		count, err := p.count("namespace set entry")
		if err != nil {
			return err
		}
		set := make(names.NamespaceSet, 0, count)
		for j := 0; j < count; j++ {
			idx, err := p.u30()
			if err != nil {
				return err
			}
			if idx == 0 {
				return errz.Malformed(nil, "namespace set %d references namespace 0", i)
			}
			ns, err := p.b.Namespace(idx)
			if err != nil {
				return err
			}
			set = append(set, ns)
		}
		p.b.NamespaceSets[i] = set
	}
	return nil
}

func (p *parser) readMultinames() error {
	n, err := p.poolCount("multiname")
	if err != nil {
		return err
	}
	p.b.Multinames = make([]*names.MultiName, n)
	p.b.Multinames[0] = &names.MultiName{Kind: names.QName}
	for i := 1; i < n; i++ {
		m, err := p.readMultiname(i)
		if err != nil {
			return err
		}
		p.b.Multinames[i] = m
	}
	return nil
}

func (p *parser) readMultiname(i int) (*names.MultiName, error) {
	kind, err := p.c.ReadU8()
	if err != nil {
		return nil, err
	}
	m := &names.MultiName{Kind: names.Kind(kind)}
	switch m.Kind {
	case names.QName, names.QNameA:
		nsIdx, err := p.u30()
		if err != nil {
			return nil, err
		}
		if m.NS, err = p.b.Namespace(nsIdx); err != nil {
			return nil, err
		}
		if m.Name, err = p.stringIndex(); err != nil {
			return nil, err
		}
	case names.RTQName, names.RTQNameA:
		if m.Name, err = p.stringIndex(); err != nil {
			return nil, err
		}
	case names.RTQNameL, names.RTQNameLA:
	case names.Multiname, names.MultinameA:
		if m.Name, err = p.stringIndex(); err != nil {
			return nil, err
		}
		if m.Set, err = p.nsSet(i); err != nil {
			return nil, err
		}
	case names.MultinameL, names.MultinameLA:
		if m.Set, err = p.nsSet(i); err != nil {
			return nil, err
		}
	default:
		return nil, errz.Malformed(errz.ErrInvalidMultiname, "multiname %d has unknown kind 0x%02x", i, kind)
	}
	return m, nil
}

func (p *parser) nsSet(i int) (names.NamespaceSet, error) {
	idx, err := p.u30()
	if err != nil {
		return nil, err
	}
	if idx == 0 {
		return nil, errz.Malformed(errz.ErrInvalidMultiname, "multiname %d has no namespace set", i)
	}
	if idx >= len(p.b.NamespaceSets) {
		return nil, poolFault("namespace set", idx, len(p.b.NamespaceSets))
	}
	return p.b.NamespaceSets[idx], nil
}

func (p *parser) multinameIndex() (*names.MultiName, error) {
	idx, err := p.u30()
	if err != nil {
		return nil, err
	}
	return p.b.Multiname(idx)
}

// optionalMultiname returns nil for index 0.
func (p *parser) optionalMultiname() (*names.MultiName, error) {
	idx, err := p.u30()
	if err != nil || idx == 0 {
		return nil, err
	}
	return p.b.Multiname(idx)
}

func (p *parser) methodIndex() (*Method, error) {
	idx, err := p.u30()
	if err != nil {
		return nil, err
	}
	return p.b.Method(idx)
}

func (p *parser) readMethods() error {
	n, err := p.count("method")
	if err != nil {
		return err
	}
	p.b.Methods = make([]*Method, n)
	for i := 0; i < n; i++ {
		m, err := p.readMethod(i)
		if err != nil {
			return fmt.Errorf("method %d: %w", i, err)
		}
		p.b.Methods[i] = m
	}
	return nil
}

func (p *parser) readMethod(i int) (*Method, error) {
	m := &Method{Index: i}
	paramCount, err := p.count("parameter")
	if err != nil {
		return nil, err
	}
	if m.ReturnType, err = p.optionalMultiname(); err != nil {
		return nil, err
	}
	m.ParamTypes = make([]*names.MultiName, paramCount)
	for j := range m.ParamTypes {
		if m.ParamTypes[j], err = p.optionalMultiname(); err != nil {
			return nil, err
		}
	}
	if m.Name, err = p.stringIndex(); err != nil {
		return nil, err
	}
	flags, err := p.c.ReadU8()
	if err != nil {
		return nil, err
	}
	m.Flags = MethodFlags(flags)
	if m.Has(HasOptional) {
		optCount, err := p.count("optional parameter")
		if err != nil {
			return nil, err
		}
		if optCount > paramCount {
			return nil, errz.Malformed(nil, "%d optional values for %d parameters", optCount, paramCount)
		}
		m.Optional = make([]Constant, optCount)
		for j := range m.Optional {
			idx, err := p.u30()
			if err != nil {
				return nil, err
			}
			kind, err := p.c.ReadU8()
			if err != nil {
				return nil, err
			}
			if m.Optional[j], err = p.constant(ConstantKind(kind), idx); err != nil {
				return nil, err
			}
		}
	}
	if m.Has(HasParamNames) {
		m.ParamNames = make([]string, paramCount)
		for j := range m.ParamNames {
			if m.ParamNames[j], err = p.stringIndex(); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// constant resolves a (kind, index) constant reference.
func (p *parser) constant(kind ConstantKind, idx int) (Constant, error) {
	c := Constant{Kind: kind}
	var err error
	switch kind {
	case ConstUndefined, ConstNull:
	case ConstTrue:
		c.Value = true
	case ConstFalse:
		c.Value = false
	case ConstInt:
		c.Value, err = p.b.Int(idx)
	case ConstUint:
		c.Value, err = p.b.Uint(idx)
	case ConstDouble:
		c.Value, err = p.b.Double(idx)
	case ConstString:
		c.Value, err = p.b.StringAt(idx)
	case ConstNamespace, ConstPrivateNS, ConstPackageNS, ConstPackageInternal,
		ConstProtectedNS, ConstExplicitNS, ConstStaticProtected:
		c.Value, err = p.b.Namespace(idx)
	default:
		return c, errz.Malformed(nil, "unknown constant kind 0x%02x", uint8(kind))
	}
	return c, err
}

func (p *parser) readMetadata() error {
	n, err := p.count("metadata")
	if err != nil {
		return err
	}
	p.b.Metadata = make([]*Metadata, n)
	for i := 0; i < n; i++ {
		md := &Metadata{}
		if md.Name, err = p.stringIndex(); err != nil {
			return err
		}
		items, err := p.count("metadata item")
		if err != nil {
			return err
		}
		md.Items = make([]MetadataItem, items)
		for j := range md.Items {
			if md.Items[j].Key, err = p.stringIndex(); err != nil {
				return err
			}
		}
		for j := range md.Items {
			if md.Items[j].Value, err = p.stringIndex(); err != nil {
				return err
			}
		}
		p.b.Metadata[i] = md
	}
	p.logger.Debug().Int("entries", n).Msg("skipped metadata")
	return nil
}

func (p *parser) readInstances() error {
	n, err := p.count("instance")
	if err != nil {
		return err
	}
	// Allocate every class up front so class traits can reference classes
	// declared later in the table.
	p.b.Classes = make([]*Class, n)
	for i := range p.b.Classes {
		p.b.Classes[i] = &Class{Index: i}
	}
	for i, cls := range p.b.Classes {
		if err := p.readInstance(cls); err != nil {
			return fmt.Errorf("instance %d: %w", i, err)
		}
	}
	return nil
}

func (p *parser) readInstance(cls *Class) error {
	var err error
	if cls.Name, err = p.multinameIndex(); err != nil {
		return err
	}
	if !cls.Name.Kind.IsQualified() {
		return errz.Malformed(errz.ErrInvalidMultiname, "class name %s is not a qualified name", cls.Name)
	}
	if cls.SuperName, err = p.optionalMultiname(); err != nil {
		return err
	}
	flags, err := p.c.ReadU8()
	if err != nil {
		return err
	}
	cls.Flags = InstanceFlags(flags)
	if cls.Flags&ClassProtectedNS != 0 {
		idx, err := p.u30()
		if err != nil {
			return err
		}
		if cls.ProtectedNS, err = p.b.Namespace(idx); err != nil {
			return err
		}
	}
	ifaces, err := p.count("interface")
	if err != nil {
		return err
	}
	cls.Interfaces = make([]*names.MultiName, ifaces)
	for j := range cls.Interfaces {
		if cls.Interfaces[j], err = p.multinameIndex(); err != nil {
			return err
		}
	}
	if cls.Constructor, err = p.methodIndex(); err != nil {
		return err
	}
	cls.InstanceTraits, err = p.readTraits()
	return err
}

func (p *parser) readClasses() error {
	for i, cls := range p.b.Classes {
		var err error
		if cls.StaticInit, err = p.methodIndex(); err != nil {
			return fmt.Errorf("class %d: %w", i, err)
		}
		if cls.StaticTraits, err = p.readTraits(); err != nil {
			return fmt.Errorf("class %d: %w", i, err)
		}
	}
	return nil
}

func (p *parser) readScripts() error {
	n, err := p.count("script")
	if err != nil {
		return err
	}
	p.b.Scripts = make([]*Script, n)
	for i := range p.b.Scripts {
		s := &Script{Index: i}
		if s.Init, err = p.methodIndex(); err != nil {
			return fmt.Errorf("script %d: %w", i, err)
		}
		if s.Traits, err = p.readTraits(); err != nil {
			return fmt.Errorf("script %d: %w", i, err)
		}
		p.b.Scripts[i] = s
	}
	return nil
}

func (p *parser) readTraits() ([]*Trait, error) {
	n, err := p.count("trait")
	if err != nil {
		return nil, err
	}
	traits := make([]*Trait, n)
	for i := range traits {
		if traits[i], err = p.readTrait(); err != nil {
			return nil, fmt.Errorf("trait %d: %w", i, err)
		}
	}
	return traits, nil
}

func (p *parser) readTrait() (*Trait, error) {
	t := &Trait{}
	var err error
	if t.Name, err = p.multinameIndex(); err != nil {
		return nil, err
	}
	if !t.Name.Kind.IsQualified() {
		return nil, errz.Malformed(errz.ErrInvalidMultiname, "trait name %s is not a qualified name", t.Name)
	}
	kind, err := p.c.ReadU8()
	if err != nil {
		return nil, err
	}
	t.Kind = TraitKind(kind & 0x0F)
	t.Attrs = kind >> 4
	switch t.Kind {
	case TraitSlot, TraitConst:
		if t.SlotID, err = p.u30(); err != nil {
			return nil, err
		}
		if t.TypeName, err = p.optionalMultiname(); err != nil {
			return nil, err
		}
		vindex, err := p.u30()
		if err != nil {
			return nil, err
		}
		if vindex != 0 {
			vkind, err := p.c.ReadU8()
			if err != nil {
				return nil, err
			}
			c, err := p.constant(ConstantKind(vkind), vindex)
			if err != nil {
				return nil, err
			}
			t.Value = &c
		}
	case TraitMethod, TraitGetter, TraitSetter:
		if t.DispID, err = p.u30(); err != nil {
			return nil, err
		}
		if t.Method, err = p.methodIndex(); err != nil {
			return nil, err
		}
	case TraitClass:
		if t.SlotID, err = p.u30(); err != nil {
			return nil, err
		}
		idx, err := p.u30()
		if err != nil {
			return nil, err
		}
		if t.Class, err = p.b.Class(idx); err != nil {
			return nil, err
		}
	case TraitFunction:
		if t.SlotID, err = p.u30(); err != nil {
			return nil, err
		}
		if t.Method, err = p.methodIndex(); err != nil {
			return nil, err
		}
	default:
		return nil, errz.Malformed(errz.ErrUnknownTrait,
			"trait %s has unknown kind %d at offset %d", t.Name, t.Kind, p.c.Tell()-1)
	}
	if t.Attrs&AttrMetadata != 0 {
		n, err := p.count("trait metadata")
		if err != nil {
			return nil, err
		}
		t.Metadata = make([]int, n)
		for i := range t.Metadata {
			if t.Metadata[i], err = p.u30(); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func (p *parser) readBodies() error {
	n, err := p.count("method body")
	if err != nil {
		return err
	}
	p.b.Bodies = make([]*Body, n)
	for i := range p.b.Bodies {
		body, err := p.readBody()
		if err != nil {
			return fmt.Errorf("body %d: %w", i, err)
		}
		p.b.Bodies[i] = body
	}
	return nil
}

func (p *parser) readBody() (*Body, error) {
	body := &Body{}
	var err error
	if body.Method, err = p.methodIndex(); err != nil {
		return nil, err
	}
	if body.Method.Body != nil {
		return nil, errz.Malformed(errz.ErrDuplicateBody, "method %s already has a body", body.Method)
	}
	for _, dst := range []*int{&body.MaxStack, &body.LocalCount, &body.InitScope, &body.MaxScope} {
		if *dst, err = p.u30(); err != nil {
			return nil, err
		}
	}
	codeLen, err := p.u30()
	if err != nil {
		return nil, err
	}
	// Fence the code so a bad length cannot run into the exception and
	// trait tables that follow it.
	prev, err := p.c.SetLogicalEnd(p.c.Tell() + codeLen)
	if err != nil {
		return nil, err
	}
	code, err := p.c.ReadBytes(codeLen)
	p.c.RestoreLogicalEnd(prev)
	if err != nil {
		return nil, err
	}
	body.Code = code
	excCount, err := p.count("exception")
	if err != nil {
		return nil, err
	}
	body.Exceptions = make([]Exception, excCount)
	for j := range body.Exceptions {
		if err := p.readException(&body.Exceptions[j]); err != nil {
			return nil, fmt.Errorf("exception %d: %w", j, err)
		}
	}
	if body.Traits, err = p.readTraits(); err != nil {
		return nil, err
	}
	body.Method.Body = body
	return body, nil
}

func (p *parser) readException(e *Exception) error {
	var err error
	for _, dst := range []*int{&e.From, &e.To, &e.Target} {
		if *dst, err = p.u30(); err != nil {
			return err
		}
	}
	if e.Type, err = p.optionalMultiname(); err != nil {
		return err
	}
	if p.b.Major == noVarNameMajor && p.b.Minor == noVarNameMinor {
		return nil
	}
	e.VarName, err = p.optionalMultiname()
	return err
}
