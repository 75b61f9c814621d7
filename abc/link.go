package abc

import (
	"github.com/deepnoodle-ai/avm/errz"
	"github.com/deepnoodle-ai/avm/names"
)

// linkClasses registers every class name, then resolves superclasses. A
// superclass the unit does not define is replaced by a synthesized
// placeholder so loading can continue; extending a final class, an
// interface or the class itself is fatal, as is an inheritance cycle.
func (p *parser) linkClasses() error {
	for _, cls := range p.b.Classes {
		if !p.b.classes.Define(cls.Binding(), cls) {
			return errz.Malformed(errz.ErrDuplicateClass, "class %s is defined twice", cls)
		}
	}
	placeholders := names.NewTable[*Class]()
	for _, cls := range p.b.Classes {
		if cls.SuperName == nil {
			continue
		}
		if b, ok := cls.SuperName.Binding(); ok && b.Key() == cls.Binding().Key() {
			return errz.Malformed(errz.ErrBadSuperclass, "class %s extends itself", cls)
		}
		if cls.SuperName.IsRuntime() {
			return errz.Malformed(errz.ErrBadSuperclass, "class %s has a runtime superclass name", cls)
		}
		super, ok := p.b.FindClass(cls.SuperName)
		if !ok {
			super = p.placeholder(placeholders, cls)
		}
		if super == cls {
			return errz.Malformed(errz.ErrBadSuperclass, "class %s extends itself", cls)
		}
		if super.IsFinal() {
			return errz.Malformed(errz.ErrBadSuperclass, "class %s extends final class %s", cls, super)
		}
		if super.IsInterface() {
			return errz.Malformed(errz.ErrBadSuperclass, "class %s extends interface %s", cls, super)
		}
		cls.Super = super
	}
	for _, cls := range p.b.Classes {
		steps := 0
		for k := cls.Super; k != nil; k = k.Super {
			if k == cls || steps > len(p.b.Classes) {
				return errz.Malformed(errz.ErrBadSuperclass, "class %s has an inheritance cycle", cls)
			}
			steps++
		}
	}
	return nil
}

// placeholder returns the synthesized class standing in for cls's missing
// superclass, sharing one placeholder per superclass name.
func (p *parser) placeholder(table *names.Table[*Class], cls *Class) *Class {
	name := cls.SuperName
	if cls.SuperName.Kind.HasNamespaceSet() && len(cls.SuperName.Set) > 0 {
		name = &names.MultiName{Kind: names.QName, NS: cls.SuperName.Set[0], Name: cls.SuperName.Name}
	}
	b := names.Binding{NS: name.NS, Name: name.Name}
	if existing, ok := table.Get(b); ok {
		return existing
	}
	ph := &Class{Index: -1, Name: name, Placeholder: true}
	table.Define(b, ph)
	uri := ""
	if name.NS != nil {
		uri = name.NS.URI
	}
	if p.known[knownKey{uri, name.Name}] {
		p.logger.Debug().Str("class", cls.QualifiedName()).Str("super", ph.QualifiedName()).
			Msg("linked host superclass")
	} else {
		p.logger.Warn().Str("class", cls.QualifiedName()).Str("super", ph.QualifiedName()).
			Msg("superclass not defined by unit; using placeholder")
	}
	return ph
}
