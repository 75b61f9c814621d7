package object

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/deepnoodle-ai/avm/errz"
)

// maxProtoDepth bounds prototype chain walks so a cyclic chain built by a
// host cannot hang property lookup.
const maxProtoDepth = 1024

type propKey struct {
	ns   string
	name string
}

type propFlags uint8

const (
	flagDontEnum propFlags = 1 << iota
	flagReadOnly
	flagDontDelete
)

// Dynamic is the in-core object used for script-created objects, arrays,
// activations, catch scopes, prototypes and error values.
type Dynamic struct {
	class  string
	proto  Object
	props  map[propKey]Value
	flags  map[propKey]propFlags
	order  []propKey
	slots  map[int]propKey
	sealed bool
	// visiting is set while the object is being converted to a string, so
	// a conversion that reaches the object again stops there.
	visiting bool
}

// NewDynamic returns an empty object of the given class with prototype proto,
// which may be nil.
func NewDynamic(class string, proto Object) *Dynamic {
	if class == "" {
		class = "Object"
	}
	return &Dynamic{
		class: class,
		proto: proto,
		props: map[propKey]Value{},
		flags: map[propKey]propFlags{},
	}
}

func (d *Dynamic) Type() Type { return OBJECT }

func (d *Dynamic) Inspect() string {
	if d.visiting {
		return "[cycle]"
	}
	d.visiting = true
	defer func() { d.visiting = false }()
	if d.class == "Array" {
		values := ArrayValues(d)
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = v.Inspect()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	var parts []string
	for _, k := range d.order {
		if d.flags[k]&flagDontEnum != 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", k.name, d.props[k].Inspect()))
	}
	return fmt.Sprintf("%s{%s}", d.class, strings.Join(parts, ", "))
}

// ToPrimitive returns the default string value of the object.
// An array or error that is already being converted yields "".
func (d *Dynamic) ToPrimitive() Value {
	if d.visiting {
		return String("")
	}
	d.visiting = true
	defer func() { d.visiting = false }()
	switch d.class {
	case "Array":
		values := ArrayValues(d)
		parts := make([]string, len(values))
		for i, v := range values {
			if !IsNullish(v) {
				parts[i] = ToString(v)
			}
		}
		return String(strings.Join(parts, ","))
	case "Object":
		return String("[object Object]")
	}
	if msg, ok := d.GetOwn("", "message"); ok && IsErrorClass(d.class) {
		m := ToString(msg)
		if m == "" {
			return String(d.class)
		}
		return String(d.class + ": " + m)
	}
	return String("[object " + d.class + "]")
}

// Class returns the class name of the object.
func (d *Dynamic) Class() string {
	return d.class
}

// Prototype returns the prototype link, or nil.
func (d *Dynamic) Prototype() Object {
	return d.proto
}

// SetPrototype replaces the prototype link.
func (d *Dynamic) SetPrototype(proto Object) {
	d.proto = proto
}

// Seal prevents new properties from being added.
func (d *Dynamic) Seal() {
	d.sealed = true
}

// GetOwn returns an own property without consulting the prototype chain.
func (d *Dynamic) GetOwn(ns, name string) (Value, bool) {
	v, ok := d.props[propKey{ns, name}]
	return v, ok
}

// HasOwn reports whether the object has the own property.
func (d *Dynamic) HasOwn(ns, name string) bool {
	_, ok := d.props[propKey{ns, name}]
	return ok
}

func (d *Dynamic) GetProperty(ns, name string) (Value, bool) {
	if v, ok := d.props[propKey{ns, name}]; ok {
		return v, true
	}
	proto := d.proto
	for depth := 0; proto != nil && depth < maxProtoDepth; depth++ {
		if pd, ok := proto.(*Dynamic); ok {
			if v, ok := pd.props[propKey{ns, name}]; ok {
				return v, true
			}
			proto = pd.proto
			continue
		}
		return proto.GetProperty(ns, name)
	}
	return nil, false
}

func (d *Dynamic) SetProperty(ns, name string, value Value) error {
	k := propKey{ns, name}
	if _, exists := d.props[k]; !exists {
		if d.sealed {
			return errz.Newf(errz.ErrType, nil, "cannot create property %s on sealed %s", name, d.class)
		}
		d.order = append(d.order, k)
	} else if d.flags[k]&flagReadOnly != 0 {
		return errz.Newf(errz.ErrType, nil, "cannot assign to read-only property %s of %s", name, d.class)
	}
	d.props[k] = value
	if d.class == "Array" && ns == "" {
		d.updateLength(name)
	}
	return nil
}

func (d *Dynamic) updateLength(name string) {
	idx, err := strconv.ParseUint(name, 10, 32)
	if err != nil {
		return
	}
	if float64(idx) >= ToNumber(d.props[propKey{"", "length"}]) {
		d.props[propKey{"", "length"}] = NumberValue(float64(idx + 1))
	}
}

func (d *Dynamic) DeleteProperty(ns, name string) bool {
	k := propKey{ns, name}
	if _, ok := d.props[k]; !ok {
		return true
	}
	if d.flags[k]&flagDontDelete != 0 {
		return false
	}
	delete(d.props, k)
	delete(d.flags, k)
	for i, ok := range d.order {
		if ok == k {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return true
}

// InitProperty assigns the property like SetProperty but also writes
// read-only properties, which is how constructors initialize constants.
func (d *Dynamic) InitProperty(ns, name string, value Value) error {
	k := propKey{ns, name}
	if _, exists := d.props[k]; !exists {
		return d.SetProperty(ns, name, value)
	}
	d.props[k] = value
	return nil
}

// DefineHidden sets a non-enumerable, non-deletable property.
func (d *Dynamic) DefineHidden(ns, name string, value Value) {
	k := propKey{ns, name}
	if _, exists := d.props[k]; !exists {
		d.order = append(d.order, k)
	}
	d.props[k] = value
	d.flags[k] |= flagDontEnum | flagDontDelete
}

// DefineSlot binds a trait slot to a property. A slot id of zero assigns
// the next free id. Slots are not enumerable and cannot be deleted; const
// slots are also read-only.
func (d *Dynamic) DefineSlot(id int, ns, name string, value Value, readOnly bool) int {
	if d.slots == nil {
		d.slots = map[int]propKey{}
	}
	if id <= 0 {
		id = len(d.slots) + 1
		for _, taken := d.slots[id]; taken; _, taken = d.slots[id] {
			id++
		}
	}
	k := propKey{ns, name}
	d.DefineHidden(ns, name, value)
	if readOnly {
		d.flags[k] |= flagReadOnly
	}
	d.slots[id] = k
	return id
}

func (d *Dynamic) Slot(id int) (Value, error) {
	k, ok := d.slots[id]
	if !ok {
		return nil, errz.Newf(errz.ErrType, nil, "%s has no slot %d", d.class, id)
	}
	return d.props[k], nil
}

func (d *Dynamic) SetSlot(id int, value Value) error {
	k, ok := d.slots[id]
	if !ok {
		return errz.Newf(errz.ErrType, nil, "%s has no slot %d", d.class, id)
	}
	d.props[k] = value
	return nil
}

// SlotName returns the property name bound to a slot.
func (d *Dynamic) SlotName(id int) (string, bool) {
	k, ok := d.slots[id]
	return k.name, ok
}

// Keys returns the enumerable public property names in insertion order.
func (d *Dynamic) Keys() []string {
	keys := make([]string, 0, len(d.order))
	for _, k := range d.order {
		if k.ns != "" || d.flags[k]&flagDontEnum != 0 {
			continue
		}
		keys = append(keys, k.name)
	}
	return keys
}

// Trace reports every object referenced by the object's properties and
// prototype link.
func (d *Dynamic) Trace(m Marker) {
	if d.proto != nil {
		m.MarkReachable(d.proto)
	}
	for _, k := range d.order {
		switch v := d.props[k].(type) {
		case *Accessor:
			if v.Getter != nil {
				Mark(m, v.Getter)
			}
			if v.Setter != nil {
				Mark(m, v.Setter)
			}
		default:
			Mark(m, v)
		}
	}
}

// NewArray returns an array object holding values.
func NewArray(values []Value) *Dynamic {
	arr := NewDynamic("Array", nil)
	arr.DefineHidden("", "length", Int(0))
	arr.flags[propKey{"", "length"}] &^= flagDontDelete
	for i, v := range values {
		arr.SetProperty("", strconv.Itoa(i), v)
	}
	return arr
}

// ArrayValues returns the indexed elements of an array-like object.
func ArrayValues(obj Object) []Value {
	lv, ok := obj.GetProperty("", "length")
	if !ok {
		return nil
	}
	n := int(ToUint32(lv))
	values := make([]Value, n)
	for i := 0; i < n; i++ {
		v, ok := obj.GetProperty("", strconv.Itoa(i))
		if !ok {
			v = Undefined
		}
		values[i] = v
	}
	return values
}
