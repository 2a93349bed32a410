package vm

import "fmt"

// ClassMeta is the VM-side counterpart of an ast.ClassDef: the runtime
// shape information codegen.Program deliberately does not retain (it
// only tracks class ids, per its own doc comment). Built once per
// program by Link, from the same resolved tree codegen lowered.
type ClassMeta struct {
	ID            int
	Name          string
	Base          *ClassMeta
	Methods       map[string]int // method name -> FuncID, includes inherited
	VarInitFuncID int            // -1 if the class has no non-trivial attr initialisers
}

// FuncMeta is the VM-side counterpart of an ast.FuncDef's calling
// convention: which param name lives in which slot, needed to bind
// keyword arguments by name at call time. VarInitAttrNames is set only
// for a class's fake var-init function (ast has no FuncDef node for
// these, so Link fills this in from ast.ClassDef.VarAttrs directly):
// SET_BY_ATTRIBUTE_IDX's idx operand is the attribute's position
// within that one class's own VarAttrs list (resolver.go's
// resolveClassDef assigns it that way, with no inherited-attribute
// offset), so resolving idx to a name requires knowing which class's
// init function the current frame is running.
type FuncMeta struct {
	FuncID           int
	ParamSlots       map[string]int
	ParamCount       int
	HasSelf          bool
	VarInitAttrNames []string
}

// Class is a first-class runtime value produced by GET_CLASS.
type Class struct{ Meta *ClassMeta }

// Instance is a constructed object: NEW_INSTANCE/NEW_INSTANCE_BY_REF
// allocate one with its attrs unset, then the class's var-init
// function (if any) and the constructor populate it. Attrs is keyed by
// attribute name rather than a per-class index: a subclass and its
// base both number their own var attrs from zero (resolver.go assigns
// no inherited-attribute offset), so a single shared index space would
// let a subclass attribute collide with a base one of the same
// position but a different name. Name keys sidestep that entirely.
type Instance struct {
	Class *ClassMeta
	Attrs map[string]any
}

func NewInstance(class *ClassMeta) *Instance {
	return &Instance{Class: class, Attrs: make(map[string]any)}
}

// LookupMethod walks the class chain outward, matching the usual
// single-inheritance method-lookup rule.
func (inst *Instance) LookupMethod(name string) (int, bool) {
	for c := inst.Class; c != nil; c = c.Base {
		if id, ok := c.Methods[name]; ok {
			return id, true
		}
	}
	return 0, false
}

// Function is a free (unbound) function value, produced by GET_FUNC.
type Function struct{ FuncID int }

// BoundMethod binds a method's FuncID to the instance self is set to
// on call, produced by GET_CONSTRUCTOR and by attribute access that
// resolves to a method.
type BoundMethod struct {
	FuncID int
	Self   *Instance
}

// NativeMethod binds a builtin collection method (currently just
// `add`) to its receiver, produced by GET_ATTRIBUTE_BY_NAME on a
// ListVal/SetVal. It is called directly by the VM rather than through
// the FuncID table, since builtin collections have no FuncUnit.
type NativeMethod struct {
	Receiver any
	Name     string
}

// ListVal, SetVal, VectorVal are ordered collections. Set keeps
// insertion order and de-duplicates by Go equality on `add`, matching
// the common case of comparable element values (int64/float64/bool/
// string); this is simpler than the original's hash-based set but
// behaviourally equivalent for those.
type ListVal struct{ Elems []any }
type SetVal struct{ Elems []any }
type VectorVal struct{ Elems []any }

func (s *SetVal) add(v any) {
	for _, e := range s.Elems {
		if e == v {
			return
		}
	}
	s.Elems = append(s.Elems, v)
}

// MapVal keeps parallel key/value slices instead of a Go map so keys
// don't need to be hashable/comparable at the Go level beyond `==`.
type MapVal struct {
	Keys   []any
	Values []any
}

func (m *MapVal) set(key, value any) {
	for i, k := range m.Keys {
		if k == key {
			m.Values[i] = value
			return
		}
	}
	m.Keys = append(m.Keys, key)
	m.Values = append(m.Values, value)
}

func (m *MapVal) get(key any) (any, bool) {
	for i, k := range m.Keys {
		if k == key {
			return m.Values[i], true
		}
	}
	return nil, false
}

// Iterator is produced by NEW_ITERATOR and consumed by ITERATE. index
// is the next element to yield.
type Iterator struct {
	Elems []any
	Index int
}

// VesperError is a raised error value, carrying the class id it was
// raised with and the message slot's value (normally a string).
type VesperError struct {
	ClassID int
	Message any
}

func (e *VesperError) Error() string {
	return fmt.Sprintf("%v", e.Message)
}

// FormatValue renders a runtime value the way the REPL/CLI prints call
// results, matching the teacher's plain fmt.Println approach in spirit
// (interpreter.VisitPrintStmt) generalised to the richer value set here.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case *Instance:
		return fmt.Sprintf("<%s instance>", val.Class.Name)
	case *ListVal:
		return fmt.Sprintf("%v", val.Elems)
	case *SetVal:
		return fmt.Sprintf("%v", val.Elems)
	case *VectorVal:
		return fmt.Sprintf("%v", val.Elems)
	case *MapVal:
		return fmt.Sprintf("%v", val.Keys)
	default:
		return fmt.Sprintf("%v", val)
	}
}
