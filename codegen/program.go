package codegen

import (
	"fmt"

	"vesper/ast"
)

// Diagnostic is an accumulated warning or error, per spec §6
// "Diagnostics": severity, message, source URI, line/column.
type Diagnostic struct {
	Severity string // "error" or "warning"
	Category string // supplemented feature, grounded on warningconfig.c
	Message  string
	URI      string
	Line     int32
	Column   int
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s:%d:%d: %s", d.Severity, d.URI, d.Line, d.Column, d.Message)
}

// Diagnostics is the project-wide result container (§6): warnings and
// errors accumulate here and do not abort the pipeline unless a hard
// failure occurs.
type Diagnostics struct {
	Items      []Diagnostic
	HadError   bool
	OutOfMemory bool
	Suppressed map[string]bool // diagnostic categories that add drops instead of recording
}

func NewDiagnostics() *Diagnostics {
	return &Diagnostics{Suppressed: make(map[string]bool)}
}

func (d *Diagnostics) Errorf(uri string, line int32, col int, category, format string, args ...any) {
	d.add("error", uri, line, col, category, fmt.Sprintf(format, args...))
	d.HadError = true
}

func (d *Diagnostics) Warnf(uri string, line int32, col int, category, format string, args ...any) {
	d.add("warning", uri, line, col, category, fmt.Sprintf(format, args...))
}

func (d *Diagnostics) add(severity, uri string, line int32, col int, category, message string) {
	if d.Suppressed[category] {
		return
	}
	d.Items = append(d.Items, Diagnostic{
		Severity: severity, Category: category, Message: message, URI: uri, Line: line, Column: col,
	})
}

// Program holds the bytecode-level state for one compiled file: its
// functions, constant pool, and the global attribute-name index used
// by attribute-access/kwarg-sorting lowering. Fake init functions
// (§4.4) are real entries in Functions. Their ids are not allocated by
// Program itself: the resolver hands out every function id (named,
// method, and fake-init alike) from one counter (resolver.Globals) so
// a class's var-init function keeps the same id the resolver recorded
// on ast.ClassDef.VarInitFuncID before codegen ever ran.
type Program struct {
	URI       string
	Functions map[int]*FuncUnit

	Constants []any

	attrNames    map[string]int
	attrNameList []string

	GlobalInitFuncID int
	classInitFuncID  map[int]int

	builtinClasses   map[string]int
	builtinClassBase int
}

func NewProgram(uri string) *Program {
	return &Program{
		URI:              uri,
		Functions:        make(map[int]*FuncUnit),
		attrNames:        make(map[string]int),
		classInitFuncID:  make(map[int]int),
		builtinClasses:   make(map[string]int),
		GlobalInitFuncID: -1,
	}
}

// BuiltinClassID returns the class id the runtime reserves for a
// built-in error type (AttributeError, ArgumentError, IndexError, ...),
// used by guard-raise lowering for unknown attributes and bad keyword
// arguments (§4.4's "Attribute access" and "Calls" rules). Ids are
// assigned on first use as the builtin base plus the number of
// built-ins assigned so far. The base is 0 unless SetBuiltinClassBase
// has moved it, so these ids stay clear of resolver-assigned user class
// ids only once the base is set to the user-class count.
func (p *Program) BuiltinClassID(name string) int {
	if id, ok := p.builtinClasses[name]; ok {
		return id
	}
	id := p.builtinClassBase + len(p.builtinClasses)
	p.builtinClasses[name] = id
	return id
}

// SetBuiltinClassBase reserves builtin error-class ids starting at
// base, so they never collide with user-declared class ids: RAISE's
// class_id operand is untagged (the same field carries either a
// resolver-assigned user class id or a BuiltinClassID result, per
// lowerRaise vs. emitGuardRaise), so the two id spaces must not
// overlap at runtime. Callers set base to the resolver's final
// user-class count before lowering begins.
func (p *Program) SetBuiltinClassBase(base int) {
	p.builtinClassBase = base
}

// BuiltinClassName reverse-looks-up a builtin class id assigned by
// BuiltinClassID, for runtime diagnostics. ok is false if id was never
// assigned this way.
func (p *Program) BuiltinClassName(id int) (string, bool) {
	for name, got := range p.builtinClasses {
		if got == id {
			return name, true
		}
	}
	return "", false
}

// InternAttrName returns name's global attribute-name id, assigning a
// new one on first use. The index is additive-only, per §5 "a global
// attribute-name index (interning map; only additive)".
func (p *Program) InternAttrName(name string) int {
	if id, ok := p.attrNames[name]; ok {
		return id
	}
	id := len(p.attrNameList)
	p.attrNames[name] = id
	p.attrNameList = append(p.attrNameList, name)
	return id
}

// AttrName reverse-looks-up an attribute-name id assigned by
// InternAttrName, for runtime attribute dispatch. ok is false if id is
// out of range.
func (p *Program) AttrName(id int) (string, bool) {
	if id < 0 || id >= len(p.attrNameList) {
		return "", false
	}
	return p.attrNameList[id], true
}

// LookupAttrName reports whether name is already a known attribute,
// without interning it — used by §4.4's "Attribute access" rule to
// decide between GET_ATTRIBUTE_BY_NAME and a compile-time RAISE.
func (p *Program) LookupAttrName(name string) (int, bool) {
	id, ok := p.attrNames[name]
	return id, ok
}

// InternConstant appends value to the constant pool and returns its id.
func (p *Program) InternConstant(value any) int {
	p.Constants = append(p.Constants, value)
	return len(p.Constants) - 1
}

// RegisterFunction adds fu under id, replacing any prior registration.
func (p *Program) RegisterFunction(id int, fu *FuncUnit) {
	p.Functions[id] = fu
}

// GlobalInit returns the program's fake global-init FuncUnit,
// registering it under id on first use (§4.4 "Fake init functions"). id
// comes from the resolver's function-id counter (resolver.Resolver's
// GlobalInitFuncID), reserved once per file regardless of whether the
// file turns out to need one.
func (p *Program) GlobalInit(id int) *FuncUnit {
	if p.GlobalInitFuncID < 0 {
		fu := NewFuncUnit(id, &ast.FuncStorageInfo{})
		p.RegisterFunction(id, fu)
		p.GlobalInitFuncID = id
		return fu
	}
	return p.Functions[p.GlobalInitFuncID]
}

// ClassInit returns the fake class-init FuncUnit for classID,
// registering it under id on first use. id is ast.ClassDef.VarInitFuncID,
// assigned by the resolver; a single mapping from class id to fake
// function value caches the lookup, per §4.4's Fake Init Functions note.
func (p *Program) ClassInit(classID, id int) *FuncUnit {
	if existing, ok := p.classInitFuncID[classID]; ok {
		return p.Functions[existing]
	}
	// Slot 0 holds self, like any method, so var-init bodies can store
	// through SET_BY_ATTRIBUTE_IDX 0, attr_id, value.
	fu := NewFuncUnit(id, &ast.FuncStorageInfo{LowestGuaranteedFreeTemp: 1, ClosureWithSelf: true})
	p.RegisterFunction(id, fu)
	p.classInitFuncID[classID] = id
	return fu
}

// Project groups the Programs of multiple compiled files under one
// shared Diagnostics container, after
// original_source/horse64/compileproject.h's role of owning cross-file
// state (SPEC_FULL.md's "Per-project compile unit" supplemented feature).
// Each AddProgram creates an independent Program with its own
// attribute-name index and constant pool; class and function ids line
// up across files only when their resolvers share one resolver.Globals,
// which Project does not hold.
type Project struct {
	Programs    []*Program
	Diagnostics *Diagnostics
}

func NewProject() *Project {
	return &Project{Diagnostics: NewDiagnostics()}
}

func (proj *Project) AddProgram(uri string) *Program {
	p := NewProgram(uri)
	proj.Programs = append(proj.Programs, p)
	return p
}
