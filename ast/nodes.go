package ast

// Literal holds one of int64, float64, bool, none, string, or bytes,
// per §3's variant payload. String literals additionally carry their
// raw source bytes and a precomputed UTF-32 rune count, matching the
// Literal lowering rule in §4.4 (inline vs. constant-pool transcoding
// decision happens in codegen, not here).
type Literal struct {
	*Base
	ValueKind ConstKind
	Value     any
	RawUTF8   []byte
	RuneCount int
}

// IdentifierRef is a bare name reference; its Storage field (on Base)
// says whether it resolved to a stack slot or a global.
type IdentifierRef struct {
	*Base
	Name string
}

// VarDef declares a variable, optionally with an initialiser.
type VarDef struct {
	*Base
	Name    string
	Init    Node
	IsConst bool
}

// Assign models all three lvalue forms from §4.4's "Assignment" rule:
// Target is either an IdentifierRef (direct variable), a BinaryOp with
// Op==OpAttr (attribute form), or a BinaryOp with Op==OpIndex (index
// form). Op is AssignPlain for `=`, or a compound form for `+=` etc.
type Assign struct {
	*Base
	Target Node
	Value  Node
	Op     AssignOp
}

// Param is one formal parameter of a FuncDef. Default is non-nil when
// the parameter has a default expression (§4.4 "Function definition").
// Slot is the stack slot the resolver assigns it; the lowerer uses it
// directly rather than re-deriving it from position and method-ness.
type Param struct {
	Name    string
	Default Node
	Slot    int
}

// FuncDef is a function (statement or inline) per §3's payload list.
type FuncDef struct {
	*Base
	Name           string // empty for an inline (anonymous) function
	Params         []Param
	Body           []Node
	StorageInfo    *FuncStorageInfo
	BytecodeFuncID int
	Parallel       bool
	NoParallel     bool
	Deprecated     bool
}

// ClassDef declares a class: its variable and function attributes,
// optional base class, and the (lazily assigned) var-init function id
// that holds non-trivial attribute initialisers, per §4.4 "Class
// definition" and the Fake Init Functions note.
type ClassDef struct {
	*Base
	Name          string
	BaseClass     Node // an IdentifierRef, or nil
	VarAttrs      []*VarDef
	FuncAttrs     []*FuncDef
	ClassID       int
	VarInitFuncID int // -1 until a var attr with a non-trivial initialiser assigns one
}

// IfClause is one arm of an If chain. Cond is nil for the terminal else.
type IfClause struct {
	Cond Node
	Body []Node
}

// If is a chain of conditional clauses (if/elif.../else), per §3.
type If struct {
	*Base
	Clauses []*IfClause
}

// While is a conditional loop.
type While struct {
	*Base
	Cond Node
	Body []Node
}

// For is an iterator loop: `for LoopVar in Container { Body }`.
// LoopVarSlot is the stack slot the resolver assigns to LoopVar.
type For struct {
	*Base
	LoopVar     string
	LoopVarSlot int
	Container   Node
	Body        []Node
}

// Do models `do { } rescue ErrorTypes as RescueName { } finally { }`,
// per §3's payload list and §4.4's "Do / Rescue / Finally" rule.
type Do struct {
	*Base
	Body        []Node
	ErrorTypes  []Node // IdentifierRef nodes naming caught error classes
	RescueName  string
	RescueNameSlot int // valid only when RescueName != ""
	RescueBody  []Node
	HasFinally  bool
	FinallyBody []Node
}

// WithClause binds one resource expression to an identifier within a
// With statement.
type WithClause struct {
	*Base
	Name     string
	Resource Node
}

// With is `with clause, clause... { body }`, per §3 and §4.4's "With" rule.
type With struct {
	*Base
	Clauses []*WithClause
	Body    []Node
}

// Raise models `raise new ErrorClass(msg)`. Expr is required to be a
// Call whose operand was wrapped in a UnaryOp{Op: OpNew} by the
// parser; codegen's lowerer rejects any other shape (§4.4 "Raise").
type Raise struct {
	*Base
	Expr Node
}

// Return optionally carries a value; a bare `return` has Value == nil.
type Return struct {
	*Base
	Value Node
}

type Break struct{ *Base }
type Continue struct{ *Base }

// Await suspends the current frame on the given task expression.
type Await struct {
	*Base
	Expr Node
}

// Import names a module to load. Alias is empty unless `import x as y`.
type Import struct {
	*Base
	Path  string
	Alias string
}

// KwArg is one `name=value` keyword argument in a Call.
type KwArg struct {
	Name  string
	Value Node
}

// Call is a call expression: `callee(pos..., name=value...)`. Unpack
// marks the last positional argument as "expand" (UNPACK_LAST_POSARG);
// Async marks an awaited call (the ASYNC call flag), per §4.4 "Calls".
type Call struct {
	*Base
	Callee  Node
	PosArgs []Node
	KwArgs  []KwArg
	Unpack  bool
	Async   bool
}

// CallStmt wraps a Call used as a statement; codegen lowers the inner
// Call with wantValue=false and discards the result slot (§9 open
// question: "collapse in the lowerer").
type CallStmt struct {
	*Base
	Call *Call
}

// BinaryOp covers arithmetic/comparison/bitwise/boolean operators as
// well as attribute access (Op==OpAttr, AttrName set, Right unused)
// and index access (Op==OpIndex, Right is the index expression).
type BinaryOp struct {
	*Base
	Op       BinOp
	Left     Node
	Right    Node
	AttrName string
}

// UnaryOp covers arithmetic/logical negation and `new` (Op==OpNew,
// Operand is required to be a Call per §4.4).
type UnaryOp struct {
	*Base
	Op      UnOp
	Operand Node
}

// List / Set share a shape: an ordered sequence of element expressions.
type List struct {
	*Base
	Elems []Node
}

type Set struct {
	*Base
	Elems []Node
}

// MapEntry is one key/value pair in a Map literal.
type MapEntry struct {
	Key   Node
	Value Node
}

type Map struct {
	*Base
	Entries []MapEntry
}

// Vector is an ordered, densely-indexed collection literal; its
// per-entry index is implicit (the entry's position), per §4.4's
// "Map / Vector constructors" rule.
type Vector struct {
	*Base
	Elems []Node
}

// Given is the ternary `given Cond then Yes else No`.
type Given struct {
	*Base
	Cond Node
	Yes  Node
	No   Node
}

func newBase(kind Kind, line int32, col int) *Base {
	return &Base{NodeKind: kind, Line: line, Column: col, Storage: StorageRef{EvalTempID: -1}}
}

// NewLiteral, NewIdentifierRef, ... are convenience constructors used
// by the parser (an external collaborator here, exercised by tests) to
// build well-formed nodes with EvalTempID initialised to -1, per §3's
// invariant that an unresolved/unevaluated node's scratch slot is -1.

func NewLiteral(line int32, col int, kind ConstKind, value any) *Literal {
	return &Literal{Base: newBase(KLiteral, line, col), ValueKind: kind, Value: value}
}

func NewIdentifierRef(line int32, col int, name string) *IdentifierRef {
	return &IdentifierRef{Base: newBase(KIdentifierRef, line, col), Name: name}
}

func NewVarDef(line int32, col int, name string, init Node, isConst bool) *VarDef {
	return &VarDef{Base: newBase(KVarDef, line, col), Name: name, Init: init, IsConst: isConst}
}

func NewAssign(line int32, col int, target, value Node, op AssignOp) *Assign {
	return &Assign{Base: newBase(KAssign, line, col), Target: target, Value: value, Op: op}
}

func NewFuncDef(line int32, col int, name string, params []Param, body []Node) *FuncDef {
	return &FuncDef{Base: newBase(KFuncDef, line, col), Name: name, Params: params, Body: body, BytecodeFuncID: -1}
}

func NewClassDef(line int32, col int, name string, base Node) *ClassDef {
	return &ClassDef{Base: newBase(KClassDef, line, col), Name: name, BaseClass: base, ClassID: -1, VarInitFuncID: -1}
}

func NewIf(line int32, col int, clauses []*IfClause) *If {
	return &If{Base: newBase(KIf, line, col), Clauses: clauses}
}

func NewWhile(line int32, col int, cond Node, body []Node) *While {
	return &While{Base: newBase(KWhile, line, col), Cond: cond, Body: body}
}

func NewFor(line int32, col int, loopVar string, container Node, body []Node) *For {
	return &For{Base: newBase(KFor, line, col), LoopVar: loopVar, Container: container, Body: body}
}

func NewDo(line int32, col int) *Do {
	return &Do{Base: newBase(KDo, line, col)}
}

func NewWith(line int32, col int, clauses []*WithClause, body []Node) *With {
	return &With{Base: newBase(KWith, line, col), Clauses: clauses, Body: body}
}

func NewRaise(line int32, col int, expr Node) *Raise {
	return &Raise{Base: newBase(KRaise, line, col), Expr: expr}
}

func NewReturn(line int32, col int, value Node) *Return {
	return &Return{Base: newBase(KReturn, line, col), Value: value}
}

func NewBreak(line int32, col int) *Break       { return &Break{Base: newBase(KBreak, line, col)} }
func NewContinue(line int32, col int) *Continue { return &Continue{Base: newBase(KContinue, line, col)} }

func NewAwait(line int32, col int, expr Node) *Await {
	return &Await{Base: newBase(KAwait, line, col), Expr: expr}
}

func NewImport(line int32, col int, path, alias string) *Import {
	return &Import{Base: newBase(KImport, line, col), Path: path, Alias: alias}
}

func NewCall(line int32, col int, callee Node, pos []Node, kw []KwArg) *Call {
	return &Call{Base: newBase(KCall, line, col), Callee: callee, PosArgs: pos, KwArgs: kw}
}

func NewCallStmt(line int32, col int, call *Call) *CallStmt {
	return &CallStmt{Base: newBase(KCallStmt, line, col), Call: call}
}

func NewBinaryOp(line int32, col int, op BinOp, left, right Node) *BinaryOp {
	return &BinaryOp{Base: newBase(KBinaryOp, line, col), Op: op, Left: left, Right: right}
}

func NewAttrAccess(line int32, col int, left Node, attrName string) *BinaryOp {
	return &BinaryOp{Base: newBase(KBinaryOp, line, col), Op: OpAttr, Left: left, AttrName: attrName}
}

func NewUnaryOp(line int32, col int, op UnOp, operand Node) *UnaryOp {
	return &UnaryOp{Base: newBase(KUnaryOp, line, col), Op: op, Operand: operand}
}

func NewList(line int32, col int, elems []Node) *List {
	return &List{Base: newBase(KList, line, col), Elems: elems}
}

func NewSet(line int32, col int, elems []Node) *Set {
	return &Set{Base: newBase(KSet, line, col), Elems: elems}
}

func NewMap(line int32, col int, entries []MapEntry) *Map {
	return &Map{Base: newBase(KMap, line, col), Entries: entries}
}

func NewVector(line int32, col int, elems []Node) *Vector {
	return &Vector{Base: newBase(KVector, line, col), Elems: elems}
}

func NewGiven(line int32, col int, cond, yes, no Node) *Given {
	return &Given{Base: newBase(KGiven, line, col), Cond: cond, Yes: yes, No: no}
}
