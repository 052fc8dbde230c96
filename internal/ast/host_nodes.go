package ast

import "github.com/klor-lang/klor/internal/token"

// The variants in this file are the host-language node shapes reused
// "uninterpreted" by the choreographic passes (§3.3): they carry no role
// parameters of their own and are walked/projected purely structurally,
// except that If and Case additionally enforce the knowledge-of-choice
// discipline in the checker (§4.5) and are treated specially by
// projection's branch-elimination rule (§4.6).

// LetBinding is a single (possibly patterned) binding inside a Let.
type LetBinding struct {
	Binder *Binder
	Value  Node
}

// Let is a sequential binding form: (let [a e1, b e2] body...).
type Let struct {
	base
	Bindings []LetBinding
	Body     []Node
}

// Do sequences expressions for effect, returning the last: (do e1 e2 ...).
type Do struct {
	base
	Exprs []Node
}

// If is a conditional. Per §4.5, test must be an Agree type T; then/else
// must share a type; roles mentioned in either branch must be a subset
// of T (knowledge of choice).
type If struct {
	base
	Test, Then, Else Node
}

// CaseClause is a single (const expr) arm of a Case.
type CaseClause struct {
	Consts []Node // constant patterns for this arm
	Expr   Node
}

// Case is a multi-way conditional analogous to If (§4.5).
type Case struct {
	base
	Test    Node
	Clauses []CaseClause
	Default Node // nil if no default arm
}

// Fn is a host-language anonymous function literal. Per §4.5 every
// sub-expression of a Fn body must have the current mask's agreement
// type; Fn itself is homogeneous (single arity).
type Fn struct {
	base
	Params []*Binder
	Body   []Node
}

// FnMethod is one arity clause of a multi-arity host function
// definition; checked identically to Fn.
type FnMethod struct {
	base
	Name   string
	Params []*Binder
	Body   []Node
}

// Invoke applies a function/choreography value to arguments (§4.5: the
// rule depends on whether Fn's type is Agree or Chor).
type Invoke struct {
	base
	Fn   Node
	Args []Node
}

// Recur re-enters the nearest enclosing Chor's loop point with new
// argument values, used for host-style tail recursion within a
// choreography body.
type Recur struct {
	base
	Args []Node
}

// Local references a resolved local binding.
type Local struct {
	base
	Name    string
	Binding *Binding
}

// Var references a name that is not a local binding; the checker treats
// it as a host-language global. A choreographic definition is referenced
// through Inst, which carries its own name.
type Var struct {
	base
	Name string
}

// TheVar is a first-class reference to a var, e.g. #'foo.
type TheVar struct {
	base
	Name string
}

// Quote wraps an opaque, unevaluated host form.
type Quote struct {
	base
	Form interface{}
}

// Const is a literal constant (number, string, bool, nil, keyword).
type Const struct {
	base
	Value interface{}
}

// WithMeta attaches opaque host metadata to an expression without
// changing its evaluated value or type.
type WithMeta struct {
	base
	Meta interface{}
	Expr Node
}

// VectorNode is a host vector literal; each element must have the
// current-mask agreement type (§4.5).
type VectorNode struct {
	base
	Elems []Node
}

// MapPair is one key/value pair of a MapNode.
type MapPair struct {
	Key, Val Node
}

// MapNode is a host map literal (§4.6 flags nondeterministic collection
// order when elements mention different roles).
type MapNode struct {
	base
	Pairs []MapPair
}

// SetNode is a host set literal (same nondeterminism caveat as MapNode).
type SetNode struct {
	base
	Elems []Node
}

// NewNode constructs a host object: (new ClassName args...).
type NewNode struct {
	base
	ClassName string
	Args      []Node
}

// InstanceCall invokes an instance method on a host object.
type InstanceCall struct {
	base
	Target Node
	Method string
	Args   []Node
}

// InstanceField reads an instance field of a host object.
type InstanceField struct {
	base
	Target Node
	Field  string
}

// StaticCall invokes a static method on a host class.
type StaticCall struct {
	base
	Class  string
	Method string
	Args   []Node
}

// StaticField reads a static field of a host class.
type StaticField struct {
	base
	Class string
	Field string
}

// Throw raises a host exception value.
type Throw struct {
	base
	Expr Node
}

// CatchClause is one (ExceptionType binder body...) arm of a Try.
type CatchClause struct {
	ExceptionType string
	Binder        *Binder
	Body          []Node
}

// Try is homogeneous at the choreographic level (§9 open question: the
// interaction between try/catch and cross-role communication is
// unspecified upstream; this compiler attempts no cross-role recovery: a
// throw is caught only by a Try in the same role's endpoint, see
// internal/runtime).
type Try struct {
	base
	Body    []Node
	Catches []CatchClause
	Finally []Node
}

// --- constructors (only the ones exercised by the parser and tests are
// spelled out; the remaining host variants are built with struct
// literals directly by the parser, a mix of constructor functions and
// literals for simple AST shapes). ---

func NewLet(pos token.Position, bindings []LetBinding, body []Node) *Let {
	return &Let{base: base{position: pos}, Bindings: bindings, Body: body}
}

func NewDo(pos token.Position, exprs []Node) *Do {
	return &Do{base: base{position: pos}, Exprs: exprs}
}

func NewIf(pos token.Position, test, then, els Node) *If {
	return &If{base: base{position: pos}, Test: test, Then: then, Else: els}
}

func NewInvoke(pos token.Position, fn Node, args []Node) *Invoke {
	return &Invoke{base: base{position: pos}, Fn: fn, Args: args}
}

func NewLocal(pos token.Position, name string, b *Binding) *Local {
	return &Local{base: base{position: pos}, Name: name, Binding: b}
}

func NewVar(pos token.Position, name string) *Var {
	return &Var{base: base{position: pos}, Name: name}
}

func NewConst(pos token.Position, v interface{}) *Const {
	return &Const{base: base{position: pos}, Value: v}
}

func NewThrow(pos token.Position, expr Node) *Throw {
	return &Throw{base: base{position: pos}, Expr: expr}
}

// --- Node interface -----------------------------------------------------

func (n *Let) Accept(v Visitor) { v.VisitLet(n) }
func (n *Let) Children() []Node {
	out := make([]Node, 0, len(n.Bindings)+len(n.Body))
	for _, b := range n.Bindings {
		out = append(out, b.Value)
	}
	out = append(out, n.Body...)
	return out
}
func (n *Let) WithChildren(c []Node) Node {
	cp := *n
	cp.Bindings = make([]LetBinding, len(n.Bindings))
	for i, b := range n.Bindings {
		cp.Bindings[i] = LetBinding{Binder: b.Binder, Value: c[i]}
	}
	cp.Body = c[len(n.Bindings):]
	return &cp
}

func (n *Do) Accept(v Visitor) { v.VisitDo(n) }
func (n *Do) Children() []Node { return n.Exprs }
func (n *Do) WithChildren(c []Node) Node {
	cp := *n
	cp.Exprs = c
	return &cp
}

func (n *If) Accept(v Visitor) { v.VisitIf(n) }
func (n *If) Children() []Node { return []Node{n.Test, n.Then, n.Else} }
func (n *If) WithChildren(c []Node) Node {
	cp := *n
	cp.Test, cp.Then, cp.Else = c[0], c[1], c[2]
	return &cp
}

func (n *Case) Accept(v Visitor) { v.VisitCase(n) }
func (n *Case) Children() []Node {
	out := []Node{n.Test}
	for _, cl := range n.Clauses {
		out = append(out, cl.Expr)
	}
	if n.Default != nil {
		out = append(out, n.Default)
	}
	return out
}
func (n *Case) WithChildren(c []Node) Node {
	cp := *n
	cp.Test = c[0]
	rest := c[1:]
	cp.Clauses = make([]CaseClause, len(n.Clauses))
	for i, cl := range n.Clauses {
		cp.Clauses[i] = CaseClause{Consts: cl.Consts, Expr: rest[i]}
	}
	if n.Default != nil {
		cp.Default = rest[len(n.Clauses)]
	}
	return &cp
}

func (n *Fn) Accept(v Visitor) { v.VisitFn(n) }
func (n *Fn) Children() []Node { return n.Body }
func (n *Fn) WithChildren(c []Node) Node {
	cp := *n
	cp.Body = c
	return &cp
}

func (n *FnMethod) Accept(v Visitor) { v.VisitFnMethod(n) }
func (n *FnMethod) Children() []Node { return n.Body }
func (n *FnMethod) WithChildren(c []Node) Node {
	cp := *n
	cp.Body = c
	return &cp
}

func (n *Invoke) Accept(v Visitor) { v.VisitInvoke(n) }
func (n *Invoke) Children() []Node {
	return append([]Node{n.Fn}, n.Args...)
}
func (n *Invoke) WithChildren(c []Node) Node {
	cp := *n
	cp.Fn = c[0]
	cp.Args = c[1:]
	return &cp
}

func (n *Recur) Accept(v Visitor) { v.VisitRecur(n) }
func (n *Recur) Children() []Node { return n.Args }
func (n *Recur) WithChildren(c []Node) Node {
	cp := *n
	cp.Args = c
	return &cp
}

func (n *Local) Accept(v Visitor)           { v.VisitLocal(n) }
func (n *Local) Children() []Node           { return nil }
func (n *Local) WithChildren(c []Node) Node { cp := *n; return &cp }

func (n *Var) Accept(v Visitor)           { v.VisitVar(n) }
func (n *Var) Children() []Node           { return nil }
func (n *Var) WithChildren(c []Node) Node { cp := *n; return &cp }

func (n *TheVar) Accept(v Visitor)           { v.VisitTheVar(n) }
func (n *TheVar) Children() []Node           { return nil }
func (n *TheVar) WithChildren(c []Node) Node { cp := *n; return &cp }

func (n *Quote) Accept(v Visitor)           { v.VisitQuote(n) }
func (n *Quote) Children() []Node           { return nil }
func (n *Quote) WithChildren(c []Node) Node { cp := *n; return &cp }

func (n *Const) Accept(v Visitor)           { v.VisitConst(n) }
func (n *Const) Children() []Node           { return nil }
func (n *Const) WithChildren(c []Node) Node { cp := *n; return &cp }

func (n *WithMeta) Accept(v Visitor) { v.VisitWithMeta(n) }
func (n *WithMeta) Children() []Node { return []Node{n.Expr} }
func (n *WithMeta) WithChildren(c []Node) Node {
	cp := *n
	cp.Expr = c[0]
	return &cp
}

func (n *VectorNode) Accept(v Visitor) { v.VisitVector(n) }
func (n *VectorNode) Children() []Node { return n.Elems }
func (n *VectorNode) WithChildren(c []Node) Node {
	cp := *n
	cp.Elems = c
	return &cp
}

func (n *MapNode) Accept(v Visitor) { v.VisitMap(n) }
func (n *MapNode) Children() []Node {
	out := make([]Node, 0, len(n.Pairs)*2)
	for _, p := range n.Pairs {
		out = append(out, p.Key, p.Val)
	}
	return out
}
func (n *MapNode) WithChildren(c []Node) Node {
	cp := *n
	cp.Pairs = make([]MapPair, len(n.Pairs))
	for i := range n.Pairs {
		cp.Pairs[i] = MapPair{Key: c[2*i], Val: c[2*i+1]}
	}
	return &cp
}

func (n *SetNode) Accept(v Visitor) { v.VisitSet(n) }
func (n *SetNode) Children() []Node { return n.Elems }
func (n *SetNode) WithChildren(c []Node) Node {
	cp := *n
	cp.Elems = c
	return &cp
}

func (n *NewNode) Accept(v Visitor) { v.VisitNew(n) }
func (n *NewNode) Children() []Node { return n.Args }
func (n *NewNode) WithChildren(c []Node) Node {
	cp := *n
	cp.Args = c
	return &cp
}

func (n *InstanceCall) Accept(v Visitor) { v.VisitInstanceCall(n) }
func (n *InstanceCall) Children() []Node {
	return append([]Node{n.Target}, n.Args...)
}
func (n *InstanceCall) WithChildren(c []Node) Node {
	cp := *n
	cp.Target = c[0]
	cp.Args = c[1:]
	return &cp
}

func (n *InstanceField) Accept(v Visitor) { v.VisitInstanceField(n) }
func (n *InstanceField) Children() []Node { return []Node{n.Target} }
func (n *InstanceField) WithChildren(c []Node) Node {
	cp := *n
	cp.Target = c[0]
	return &cp
}

func (n *StaticCall) Accept(v Visitor) { v.VisitStaticCall(n) }
func (n *StaticCall) Children() []Node { return n.Args }
func (n *StaticCall) WithChildren(c []Node) Node {
	cp := *n
	cp.Args = c
	return &cp
}

func (n *StaticField) Accept(v Visitor)           { v.VisitStaticField(n) }
func (n *StaticField) Children() []Node           { return nil }
func (n *StaticField) WithChildren(c []Node) Node { cp := *n; return &cp }

func (n *Throw) Accept(v Visitor) { v.VisitThrow(n) }
func (n *Throw) Children() []Node { return []Node{n.Expr} }
func (n *Throw) WithChildren(c []Node) Node {
	cp := *n
	cp.Expr = c[0]
	return &cp
}

func (n *Try) Accept(v Visitor) { v.VisitTry(n) }
func (n *Try) Children() []Node {
	out := append([]Node{}, n.Body...)
	for _, cat := range n.Catches {
		out = append(out, cat.Body...)
	}
	out = append(out, n.Finally...)
	return out
}
func (n *Try) WithChildren(c []Node) Node {
	cp := *n
	i := 0
	cp.Body = c[i : i+len(n.Body)]
	i += len(n.Body)
	cp.Catches = make([]CatchClause, len(n.Catches))
	for j, cat := range n.Catches {
		cp.Catches[j] = CatchClause{ExceptionType: cat.ExceptionType, Binder: cat.Binder, Body: c[i : i+len(cat.Body)]}
		i += len(cat.Body)
	}
	cp.Finally = c[i : i+len(n.Finally)]
	return &cp
}
