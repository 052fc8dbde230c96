// Package emit implements the emitter/cleanup stage (C9): it walks a
// projected AST (the output of internal/project) and serializes it back
// to the surface s-expression syntax (§6.1), so the result is itself a
// valid source file for the same host language reader/parser this
// compiler started from.
//
// A buffer plus an indent counter driven by the ast.Visitor double
// dispatch, one Visit method per node kind. A code-generating printer
// for an infix surface syntax would also need to track operator
// precedence; Klor's surface grammar is uniformly prefix (every form
// is `(head args...)`), so that machinery has no counterpart here —
// one clause per node kind is all emission needs.
package emit

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/klor-lang/klor/internal/ast"
	"github.com/klor-lang/klor/internal/token"
)

// Mapping records that the emitted output at Offset corresponds to
// source position Source, satisfying §4.9's "metadata attached during
// parsing... re-attached to corresponding output nodes for debugging
// tools" without needing a side channel: debugging tools can binary
// search Mappings by Offset to recover the originating source form.
type Mapping struct {
	Offset int
	Source token.Position
}

// Options controls the emitter's formatting choices (§4.9's "when
// configured, it elides redundant do-wrapping").
type Options struct {
	// ElideSingletonDo drops the `do` wrapper around a single-expression
	// body that internal/project's cleanup pass may still have left in
	// place (e.g. a Let whose only body expression is itself a Do of one
	// element after a later rewrite); internal/project.Cleanup already
	// performs the bulk of this simplification; this is a belt-and-braces
	// pass over whatever Cleanup didn't reach because it changed shape
	// during projection of a sibling node.
	ElideSingletonDo bool
}

// DefaultOptions matches §4.9's implied default: elision enabled, since
// "when configured" gates turning it off, not on.
func DefaultOptions() Options {
	return Options{ElideSingletonDo: true}
}

// Printer walks an ast.Node via Accept/Visitor double dispatch and
// writes its surface-syntax rendering to an internal buffer.
type Printer struct {
	ast.NoopVisitor
	buf      bytes.Buffer
	indent   int
	opts     Options
	Mappings []Mapping
}

// New returns a Printer configured by opts.
func New(opts Options) *Printer {
	return &Printer{opts: opts}
}

// Emit renders n and returns the resulting source text. It is safe to
// call multiple times on the same Printer to emit several top-level
// forms into one growing buffer (e.g. once per role's projected body).
func (p *Printer) Emit(n ast.Node) string {
	p.visit(n)
	return p.buf.String()
}

// String returns everything emitted so far.
func (p *Printer) String() string { return p.buf.String() }

func (p *Printer) visit(n ast.Node) {
	if n == nil {
		p.write("nil")
		return
	}
	p.Mappings = append(p.Mappings, Mapping{Offset: p.buf.Len(), Source: n.Pos()})
	n.Accept(p)
}

func (p *Printer) write(s string) { p.buf.WriteString(s) }

func (p *Printer) writeRoles(roles []string) {
	p.write("[")
	for i, r := range roles {
		if i > 0 {
			p.write(" ")
		}
		p.write(r)
	}
	p.write("]")
}

func roleStrings[T ~string](roles []T) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func (p *Printer) seq(nodes []ast.Node) {
	for i, c := range nodes {
		if i > 0 {
			p.write(" ")
		}
		p.visit(c)
	}
}

// --- choreographic nodes -------------------------------------------------

func (p *Printer) VisitNarrow(n *ast.Narrow) {
	p.write("(narrow ")
	p.writeRoles(roleStrings(n.Roles))
	p.write(" ")
	p.visit(n.Expr)
	p.write(")")
}

func (p *Printer) VisitLifting(n *ast.Lifting) {
	p.write("(lifting ")
	p.writeRoles(roleStrings(n.Roles))
	if len(n.Body) > 0 {
		p.write(" ")
		p.seq(n.Body)
	}
	p.write(")")
}

func (p *Printer) VisitCopy(n *ast.Copy) {
	p.write(fmt.Sprintf("(copy [%s %s] ", n.Src, n.Dst))
	p.visit(n.Expr)
	p.write(")")
}

func (p *Printer) VisitPack(n *ast.Pack) {
	p.write("(pack")
	if len(n.Exprs) > 0 {
		p.write(" ")
		p.seq(n.Exprs)
	}
	p.write(")")
}

func (p *Printer) writeBinder(b *ast.Binder) {
	if b == nil {
		p.write("_")
		return
	}
	if b.IsLeaf() {
		p.write(b.Leaf.Name)
		return
	}
	p.write("[")
	for i, c := range b.Vec {
		if i > 0 {
			p.write(" ")
		}
		p.writeBinder(c)
	}
	p.write("]")
}

func (p *Printer) VisitUnpack(n *ast.Unpack) {
	p.write("(unpack [")
	p.writeBinder(n.Binder)
	p.write(" ")
	p.visit(n.Init)
	p.write("]")
	if len(n.Body) > 0 {
		p.write(" ")
		p.seq(n.Body)
	}
	p.write(")")
}

func (p *Printer) VisitChor(n *ast.ChorNode) {
	p.write("(chor")
	if n.Name != "" {
		p.write(" " + n.Name)
	}
	if n.Signature != nil {
		p.write(" ")
		p.visit(n.Signature)
	}
	p.write(" [")
	for i, param := range n.Params {
		if i > 0 {
			p.write(" ")
		}
		p.writeBinder(param)
	}
	p.write("]")
	if len(n.Body) > 0 {
		p.write(" ")
		p.seq(n.Body)
	}
	p.write(")")
}

func (p *Printer) VisitTypeExpr(n *ast.TypeExpr) {
	if n.Type == nil {
		p.write("?")
		return
	}
	p.write(n.Type.String())
}

func (p *Printer) VisitInst(n *ast.Inst) {
	p.write("(inst " + n.Name + " ")
	p.writeRoles(roleStrings(n.Roles))
	p.write(")")
}

func (p *Printer) VisitAgree(n *ast.AgreeNode) {
	p.write("(agree!")
	if len(n.Exprs) > 0 {
		p.write(" ")
		p.seq(n.Exprs)
	}
	p.write(")")
}

// --- projection-output-only nodes ----------------------------------------

func (p *Printer) VisitNoop(n *ast.Noop) { p.write("noop") }

func (p *Printer) VisitSend(n *ast.Send) {
	p.write(fmt.Sprintf("(send! %q ", string(n.Dst)))
	p.visit(n.Value)
	p.write(")")
}

func (p *Printer) VisitRecv(n *ast.Recv) {
	p.write(fmt.Sprintf("(recv! %q)", string(n.Src)))
}

func (p *Printer) VisitMakeProjection(n *ast.MakeProjection) {
	p.write(fmt.Sprintf("(make-projection %q %q %d ", n.Name, string(n.Role), n.RoleIndex))
	p.writeRoles(roleStrings(n.IndexOfDst))
	p.write(")")
}

// --- host-passthrough nodes -----------------------------------------------

func (p *Printer) VisitLet(n *ast.Let) {
	p.write("(let [")
	for i, b := range n.Bindings {
		if i > 0 {
			p.write(" ")
		}
		p.writeBinder(b.Binder)
		p.write(" ")
		p.visit(b.Value)
	}
	p.write("]")
	if len(n.Body) > 0 {
		p.write(" ")
		p.seq(n.Body)
	}
	p.write(")")
}

func (p *Printer) VisitDo(n *ast.Do) {
	if p.opts.ElideSingletonDo && len(n.Exprs) == 1 {
		p.visit(n.Exprs[0])
		return
	}
	p.write("(do ")
	p.seq(n.Exprs)
	p.write(")")
}

func (p *Printer) VisitIf(n *ast.If) {
	p.write("(if ")
	p.visit(n.Test)
	p.write(" ")
	p.visit(n.Then)
	p.write(" ")
	p.visit(n.Else)
	p.write(")")
}

func (p *Printer) VisitCase(n *ast.Case) {
	p.write("(case ")
	p.visit(n.Test)
	for _, cl := range n.Clauses {
		p.write(" (")
		p.seq(cl.Consts)
		p.write(") ")
		p.visit(cl.Expr)
	}
	if n.Default != nil {
		p.write(" ")
		p.visit(n.Default)
	}
	p.write(")")
}

func (p *Printer) VisitFn(n *ast.Fn) {
	p.write("(fn [")
	for i, param := range n.Params {
		if i > 0 {
			p.write(" ")
		}
		p.writeBinder(param)
	}
	p.write("]")
	if len(n.Body) > 0 {
		p.write(" ")
		p.seq(n.Body)
	}
	p.write(")")
}

func (p *Printer) VisitFnMethod(n *ast.FnMethod) {
	p.write("(" + n.Name + " [")
	for i, param := range n.Params {
		if i > 0 {
			p.write(" ")
		}
		p.writeBinder(param)
	}
	p.write("]")
	if len(n.Body) > 0 {
		p.write(" ")
		p.seq(n.Body)
	}
	p.write(")")
}

func (p *Printer) VisitInvoke(n *ast.Invoke) {
	p.write("(")
	p.visit(n.Fn)
	if len(n.Args) > 0 {
		p.write(" ")
		p.seq(n.Args)
	}
	p.write(")")
}

func (p *Printer) VisitRecur(n *ast.Recur) {
	p.write("(recur")
	if len(n.Args) > 0 {
		p.write(" ")
		p.seq(n.Args)
	}
	p.write(")")
}

func (p *Printer) VisitLocal(n *ast.Local) { p.write(n.Name) }
func (p *Printer) VisitVar(n *ast.Var)     { p.write(n.Name) }
func (p *Printer) VisitTheVar(n *ast.TheVar) { p.write("#'" + n.Name) }
func (p *Printer) VisitQuote(n *ast.Quote) { p.write(fmt.Sprintf("'%v", n.Form)) }

func (p *Printer) VisitConst(n *ast.Const) {
	switch v := n.Value.(type) {
	case nil:
		p.write("nil")
	case string:
		p.write(strconv.Quote(v))
	case bool:
		if v {
			p.write("true")
		} else {
			p.write("false")
		}
	default:
		p.write(fmt.Sprintf("%v", v))
	}
}

func (p *Printer) VisitWithMeta(n *ast.WithMeta) { p.visit(n.Expr) }

func (p *Printer) VisitVector(n *ast.VectorNode) {
	p.write("[")
	p.seq(n.Elems)
	p.write("]")
}

func (p *Printer) VisitMap(n *ast.MapNode) {
	p.write("{")
	for i, pair := range n.Pairs {
		if i > 0 {
			p.write(" ")
		}
		p.visit(pair.Key)
		p.write(" ")
		p.visit(pair.Val)
	}
	p.write("}")
}

func (p *Printer) VisitSet(n *ast.SetNode) {
	p.write("#{")
	p.seq(n.Elems)
	p.write("}")
}

func (p *Printer) VisitNew(n *ast.NewNode) {
	p.write("(new " + n.ClassName)
	if len(n.Args) > 0 {
		p.write(" ")
		p.seq(n.Args)
	}
	p.write(")")
}

func (p *Printer) VisitInstanceCall(n *ast.InstanceCall) {
	p.write("(. ")
	p.visit(n.Target)
	p.write(" " + n.Method)
	if len(n.Args) > 0 {
		p.write(" ")
		p.seq(n.Args)
	}
	p.write(")")
}

func (p *Printer) VisitInstanceField(n *ast.InstanceField) {
	p.write("(. ")
	p.visit(n.Target)
	p.write(" " + n.Field + ")")
}

func (p *Printer) VisitStaticCall(n *ast.StaticCall) {
	p.write(fmt.Sprintf("(%s/%s", n.Class, n.Method))
	if len(n.Args) > 0 {
		p.write(" ")
		p.seq(n.Args)
	}
	p.write(")")
}

func (p *Printer) VisitStaticField(n *ast.StaticField) {
	p.write(fmt.Sprintf("%s/%s", n.Class, n.Field))
}

func (p *Printer) VisitThrow(n *ast.Throw) {
	p.write("(throw ")
	p.visit(n.Expr)
	p.write(")")
}

func (p *Printer) VisitTry(n *ast.Try) {
	p.write("(try ")
	p.seq(n.Body)
	for _, cat := range n.Catches {
		p.write(" (catch " + cat.ExceptionType + " ")
		p.writeBinder(cat.Binder)
		p.write(" ")
		p.seq(cat.Body)
		p.write(")")
	}
	if len(n.Finally) > 0 {
		p.write(" (finally ")
		p.seq(n.Finally)
		p.write(")")
	}
	p.write(")")
}
