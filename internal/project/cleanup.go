package project

import "github.com/klor-lang/klor/internal/ast"

// Cleanup implements §4.6's post-projection simplification: fold runs of
// nested `do` blocks, drop trivially-pure non-final statements (literal/
// var/local/noop references with no effect), and collapse a `let` with no
// surviving bindings into its body. It runs bottom-up so an inner do/let
// is already simplified before its parent is considered.
func Cleanup(n ast.Node) ast.Node {
	children := n.Children()
	cur := n
	if len(children) > 0 {
		cleaned := make([]ast.Node, len(children))
		for i, c := range children {
			cleaned[i] = Cleanup(c)
		}
		cur = n.WithChildren(cleaned)
	}
	switch v := cur.(type) {
	case *ast.Do:
		return cleanupDo(v)
	case *ast.Let:
		return cleanupLet(v)
	default:
		return cur
	}
}

func cleanupDo(v *ast.Do) ast.Node {
	var flat []ast.Node
	for _, e := range v.Exprs {
		if nested, ok := e.(*ast.Do); ok {
			flat = append(flat, nested.Exprs...)
			continue
		}
		flat = append(flat, e)
	}
	var out []ast.Node
	for i, e := range flat {
		if i != len(flat)-1 && isTriviallyPure(e) {
			continue
		}
		out = append(out, e)
	}
	switch len(out) {
	case 0:
		return ast.NewNoop(v.Pos())
	case 1:
		return out[0]
	default:
		return ast.NewDo(v.Pos(), out)
	}
}

func cleanupLet(v *ast.Let) ast.Node {
	if len(v.Bindings) > 0 {
		return v
	}
	if len(v.Body) == 1 {
		return v.Body[0]
	}
	return ast.NewDo(v.Pos(), v.Body)
}

func isTriviallyPure(n ast.Node) bool {
	switch n.(type) {
	case *ast.Const, *ast.Var, *ast.TheVar, *ast.Local, *ast.Noop:
		return true
	default:
		return false
	}
}
