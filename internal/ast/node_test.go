package ast

import (
	"testing"

	"github.com/klor-lang/klor/internal/token"
)

func TestWithChildrenPreservesOtherFields(t *testing.T) {
	expr := NewConst(token.Position{Line: 1}, 42)
	cp := NewCopy(token.Position{Line: 2}, "A", "B", expr)

	replaced := cp.WithChildren([]Node{NewConst(token.Position{Line: 3}, 7)})
	rc, ok := replaced.(*Copy)
	if !ok {
		t.Fatalf("expected *Copy, got %T", replaced)
	}
	if rc.Src != "A" || rc.Dst != "B" {
		t.Errorf("WithChildren must preserve non-child fields, got Src=%s Dst=%s", rc.Src, rc.Dst)
	}
	if got := rc.Expr.(*Const).Value; got != 7 {
		t.Errorf("WithChildren did not install new child, got %v", got)
	}
	// original untouched
	if orig := cp.Expr.(*Const).Value; orig != 42 {
		t.Errorf("WithChildren mutated the original node, Expr.Value = %v", orig)
	}
}

func TestWalkIsPostOrder(t *testing.T) {
	inner := NewConst(token.Position{}, 1)
	outer := NewPack(token.Position{}, []Node{inner, NewConst(token.Position{}, 2)})

	var order []Node
	Walk(outer, func(n Node) { order = append(order, n) })

	if len(order) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(order))
	}
	if order[len(order)-1] != Node(outer) {
		t.Errorf("expected root visited last, got %T last", order[len(order)-1])
	}
}
