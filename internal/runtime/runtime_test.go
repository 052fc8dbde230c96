package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/klor-lang/klor/internal/ast"
	"github.com/klor-lang/klor/internal/check"
	"github.com/klor-lang/klor/internal/codec"
	"github.com/klor-lang/klor/internal/parser"
	"github.com/klor-lang/klor/internal/project"
	"github.com/klor-lang/klor/internal/reader"
	"github.com/klor-lang/klor/internal/registry"
	"github.com/klor-lang/klor/internal/runtime/value"
	"github.com/klor-lang/klor/internal/token"
	"github.com/klor-lang/klor/internal/transport/memtransport"
	"github.com/klor-lang/klor/internal/types"
)

// checkedDef parses, checks, and returns E1's Increment definition (the
// same source internal/project's own tests use, with `inc` swapped for
// the `+` builtin so this package's DefaultBuiltins suffices).
func checkedDef(t *testing.T) *parser.TopLevelDef {
	t.Helper()
	forms, err := reader.New("t.klor", `(defchor inc [A B] (-> A A) [x] (B->A (B (+ (A->B x) 1))))`).ReadAll()
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	defs, err := parser.New("t.klor").ParseTopLevel(forms)
	if err != nil {
		t.Fatalf("parser: %v", err)
	}
	def := defs[0]
	c := check.New(registry.New())
	c.CheckDefinition(def.Roles, def.Sig, def.Params, def.Body)
	if len(c.Errors()) != 0 {
		t.Fatalf("expected no type errors, got %v", c.Errors())
	}
	return def
}

// TestPlayEndToEndIncrement runs E1's two endpoints as goroutines over a
// shared memtransport.Network and checks that A ends up with the value B
// incremented, directly exercising Send/Recv/Codec/Invoke/the builtin
// table together (the same shape internal/simulate later automates).
func TestPlayEndToEndIncrement(t *testing.T) {
	def := checkedDef(t)
	roleA, roleB := types.Role("A"), types.Role("B")

	net := memtransport.NewNetwork(1)
	codecImpl := codec.JSON{}

	bodyFor := func(role types.Role) *Closure {
		params := project.FilterParams(def.Params, role)
		root := project.Project(def.Body[0], role)
		return &Closure{
			Params: params,
			Body:   []ast.Node{root},
			Env:    NewEnv(),
			interp: NewInterp(),
			Cfg: Config{
				Role:      role,
				Transport: memtransport.NewEndpoint(net, role),
				Codec:     codecImpl,
				Registry:  registry.New(),
				Defs:      map[string]*CompiledDef{},
				Builtins:  DefaultBuiltins(nil),
			},
		}
	}
	closureA := bodyFor(roleA)
	closureB := bodyFor(roleB)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	type outcome struct {
		v   value.Value
		err error
	}
	resA := make(chan outcome, 1)
	resB := make(chan outcome, 1)

	go func() {
		v, err := closureA.Invoke(ctx, []value.Value{value.Int(5)})
		resA <- outcome{v, err}
	}()
	go func() {
		v, err := closureB.Invoke(ctx, nil)
		resB <- outcome{v, err}
	}()

	outA := <-resA
	outB := <-resB
	if outA.err != nil {
		t.Fatalf("role A: %v", outA.err)
	}
	if outB.err != nil {
		t.Fatalf("role B: %v", outB.err)
	}
	got, ok := outA.v.(value.Int)
	if !ok || int64(got) != 6 {
		t.Fatalf("expected role A to end up with 6, got %#v", outA.v)
	}
}

func TestBuiltinArithmetic(t *testing.T) {
	builtins := DefaultBuiltins(nil)
	add, ok := builtins["+"]
	if !ok {
		t.Fatal("expected a + builtin")
	}
	got, err := add([]value.Value{value.Int(2), value.Int(3)})
	if err != nil {
		t.Fatalf("+: %v", err)
	}
	if got.(value.Int) != 5 {
		t.Fatalf("expected 2+3=5, got %s", got.String())
	}
}

func TestEnvShadowing(t *testing.T) {
	outer := NewEnv()
	a := ast.NewBinding("x", token.Position{})
	outer.Bind(a, value.Int(1))

	inner := outer.Child()
	b := ast.NewBinding("x", token.Position{})
	inner.Bind(b, value.Int(2))

	if v, ok := inner.Lookup(a); !ok || v.(value.Int) != 1 {
		t.Fatalf("expected the outer binding to still resolve to 1, got %#v (ok=%v)", v, ok)
	}
	if v, ok := inner.Lookup(b); !ok || v.(value.Int) != 2 {
		t.Fatalf("expected the inner binding to resolve to 2, got %#v (ok=%v)", v, ok)
	}
}
