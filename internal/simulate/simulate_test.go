package simulate

import (
	"context"
	"testing"
	"time"

	"github.com/klor-lang/klor/internal/check"
	"github.com/klor-lang/klor/internal/codec"
	"github.com/klor-lang/klor/internal/parser"
	"github.com/klor-lang/klor/internal/reader"
	"github.com/klor-lang/klor/internal/registry"
	"github.com/klor-lang/klor/internal/runtime/value"
	"github.com/klor-lang/klor/internal/types"
)

// TestRunIncrement exercises §8's E1 scenario (Testable Property 6,
// "simulation agreement"): A sends 5 to B, B increments and sends 6
// back, and both the per-role result and the communication log reflect
// that exactly.
func TestRunIncrement(t *testing.T) {
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

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	args := map[types.Role][]value.Value{
		types.Role("A"): {value.Int(5)},
	}
	results, log := Run(ctx, def.Roles, def.Params, def.Body[0], codec.JSON{}, args)

	if err := results[types.Role("A")].Err; err != nil {
		t.Fatalf("role A: %v", err)
	}
	if err := results[types.Role("B")].Err; err != nil {
		t.Fatalf("role B: %v", err)
	}
	got, ok := results[types.Role("A")].Value.(value.Int)
	if !ok || int64(got) != 6 {
		t.Fatalf("expected role A's result to be 6, got %#v", results[types.Role("A")].Value)
	}

	if len(log) != 2 {
		t.Fatalf("expected exactly 2 communications (A->B, B->A), got %d: %#v", len(log), log)
	}
	if log[0].From != "A" || log[0].To != "B" || log[0].Value != "5" {
		t.Fatalf("expected the first entry to be A->B:5, got %#v", log[0])
	}
	if log[1].From != "B" || log[1].To != "A" || log[1].Value != "6" {
		t.Fatalf("expected the second entry to be B->A:6, got %#v", log[1])
	}
}
