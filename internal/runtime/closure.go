package runtime

import (
	"context"

	"github.com/klor-lang/klor/internal/ast"
	"github.com/klor-lang/klor/internal/runtime/value"
)

// Closure is the runtime representation of every first-class function
// value this interpreter produces: a projected ast.ChorNode or host
// ast.Fn body closing over the Env active where it was created, plus —
// for a choreography value specifically — the Config that pins down
// which transport/role it will run against once invoked (§6.4's "a
// projected Chor value is represented as a small closure struct so
// returned choreography values can capture the caller's Config, rather
// than at projection time," the comment internal/project's projectChor
// already anticipates).
type Closure struct {
	Params []*ast.Binder
	Body   []ast.Node
	Env    *Env
	Cfg    Config
	interp *Interp
}

// NewClosure builds a top-level closure ready to Invoke, the
// constructor callers outside this package (internal/simulate,
// cmd/klorc) use to turn a projected program into something runnable
// without reaching into Closure's unexported interp field.
func NewClosure(params []*ast.Binder, body []ast.Node, env *Env, cfg Config) *Closure {
	return &Closure{Params: params, Body: body, Env: env, Cfg: cfg, interp: NewInterp()}
}

func (*Closure) isValue() {}
func (c *Closure) String() string { return "#<closure>" }
func (c *Closure) Arity() int     { return len(c.Params) }

// Invoke applies c to args, binding each parameter binder in a fresh
// child environment and evaluating the body in sequence (§4.3's
// multi-expression Chor/Fn bodies act like an implicit Do). A Recur
// reaching the top of the body rebinds args and restarts the body in a
// fresh frame rather than growing the Go call stack, trading stack depth
// for an explicit loop at the one point tail recursion can reach.
func (c *Closure) Invoke(ctx context.Context, args []value.Value) (value.Value, error) {
	for {
		env := c.Env.Child()
		for i, p := range c.Params {
			if i < len(args) {
				bindBinder(env, p, args[i])
			}
		}
		var result value.Value = value.Nil{}
		var recur *recurSignal
		for _, n := range c.Body {
			v, err := c.interp.Eval(ctx, n, env, c.Cfg)
			if err != nil {
				if rs, ok := err.(*recurSignal); ok {
					recur = rs
					break
				}
				return nil, err
			}
			result = v
		}
		if recur != nil {
			args = recur.Args
			continue
		}
		return result, nil
	}
}
