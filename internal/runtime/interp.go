package runtime

import (
	"context"
	"fmt"

	"github.com/klor-lang/klor/internal/ast"
	"github.com/klor-lang/klor/internal/project"
	"github.com/klor-lang/klor/internal/runtime/value"
	"github.com/klor-lang/klor/internal/types"
)

// Interp walks a projected endpoint program. One Interp is created per
// running role (internal/simulate spawns one per goroutine, cmd/klorc's
// "sim"/"build"-then-run path one per process), so its projection cache
// needs no locking: nothing else ever touches it concurrently.
type Interp struct {
	projCache map[string]projTemplate
}

// NewInterp returns a ready-to-use Interp with an empty projection
// cache.
func NewInterp() *Interp {
	return &Interp{projCache: make(map[string]projTemplate)}
}

// projTemplate is a defchor's Params/Body already projected for one
// particular declared role, independent of any particular invocation's
// Env or Config — the reusable half of what ast.MakeProjection needs.
type projTemplate struct {
	Params []*ast.Binder
	Body   []ast.Node
}

// projectionFor returns def's Params/Body projected for declaredRole,
// projecting and caching on first use. A definition can be instantiated
// at many different role-parameter positions across a program, each
// needing a distinct projection, hence the cache key combines the
// definition's name with the declared role being projected for.
func (interp *Interp) projectionFor(def *CompiledDef, declaredRole types.Role) projTemplate {
	key := def.Name + "\x00" + string(declaredRole)
	if t, ok := interp.projCache[key]; ok {
		return t
	}
	t := projTemplate{
		Params: project.FilterParams(def.Params, declaredRole),
		Body:   []ast.Node{project.Project(def.Body, declaredRole)},
	}
	interp.projCache[key] = t
	return t
}

// recurSignal unwinds from a Recur node back to the nearest enclosing
// Closure.Invoke, which catches it and restarts the body with rebound
// arguments rather than growing the Go call stack.
type recurSignal struct{ Args []value.Value }

func (r *recurSignal) Error() string { return "recur reached outside of a closure body" }

// thrownValue carries a host-language Throw's payload up through Eval's
// ordinary error return, caught by the nearest enclosing Try (or
// surfaced to the caller of Eval/Invoke as a Go error, for a throw that
// escapes every Try).
type thrownValue struct{ Value value.Value }

func (t *thrownValue) Error() string { return fmt.Sprintf("uncaught throw: %s", t.Value.String()) }

// builtinValue adapts a BuiltinFn to the invokable interface so Invoke
// can call a host global the same way it calls a Closure.
type builtinValue struct {
	name string
	fn   BuiltinFn
}

func (*builtinValue) isValue()          {}
func (b *builtinValue) String() string  { return "#<builtin " + b.name + ">" }
func (b *builtinValue) Arity() int      { return -1 }
func (b *builtinValue) Invoke(_ context.Context, args []value.Value) (value.Value, error) {
	return b.fn(args)
}

// invokable is implemented by every value Eval's Invoke case can call:
// *Closure and *builtinValue.
type invokable interface {
	Invoke(ctx context.Context, args []value.Value) (value.Value, error)
}

// Eval evaluates n under env/cfg, dispatching on the projected
// survivors (Noop/Send/Recv/MakeProjection) plus every host node a
// checked choreography body can still contain after projection — see
// this package's doc comment for why no choreographic-only node kinds
// (Narrow/Copy/Lifting/AgreeNode/the choreographic reading of
// ChorNode/Inst) ever reach here.
func (interp *Interp) Eval(ctx context.Context, n ast.Node, env *Env, cfg Config) (value.Value, error) {
	switch n := n.(type) {

	case *ast.Noop:
		return value.Nil{}, nil

	case *ast.Send:
		v, err := interp.Eval(ctx, n.Value, env, cfg)
		if err != nil {
			return nil, err
		}
		payload, err := cfg.Codec.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("runtime: encoding value for send to %s: %w", n.Dst, err)
		}
		if err := cfg.Transport.Send(ctx, cfg.remap(n.Dst), payload); err != nil {
			return nil, fmt.Errorf("runtime: send to %s: %w", n.Dst, err)
		}
		return v, nil

	case *ast.Recv:
		payload, err := cfg.Transport.Recv(ctx, cfg.remap(n.Src))
		if err != nil {
			return nil, fmt.Errorf("runtime: recv from %s: %w", n.Src, err)
		}
		v, err := cfg.Codec.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("runtime: decoding value received from %s: %w", n.Src, err)
		}
		return v, nil

	case *ast.MakeProjection:
		def, ok := cfg.Defs[n.Name]
		if !ok {
			return nil, fmt.Errorf("runtime: no compiled definition for %q", n.Name)
		}
		if n.RoleIndex < 0 || n.RoleIndex >= len(def.Roles) {
			return nil, fmt.Errorf("runtime: %q has no role parameter at index %d", n.Name, n.RoleIndex)
		}
		declaredRole := def.Roles[n.RoleIndex]
		tmpl := interp.projectionFor(def, declaredRole)
		sigma := types.SubstituteByPosition(def.Roles, n.IndexOfDst)
		return &Closure{
			Params: tmpl.Params,
			Body:   tmpl.Body,
			Env:    NewEnv(),
			Cfg:    cfg.withRoleMap(sigma),
			interp: interp,
		}, nil

	case *ast.ChorNode:
		return &Closure{Params: n.Params, Body: n.Body, Env: env, Cfg: cfg, interp: interp}, nil

	case *ast.Fn:
		return &Closure{Params: n.Params, Body: n.Body, Env: env, Cfg: cfg, interp: interp}, nil

	case *ast.Let:
		child := env.Child()
		for _, b := range n.Bindings {
			v, err := interp.Eval(ctx, b.Value, child, cfg)
			if err != nil {
				return nil, err
			}
			bindBinder(child, b.Binder, v)
		}
		return interp.evalSeq(ctx, n.Body, child, cfg)

	case *ast.Do:
		return interp.evalSeq(ctx, n.Exprs, env, cfg)

	case *ast.If:
		test, err := interp.Eval(ctx, n.Test, env, cfg)
		if err != nil {
			return nil, err
		}
		if truthy(test) {
			return interp.Eval(ctx, n.Then, env, cfg)
		}
		return interp.Eval(ctx, n.Else, env, cfg)

	case *ast.Case:
		test, err := interp.Eval(ctx, n.Test, env, cfg)
		if err != nil {
			return nil, err
		}
		for _, clause := range n.Clauses {
			for _, c := range clause.Consts {
				cv, err := interp.Eval(ctx, c, env, cfg)
				if err != nil {
					return nil, err
				}
				if cv.String() == test.String() {
					return interp.Eval(ctx, clause.Expr, env, cfg)
				}
			}
		}
		if n.Default != nil {
			return interp.Eval(ctx, n.Default, env, cfg)
		}
		return nil, fmt.Errorf("runtime: case has no matching clause and no default")

	case *ast.Invoke:
		fnVal, err := interp.Eval(ctx, n.Fn, env, cfg)
		if err != nil {
			return nil, err
		}
		args := make([]value.Value, len(n.Args))
		for i, a := range n.Args {
			v, err := interp.Eval(ctx, a, env, cfg)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		fn, ok := fnVal.(invokable)
		if !ok {
			return nil, fmt.Errorf("runtime: %s is not callable", fnVal.String())
		}
		return fn.Invoke(ctx, args)

	case *ast.Recur:
		args := make([]value.Value, len(n.Args))
		for i, a := range n.Args {
			v, err := interp.Eval(ctx, a, env, cfg)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return nil, &recurSignal{Args: args}

	case *ast.Local:
		v, ok := env.Lookup(n.Binding)
		if !ok {
			return nil, fmt.Errorf("runtime: unbound local %q", n.Name)
		}
		return v, nil

	case *ast.Var:
		if fn, ok := cfg.Builtins[n.Name]; ok {
			return &builtinValue{name: n.Name, fn: fn}, nil
		}
		return nil, fmt.Errorf("runtime: unknown global %q", n.Name)

	case *ast.TheVar:
		if fn, ok := cfg.Builtins[n.Name]; ok {
			return &builtinValue{name: n.Name, fn: fn}, nil
		}
		return nil, fmt.Errorf("runtime: unknown global %q", n.Name)

	case *ast.Quote:
		return constToValue(n.Form), nil

	case *ast.Const:
		return constToValue(n.Value), nil

	case *ast.WithMeta:
		return interp.Eval(ctx, n.Expr, env, cfg)

	case *ast.VectorNode:
		elems := make([]value.Value, len(n.Elems))
		for i, e := range n.Elems {
			v, err := interp.Eval(ctx, e, env, cfg)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return value.Vector{Elems: elems}, nil

	case *ast.Pack:
		elems := make([]value.Value, len(n.Exprs))
		for i, e := range n.Exprs {
			v, err := interp.Eval(ctx, e, env, cfg)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return value.Tuple{Elems: elems}, nil

	case *ast.MapNode:
		pairs := make([]value.Pair, len(n.Pairs))
		for i, p := range n.Pairs {
			k, err := interp.Eval(ctx, p.Key, env, cfg)
			if err != nil {
				return nil, err
			}
			v, err := interp.Eval(ctx, p.Val, env, cfg)
			if err != nil {
				return nil, err
			}
			pairs[i] = value.Pair{Key: k, Val: v}
		}
		return value.Map{Pairs: pairs}, nil

	case *ast.SetNode:
		elems := make([]value.Value, len(n.Elems))
		for i, e := range n.Elems {
			v, err := interp.Eval(ctx, e, env, cfg)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return value.Set{Elems: elems}, nil

	case *ast.Unpack:
		initVal, err := interp.Eval(ctx, n.Init, env, cfg)
		if err != nil {
			return nil, err
		}
		child := env.Child()
		bindBinder(child, n.Binder, initVal)
		return interp.evalSeq(ctx, n.Body, child, cfg)

	case *ast.Throw:
		v, err := interp.Eval(ctx, n.Expr, env, cfg)
		if err != nil {
			return nil, err
		}
		return nil, &thrownValue{Value: v}

	case *ast.Try:
		v, err := interp.evalSeq(ctx, n.Body, env.Child(), cfg)
		if thrown, ok := err.(*thrownValue); ok && len(n.Catches) > 0 {
			cat := n.Catches[0]
			child := env.Child()
			if cat.Binder != nil {
				bindBinder(child, cat.Binder, thrown.Value)
			}
			v, err = interp.evalSeq(ctx, cat.Body, child, cfg)
		}
		if len(n.Finally) > 0 {
			if _, ferr := interp.evalSeq(ctx, n.Finally, env.Child(), cfg); ferr != nil {
				return nil, ferr
			}
		}
		return v, err

	case *ast.NewNode, *ast.InstanceCall, *ast.InstanceField, *ast.StaticCall, *ast.StaticField:
		// Host object interop (instantiating and calling into foreign
		// classes) has no equivalent in a choreography's surface
		// language; nothing ever constructs or calls a host object here.
		return nil, fmt.Errorf("runtime: host object interop is not supported by this interpreter")

	default:
		return nil, fmt.Errorf("runtime: cannot evaluate node of type %T", n)
	}
}

// evalSeq evaluates nodes in order, returning the last result — the
// implicit-Do semantics every multi-expression body in this language
// shares (Let/Do/Unpack/Try bodies, Closure.Invoke's own body loop).
func (interp *Interp) evalSeq(ctx context.Context, nodes []ast.Node, env *Env, cfg Config) (value.Value, error) {
	var result value.Value = value.Nil{}
	for _, n := range nodes {
		v, err := interp.Eval(ctx, n, env, cfg)
		if err != nil {
			return nil, err
		}
		result = v
	}
	return result, nil
}

// truthy reports whether v counts as true in an If/Case test position:
// every value other than Bool(false) and Nil is truthy.
func truthy(v value.Value) bool {
	switch v := v.(type) {
	case value.Bool:
		return bool(v)
	case value.Nil:
		return false
	default:
		return true
	}
}

// constToValue converts a parsed literal (as stored in ast.Const.Value
// or ast.Quote.Form) into its runtime.Value representation.
func constToValue(v interface{}) value.Value {
	switch v := v.(type) {
	case nil:
		return value.Nil{}
	case bool:
		return value.Bool(v)
	case int:
		return value.Int(int64(v))
	case int64:
		return value.Int(v)
	case float64:
		return value.Float(v)
	case string:
		return value.Str(v)
	default:
		return value.Str(fmt.Sprintf("%v", v))
	}
}
