package runtime

import (
	"context"
	"fmt"

	"github.com/klor-lang/klor/internal/runtime/value"
	"github.com/klor-lang/klor/internal/types"
)

// PlayRole is the host-facing entry point §6.4 names: it invokes a
// top-level choreography's projection for cfg.Role, applying the
// argument and return-value erasure a single host-side call site needs
// because, unlike an endpoint's own Send/Recv, play_role is the one
// place a plain host value (not itself produced by this interpreter)
// crosses into a choreography's typed parameter list.
//
// sig is the choreography's declared (pre-erasure) signature, exactly
// as the checker/registry recorded it; chor is already the endpoint
// projected for cfg.Role (an *ast.MakeProjection/*ast.ChorNode
// evaluated to a *Closure, or any other value.Callable — a host Fn
// closure, say); args are the full, un-erased argument values a human
// caller would naturally supply.
func PlayRole(ctx context.Context, cfg Config, sig types.Chor, chor value.Callable, args []value.Value) (value.Value, error) {
	fn, ok := chor.(invokable)
	if !ok {
		return nil, fmt.Errorf("runtime: play_role value is not invokable")
	}
	erased, err := eraseArgs(cfg.Role, sig.Params, args)
	if err != nil {
		return nil, err
	}
	result, err := fn.Invoke(ctx, erased)
	if err != nil {
		return nil, err
	}
	return eraseReturn(cfg.Role, sig.Ret, result), nil
}

// eraseArgs drops every positional argument whose declared type does
// not mention role (§6.4 "parameters whose type does not mention the
// role are omitted"); an agreement-typed parameter always mentions
// every one of its roles, so it is kept automatically by the same
// check rather than needing a separate case. A parameter whose type is
// a Tuple or Chor is rejected outright — §6.4 is explicit that such
// parameters "cannot be passed in from the host" as a bare value; the
// caller must wrap the choreography itself instead of a raw argument.
func eraseArgs(role types.Role, paramTypes []types.Type, args []value.Value) ([]value.Value, error) {
	var kept []value.Value
	for i, pt := range paramTypes {
		if i >= len(args) {
			break
		}
		if !types.RolesOf(pt).Contains(role) {
			continue
		}
		switch pt.(type) {
		case types.Tuple, types.Chor:
			return nil, fmt.Errorf("runtime: play_role parameter %d has type %s, which cannot be passed in from the host; wrap the choreography instead", i, pt.String())
		}
		kept = append(kept, args[i])
	}
	return kept, nil
}

// eraseReturn is the symmetric counterpart for the result: a Tuple
// return type keeps only the positions whose type mentions role,
// collapsing to a single value when exactly one survives and to Nil
// when none do; any other return type (including Chor, whose value is
// already a *Closure capturing cfg) passes through unerased.
func eraseReturn(role types.Role, ret types.Type, result value.Value) value.Value {
	tup, isTuple := ret.(types.Tuple)
	if !isTuple {
		return result
	}
	resultTuple, ok := result.(value.Tuple)
	if !ok {
		return result
	}
	var kept []value.Value
	for i, et := range tup.Elems {
		if i >= len(resultTuple.Elems) {
			break
		}
		if types.RolesOf(et).Contains(role) {
			kept = append(kept, resultTuple.Elems[i])
		}
	}
	switch len(kept) {
	case 0:
		return value.Nil{}
	case 1:
		return kept[0]
	default:
		return value.Tuple{Elems: kept}
	}
}
