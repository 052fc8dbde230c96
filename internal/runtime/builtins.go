package runtime

import (
	"fmt"
	"math/big"

	"github.com/klor-lang/klor/internal/registry"
	"github.com/klor-lang/klor/internal/runtime/value"
)

// BuiltinFn is a host-language global function invocable from Var
// position: a pure function of its arguments, since the
// instrumentation and arithmetic builtins this compiler ships never
// need access back into the interpreter that calls them.
type BuiltinFn func(args []value.Value) (value.Value, error)

// DefaultBuiltins returns the fixed set of host globals every compiled
// program can call: arithmetic/comparison for the numeric examples in
// §8 (Diffie-Hellman's modpow, Increment's +), and the two
// instrumentation primitives internal/instrument's synthesized protocol
// invokes (§4.8). reg is nil-able; signature verification against a nil
// registry always succeeds, matching a program compiled with
// VerifySignature off.
func DefaultBuiltins(reg *registry.Registry) map[string]BuiltinFn {
	return map[string]BuiltinFn{
		"=":               builtinEqual,
		"+":               builtinArith(func(a, b *big.Int) *big.Int { return new(big.Int).Add(a, b) }),
		"-":               builtinArith(func(a, b *big.Int) *big.Int { return new(big.Int).Sub(a, b) }),
		"*":               builtinArith(func(a, b *big.Int) *big.Int { return new(big.Int).Mul(a, b) }),
		"modpow":          builtinModpow,
		"check-signature!": builtinCheckSignature(reg),
		"agreement-error":  builtinAgreementError,
	}
}

func builtinEqual(args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("= expects at least 2 arguments, got %d", len(args))
	}
	first := args[0].String()
	for _, a := range args[1:] {
		if a.String() != first {
			return value.Bool(false), nil
		}
	}
	return value.Bool(true), nil
}

func asBigInt(v value.Value) (*big.Int, error) {
	i, ok := v.(value.Int)
	if !ok {
		return nil, fmt.Errorf("expected an integer value, got %s", v.String())
	}
	return big.NewInt(int64(i)), nil
}

func builtinArith(op func(a, b *big.Int) *big.Int) BuiltinFn {
	return func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("arithmetic builtin expects 2 arguments, got %d", len(args))
		}
		a, err := asBigInt(args[0])
		if err != nil {
			return nil, err
		}
		b, err := asBigInt(args[1])
		if err != nil {
			return nil, err
		}
		return value.Int(op(a, b).Int64()), nil
	}
}

// builtinModpow is the three-argument modular exponentiation the
// Diffie-Hellman scenario (§8, E3) relies on: (modpow base exp modulus).
func builtinModpow(args []value.Value) (value.Value, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("modpow expects 3 arguments, got %d", len(args))
	}
	base, err := asBigInt(args[0])
	if err != nil {
		return nil, err
	}
	exp, err := asBigInt(args[1])
	if err != nil {
		return nil, err
	}
	mod, err := asBigInt(args[2])
	if err != nil {
		return nil, err
	}
	result := new(big.Int).Exp(base, exp, mod)
	return value.Int(result.Int64()), nil
}

// builtinCheckSignature realizes §4.8's runtime half of signature
// verification: internal/instrument embeds the *compile-time* rendered
// signature as a string constant at every Inst call site; this builtin
// re-renders the name's *current* registry entry the same way
// (registry's own renderSignature, mirrored in internal/instrument) and
// compares, so two separately-compiled role processes sharing a
// registry snapshot but disagreeing about a dependency's signature fail
// loudly at the call site rather than silently miscommunicating.
func builtinCheckSignature(reg *registry.Registry) BuiltinFn {
	return func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("check-signature! expects 2 arguments, got %d", len(args))
		}
		name, ok := args[0].(value.Str)
		if !ok {
			return nil, fmt.Errorf("check-signature! expects a name string")
		}
		expected, ok := args[1].(value.Str)
		if !ok {
			return nil, fmt.Errorf("check-signature! expects a signature string")
		}
		if reg == nil {
			return value.Nil{}, nil
		}
		def, ok := reg.Lookup(string(name))
		if !ok {
			return nil, fmt.Errorf("check-signature!: %q is not registered", name)
		}
		current := registry.RenderSignature(def.Roles, def.Signature)
		if current != string(expected) {
			return nil, fmt.Errorf("check-signature!: %q signature changed: compiled against %s, registry now has %s", name, expected, current)
		}
		return value.Nil{}, nil
	}
}

// builtinAgreementError formats the mismatched per-role values
// internal/instrument's synthesized Throw carries into a descriptive
// message; the interpreter's VisitThrow path turns the resulting value
// into the Go error returned from Eval.
func builtinAgreementError(args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Str("agreement check failed"), nil
	}
	param, _ := args[0].(value.Str)
	center, _ := args[1].(value.Str)
	msg := fmt.Sprintf("agreement check failed for %q at role %q: observed values ", param, center)
	for i, v := range args[2:] {
		if i > 0 {
			msg += ", "
		}
		msg += v.String()
	}
	return value.Str(msg), nil
}
