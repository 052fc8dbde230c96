// Package klor is the embeddable library surface for compiling,
// projecting and simulating choreographies from a host Go program —
// §1.1's "a library that an embedding Go program can import". cmd/klorc
// does not import this package; its build/sim/check subcommands make the
// same internal calls (driver, project/emit, simulate) directly.
//
// Host-facing values never leak internal/ast, internal/types or
// internal/runtime/value types directly — arguments and results are
// translated to plain Go values (bool/int64/float64/string/[]interface{}/
// map[string]interface{}) at this package's boundary, a Marshaller-style
// translation between host Go values and the internal Object
// representation.
package klor

import (
	"context"
	"fmt"

	"github.com/klor-lang/klor/internal/codec"
	"github.com/klor-lang/klor/internal/config"
	"github.com/klor-lang/klor/internal/driver"
	"github.com/klor-lang/klor/internal/emit"
	"github.com/klor-lang/klor/internal/project"
	"github.com/klor-lang/klor/internal/runtime/value"
	"github.com/klor-lang/klor/internal/simulate"
	"github.com/klor-lang/klor/internal/types"
)

// Definition describes one compiled top-level defchor.
type Definition struct {
	Name  string
	Roles []string
}

// Program is a successfully compiled source file: its installed
// registry plus every top-level definition it declares, ready to be
// projected or simulated.
type Program struct {
	unit        *driver.Unit
	Definitions []Definition
}

// Options is the embedding-facing subset of internal/config.Options —
// only the switches a host program should ever need to set directly.
type Options struct {
	// VerifySignature turns on C8's dynamic signature check.
	VerifySignature bool
	// VerifyAgreement turns on C8's dynamic agreement check.
	VerifyAgreement bool
	// CentralAgreementRole, set only when VerifyAgreement is true, runs
	// agreement verification centralized at that role instead of the
	// default decentralized pairwise-broadcast form.
	CentralAgreementRole string
}

func (o Options) toInternal() config.Options {
	opts := config.DefaultOptions()
	opts.VerifySignature = o.VerifySignature
	if o.VerifyAgreement {
		if o.CentralAgreementRole != "" {
			opts.VerifyAgreement = config.AgreementVerification{Enabled: true, CentralAt: types.Role(o.CentralAgreementRole)}
		} else {
			opts.VerifyAgreement = config.AgreementVerification{Enabled: true, Decentralized: true}
		}
	}
	return opts
}

// Compile reads, parses, role-checks, type-checks, (optionally)
// instruments and commits every top-level defchor in source. file
// names the source only for diagnostics; source need not
// be read from disk by the caller.
func Compile(file, source string, opts Options) (*Program, error) {
	unit, err := driver.Compile(file, source, opts.toInternal())
	if err != nil {
		return nil, err
	}
	p := &Program{unit: unit}
	for name, def := range unit.Defs {
		roles := make([]string, len(def.Roles))
		for i, r := range def.Roles {
			roles[i] = string(r)
		}
		p.Definitions = append(p.Definitions, Definition{Name: name, Roles: roles})
	}
	return p, nil
}

// Project returns defName's body re-serialized after being projected
// onto role — the same source text cmd/klorc build writes to disk, one
// file per role.
func (p *Program) Project(defName, role string) (string, error) {
	def, ok := p.unit.Defs[defName]
	if !ok {
		return "", fmt.Errorf("klor: no definition named %q", defName)
	}
	body := project.Project(def.Body, types.Role(role))
	return emit.New(emit.DefaultOptions()).Emit(body), nil
}

// Simulate runs every role of defName concurrently over an in-memory
// transport, the engine behind cmd/klorc sim, returning each role's
// final result and the ordered communication log as "From -> To: value"
// lines. A role that errors is omitted from results and its error is
// returned (wrapped) once every role has finished.
func (p *Program) Simulate(ctx context.Context, defName string, args map[string][]interface{}) (results map[string]interface{}, log []string, err error) {
	def, ok := p.unit.Defs[defName]
	if !ok {
		return nil, nil, fmt.Errorf("klor: no definition named %q", defName)
	}

	vArgs := make(map[types.Role][]value.Value, len(args))
	for role, vals := range args {
		converted := make([]value.Value, len(vals))
		for i, v := range vals {
			cv, convErr := toValue(v)
			if convErr != nil {
				return nil, nil, fmt.Errorf("klor: argument %d for role %s: %w", i, role, convErr)
			}
			converted[i] = cv
		}
		vArgs[types.Role(role)] = converted
	}

	simResults, entries := simulate.Run(ctx, def.Roles, def.Params, def.Body, codec.JSON{}, vArgs)

	results = make(map[string]interface{}, len(simResults))
	for role, res := range simResults {
		if res.Err != nil {
			if err == nil {
				err = fmt.Errorf("klor: role %s: %w", role, res.Err)
			}
			continue
		}
		results[string(role)] = fromValue(res.Value)
	}
	log = make([]string, len(entries))
	for i, e := range entries {
		log[i] = fmt.Sprintf("%s -> %s: %s", e.From, e.To, e.Value)
	}
	return results, log, err
}

// toValue translates a plain Go value supplied by a host program into
// the runtime's Value representation, the inverse of fromValue.
func toValue(v interface{}) (value.Value, error) {
	switch t := v.(type) {
	case nil:
		return value.Nil{}, nil
	case bool:
		return value.Bool(t), nil
	case int:
		return value.Int(int64(t)), nil
	case int64:
		return value.Int(t), nil
	case float32:
		return value.Float(float64(t)), nil
	case float64:
		return value.Float(t), nil
	case string:
		return value.Str(t), nil
	case []interface{}:
		elems := make([]value.Value, len(t))
		for i, e := range t {
			cv, err := toValue(e)
			if err != nil {
				return nil, err
			}
			elems[i] = cv
		}
		return value.Vector{Elems: elems}, nil
	default:
		return nil, fmt.Errorf("klor: unsupported argument type %T", v)
	}
}

// fromValue is toValue's inverse for results coming back out of a
// simulated run.
func fromValue(v value.Value) interface{} {
	switch t := v.(type) {
	case value.Nil:
		return nil
	case value.Bool:
		return bool(t)
	case value.Int:
		return int64(t)
	case value.Float:
		return float64(t)
	case value.Str:
		return string(t)
	case value.Vector:
		return fromValueSlice(t.Elems)
	case value.Tuple:
		return fromValueSlice(t.Elems)
	case value.Set:
		return fromValueSlice(t.Elems)
	case value.Map:
		out := make(map[string]interface{}, len(t.Pairs))
		for _, pair := range t.Pairs {
			out[pair.Key.String()] = fromValue(pair.Val)
		}
		return out
	default:
		return v.String()
	}
}

func fromValueSlice(elems []value.Value) []interface{} {
	out := make([]interface{}, len(elems))
	for i, e := range elems {
		out[i] = fromValue(e)
	}
	return out
}
