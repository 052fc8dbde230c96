// Package runtime is the library every projected endpoint program is
// executed against: it interprets the host+projection AST
// internal/project and internal/emit produce, resolving Send/Recv
// against a configured internal/transport.Transport and Invoke of a
// named choreography against a compiled definition table, performing
// argument/return erasure for play_role.
//
// A tree-walking, per-node-type dispatch over an Environment chain,
// narrowed to the fixed set of choreographic-origin node kinds this
// compiler ever needs to execute: a projected endpoint never contains
// Narrow/Copy/Lifting/Pack/Unpack/ChorNode at the choreographic level
// — those are eliminated by projection, see internal/project's own
// doc comment — so this interpreter only needs to handle the
// projected survivors: Noop/Send/Recv/MakeProjection plus every host
// node.
package runtime

import (
	"github.com/klor-lang/klor/internal/ast"
	"github.com/klor-lang/klor/internal/codec"
	"github.com/klor-lang/klor/internal/registry"
	"github.com/klor-lang/klor/internal/transport"
	"github.com/klor-lang/klor/internal/types"
)

// CompiledDef is one entry of the compiled definition table: a
// top-level defchor's original, unprojected shape exactly as
// registry.Definition stores it (role-parameter vector, params, body),
// keyed into Config.Defs under its registry name. ast.MakeProjection
// does not carry a ready-made endpoint for this definition — it names
// the definition and an index into its role-parameter vector — because
// the same definition can be instantiated at many different
// role-parameter positions across a program, each needing its own
// projection; see (*Interp).projectionFor, which projects Body for a
// given declared role lazily, on first use, and caches the result.
type CompiledDef struct {
	Name   string
	Roles  []types.Role // the definition's own declared role parameters
	Params []*ast.Binder
	Body   ast.Node
}

// Config is the per-process execution context a projected endpoint runs
// under: which role this process is playing, how it talks to its peers,
// how values are serialized over the wire, the compiled table of every
// other named choreography this one might Inst, and the role-remapping
// in effect because of (possibly nested) instantiation — §6.4's "a
// projected Chor value is represented as a small closure struct so
// returned choreography values can capture the caller's Config."
type Config struct {
	Role      types.Role
	Transport transport.Transport
	Codec     codec.Codec
	Registry  *registry.Registry
	Defs      map[string]*CompiledDef
	Builtins  map[string]BuiltinFn
	RoleMap   types.Subst // nil means identity
}

// remap translates a declared role name to its concrete instantiation
// role under the current Config, the runtime counterpart of
// check.checkInst's types.SubstituteByPosition.
func (c Config) remap(r types.Role) types.Role {
	if to, ok := c.RoleMap[r]; ok {
		return to
	}
	return r
}

// withRoleMap returns a copy of c whose RoleMap translates a nested
// Inst's declared roles through both sigma and c's own existing
// RoleMap, so instantiating a choreography from inside an
// already-instantiated one remaps consistently all the way out to the
// top-level role actually running this process.
func (c Config) withRoleMap(sigma types.Subst) Config {
	composed := make(types.Subst, len(sigma))
	for from, to := range sigma {
		composed[from] = c.remap(to)
	}
	c.RoleMap = composed
	return c
}
