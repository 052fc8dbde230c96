// Package driver wires the compiler's front-end passes
// (internal/reader, internal/parser, internal/rolecheck,
// internal/check, internal/instrument, internal/registry) into the
// two-pass compilation
// sequence §4.7 rule 1 requires — "install every top-level signature
// before analyzing any body" — so that forward declaration and mutual
// recursion (§8's E6 scenario) resolve correctly regardless of
// declaration order. Projection and emission (internal/project,
// internal/emit) are not run here; cmd/klorc calls them on the result.
//
// A multi-pass compile driver — parse-all, then resolve-all, then
// analyze-all, each a separate loop over the same file — narrowed
// from "one file, one pass per concern" to "one file, one registry
// install pass then one check-instrument-commit pass".
package driver

import (
	"fmt"

	"github.com/klor-lang/klor/internal/ast"
	"github.com/klor-lang/klor/internal/check"
	"github.com/klor-lang/klor/internal/config"
	"github.com/klor-lang/klor/internal/diagnostics"
	"github.com/klor-lang/klor/internal/instrument"
	"github.com/klor-lang/klor/internal/parser"
	"github.com/klor-lang/klor/internal/pipeline"
	"github.com/klor-lang/klor/internal/reader"
	"github.com/klor-lang/klor/internal/registry"
	"github.com/klor-lang/klor/internal/rolecheck"
	"github.com/klor-lang/klor/internal/runtime"
	"github.com/klor-lang/klor/internal/token"
)

// Unit is one source file's compiled output: its registry (populated
// with every top-level definition in the file, signatures and bodies
// both) and the CompiledDef table internal/runtime and internal/simulate
// need to evaluate any of them.
type Unit struct {
	Registry *registry.Registry
	Defs     map[string]*runtime.CompiledDef
	Warnings []*diagnostics.Error
}

// Compile runs a whole source file through read, parse, install,
// rolecheck, typecheck, instrument and commit, in that order, against a
// fresh Registry. A non-nil error is a fmt.Errorf wrapper: around the
// first *diagnostics.Error for parse, role, type, instrumentation and
// commit failures, and around a plain error for a read failure or a
// file with no defchor forms. The caller is expected to print it rather
// than pattern-match it further (see cmd/klorc, which does exactly that).
func Compile(file, source string, opts config.Options) (*Unit, error) {
	return CompileInto(registry.New(), file, source, opts)
}

// CompileInto is Compile against a caller-supplied registry, so a
// caller driving several files that reference each other (a future
// extension §9 leaves open; this implementation only ever calls it with
// a fresh Registry from one file) can accumulate definitions across
// calls.
func CompileInto(reg *registry.Registry, file, source string, opts config.Options) (*Unit, error) {
	forms, err := reader.New(file, source).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: read: %w", file, err)
	}
	defs, err := parser.New(file).ParseTopLevel(forms)
	if err != nil {
		return nil, fmt.Errorf("%s: parse: %w", file, err)
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("%s: no top-level defchor forms", file)
	}

	unit := &Unit{Registry: reg, Defs: make(map[string]*runtime.CompiledDef, len(defs))}

	// Pass 1 — install every signature first (§4.7 rule 1), so pass 2's
	// self- and forward-references all resolve regardless of the order
	// defchor forms appear in the file.
	rollbacks := make([]func(), 0, len(defs))
	for _, d := range defs {
		sig := registry.FillTopLevelAux(d.Roles, d.Sig)
		res := reg.Install(d.Pos, d.Name, d.Roles, sig)
		if res.Warning != nil {
			unit.Warnings = append(unit.Warnings, res.Warning)
		}
		rollbacks = append(rollbacks, res.Rollback)
	}

	rollbackAll := func() {
		for i := len(rollbacks) - 1; i >= 0; i-- {
			rollbacks[i]()
		}
	}

	// Pass 2 — rolecheck, typecheck, instrument and commit each body, one
	// pipeline.Context per definition run through a shared stage list
	// (roleCheckStage -> typeCheckStage -> instrumentStage ->
	// commitStage), per pipeline.Pipeline's "keep going, let every stage
	// that can still run contribute diagnostics" contract.
	stages := pipeline.New(
		pipeline.ProcessorFunc(roleCheckStage),
		pipeline.ProcessorFunc(typeCheckStage),
		pipeline.ProcessorFunc(instrumentStage(reg, opts)),
		pipeline.ProcessorFunc(commitStage(reg)),
	)

	for _, d := range defs {
		if !d.HasBody {
			continue // forward declaration: pass 1 installed its signature
		}
		ctx := &pipeline.Context{
			FilePath: file,
			Source:   source,
			DefName:  d.Name,
			Roles:    d.Roles,
			Sig:      registry.FillTopLevelAux(d.Roles, d.Sig),
			Params:   d.Params,
			Body:     d.Body,
			Registry: reg,
		}
		ctx = stages.Run(ctx)
		if ctx.Diagnostics.HasErrors() {
			rollbackAll()
			return nil, fmt.Errorf("%s: %q: %w", file, d.Name, ctx.Diagnostics.First())
		}

		unit.Defs[d.Name] = &runtime.CompiledDef{
			Name:   d.Name,
			Roles:  d.Roles,
			Params: d.Params,
			Body:   ctx.AstRoot,
		}
	}

	return unit, nil
}

// roleCheckStage runs internal/rolecheck over the working body, per
// §4.4's "checked before type-checking since a role error makes a type
// error meaningless."
func roleCheckStage(ctx *pipeline.Context) *pipeline.Context {
	pos := token.Position{File: ctx.FilePath}
	if len(ctx.Body) > 0 {
		pos = posOf(ctx.Body[0])
	}
	for _, rerr := range rolecheck.Check(ast.NewDo(pos, ctx.Body), ctx.Roles) {
		ctx.Diagnostics.Add(rerr)
	}
	return ctx
}

// typeCheckStage runs internal/check.CheckDefinition, skipping if an
// earlier stage already failed (a role error leaves binder types
// unresolved, so the checker would only produce confusing follow-on
// errors).
func typeCheckStage(ctx *pipeline.Context) *pipeline.Context {
	if ctx.Diagnostics.HasErrors() {
		return ctx
	}
	c := check.New(ctx.Registry)
	c.CheckDefinition(ctx.Roles, ctx.Sig, ctx.Params, ctx.Body)
	for _, e := range c.Errors() {
		ctx.Diagnostics.Add(e)
	}
	return ctx
}

// instrumentStage splices in the configured dynamic checks (C8) and
// re-checks the result, per §4.8's "the whole AST is re-checked because
// the synthetic instrumentation may widen rmentions." A no-op when
// neither check is enabled.
func instrumentStage(reg *registry.Registry, opts config.Options) pipeline.ProcessorFunc {
	return func(ctx *pipeline.Context) *pipeline.Context {
		if ctx.Diagnostics.HasErrors() {
			return ctx
		}
		if !opts.VerifySignature && !opts.VerifyAgreement.Enabled {
			return ctx
		}
		instrumented, err := instrument.Instrument(ctx.Roles, ctx.Params, ctx.Body, reg, opts)
		if err != nil {
			pos := token.Position{File: ctx.FilePath}
			ctx.Diagnostics.Add(diagnostics.Newf(diagnostics.InstrumentationError, diagnostics.PhaseInstrument, pos, ctx.DefName, "%v", err))
			return ctx
		}
		recheck := check.New(reg)
		recheck.CheckDefinition(ctx.Roles, ctx.Sig, ctx.Params, instrumented)
		for _, e := range recheck.Errors() {
			ctx.Diagnostics.Add(e)
		}
		if !ctx.Diagnostics.HasErrors() {
			ctx.Body = instrumented
		}
		return ctx
	}
}

// commitStage collapses the working body to the single ast.Node
// registry.Definition.Body expects and commits it, freezing the context
// per §9's "explicit freeze point before projection begins."
func commitStage(reg *registry.Registry) pipeline.ProcessorFunc {
	return func(ctx *pipeline.Context) *pipeline.Context {
		if ctx.Diagnostics.HasErrors() {
			return ctx
		}
		pos := token.Position{File: ctx.FilePath}
		if len(ctx.Body) > 0 {
			pos = posOf(ctx.Body[0])
		}
		committed := bodyNode(pos, ctx.Body)
		if err := reg.Commit(ctx.DefName, committed); err != nil {
			ctx.Diagnostics.Add(diagnostics.Newf(diagnostics.DefinitionError, diagnostics.PhaseTypeCheck, pos, ctx.DefName, "%v", err))
			return ctx
		}
		ctx.AstRoot = committed
		ctx.Freeze()
		return ctx
	}
}

// posOf is a small readability alias for n.Pos(), used where a body's
// leading node stands in for the whole body's source position.
func posOf(n ast.Node) token.Position {
	return n.Pos()
}

// bodyNode collapses a top-level defchor's multi-expression body into
// the single ast.Node registry.Definition.Body and runtime.CompiledDef.Body
// expect, matching internal/project's own projSeq convention: one
// expression passes through bare, more than one is wrapped in a Do.
func bodyNode(pos token.Position, body []ast.Node) ast.Node {
	if len(body) == 1 {
		return body[0]
	}
	return ast.NewDo(pos, body)
}
