// Package pipeline wires the compiler's passes into an ordered chain: a
// sequence of Processor stages run over a shared Context, continuing on
// error so later stages can still contribute diagnostics (a language
// server, for instance, wants both parse and semantic errors from a
// single pass over a file).
package pipeline

import (
	"github.com/klor-lang/klor/internal/ast"
	"github.com/klor-lang/klor/internal/config"
	"github.com/klor-lang/klor/internal/diagnostics"
	"github.com/klor-lang/klor/internal/registry"
	"github.com/klor-lang/klor/internal/types"
)

// Context threads compiler state through every pipeline stage. It is
// the "single context object" (§9) in place of process-wide globals:
// stages reach shared state through their Context, not package-level
// variables. Registry is the registry the unit of work installs into and
// may be shared by several Contexts; Config is optional (internal/driver
// leaves it nil).
//
// internal/driver builds one Context per top-level defchor for its
// second pass (rolecheck, typecheck, instrument, commit): one Context
// per unit of work run through a shared stage list, narrowed here from
// a whole file to a single definition.
type Context struct {
	FilePath string
	Source   string

	AstRoot ast.Node // the committed body, set once the commit stage runs

	DefName string
	Roles   []types.Role
	Sig     types.Chor
	Params  []*ast.Binder

	// Body is the working multi-expression body threaded between
	// stages; AstRoot is only populated once CommitStage collapses it to
	// the single node registry.Definition.Body expects.
	Body []ast.Node

	Registry *registry.Registry
	Config   *config.Registry

	Diagnostics diagnostics.Bag

	// Frozen is set once C5's final check has run; Freeze() sets it and
	// later stages (C6, C9) may assert it is set before reading shared
	// registry state, per §9's "explicit freeze point".
	Frozen bool
}

// Freeze marks the context's shared state (the registry) as closed to
// further mutation before projection begins.
func (c *Context) Freeze() { c.Frozen = true }

// Errors returns every fatal diagnostic recorded by the stages so far.
func (c *Context) Errors() []*diagnostics.Error { return c.Diagnostics.Errors }

// Processor is a single pipeline stage.
type Processor interface {
	Process(ctx *Context) *Context
}

// ProcessorFunc adapts a plain function to the Processor interface.
type ProcessorFunc func(ctx *Context) *Context

func (f ProcessorFunc) Process(ctx *Context) *Context { return f(ctx) }

// Pipeline is an ordered sequence of processing stages.
type Pipeline struct {
	stages []Processor
}

// New builds a Pipeline from an ordered list of stages.
func New(stages ...Processor) *Pipeline {
	return &Pipeline{stages: stages}
}

// Run executes every stage in order, threading ctx through each. Stages
// are expected to check ctx.Diagnostics.HasErrors() themselves if a
// fatal error in an earlier stage should short-circuit their own work;
// the Pipeline itself never stops early, so that diagnostics from every
// stage that *can* still run are collected.
func (p *Pipeline) Run(ctx *Context) *Context {
	for _, stage := range p.stages {
		ctx = stage.Process(ctx)
	}
	return ctx
}
