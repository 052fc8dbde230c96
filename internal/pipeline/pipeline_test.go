package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/klor-lang/klor/internal/diagnostics"
	"github.com/klor-lang/klor/internal/registry"
	"github.com/klor-lang/klor/internal/token"
	"github.com/klor-lang/klor/internal/types"
)

func TestPipelineRunsEveryStageInOrder(t *testing.T) {
	var order []string
	p := New(
		ProcessorFunc(func(ctx *Context) *Context {
			order = append(order, "first")
			return ctx
		}),
		ProcessorFunc(func(ctx *Context) *Context {
			order = append(order, "second")
			return ctx
		}),
	)
	ctx := &Context{FilePath: "t.klor", Registry: registry.New()}
	p.Run(ctx)

	require.Equal(t, []string{"first", "second"}, order)
}

func TestPipelineContinuesAfterAStageRecordsAnError(t *testing.T) {
	ran := false
	p := New(
		ProcessorFunc(func(ctx *Context) *Context {
			ctx.Diagnostics.Add(diagnostics.New(diagnostics.TypeError, diagnostics.PhaseTypeCheck, token.Position{}, "x", "boom"))
			return ctx
		}),
		ProcessorFunc(func(ctx *Context) *Context {
			ran = true
			return ctx
		}),
	)
	ctx := &Context{Registry: registry.New()}
	ctx = p.Run(ctx)

	require.True(t, ran, "expected the second stage to still run after the first recorded an error")
	require.True(t, ctx.Diagnostics.HasErrors())
	require.Equal(t, "boom", ctx.Diagnostics.First().Reason)
}

func TestContextFreeze(t *testing.T) {
	ctx := &Context{Registry: registry.New(), Roles: []types.Role{"A"}}
	require.False(t, ctx.Frozen, "expected a fresh Context to not be frozen")
	ctx.Freeze()
	require.True(t, ctx.Frozen, "expected Freeze to set Frozen")
}
