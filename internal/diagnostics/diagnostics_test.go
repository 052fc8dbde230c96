package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/klor-lang/klor/internal/token"
)

func TestBagRoutesBySeverity(t *testing.T) {
	var b Bag
	b.Add(New(TypeError, PhaseTypeCheck, token.Position{}, "x", "bad type"))
	b.Add(Warn(DefinitionError, PhaseTypeCheck, token.Position{}, "y", "signature changed"))

	require.True(t, b.HasErrors())
	require.Len(t, b.Errors, 1)
	require.Len(t, b.Warnings, 1)
	require.Equal(t, "bad type", b.First().Reason)
}

func TestBagAddIgnoresNil(t *testing.T) {
	var b Bag
	b.Add(nil)
	require.False(t, b.HasErrors())
	require.Nil(t, b.First())
}

func TestErrorStringOmitsZeroPosition(t *testing.T) {
	e := New(RoleError, PhaseRoleCheck, token.Position{}, "f", "role mismatch")
	require.Equal(t, "[rolecheck] error (RoleError): role mismatch", e.Error())
}

func TestErrorStringIncludesPosition(t *testing.T) {
	pos := token.Position{File: "a.klor", Line: 3, Column: 5}
	e := Newf(TypeError, PhaseTypeCheck, pos, "f", "wanted %s, got %s", "int", "str")
	require.Equal(t, pos.String()+": [typecheck] error (TypeError): wanted int, got str", e.Error())
}

func TestWarnfSeverity(t *testing.T) {
	e := Warnf(DefinitionError, PhaseTypeCheck, token.Position{}, "f", "changed from %s", "old")
	require.Equal(t, SeverityWarning, e.Severity)
	require.Equal(t, "changed from old", e.Reason)
}
