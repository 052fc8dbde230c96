package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/klor-lang/klor/internal/runtime/value"
	"github.com/klor-lang/klor/internal/types"
)

func TestParseLiteral(t *testing.T) {
	cases := []struct {
		in   string
		want value.Value
	}{
		{"true", value.Bool(true)},
		{"false", value.Bool(false)},
		{"42", value.Int(42)},
		{"-7", value.Int(-7)},
		{"3.5", value.Float(3.5)},
		{"hello", value.Str("hello")},
	}
	for _, tc := range cases {
		got, err := parseLiteral(tc.in)
		require.NoError(t, err, "parseLiteral(%q)", tc.in)
		require.Equal(t, tc.want.String(), got.String(), "parseLiteral(%q)", tc.in)
	}
}

func TestSplitArgSpec(t *testing.T) {
	role, lit, err := splitArgSpec("A=5")
	require.NoError(t, err)
	require.Equal(t, types.Role("A"), role)
	require.Equal(t, "5", lit)

	_, _, err = splitArgSpec("noequals")
	require.Error(t, err, "expected an error for a spec with no '='")
}

func TestRoleInVector(t *testing.T) {
	roles := []types.Role{"A", "B"}
	require.True(t, roleInVector("A", roles))
	require.False(t, roleInVector("C", roles))
}
