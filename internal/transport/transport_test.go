package transport

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/klor-lang/klor/internal/types"
)

func TestLocatorLookup(t *testing.T) {
	l := Locator{types.Role("A"): "127.0.0.1:9000"}

	addr, err := l.Lookup(types.Role("A"))
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", addr)

	_, err = l.Lookup(types.Role("B"))
	require.Error(t, err)
	var notFound *ErrNotFound
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, types.Role("B"), notFound.Role)
}
