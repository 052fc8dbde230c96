package klor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const incSource = `(defchor inc [A B] (-> A A) [x] (B->A (B (+ (A->B x) 1))))`

func TestCompileReportsDefinitions(t *testing.T) {
	prog, err := Compile("inc.klor", incSource, Options{})
	require.NoError(t, err)
	require.Len(t, prog.Definitions, 1)
	require.Equal(t, "inc", prog.Definitions[0].Name)
	require.ElementsMatch(t, []string{"A", "B"}, prog.Definitions[0].Roles)
}

func TestProjectReturnsRoleSpecificSource(t *testing.T) {
	prog, err := Compile("inc.klor", incSource, Options{})
	require.NoError(t, err)

	forA, err := prog.Project("inc", "A")
	require.NoError(t, err)
	require.NotEmpty(t, forA)

	forB, err := prog.Project("inc", "B")
	require.NoError(t, err)
	require.NotEmpty(t, forB)
	require.NotEqual(t, forA, forB)
}

func TestSimulateIncrementsAcrossRoles(t *testing.T) {
	prog, err := Compile("inc.klor", incSource, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	results, log, err := prog.Simulate(ctx, "inc", map[string][]interface{}{
		"A": {int64(41)},
	})
	require.NoError(t, err)
	require.Equal(t, int64(42), results["A"])
	require.NotEmpty(t, log)
}

func TestProjectUnknownDefinitionErrors(t *testing.T) {
	prog, err := Compile("inc.klor", incSource, Options{})
	require.NoError(t, err)

	_, err = prog.Project("nope", "A")
	require.Error(t, err)
}
