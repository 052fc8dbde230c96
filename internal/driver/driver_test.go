package driver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/klor-lang/klor/internal/config"
	"github.com/klor-lang/klor/internal/registry"
)

func TestCompileIncrementProducesCompiledDef(t *testing.T) {
	unit, err := Compile("inc.klor", `(defchor inc [A B] (-> A A) [x] (B->A (B (+ (A->B x) 1))))`, config.DefaultOptions())
	require.NoError(t, err)

	def, ok := unit.Defs["inc"]
	require.True(t, ok, "expected a compiled definition named inc")
	require.Len(t, def.Roles, 2)

	_, ok = unit.Registry.Lookup("inc")
	require.True(t, ok, "expected inc to be installed in the registry")
}

func TestCompileRejectsTypeError(t *testing.T) {
	_, err := Compile("bad.klor", `(defchor bad [A B] (-> A A) [x] (A->B x))`, config.DefaultOptions())
	require.Error(t, err, "expected a type error for a mismatched return role")
}

// TestCompileForwardDeclaredMutualRecursion exercises §8's E6 scenario:
// two definitions referencing each other regardless of which is
// declared first, resolved only because pass 1 installs every signature
// before pass 2 checks any body.
func TestCompileForwardDeclaredMutualRecursion(t *testing.T) {
	src := `
(defchor isEven [A] (-> A A) [n]
  (if (= n 0) 1 (isOdd [A] (- n 1))))
(defchor isOdd [A] (-> A A) [n]
  (if (= n 0) 0 (isEven [A] (- n 1))))
`
	unit, err := Compile("mutual.klor", src, config.DefaultOptions())
	require.NoError(t, err)

	_, ok := unit.Defs["isEven"]
	require.True(t, ok, "expected isEven to compile")
	_, ok = unit.Defs["isOdd"]
	require.True(t, ok, "expected isOdd to compile")
}

func TestCompileIntoSharesRegistryAcrossCalls(t *testing.T) {
	reg := registry.New()
	_, err := CompileInto(reg, "a.klor", `(defchor inc [A B] (-> A A) [x] (B->A (B (+ (A->B x) 1))))`, config.DefaultOptions())
	require.NoError(t, err)

	_, err = CompileInto(reg, "b.klor", `(defchor twice [A B] (-> A A) [x] (inc [A B] (inc [A B] x)))`, config.DefaultOptions())
	require.NoError(t, err)

	_, ok := reg.Lookup("twice")
	require.True(t, ok, "expected twice to resolve inc from the shared registry")
}
