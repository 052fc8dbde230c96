// Command klorc is the reference compiler driver (D9): build, sim and
// check subcommands over internal/driver, internal/project,
// internal/emit and internal/simulate.
//
// No stdlib flag package, just a manual loop over os.Args switching on
// flag strings, a switch in main() dispatching to one handleX() per
// subcommand,
// and a top-level recover() turning an internal panic into a one-line
// "Internal error" message instead of a raw stack trace.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/klor-lang/klor/internal/cache"
	"github.com/klor-lang/klor/internal/codec"
	"github.com/klor-lang/klor/internal/config"
	"github.com/klor-lang/klor/internal/diagnostics"
	"github.com/klor-lang/klor/internal/driver"
	"github.com/klor-lang/klor/internal/emit"
	"github.com/klor-lang/klor/internal/project"
	"github.com/klor-lang/klor/internal/registry"
	"github.com/klor-lang/klor/internal/runtime"
	"github.com/klor-lang/klor/internal/runtime/value"
	"github.com/klor-lang/klor/internal/simulate"
	"github.com/klor-lang/klor/internal/types"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("KLOR_DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(os.Stderr, "Internal error: %v\n", r)
			fmt.Fprintln(os.Stderr, "This is a bug. Please report it.")
			os.Exit(1)
		}
	}()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var ok bool
	switch os.Args[1] {
	case "build":
		ok = handleBuild()
	case "sim":
		ok = handleSim()
	case "check":
		ok = handleCheck()
	case "-help", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "klorc: unknown command %q\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if !ok {
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage:
  klorc build <file.klor> -role <R> [-out <dir>] [-cache <path>]
  klorc sim   <file.klor> [-def <name>] [-arg <Role>=<value>]... [-cache <path>]
  klorc check <file.klor> [-cache <path>]`)
}

func isColorTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func printDiag(d *diagnostics.Error) {
	color := isColorTTY()
	sev := string(d.Severity)
	if sev == "" {
		sev = string(diagnostics.SeverityError)
	}
	if !color {
		fmt.Fprintln(os.Stderr, d.Error())
		return
	}
	code := "31" // red
	if d.Severity == diagnostics.SeverityWarning {
		code = "33" // yellow
	}
	fmt.Fprintf(os.Stderr, "\033[%sm%s\033[0m: %s\n", code, sev, d.Error())
}

// readSourceFile reads path and returns its contents, exiting with a
// diagnostics-shaped message on failure rather than a bare Go error —
// every subcommand below needs this, so it isn't worth a handleX-local
// copy each time.
func readSourceFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "klorc: reading %s: %v\n", path, err)
		return "", false
	}
	return string(data), true
}

// compileFile runs path through internal/driver, printing every warning
// (signature changes, per §4.7 rule 3) and, on failure, the first fatal
// error, colorized when standard output is a terminal.
func compileFile(path, cachePath string) (*driver.Unit, bool) {
	src, ok := readSourceFile(path)
	if !ok {
		return nil, false
	}
	unit, err := driver.Compile(path, src, config.DefaultOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "klorc: %v\n", err)
		return nil, false
	}
	for _, w := range unit.Warnings {
		printDiag(w)
	}
	if cachePath != "" {
		checkCacheStaleness(unit, path, cachePath)
	}
	return unit, true
}

// checkCacheStaleness persists every compiled definition's rendered
// signature to the on-disk cache (D8), warning when it differs from the
// last compile recorded for the same (name, sourceFile) pair — the
// multi-process generalization of the in-process warning registry.Install
// already gives a single compilation unit.
func checkCacheStaleness(unit *driver.Unit, sourceFile, cachePath string) {
	c, err := cache.Open(cachePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "klorc: opening cache %s: %v\n", cachePath, err)
		return
	}
	defer c.Close()

	info, err := os.Stat(sourceFile)
	var mtime time.Time
	if err == nil {
		mtime = info.ModTime()
	} else {
		mtime = time.Now()
	}

	for name, def := range unit.Defs {
		rendered := registry.RenderSignature(def.Roles, mustSignature(unit, name))
		changed, previous, err := cache.CheckStale(c, name, sourceFile, rendered)
		if err != nil {
			fmt.Fprintf(os.Stderr, "klorc: cache lookup for %q: %v\n", name, err)
			continue
		}
		if changed {
			fmt.Fprintf(os.Stderr, "klorc: %s: signature of %q changed since the last cached compile (was %s); recompile dependents\n", sourceFile, name, previous)
		}
		if err := c.Store(name, sourceFile, mtime, rendered); err != nil {
			fmt.Fprintf(os.Stderr, "klorc: storing cache entry for %q: %v\n", name, err)
		}
	}
}

func mustSignature(unit *driver.Unit, name string) types.Chor {
	d, ok := unit.Registry.Lookup(name)
	if !ok {
		return types.Chor{}
	}
	return d.Signature
}

// handleBuild implements `klorc build <file.klor> -role <R> [-out <dir>]`
// (§4.18): every top-level definition in file whose role vector
// includes R is projected for R and re-serialized to its own file under
// out (default ".") named
// "<definition>.<role>.klor" — a valid source file for the same reader
// that parsed the input, per internal/emit's own contract.
func handleBuild() bool {
	if len(os.Args) < 3 {
		printUsage()
		return false
	}
	sourcePath := os.Args[2]

	var roleStr, outDir, cachePath string
	outDir = "."
	for i := 3; i < len(os.Args)-1; i++ {
		switch os.Args[i] {
		case "-role":
			roleStr = os.Args[i+1]
			i++
		case "-out":
			outDir = os.Args[i+1]
			i++
		case "-cache":
			cachePath = os.Args[i+1]
			i++
		}
	}
	if roleStr == "" {
		fmt.Fprintln(os.Stderr, "klorc: build requires -role <R>")
		return false
	}
	role := types.Role(roleStr)

	unit, ok := compileFile(sourcePath, cachePath)
	if !ok {
		return false
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "klorc: creating %s: %v\n", outDir, err)
		return false
	}

	for name, def := range unit.Defs {
		if !roleInVector(role, def.Roles) {
			continue
		}
		body := project.Project(def.Body, role)
		rendered := emit.New(emit.DefaultOptions()).Emit(body)
		outPath := filepath.Join(outDir, fmt.Sprintf("%s.%s.klor", name, roleStr))
		if err := os.WriteFile(outPath, []byte(rendered), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "klorc: writing %s: %v\n", outPath, err)
			return false
		}
		fmt.Printf("wrote %s\n", outPath)
	}
	return true
}

func roleInVector(role types.Role, roles []types.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// handleSim implements `klorc sim <file.klor> [-def <name>] [-arg
// Role=value]...` (§4.16, D7): runs every role of one definition as a
// goroutine over a shared in-memory transport and prints both the
// per-role result and the ordered communication log.
func handleSim() bool {
	if len(os.Args) < 3 {
		printUsage()
		return false
	}
	sourcePath := os.Args[2]

	var defName, cachePath string
	argSpecs := map[types.Role][]string{}
	for i := 3; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "-def":
			if i+1 < len(os.Args) {
				defName = os.Args[i+1]
				i++
			}
		case "-cache":
			if i+1 < len(os.Args) {
				cachePath = os.Args[i+1]
				i++
			}
		case "-arg":
			if i+1 < len(os.Args) {
				role, lit, err := splitArgSpec(os.Args[i+1])
				if err != nil {
					fmt.Fprintf(os.Stderr, "klorc: %v\n", err)
					return false
				}
				argSpecs[role] = append(argSpecs[role], lit)
				i++
			}
		}
	}

	unit, ok := compileFile(sourcePath, cachePath)
	if !ok {
		return false
	}

	def, err := pickDef(unit, defName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "klorc: %v\n", err)
		return false
	}

	args := make(map[types.Role][]value.Value, len(def.Roles))
	for _, role := range def.Roles {
		for _, lit := range argSpecs[role] {
			v, err := parseLiteral(lit)
			if err != nil {
				fmt.Fprintf(os.Stderr, "klorc: -arg %s=%s: %v\n", role, lit, err)
				return false
			}
			args[role] = append(args[role], v)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results, log := simulate.Run(ctx, def.Roles, def.Params, def.Body, codec.JSON{}, args)

	for _, entry := range log {
		fmt.Printf("%s -> %s: %s\n", entry.From, entry.To, entry.Value)
	}
	failed := false
	for _, role := range def.Roles {
		res := results[role]
		if res.Err != nil {
			fmt.Printf("%s: error: %v\n", role, res.Err)
			failed = true
			continue
		}
		fmt.Printf("%s: %s\n", role, res.Value.String())
	}
	return !failed
}

func pickDef(unit *driver.Unit, name string) (*runtime.CompiledDef, error) {
	if name != "" {
		d, ok := unit.Defs[name]
		if !ok {
			return nil, fmt.Errorf("no definition named %q", name)
		}
		return d, nil
	}
	if len(unit.Defs) == 1 {
		for _, d := range unit.Defs {
			return d, nil
		}
	}
	return nil, fmt.Errorf("file declares more than one definition; pass -def <name>")
}

func splitArgSpec(spec string) (types.Role, string, error) {
	parts := strings.SplitN(spec, "=", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", fmt.Errorf("malformed -arg %q, expected Role=value", spec)
	}
	return types.Role(parts[0]), parts[1], nil
}

// parseLiteral turns a command-line argument's textual form into the
// value.Value the simulator's closures expect, a small fixed grammar
// (bool, int, float, else string) rather than a full reader pass — a
// CLI arg is never a choreography-shaped value (§6.4 already forbids
// passing tuples/choreographies in from the host), so only scalars need
// covering here.
func parseLiteral(lit string) (value.Value, error) {
	switch lit {
	case "true":
		return value.Bool(true), nil
	case "false":
		return value.Bool(false), nil
	}
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return value.Int(i), nil
	}
	if f, err := strconv.ParseFloat(lit, 64); err == nil {
		return value.Float(f), nil
	}
	return value.Str(lit), nil
}

// handleCheck implements `klorc check <file.klor>`: runs the same
// install-then-check pipeline as build/sim but stops there, printing
// warnings/errors only — the "just tell me if it's right" entry point.
func handleCheck() bool {
	if len(os.Args) < 3 {
		printUsage()
		return false
	}
	sourcePath := os.Args[2]
	cachePath := ""
	for i := 3; i < len(os.Args)-1; i++ {
		if os.Args[i] == "-cache" {
			cachePath = os.Args[i+1]
			i++
		}
	}
	_, ok := compileFile(sourcePath, cachePath)
	if ok {
		fmt.Printf("%s: OK\n", sourcePath)
	}
	return ok
}
