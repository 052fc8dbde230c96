// Package simulate is the "external collaborator" §1 names given a
// minimal reference implementation (§4.16, D7): it runs every role of a
// checked choreography body as a goroutine over a shared in-memory
// transport and returns both the per-role outcome and an ordered log of
// every value that crossed a role boundary, so the testable properties
// of §8 (most directly property 6, "simulation agreement") can be
// asserted against directly instead of only specified.
//
// Built on internal/runtime (this package does no interpreting of its
// own, only wiring), applying a goroutines-plus-channels concurrency
// style generalized from "one process, external I/O" to "one goroutine
// per choreography role, in-memory I/O".
package simulate

import (
	"context"
	"sync"

	"github.com/klor-lang/klor/internal/ast"
	"github.com/klor-lang/klor/internal/codec"
	"github.com/klor-lang/klor/internal/project"
	"github.com/klor-lang/klor/internal/registry"
	"github.com/klor-lang/klor/internal/runtime"
	"github.com/klor-lang/klor/internal/runtime/value"
	"github.com/klor-lang/klor/internal/transport"
	"github.com/klor-lang/klor/internal/transport/memtransport"
	"github.com/klor-lang/klor/internal/types"
)

// LogEntry records one value sent from one role to another, in the
// order the shared log observed it. Only the per-(From,To) pair is
// guaranteed FIFO (memtransport's own contract); entries from different
// pairs interleave however the roles' goroutines happen to schedule.
type LogEntry struct {
	From, To types.Role
	Value    string
}

// Result is one role's outcome: its closure's final value, or the error
// it terminated with. Exactly one of Value/Err is meaningful.
type Result struct {
	Value value.Value
	Err   error
}

// Run projects body/params for every role in roles, invokes each
// projection as a goroutine with that role's entry in args, and returns
// every role's Result alongside the communication log. It does not
// apply runtime.PlayRole's host-facing argument/return erasure — args
// is expected to already hold each role's own local arguments, matching
// how a choreography's own endpoints see their parameters post-
// projection (see runtime.PlayRole for the erasure a human-facing entry
// point needs instead).
//
// Run does not cancel sibling goroutines when one role's closure
// returns an error (§5's "the runtime does not attempt cross-role
// cancellation"); pass a ctx with a deadline to bound a run where a
// peer's error would otherwise leave another role blocked in Recv
// forever.
func Run(ctx context.Context, roles []types.Role, params []*ast.Binder, body ast.Node, codecImpl codec.Codec, args map[types.Role][]value.Value) (map[types.Role]Result, []LogEntry) {
	net := memtransport.NewNetwork(1)
	log := &sharedLog{}

	results := make(map[types.Role]Result, len(roles))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, role := range roles {
		role := role
		wg.Add(1)
		go func() {
			defer wg.Done()
			roleParams := project.FilterParams(params, role)
			roleBody := project.Project(body, role)
			cfg := runtime.Config{
				Role: role,
				Transport: &loggingTransport{
					inner: memtransport.NewEndpoint(net, role),
					self:  role,
					codec: codecImpl,
					log:   log,
				},
				Codec:    codecImpl,
				Registry: registry.New(),
				Defs:     map[string]*runtime.CompiledDef{},
				Builtins: runtime.DefaultBuiltins(nil),
			}
			closure := runtime.NewClosure(roleParams, []ast.Node{roleBody}, runtime.NewEnv(), cfg)
			v, err := closure.Invoke(ctx, args[role])

			mu.Lock()
			results[role] = Result{Value: v, Err: err}
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results, log.entries
}

// sharedLog collects LogEntry values across every role's goroutine.
type sharedLog struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (l *sharedLog) append(from, to types.Role, rendered string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{From: from, To: to, Value: rendered})
}

// loggingTransport wraps a transport.Transport and records every
// outbound payload in the shared log, decoding it back to a value.Value
// purely for the log's human-readable rendering — a second decode the
// production transports never pay for, acceptable here since this
// package only ever runs under test/simulation, not in a compiled
// program's own process.
type loggingTransport struct {
	inner transport.Transport
	self  types.Role
	codec codec.Codec
	log   *sharedLog
}

func (t *loggingTransport) Send(ctx context.Context, dst types.Role, payload []byte) error {
	if v, err := t.codec.Decode(payload); err == nil {
		t.log.append(t.self, dst, v.String())
	}
	return t.inner.Send(ctx, dst, payload)
}

func (t *loggingTransport) Recv(ctx context.Context, src types.Role) ([]byte, error) {
	return t.inner.Recv(ctx, src)
}

func (t *loggingTransport) Close() error {
	return t.inner.Close()
}
