// Package transport defines the runtime communication boundary (§6.5): a
// transport supplies a send function, a recv function, and a per-role
// map from a logical Role to whatever address/locator that
// implementation uses to reach it. internal/runtime's play_role binds
// one Transport per process and every projected Send/Recv node in the
// executing endpoint goes through it, so swapping memtransport for
// tcptransport or grpctransport changes only how bytes move, never what
// the interpreter evaluates.
//
// A connection handle paired with a codec-agnostic Invoke path,
// generalized into a small interface so simulation, TCP and gRPC can
// share one runtime.
package transport

import (
	"context"
	"fmt"

	"github.com/klor-lang/klor/internal/types"
)

// Transport is the runtime communication boundary a projected endpoint
// is executed against. Value is whatever internal/runtime's Value
// representation is; transports are codec-agnostic and move already-
// encoded payloads, so this package depends only on internal/codec's
// wire format, not on internal/runtime's value types.
type Transport interface {
	// Send transmits payload (already encoded by a codec.Codec) to dst.
	Send(ctx context.Context, dst types.Role, payload []byte) error
	// Recv blocks for the next payload sent by src, in FIFO order per
	// (src, local-role) pair.
	Recv(ctx context.Context, src types.Role) ([]byte, error)
	// Close releases any resources (sockets, goroutines) held open for
	// this role's endpoint.
	Close() error
}

// Locator resolves where a logical Role can be reached for a given
// transport kind — a "host:port" for tcptransport, a gRPC target string
// for grpctransport (§6.5 "a per-role map locators: Role -> locator").
// memtransport takes no Locator; its Endpoints share a Network instead.
type Locator map[types.Role]string

// ErrNotFound reports a role absent from a Locator.
type ErrNotFound struct {
	Role types.Role
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("transport: no locator registered for role %q", e.Role)
}

// Lookup resolves role against l, or returns ErrNotFound.
func (l Locator) Lookup(role types.Role) (string, error) {
	addr, ok := l[role]
	if !ok {
		return "", &ErrNotFound{Role: role}
	}
	return addr, nil
}
