// Package memtransport is the in-memory Transport used by
// internal/simulate to run every role of a choreography as goroutines in
// a single process: each ordered (src, dst) pair gets its own FIFO
// channel, matching the per-pair ordering §4.8/§8's Diffie-Hellman-style
// scenarios assume ("Simulation agreement" — Testable Property 6 — only
// holds if two roles never see each other's sends reordered).
//
// A small mutex-guarded map keyed by name, here from (src,dst) pair to
// a dedicated chan []byte.
package memtransport

import (
	"context"
	"fmt"
	"sync"

	"github.com/klor-lang/klor/internal/types"
)

// pairKey identifies one ordered communication channel between two roles.
type pairKey struct {
	Src, Dst types.Role
}

// Network is a shared switchboard of channels connecting every role
// participating in one simulated run. One Network is created per
// simulation; each role's Endpoint is a thin view onto it.
type Network struct {
	mu       sync.Mutex
	channels map[pairKey]chan []byte
	bufSize  int
}

// NewNetwork returns an empty switchboard. bufSize sets each pairwise
// channel's buffer; 0 gives synchronous (rendezvous) delivery, matching
// a real network transport's lack of implicit buffering.
func NewNetwork(bufSize int) *Network {
	return &Network{channels: make(map[pairKey]chan []byte), bufSize: bufSize}
}

func (n *Network) channel(src, dst types.Role) chan []byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := pairKey{Src: src, Dst: dst}
	ch, ok := n.channels[key]
	if !ok {
		ch = make(chan []byte, n.bufSize)
		n.channels[key] = ch
	}
	return ch
}

// Endpoint is the Transport implementation handed to one role's
// interpreter: it knows its own role and the shared Network, so
// Send(dst, ...) writes to (self, dst) and Recv(src, ...) reads from
// (src, self).
type Endpoint struct {
	self types.Role
	net  *Network
}

// NewEndpoint returns the Transport for role self over net.
func NewEndpoint(net *Network, self types.Role) *Endpoint {
	return &Endpoint{self: self, net: net}
}

func (e *Endpoint) Send(ctx context.Context, dst types.Role, payload []byte) error {
	ch := e.net.channel(e.self, dst)
	select {
	case ch <- payload:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("memtransport: send to %s canceled: %w", dst, ctx.Err())
	}
}

func (e *Endpoint) Recv(ctx context.Context, src types.Role) ([]byte, error) {
	ch := e.net.channel(src, e.self)
	select {
	case payload := <-ch:
		return payload, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("memtransport: recv from %s canceled: %w", src, ctx.Err())
	}
}

// Close is a no-op: the shared Network outlives any one Endpoint, since
// other roles may still be mid-communication.
func (e *Endpoint) Close() error { return nil }
