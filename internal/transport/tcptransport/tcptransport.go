// Package tcptransport implements the §6.6 on-wire format over plain TCP
// connections: each message is an 8-byte big-endian length prefix
// followed by that many bytes of opaque payload, with the payload's own
// format left to whatever codec (internal/codec) the caller chose —
// "the core does not constrain it beyond round-trip-equal" per §6.6.
//
// One persistent net.Conn is held per ordered (local role, peer role)
// pair: a role dials every peer whose role name sorts after its own and
// listens for the rest, a half-dial/half-listen pairing scheme that
// avoids double connections without needing distinct client/server
// handle types — one symmetric Transport covers both directions.
package tcptransport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sort"
	"sync"

	"github.com/klor-lang/klor/internal/transport"
	"github.com/klor-lang/klor/internal/types"
)

// conn wraps one net.Conn with a write mutex, since §6.5 guarantees FIFO
// delivery per (src,dst) pair but multiple goroutines may call Send
// concurrently for the same destination, whose frames share this
// connection.
type conn struct {
	mu sync.Mutex
	c  net.Conn
}

func (w *conn) writeFrame(payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var hdr [8]byte
	binary.BigEndian.PutUint64(hdr[:], uint64(len(payload)))
	if _, err := w.c.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.c.Write(payload)
	return err
}

func readFrame(c net.Conn) ([]byte, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(c, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint64(hdr[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(c, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Endpoint is the Transport for one role process: a dialed-or-accepted
// net.Conn per peer role, addressed via the shared transport.Locator.
type Endpoint struct {
	self  types.Role
	conns map[types.Role]*conn
	lis   net.Listener
}

// Dial establishes connections to every peer in locators: self dials
// peers whose name sorts after self's own (the "higher" half of the
// pair), and accepts connections from the rest on listenAddr. Both
// sides must call Dial so every ordered pair ends up connected exactly
// once.
func Dial(ctx context.Context, self types.Role, listenAddr string, locators transport.Locator) (*Endpoint, error) {
	ep := &Endpoint{self: self, conns: make(map[types.Role]*conn)}

	var peers []types.Role
	for r := range locators {
		if r != self {
			peers = append(peers, r)
		}
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })

	var toAccept int
	for _, p := range peers {
		if p < self {
			toAccept++
		}
	}

	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("tcptransport: listen %s: %w", listenAddr, err)
	}
	ep.lis = lis

	var wg sync.WaitGroup
	var mu sync.Mutex
	var dialErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < toAccept; i++ {
			c, err := lis.Accept()
			if err != nil {
				mu.Lock()
				dialErr = fmt.Errorf("tcptransport: accept: %w", err)
				mu.Unlock()
				return
			}
			peer, err := identify(c)
			if err != nil {
				mu.Lock()
				dialErr = err
				mu.Unlock()
				return
			}
			mu.Lock()
			ep.conns[peer] = &conn{c: c}
			mu.Unlock()
		}
	}()

	for _, p := range peers {
		if p <= self {
			continue
		}
		addr, err := locators.Lookup(p)
		if err != nil {
			return nil, err
		}
		var d net.Dialer
		c, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			mu.Lock()
			dialErr = fmt.Errorf("tcptransport: dial %s (%s): %w", p, addr, err)
			mu.Unlock()
			continue
		}
		if err := announce(c, self); err != nil {
			mu.Lock()
			dialErr = err
			mu.Unlock()
			continue
		}
		mu.Lock()
		ep.conns[p] = &conn{c: c}
		mu.Unlock()
	}

	wg.Wait()
	if dialErr != nil {
		return nil, dialErr
	}
	return ep, nil
}

// announce writes the connecting role's own name so the accepting side
// can key its conns map by role rather than by raw socket.
func announce(c net.Conn, self types.Role) error {
	return (&conn{c: c}).writeFrame([]byte(self))
}

func identify(c net.Conn) (types.Role, error) {
	payload, err := readFrame(c)
	if err != nil {
		return "", fmt.Errorf("tcptransport: identify: %w", err)
	}
	return types.Role(payload), nil
}

func (e *Endpoint) Send(ctx context.Context, dst types.Role, payload []byte) error {
	c, ok := e.conns[dst]
	if !ok {
		return fmt.Errorf("tcptransport: no connection to role %q", dst)
	}
	return c.writeFrame(payload)
}

func (e *Endpoint) Recv(ctx context.Context, src types.Role) ([]byte, error) {
	c, ok := e.conns[src]
	if !ok {
		return nil, fmt.Errorf("tcptransport: no connection from role %q", src)
	}
	c.mu.Lock()
	conn := c.c
	c.mu.Unlock()
	return readFrame(conn)
}

func (e *Endpoint) Close() error {
	var firstErr error
	for _, c := range e.conns {
		if err := c.c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.lis != nil {
		if err := e.lis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
