package tcptransport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/klor-lang/klor/internal/transport"
	"github.com/klor-lang/klor/internal/types"
)

// freePort grabs an ephemeral port by listening and immediately closing,
// the usual way to hand a concrete address to two independent Dial
// calls that both need to know it up front.
func freePort(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())
	return addr
}

func TestDialConnectsBothRolesAndRoundTrips(t *testing.T) {
	addrA := freePort(t)
	addrB := freePort(t)
	locators := transport.Locator{
		types.Role("A"): addrA,
		types.Role("B"): addrB,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type dialResult struct {
		ep  *Endpoint
		err error
	}
	resA := make(chan dialResult, 1)
	resB := make(chan dialResult, 1)
	go func() {
		ep, err := Dial(ctx, types.Role("A"), addrA, locators)
		resA <- dialResult{ep, err}
	}()
	go func() {
		ep, err := Dial(ctx, types.Role("B"), addrB, locators)
		resB <- dialResult{ep, err}
	}()

	a := <-resA
	require.NoError(t, a.err)
	b := <-resB
	require.NoError(t, b.err)
	defer a.ep.Close()
	defer b.ep.Close()

	require.NoError(t, a.ep.Send(ctx, types.Role("B"), []byte("hello")))
	got, err := b.ep.Recv(ctx, types.Role("A"))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)

	require.NoError(t, b.ep.Send(ctx, types.Role("A"), []byte("world")))
	got, err = a.ep.Recv(ctx, types.Role("B"))
	require.NoError(t, err)
	require.Equal(t, []byte("world"), got)
}

func TestSendToUnknownRoleErrors(t *testing.T) {
	ep := &Endpoint{self: types.Role("A"), conns: map[types.Role]*conn{}}
	err := ep.Send(context.Background(), types.Role("C"), []byte("x"))
	require.Error(t, err)
}
