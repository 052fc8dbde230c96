package memtransport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/klor-lang/klor/internal/types"
)

func TestSendRecvFIFOPerPair(t *testing.T) {
	net := NewNetwork(4)
	a := NewEndpoint(net, types.Role("A"))
	b := NewEndpoint(net, types.Role("B"))

	ctx := context.Background()
	require.NoError(t, a.Send(ctx, types.Role("B"), []byte("first")))
	require.NoError(t, a.Send(ctx, types.Role("B"), []byte("second")))

	got, err := b.Recv(ctx, types.Role("A"))
	require.NoError(t, err)
	require.Equal(t, []byte("first"), got)

	got, err = b.Recv(ctx, types.Role("A"))
	require.NoError(t, err)
	require.Equal(t, []byte("second"), got)
}

func TestRecvBlocksUntilContextDone(t *testing.T) {
	net := NewNetwork(0)
	b := NewEndpoint(net, types.Role("B"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Recv(ctx, types.Role("A"))
	require.Error(t, err, "expected Recv to fail once its context is canceled with nothing sent")
}

func TestCloseIsNoop(t *testing.T) {
	net := NewNetwork(1)
	a := NewEndpoint(net, types.Role("A"))
	require.NoError(t, a.Close())
}
