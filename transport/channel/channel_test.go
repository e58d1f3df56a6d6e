package channel

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxwire/voxwire/transport"
)

func newTestPair(t *testing.T) (client, server transport.Conn) {
	t.Helper()
	client, server, err := Pair(context.Background(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, server
}

func TestPairBothDirections(t *testing.T) {
	client, server := newTestPair(t)
	ctx := context.Background()

	require.NoError(t, client.Send(ctx, []byte("from client")))
	got, err := server.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("from client"), got)

	require.NoError(t, server.Send(ctx, []byte("from server")))
	got, err = client.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("from server"), got)
}

func TestPairPreservesOrder(t *testing.T) {
	client, server := newTestPair(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, client.Send(ctx, []byte(fmt.Sprintf("frame-%d", i))))
	}
	for i := 0; i < 10; i++ {
		got, err := server.Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("frame-%d", i), string(got))
	}
}

func TestPairClose(t *testing.T) {
	t.Run("closing one end closes both", func(t *testing.T) {
		client, server := newTestPair(t)

		require.NoError(t, client.Close())

		_, err := client.Recv(context.Background())
		assert.ErrorIs(t, err, transport.ErrClosed)

		require.Eventually(t, func() bool {
			_, err := server.Recv(context.Background())
			return err != nil
		}, time.Second, 5*time.Millisecond)

		err = client.Send(context.Background(), []byte("late"))
		assert.ErrorIs(t, err, transport.ErrClosed)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		client, _ := newTestPair(t)
		require.NoError(t, client.Close())
		assert.NoError(t, client.Close())
	})
}

func TestPairOutlivesDialContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client, server, err := Pair(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	// The dial context gates setup only; cancelling it must not tear the
	// established connection down.
	cancel()

	require.NoError(t, server.Send(context.Background(), []byte("still up")))
	got, err := client.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("still up"), got)

	require.NoError(t, client.Send(context.Background(), []byte("both ways")))
	got, err = server.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("both ways"), got)
}

func TestPairRejectsDoneDialContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Pair(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecvHonorsContext(t *testing.T) {
	client, _ := newTestPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBuildHandsServerEndToAccept(t *testing.T) {
	var server transport.Conn
	Accept = func(s transport.Conn) { server = s }
	t.Cleanup(func() { Accept = nil })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	client, err := Build(ctx, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, server)

	require.NoError(t, client.Send(ctx, []byte("hello")))
	got, err := server.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestRegisteredWithDefaultRegistry(t *testing.T) {
	assert.Contains(t, transport.DefaultRegistry.Names(), TransportName)
	assert.Equal(t, transport.ChannelCapabilities, transport.GetCapabilities(TransportName))
	assert.Equal(t, transport.ChannelCapabilities, Capabilities())
}
