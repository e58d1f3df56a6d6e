// Package channel provides an in-memory connection for voxwire sessions.
// This transport is useful for testing and local development: Pair returns
// both ends of one bidirectional frame stream backed by a Watermill
// go-channel Pub/Sub.
package channel

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/voxwire/voxwire/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "channel"

const (
	topicClientToServer = "voxwire.c2s"
	topicServerToClient = "voxwire.s2c"
)

// Accept, when set, receives the server end of every connection the Build
// function creates. Tests install a handler here to play the server side of
// a registry-built session.
var Accept func(server transport.Conn)

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.ChannelCapabilities)
}

// Build creates a new in-memory connection and hands its server end to
// Accept when one is installed.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Conn, error) {
	client, server, err := Pair(ctx, logger)
	if err != nil {
		return nil, err
	}
	if Accept != nil {
		Accept(server)
	}
	return client, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.ChannelCapabilities
}

// Pair returns the two ends of one in-memory connection. Frames written on
// either end arrive on the other in order. Closing either end closes the
// shared Pub/Sub and therefore both ends. ctx gates setup only; the
// connection outlives it and ends when either end is closed.
func Pair(ctx context.Context, logger watermill.LoggerAdapter) (client, server transport.Conn, err error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)

	// Subscriptions must live for the life of the connection, not for the
	// life of the caller's dial context.
	subCtx, subCancel := context.WithCancel(context.Background())

	clientIn, err := pubSub.Subscribe(subCtx, topicServerToClient)
	if err != nil {
		subCancel()
		return nil, nil, err
	}
	serverIn, err := pubSub.Subscribe(subCtx, topicClientToServer)
	if err != nil {
		subCancel()
		return nil, nil, err
	}

	client = &conn{pubSub: pubSub, cancel: subCancel, sendTopic: topicClientToServer, inbound: clientIn}
	server = &conn{pubSub: pubSub, cancel: subCancel, sendTopic: topicServerToClient, inbound: serverIn}
	return client, server, nil
}

type conn struct {
	pubSub    *gochannel.GoChannel
	cancel    context.CancelFunc
	sendTopic string
	inbound   <-chan *message.Message

	closeOnce sync.Once
	closed    chan struct{}
	closedMu  sync.Mutex
}

func (c *conn) closedCh() chan struct{} {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()
	if c.closed == nil {
		c.closed = make(chan struct{})
	}
	return c.closed
}

func (c *conn) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.closedCh():
		return transport.ErrClosed
	default:
	}
	msg := message.NewMessage(watermill.NewUUID(), frame)
	return c.pubSub.Publish(c.sendTopic, msg)
}

func (c *conn) Recv(ctx context.Context) ([]byte, error) {
	select {
	case msg, ok := <-c.inbound:
		if !ok {
			return nil, transport.ErrClosed
		}
		msg.Ack()
		return msg.Payload, nil
	case <-c.closedCh():
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closedCh())
		c.cancel()
		err = c.pubSub.Close()
	})
	return err
}
