// Package nats provides a NATS-backed connection for voxwire sessions.
// Outbound frames are published on one subject; inbound frames arrive on a
// per-session inbox subject.
package nats

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	natsio "github.com/nats-io/nats.go"

	"github.com/voxwire/voxwire/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "nats"

// Connect allows overriding the NATS connection for testing.
var Connect = func(url string) (*natsio.Conn, error) {
	return natsio.Connect(url, natsio.NoReconnect())
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSCapabilities)
}

// Build connects to the configured NATS server and subscribes the inbox.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Conn, error) {
	nc, err := Connect(cfg.GetNATSURL())
	if err != nil {
		return nil, err
	}

	inbound := make(chan *natsio.Msg, 64)
	sub, err := nc.ChanSubscribe(cfg.GetNATSInbox(), inbound)
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &conn{
		nc:      nc,
		sub:     sub,
		subject: cfg.GetNATSSubject(),
		inbound: inbound,
		closed:  make(chan struct{}),
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.NATSCapabilities
}

type conn struct {
	nc      *natsio.Conn
	sub     *natsio.Subscription
	subject string
	inbound chan *natsio.Msg

	closeOnce sync.Once
	closed    chan struct{}
}

func (c *conn) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.closed:
		return transport.ErrClosed
	default:
	}
	return c.nc.Publish(c.subject, frame)
}

func (c *conn) Recv(ctx context.Context) ([]byte, error) {
	select {
	case msg, ok := <-c.inbound:
		if !ok {
			return nil, transport.ErrClosed
		}
		return msg.Data, nil
	case <-c.closed:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.sub.Unsubscribe()
		c.nc.Close()
	})
	return err
}
