// Package ws provides a websocket connection for voxwire sessions. Frames
// map one-to-one onto text messages. The connection never redials: once it
// closes, the session it carried is over.
package ws

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	gobwasws "github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/voxwire/voxwire/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "ws"

// Dialer allows overriding the websocket dial for testing.
var Dialer = func(ctx context.Context, url string) (net.Conn, *io.Reader, error) {
	c, br, _, err := gobwasws.Dial(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	if br == nil {
		return c, nil, nil
	}
	var r io.Reader = br
	return c, &r, nil
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.WSCapabilities)
}

// Build dials the configured websocket URL.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Conn, error) {
	return Dial(ctx, cfg.GetWebSocketURL())
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.WSCapabilities
}

// Dial opens a websocket connection to url.
func Dial(ctx context.Context, url string) (transport.Conn, error) {
	c, buffered, err := Dialer(ctx, url)
	if err != nil {
		return nil, err
	}

	var rw io.ReadWriter = c
	if buffered != nil {
		// The handshake may have read past the response; drain the buffered
		// reader before touching the socket again.
		rw = struct {
			io.Reader
			io.Writer
		}{io.MultiReader(*buffered, c), c}
	}

	return &conn{netConn: c, rw: rw, closed: make(chan struct{})}, nil
}

type conn struct {
	netConn net.Conn
	rw      io.ReadWriter

	writeMu   sync.Mutex
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

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteClientText(c.rw, frame)
}

func (c *conn) Recv(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := wsutil.ReadServerText(c.rw)
	if err != nil {
		select {
		case <-c.closed:
			return nil, transport.ErrClosed
		default:
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err == io.EOF {
			return nil, transport.ErrClosed
		}
		return nil, err
	}
	return data, nil
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)

		c.writeMu.Lock()
		_ = gobwasws.WriteFrame(c.rw, gobwasws.MaskFrame(gobwasws.NewCloseFrame(nil)))
		c.writeMu.Unlock()

		err = c.netConn.Close()
	})
	return err
}
