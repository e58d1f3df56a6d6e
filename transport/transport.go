// Package transport defines the bidirectional connection contract used by the
// voxwire session layer. Each backend (ws, nats, channel) lives in its own
// sub-package and registers itself with the transport registry.
package transport

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
)

// ErrClosed is returned by Recv once the connection has been closed, either
// locally via Close or by the peer.
var ErrClosed = errors.New("transport: connection closed")

// Conn is one bidirectional frame stream. Frames are opaque byte slices; the
// session layer owns their encoding. Implementations must make Close
// idempotent and must fail an in-flight Recv with ErrClosed when the
// connection goes away. No implementation reconnects: a closed Conn stays
// closed.
type Conn interface {
	// Send transmits one outbound frame.
	Send(ctx context.Context, frame []byte) error

	// Recv blocks until the next inbound frame arrives, the context is
	// cancelled, or the connection closes.
	Recv(ctx context.Context) ([]byte, error)

	Close() error
}

// Builder is the function signature for creating a connection from config.
// Each transport package should provide a Builder function that can be
// registered.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Conn, error)

// Config provides the configuration values needed by transports. The
// interface allows transports to access only the config they need without
// depending on the full config package.
type Config interface {
	// GetTransport returns the transport backend name.
	GetTransport() string

	// WebSocket
	GetWebSocketURL() string

	// NATS
	GetNATSURL() string
	GetNATSSubject() string
	GetNATSInbox() string
}

// Capabilities describes what a registered transport can do.
type Capabilities struct {
	Name string `json:"name"`

	// Ordered is true when frames are delivered in the order they were sent.
	Ordered bool `json:"ordered"`

	// InMemory is true for process-local transports with no network hop.
	InMemory bool `json:"in_memory"`
}

// Well-known capability sets for the built-in transports.
var (
	ChannelCapabilities = Capabilities{Name: "channel", Ordered: true, InMemory: true}
	WSCapabilities      = Capabilities{Name: "ws", Ordered: true}
	NATSCapabilities    = Capabilities{Name: "nats", Ordered: true}
)
