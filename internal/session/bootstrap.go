package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/voxwire/voxwire/internal/session/config"
	"github.com/voxwire/voxwire/internal/session/jsoncodec"
	"github.com/voxwire/voxwire/internal/session/logging"
)

// ConnectionInfo is the server and session identity captured from the
// greeting event. It is scoped to the session that received it, valid until
// disconnect, and handed to consumers explicitly rather than held in any
// process-wide state.
type ConnectionInfo struct {
	SocketID    string `json:"socket_id"`
	ServerBuild string `json:"server_build"`
	ServerNode  string `json:"server_node"`
	ServerTime  int64  `json:"server_time"`
	Session     string `json:"session"`
}

// Bootstrap performs the session handshake: capture the greeting, run
// authentication through the correlator, then optionally register the device
// with the phone collaborator. The rest of the layer becomes usable once
// Ready is closed; a failed authentication still closes Ready but records the
// error.
type Bootstrap struct {
	mu      sync.RWMutex
	info    *ConnectionInfo
	err     error
	handled bool

	ready     chan struct{}
	readyOnce sync.Once

	correlator *Correlator
	phone      Phone
	cfg        *config.Config
	log        logging.SessionLogger
}

// NewBootstrap creates a bootstrap gate for one session.
func NewBootstrap(correlator *Correlator, phone Phone, cfg *config.Config, log logging.SessionLogger) *Bootstrap {
	if phone == nil {
		phone = NopPhone{}
	}
	if log == nil {
		log = logging.NewNopSessionLogger()
	}
	return &Bootstrap{
		ready:      make(chan struct{}),
		correlator: correlator,
		phone:      phone,
		cfg:        cfg,
		log:        log,
	}
}

// Ready is closed once the handshake finished, successfully or not. Check
// Err afterwards.
func (b *Bootstrap) Ready() <-chan struct{} { return b.ready }

// Err returns the handshake failure, if any.
func (b *Bootstrap) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.err
}

// Info returns the captured connection metadata once the greeting arrived.
func (b *Bootstrap) Info() (*ConnectionInfo, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.info, b.info != nil
}

// HandleGreeting captures the connection metadata and continues the
// handshake. Authentication waits on its own reply, which arrives through
// the same inbound loop that delivered the greeting, so the continuation
// runs on its own goroutine instead of blocking the loop. Only the first
// greeting on a connection runs the handshake; repeats are logged and
// dropped.
func (b *Bootstrap) HandleGreeting(ctx context.Context, payload json.RawMessage) {
	b.mu.Lock()
	if b.handled {
		b.mu.Unlock()
		b.log.Warn("duplicate greeting ignored", nil)
		return
	}
	b.handled = true
	b.mu.Unlock()

	var info ConnectionInfo
	if err := jsoncodec.Unmarshal(payload, &info); err != nil {
		b.log.Error("malformed greeting", err, nil)
		b.finish(err)
		return
	}

	b.mu.Lock()
	b.info = &info
	b.mu.Unlock()

	b.log.Info("session greeting received", logging.LogFields{
		"socket_id":    info.SocketID,
		"server_build": info.ServerBuild,
		"server_node":  info.ServerNode,
	})

	go b.completeHandshake(ctx)
}

func (b *Bootstrap) completeHandshake(ctx context.Context) {
	if err := b.Authenticate(ctx); err != nil {
		b.log.Error("authentication failed", err, nil)
		b.finish(err)
		return
	}

	// Device registration is best effort: a phone that cannot register does
	// not take the session down.
	if err := b.phone.RegisterDevice(ctx, DeviceConfig{AgentID: b.cfg.AgentID}); err != nil {
		b.log.Warn("device registration failed", logging.LogFields{
			"agent_id": b.cfg.AgentID,
			"error":    err.Error(),
		})
	}

	b.finish(nil)
}

type authPayload struct {
	Token   string `json:"token"`
	AgentID string `json:"agent_id,omitempty"`
}

// Authenticate presents the configured credential and waits for the verdict.
func (b *Bootstrap) Authenticate(ctx context.Context) error {
	p, err := b.correlator.Issue(ctx, "authenticate", authPayload{
		Token:   b.cfg.Token,
		AgentID: b.cfg.AgentID,
	})
	if err != nil {
		return err
	}
	_, err = p.Wait(ctx)
	return err
}

func (b *Bootstrap) finish(err error) {
	b.mu.Lock()
	if b.err == nil {
		b.err = err
	}
	b.mu.Unlock()
	b.readyOnce.Do(func() { close(b.ready) })
}
