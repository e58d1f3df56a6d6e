package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/voxwire/voxwire/internal/session/config"
	"github.com/voxwire/voxwire/internal/session/errs"
	"github.com/voxwire/voxwire/internal/session/logging"
	"github.com/voxwire/voxwire/transport"
)

// Dependencies holds the optional collaborators of a Session. Leave fields
// nil to use the defaults.
type Dependencies struct {
	// Phone is the media collaborator. Defaults to NopPhone.
	Phone Phone

	// Conn is a pre-built connection. When nil the transport registry builds
	// one from the config.
	Conn transport.Conn

	// TransportRegistry overrides the default transport registry.
	TransportRegistry *transport.Registry

	// Tracer enables per-request spans.
	Tracer trace.Tracer

	// Registerer exports session metrics when set.
	Registerer prometheus.Registerer
}

// Session is the client-side session layer over one bidirectional transport:
// a sequence-correlated request facility, a typed event dispatcher, and the
// call registry. Everything it tracks lives for the life of the connection;
// nothing is persisted and nothing reconnects.
type Session struct {
	cfg  *config.Config
	log  logging.SessionLogger
	deps Dependencies

	correlator *Correlator
	dispatcher *Dispatcher
	registry   *Registry
	bootstrap  *Bootstrap
	router     *Router
	metrics    *SessionMetrics
	phone      Phone

	mu         sync.Mutex
	conn       transport.Conn
	connected  bool
	loopCancel context.CancelFunc

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSession validates the configuration and wires the session components.
// Call Connect to open the transport and run the handshake.
func NewSession(cfg *config.Config, log logging.SessionLogger, deps Dependencies) (*Session, error) {
	// A pre-built connection skips transport validation; the remaining keys
	// are still required.
	if deps.Conn == nil {
		if err := config.ValidateConfig(cfg); err != nil {
			return nil, err
		}
	} else if cfg == nil || cfg.Token == "" {
		return nil, &errs.ConfigValidationError{Problems: []string{errs.ErrCredentialRequired.Error()}}
	}
	if log == nil {
		log = logging.NewNopSessionLogger()
	}
	phone := deps.Phone
	if phone == nil {
		phone = NopPhone{}
	}

	metrics := NewSessionMetrics()
	if err := metrics.Register(deps.Registerer); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	s := &Session{
		cfg:     cfg,
		log:     log,
		deps:    deps,
		metrics: metrics,
		phone:   phone,
		closed:  make(chan struct{}),
	}

	s.correlator = NewCorrelator(log, metrics, deps.Tracer, cfg.RequestExpiry)
	s.dispatcher = NewDispatcher(log)
	s.registry = NewRegistry(s.dispatcher, s.correlator, log, metrics)
	s.bootstrap = NewBootstrap(s.correlator, phone, cfg, log)
	s.router = NewRouter(s.correlator, s.dispatcher, s.registry, s.bootstrap, cfg, log, metrics)
	return s, nil
}

// Connect opens the transport, starts the inbound loop, and blocks until the
// handshake (greeting, authentication) finished or ctx is done. A transport
// or authentication failure surfaces here.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return fmt.Errorf("voxwire: session already connected")
	}

	conn := s.deps.Conn
	if conn == nil {
		registry := s.deps.TransportRegistry
		if registry == nil {
			registry = transport.DefaultRegistry
		}
		built, err := registry.Build(ctx, s.cfg, logging.NewWatermillAdapter(s.log))
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("open transport: %w", err)
		}
		conn = built
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.conn = conn
	s.connected = true
	s.loopCancel = cancel
	s.mu.Unlock()

	s.correlator.SetSender(conn.Send)

	s.wg.Add(1)
	go s.readLoop(loopCtx, conn)

	if events := s.phone.Events(); events != nil {
		s.wg.Add(1)
		go s.phoneLoop(events)
	}

	select {
	case <-s.bootstrap.Ready():
		if err := s.bootstrap.Err(); err != nil {
			return fmt.Errorf("handshake: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return errs.ErrSessionClosed
	}
}

// readLoop delivers inbound frames to the router one at a time. Each frame
// is handled to completion before the next is read, so the registry and
// pending table see no interleaving between two inbound messages.
func (s *Session) readLoop(ctx context.Context, conn transport.Conn) {
	defer s.wg.Done()

	for {
		raw, err := conn.Recv(ctx)
		if err != nil {
			if !errors.Is(err, transport.ErrClosed) && !errors.Is(err, context.Canceled) {
				s.log.Error("transport receive failed", err, nil)
			}
			s.correlator.FailAll(errs.ErrSessionClosed)
			return
		}
		s.router.Route(ctx, raw)
	}
}

func (s *Session) phoneLoop(events <-chan PhoneEvent) {
	defer s.wg.Done()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handlePhoneEvent(ev)
		case <-s.closed:
			return
		}
	}
}

func (s *Session) handlePhoneEvent(ev PhoneEvent) {
	call, ok := s.resolvePhoneEvent(ev)
	if !ok {
		s.log.Warn("phone event for unknown call", logging.LogFields{
			"kind":     ev.Kind,
			"media_id": ev.MediaID,
			"call_id":  ev.CallID,
		})
		return
	}

	switch ev.Kind {
	case PhoneEventNewMediaSession:
		s.registry.BindMedia(ev.MediaID, call.ID())
	case PhoneEventLocalStreamsChanged:
		call.setStreams(ev.Local, nil, true, false)
	case PhoneEventRemoteStreamsChanged:
		call.setStreams(nil, ev.Remote, false, true)
	}
}

func (s *Session) resolvePhoneEvent(ev PhoneEvent) (*Call, bool) {
	if ev.CallID != "" {
		return s.registry.Get(ev.CallID)
	}
	return s.registry.FindByMediaID(ev.MediaID)
}

// Close tears the session down: the inbound loop stops, the connection is
// closed, and every still-pending request fails with ErrSessionClosed. Calls
// already handed to holders stay valid.
func (s *Session) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		close(s.closed)

		s.mu.Lock()
		conn := s.conn
		cancel := s.loopCancel
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if conn != nil {
			closeErr = conn.Close()
		}
		s.correlator.FailAll(errs.ErrSessionClosed)
		s.wg.Wait()
	})
	return closeErr
}

// Subscribe registers handler for the named event channel. Subscribing
// before Connect is fine; events published before anyone subscribed are
// simply gone.
func (s *Session) Subscribe(channel string, handler Handler) *Subscription {
	return s.dispatcher.Subscribe(channel, handler)
}

// Unsubscribe removes a subscription handle. No-op for handles already
// removed.
func (s *Session) Unsubscribe(sub *Subscription) {
	s.dispatcher.Unsubscribe(sub)
}

// IssueRequest sends an arbitrary request through the correlator and returns
// its future.
func (s *Session) IssueRequest(ctx context.Context, action string, payload any) (*Pending, error) {
	return s.correlator.Issue(ctx, action, payload)
}

// Authenticate re-runs the authentication exchange with the configured
// credential.
func (s *Session) Authenticate(ctx context.Context) error {
	return s.bootstrap.Authenticate(ctx)
}

// GetCall returns the live call with the given id. Evicted calls are not
// found here even though previously obtained references stay valid.
func (s *Session) GetCall(id string) (*Call, bool) {
	return s.registry.Get(id)
}

// ListCalls returns a snapshot of every live call.
func (s *Session) ListCalls() []*Call {
	return s.registry.List()
}

// ConnectionInfo returns the server identity captured during the handshake.
func (s *Session) ConnectionInfo() (*ConnectionInfo, bool) {
	return s.bootstrap.Info()
}

// PlaceCall asks the phone collaborator to place an outbound call. The call
// entity itself appears once the server announces it on the call channel.
func (s *Session) PlaceCall(ctx context.Context, req PlaceCallRequest) error {
	if req.ApplicationID == "" {
		req.ApplicationID = s.cfg.ApplicationID
	}
	return s.phone.PlaceCall(ctx, req)
}
