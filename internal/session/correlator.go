package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/voxwire/voxwire/internal/session/errs"
	"github.com/voxwire/voxwire/internal/session/jsoncodec"
	"github.com/voxwire/voxwire/internal/session/logging"
)

// sendFunc hands an encoded frame to the transport. The session installs it
// once the connection is up.
type sendFunc func(ctx context.Context, frame []byte) error

// Pending is the future side of one issued request. It settles exactly once:
// with the reply payload on OK, with a *ServerError on FAIL, with
// ErrRequestExpired when the expiry policy fires, or with ErrSessionClosed
// when the session shuts down first.
type Pending struct {
	seq    uint64
	action string

	once    sync.Once
	done    chan struct{}
	payload json.RawMessage
	err     error

	span  trace.Span
	timer *time.Timer
}

// SequenceID returns the sequence id assigned at issue time.
func (p *Pending) SequenceID() uint64 { return p.seq }

// Action returns the action this request was issued for.
func (p *Pending) Action() string { return p.action }

// Done is closed once the request has settled.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Result returns the settlement. It must only be called after Done is
// closed; before that it reports the request as still pending.
func (p *Pending) Result() (json.RawMessage, error) {
	select {
	case <-p.done:
		return p.payload, p.err
	default:
		return nil, fmt.Errorf("voxwire: request %d (%s) still pending", p.seq, p.action)
	}
}

// Wait blocks until the request settles or ctx is done. Cancelling ctx does
// not withdraw the request; it only stops waiting.
func (p *Pending) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-p.done:
		return p.payload, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pending) settle(payload json.RawMessage, err error) {
	p.once.Do(func() {
		p.payload = payload
		p.err = err
		if p.timer != nil {
			p.timer.Stop()
		}
		if p.span != nil {
			if err != nil {
				p.span.RecordError(err)
				p.span.SetStatus(codes.Error, err.Error())
			} else {
				p.span.SetStatus(codes.Ok, "")
			}
			p.span.End()
		}
		close(p.done)
	})
}

// Correlator assigns sequence ids to outbound requests and settles the
// matching future when a reply arrives. Sequence ids start at 1 and are
// strictly increasing for the life of the connection; at most one pending
// entry exists per id.
type Correlator struct {
	mu      sync.Mutex
	nextSeq uint64
	pending map[uint64]*Pending
	closed  bool

	send    sendFunc
	expiry  time.Duration
	log     logging.SessionLogger
	metrics *SessionMetrics
	tracer  trace.Tracer
}

// NewCorrelator creates a correlator. expiry bounds how long a request may
// stay pending; zero disables expiry.
func NewCorrelator(log logging.SessionLogger, metrics *SessionMetrics, tracer trace.Tracer, expiry time.Duration) *Correlator {
	if log == nil {
		log = logging.NewNopSessionLogger()
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("voxwire")
	}
	return &Correlator{
		pending: make(map[uint64]*Pending),
		expiry:  expiry,
		log:     log,
		metrics: metrics,
		tracer:  tracer,
	}
}

// SetSender installs the transport send function. Issue fails with
// ErrNotConnected until this has been called.
func (c *Correlator) SetSender(send sendFunc) {
	c.mu.Lock()
	c.send = send
	c.mu.Unlock()
}

// Issue allocates the next sequence id, records the pending entry, hands the
// encoded frame to the transport, and returns the future. Multiple requests
// may be outstanding at once; each settles independently and exactly once.
func (c *Correlator) Issue(ctx context.Context, action string, payload any) (*Pending, error) {
	var raw json.RawMessage
	if payload != nil {
		encoded, err := jsoncodec.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %q payload: %w", action, err)
		}
		raw = encoded
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errs.ErrSessionClosed
	}
	send := c.send
	if send == nil {
		c.mu.Unlock()
		return nil, errs.ErrNotConnected
	}

	c.nextSeq++
	seq := c.nextSeq

	p := &Pending{
		seq:    seq,
		action: action,
		done:   make(chan struct{}),
	}
	_, p.span = c.tracer.Start(ctx, "voxwire.request "+action, trace.WithAttributes(
		attribute.String("voxwire.action", action),
		attribute.Int64("voxwire.sequence_id", int64(seq)),
	))
	c.pending[seq] = p
	if c.expiry > 0 {
		p.timer = time.AfterFunc(c.expiry, func() { c.expire(seq) })
	}
	c.mu.Unlock()

	frame, err := jsoncodec.Marshal(Frame{SequenceID: seq, Action: action, Payload: raw})
	if err != nil {
		c.abandon(seq)
		return nil, fmt.Errorf("encode %q frame: %w", action, err)
	}

	if err := send(ctx, frame); err != nil {
		c.abandon(seq)
		return nil, fmt.Errorf("send %q: %w", action, err)
	}

	c.metrics.requestIssued()
	c.log.Debug("request issued", logging.LogFields{
		"action":      action,
		"sequence_id": seq,
	})
	return p, nil
}

// Complete settles the pending request matching replySeq. A reply with no
// pending entry is a stale reply: logged and dropped, never an error.
func (c *Correlator) Complete(replySeq uint64, status string, payload, errPayload json.RawMessage) {
	c.mu.Lock()
	p, ok := c.pending[replySeq]
	if ok {
		delete(c.pending, replySeq)
	}
	c.mu.Unlock()

	if !ok {
		c.metrics.staleReply()
		c.log.Debug("dropping stale reply", logging.LogFields{
			"reply_sequence_id": replySeq,
			"status":            status,
		})
		return
	}

	if status == StatusOK {
		c.metrics.requestCompleted(StatusOK)
		p.settle(payload, nil)
		return
	}

	c.metrics.requestCompleted(StatusFail)
	p.settle(nil, &errs.ServerError{Action: p.action, Payload: errPayload})
}

// FailAll settles every still-pending request with err. Called when the
// connection goes away so no holder waits forever on a dead session.
func (c *Correlator) FailAll(err error) {
	c.mu.Lock()
	c.closed = true
	orphans := make([]*Pending, 0, len(c.pending))
	for seq, p := range c.pending {
		orphans = append(orphans, p)
		delete(c.pending, seq)
	}
	c.mu.Unlock()

	for _, p := range orphans {
		c.metrics.requestAbandoned()
		p.settle(nil, err)
	}
}

// PendingCount reports how many requests are currently outstanding.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Correlator) expire(seq uint64) {
	c.mu.Lock()
	p, ok := c.pending[seq]
	if ok {
		delete(c.pending, seq)
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	c.metrics.requestExpired()
	c.log.Warn("request expired without a reply", logging.LogFields{
		"action":      p.action,
		"sequence_id": seq,
		"expiry":      c.expiry.String(),
	})
	p.settle(nil, errs.ErrRequestExpired)
}

func (c *Correlator) abandon(seq uint64) {
	c.mu.Lock()
	p, ok := c.pending[seq]
	if ok {
		delete(c.pending, seq)
	}
	c.mu.Unlock()
	if ok && p.span != nil {
		p.span.End()
	}
	if ok && p.timer != nil {
		p.timer.Stop()
	}
}
