package session

import (
	"context"

	"github.com/voxwire/voxwire/internal/session/config"
	"github.com/voxwire/voxwire/internal/session/jsoncodec"
	"github.com/voxwire/voxwire/internal/session/logging"
)

// Router classifies every inbound frame exactly once: replies go to the
// correlator, the greeting to the bootstrap, call lifecycle events to the
// registry, and everything else with a name to the dispatcher. Nothing is
// dropped without a log line.
type Router struct {
	correlator *Correlator
	dispatcher *Dispatcher
	registry   *Registry
	bootstrap  *Bootstrap
	cfg        *config.Config
	log        logging.SessionLogger
	metrics    *SessionMetrics
}

// NewRouter wires the router to its targets.
func NewRouter(correlator *Correlator, dispatcher *Dispatcher, registry *Registry, bootstrap *Bootstrap, cfg *config.Config, log logging.SessionLogger, metrics *SessionMetrics) *Router {
	if log == nil {
		log = logging.NewNopSessionLogger()
	}
	return &Router{
		correlator: correlator,
		dispatcher: dispatcher,
		registry:   registry,
		bootstrap:  bootstrap,
		cfg:        cfg,
		log:        log,
		metrics:    metrics,
	}
}

// Route handles one raw inbound frame to completion.
func (r *Router) Route(ctx context.Context, raw []byte) {
	var frame Frame
	if err := jsoncodec.Unmarshal(raw, &frame); err != nil {
		r.log.Error("undecodable inbound frame dropped", err, logging.LogFields{
			"bytes": len(raw),
		})
		return
	}

	switch frame.Kind() {
	case KindReply:
		r.correlator.Complete(frame.ReplySequenceID, frame.Status, frame.Payload, frame.Error)

	case KindEvent:
		r.routeEvent(ctx, frame)

	default:
		r.metrics.unhandledEvent()
		r.log.Warn("inbound frame with no reply reference and no event name", logging.LogFields{
			"bytes": len(raw),
		})
	}
}

func (r *Router) routeEvent(ctx context.Context, frame Frame) {
	switch frame.Name {
	case ChannelGreeting:
		r.metrics.eventDispatched(ChannelGreeting)
		r.bootstrap.HandleGreeting(ctx, frame.Payload)

	case ChannelCall:
		var ev CallEvent
		if err := jsoncodec.Unmarshal(frame.Payload, &ev); err != nil {
			r.log.Error("malformed call event dropped", err, nil)
			return
		}
		r.metrics.eventDispatched(ChannelCall)
		if _, err := r.registry.Apply(ev); err != nil {
			r.log.Warn("call transition rejected", logging.LogFields{
				"call_id": ev.ID,
				"event":   ev.Event,
				"error":   err.Error(),
			})
		}

	default:
		delivered := r.dispatcher.Publish(frame.Name, Event{Payload: frame.Payload})
		r.metrics.eventDispatched(frame.Name)
		if delivered == 0 && !r.cfg.KnownEvent(frame.Name) {
			r.metrics.unhandledEvent()
			r.log.Warn("unhandled event", logging.LogFields{
				"name": frame.Name,
			})
		}
	}
}
