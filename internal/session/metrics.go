package session

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetrics tracks request/reply and event-dispatch statistics for one
// session. Collectors are created eagerly but only exported once Register is
// called with a non-nil registerer.
type SessionMetrics struct {
	mu         sync.Mutex
	registered bool

	requestsIssued    prometheus.Counter
	requestsCompleted *prometheus.CounterVec
	requestsExpired   prometheus.Counter
	staleReplies      prometheus.Counter
	eventsDispatched  *prometheus.CounterVec
	unhandledEvents   prometheus.Counter
	requestsInFlight  prometheus.Gauge
	liveCalls         prometheus.Gauge
}

func newSessionCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "voxwire",
		Subsystem: "session",
		Name:      name,
		Help:      help,
	})
}

func newSessionCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voxwire",
		Subsystem: "session",
		Name:      name,
		Help:      help,
	}, labels)
}

func newSessionGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "voxwire",
		Subsystem: "session",
		Name:      name,
		Help:      help,
	})
}

// NewSessionMetrics creates the collector set for one session.
func NewSessionMetrics() *SessionMetrics {
	return &SessionMetrics{
		requestsIssued: newSessionCounter("requests_issued_total",
			"Requests handed to the transport."),
		requestsCompleted: newSessionCounterVec("requests_completed_total",
			"Replies matched to a pending request, by status.", []string{"status"}),
		requestsExpired: newSessionCounter("requests_expired_total",
			"Pending requests failed by the expiry policy."),
		staleReplies: newSessionCounter("stale_replies_total",
			"Replies whose sequence id had no pending entry."),
		eventsDispatched: newSessionCounterVec("events_dispatched_total",
			"Inbound events fanned out, by channel.", []string{"channel"}),
		unhandledEvents: newSessionCounter("unhandled_events_total",
			"Inbound messages with no reply reference and no recognized event name."),
		requestsInFlight: newSessionGauge("requests_in_flight",
			"Requests issued and not yet settled."),
		liveCalls: newSessionGauge("live_calls",
			"Calls currently tracked by the registry."),
	}
}

// Register exports the collectors. It is idempotent and a nil registerer is
// a no-op, so metrics stay optional.
func (m *SessionMetrics) Register(reg prometheus.Registerer) error {
	if m == nil || reg == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.requestsIssued,
		m.requestsCompleted,
		m.requestsExpired,
		m.staleReplies,
		m.eventsDispatched,
		m.unhandledEvents,
		m.requestsInFlight,
		m.liveCalls,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	m.registered = true
	return nil
}

func (m *SessionMetrics) requestIssued() {
	if m == nil {
		return
	}
	m.requestsIssued.Inc()
	m.requestsInFlight.Inc()
}

func (m *SessionMetrics) requestCompleted(status string) {
	if m == nil {
		return
	}
	m.requestsCompleted.WithLabelValues(status).Inc()
	m.requestsInFlight.Dec()
}

func (m *SessionMetrics) requestExpired() {
	if m == nil {
		return
	}
	m.requestsExpired.Inc()
	m.requestsInFlight.Dec()
}

func (m *SessionMetrics) requestAbandoned() {
	if m == nil {
		return
	}
	m.requestsInFlight.Dec()
}

func (m *SessionMetrics) staleReply() {
	if m == nil {
		return
	}
	m.staleReplies.Inc()
}

func (m *SessionMetrics) eventDispatched(channel string) {
	if m == nil {
		return
	}
	m.eventsDispatched.WithLabelValues(channel).Inc()
}

func (m *SessionMetrics) unhandledEvent() {
	if m == nil {
		return
	}
	m.unhandledEvents.Inc()
}

func (m *SessionMetrics) callTracked() {
	if m == nil {
		return
	}
	m.liveCalls.Inc()
}

func (m *SessionMetrics) callEvicted() {
	if m == nil {
		return
	}
	m.liveCalls.Dec()
}
