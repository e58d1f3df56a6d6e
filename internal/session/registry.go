package session

import (
	"sync"

	"github.com/voxwire/voxwire/internal/session/logging"
)

// Registry is the in-memory index of live calls. Entries are created by the
// ringing event, mutated in place by every later event for the same id, and
// evicted the moment the terminal hangup transition has been applied. The
// evicted object stays valid for anyone still holding it; eviction only
// affects lookups.
type Registry struct {
	mu      sync.RWMutex
	calls   map[string]*Call
	byMedia map[string]string

	dispatcher *Dispatcher
	req        requester
	log        logging.SessionLogger
	metrics    *SessionMetrics
}

// NewRegistry creates an empty call registry. Applied transitions are
// published on the call channel of dispatcher.
func NewRegistry(dispatcher *Dispatcher, req requester, log logging.SessionLogger, metrics *SessionMetrics) *Registry {
	if log == nil {
		log = logging.NewNopSessionLogger()
	}
	return &Registry{
		calls:      make(map[string]*Call),
		byMedia:    make(map[string]string),
		dispatcher: dispatcher,
		req:        req,
		log:        log,
		metrics:    metrics,
	}
}

// Apply routes one lifecycle event to the call it addresses, creating the
// entity on the first ringing for an unknown id and evicting it after the
// terminal transition. Subscribers on the call channel are notified after the
// event has been applied, so the snapshot they see already reflects it,
// including the terminal hangup fields.
func (r *Registry) Apply(ev CallEvent) (*Call, error) {
	r.mu.Lock()
	call, exists := r.calls[ev.ID]

	if !exists {
		if ev.Event != EventRinging {
			r.mu.Unlock()
			r.log.Warn("event for unknown call dropped", logging.LogFields{
				"call_id": ev.ID,
				"event":   ev.Event,
			})
			return nil, nil
		}
		call = newCall(ev, r.req)
		r.calls[ev.ID] = call
		if ev.Data.MediaID != "" {
			r.byMedia[ev.Data.MediaID] = ev.ID
		}
		r.mu.Unlock()
		r.metrics.callTracked()
	} else {
		r.mu.Unlock()
		if err := call.apply(ev); err != nil {
			r.log.Warn("call event rejected", logging.LogFields{
				"call_id": ev.ID,
				"event":   ev.Event,
			})
			return call, err
		}
		if call.State() == StateHangup {
			r.evict(call)
		}
	}

	r.dispatcher.Publish(ChannelCall, Event{Action: ev.Event, Call: call})
	return call, nil
}

func (r *Registry) evict(call *Call) {
	r.mu.Lock()
	delete(r.calls, call.ID())
	if mediaID := call.MediaID(); mediaID != "" {
		delete(r.byMedia, mediaID)
	}
	r.mu.Unlock()
	r.metrics.callEvicted()
}

// Get returns the live call with the given id.
func (r *Registry) Get(id string) (*Call, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	call, ok := r.calls[id]
	return call, ok
}

// List returns a snapshot of every live call.
func (r *Registry) List() []*Call {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Call, 0, len(r.calls))
	for _, call := range r.calls {
		out = append(out, call)
	}
	return out
}

// FindByMediaID resolves a call through the exact media-session index,
// populated at creation or by BindMedia.
func (r *Registry) FindByMediaID(mediaID string) (*Call, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byMedia[mediaID]
	if !ok {
		return nil, false
	}
	call, ok := r.calls[id]
	return call, ok
}

// BindMedia records the media-session id for a live call so later media
// events can be correlated without a call id.
func (r *Registry) BindMedia(mediaID, callID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	call, ok := r.calls[callID]
	if !ok {
		return false
	}
	call.bindMedia(mediaID)
	r.byMedia[mediaID] = callID
	return true
}

// FindBy scans live calls for the first one matching pred. O(n) over live
// calls, which is bounded by a single agent's concurrent lines.
func (r *Registry) FindBy(pred func(*Call) bool) (*Call, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, call := range r.calls {
		if pred(call) {
			return call, true
		}
	}
	return nil, false
}

// Len reports the number of live calls.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.calls)
}
