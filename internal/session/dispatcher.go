package session

import (
	"encoding/json"
	"sync"

	"github.com/voxwire/voxwire/internal/session/ids"
	"github.com/voxwire/voxwire/internal/session/logging"
)

// Event is what subscribers receive. Wire events carry the raw payload; call
// channel notifications additionally carry the lifecycle action and the
// affected Call entity.
type Event struct {
	Channel string
	Payload json.RawMessage

	// Set only on the call channel.
	Action string
	Call   *Call
}

// Handler consumes events published on a channel the holder subscribed to.
type Handler func(ev Event)

// Subscription is the handle returned by Subscribe. Cancelling it removes
// exactly this registration, even when the same handler function was
// subscribed more than once.
type Subscription struct {
	id      string
	channel string
	d       *Dispatcher
}

// Cancel removes the subscription. Cancelling twice is a no-op.
func (s *Subscription) Cancel() {
	if s == nil || s.d == nil {
		return
	}
	s.d.Unsubscribe(s)
}

type subscriberEntry struct {
	id      string
	handler Handler
}

// Dispatcher fans inbound events out to per-channel subscriber lists.
// Handlers run synchronously in registration order; there is no buffering, so
// publishing on a channel nobody subscribed to is silent.
type Dispatcher struct {
	mu       sync.RWMutex
	channels map[string][]subscriberEntry
	log      logging.SessionLogger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(log logging.SessionLogger) *Dispatcher {
	if log == nil {
		log = logging.NewNopSessionLogger()
	}
	return &Dispatcher{
		channels: make(map[string][]subscriberEntry),
		log:      log,
	}
}

// Subscribe registers handler on channel. Subscribing the same handler twice
// retains both registrations and both are invoked; the returned handles tell
// them apart.
func (d *Dispatcher) Subscribe(channel string, handler Handler) *Subscription {
	if handler == nil {
		return nil
	}
	sub := &Subscription{id: ids.NewULID(), channel: channel, d: d}

	d.mu.Lock()
	d.channels[channel] = append(d.channels[channel], subscriberEntry{id: sub.id, handler: handler})
	d.mu.Unlock()

	return sub
}

// Unsubscribe removes the registration identified by sub. Removing a handle
// that was never added, or was already removed, is a no-op.
func (d *Dispatcher) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	entries := d.channels[sub.channel]
	for i, entry := range entries {
		if entry.id == sub.id {
			d.channels[sub.channel] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(d.channels[sub.channel]) == 0 {
		delete(d.channels, sub.channel)
	}
}

// Publish invokes every current subscriber of channel synchronously, in
// registration order, and returns how many handlers ran. A panicking handler
// is recovered and logged so the remaining handlers still run.
func (d *Dispatcher) Publish(channel string, ev Event) int {
	d.mu.RLock()
	entries := make([]subscriberEntry, len(d.channels[channel]))
	copy(entries, d.channels[channel])
	d.mu.RUnlock()

	ev.Channel = channel
	for _, entry := range entries {
		d.invoke(channel, entry, ev)
	}
	return len(entries)
}

// HasSubscribers reports whether channel currently has at least one
// registration.
func (d *Dispatcher) HasSubscribers(channel string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.channels[channel]) > 0
}

func (d *Dispatcher) invoke(channel string, entry subscriberEntry, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("event handler panicked", nil, logging.LogFields{
				"channel":      channel,
				"subscription": entry.id,
				"panic":        r,
			})
		}
	}()
	entry.handler(ev)
}
