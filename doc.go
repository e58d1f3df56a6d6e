// Package voxwire is a client-side session layer for call-control servers.
// It turns one bidirectional frame transport into a sequence-correlated
// request/reply facility, a named-channel event dispatcher, and a registry of
// live telephony calls with a validated lifecycle state machine.
//
// A Session is created from a Config, connected over one of the registered
// transports (ws, nats, or the in-memory channel transport), and handshaken
// automatically: the server greeting is captured, the configured credential is
// presented, and optional device registration runs through the external Phone
// collaborator. From then on the session routes every inbound frame exactly
// once: replies settle the matching request future, call events drive the
// registry, and everything else fans out to channel subscribers.
//
// Call entities returned by GetCall and the call channel stay valid after
// their terminal hangup event; only registry lookups stop finding them.
// Derived predicates (MayAnswer, MayHold, MaySendDTMF, ...) are recomputed
// from current attributes on every read, and hold/unhold requests that fail
// their predicate are rejected locally without a server round trip.
//
// The layer keeps no state across connections, never retries a request, and
// never reconnects a transport; callers wanting timeout semantics beyond the
// configurable per-request expiry can race a Pending against their own timer.
//
// # Transports
//
// Import a transport package for its side effect to make it available by
// name in Config.Transport:
//   - ws: websocket, one text message per frame
//   - nats: publish on a subject, receive on a per-session inbox
//   - channel: in-memory pair for testing and local development
package voxwire
