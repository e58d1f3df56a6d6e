/*
Package session implements the voxwire session layer.

# Architecture Overview

One Session owns one bidirectional transport connection. Every inbound frame
passes through the Router exactly once: replies (positive replySequenceId)
settle the Correlator's matching pending entry, the greeting runs the
Bootstrap handshake, call lifecycle events drive the Registry and its state
machine, and every other named event fans out through the Dispatcher.

Outbound requests flow the other way, from any caller through
Correlator.Issue to the transport. Issue never blocks on the server; the
result is observed through the returned Pending, which settles while a later
inbound frame is handled.

# Package Structure

  - frame.go: wire shape and inbound classification
  - correlator.go: sequence ids, pending table, request futures, expiry
  - router.go: total classification of inbound frames
  - dispatcher.go: named channels, handle-based subscriptions, ordered fan-out
  - call.go / call_event.go: the Call entity, its state machine, derived
    permission predicates, and thin control requests
  - registry.go: live-call index with an exact media-session secondary index
  - bootstrap.go: greeting capture, authentication, device registration
  - session.go: wiring, read loop, public surface
  - metrics.go: Prometheus collectors for the request and event paths
  - phone.go: the consumed media-collaborator contract

# Sub-packages

  - config/: session configuration with validation
  - errs/: sentinel errors and error types
  - ids/: ULID generation for subscription handles
  - jsoncodec/: JSON marshaling utilities
  - logging/: logger interface and adapters

# Concurrency

The read loop handles one inbound frame to completion before reading the
next, so two inbound messages never interleave. Mutexes on the correlator,
dispatcher, registry and calls exist for the holders on the other side:
UI goroutines reading calls, expiry timers, and the handshake continuation.
*/
package session
