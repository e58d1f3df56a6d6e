package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voxwire/voxwire/internal/session/errs"
)

// CallState is the externally observed lifecycle state of a call.
type CallState string

const (
	StateRinging CallState = "ringing"
	StateActive  CallState = "active"
	StateHold    CallState = "hold"
	StateBridge  CallState = "bridge"
	StateHangup  CallState = "hangup"
)

// Call directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Hangup causes this layer infers locally when Hangup is called without an
// explicit cause.
const (
	CauseNormalClearing   = "NORMAL_CLEARING"
	CauseUserBusy         = "USER_BUSY"
	CauseOriginatorCancel = "ORIGINATOR_CANCEL"
)

// requester issues control requests through the correlator. *Correlator
// satisfies it; tests substitute their own.
type requester interface {
	Issue(ctx context.Context, action string, payload any) (*Pending, error)
}

// MediaStream is an opaque handle to a media stream owned by the phone
// collaborator. This layer stores and clears it but never inspects it.
type MediaStream any

// Call tracks one telephony leg for the life of the connection. The identity
// (call id) is immutable; every lifecycle event for the same id mutates this
// object in place so holders always observe the current state. After the
// terminal hangup event the call is evicted from the registry but the object
// stays valid: terminal fields remain readable forever.
//
// A Call is safe for concurrent use: the routing loop mutates it while UI
// code reads it.
type Call struct {
	mu sync.RWMutex

	id            string
	applicationID string
	direction     string
	from          *Endpoint
	to            *Endpoint
	destination   string
	queue         *QueueInfo
	parentID      string
	bridgedID     string
	mediaID       string

	// Unix milliseconds; zero until set, each set at most once.
	createdAt  int64
	answeredAt int64
	bridgedAt  int64
	hangupAt   int64

	state        CallState
	hangupCause  string
	sipStatus    int
	muted        bool
	voiceActive  bool
	digits       []string
	applications []string

	localStream  MediaStream
	remoteStream MediaStream

	req requester
	now func() int64
}

// newCall constructs a call from its creation (ringing) event.
func newCall(ev CallEvent, req requester) *Call {
	return &Call{
		id:            ev.ID,
		applicationID: ev.Data.ApplicationID,
		direction:     ev.Data.Direction,
		from:          ev.Data.From,
		to:            ev.Data.To,
		destination:   ev.Data.Destination,
		queue:         ev.Data.Queue,
		parentID:      ev.Data.ParentID,
		mediaID:       ev.Data.MediaID,
		createdAt:     ev.Timestamp,
		state:         StateRinging,
		req:           req,
		now:           func() int64 { return time.Now().UnixMilli() },
	}
}

// apply validates and applies one lifecycle event. Invalid transitions are
// rejected with an error and leave the call untouched.
func (c *Call) apply(ev CallEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateHangup {
		return fmt.Errorf("call %s: event %q after hangup", c.id, ev.Event)
	}

	switch ev.Event {
	case EventRinging:
		// The registry constructs on ringing; a repeat for a live id is a
		// duplicate creation signal and must not reset anything.
		return nil

	case EventActive:
		if c.state != StateRinging && c.state != StateHold {
			return c.transitionError(ev.Event)
		}
		c.state = StateActive
		if c.answeredAt == 0 {
			c.answeredAt = ev.Timestamp
			// Inbound legs are considered bridged to their parent the moment
			// they are answered.
			if c.direction == DirectionInbound {
				if c.bridgedAt == 0 {
					c.bridgedAt = ev.Timestamp
				}
				if c.bridgedID == "" && c.parentID != "" {
					c.bridgedID = c.parentID
				}
			}
		}

	case EventBridge:
		if c.state != StateActive {
			return c.transitionError(ev.Event)
		}
		c.state = StateBridge
		if c.bridgedAt == 0 {
			c.bridgedAt = ev.Timestamp
		}
		if c.bridgedID == "" && ev.Data.BridgedID != "" {
			c.bridgedID = ev.Data.BridgedID
		}
		if ev.Data.To != nil {
			c.to = ev.Data.To
		}
		if ev.Data.Destination != "" {
			c.destination = ev.Data.Destination
		}

	case EventHold:
		if c.state != StateActive && c.state != StateBridge {
			return c.transitionError(ev.Event)
		}
		c.state = StateHold

	case EventUnhold:
		if c.state != StateHold {
			return c.transitionError(ev.Event)
		}
		c.state = StateActive

	case EventExecute:
		if c.state != StateActive {
			return c.transitionError(ev.Event)
		}
		c.applications = append(c.applications, ev.Data.Application)

	case EventDTMF:
		if c.state != StateActive {
			return c.transitionError(ev.Event)
		}
		c.digits = append(c.digits, ev.Data.Digit)

	case EventVoice:
		if c.state != StateActive {
			return c.transitionError(ev.Event)
		}
		c.voiceActive = true

	case EventSilence:
		if c.state != StateActive {
			return c.transitionError(ev.Event)
		}
		c.voiceActive = false

	case EventHangup:
		c.state = StateHangup
		if c.hangupAt == 0 {
			c.hangupAt = ev.Timestamp
		}
		c.hangupCause = ev.Data.Cause
		c.sipStatus = ev.Data.SIP
		c.voiceActive = false
		c.remoteStream = nil

	default:
		return fmt.Errorf("call %s: unknown event %q", c.id, ev.Event)
	}

	return nil
}

func (c *Call) transitionError(event string) error {
	return fmt.Errorf("call %s: event %q invalid in state %q", c.id, event, c.state)
}

// ID returns the immutable call identifier.
func (c *Call) ID() string { return c.id }

// ApplicationID returns the application scope for control requests.
func (c *Call) ApplicationID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.applicationID
}

// State returns the current lifecycle state.
func (c *Call) State() CallState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Direction reports whether the leg is inbound or outbound.
func (c *Call) Direction() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.direction
}

// From returns the originating endpoint descriptor.
func (c *Call) From() *Endpoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.from
}

// To returns the destination endpoint descriptor, when resolved.
func (c *Call) To() *Endpoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.to
}

// Destination returns the dialed destination.
func (c *Call) Destination() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.destination
}

// Queue returns the queue-membership descriptor, or nil.
func (c *Call) Queue() *QueueInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.queue
}

// ParentID returns the parent call id, when any.
func (c *Call) ParentID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parentID
}

// BridgedID returns the counterpart call id once bridged.
func (c *Call) BridgedID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bridgedID
}

// MediaID returns the media-session identifier bound to this call, when any.
func (c *Call) MediaID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mediaID
}

// CreatedAt, AnsweredAt, BridgedAt and HangupAt return Unix-millisecond
// timestamps, zero until the corresponding transition happened.
func (c *Call) CreatedAt() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.createdAt
}

func (c *Call) AnsweredAt() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.answeredAt
}

func (c *Call) BridgedAt() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bridgedAt
}

func (c *Call) HangupAt() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hangupAt
}

// HangupCause returns the recorded cause once the call ended.
func (c *Call) HangupCause() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hangupCause
}

// SIPStatus returns the protocol status code recorded at hangup, when any.
func (c *Call) SIPStatus() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sipStatus
}

// Muted reports the local mute flag.
func (c *Call) Muted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.muted
}

// VoiceActive reports the server-side voice activity flag.
func (c *Call) VoiceActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.voiceActive
}

// Digits returns a copy of the DTMF digits received so far.
func (c *Call) Digits() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.digits))
	copy(out, c.digits)
	return out
}

// Applications returns a copy of the executed application names, in order.
func (c *Call) Applications() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.applications))
	copy(out, c.applications)
	return out
}

// LocalStream returns the local media-stream handle, when assigned.
func (c *Call) LocalStream() MediaStream {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.localStream
}

// RemoteStream returns the remote media-stream handle, when assigned.
func (c *Call) RemoteStream() MediaStream {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.remoteStream
}

func (c *Call) setStreams(local, remote MediaStream, setLocal, setRemote bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if setLocal {
		c.localStream = local
	}
	if setRemote {
		c.remoteStream = remote
	}
}

func (c *Call) bindMedia(mediaID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mediaID == "" {
		c.mediaID = mediaID
	}
}

// Ended reports whether the terminal hangup transition happened.
func (c *Call) Ended() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hangupAt != 0
}

// MayHangup reports whether a hangup request makes sense.
func (c *Call) MayHangup() bool {
	return !c.Ended()
}

// MayHold reports whether the call can be put on hold.
func (c *Call) MayHold() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hangupAt == 0 && (c.state == StateActive || c.state == StateBridge)
}

// MayUnhold reports whether the call can be resumed.
func (c *Call) MayUnhold() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hangupAt == 0 && c.state == StateHold
}

// MayAnswer reports whether the call is still awaiting an answer.
func (c *Call) MayAnswer() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hangupAt == 0 && c.answeredAt == 0
}

// MaySendDTMF reports whether digits can be sent on this call.
func (c *Call) MaySendDTMF() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.answeredAt != 0 && c.hangupAt == 0
}

// AutoAnswerEligible reports the queue-side half of the auto-answer
// predicate: a queue descriptor is present and its type is offline or
// preview. The UI-foreground half is evaluated by the caller.
func (c *Call) AutoAnswerEligible() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.queue != nil && (c.queue.Type == QueueTypeOffline || c.queue.Type == QueueTypePreview)
}

// Duration is answer-independent: elapsed time since creation while the call
// is up, frozen at hangup once it ended. Rounded to whole seconds.
func (c *Call) Duration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	end := c.hangupAt
	if end == 0 {
		end = c.now()
	}
	return (time.Duration(end-c.createdAt) * time.Millisecond).Round(time.Second)
}

// controlPayload is the request body shared by all call control operations.
type controlPayload struct {
	CallID        string `json:"call_id"`
	ApplicationID string `json:"application_id,omitempty"`
	Cause         string `json:"cause,omitempty"`
	Digits        string `json:"digits,omitempty"`
	Destination   string `json:"destination,omitempty"`
	BridgedID     string `json:"bridged_id,omitempty"`
	TargetID      string `json:"target_id,omitempty"`
	UserID        string `json:"user_id,omitempty"`
	Muted         *bool  `json:"muted,omitempty"`
}

func (c *Call) issue(ctx context.Context, action string, payload controlPayload) (*Pending, error) {
	if c.req == nil {
		return nil, errs.ErrNotConnected
	}
	payload.CallID = c.id
	payload.ApplicationID = c.ApplicationID()
	return c.req.Issue(ctx, action, payload)
}

// Answer requests the server answer this call.
func (c *Call) Answer(ctx context.Context) (*Pending, error) {
	return c.issue(ctx, "answer", controlPayload{})
}

// Hangup requests termination. With an empty cause one is inferred locally:
// a never-answered inbound leg reports busy, a never-answered outbound leg
// reports originator cancel, anything else is normal clearing.
func (c *Call) Hangup(ctx context.Context, cause string) (*Pending, error) {
	if !c.MayHangup() {
		return nil, errs.ErrCallEnded
	}
	if cause == "" {
		cause = c.inferHangupCause()
	}
	return c.issue(ctx, "hangup", controlPayload{Cause: cause})
}

func (c *Call) inferHangupCause() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.answeredAt == 0 {
		if c.direction == DirectionInbound {
			return CauseUserBusy
		}
		return CauseOriginatorCancel
	}
	return CauseNormalClearing
}

// Hold requests hold. It rejects locally, without a round trip, when the
// call is not in a holdable state.
func (c *Call) Hold(ctx context.Context) (*Pending, error) {
	if c.Ended() {
		return nil, errs.ErrCallEnded
	}
	if !c.MayHold() {
		if c.State() == StateHold {
			return nil, errs.ErrAlreadyOnHold
		}
		return nil, fmt.Errorf("voxwire: call %s cannot be held in state %q", c.id, c.State())
	}
	return c.issue(ctx, "hold", controlPayload{})
}

// Unhold requests resume. It rejects locally when the call is not on hold.
func (c *Call) Unhold(ctx context.Context) (*Pending, error) {
	if c.Ended() {
		return nil, errs.ErrCallEnded
	}
	if !c.MayUnhold() {
		return nil, errs.ErrNotOnHold
	}
	return c.issue(ctx, "unhold", controlPayload{})
}

// SendDigits transmits DTMF digits on an answered call.
func (c *Call) SendDigits(ctx context.Context, digits string) (*Pending, error) {
	if c.Ended() {
		return nil, errs.ErrCallEnded
	}
	if !c.MaySendDTMF() {
		return nil, errs.ErrNotAnswered
	}
	return c.issue(ctx, "send_digits", controlPayload{Digits: digits})
}

// BlindTransfer hands the call off to destination without consultation.
func (c *Call) BlindTransfer(ctx context.Context, destination string) (*Pending, error) {
	if c.Ended() {
		return nil, errs.ErrCallEnded
	}
	return c.issue(ctx, "blind_transfer", controlPayload{Destination: destination})
}

// Mute sets the local mute flag and informs the server.
func (c *Call) Mute(ctx context.Context, muted bool) (*Pending, error) {
	if c.Ended() {
		return nil, errs.ErrCallEnded
	}
	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()
	return c.issue(ctx, "mute", controlPayload{Muted: &muted})
}

// BridgeTo requests bridging this leg to another call.
func (c *Call) BridgeTo(ctx context.Context, otherCallID string) (*Pending, error) {
	if c.Ended() {
		return nil, errs.ErrCallEnded
	}
	return c.issue(ctx, "bridge", controlPayload{BridgedID: otherCallID})
}

// Eavesdrop requests listening in on another leg through this call.
func (c *Call) Eavesdrop(ctx context.Context, targetCallID string) (*Pending, error) {
	if c.Ended() {
		return nil, errs.ErrCallEnded
	}
	return c.issue(ctx, "eavesdrop", controlPayload{TargetID: targetCallID})
}

// RouteToUser asks the server to route this call to another user.
func (c *Call) RouteToUser(ctx context.Context, userID string) (*Pending, error) {
	if c.Ended() {
		return nil, errs.ErrCallEnded
	}
	return c.issue(ctx, "route_to_user", controlPayload{UserID: userID})
}
