package session

// Lifecycle event names carried on the call channel. Ringing creates the
// entity; hangup is terminal. Execute, dtmf, voice and silence are
// annotations that mutate auxiliary attributes without changing the state
// field.
const (
	EventRinging = "ringing"
	EventActive  = "active"
	EventBridge  = "bridge"
	EventHold    = "hold"
	EventUnhold  = "unhold"
	EventExecute = "execute"
	EventDTMF    = "dtmf"
	EventVoice   = "voice"
	EventSilence = "silence"
	EventHangup  = "hangup"
)

// Endpoint describes one side of a call leg.
type Endpoint struct {
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
}

// QueueInfo describes the queue a call was delivered through, when any.
// Type drives the auto-answer eligibility predicate.
type QueueInfo struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// Queue types whose calls are eligible for auto-answer.
const (
	QueueTypeOffline = "offline"
	QueueTypePreview = "preview"
)

// CallEvent is the payload of a call channel frame: one lifecycle transition
// for one call id.
type CallEvent struct {
	ID        string        `json:"id"`
	Event     string        `json:"event"`
	Timestamp int64         `json:"timestamp"`
	Data      CallEventData `json:"data,omitempty"`
}

// CallEventData carries the event-specific attributes. Only the fields
// relevant to the event name are populated by the server.
type CallEventData struct {
	Direction     string     `json:"direction,omitempty"`
	Destination   string     `json:"destination,omitempty"`
	From          *Endpoint  `json:"from,omitempty"`
	To            *Endpoint  `json:"to,omitempty"`
	Queue         *QueueInfo `json:"queue,omitempty"`
	ParentID      string     `json:"parent_id,omitempty"`
	BridgedID     string     `json:"bridged_id,omitempty"`
	MediaID       string     `json:"media_id,omitempty"`
	ApplicationID string     `json:"application_id,omitempty"`
	Application   string     `json:"application,omitempty"`
	Digit         string     `json:"digit,omitempty"`
	Cause         string     `json:"cause,omitempty"`
	SIP           int        `json:"sip,omitempty"`
}
