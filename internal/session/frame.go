package session

import (
	"encoding/json"
)

// Reply status values carried on inbound reply frames.
const (
	StatusOK   = "OK"
	StatusFail = "FAIL"
)

// Core event names the router handles itself. Everything else is fanned out
// through the dispatcher under its own name.
const (
	ChannelGreeting = "greeting"
	ChannelCall     = "call"
)

// Frame is the single wire shape exchanged with the server. An outbound
// request carries SequenceID, Action and Payload. An inbound frame is either
// a reply (ReplySequenceID > 0, Status, Payload or Error) or an event (Name,
// Payload). Exactly one of the two inbound shapes holds per frame.
type Frame struct {
	SequenceID      uint64          `json:"sequenceId,omitempty"`
	ReplySequenceID uint64          `json:"replySequenceId,omitempty"`
	Action          string          `json:"action,omitempty"`
	Name            string          `json:"name,omitempty"`
	Status          string          `json:"status,omitempty"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	Error           json.RawMessage `json:"error,omitempty"`
}

// FrameKind classifies an inbound frame.
type FrameKind int

const (
	// KindUnhandled marks a frame with neither a reply reference nor an
	// event name. It is logged and dropped, never treated as an error.
	KindUnhandled FrameKind = iota
	KindReply
	KindEvent
)

// Kind reports how the router should treat this frame. A positive reply
// sequence wins over an event name so a malformed frame carrying both is
// still classified exactly once.
func (f *Frame) Kind() FrameKind {
	switch {
	case f.ReplySequenceID > 0:
		return KindReply
	case f.Name != "":
		return KindEvent
	default:
		return KindUnhandled
	}
}
