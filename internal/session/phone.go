package session

import "context"

// Phone is the external media collaborator. The session calls into it for
// device registration and call placement and reacts to the events it emits;
// all media logic stays on the other side of this interface.
type Phone interface {
	RegisterDevice(ctx context.Context, cfg DeviceConfig) error
	PlaceCall(ctx context.Context, req PlaceCallRequest) error
	Answer(ctx context.Context, callID string, opts AnswerOptions) error

	// Events delivers media-session announcements and stream changes. The
	// channel is closed when the phone shuts down. A nil channel means the
	// phone emits nothing.
	Events() <-chan PhoneEvent
}

// DeviceConfig parameterises device registration after authentication.
type DeviceConfig struct {
	AgentID  string
	Username string
	Password string
	Realm    string
}

// PlaceCallRequest describes an outbound call to place.
type PlaceCallRequest struct {
	Destination   string
	ApplicationID string
}

// AnswerOptions parameterises answering at the media layer.
type AnswerOptions struct {
	AutoAnswer bool
}

// PhoneEvent kinds.
const (
	PhoneEventNewMediaSession      = "new_media_session"
	PhoneEventLocalStreamsChanged  = "local_streams_changed"
	PhoneEventRemoteStreamsChanged = "remote_streams_changed"
)

// PhoneEvent is one notification from the phone collaborator. A media
// session may be announced before the server told us its call id; the
// session then correlates through the registry's media index.
type PhoneEvent struct {
	Kind    string
	MediaID string
	CallID  string
	Local   MediaStream
	Remote  MediaStream
}

// NopPhone is a Phone that does nothing. It backs sessions that run without
// a media stack.
type NopPhone struct{}

func (NopPhone) RegisterDevice(context.Context, DeviceConfig) error  { return nil }
func (NopPhone) PlaceCall(context.Context, PlaceCallRequest) error   { return nil }
func (NopPhone) Answer(context.Context, string, AnswerOptions) error { return nil }
func (NopPhone) Events() <-chan PhoneEvent                           { return nil }
