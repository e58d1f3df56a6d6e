package voxwire

import (
	sessionpkg "github.com/voxwire/voxwire/internal/session"
	configpkg "github.com/voxwire/voxwire/internal/session/config"
	errspkg "github.com/voxwire/voxwire/internal/session/errs"
	idspkg "github.com/voxwire/voxwire/internal/session/ids"
	jsoncodec "github.com/voxwire/voxwire/internal/session/jsoncodec"
	loggingpkg "github.com/voxwire/voxwire/internal/session/logging"
	transportpkg "github.com/voxwire/voxwire/transport"
)

type (
	Config       = configpkg.Config
	Session      = sessionpkg.Session
	Dependencies = sessionpkg.Dependencies

	Frame     = sessionpkg.Frame
	FrameKind = sessionpkg.FrameKind
	Pending   = sessionpkg.Pending

	Event        = sessionpkg.Event
	Handler      = sessionpkg.Handler
	Subscription = sessionpkg.Subscription

	Call          = sessionpkg.Call
	CallState     = sessionpkg.CallState
	CallEvent     = sessionpkg.CallEvent
	CallEventData = sessionpkg.CallEventData
	Endpoint      = sessionpkg.Endpoint
	QueueInfo     = sessionpkg.QueueInfo
	MediaStream   = sessionpkg.MediaStream

	ConnectionInfo = sessionpkg.ConnectionInfo
	SessionMetrics = sessionpkg.SessionMetrics

	Phone            = sessionpkg.Phone
	NopPhone         = sessionpkg.NopPhone
	PhoneEvent       = sessionpkg.PhoneEvent
	DeviceConfig     = sessionpkg.DeviceConfig
	PlaceCallRequest = sessionpkg.PlaceCallRequest
	AnswerOptions    = sessionpkg.AnswerOptions

	LogFields     = loggingpkg.LogFields
	SessionLogger = loggingpkg.SessionLogger

	ServerError           = errspkg.ServerError
	ConfigValidationError = errspkg.ConfigValidationError

	// Transport surface
	TransportConn         = transportpkg.Conn
	TransportBuilder      = transportpkg.Builder
	TransportConfig       = transportpkg.Config
	TransportRegistry     = transportpkg.Registry
	TransportCapabilities = transportpkg.Capabilities
)

var (
	NewSession     = sessionpkg.NewSession
	ValidateConfig = configpkg.ValidateConfig

	NewSlogSessionLogger      = loggingpkg.NewSlogSessionLogger
	NewNopSessionLogger       = loggingpkg.NewNopSessionLogger
	NewWatermillSessionLogger = loggingpkg.NewWatermillSessionLogger

	NewSessionMetrics = sessionpkg.NewSessionMetrics

	// Transport registry. Import individual transports via:
	//   _ "github.com/voxwire/voxwire/transport/ws"
	DefaultTransportRegistry = transportpkg.DefaultRegistry
	RegisterTransport        = transportpkg.Register
	BuildTransport           = transportpkg.Build
	GetTransportCapabilities = transportpkg.GetCapabilities

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	NewULID = idspkg.NewULID

	ErrNotConnected   = errspkg.ErrNotConnected
	ErrSessionClosed  = errspkg.ErrSessionClosed
	ErrRequestExpired = errspkg.ErrRequestExpired
	ErrCallEnded      = errspkg.ErrCallEnded
	ErrAlreadyOnHold  = errspkg.ErrAlreadyOnHold
	ErrNotOnHold      = errspkg.ErrNotOnHold
	ErrNotAnswered    = errspkg.ErrNotAnswered
)

// Reply statuses carried on inbound reply frames.
const (
	StatusOK   = sessionpkg.StatusOK
	StatusFail = sessionpkg.StatusFail
)

// Call lifecycle states.
const (
	StateRinging = sessionpkg.StateRinging
	StateActive  = sessionpkg.StateActive
	StateHold    = sessionpkg.StateHold
	StateBridge  = sessionpkg.StateBridge
	StateHangup  = sessionpkg.StateHangup
)

// Call lifecycle event names.
const (
	EventRinging = sessionpkg.EventRinging
	EventActive  = sessionpkg.EventActive
	EventBridge  = sessionpkg.EventBridge
	EventHold    = sessionpkg.EventHold
	EventUnhold  = sessionpkg.EventUnhold
	EventExecute = sessionpkg.EventExecute
	EventDTMF    = sessionpkg.EventDTMF
	EventVoice   = sessionpkg.EventVoice
	EventSilence = sessionpkg.EventSilence
	EventHangup  = sessionpkg.EventHangup
)

// Core channels handled by the router itself.
const (
	ChannelGreeting = sessionpkg.ChannelGreeting
	ChannelCall     = sessionpkg.ChannelCall
)
