package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxwire/voxwire/internal/session/config"
	"github.com/voxwire/voxwire/internal/session/errs"
	"github.com/voxwire/voxwire/internal/session/jsoncodec"
	"github.com/voxwire/voxwire/transport"
	"github.com/voxwire/voxwire/transport/channel"
)

// fakeServer plays the far side of a session over the in-memory transport:
// it greets on start, authenticates anything, and answers every other request
// with OK unless a handler overrides the verdict.
type fakeServer struct {
	conn     transport.Conn
	handlers map[string]func(Frame) Frame
}

func startFakeServer(t *testing.T, conn transport.Conn) *fakeServer {
	t.Helper()
	s := &fakeServer{conn: conn, handlers: map[string]func(Frame) Frame{}}

	greeting, err := jsoncodec.Marshal(ConnectionInfo{SocketID: "s1", ServerNode: "node-a", Session: "sess-1"})
	require.NoError(t, err)
	require.NoError(t, s.sendFrame(Frame{Name: ChannelGreeting, Payload: greeting}))

	go s.serve()
	return s
}

func (s *fakeServer) serve() {
	for {
		raw, err := s.conn.Recv(context.Background())
		if err != nil {
			return
		}
		var frame Frame
		if err := jsoncodec.Unmarshal(raw, &frame); err != nil {
			continue
		}
		reply := Frame{ReplySequenceID: frame.SequenceID, Status: StatusOK}
		if h, ok := s.handlers[frame.Action]; ok {
			reply = h(frame)
		}
		if reply.Status == "" {
			continue
		}
		_ = s.sendFrame(reply)
	}
}

func (s *fakeServer) sendFrame(frame Frame) error {
	raw, err := jsoncodec.Marshal(frame)
	if err != nil {
		return err
	}
	return s.conn.Send(context.Background(), raw)
}

func (s *fakeServer) sendCallEvent(t *testing.T, ev CallEvent) {
	t.Helper()
	payload, err := jsoncodec.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, s.sendFrame(Frame{Name: ChannelCall, Payload: payload}))
}

func newConnectedSession(t *testing.T, deps Dependencies) (*Session, *fakeServer) {
	t.Helper()
	// The dial context is released as soon as the session is up; the
	// connection must survive it.
	dialCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clientConn, serverConn, err := channel.Pair(dialCtx, nil)
	require.NoError(t, err)

	server := startFakeServer(t, serverConn)

	deps.Conn = clientConn
	sess, err := NewSession(&config.Config{Token: "secret", AgentID: "agent-1", ApplicationID: "app-1"}, nil, deps)
	require.NoError(t, err)
	require.NoError(t, sess.Connect(dialCtx))
	t.Cleanup(func() { _ = sess.Close() })
	return sess, server
}

func TestSessionConnectHandshake(t *testing.T) {
	sess, _ := newConnectedSession(t, Dependencies{})

	info, ok := sess.ConnectionInfo()
	require.True(t, ok)
	assert.Equal(t, "s1", info.SocketID)
	assert.Equal(t, "sess-1", info.Session)
}

func TestSessionConnectAuthFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clientConn, serverConn, err := channel.Pair(ctx, nil)
	require.NoError(t, err)

	server := &fakeServer{conn: serverConn, handlers: map[string]func(Frame) Frame{
		"authenticate": func(f Frame) Frame {
			return Frame{ReplySequenceID: f.SequenceID, Status: StatusFail, Error: json.RawMessage(`{"code":"bad_token"}`)}
		},
	}}
	greeting, err := jsoncodec.Marshal(ConnectionInfo{SocketID: "s1"})
	require.NoError(t, err)
	require.NoError(t, server.sendFrame(Frame{Name: ChannelGreeting, Payload: greeting}))
	go server.serve()

	sess, err := NewSession(&config.Config{Token: "wrong"}, nil, Dependencies{Conn: clientConn})
	require.NoError(t, err)
	defer sess.Close()

	err = sess.Connect(ctx)
	var serverErr *errs.ServerError
	require.ErrorAs(t, err, &serverErr)
}

func TestSessionCallLifecycle(t *testing.T) {
	sess, server := newConnectedSession(t, Dependencies{})

	calls := make(chan Event, 16)
	sess.Subscribe(ChannelCall, func(ev Event) { calls <- ev })

	server.sendCallEvent(t, ringingEvent("c1", 1000))

	ev := waitEvent(t, calls)
	assert.Equal(t, EventRinging, ev.Action)
	require.NotNil(t, ev.Call)
	assert.Equal(t, "c1", ev.Call.ID())

	call, ok := sess.GetCall("c1")
	require.True(t, ok)
	assert.True(t, call.MayAnswer())

	server.sendCallEvent(t, CallEvent{ID: "c1", Event: EventActive, Timestamp: 1005})
	ev = waitEvent(t, calls)
	assert.Equal(t, EventActive, ev.Action)
	assert.Equal(t, StateActive, call.State())

	server.sendCallEvent(t, CallEvent{ID: "c1", Event: EventHangup, Timestamp: 1010, Data: CallEventData{Cause: CauseNormalClearing}})
	ev = waitEvent(t, calls)
	assert.Equal(t, EventHangup, ev.Action)
	assert.Equal(t, StateHangup, ev.Call.State())

	_, ok = sess.GetCall("c1")
	assert.False(t, ok)
	assert.Equal(t, CauseNormalClearing, call.HangupCause())
}

func TestSessionCallControlRoundTrip(t *testing.T) {
	sess, server := newConnectedSession(t, Dependencies{})

	calls := make(chan Event, 16)
	sess.Subscribe(ChannelCall, func(ev Event) { calls <- ev })
	server.sendCallEvent(t, ringingEvent("c1", 1000))
	waitEvent(t, calls)

	call, ok := sess.GetCall("c1")
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := call.Answer(ctx)
	require.NoError(t, err)
	_, err = p.Wait(ctx)
	require.NoError(t, err)
}

func TestSessionIssueRequest(t *testing.T) {
	sess, server := newConnectedSession(t, Dependencies{})
	server.handlers["agent_status"] = func(f Frame) Frame {
		return Frame{ReplySequenceID: f.SequenceID, Status: StatusOK, Payload: json.RawMessage(`{"status":"ready"}`)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := sess.IssueRequest(ctx, "agent_status", map[string]string{"status": "ready"})
	require.NoError(t, err)

	payload, err := p.Wait(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ready"}`, string(payload))
}

func TestSessionCloseFailsPending(t *testing.T) {
	sess, server := newConnectedSession(t, Dependencies{})
	// A request the server never answers.
	server.handlers["slow"] = func(Frame) Frame { return Frame{} }

	p, err := sess.IssueRequest(context.Background(), "slow", nil)
	require.NoError(t, err)

	require.NoError(t, sess.Close())

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("pending request not settled by close")
	}
	_, err = p.Result()
	assert.ErrorIs(t, err, errs.ErrSessionClosed)

	_, err = sess.IssueRequest(context.Background(), "late", nil)
	assert.ErrorIs(t, err, errs.ErrSessionClosed)
}

func TestSessionPhoneEvents(t *testing.T) {
	phone := &channelPhone{events: make(chan PhoneEvent, 4)}
	sess, server := newConnectedSession(t, Dependencies{Phone: phone})

	calls := make(chan Event, 16)
	sess.Subscribe(ChannelCall, func(ev Event) { calls <- ev })
	server.sendCallEvent(t, ringingEvent("c1", 1000))
	waitEvent(t, calls)

	call, ok := sess.GetCall("c1")
	require.True(t, ok)

	phone.events <- PhoneEvent{Kind: PhoneEventNewMediaSession, MediaID: "m1", CallID: "c1"}
	require.Eventually(t, func() bool {
		return call.MediaID() == "m1"
	}, time.Second, 5*time.Millisecond)

	phone.events <- PhoneEvent{Kind: PhoneEventRemoteStreamsChanged, MediaID: "m1", Remote: "remote-handle"}
	require.Eventually(t, func() bool {
		return call.RemoteStream() != nil
	}, time.Second, 5*time.Millisecond)
}

func TestSessionPlaceCallDefaultsApplication(t *testing.T) {
	phone := &channelPhone{events: make(chan PhoneEvent, 1)}
	sess, _ := newConnectedSession(t, Dependencies{Phone: phone})

	require.NoError(t, sess.PlaceCall(context.Background(), PlaceCallRequest{Destination: "555"}))
	require.Len(t, phone.placed, 1)
	assert.Equal(t, "app-1", phone.placed[0].ApplicationID)
}

func TestSessionRejectsBadConfig(t *testing.T) {
	_, err := NewSession(&config.Config{}, nil, Dependencies{Conn: nopConn{}})
	var validationErr *errs.ConfigValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

type channelPhone struct {
	NopPhone

	events chan PhoneEvent
	placed []PlaceCallRequest
}

func (p *channelPhone) Events() <-chan PhoneEvent { return p.events }

func (p *channelPhone) PlaceCall(_ context.Context, req PlaceCallRequest) error {
	p.placed = append(p.placed, req)
	return nil
}

type nopConn struct{}

func (nopConn) Send(context.Context, []byte) error { return nil }
func (nopConn) Recv(context.Context) ([]byte, error) {
	return nil, transport.ErrClosed
}
func (nopConn) Close() error { return nil }
