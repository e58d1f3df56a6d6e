package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxwire/voxwire/internal/session/jsoncodec"
)

func TestFrameKind(t *testing.T) {
	cases := []struct {
		name  string
		frame Frame
		want  FrameKind
	}{
		{"reply", Frame{ReplySequenceID: 7, Status: StatusOK}, KindReply},
		{"event", Frame{Name: "call"}, KindEvent},
		{"reply wins over event name", Frame{ReplySequenceID: 7, Name: "call"}, KindReply},
		{"empty", Frame{}, KindUnhandled},
		{"request shape is not an inbound kind", Frame{SequenceID: 3, Action: "ping"}, KindUnhandled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.frame.Kind())
		})
	}
}

func TestFrameWireNames(t *testing.T) {
	raw, err := jsoncodec.Marshal(Frame{SequenceID: 1, ReplySequenceID: 2, Action: "answer"})
	require.NoError(t, err)

	out := string(raw)
	assert.Contains(t, out, `"sequenceId":1`)
	assert.Contains(t, out, `"replySequenceId":2`)
	assert.NotContains(t, out, `"status"`)
}
