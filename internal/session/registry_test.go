package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() (*Registry, *Dispatcher) {
	d := NewDispatcher(nil)
	return NewRegistry(d, nil, nil, nil), d
}

func TestRegistryRingingCreates(t *testing.T) {
	r, _ := newTestRegistry()

	call, err := r.Apply(ringingEvent("c1", 1000))
	require.NoError(t, err)
	require.NotNil(t, call)
	assert.Equal(t, StateRinging, call.State())
	assert.Equal(t, 1, r.Len())

	got, ok := r.Get("c1")
	require.True(t, ok)
	assert.Same(t, call, got)
}

func TestRegistryDuplicateRinging(t *testing.T) {
	r, _ := newTestRegistry()

	first, err := r.Apply(ringingEvent("c1", 1000))
	require.NoError(t, err)
	require.NoError(t, first.apply(CallEvent{ID: "c1", Event: EventActive, Timestamp: 1005}))

	again, err := r.Apply(ringingEvent("c1", 2000))
	require.NoError(t, err)

	assert.Same(t, first, again)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, StateActive, first.State())
	assert.Equal(t, int64(1000), first.CreatedAt())
}

func TestRegistryUnknownCallDropped(t *testing.T) {
	r, d := newTestRegistry()

	var published int
	d.Subscribe(ChannelCall, func(Event) { published++ })

	call, err := r.Apply(CallEvent{ID: "ghost", Event: EventActive, Timestamp: 1000})
	require.NoError(t, err)
	assert.Nil(t, call)
	assert.Zero(t, r.Len())
	assert.Zero(t, published)
}

func TestRegistryHangupEvicts(t *testing.T) {
	r, _ := newTestRegistry()

	call, err := r.Apply(ringingEvent("c1", 1000))
	require.NoError(t, err)
	_, err = r.Apply(CallEvent{ID: "c1", Event: EventActive, Timestamp: 1005})
	require.NoError(t, err)
	_, err = r.Apply(CallEvent{ID: "c1", Event: EventHangup, Timestamp: 1010, Data: CallEventData{Cause: CauseNormalClearing}})
	require.NoError(t, err)

	_, ok := r.Get("c1")
	assert.False(t, ok)
	assert.Zero(t, r.Len())

	// Holders of the evicted object still read the terminal fields.
	assert.Equal(t, StateHangup, call.State())
	assert.Equal(t, int64(1010), call.HangupAt())
	assert.Equal(t, CauseNormalClearing, call.HangupCause())
}

func TestRegistryPublishesAfterApply(t *testing.T) {
	r, d := newTestRegistry()

	type seen struct {
		action string
		state  CallState
	}
	var observed []seen
	d.Subscribe(ChannelCall, func(ev Event) {
		observed = append(observed, seen{action: ev.Action, state: ev.Call.State()})
	})

	_, err := r.Apply(ringingEvent("c1", 1000))
	require.NoError(t, err)
	_, err = r.Apply(CallEvent{ID: "c1", Event: EventActive, Timestamp: 1005})
	require.NoError(t, err)
	_, err = r.Apply(CallEvent{ID: "c1", Event: EventHangup, Timestamp: 1010})
	require.NoError(t, err)

	require.Len(t, observed, 3)
	assert.Equal(t, seen{EventRinging, StateRinging}, observed[0])
	assert.Equal(t, seen{EventActive, StateActive}, observed[1])
	// The terminal notification carries the already-finalized call.
	assert.Equal(t, seen{EventHangup, StateHangup}, observed[2])
}

func TestRegistryRejectedEventNotFatal(t *testing.T) {
	r, d := newTestRegistry()

	var published int
	d.Subscribe(ChannelCall, func(Event) { published++ })

	_, err := r.Apply(ringingEvent("c1", 1000))
	require.NoError(t, err)

	// Hold before answer is an invalid transition; the call survives it.
	call, err := r.Apply(CallEvent{ID: "c1", Event: EventHold, Timestamp: 1005})
	assert.Error(t, err)
	require.NotNil(t, call)
	assert.Equal(t, StateRinging, call.State())
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 1, published)
}

func TestRegistryMediaIndex(t *testing.T) {
	t.Run("indexed at creation", func(t *testing.T) {
		r, _ := newTestRegistry()
		ev := ringingEvent("c1", 1000)
		ev.Data.MediaID = "m1"
		_, err := r.Apply(ev)
		require.NoError(t, err)

		call, ok := r.FindByMediaID("m1")
		require.True(t, ok)
		assert.Equal(t, "c1", call.ID())
	})

	t.Run("bound later", func(t *testing.T) {
		r, _ := newTestRegistry()
		_, err := r.Apply(ringingEvent("c1", 1000))
		require.NoError(t, err)

		_, ok := r.FindByMediaID("m1")
		assert.False(t, ok)

		require.True(t, r.BindMedia("m1", "c1"))
		call, ok := r.FindByMediaID("m1")
		require.True(t, ok)
		assert.Equal(t, "m1", call.MediaID())

		assert.False(t, r.BindMedia("m2", "nope"))
	})

	t.Run("removed at eviction", func(t *testing.T) {
		r, _ := newTestRegistry()
		ev := ringingEvent("c1", 1000)
		ev.Data.MediaID = "m1"
		_, err := r.Apply(ev)
		require.NoError(t, err)
		_, err = r.Apply(CallEvent{ID: "c1", Event: EventHangup, Timestamp: 1010})
		require.NoError(t, err)

		_, ok := r.FindByMediaID("m1")
		assert.False(t, ok)
	})
}

func TestRegistryListAndFindBy(t *testing.T) {
	r, _ := newTestRegistry()

	_, err := r.Apply(ringingEvent("c1", 1000))
	require.NoError(t, err)
	out := ringingEvent("c2", 1001)
	out.Data.Direction = DirectionOutbound
	_, err = r.Apply(out)
	require.NoError(t, err)

	assert.Len(t, r.List(), 2)

	call, ok := r.FindBy(func(c *Call) bool { return c.Direction() == DirectionOutbound })
	require.True(t, ok)
	assert.Equal(t, "c2", call.ID())

	_, ok = r.FindBy(func(c *Call) bool { return c.State() == StateHold })
	assert.False(t, ok)
}
