package conference

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitter(t *testing.T) {
	var e Emitter
	var got []string
	e.OnEvent(func(ev Event) { got = append(got, "a:"+string(ev.Kind)) })
	e.OnEvent(nil)
	e.OnEvent(func(ev Event) { got = append(got, "b:"+ev.ParticipantID) })

	e.Emit(Event{Kind: ParticipantJoined, ParticipantID: "x"})
	assert.Equal(t, []string{"a:participantJoined", "b:x"}, got)

	assert.True(t, e.Close())
	assert.False(t, e.Close())
	e.Emit(Event{Kind: ReadyToClose})
	e.OnEvent(func(Event) { t.Fatal("handler registered after close") })
	e.Emit(Event{Kind: ReadyToClose})
	assert.Len(t, got, 2)
}

func TestEventKindValid(t *testing.T) {
	assert.True(t, VideoConferenceJoined.Valid())
	assert.True(t, TabHidden.Valid())
	assert.False(t, EventKind("screenSharingStatusChanged").Valid())
}

func TestEmitter_ReplaysEventsBeforeFirstHandler(t *testing.T) {
	var e Emitter
	e.Emit(Event{Kind: VideoConferenceJoined, ParticipantID: "self"})
	e.Emit(Event{Kind: ParticipantJoined, ParticipantID: "bob"})

	var first, second []string
	e.OnEvent(func(ev Event) { first = append(first, ev.ParticipantID) })
	e.OnEvent(func(ev Event) { second = append(second, ev.ParticipantID) })
	assert.Equal(t, []string{"self", "bob"}, first)
	assert.Empty(t, second)

	e.Emit(Event{Kind: ParticipantLeft, ParticipantID: "bob"})
	assert.Equal(t, []string{"self", "bob", "bob"}, first)
	assert.Equal(t, []string{"bob"}, second)
}

func TestEmitter_QueueBoundedAndDroppedOnClose(t *testing.T) {
	var e Emitter
	for i := 0; i < maxQueued+10; i++ {
		e.Emit(Event{Kind: TabHidden})
	}
	var n int
	e.OnEvent(func(Event) { n++ })
	assert.Equal(t, maxQueued, n)

	var closed Emitter
	closed.Emit(Event{Kind: TabHidden})
	closed.Close()
	closed.OnEvent(func(Event) { t.Fatal("queued event delivered after close") })
}
