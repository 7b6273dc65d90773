package events

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type recordConn struct {
	received []Event
	sendErr  error
}

func (c *recordConn) Send(ev Event) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.received = append(c.received, ev)
	return nil
}

func TestBroadcastReachesAllRegistered(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())
	a := &recordConn{}
	b := &recordConn{}
	d.Register(a)
	d.Register(b)

	d.Broadcast(Typing{UserID: "alice"})

	assert.Len(t, a.received, 1)
	assert.Len(t, b.received, 1)
}

func TestUnregisterRemovesFromRooms(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())
	a := &recordConn{}
	d.Register(a)
	d.JoinRoom("chat-1", a)

	d.Unregister(a)

	d.Broadcast(Typing{UserID: "alice"})
	d.ToRoom("chat-1", Typing{UserID: "alice"})
	assert.Empty(t, a.received)

	// Unregistering twice is harmless.
	d.Unregister(a)
}

func TestToRoomExceptSkipsSender(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())
	typist := &recordConn{}
	other := &recordConn{}
	outside := &recordConn{}
	d.JoinRoom("chat-1", typist)
	d.JoinRoom("chat-1", other)
	d.JoinRoom("chat-2", outside)

	d.ToRoomExcept("chat-1", typist, Typing{UserID: "alice"})

	assert.Empty(t, typist.received)
	assert.Len(t, other.received, 1)
	assert.Empty(t, outside.received)
}

func TestFailedSendIsDropped(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())
	gone := &recordConn{sendErr: errors.New("connection closed")}
	alive := &recordConn{}
	d.Register(gone)
	d.Register(alive)

	d.Broadcast(Typing{UserID: "alice"})

	// The dead connection never blocks delivery to the rest.
	assert.Empty(t, gone.received)
	assert.Len(t, alive.received, 1)
}

func TestToRoomUnknownRoom(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())
	d.ToRoom("nowhere", Typing{UserID: "alice"})
}
