package events

import (
	"sync"

	"github.com/rs/zerolog"
)

// Dispatcher fans events out to connections. It knows how to reach a
// connection, a chat room, or everyone; it carries no business logic.
// Sends to gone connections are dropped without retry; state resyncs on
// the next reconnect.
type Dispatcher struct {
	mu     sync.RWMutex
	conns  map[Conn]struct{}
	rooms  map[string]map[Conn]struct{}
	logger zerolog.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		conns:  make(map[Conn]struct{}),
		rooms:  make(map[string]map[Conn]struct{}),
		logger: logger,
	}
}

// Register adds a connection as a broadcast target.
func (d *Dispatcher) Register(c Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns[c] = struct{}{}
}

// Unregister removes a connection from broadcast targets and every room.
// Unregistering an unknown connection is a no-op.
func (d *Dispatcher) Unregister(c Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.conns, c)
	for roomID, members := range d.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(d.rooms, roomID)
		}
	}
}

// JoinRoom adds a connection to a room's audience.
func (d *Dispatcher) JoinRoom(roomID string, c Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	members, ok := d.rooms[roomID]
	if !ok {
		members = make(map[Conn]struct{})
		d.rooms[roomID] = members
	}
	members[c] = struct{}{}
}

// ToConn delivers an event to a single connection.
func (d *Dispatcher) ToConn(c Conn, ev Event) {
	d.deliver(c, ev)
}

// ToRoom delivers an event to every connection in a room.
func (d *Dispatcher) ToRoom(roomID string, ev Event) {
	d.ToRoomExcept(roomID, nil, ev)
}

// ToRoomExcept delivers an event to every connection in a room except one.
func (d *Dispatcher) ToRoomExcept(roomID string, except Conn, ev Event) {
	d.mu.RLock()
	members := make([]Conn, 0, len(d.rooms[roomID]))
	for c := range d.rooms[roomID] {
		if c != except {
			members = append(members, c)
		}
	}
	d.mu.RUnlock()

	for _, c := range members {
		d.deliver(c, ev)
	}
}

// Broadcast delivers an event to every registered connection.
func (d *Dispatcher) Broadcast(ev Event) {
	d.mu.RLock()
	conns := make([]Conn, 0, len(d.conns))
	for c := range d.conns {
		conns = append(conns, c)
	}
	d.mu.RUnlock()

	for _, c := range conns {
		d.deliver(c, ev)
	}
}

func (d *Dispatcher) deliver(c Conn, ev Event) {
	if c == nil {
		return
	}
	if err := c.Send(ev); err != nil {
		d.logger.Debug().Err(err).Str("event", ev.EventName()).Msg("dropped event for gone connection")
	}
}
