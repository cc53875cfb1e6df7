package relay

import "github.com/mahaj/room-relay/pkg/model"

// Connection is the state of one live session.
type Connection struct {
	ID   string
	Name string
	Room string
}

func (c *Connection) Participant() model.Participant {
	return model.Participant{ID: c.ID, Username: c.Name, CurrentRoom: c.Room}
}

// Registry maps connection ids to their identity and current room.
// It keeps registration order so participant lists are stable.
// Not safe for concurrent use; the Dispatcher serializes access.
type Registry struct {
	conns map[string]*Connection
	order []string
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Register returns the connection for id, creating it with the default
// identity and room on first sight.
func (r *Registry) Register(id string) *Connection {
	if c, ok := r.conns[id]; ok {
		return c
	}
	c := &Connection{ID: id, Name: model.DefaultName, Room: model.DefaultRoom}
	r.conns[id] = c
	r.order = append(r.order, id)
	return c
}

// SetName never rejects: an empty name becomes "Anonymous".
func (r *Registry) SetName(id, name string) {
	c, ok := r.conns[id]
	if !ok {
		return
	}
	if name == "" {
		name = model.DefaultName
	}
	c.Name = name
}

func (r *Registry) SetRoom(id, room string) {
	if c, ok := r.conns[id]; ok {
		c.Room = room
	}
}

func (r *Registry) Get(id string) (*Connection, bool) {
	c, ok := r.conns[id]
	return c, ok
}

func (r *Registry) Remove(id string) (*Connection, bool) {
	c, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	delete(r.conns, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return c, true
}

func (r *Registry) Len() int {
	return len(r.conns)
}

// Each visits connections in registration order.
func (r *Registry) Each(fn func(*Connection)) {
	for _, id := range r.order {
		fn(r.conns[id])
	}
}

// Snapshot returns every participant in registration order.
func (r *Registry) Snapshot() []model.Participant {
	out := make([]model.Participant, 0, len(r.order))
	r.Each(func(c *Connection) {
		out = append(out, c.Participant())
	})
	return out
}

// Directory answers room membership questions. Membership is derived from
// the Registry on every call, so it cannot drift from each connection's
// current room.
type Directory struct {
	reg *Registry
}

func NewDirectory(reg *Registry) *Directory {
	return &Directory{reg: reg}
}

// MembersOf returns the connections whose current room is room.
func (d *Directory) MembersOf(room string) []*Connection {
	var out []*Connection
	d.reg.Each(func(c *Connection) {
		if c.Room == room {
			out = append(out, c)
		}
	})
	return out
}

// Participants is MembersOf in its public form.
func (d *Directory) Participants(room string) []model.Participant {
	members := d.MembersOf(room)
	out := make([]model.Participant, 0, len(members))
	for _, c := range members {
		out = append(out, c.Participant())
	}
	return out
}

// Join moves id into room, leaving whatever room it was in. Joining the
// current room is allowed and changes nothing. It returns the previous room.
func (d *Directory) Join(id, room string) (prev string, ok bool) {
	c, ok := d.reg.Get(id)
	if !ok {
		return "", false
	}
	prev = c.Room
	d.reg.SetRoom(id, room)
	return prev, true
}
