// Package relay is the room-state coordinator of the chat relay. It tracks
// connected participants and their rooms, keeps bounded per-room history,
// merges reactions, typing and read markers, and routes the resulting events
// to a room, a single peer, or everyone.
//
// All state is owned by a Dispatcher. Every inbound event is processed to
// completion, state change and all resulting sends, under one lock, so
// events from different connections never interleave.
package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/mahaj/room-relay/pkg/model"
	"github.com/mahaj/room-relay/pkg/msgid"
)

type Dispatcher struct {
	mu sync.Mutex

	registry  *Registry
	directory *Directory
	typing    *TypingTracker
	store     *Store

	transport Transport
	sinks     []Sink
	ids       *msgid.Generator
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Dispatcher)

func WithSinks(sinks ...Sink) Option {
	return func(d *Dispatcher) { d.sinks = append(d.sinks, sinks...) }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithIDs(g *msgid.Generator) Option {
	return func(d *Dispatcher) { d.ids = g }
}

func WithHistoryLimit(n int) Option {
	return func(d *Dispatcher) { d.store = NewStore(n) }
}

func New(t Transport, opts ...Option) *Dispatcher {
	reg := NewRegistry()
	d := &Dispatcher{
		registry:  reg,
		directory: NewDirectory(reg),
		typing:    NewTypingTracker(),
		store:     NewStore(HistoryLimit),
		transport: t,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.ids == nil {
		d.ids = msgid.MustNew()
	}
	d.logger = d.logger.With("component", "dispatcher")
	return d
}

// HandleEvent decodes an inbound event and applies it. Payloads are decoded
// leniently: anything missing or malformed falls back to defaults.
func (d *Dispatcher) HandleEvent(connID, event string, data json.RawMessage, ack AckFunc) {
	d.logger.Debug("inbound event", "conn", connID, "event", event)

	switch event {
	case model.EventUserJoin:
		d.Announce(connID, stringOrField(data, "username"), ack)
	case model.EventJoinRoom:
		d.JoinRoom(connID, stringOrField(data, "room"), ack)
	case model.EventSendMessage:
		var req model.SendMessageRequest
		d.decode(connID, event, data, &req)
		d.SendMessage(connID, req, ack)
	case model.EventFileMessage:
		var req model.FileMessageRequest
		d.decode(connID, event, data, &req)
		d.SendFile(connID, req, ack)
	case model.EventPrivateMessage:
		var req model.PrivateMessageRequest
		d.decode(connID, event, data, &req)
		d.PrivateMessage(connID, req, ack)
	case model.EventReaction:
		var req model.ReactionRequest
		d.decode(connID, event, data, &req)
		d.React(connID, req, ack)
	case model.EventRead:
		var req model.ReadRequest
		d.decode(connID, event, data, &req)
		d.MarkRead(connID, req)
	case model.EventTyping:
		var req model.TypingRequest
		d.decode(connID, event, data, &req)
		d.Typing(connID, req)
	default:
		d.logger.Warn("unknown event ignored", "conn", connID, "event", event)
	}
}

// Connect registers a new connection in the default room and refreshes
// that room's member list.
func (d *Dispatcher) Connect(connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := d.registry.Register(connID)
	d.broadcastToRoom(c.Room, model.EventUserList, d.directory.Participants(c.Room))
	d.publish(model.Activity{Kind: model.ActivityJoined, Room: c.Room, ConnID: c.ID, Name: c.Name})
	d.logger.Info("connection registered", "conn", connID, "participants", d.registry.Len())
}

// Disconnect forgets the connection, clears its typing state and tells
// everyone it left.
func (d *Dispatcher) Disconnect(connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.registry.Remove(connID)
	if !ok {
		return
	}
	affected := d.typing.ClearConnection(connID)

	d.broadcastToAll(model.EventUserLeft, model.UserNotice{Username: c.Name, ID: c.ID})
	for _, room := range sortedRooms(affected) {
		d.broadcastToRoom(room, model.EventTypingUsers, affected[room])
	}
	d.broadcastToAll(model.EventUserList, d.registry.Snapshot())
	d.publish(model.Activity{Kind: model.ActivityLeft, Room: c.Room, ConnID: c.ID, Name: c.Name})
	d.logger.Info("connection removed", "conn", connID, "participants", d.registry.Len())
}

// Announce sets the connection's display name and tells everyone.
func (d *Dispatcher) Announce(connID, name string, ack AckFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.lookup(connID)
	if !ok {
		return
	}
	d.registry.SetName(connID, name)

	d.broadcastToAll(model.EventUserJoined, model.UserNotice{Username: c.Name, ID: c.ID})
	d.broadcastToAll(model.EventUserList, d.registry.Snapshot())
	reply(ack, model.Ack{OK: true})
	d.publish(model.Activity{Kind: model.ActivityRenamed, Room: c.Room, ConnID: c.ID, Name: c.Name})
}

// JoinRoom moves the connection into room. Re-joining the current room
// still re-sends the member list so clients can resync.
func (d *Dispatcher) JoinRoom(connID, room string, ack AckFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.lookup(connID)
	if !ok {
		return
	}
	if room == "" {
		room = model.DefaultRoom
	}
	prev, _ := d.directory.Join(connID, room)

	d.broadcastToRoom(room, model.EventUserList, d.directory.Participants(room))
	reply(ack, model.Ack{OK: true})
	d.publish(model.Activity{Kind: model.ActivityJoined, Room: room, PrevRoom: prev, ConnID: c.ID, Name: c.Name})
}

func (d *Dispatcher) SendMessage(connID string, req model.SendMessageRequest, ack AckFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.lookup(connID)
	if !ok {
		return
	}
	msg := &model.Message{
		ID:        d.ids.Next(),
		Sender:    c.Name,
		SenderID:  c.ID,
		Room:      roomFor(c, req.Room),
		Kind:      model.KindText,
		Text:      req.Message,
		Status:    model.StatusDelivered,
		Timestamp: d.now().UTC(),
		Reactions: map[string][]string{},
	}
	d.store.Append(msg.Room, msg)

	d.broadcastToRoom(msg.Room, model.EventReceiveMessage, msg)
	ts := msg.Timestamp
	reply(ack, model.Ack{OK: true, Status: "ok", ID: msg.ID, Timestamp: &ts})
	d.publishMessage(msg)
}

func (d *Dispatcher) SendFile(connID string, req model.FileMessageRequest, ack AckFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.lookup(connID)
	if !ok {
		return
	}
	msg := &model.Message{
		ID:        d.ids.Next(),
		Sender:    c.Name,
		SenderID:  c.ID,
		Room:      roomFor(c, req.Room),
		Kind:      model.KindFile,
		File:      &model.File{DataURL: req.DataURL, Filename: req.Filename},
		IsFile:    true,
		Timestamp: d.now().UTC(),
	}
	d.store.Append(msg.Room, msg)

	d.broadcastToRoom(msg.Room, model.EventReceiveMessage, msg)
	reply(ack, model.Ack{OK: true, ID: msg.ID})
	d.publishMessage(msg)
}

// PrivateMessage delivers directly to the recipient, if it is still
// connected, and echoes to the sender. Nothing is stored.
func (d *Dispatcher) PrivateMessage(connID string, req model.PrivateMessageRequest, ack AckFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.lookup(connID)
	if !ok {
		return
	}
	msg := &model.Message{
		ID:        d.ids.Next(),
		Sender:    c.Name,
		SenderID:  c.ID,
		Kind:      model.KindText,
		Text:      req.Message,
		IsPrivate: true,
		ToID:      req.ToSocketID,
		Timestamp: d.now().UTC(),
	}
	if _, ok := d.registry.Get(req.ToSocketID); ok && req.ToSocketID != connID {
		d.transport.SendTo(req.ToSocketID, model.EventPrivateMessage, msg)
	}
	d.transport.SendTo(connID, model.EventPrivateMessage, msg)
	reply(ack, model.Ack{OK: true, ID: msg.ID})
}

// React toggles the sender's reaction on a stored message.
func (d *Dispatcher) React(connID string, req model.ReactionRequest, ack AckFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.lookup(connID)
	if !ok {
		return
	}
	room := roomFor(c, req.Room)
	reactors, err := d.store.ToggleReaction(room, req.MessageID, req.Reaction, connID)
	if err != nil {
		reply(ack, model.Ack{OK: false, Error: err.Error()})
		return
	}

	d.broadcastToRoom(room, model.EventReaction, model.ReactionUpdate{
		MessageID: req.MessageID,
		Reaction:  req.Reaction,
		Reactors:  reactors,
	})
	reply(ack, model.Ack{OK: true})
	d.publish(model.Activity{
		Kind:      model.ActivityReaction,
		Room:      room,
		ConnID:    connID,
		MessageID: req.MessageID,
		Reaction:  req.Reaction,
		Reactors:  reactors,
	})
}

// MarkRead records the sender as the latest reader and tells the room.
// The receipt is broadcast even when the message is no longer in history.
func (d *Dispatcher) MarkRead(connID string, req model.ReadRequest) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.lookup(connID)
	if !ok {
		return
	}
	room := roomFor(c, req.Room)
	d.store.MarkRead(room, req.MessageID, connID)

	d.broadcastToRoom(room, model.EventRead, model.ReadReceipt{
		MessageID: req.MessageID,
		ReaderID:  connID,
		Timestamp: d.now().UTC(),
	})
	d.publish(model.Activity{Kind: model.ActivityRead, Room: room, ConnID: connID, MessageID: req.MessageID})
}

func (d *Dispatcher) Typing(connID string, req model.TypingRequest) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.lookup(connID)
	if !ok {
		return
	}
	room := roomFor(c, req.Room)
	names := d.typing.Set(room, c.ID, c.Name, req.IsTyping)
	d.broadcastToRoom(room, model.EventTypingUsers, names)
}

// Participants returns every connected participant.
func (d *Dispatcher) Participants() []model.Participant {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registry.Snapshot()
}

// RoomParticipants returns the members of room.
func (d *Dispatcher) RoomParticipants(room string) []model.Participant {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.directory.Participants(room)
}

// History pages backwards through room's log; page 1 is the newest limit messages.
func (d *Dispatcher) History(room string, page, limit int) []model.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.Page(room, page, limit)
}

func (d *Dispatcher) TypingNames(room string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.typing.Names(room)
}

func (d *Dispatcher) lookup(connID string) (*Connection, bool) {
	c, ok := d.registry.Get(connID)
	if !ok {
		d.logger.Warn("event from unregistered connection", "conn", connID)
	}
	return c, ok
}

func (d *Dispatcher) broadcastToRoom(room, event string, payload any) {
	for _, c := range d.directory.MembersOf(room) {
		d.transport.SendTo(c.ID, event, payload)
	}
}

func (d *Dispatcher) broadcastToAll(event string, payload any) {
	d.registry.Each(func(c *Connection) {
		d.transport.SendTo(c.ID, event, payload)
	})
}

func (d *Dispatcher) publish(a model.Activity) {
	if len(d.sinks) == 0 {
		return
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = d.now().UTC()
	}
	for _, s := range d.sinks {
		s.Publish(a)
	}
}

func (d *Dispatcher) publishMessage(msg *model.Message) {
	if len(d.sinks) == 0 {
		return
	}
	c := msg.Clone()
	d.publish(model.Activity{
		Kind:      model.ActivityStored,
		Room:      msg.Room,
		ConnID:    msg.SenderID,
		Name:      msg.Sender,
		MessageID: msg.ID,
		Message:   &c,
		Timestamp: msg.Timestamp,
	})
}

func (d *Dispatcher) decode(connID, event string, data json.RawMessage, v any) {
	if len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		d.logger.Debug("lenient decode", "conn", connID, "event", event, "error", err)
	}
}

func reply(ack AckFunc, a model.Ack) {
	if ack != nil {
		ack(a)
	}
}

// roomFor resolves the room an event targets: the explicit room, else the
// connection's current room, else the default room.
func roomFor(c *Connection, requested string) string {
	if requested != "" {
		return requested
	}
	if c.Room != "" {
		return c.Room
	}
	return model.DefaultRoom
}

// stringOrField accepts either a bare JSON string or an object carrying the
// value under key.
func stringOrField(data json.RawMessage, key string) string {
	if len(data) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return ""
	}
	if raw, ok := obj[key]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}
