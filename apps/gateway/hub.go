package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/mahaj/room-relay/pkg/model"
	"github.com/mahaj/room-relay/pkg/relay"
)

var errHubClosed = errors.New("hub is shutting down")

type inbound struct {
	client *Client
	env    model.Envelope
}

// outbound is the frame written for every server-to-client event.
type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type ackFrame struct {
	Event string    `json:"event"`
	Ack   int64     `json:"ack"`
	Data  model.Ack `json:"data"`
}

// Hub owns the live WebSocket clients and implements relay.Transport on top
// of them. Register, unregister and inbound events are serialized through Run.
type Hub struct {
	dispatcher *relay.Dispatcher

	clients    map[string]*Client // connection id -> client
	mu         sync.RWMutex
	closing    bool
	conns      sync.WaitGroup
	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	done       chan struct{}
	stopOnce   sync.Once

	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound, 64),
		done:       make(chan struct{}),
		logger:     logger.With("component", "hub"),
	}
}

// SendTo queues one event for a connection. It never blocks: if the client's
// buffer is full the frame is dropped.
func (h *Hub) SendTo(connID, event string, payload any) {
	frame, err := json.Marshal(outbound{Event: event, Data: payload})
	if err != nil {
		h.logger.Error("failed to marshal outbound event", "conn", connID, "event", event, "error", err)
		return
	}
	h.deliver(connID, event, frame)
}

func (h *Hub) sendAck(connID string, id int64, a model.Ack) {
	frame, err := json.Marshal(ackFrame{Event: model.EventAck, Ack: id, Data: a})
	if err != nil {
		h.logger.Error("failed to marshal ack", "conn", connID, "error", err)
		return
	}
	h.deliver(connID, model.EventAck, frame)
}

func (h *Hub) deliver(connID, event string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	select {
	case c.send <- frame:
	default:
		h.logger.Warn("send buffer full, dropping event", "conn", connID, "event", event)
	}
}

// admit reserves a slot for a new client, refusing once shutdown started.
func (h *Hub) admit() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return errHubClosed
	}
	h.conns.Add(1)
	return nil
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			closing := h.closing
			h.mu.Unlock()
			h.dispatcher.Connect(client.ID)
			h.logger.Info("client registered", "conn", client.ID, "remote", client.remote)
			if closing {
				// admitted before Shutdown took its snapshot
				client.conn.Close()
			}

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client.ID]
			if ok {
				delete(h.clients, client.ID)
				close(client.send)
			}
			h.mu.Unlock()
			if ok {
				h.dispatcher.Disconnect(client.ID)
				h.logger.Info("client unregistered", "conn", client.ID)
				h.conns.Done()
			}

		case in := <-h.inbound:
			h.dispatch(in)

		case <-h.done:
			return
		}
	}
}

func (h *Hub) dispatch(in inbound) {
	var ack relay.AckFunc
	if in.env.Ack != nil {
		id := *in.env.Ack
		connID := in.client.ID
		var once sync.Once
		ack = func(a model.Ack) {
			once.Do(func() { h.sendAck(connID, id, a) })
		}
	}
	h.dispatcher.HandleEvent(in.client.ID, in.env.Event, in.env.Data, ack)
}

// Shutdown closes every client connection and waits until their disconnects
// have been processed, then stops Run.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}

	drained := make(chan struct{})
	go func() {
		h.conns.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = ctx.Err()
	}
	h.stopOnce.Do(func() { close(h.done) })
	return err
}
