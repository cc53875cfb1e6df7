package relay

import "github.com/mahaj/room-relay/pkg/model"

// Transport delivers outbound events to a single connection. SendTo must not
// block and must serialize payload before returning, since the payload may
// be mutated once the current event has been processed. Sends to unknown or
// closed connections are dropped.
type Transport interface {
	SendTo(connID, event string, payload any)
}

// AckFunc answers the peer that originated an event. A nil AckFunc means no
// acknowledgement was requested.
type AckFunc func(model.Ack)

// Sink observes committed state changes. Publish must not block.
type Sink interface {
	Publish(model.Activity)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(connID, event string, payload any)

func (f TransportFunc) SendTo(connID, event string, payload any) {
	f(connID, event, payload)
}
