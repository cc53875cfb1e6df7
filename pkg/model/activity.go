package model

import "time"

type ActivityKind string

const (
	ActivityJoined   ActivityKind = "presence.joined"
	ActivityRenamed  ActivityKind = "presence.renamed"
	ActivityLeft     ActivityKind = "presence.left"
	ActivityStored   ActivityKind = "message.stored"
	ActivityReaction ActivityKind = "message.reaction"
	ActivityRead     ActivityKind = "message.read"
)

// Activity records one committed state change of the relay. It is what
// presence mirrors and exporters consume, and what travels on the Kafka topic.
type Activity struct {
	Kind      ActivityKind `json:"kind"`
	Room      string       `json:"room"`
	PrevRoom  string       `json:"prevRoom,omitempty"`
	ConnID    string       `json:"connId,omitempty"`
	Name      string       `json:"name,omitempty"`
	MessageID string       `json:"messageId,omitempty"`
	Reaction  string       `json:"reaction,omitempty"`
	Reactors  []string     `json:"reactors,omitempty"`
	Message   *Message     `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// IsPresence reports whether the activity changes room membership or identity.
func (a Activity) IsPresence() bool {
	switch a.Kind {
	case ActivityJoined, ActivityRenamed, ActivityLeft:
		return true
	}
	return false
}
