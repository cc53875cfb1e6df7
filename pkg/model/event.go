package model

import (
	"encoding/json"
	"time"
)

// Inbound event names.
const (
	EventUserJoin       = "user_join"
	EventJoinRoom       = "join_room"
	EventSendMessage    = "send_message"
	EventFileMessage    = "file_message"
	EventPrivateMessage = "private_message"
	EventReaction       = "message_reaction"
	EventRead           = "message_read"
	EventTyping         = "typing"
)

// Outbound event names. private_message, message_reaction and message_read
// share their inbound names.
const (
	EventUserList       = "user_list"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventReceiveMessage = "receive_message"
	EventTypingUsers    = "typing_users"
	EventAck            = "ack"
)

// Envelope is the JSON frame exchanged over the WebSocket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   *int64          `json:"ack,omitempty"`
}

type SendMessageRequest struct {
	Message string `json:"message"`
	Room    string `json:"room"`
}

type FileMessageRequest struct {
	DataURL  string `json:"dataUrl"`
	Filename string `json:"filename"`
	Room     string `json:"room"`
}

type PrivateMessageRequest struct {
	ToSocketID string `json:"toSocketId"`
	Message    string `json:"message"`
}

type ReactionRequest struct {
	MessageID string `json:"messageId"`
	Room      string `json:"room"`
	Reaction  string `json:"reaction"`
}

type ReadRequest struct {
	MessageID string `json:"messageId"`
	Room      string `json:"room"`
}

type TypingRequest struct {
	IsTyping bool   `json:"isTyping"`
	Room     string `json:"room"`
}

// Ack is the per-event acknowledgement returned to the originating connection.
type Ack struct {
	OK        bool       `json:"ok"`
	Status    string     `json:"status,omitempty"`
	ID        string     `json:"id,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Error     string     `json:"error,omitempty"`
}

type UserNotice struct {
	Username string `json:"username"`
	ID       string `json:"id"`
}

type ReactionUpdate struct {
	MessageID string   `json:"messageId"`
	Reaction  string   `json:"reaction"`
	Reactors  []string `json:"reactors"`
}

type ReadReceipt struct {
	MessageID string    `json:"messageId"`
	ReaderID  string    `json:"readerId"`
	Timestamp time.Time `json:"timestamp"`
}
