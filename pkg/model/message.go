package model

import "time"

type MessageKind string

const (
	KindText   MessageKind = "text"
	KindFile   MessageKind = "file"
	KindSystem MessageKind = "system"
)

const (
	DefaultRoom = "global"
	DefaultName = "Anonymous"

	StatusDelivered = "delivered"
)

// File is an inline file payload. DataURL carries the binary content as a data: URL.
type File struct {
	DataURL  string `json:"dataUrl"`
	Filename string `json:"filename"`
}

// Message is a chat, file, or private message as seen by clients.
// Room messages live in a room log and may be mutated by reactions and read markers.
type Message struct {
	ID         string              `json:"id"`
	Sender     string              `json:"sender"`
	SenderID   string              `json:"senderId"`
	Room       string              `json:"room,omitempty"`
	Kind       MessageKind         `json:"kind"`
	Text       string              `json:"message"`
	File       *File               `json:"file,omitempty"`
	IsFile     bool                `json:"isFile,omitempty"`
	IsPrivate  bool                `json:"isPrivate,omitempty"`
	ToID       string              `json:"toId,omitempty"`
	Status     string              `json:"status,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
	Reactions  map[string][]string `json:"reactions,omitempty"`
	LastReadBy string              `json:"lastReadBy,omitempty"`
}

// Clone returns a deep copy that stays stable while the stored message changes.
func (m *Message) Clone() Message {
	c := *m
	if m.File != nil {
		f := *m.File
		c.File = &f
	}
	if m.Reactions != nil {
		c.Reactions = make(map[string][]string, len(m.Reactions))
		for k, v := range m.Reactions {
			c.Reactions[k] = append([]string{}, v...)
		}
	}
	return c
}

// Participant is the public view of a connection.
type Participant struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	CurrentRoom string `json:"currentRoom"`
}
