// Package archive stores exported chat messages in ScyllaDB. The archive is
// append-only and never feeds back into live room state.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gocql/gocql"

	"github.com/mahaj/room-relay/pkg/model"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

type Session struct {
	*gocql.Session
}

func NewSession(hosts []string, keyspace string) (*Session, error) {
	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 5 * time.Second
	cluster.ConnectTimeout = 5 * time.Second

	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        1 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("archive: connect to scylla keyspace %s: %w", keyspace, err)
	}

	slog.Info("connected to scylla", "keyspace", keyspace)
	return &Session{Session: session}, nil
}

// EnsureSchema creates the keyspace and the room_messages table if missing.
func EnsureSchema(hosts []string, keyspace string) error {
	sys, err := NewSession(hosts, "system")
	if err != nil {
		return err
	}
	err = sys.Query(fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : 1 }`, keyspace)).Exec()
	sys.Close()
	if err != nil {
		return fmt.Errorf("archive: create keyspace %s: %w", keyspace, err)
	}

	s, err := NewSession(hosts, keyspace)
	if err != nil {
		return err
	}
	defer s.Close()

	err = s.Query(`CREATE TABLE IF NOT EXISTS room_messages (
		room text,
		created_at timestamp,
		id text,
		sender text,
		sender_id text,
		kind text,
		content text,
		filename text,
		PRIMARY KEY (room, created_at, id)
	) WITH CLUSTERING ORDER BY (created_at DESC, id DESC)`).Exec()
	if err != nil {
		return fmt.Errorf("archive: create room_messages table: %w", err)
	}
	return nil
}

// Insert archives one room message. File contents are not stored.
func (s *Session) Insert(ctx context.Context, m model.Message) error {
	var filename string
	if m.File != nil {
		filename = m.File.Filename
	}
	room := m.Room
	if room == "" {
		room = model.DefaultRoom
	}
	err := s.Query(`INSERT INTO room_messages (room, created_at, id, sender, sender_id, kind, content, filename) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		room, m.Timestamp, m.ID, m.Sender, m.SenderID, string(m.Kind), m.Text, filename).
		WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("archive: insert message %s: %w", m.ID, err)
	}
	return nil
}

// Recent returns up to limit archived messages of room, oldest first.
func (s *Session) Recent(ctx context.Context, room string, limit int) ([]model.Message, error) {
	iter := s.Query(`SELECT room, created_at, id, sender, sender_id, kind, content, filename FROM room_messages WHERE room = ? LIMIT ?`,
		room, ClampLimit(limit)).WithContext(ctx).Iter()

	var (
		messages                      []model.Message
		r, id, sender, senderID, kind string
		content, filename             string
		createdAt                     time.Time
	)
	for iter.Scan(&r, &createdAt, &id, &sender, &senderID, &kind, &content, &filename) {
		messages = append(messages, fromRow(r, createdAt, id, sender, senderID, kind, content, filename))
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("archive: read room %s: %w", room, err)
	}
	reverse(messages)
	if messages == nil {
		messages = []model.Message{}
	}
	return messages, nil
}

func fromRow(room string, createdAt time.Time, id, sender, senderID, kind, content, filename string) model.Message {
	m := model.Message{
		ID:        id,
		Room:      room,
		Sender:    sender,
		SenderID:  senderID,
		Kind:      model.MessageKind(kind),
		Text:      content,
		Status:    model.StatusDelivered,
		Timestamp: createdAt.UTC(),
	}
	if m.Kind == model.KindFile {
		m.IsFile = true
		m.File = &model.File{Filename: filename}
	}
	return m
}

// ClampLimit applies the default and maximum page size.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// Archivable extracts the message carried by a message.stored activity.
// Private messages are never archived.
func Archivable(a model.Activity) (model.Message, bool) {
	if a.Kind != model.ActivityStored || a.Message == nil || a.Message.IsPrivate {
		return model.Message{}, false
	}
	m := a.Message.Clone()
	if m.Room == "" {
		m.Room = a.Room
	}
	return m, true
}

func reverse(ms []model.Message) {
	for i, j := 0, len(ms)-1; i < j; i, j = i+1, j-1 {
		ms[i], ms[j] = ms[j], ms[i]
	}
}
