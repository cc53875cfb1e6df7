package relay

import (
	"errors"

	"github.com/mahaj/room-relay/pkg/model"
)

// HistoryLimit is the number of messages each room keeps.
const HistoryLimit = 500

var ErrMessageNotFound = errors.New("not_found")

// Store keeps a bounded, chronologically ordered log per room. When a log
// grows past its capacity the oldest message is evicted.
type Store struct {
	capacity int
	rooms    map[string][]*model.Message
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = HistoryLimit
	}
	return &Store{capacity: capacity, rooms: make(map[string][]*model.Message)}
}

func (s *Store) Append(room string, msg *model.Message) {
	log := append(s.rooms[room], msg)
	if len(log) > s.capacity {
		n := copy(log, log[len(log)-s.capacity:])
		clear(log[n:])
		log = log[:n]
	}
	s.rooms[room] = log
}

func (s *Store) Len(room string) int {
	return len(s.rooms[room])
}

// Find looks id up in room's log. The returned message is the live entry.
func (s *Store) Find(room, id string) (*model.Message, bool) {
	for _, m := range s.rooms[room] {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

// ToggleReaction adds reactor to the reaction's set, or removes it when
// already present, and returns the resulting reactor list.
func (s *Store) ToggleReaction(room, id, reaction, reactor string) ([]string, error) {
	m, ok := s.Find(room, id)
	if !ok {
		return nil, ErrMessageNotFound
	}
	if m.Reactions == nil {
		m.Reactions = make(map[string][]string)
	}
	reactors := m.Reactions[reaction]
	found := false
	for i, r := range reactors {
		if r == reactor {
			reactors = append(reactors[:i], reactors[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		reactors = append(reactors, reactor)
	}
	m.Reactions[reaction] = reactors
	return append([]string{}, reactors...), nil
}

// MarkRead records reader as the most recent reader of the message.
func (s *Store) MarkRead(room, id, reader string) bool {
	m, ok := s.Find(room, id)
	if !ok {
		return false
	}
	m.LastReadBy = reader
	return true
}

// Page returns copies of the messages in [len-page*size, len-(page-1)*size)
// clipped to the log. Page 1 is the newest size messages. Out of range
// requests yield an empty page.
func (s *Store) Page(room string, page, size int) []model.Message {
	log := s.rooms[room]
	if page < 1 || size < 1 {
		return []model.Message{}
	}
	end := len(log) - (page-1)*size
	start := len(log) - page*size
	if start < 0 {
		start = 0
	}
	if end <= start {
		return []model.Message{}
	}
	out := make([]model.Message, 0, end-start)
	for _, m := range log[start:end] {
		out = append(out, m.Clone())
	}
	return out
}
