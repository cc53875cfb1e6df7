package relay

import "sort"

type typist struct {
	connID string
	name   string
}

// TypingTracker holds, per room, who is currently typing. Entries live until
// the participant stops typing or disconnects; there is no expiry.
type TypingTracker struct {
	rooms map[string][]typist
}

func NewTypingTracker() *TypingTracker {
	return &TypingTracker{rooms: make(map[string][]typist)}
}

// Set adds or removes connID from room's typing set and returns the
// resulting names in the order they started typing.
func (t *TypingTracker) Set(room, connID, name string, isTyping bool) []string {
	set := t.rooms[room]
	idx := indexOf(set, connID)
	switch {
	case isTyping && idx < 0:
		set = append(set, typist{connID: connID, name: name})
	case isTyping:
		set[idx].name = name
	case idx >= 0:
		set = append(set[:idx], set[idx+1:]...)
	}
	t.rooms[room] = set
	return names(set)
}

// Names returns the display names currently typing in room.
func (t *TypingTracker) Names(room string) []string {
	return names(t.rooms[room])
}

// ClearConnection removes connID from every room and returns the updated
// name lists of the rooms it was removed from.
func (t *TypingTracker) ClearConnection(connID string) map[string][]string {
	affected := make(map[string][]string)
	for room, set := range t.rooms {
		idx := indexOf(set, connID)
		if idx < 0 {
			continue
		}
		set = append(set[:idx], set[idx+1:]...)
		t.rooms[room] = set
		affected[room] = names(set)
	}
	return affected
}

// sortedRooms gives ClearConnection results a deterministic broadcast order.
func sortedRooms(m map[string][]string) []string {
	rooms := make([]string, 0, len(m))
	for r := range m {
		rooms = append(rooms, r)
	}
	sort.Strings(rooms)
	return rooms
}

func indexOf(set []typist, connID string) int {
	for i, e := range set {
		if e.connID == connID {
			return i
		}
	}
	return -1
}

func names(set []typist) []string {
	out := make([]string, 0, len(set))
	for _, e := range set {
		out = append(out, e.name)
	}
	return out
}
