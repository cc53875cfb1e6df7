package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypingSetAndUnset(t *testing.T) {
	tr := NewTypingTracker()

	assert.Equal(t, []string{"alice"}, tr.Set("r", "a", "alice", true))
	assert.Equal(t, []string{"alice", "bob"}, tr.Set("r", "b", "bob", true))
	// repeated start is not duplicated
	assert.Equal(t, []string{"alice", "bob"}, tr.Set("r", "a", "alice", true))
	assert.Equal(t, []string{"bob"}, tr.Set("r", "a", "alice", false))
	// stopping when not typing leaves the set unchanged
	assert.Equal(t, []string{"bob"}, tr.Set("r", "a", "alice", false))
	assert.Equal(t, []string{}, tr.Set("r", "b", "bob", false))
}

func TestTypingRoomsAreIndependent(t *testing.T) {
	tr := NewTypingTracker()
	tr.Set("r1", "a", "alice", true)
	tr.Set("r2", "b", "bob", true)

	assert.Equal(t, []string{"alice"}, tr.Names("r1"))
	assert.Equal(t, []string{"bob"}, tr.Names("r2"))
	assert.Empty(t, tr.Names("r3"))
}

func TestTypingClearConnection(t *testing.T) {
	tr := NewTypingTracker()
	tr.Set("r1", "a", "alice", true)
	tr.Set("r1", "b", "bob", true)
	tr.Set("r2", "a", "alice", true)
	tr.Set("r3", "b", "bob", true)

	affected := tr.ClearConnection("a")

	assert.Equal(t, map[string][]string{
		"r1": {"bob"},
		"r2": {},
	}, affected)
	assert.Equal(t, []string{"r1", "r2"}, sortedRooms(affected))
	assert.Equal(t, []string{"bob"}, tr.Names("r3"))
	assert.Empty(t, tr.ClearConnection("a"))
}
