package msgid

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var idPattern = regexp.MustCompile(`^\d+-[0-9a-z]{6}$`)

func TestNextFormat(t *testing.T) {
	g := MustNew()
	id := g.Next()
	assert.Regexp(t, idPattern, id)
}

func TestNextUniqueWithinSameMillisecond(t *testing.T) {
	g := MustNew()
	fixed := time.UnixMilli(1_700_000_000_000)
	g.now = func() time.Time { return fixed }

	seen := make(map[string]struct{}, 200)
	for i := 0; i < 200; i++ {
		id := g.Next()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestNextClockBackwards(t *testing.T) {
	g := MustNew()
	now := time.UnixMilli(2_000)
	g.now = func() time.Time { return now }
	first := g.Next()

	now = time.UnixMilli(1_000)
	second := g.Next()

	ms1, _, _ := strings.Cut(first, "-")
	ms2, _, _ := strings.Cut(second, "-")
	assert.Equal(t, "2000", ms1)
	assert.Equal(t, ms1, ms2)
}
