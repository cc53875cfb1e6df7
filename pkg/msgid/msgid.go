package msgid

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	nanoid "github.com/jaevor/go-nanoid"
)

const (
	suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	suffixLen      = 6
)

// Generator issues message ids of the form "<unix millis>-<random base36 suffix>".
// Ids sort by creation time and never go backwards when the wall clock does.
type Generator struct {
	mu     sync.Mutex
	last   int64
	now    func() time.Time
	suffix func() string
}

func New() (*Generator, error) {
	suffix, err := nanoid.CustomASCII(suffixAlphabet, suffixLen)
	if err != nil {
		return nil, fmt.Errorf("msgid: build suffix generator: %w", err)
	}
	return &Generator{now: time.Now, suffix: suffix}, nil
}

// MustNew is New for package-level wiring and tests.
func MustNew() *Generator {
	g, err := New()
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Generator) Next() string {
	g.mu.Lock()
	ms := g.now().UnixMilli()
	if ms < g.last {
		// Clock moved backwards, keep the previous instant
		ms = g.last
	}
	g.last = ms
	g.mu.Unlock()

	return strconv.FormatInt(ms, 10) + "-" + g.suffix()
}
