package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActivityIsPresence(t *testing.T) {
	for _, k := range []ActivityKind{ActivityJoined, ActivityRenamed, ActivityLeft} {
		assert.True(t, Activity{Kind: k}.IsPresence(), k)
	}
	for _, k := range []ActivityKind{ActivityStored, ActivityReaction, ActivityRead} {
		assert.False(t, Activity{Kind: k}.IsPresence(), k)
	}
}
