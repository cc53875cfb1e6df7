package presence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mahaj/room-relay/pkg/model"
)

func TestRoomKey(t *testing.T) {
	assert.Equal(t, "room:global:members", RoomKey("global"))
}

func TestPlanJoinMovesBetweenRooms(t *testing.T) {
	steps := plan(model.Activity{Kind: model.ActivityJoined, ConnID: "c1", Name: "alice", Room: "dev", PrevRoom: "global"})

	assert.Equal(t, []step{
		{op: opSRem, key: "room:global:members", field: "c1"},
		{op: opSAdd, key: "room:dev:members", field: "c1"},
		{op: opHSet, key: participantsKey, field: "c1", value: "alice"},
	}, steps)
}

func TestPlanFirstJoinAndRejoin(t *testing.T) {
	first := plan(model.Activity{Kind: model.ActivityJoined, ConnID: "c1", Name: "Anonymous", Room: "global"})
	assert.Len(t, first, 2)
	assert.Equal(t, opSAdd, first[0].op)

	same := plan(model.Activity{Kind: model.ActivityJoined, ConnID: "c1", Name: "a", Room: "dev", PrevRoom: "dev"})
	assert.Len(t, same, 2, "rejoining the same room must not remove membership")
}

func TestPlanRenameAndLeave(t *testing.T) {
	assert.Equal(t, []step{{op: opHSet, key: participantsKey, field: "c1", value: "bob"}},
		plan(model.Activity{Kind: model.ActivityRenamed, ConnID: "c1", Name: "bob", Room: "dev"}))

	assert.Equal(t, []step{
		{op: opSRem, key: "room:dev:members", field: "c1"},
		{op: opHDel, key: participantsKey, field: "c1"},
	}, plan(model.Activity{Kind: model.ActivityLeft, ConnID: "c1", Room: "dev"}))
}

func TestPlanIgnoresMessageActivity(t *testing.T) {
	assert.Empty(t, plan(model.Activity{Kind: model.ActivityStored, Room: "dev"}))
	assert.Empty(t, plan(model.Activity{Kind: model.ActivityReaction, Room: "dev"}))
}

func TestMirrorApplySkipsNonPresence(t *testing.T) {
	// no Redis client: message activity must return before any command is issued
	m := NewMirror(nil)
	assert.NoError(t, m.Apply(context.Background(), model.Activity{Kind: model.ActivityStored, Room: "dev"}))
	assert.NoError(t, m.Apply(context.Background(), model.Activity{Kind: model.ActivityRead, Room: "dev"}))
}
