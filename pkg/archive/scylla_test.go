package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mahaj/room-relay/pkg/model"
)

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, DefaultLimit, ClampLimit(-3))
	assert.Equal(t, 20, ClampLimit(20))
	assert.Equal(t, MaxLimit, ClampLimit(10_000))
}

func TestArchivable(t *testing.T) {
	msg := &model.Message{ID: "1-a", Text: "hi", Kind: model.KindText}

	m, ok := Archivable(model.Activity{Kind: model.ActivityStored, Room: "dev", Message: msg})
	assert.True(t, ok)
	assert.Equal(t, "dev", m.Room)
	assert.Equal(t, "hi", m.Text)

	_, ok = Archivable(model.Activity{Kind: model.ActivityReaction, Room: "dev", Message: msg})
	assert.False(t, ok)

	_, ok = Archivable(model.Activity{Kind: model.ActivityStored, Room: "dev"})
	assert.False(t, ok)

	_, ok = Archivable(model.Activity{Kind: model.ActivityStored, Message: &model.Message{IsPrivate: true}})
	assert.False(t, ok)
}

func TestFromRow(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	text := fromRow("dev", at, "1-a", "alice", "c1", "text", "hello", "")
	assert.False(t, text.IsFile)
	assert.Nil(t, text.File)
	assert.Equal(t, model.StatusDelivered, text.Status)

	file := fromRow("dev", at, "2-b", "alice", "c1", "file", "", "notes.txt")
	assert.True(t, file.IsFile)
	assert.Equal(t, "notes.txt", file.File.Filename)
	assert.Equal(t, at, file.Timestamp)
}

func TestReverse(t *testing.T) {
	ms := []model.Message{{ID: "3"}, {ID: "2"}, {ID: "1"}}
	reverse(ms)
	assert.Equal(t, "1", ms[0].ID)
	assert.Equal(t, "3", ms[2].ID)
}
