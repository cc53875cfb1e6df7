package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahaj/room-relay/pkg/export"
	"github.com/mahaj/room-relay/pkg/logging"
	"github.com/mahaj/room-relay/pkg/model"
)

type memStore struct {
	msgs []model.Message
	err  error
}

func (s *memStore) Insert(_ context.Context, m model.Message) error {
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, m)
	return nil
}

func encode(t *testing.T, a model.Activity) []byte {
	t.Helper()
	b, err := export.Encode(a)
	require.NoError(t, err)
	return b
}

func TestConsumerArchivesStoredMessages(t *testing.T) {
	store := &memStore{}
	c := &Consumer{store: store, logger: logging.Discard()}

	file := &model.Message{ID: "1-a", Room: "dev", Kind: model.KindFile, IsFile: true,
		File: &model.File{DataURL: "data:x", Filename: "a.png"}, Timestamp: time.Unix(1, 0).UTC()}

	assert.True(t, c.handle(context.Background(), encode(t, model.Activity{Kind: model.ActivityStored, Room: "dev", Message: file})))
	assert.False(t, c.handle(context.Background(), encode(t, model.Activity{Kind: model.ActivityJoined, Room: "dev", ConnID: "c1"})))
	assert.False(t, c.handle(context.Background(), []byte("garbage")))

	require.Len(t, store.msgs, 1)
	assert.Equal(t, "a.png", store.msgs[0].File.Filename)
	assert.Empty(t, store.msgs[0].File.DataURL)
}

func TestConsumerReportsInsertFailure(t *testing.T) {
	store := &memStore{err: errors.New("down")}
	c := &Consumer{store: store, logger: logging.Discard()}

	msg := &model.Message{ID: "1-a", Room: "dev", Text: "hi"}
	assert.False(t, c.handle(context.Background(), encode(t, model.Activity{Kind: model.ActivityStored, Room: "dev", Message: msg})))
}
