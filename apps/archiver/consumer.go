package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mahaj/room-relay/pkg/archive"
	"github.com/mahaj/room-relay/pkg/export"
	"github.com/mahaj/room-relay/pkg/model"
)

// Store is where archivable messages end up.
type Store interface {
	Insert(ctx context.Context, m model.Message) error
}

type Consumer struct {
	reader *kafka.Reader
	store  Store
	logger *slog.Logger
}

func NewConsumer(brokers []string, topic string, groupID string, store Store, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
		MaxWait:  time.Second,
	})

	return &Consumer{reader: r, store: store, logger: logger.With("component", "archiver")}
}

// Consume reads activity until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context) {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			c.logger.Warn("error reading from kafka, retrying", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		c.handle(ctx, m.Value)
	}
}

// handle archives one Kafka record. Anything that is not a stored room
// message is skipped.
func (c *Consumer) handle(ctx context.Context, value []byte) bool {
	a, err := export.Decode(value)
	if err != nil {
		c.logger.Warn("skipping undecodable record", "error", err)
		return false
	}
	msg, ok := archive.Archivable(a)
	if !ok {
		c.logger.Debug("skipping activity", "kind", a.Kind, "room", a.Room)
		return false
	}
	if err := c.store.Insert(ctx, msg); err != nil {
		c.logger.Error("failed to archive message", "id", msg.ID, "room", msg.Room, "error", err)
		return false
	}
	c.logger.Debug("message archived", "id", msg.ID, "room", msg.Room)
	return true
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
