package export

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mahaj/room-relay/pkg/model"
)

// Kafka writes activity to a topic keyed by room, so one room's activity
// stays ordered within a partition.
type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

func (k *Kafka) Export(ctx context.Context, a model.Activity) error {
	value, err := Encode(a)
	if err != nil {
		return err
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(a.Room),
		Value: value,
		Time:  a.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("export: write %s to kafka topic %s: %w", a.Kind, k.writer.Topic, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
