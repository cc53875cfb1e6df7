package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mahaj/room-relay/pkg/model"
)

// NATS publishes activity into a JetStream stream on chat.activity.<room>.
type NATS struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewNATS connects and makes sure the stream exists.
func NewNATS(ctx context.Context, url, stream string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("room-relay"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("export: connect to nats %s: %w", url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("export: create jetstream context: %w", err)
	}

	if _, err := js.Stream(ctx, stream); err != nil {
		slog.Info("jetstream stream not found, creating", "stream", stream)
		_, err = js.CreateStream(ctx, jetstream.StreamConfig{
			Name:        stream,
			Description: "Chat relay activity",
			Subjects:    []string{SubjectPrefix + ".>"},
			MaxAge:      24 * time.Hour,
			Storage:     jetstream.FileStorage,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("export: create stream %s: %w", stream, err)
		}
	}

	return &NATS{nc: nc, js: js}, nil
}

func (n *NATS) Export(ctx context.Context, a model.Activity) error {
	data, err := Encode(a)
	if err != nil {
		return err
	}
	subject := Subject(a.Room)
	if _, err := n.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("export: publish %s to %s: %w", a.Kind, subject, err)
	}
	return nil
}

func (n *NATS) Close() error {
	if n.nc == nil {
		return nil
	}
	if err := n.nc.Drain(); err != nil {
		n.nc.Close()
		return fmt.Errorf("export: drain nats: %w", err)
	}
	return nil
}
