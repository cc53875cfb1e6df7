package main

import (
	"context"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/mahaj/room-relay/pkg/archive"
	"github.com/mahaj/room-relay/pkg/config"
	"github.com/mahaj/room-relay/pkg/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	if len(cfg.KafkaBrokers) == 0 {
		logger.Error("KAFKA_BROKERS is required for the archiver")
		os.Exit(1)
	}

	if err := archive.EnsureSchema(cfg.ScyllaHosts, cfg.ScyllaKeyspace); err != nil {
		logger.Error("failed to prepare archive schema", "error", err)
		os.Exit(1)
	}

	session, err := archive.NewSession(cfg.ScyllaHosts, cfg.ScyllaKeyspace)
	if err != nil {
		logger.Error("failed to connect to archive", "error", err)
		os.Exit(1)
	}

	consumer := NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroup, session, logger)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		logger.Info("archiver consuming", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroup)
		consumer.Consume(ctx)
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"archiver": func(ctx context.Context) error {
				cancel()
				select {
				case <-stopped:
				case <-ctx.Done():
				}
				err := consumer.Close()
				session.Close()
				return err
			},
		},
	)

	exitCode := <-wait
	logger.Info("archiver exited", "code", exitCode)
	os.Exit(exitCode)
}
