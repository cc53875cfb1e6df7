package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/mahaj/room-relay/pkg/config"
	"github.com/mahaj/room-relay/pkg/export"
	"github.com/mahaj/room-relay/pkg/logging"
	"github.com/mahaj/room-relay/pkg/presence"
	"github.com/mahaj/room-relay/pkg/relay"
	"github.com/mahaj/room-relay/pkg/sink"
)

// closer is something to release after the sink queues have drained.
type closer struct {
	name  string
	close func() error
}

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	queues, closers, err := buildSinks(cfg, logger)
	if err != nil {
		logger.Error("failed to initialise sinks", "error", err)
		os.Exit(1)
	}
	sinks := make([]relay.Sink, 0, len(queues))
	for _, q := range queues {
		sinks = append(sinks, q)
	}

	hub, _, handler := newGateway(cfg, logger, sinks...)
	go hub.Run()

	server := &http.Server{
		Addr:              cfg.GatewayAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("gateway listening", "addr", cfg.GatewayAddr, "sinks", len(sinks))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("gateway server failed", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			// ordered: stop accepting, disconnect clients, then flush sinks
			"gateway": func(ctx context.Context) error {
				logger.Info("graceful shutdown initiated")
				var errs []error
				if err := server.Shutdown(ctx); err != nil {
					errs = append(errs, err)
				}
				if err := hub.Shutdown(ctx); err != nil {
					errs = append(errs, err)
				}
				for _, q := range queues {
					if err := q.Close(ctx); err != nil {
						errs = append(errs, err)
					}
				}
				for _, c := range closers {
					if err := c.close(); err != nil {
						logger.Warn("close failed", "resource", c.name, "error", err)
					}
				}
				return errors.Join(errs...)
			},
		},
	)

	exitCode := <-wait
	logger.Info("gateway exited", "code", exitCode)
	os.Exit(exitCode)
}

// buildSinks connects every configured side-effect target. Targets left
// unconfigured are skipped.
func buildSinks(cfg config.Config, logger *slog.Logger) ([]*sink.Async, []closer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		queues  []*sink.Async
		closers []closer
	)
	opts := []sink.Option{sink.WithLogger(logger)}

	if cfg.RedisAddr != "" {
		rdb, err := presence.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		mirror := presence.NewMirror(rdb)
		if err := mirror.Reset(ctx); err != nil {
			logger.Warn("could not clear stale presence", "error", err)
		}
		queues = append(queues, sink.NewAsync("presence", cfg.SendBuffer, mirror.Apply, opts...))
		closers = append(closers, closer{"redis", rdb.Close})
	}

	if len(cfg.KafkaBrokers) > 0 {
		k := export.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		queues = append(queues, sink.NewAsync("kafka", cfg.SendBuffer, k.Export, opts...))
		closers = append(closers, closer{"kafka", k.Close})
	}

	if cfg.NatsURL != "" {
		n, err := export.NewNATS(ctx, cfg.NatsURL, cfg.NatsStream)
		if err != nil {
			return nil, nil, err
		}
		queues = append(queues, sink.NewAsync("nats", cfg.SendBuffer, n.Export, opts...))
		closers = append(closers, closer{"nats", n.Close})
	}

	return queues, closers, nil
}
