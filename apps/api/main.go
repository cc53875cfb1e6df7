package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/mahaj/room-relay/pkg/archive"
	"github.com/mahaj/room-relay/pkg/config"
	"github.com/mahaj/room-relay/pkg/logging"
	"github.com/mahaj/room-relay/pkg/presence"
)

func CORSMiddleware(cfg config.Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && cfg.OriginAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func routes(cfg config.Config, history ArchiveReader, members PresenceReader) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/archive/messages", CORSMiddleware(cfg, NewHistoryHandler(history)))
	mux.Handle("/rooms/{room}/users", CORSMiddleware(cfg, NewPresenceHandler(members)))
	return mux
}

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	session, err := archive.NewSession(cfg.ScyllaHosts, cfg.ScyllaKeyspace)
	if err != nil {
		logger.Error("failed to connect to archive", "error", err)
		os.Exit(1)
	}

	redisAddr := cfg.RedisAddr
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	rdb, err := presence.NewClient(ctx, redisAddr)
	cancel()
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           routes(cfg, session, presence.NewReader(rdb)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api listening", "addr", cfg.APIAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"api": func(ctx context.Context) error {
				err := server.Shutdown(ctx)
				session.Close()
				return errors.Join(err, rdb.Close())
			},
		},
	)

	exitCode := <-wait
	logger.Info("api exited", "code", exitCode)
	os.Exit(exitCode)
}
