package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mahaj/room-relay/pkg/config"
	"github.com/mahaj/room-relay/pkg/model"
	"github.com/mahaj/room-relay/pkg/relay"
)

const (
	defaultPageLimit = 20
)

type historyPage struct {
	Room  string          `json:"room"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
	Items []model.Message `json:"items"`
}

type health struct {
	Status       string `json:"status"`
	Participants int    `json:"participants"`
	Connections  int    `json:"connections"`
}

// newGateway wires a hub to a dispatcher and returns both with the HTTP
// routes of the relay process.
func newGateway(cfg config.Config, logger *slog.Logger, sinks ...relay.Sink) (*Hub, *relay.Dispatcher, http.Handler) {
	hub := NewHub(logger)
	d := relay.New(hub, relay.WithSinks(sinks...), relay.WithLogger(logger))
	hub.dispatcher = d

	upgrader := newUpgrader(cfg)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, upgrader, cfg, w, r)
	})
	mux.Handle("GET /api/messages", CORSMiddleware(cfg, historyHandler(d)))
	mux.Handle("GET /api/users", CORSMiddleware(cfg, usersHandler(d)))
	mux.Handle("OPTIONS /api/", CORSMiddleware(cfg, http.NotFoundHandler()))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, health{Status: "ok", Participants: len(d.Participants()), Connections: hub.Len()})
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("Chat relay is running"))
	})
	return hub, d, mux
}

func CORSMiddleware(cfg config.Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && cfg.OriginAllowed(origin) {
			if cfg.AllowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
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

// historyHandler serves GET /api/messages?room=&page=&limit=.
func historyHandler(d *relay.Dispatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		room := q.Get("room")
		if room == "" {
			room = model.DefaultRoom
		}
		page := positiveInt(q.Get("page"), 1)
		limit := min(positiveInt(q.Get("limit"), defaultPageLimit), relay.HistoryLimit)

		writeJSON(w, historyPage{
			Room:  room,
			Page:  page,
			Limit: limit,
			Items: d.History(room, page, limit),
		})
	})
}

// usersHandler serves GET /api/users, optionally filtered by ?room=.
func usersHandler(d *relay.Dispatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if room := r.URL.Query().Get("room"); room != "" {
			writeJSON(w, d.RoomParticipants(room))
			return
		}
		writeJSON(w, d.Participants())
	})
}

func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}
