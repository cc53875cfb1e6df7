package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mahaj/room-relay/pkg/model"
)

type PresenceReader interface {
	Members(ctx context.Context, room string) ([]model.Participant, error)
}

type PresenceHandler struct {
	presence PresenceReader
}

func NewPresenceHandler(presence PresenceReader) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// ServeHTTP answers GET /rooms/{room}/users.
func (h *PresenceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	room := r.PathValue("room")
	if room == "" {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	users, err := h.presence.Members(r.Context(), room)
	if err != nil {
		slog.Error("failed to fetch presence", "room", room, "error", err)
		http.Error(w, "Failed to fetch presence", http.StatusInternalServerError)
		return
	}

	writeJSON(w, users)
}
