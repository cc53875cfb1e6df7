package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mahaj/room-relay/pkg/model"
)

// ArchiveReader is the read side of the message archive.
type ArchiveReader interface {
	Recent(ctx context.Context, room string, limit int) ([]model.Message, error)
}

type HistoryHandler struct {
	archive ArchiveReader
}

func NewHistoryHandler(archive ArchiveReader) *HistoryHandler {
	return &HistoryHandler{archive: archive}
}

// ServeHTTP answers GET /archive/messages?room=&limit=.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		room = model.DefaultRoom
	}
	limit := positiveInt(r.URL.Query().Get("limit"))

	messages, err := h.archive.Recent(r.Context(), room, limit)
	if err != nil {
		slog.Error("failed to read archive", "room", room, "error", err)
		http.Error(w, "Failed to retrieve history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, messages)
}

// positiveInt parses a query value, reporting 0 for anything missing or
// not positive so the archive applies its default.
func positiveInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}
