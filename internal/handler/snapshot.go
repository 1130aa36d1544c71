package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/agenda/internal/backup"
	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/websocket"
)

const snapshotListLimit = 50

type SnapshotHandler struct {
	manager *backup.Manager
	logger  *slog.Logger
	broadcaster
}

func NewSnapshotHandler(m *backup.Manager, hub *websocket.Hub, logger *slog.Logger) *SnapshotHandler {
	return &SnapshotHandler{manager: m, logger: logger, broadcaster: broadcaster{hub: hub}}
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func (h *SnapshotHandler) snapshotErr(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, backup.ErrDisabled):
		writeError(w, http.StatusServiceUnavailable, "snapshots are not configured")
	case errors.Is(err, backup.ErrNotFound):
		writeError(w, http.StatusNotFound, "snapshot not found")
	default:
		respondErr(w, h.logger, err, action)
	}
}

// List returns the snapshot status and the most recent snapshots.
func (h *SnapshotHandler) List(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.manager.List(r.Context(), snapshotListLimit)
	if err != nil {
		respondErr(w, h.logger, err, "list snapshots")
		return
	}
	if snapshots == nil {
		snapshots = []model.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    h.manager.Status(),
		"snapshots": snapshots,
	})
}

func (h *SnapshotHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := h.manager.RunNow(r.Context())
	if err != nil {
		h.snapshotErr(w, err, "create snapshot")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *SnapshotHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	state, err := h.manager.Restore(r.Context(), id)
	if err != nil {
		h.snapshotErr(w, err, "restore snapshot")
		return
	}
	h.broadcast(websocket.NewMessage(websocket.EntityState, websocket.ActionReplaced, "", nil))

	writeJSON(w, http.StatusOK, state)
}
