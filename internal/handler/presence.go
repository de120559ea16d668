package handler

import (
	"net/http"

	"github.com/agora/internal/middleware"
	"github.com/agora/internal/presence"
)

type PresenceHandler struct {
	tracker *presence.Tracker
}

func NewPresenceHandler(tracker *presence.Tracker) *PresenceHandler {
	return &PresenceHandler{tracker: tracker}
}

// Heartbeat renews the caller's lease. Always 200 with the renewed record:
// presence is advisory and a store hiccup must not surface to the UI.
func (h *PresenceHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	rec := h.tracker.Heartbeat(ctx, userID, middleware.GetUserName(ctx))
	writeJSON(w, http.StatusOK, rec)
}

func (h *PresenceHandler) Leave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	h.tracker.Leave(ctx, userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *PresenceHandler) ListOnline(w http.ResponseWriter, r *http.Request) {
	users, err := h.tracker.ListOnline(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}
