package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agora/internal/notify"
)

type NotificationHandler struct {
	fanout *notify.Fanout
}

func NewNotificationHandler(fanout *notify.Fanout) *NotificationHandler {
	return &NotificationHandler{fanout: fanout}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	ns, err := h.fanout.List(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ns)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.fanout.MarkRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.fanout.MarkAllRead(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked": n})
}
