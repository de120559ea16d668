package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agora/internal/middleware"
	"github.com/agora/internal/model"
	"github.com/agora/internal/service"
)

// MessageHandler is the REST face of the realtime core: history, send, edit,
// delete and the direct-message inbox. Live delivery happens over /ws.
type MessageHandler struct {
	core *service.Core
}

func NewMessageHandler(core *service.Core) *MessageHandler {
	return &MessageHandler{core: core}
}

func (h *MessageHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	room, err := model.ParseRoomID(chi.URLParam(r, "roomId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	msgs, err := h.core.History(r.Context(), room)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

type sendMessageRequest struct {
	Body string `json:"body"`
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	room, err := model.ParseRoomID(chi.URLParam(r, "roomId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	m, err := h.core.SendMessage(r.Context(), room, userID, middleware.GetUserName(r.Context()), req.Body)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

type editMessageRequest struct {
	Body string `json:"body"`
}

func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var req editMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx := r.Context()
	m, err := h.core.EditMessage(ctx, chi.URLParam(r, "messageId"),
		middleware.GetUserID(ctx), req.Body, middleware.IsModerator(ctx))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.core.DeleteMessage(ctx, chi.URLParam(r, "messageId"),
		middleware.GetUserID(ctx), middleware.IsModerator(ctx))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// OpenDirect resolves the canonical direct room for the caller and a peer.
func (h *MessageHandler) OpenDirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	room, err := h.core.OpenDirect(userID, chi.URLParam(r, "peerId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid peer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"room_id":    room.ID(),
		"thread_key": room.ThreadKey,
	})
}

func (h *MessageHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	ts, err := h.core.ListThreads(ctx, userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}
