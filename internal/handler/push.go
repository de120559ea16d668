package handler

import (
	"net/http"

	"github.com/agora/internal/middleware"
	"github.com/agora/internal/model"
	"github.com/agora/internal/push"
	"github.com/agora/internal/storage"
)

type PushHandler struct {
	subs storage.SubscriptionStore
	keys *push.VAPIDKeys
}

func NewPushHandler(subs storage.SubscriptionStore, keys *push.VAPIDKeys) *PushHandler {
	return &PushHandler{subs: subs, keys: keys}
}

// PublicKey hands the browser the VAPID public key it needs to subscribe.
func (h *PushHandler) PublicKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.keys.PublicKey})
}

type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(r, &req); err != nil || req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "invalid subscription")
		return
	}
	ctx := r.Context()
	sub := &model.PushSubscription{
		UserID:   middleware.GetUserID(ctx),
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}
	if err := h.subs.SaveSubscription(ctx, sub); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if err := decodeJSON(r, &req); err != nil || req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint required")
		return
	}
	if err := h.subs.RemoveSubscription(r.Context(), req.Endpoint); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
