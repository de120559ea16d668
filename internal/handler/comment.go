package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agora/internal/comments"
	"github.com/agora/internal/counter"
	"github.com/agora/internal/middleware"
	"github.com/agora/internal/model"
)

// CommentHandler exposes the shared comment graph and the engagement
// counters. Routes are kind-scoped: /content/{kind}/{id}/...
type CommentHandler struct {
	graph    *comments.Graph
	counters *counter.Manager
}

func NewCommentHandler(graph *comments.Graph, counters *counter.Manager) *CommentHandler {
	return &CommentHandler{graph: graph, counters: counters}
}

func parseKind(r *http.Request) (model.ContentKind, error) {
	return model.ParseContentKind(chi.URLParam(r, "kind"))
}

func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKind(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	threads, err := h.graph.List(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

type commentRequest struct {
	Body string `json:"body"`
}

func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKind(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	c, err := h.graph.CreateComment(ctx, kind, chi.URLParam(r, "id"), userID, req.Body)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CommentHandler) Reply(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	rep, err := h.graph.CreateReply(ctx, chi.URLParam(r, "commentId"), userID, req.Body)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.graph.DeleteComment(ctx, chi.URLParam(r, "commentId"),
		middleware.GetUserID(ctx), middleware.IsModerator(ctx))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CommentHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKind(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	liked, ec, err := h.counters.ToggleLike(ctx, kind, chi.URLParam(r, "id"), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"liked": liked, "counters": ec})
}

func (h *CommentHandler) GetCounters(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKind(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	ec, err := h.counters.Counters(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ec)
}

// RepairCounter reconciles a drifted comment_count. Moderator only.
func (h *CommentHandler) RepairCounter(w http.ResponseWriter, r *http.Request) {
	if !middleware.IsModerator(r.Context()) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	kind, err := parseKind(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	n, err := h.counters.Repair(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"comment_count": n})
}
