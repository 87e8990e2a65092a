package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/petcuddles/pet-cuddles/internal/gateway/middleware"
	"github.com/petcuddles/pet-cuddles/internal/modules/inbox/application"
	"github.com/petcuddles/pet-cuddles/internal/modules/inbox/domain"
	"github.com/petcuddles/pet-cuddles/internal/shared/infrastructure/websocket"
	"github.com/petcuddles/pet-cuddles/internal/shared/utils"
)

type InboxHandler struct {
	sessions *application.SessionManager
	hub      *websocket.Hub
	logger   *zap.Logger
}

func NewInboxHandler(sessions *application.SessionManager, hub *websocket.Hub, logger *zap.Logger) *InboxHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InboxHandler{sessions: sessions, hub: hub, logger: logger}
}

// StartSession opens a fresh inbox for the caller and loads every feed.
func (h *InboxHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	sess, report, err := h.sessions.Start(r.Context(), userID, middleware.Token(r.Context()))
	if err != nil {
		if domain.IsAuthError(err) {
			utils.WriteError(w, http.StatusUnauthorized, "credential rejected by backend", err)
			return
		}
		h.logger.Error("[Inbox] start session failed", zap.String("user_id", userID.String()), zap.Error(err))
		utils.WriteError(w, http.StatusInternalServerError, "failed to start inbox session", nil)
		return
	}

	view := NewView(sess.Store().Snapshot())
	view.FailedSources = sortedSources(report)
	utils.WriteJSON(w, http.StatusOK, view)
}

func (h *InboxHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	h.sessions.End(userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *InboxHandler) GetInbox(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, http.StatusOK, NewView(sess.Store().Snapshot()))
}

func (h *InboxHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	report, err := sess.Refresh(r.Context(), middleware.Token(r.Context()))
	switch {
	case err == nil:
	case domain.IsAuthError(err):
		h.sessions.End(sess.UserID)
		utils.WriteError(w, http.StatusUnauthorized, "credential rejected by backend", err)
		return
	case errors.Is(err, domain.ErrStoreClosed):
		utils.WriteError(w, http.StatusNotFound, "no active inbox session", nil)
		return
	default:
		utils.WriteError(w, http.StatusServiceUnavailable, "refresh aborted", err)
		return
	}

	view := NewView(sess.Store().Snapshot())
	view.FailedSources = sortedSources(report)
	utils.WriteJSON(w, http.StatusOK, view)
}

// MarkRead answers with the inbox after reconciliation. When the backend
// refuses the change the rolled back inbox is returned with 502.
func (h *InboxHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	err := sess.MarkRead(r.Context(), id)
	switch {
	case err == nil:
		utils.WriteJSON(w, http.StatusOK, NewView(sess.Store().Snapshot()))
	case errors.Is(err, domain.ErrStoreClosed):
		utils.WriteError(w, http.StatusNotFound, "no active inbox session", nil)
	case domain.IsPersistenceError(err):
		h.logger.Warn("[Inbox] mark read rolled back", zap.String("notification_id", id), zap.Error(err))
		view := NewView(sess.Store().Snapshot())
		view.Error = err.Error()
		utils.WriteJSON(w, http.StatusBadGateway, view)
	default:
		utils.WriteError(w, http.StatusInternalServerError, "failed to mark notification as read", err)
	}
}

// Subscribe upgrades to a websocket that receives every inbox snapshot. The
// current inbox is sent first when a session exists. Views go through the
// hub with their version, so a connection never sees an older view after a
// newer one.
func (h *InboxHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	client := websocket.ServeWs(h.hub, w, r, userID)
	if client == nil {
		return
	}
	if sess, ok := h.sessions.Get(userID); ok {
		snap := sess.Store().Snapshot()
		if msg, err := json.Marshal(NewView(snap)); err == nil {
			h.hub.SendToClient(client, snap.Version, msg)
		}
	}
}

func (h *InboxHandler) session(w http.ResponseWriter, r *http.Request) (*application.Session, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	sess, ok := h.sessions.Get(userID)
	if !ok {
		utils.WriteError(w, http.StatusNotFound, "no active inbox session", nil)
		return nil, false
	}
	return sess, true
}

func sortedSources(report application.Report) []domain.Source {
	out := report.FailedSources()
	slices.Sort(out)
	return out
}
