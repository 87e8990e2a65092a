package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/petcuddles/pet-cuddles/internal/gateway/middleware"
	"github.com/petcuddles/pet-cuddles/internal/modules/notification/application"
	"github.com/petcuddles/pet-cuddles/internal/modules/notification/domain"
	"github.com/petcuddles/pet-cuddles/internal/shared/infrastructure/websocket"
	"github.com/petcuddles/pet-cuddles/internal/shared/utils"
)

type NotificationHandler struct {
	service *application.NotificationService
	hub     *websocket.Hub
	logger  *zap.Logger
}

func NewNotificationHandler(service *application.NotificationService, hub *websocket.Hub, logger *zap.Logger) *NotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationHandler{service: service, hub: hub, logger: logger}
}

// Subscribe upgrades to a websocket that receives the user's new notifications.
func (h *NotificationHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	websocket.ServeWs(h.hub, w, r, userID)
}

func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	filter := domain.ListFilter{
		Source: domain.Source(r.URL.Query().Get("source")),
		Limit:  application.DefaultListLimit,
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			filter.Limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			filter.Offset = v
		}
	}

	notifications, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSource) {
			utils.WriteError(w, http.StatusBadRequest, "invalid source", err)
			return
		}
		h.logger.Error("[Notification] list failed", zap.String("user_id", userID.String()), zap.Error(err))
		http.Error(w, "failed to fetch notifications", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{"data": notifications})
}

func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	notificationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid notification id", http.StatusBadRequest)
		return
	}

	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.service.MarkAsRead(r.Context(), notificationID, userID); err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			http.Error(w, "notification not found or unauthorized", http.StatusNotFound)
			return
		}
		h.logger.Error("[Notification] mark read failed", zap.String("notification_id", notificationID.String()), zap.Error(err))
		http.Error(w, "failed to mark notification as read", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.service.MarkAllAsRead(r.Context(), userID); err != nil {
		h.logger.Error("[Notification] mark all read failed", zap.String("user_id", userID.String()), zap.Error(err))
		http.Error(w, "failed to mark all notifications as read", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	count, err := h.service.UnreadCount(r.Context(), userID, domain.Source(r.URL.Query().Get("source")))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSource) {
			utils.WriteError(w, http.StatusBadRequest, "invalid source", err)
			return
		}
		http.Error(w, "failed to get unread count", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]int{"count": count})
}

// AdminCreate lets staff issue a notification to any user.
func (h *NotificationHandler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	var in application.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if in.UserID == uuid.Nil {
		utils.WriteError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	n, err := h.service.Create(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSource),
			errors.Is(err, domain.ErrInvalidSeverity),
			errors.Is(err, domain.ErrEmptyMessage):
			utils.WriteError(w, http.StatusBadRequest, "invalid notification", err)
		default:
			h.logger.Error("[Notification] create failed", zap.Error(err))
			utils.WriteError(w, http.StatusInternalServerError, "failed to create notification", nil)
		}
		return
	}

	utils.WriteJSON(w, http.StatusCreated, n)
}
