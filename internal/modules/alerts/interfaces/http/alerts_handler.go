package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/petcuddles/pet-cuddles/internal/gateway/middleware"
	"github.com/petcuddles/pet-cuddles/internal/modules/notification/domain"
	"github.com/petcuddles/pet-cuddles/internal/shared/utils"
)

type NotificationReader interface {
	List(ctx context.Context, userID uuid.UUID, filter domain.ListFilter) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID, source domain.Source) (int, error)
}

// AlertsHandler serves per-feed views: disease alerts, weather alerts and
// appointment reminders.
type AlertsHandler struct {
	reader NotificationReader
	logger *zap.Logger
}

func NewAlertsHandler(reader NotificationReader, logger *zap.Logger) *AlertsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertsHandler{reader: reader, logger: logger}
}

func (h *AlertsHandler) List(source domain.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		filter := domain.ListFilter{Source: source}
		if l := r.URL.Query().Get("limit"); l != "" {
			if v, err := strconv.Atoi(l); err == nil && v > 0 {
				filter.Limit = v
			}
		}

		items, err := h.reader.List(r.Context(), userID, filter)
		if err != nil {
			h.logger.Error("[Alerts] list failed", zap.String("source", string(source)), zap.Error(err))
			http.Error(w, "failed to fetch alerts", http.StatusInternalServerError)
			return
		}

		utils.WriteJSON(w, http.StatusOK, map[string]any{"data": items})
	}
}

func (h *AlertsHandler) UnreadCount(source domain.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		count, err := h.reader.UnreadCount(r.Context(), userID, source)
		if err != nil {
			h.logger.Error("[Alerts] count failed", zap.String("source", string(source)), zap.Error(err))
			http.Error(w, "failed to get unread count", http.StatusInternalServerError)
			return
		}

		utils.WriteJSON(w, http.StatusOK, map[string]int{"count": count})
	}
}
