package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/petcuddles/pet-cuddles/internal/modules/notification/application"
	"github.com/petcuddles/pet-cuddles/internal/modules/notification/domain"
)

type notificationCreator interface {
	Create(ctx context.Context, in application.CreateInput) (*domain.Notification, error)
}

// AlertHandler turns upstream weather, disease and appointment events into
// persisted notifications.
type AlertHandler struct {
	service notificationCreator
	logger  *zap.Logger
}

func NewAlertHandler(service notificationCreator, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{service: service, logger: logger}
}

func (h *AlertHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var in application.CreateInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	n, err := h.service.Create(ctx, in)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSource) ||
			errors.Is(err, domain.ErrInvalidSeverity) ||
			errors.Is(err, domain.ErrEmptyMessage) {
			return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return err
	}

	h.logger.Info("[MQ] notification created",
		zap.String("notification_id", n.ID.String()),
		zap.String("user_id", n.UserID.String()),
		zap.String("source", string(n.Source)),
	)
	return nil
}
