package alerts

import (
	"go.uber.org/zap"

	alerts_http "github.com/petcuddles/pet-cuddles/internal/modules/alerts/interfaces/http"
)

type Module struct {
	handler *alerts_http.AlertsHandler
}

// NewModule builds the per-feed views on top of the notification service.
func NewModule(reader alerts_http.NotificationReader, logger *zap.Logger) *Module {
	return &Module{handler: alerts_http.NewAlertsHandler(reader, logger)}
}

func (m *Module) HTTPHandler() *alerts_http.AlertsHandler {
	return m.handler
}
