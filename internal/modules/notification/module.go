package notification

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/petcuddles/pet-cuddles/internal/modules/notification/application"
	"github.com/petcuddles/pet-cuddles/internal/modules/notification/infrastructure/mq"
	"github.com/petcuddles/pet-cuddles/internal/modules/notification/infrastructure/persistence/postgres"
	"github.com/petcuddles/pet-cuddles/internal/modules/notification/infrastructure/realtime"
	notification_http "github.com/petcuddles/pet-cuddles/internal/modules/notification/interfaces/http"
	"github.com/petcuddles/pet-cuddles/internal/shared/infrastructure/websocket"
)

type Module struct {
	service *application.NotificationService
	handler *notification_http.NotificationHandler
	alerts  *mq.AlertHandler
	hub     *websocket.Hub
	relay   *realtime.RedisRelay
	logger  *zap.Logger
}

// NewModule wires the notification backend. rdb may be nil, in which case
// pushes only reach connections on this instance.
func NewModule(db *sqlx.DB, rdb *redis.Client, logger *zap.Logger) *Module {
	if logger == nil {
		logger = zap.NewNop()
	}

	repo := postgres.NewPgNotificationRepository(db)
	hub := websocket.NewHub(logger)
	go hub.Run()

	var broadcaster application.Broadcaster = hub
	var relay *realtime.RedisRelay
	if rdb != nil {
		relay = realtime.NewRedisRelay(rdb, hub, logger)
		broadcaster = relay
	}

	service := application.NewNotificationService(repo, broadcaster, logger)

	return &Module{
		service: service,
		handler: notification_http.NewNotificationHandler(service, hub, logger),
		alerts:  mq.NewAlertHandler(service, logger),
		hub:     hub,
		relay:   relay,
		logger:  logger,
	}
}

func (m *Module) HTTPHandler() *notification_http.NotificationHandler {
	return m.handler
}

func (m *Module) Service() *application.NotificationService {
	return m.service
}

// AlertFeedHandler consumes alert events from the message broker.
func (m *Module) AlertFeedHandler() mq.MessageHandler {
	return m.alerts.Handle
}

// StartRelay subscribes to cross-instance pushes until ctx is done. It is a
// no-op without Redis.
func (m *Module) StartRelay(ctx context.Context) {
	if m.relay == nil {
		return
	}
	go func() {
		if err := m.relay.Run(ctx); err != nil {
			m.logger.Error("[Notification] relay stopped", zap.Error(err))
		}
	}()
}

func (m *Module) Shutdown() {
	m.hub.Stop()
}
