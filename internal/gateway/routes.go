package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/petcuddles/pet-cuddles/internal/gateway/middleware"
	alerts_http "github.com/petcuddles/pet-cuddles/internal/modules/alerts/interfaces/http"
	inbox_http "github.com/petcuddles/pet-cuddles/internal/modules/inbox/interfaces/http"
	"github.com/petcuddles/pet-cuddles/internal/modules/notification/domain"
	notification_http "github.com/petcuddles/pet-cuddles/internal/modules/notification/interfaces/http"
	"github.com/petcuddles/pet-cuddles/internal/shared/utils"
)

// RouterConfig holds all the handlers and middleware needed for routing
type RouterConfig struct {
	AuthMiddleware      *middleware.AuthMiddleWare
	NotificationHandler *notification_http.NotificationHandler
	AlertsHandler       *alerts_http.AlertsHandler
	InboxHandler        *inbox_http.InboxHandler
}

// SetupRoutes creates and configures all application routes
func SetupRoutes(config RouterConfig) *http.ServeMux {
	r := NewRouter(config.AuthMiddleware)

	r.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("GET /metrics", promhttp.Handler())

	// Backend of record
	n := config.NotificationHandler
	r.Protected("GET /notifications", n.ListNotifications)
	r.Protected("PATCH /notifications/{id}/read", n.MarkAsRead)
	r.Protected("PATCH /notifications/read-all", n.MarkAllAsRead)
	r.Protected("GET /notifications/unread-count", n.UnreadCount)
	r.Protected("GET /ws", n.Subscribe)
	r.WithRole("POST /admin/notifications", n.AdminCreate, utils.RoleAdmin)

	a := config.AlertsHandler
	r.Protected("GET /disease-alerts/notifications", a.List(domain.SourceDiseaseAlert))
	r.Protected("GET /disease-alerts/unread-count", a.UnreadCount(domain.SourceDiseaseAlert))
	r.Protected("GET /pets/weather-alerts/notifications", a.List(domain.SourceWeatherAlert))
	r.Protected("GET /pets/weather-alerts/unread-count", a.UnreadCount(domain.SourceWeatherAlert))
	r.Protected("GET /appointment/reminders", a.List(domain.SourceAppointment))
	r.Protected("GET /appointment/reminder-count", a.UnreadCount(domain.SourceAppointment))

	// Inbox
	i := config.InboxHandler
	r.Protected("POST /inbox/session", i.StartSession)
	r.Protected("DELETE /inbox/session", i.EndSession)
	r.Protected("GET /inbox", i.GetInbox)
	r.Protected("POST /inbox/refresh", i.Refresh)
	r.Protected("PATCH /inbox/{id}/read", i.MarkRead)
	r.Protected("GET /inbox/ws", i.Subscribe)

	return r.Mux()
}
