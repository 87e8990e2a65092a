package inbox

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/petcuddles/pet-cuddles/internal/modules/inbox/application"
	"github.com/petcuddles/pet-cuddles/internal/modules/inbox/infrastructure/client"
	inbox_http "github.com/petcuddles/pet-cuddles/internal/modules/inbox/interfaces/http"
	"github.com/petcuddles/pet-cuddles/internal/shared/infrastructure/websocket"
)

type Config struct {
	UpstreamURL  string
	FetchTimeout time.Duration
	PollInterval time.Duration
}

type Module struct {
	sessions *application.SessionManager
	handler  *inbox_http.InboxHandler
	hub      *websocket.Hub
}

// NewModule wires the per-session inbox against the backend at
// cfg.UpstreamURL. Snapshots are pushed to the user's inbox websockets.
func NewModule(cfg Config, logger *zap.Logger) *Module {
	if logger == nil {
		logger = zap.NewNop()
	}

	hub := websocket.NewHub(logger)
	go hub.Run()

	httpClient := &http.Client{Timeout: cfg.FetchTimeout}

	var sources []application.SourceClient
	for _, c := range client.NewDefaultSourceClients(cfg.UpstreamURL, httpClient) {
		sources = append(sources, c)
	}

	agg := application.NewAggregator(sources, cfg.FetchTimeout, logger)
	persister := func(token string) application.Persister {
		return client.NewHTTPPersister(cfg.UpstreamURL, token, httpClient)
	}

	sessions := application.NewSessionManager(agg, persister, application.SessionConfig{
		PollInterval: cfg.PollInterval,
		Publish: func(userID uuid.UUID, snap application.Snapshot) {
			msg, err := json.Marshal(inbox_http.NewView(snap))
			if err != nil {
				logger.Warn("[Inbox] encode snapshot failed", zap.Error(err))
				return
			}
			hub.SendToUserSeq(userID, snap.Version, msg)
		},
	}, logger)

	return &Module{
		sessions: sessions,
		handler:  inbox_http.NewInboxHandler(sessions, hub, logger),
		hub:      hub,
	}
}

func (m *Module) HTTPHandler() *inbox_http.InboxHandler {
	return m.handler
}

func (m *Module) Sessions() *application.SessionManager {
	return m.sessions
}

// Shutdown ends every session and stops the websocket hub.
func (m *Module) Shutdown() {
	m.sessions.Shutdown()
	m.hub.Stop()
}
