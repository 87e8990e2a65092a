package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petcuddles/pet-cuddles/internal/modules/inbox/domain"
)

func TestHTTPSourceClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/pets/weather-alerts/notifications", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"id":"w1","source":"weather_alert","severity":"extreme","title":"Heatwave","message":"Keep pets cool","link":"/pets/weather-alerts","is_read":false,"created_at":"2026-07-01T10:00:00Z"},
			{"id":"w2","title":"Storm warning","is_read":true,"created_at":"2026-07-01T11:00:00Z"},
			{"title":"no id is skipped"}
		]}`))
	}))
	defer srv.Close()

	c := NewHTTPSourceClient(domain.SourceWeatherAlert, srv.URL+"/", DefaultPaths[domain.SourceWeatherAlert], nil)
	assert.Equal(t, domain.SourceWeatherAlert, c.Source())

	items, err := c.Fetch(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, domain.Notification{
		ID:        "w1",
		Source:    domain.SourceWeatherAlert,
		Message:   "Keep pets cool",
		Link:      "/pets/weather-alerts",
		CreatedAt: time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC),
		Severity:  domain.SeverityExtreme,
	}, items[0])

	assert.Equal(t, domain.SourceWeatherAlert, items[1].Source)
	assert.Equal(t, "Storm warning", items[1].Message)
	assert.True(t, items[1].Read)
	assert.Empty(t, items[1].Link)
}

func TestHTTPSourceClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantAuth bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"invalid or expired token"}`, true},
		{"forbidden", http.StatusForbidden, `{}`, true},
		{"server error", http.StatusInternalServerError, `boom`, false},
		{"bad gateway", http.StatusBadGateway, ``, false},
		{"bad json", http.StatusOK, `{"data":`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewHTTPSourceClient(domain.SourceDiseaseAlert, srv.URL, "/disease-alerts/notifications", nil)
			items, err := c.Fetch(context.Background(), "tok")
			require.Error(t, err)
			assert.Nil(t, items)
			assert.Equal(t, tt.wantAuth, domain.IsAuthError(err))
			assert.Equal(t, !tt.wantAuth, domain.IsNetworkError(err))
		})
	}
}

func TestHTTPSourceClient_MissingTokenSkipsRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	_, err := NewHTTPSourceClient(domain.SourceGeneric, srv.URL, "/notifications", nil).Fetch(context.Background(), "")
	assert.True(t, domain.IsAuthError(err))
	assert.False(t, called)
}

func TestHTTPSourceClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewHTTPSourceClient(domain.SourceAppointment, url, "/appointment/reminders", nil).Fetch(context.Background(), "tok")
	assert.True(t, domain.IsNetworkError(err))
}

func TestHTTPSourceClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewHTTPSourceClient(domain.SourceGeneric, srv.URL, "/notifications", &http.Client{Timeout: 30 * time.Millisecond})
	_, err := c.Fetch(context.Background(), "tok")
	assert.True(t, domain.IsNetworkError(err))
}

func TestNewDefaultSourceClients(t *testing.T) {
	clients := NewDefaultSourceClients("http://backend", nil)
	require.Len(t, clients, 4)
	for i, src := range FetchOrder {
		assert.Equal(t, src, clients[i].Source())
		assert.Equal(t, DefaultPaths[src], clients[i].path)
	}
}

func TestHTTPSourceClient_GenericRequestsOwnSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notifications", r.URL.Path)
		assert.Equal(t, "generic", r.URL.Query().Get("source"))
		_, _ = w.Write([]byte(`{"data":[{"id":"g1","source":"generic","message":"Welcome"}]}`))
	}))
	defer srv.Close()

	items, err := NewHTTPSourceClient(domain.SourceGeneric, srv.URL, DefaultPaths[domain.SourceGeneric], nil).
		Fetch(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "g1", items[0].ID)
}

func TestHTTPSourceClient_SkipsOtherFeeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"id":"g1","source":"generic","message":"Welcome"},
			{"id":"d1","source":"disease_alert","message":"Parvo nearby"},
			{"id":"x1","source":"unknown","message":"kept under the client's source"}
		]}`))
	}))
	defer srv.Close()

	items, err := NewHTTPSourceClient(domain.SourceGeneric, srv.URL, "/notifications", nil).
		Fetch(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "g1", items[0].ID)
	assert.Equal(t, "x1", items[1].ID)
	assert.Equal(t, domain.SourceGeneric, items[1].Source)
}
