package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/petcuddles/pet-cuddles/internal/modules/inbox/domain"
)

// Backend paths of each feed. The unfiltered /notifications list carries
// every feed, so the generic client asks for its own source only.
var DefaultPaths = map[domain.Source]string{
	domain.SourceGeneric:      "/notifications?source=generic",
	domain.SourceDiseaseAlert: "/disease-alerts/notifications",
	domain.SourceWeatherAlert: "/pets/weather-alerts/notifications",
	domain.SourceAppointment:  "/appointment/reminders",
}

// FetchOrder is the order sources are registered and loaded in.
var FetchOrder = []domain.Source{
	domain.SourceGeneric,
	domain.SourceDiseaseAlert,
	domain.SourceWeatherAlert,
	domain.SourceAppointment,
}

const maxErrorBody = 512

type wireNotification struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Severity  string    `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      *string   `json:"link"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type listEnvelope struct {
	Data []wireNotification `json:"data"`
}

// HTTPSourceClient fetches one feed from the backend REST API. It never
// retries; the next refresh is the retry.
type HTTPSourceClient struct {
	source     domain.Source
	baseURL    string
	path       string
	httpClient *http.Client
}

func NewHTTPSourceClient(source domain.Source, baseURL, path string, httpClient *http.Client) *HTTPSourceClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSourceClient{
		source:     source,
		baseURL:    strings.TrimRight(baseURL, "/"),
		path:       path,
		httpClient: httpClient,
	}
}

// NewDefaultSourceClients returns one client per feed in FetchOrder.
func NewDefaultSourceClients(baseURL string, httpClient *http.Client) []*HTTPSourceClient {
	clients := make([]*HTTPSourceClient, 0, len(FetchOrder))
	for _, src := range FetchOrder {
		clients = append(clients, NewHTTPSourceClient(src, baseURL, DefaultPaths[src], httpClient))
	}
	return clients
}

func (c *HTTPSourceClient) Source() domain.Source { return c.source }

func (c *HTTPSourceClient) Fetch(ctx context.Context, token string) ([]domain.Notification, error) {
	if token == "" {
		return nil, &domain.AuthError{Source: c.source, Message: "missing credential"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.path, nil)
	if err != nil {
		return nil, &domain.NetworkError{Source: c.source, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Source: c.source, Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(c.source, resp); err != nil {
		return nil, err
	}

	var env listEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &domain.NetworkError{Source: c.source, Err: fmt.Errorf("decoding response: %w", err)}
	}

	items := make([]domain.Notification, 0, len(env.Data))
	for _, w := range env.Data {
		if w.ID == "" {
			continue
		}
		n := c.toDomain(w)
		if n.Source != c.source {
			continue
		}
		items = append(items, n)
	}
	return items, nil
}

func (c *HTTPSourceClient) toDomain(w wireNotification) domain.Notification {
	src := domain.Source(w.Source)
	if !src.Valid() {
		src = c.source
	}
	msg := w.Message
	if msg == "" {
		msg = w.Title
	}
	n := domain.Notification{
		ID:        w.ID,
		Source:    src,
		Message:   msg,
		CreatedAt: w.CreatedAt,
		Read:      w.IsRead,
		Severity:  domain.Severity(w.Severity),
	}
	if w.Link != nil {
		n.Link = *w.Link
	}
	return n
}

// classifyStatus maps 401 and 403 to AuthError and any other non-2xx to
// NetworkError.
func classifyStatus(src domain.Source, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &domain.AuthError{Source: src, Message: resp.Status}
	default:
		return &domain.NetworkError{
			Source: src,
			Err:    errors.New("unexpected status " + resp.Status + ": " + strings.TrimSpace(string(body))),
		}
	}
}
