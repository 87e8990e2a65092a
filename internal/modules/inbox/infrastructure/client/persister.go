package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/petcuddles/pet-cuddles/internal/modules/inbox/domain"
)

// HTTPPersister confirms reads with PATCH /notifications/{id}/read.
type HTTPPersister struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPPersister(baseURL, token string, httpClient *http.Client) *HTTPPersister {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPPersister{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

func (p *HTTPPersister) MarkRead(ctx context.Context, id string) error {
	if p.token == "" {
		return &domain.AuthError{Source: domain.SourceGeneric, Message: "missing credential"}
	}

	endpoint := p.baseURL + "/notifications/" + url.PathEscape(id) + "/read"
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request PATCH %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	return classifyStatus(domain.SourceGeneric, resp)
}
