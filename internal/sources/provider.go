package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/OpsCenterRio/COR-Backend/internal/apperr"
)

// Provider fetches one external data feed and returns its raw JSON payload.
type Provider interface {
	Name() string
	Fetch(ctx context.Context) ([]byte, error)
}

// httpProvider is a plain GET provider with an optional API key header.
type httpProvider struct {
	name   string
	url    string
	apiKey string
	client *http.Client
}

func newHTTPProvider(name, url, apiKey string, timeout time.Duration) *httpProvider {
	return &httpProvider{
		name:   name,
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *httpProvider) Name() string { return p.name }

func (p *httpProvider) Fetch(ctx context.Context) ([]byte, error) {
	if p.url == "" {
		return nil, fmt.Errorf("%s provider not configured: %w", p.name, apperr.ErrSourceUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", p.name, err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s fetch: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d", p.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%s read body: %w", p.name, err)
	}
	return body, nil
}
