package connectivity

import (
	"context"
	"net/http"
	"time"
)

// HTTPProber checks reachability by issuing a GET against a well-known
// endpoint, typically the delivery server's health check.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

// NewHTTPProber creates an HTTPProber with a short-timeout client.
func NewHTTPProber(url string) *HTTPProber {
	return &HTTPProber{
		URL:    url,
		Client: &http.Client{Timeout: 3 * time.Second},
	}
}

// Probe reports whether the endpoint answered with a non-5xx status.
func (p *HTTPProber) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return false
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < 500
}
