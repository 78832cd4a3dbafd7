package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/omnii/assistant-core/internal/models"
	"github.com/omnii/assistant-core/internal/server/ratelimit"
)

// HTTPTransport delivers payloads to the server's message endpoint.
// A 429 carrying the rate-limit envelope maps to the rate-limited outcome;
// everything else non-2xx maps to a transient failure.
type HTTPTransport struct {
	URL       string
	AuthToken string // optional bearer credential forwarded for keying
	Client    *http.Client
}

// NewHTTPTransport creates a transport posting to serverURL's message
// endpoint.
func NewHTTPTransport(serverURL, authToken string) *HTTPTransport {
	return &HTTPTransport{
		URL:       serverURL + "/v1/messages",
		AuthToken: authToken,
		Client:    &http.Client{Timeout: 15 * time.Second},
	}
}

// defaultRetryAfter is used when a rejection carries no usable hint.
const defaultRetryAfter = 30 * time.Second

// intakeBody is the wire shape of a delivery attempt.
type intakeBody struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// Send posts the message and interprets the response into an Outcome.
func (t *HTTPTransport) Send(ctx context.Context, msg models.QueuedMessage) Outcome {
	body, err := json.Marshal(intakeBody{ID: msg.ID, Payload: msg.Payload})
	if err != nil {
		return TransientFailure(fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return TransientFailure(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if t.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.AuthToken)
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return TransientFailure(fmt.Errorf("send: %w", err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Delivered()

	case resp.StatusCode == http.StatusTooManyRequests && ratelimit.IsRateLimitEnvelope(respBody):
		return RateLimited(retryAfterHint(resp))

	default:
		return TransientFailure(fmt.Errorf("server returned %d", resp.StatusCode))
	}
}

// retryAfterHint reads the Retry-After header (seconds).
func retryAfterHint(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}
