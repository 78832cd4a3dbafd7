// Package server provides the delivery server's HTTP surface: the message
// intake endpoint behind identity-keyed admission control.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/omnii/assistant-core/internal/errors"
	"github.com/omnii/assistant-core/internal/logging"
	"github.com/omnii/assistant-core/internal/server/identity"
	"github.com/omnii/assistant-core/internal/server/ratelimit"
)

// Receiver accepts an admitted message. Duplicate ids must be treated as
// already-delivered so client re-sends stay idempotent.
type Receiver interface {
	Receive(id string, payload json.RawMessage) error
}

// Server gates inbound delivery attempts with the rate limiter.
type Server struct {
	limiter  *ratelimit.Limiter
	receiver Receiver
}

// New creates a Server. A nil receiver accepts and discards messages, which
// is enough for admission-control tests and local development.
func New(limiter *ratelimit.Limiter, receiver Receiver) *Server {
	return &Server{
		limiter:  limiter,
		receiver: receiver,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/v1/messages", s.withRateLimit(s.handleMessage))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok","service":"omnii-delivery"}`))
}

// withRateLimit rejects over-quota requests with the JSON-RPC envelope and a
// Retry-After hint before the handler runs.
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := identity.ResolveKey(r)

		ok, retryAfter := s.limiter.Allow(key)
		if !ok {
			logging.Warn("Request rejected by rate limiter",
				map[string]interface{}{"key": key, "retry_after": retryAfter.String()})

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())+1))
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(ratelimit.NewErrorEnvelope(s.limiter.Max(), s.limiter.Window()))
			return
		}

		next(w, r)
	}
}

// messageRequest is the intake body. The payload stays opaque; only the id
// is required for idempotent acknowledgment.
type messageRequest struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	if s.receiver != nil {
		if err := s.receiver.Receive(req.ID, req.Payload); err != nil {
			logging.ErrorWithCode("Receiver rejected message",
				string(errors.ErrInternal), err, map[string]interface{}{"id": req.ID})
			http.Error(w, "Delivery failed", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":     req.ID,
		"status": "accepted",
	})
}
