// Package handlers provides the local REST API the UI uses to enqueue
// messages and observe sync state.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/omnii/assistant-core/internal/chat/delivery"
	"github.com/omnii/assistant-core/internal/chat/outbox"
	"github.com/omnii/assistant-core/internal/chat/preview"
	"github.com/omnii/assistant-core/internal/chat/syncstate"
)

// ChatHandler exposes the outbound queue and sync status over localhost HTTP.
type ChatHandler struct {
	outbox    *outbox.Outbox
	machine   *syncstate.Machine
	attempter *delivery.Attempter
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(ob *outbox.Outbox, machine *syncstate.Machine, attempter *delivery.Attempter) *ChatHandler {
	return &ChatHandler{
		outbox:    ob,
		machine:   machine,
		attempter: attempter,
	}
}

// Register attaches all chat routes to the mux.
func (h *ChatHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/chat/messages", h.EnqueueMessage)
	mux.HandleFunc("/v1/sync/status", h.GetStatus)
	mux.HandleFunc("/v1/sync/trigger", h.TriggerSync)
	mux.HandleFunc("/v1/sync/failed", h.GetFailed)
	mux.HandleFunc("/v1/sync/retry-failed", h.RetryFailed)
	mux.HandleFunc("/v1/sync/reset", h.Reset)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// EnqueueMessage handles POST /v1/chat/messages.
// The message is durably queued whatever the connectivity; delivery starts
// whenever the network allows.
func (h *ChatHandler) EnqueueMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(request.Payload) == 0 {
		http.Error(w, "payload is required", http.StatusBadRequest)
		return
	}

	msg := h.outbox.Enqueue(request.Payload)
	h.attempter.NotifyEnqueued()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"id":      msg.ID,
		"pending": h.outbox.Size(),
		"status":  string(h.machine.Status()),
	})
}

// GetStatus handles GET /v1/sync/status.
func (h *ChatHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var lastSynced int64
	if t := h.machine.LastSynced(); !t.IsZero() {
		lastSynced = t.Unix()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         string(h.machine.Status()),
		"is_syncing":     h.machine.IsSyncing(),
		"is_connected":   h.machine.IsConnected(),
		"pending":        h.outbox.Size(),
		"failed":         h.outbox.FailedCount(),
		"last_synced_at": lastSynced,
	})
}

// TriggerSync handles POST /v1/sync/trigger. A no-op unless connected and
// not already syncing.
func (h *ChatHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	started := h.machine.TriggerSync()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"started": started,
		"status":  string(h.machine.Status()),
	})
}

// GetFailed handles GET /v1/sync/failed, the "failed to send" list.
func (h *ChatHandler) GetFailed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	failed := h.outbox.FailedMessages()
	items := make([]map[string]interface{}, 0, len(failed))
	for _, msg := range failed {
		items = append(items, map[string]interface{}{
			"id":          msg.ID,
			"preview":     preview.Excerpt(msg.Payload, preview.DefaultLimit),
			"retries":     msg.RetryCount,
			"enqueued_at": msg.EnqueuedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"failed": items,
		"total":  len(items),
	})
}

// RetryFailed handles POST /v1/sync/retry-failed: failed messages go back to
// the pending queue with reset retry counts.
func (h *ChatHandler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requeued := h.outbox.RetryFailed()
	if requeued > 0 {
		h.attempter.NotifyEnqueued()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requeued": requeued,
		"pending":  h.outbox.Size(),
	})
}

// Reset handles POST /v1/sync/reset: drops all pending and failed state.
// Explicit user action only; nothing in the core calls this automatically.
func (h *ChatHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.outbox.Clear()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "reset",
	})
}
