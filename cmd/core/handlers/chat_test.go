// Package handlers provides unit tests for the local chat REST API.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/omnii/assistant-core/internal/chat/connectivity"
	"github.com/omnii/assistant-core/internal/chat/delivery"
	"github.com/omnii/assistant-core/internal/chat/outbox"
	"github.com/omnii/assistant-core/internal/chat/syncstate"
	"github.com/omnii/assistant-core/internal/models"
	"github.com/omnii/assistant-core/internal/store"
)

// idleTransport never gets called because the attempter is not started in
// these tests.
type idleTransport struct{}

func (idleTransport) Send(ctx context.Context, msg models.QueuedMessage) delivery.Outcome {
	return delivery.Delivered()
}

func newFixture() (*ChatHandler, *outbox.Outbox, *syncstate.Machine, *http.ServeMux) {
	ob := outbox.New(store.NewMemoryStore(), nil)
	machine := syncstate.NewMachine()
	source := connectivity.NewFakeSource(false)
	attempter := delivery.New(ob, idleTransport{}, machine, source, delivery.DefaultConfig(), nil)

	h := NewChatHandler(ob, machine, attempter)
	mux := http.NewServeMux()
	h.Register(mux)
	return h, ob, machine, mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

// TestEnqueueMessage tests POST /v1/chat/messages.
func TestEnqueueMessage(t *testing.T) {
	_, ob, _, mux := newFixture()

	rec := do(mux, http.MethodPost, "/v1/chat/messages", `{"payload":{"text":"hello"}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", rec.Code)
	}

	var resp map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["id"] == "" {
		t.Error("Expected a message id")
	}
	if resp["pending"].(float64) != 1 {
		t.Errorf("Expected 1 pending, got %v", resp["pending"])
	}
	if ob.Size() != 1 {
		t.Errorf("Expected 1 queued, got %d", ob.Size())
	}
}

// TestEnqueueValidation tests intake validation.
func TestEnqueueValidation(t *testing.T) {
	_, _, _, mux := newFixture()

	for name, body := range map[string]string{
		"not json":        "{nope",
		"missing payload": `{}`,
	} {
		if rec := do(mux, http.MethodPost, "/v1/chat/messages", body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, rec.Code)
		}
	}
}

// TestGetStatus tests GET /v1/sync/status.
func TestGetStatus(t *testing.T) {
	_, ob, machine, mux := newFixture()
	ob.Enqueue(json.RawMessage(`{"text":"queued"}`))
	machine.HandleConnectivity(true)

	rec := do(mux, http.MethodGet, "/v1/sync/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["status"] != "connecting" {
		t.Errorf("Expected connecting, got %v", resp["status"])
	}
	if resp["is_connected"] != true {
		t.Error("Expected is_connected true")
	}
	if resp["pending"].(float64) != 1 {
		t.Errorf("Expected 1 pending, got %v", resp["pending"])
	}
}

// TestTriggerSyncOfflineNoop tests that the manual trigger does nothing
// while offline.
func TestTriggerSyncOfflineNoop(t *testing.T) {
	_, _, machine, mux := newFixture()

	rec := do(mux, http.MethodPost, "/v1/sync/trigger", "")
	var resp map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &resp)

	if resp["started"] != false {
		t.Error("Expected trigger no-op while offline")
	}
	if machine.Status() != syncstate.StatusOffline {
		t.Errorf("Expected offline, got %s", machine.Status())
	}
}

// TestTriggerSyncFromSynced tests the trigger restarting a settled machine.
func TestTriggerSyncFromSynced(t *testing.T) {
	_, _, machine, mux := newFixture()
	machine.HandleConnectivity(true)
	machine.Drained()

	rec := do(mux, http.MethodPost, "/v1/sync/trigger", "")
	var resp map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &resp)

	if resp["started"] != true {
		t.Error("Expected trigger to start a drain")
	}
	if resp["status"] != "connecting" {
		t.Errorf("Expected connecting, got %v", resp["status"])
	}
}

// TestFailedListAndRetry tests the failed diagnostics list and manual retry.
func TestFailedListAndRetry(t *testing.T) {
	_, ob, _, mux := newFixture()

	msg := ob.Enqueue(json.RawMessage(`{"text":"# Urgent **note**"}`))
	for i := 0; i < outbox.MaxRetries; i++ {
		ob.IncrementRetry(msg.ID)
	}

	rec := do(mux, http.MethodGet, "/v1/sync/failed", "")
	var resp struct {
		Failed []map[string]interface{} `json:"failed"`
		Total  int                      `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)

	if resp.Total != 1 {
		t.Fatalf("Expected 1 failed, got %d", resp.Total)
	}
	previewText := resp.Failed[0]["preview"].(string)
	if strings.ContainsAny(previewText, "#*") {
		t.Errorf("Expected markdown stripped from preview, got %q", previewText)
	}
	if !strings.Contains(previewText, "Urgent") {
		t.Errorf("Expected content in preview, got %q", previewText)
	}

	rec = do(mux, http.MethodPost, "/v1/sync/retry-failed", "")
	var retryResp map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &retryResp)
	if retryResp["requeued"].(float64) != 1 {
		t.Errorf("Expected 1 requeued, got %v", retryResp["requeued"])
	}
	if ob.FailedCount() != 0 || ob.Size() != 1 {
		t.Errorf("Expected message back in pending, pending=%d failed=%d", ob.Size(), ob.FailedCount())
	}
}

// TestReset tests the explicit user reset.
func TestReset(t *testing.T) {
	_, ob, _, mux := newFixture()
	ob.Enqueue(json.RawMessage(`{"text":"bye"}`))

	rec := do(mux, http.MethodPost, "/v1/sync/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ob.Size() != 0 {
		t.Errorf("Expected empty queue, got %d", ob.Size())
	}
}
