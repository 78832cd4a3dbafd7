// Package models provides data model definitions for the chat sync core.
package models

import "encoding/json"

// QueuedMessage represents a chat message awaiting delivery.
// IDs are client-generated so a re-send after restart is idempotent on the
// receiving side.
type QueuedMessage struct {
	ID         string          `json:"id"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt int64           `json:"enqueued_at"`
	RetryCount int             `json:"retry_count"`
}
