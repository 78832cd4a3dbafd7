// Package outbox provides the durable outbound message queue for chat sync.
// Messages composed offline are persisted here until delivered or permanently
// failed. The queue is strict FIFO with oldest-first eviction when full.
package outbox

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/omnii/assistant-core/internal/errors"
	"github.com/omnii/assistant-core/internal/logging"
	"github.com/omnii/assistant-core/internal/models"
	"github.com/omnii/assistant-core/internal/store"
	"github.com/omnii/assistant-core/internal/uuid"
)

const (
	// MaxQueueSize bounds the pending queue. When a push would exceed it the
	// oldest entry is evicted first: the queue favors the newest user intent
	// over completeness of the backlog.
	MaxQueueSize = 100

	// MaxRetries is the transient-failure ceiling per message. Rate-limiter
	// rejections do not count against it.
	MaxRetries = 3

	pendingKey = "chat/outbox/pending"
	failedKey  = "chat/outbox/failed"
)

// Outbox manages the persistent outbound queue with retry accounting.
// All mutations are serialized under a single mutex so concurrent callers
// (UI enqueue vs. attempter remove) never interleave stale reads with writes.
type Outbox struct {
	mu      sync.Mutex
	store   store.Store
	now     func() time.Time
	pending []models.QueuedMessage
	failed  []models.QueuedMessage

	// onWriteError is invoked when a persist fails; durability can no longer
	// be guaranteed and the caller is expected to surface an error status.
	onWriteError func(error)
}

// New creates an Outbox backed by the given store and clock. Existing state
// is loaded from the store; absent or corrupted state reads as an empty queue.
func New(st store.Store, now func() time.Time) *Outbox {
	if now == nil {
		now = time.Now
	}
	o := &Outbox{
		store: st,
		now:   now,
	}
	o.pending = o.load(pendingKey)
	o.failed = o.load(failedKey)
	return o
}

// OnWriteError registers a callback for persist failures.
func (o *Outbox) OnWriteError(fn func(error)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onWriteError = fn
}

// load reads a message list from the store. Corruption is treated as an
// empty queue, not a fatal condition.
func (o *Outbox) load(key string) []models.QueuedMessage {
	data, ok, err := o.store.Get(key)
	if err != nil {
		logging.ErrorWithCode("Failed to read outbox state", string(errors.ErrStoreRead), err,
			map[string]interface{}{"key": key})
		return nil
	}
	if !ok {
		return nil
	}

	var msgs []models.QueuedMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		logging.ErrorWithCode("Corrupted outbox state, starting empty", string(errors.ErrStoreCorrupted), err,
			map[string]interface{}{"key": key})
		return nil
	}
	return msgs
}

// persist writes a message list to the store under key.
func (o *Outbox) persist(key string, msgs []models.QueuedMessage) {
	data, err := json.Marshal(msgs)
	if err != nil {
		// QueuedMessage marshals unconditionally; this path is unreachable in
		// practice but handled the same as a store failure.
		o.reportWriteError(err)
		return
	}
	if err := o.store.Set(key, data); err != nil {
		logging.ErrorWithCode("Failed to persist outbox state", string(errors.ErrStoreWrite), err,
			map[string]interface{}{"key": key, "count": len(msgs)})
		o.reportWriteError(err)
	}
}

func (o *Outbox) reportWriteError(err error) {
	if o.onWriteError != nil {
		o.onWriteError(err)
	}
}

// Enqueue appends a new message with a fresh client-generated ID and a zero
// retry count. If the queue is full, the single oldest entry is evicted first.
func (o *Outbox) Enqueue(payload json.RawMessage) models.QueuedMessage {
	o.mu.Lock()
	defer o.mu.Unlock()

	msg := models.QueuedMessage{
		ID:         uuid.New(),
		Payload:    payload,
		EnqueuedAt: o.now().Unix(),
		RetryCount: 0,
	}

	if len(o.pending) >= MaxQueueSize {
		evicted := o.pending[0]
		o.pending = append(o.pending[:0:0], o.pending[1:]...)
		logging.Warn("Outbox full, evicted oldest message",
			map[string]interface{}{"evicted_id": evicted.ID, "max_size": MaxQueueSize})
	}

	o.pending = append(o.pending, msg)
	o.persist(pendingKey, o.pending)

	logging.Debug("Enqueued message", map[string]interface{}{"id": msg.ID, "size": len(o.pending)})

	return msg
}

// List returns the pending queue in FIFO order.
func (o *Outbox) List() []models.QueuedMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return copyMessages(o.pending)
}

// Oldest returns the head of the queue without removing it.
func (o *Outbox) Oldest() (models.QueuedMessage, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.pending) == 0 {
		return models.QueuedMessage{}, false
	}
	return o.pending[0], true
}

// Remove deletes a message from the pending queue. Removing a non-existent
// id is a no-op, which makes delivery acknowledgment idempotent.
func (o *Outbox) Remove(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, msg := range o.pending {
		if msg.ID == id {
			o.pending = append(o.pending[:i:i], o.pending[i+1:]...)
			o.persist(pendingKey, o.pending)
			logging.Debug("Removed message", map[string]interface{}{"id": id, "size": len(o.pending)})
			return
		}
	}
}

// IncrementRetry records a transient delivery failure for id.
// Returns false if the id is absent, or if the message has now reached the
// retry ceiling and moved to the failed set ("give up"). Returns true when
// the message should be retried.
func (o *Outbox) IncrementRetry(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i := range o.pending {
		if o.pending[i].ID != id {
			continue
		}

		o.pending[i].RetryCount++

		if o.pending[i].RetryCount >= MaxRetries {
			failed := o.pending[i]
			o.pending = append(o.pending[:i:i], o.pending[i+1:]...)
			o.failed = append(o.failed, failed)
			o.persist(pendingKey, o.pending)
			o.persist(failedKey, o.failed)
			logging.ErrorWithCode("Message exhausted retries", string(errors.ErrRetryExhausted), nil,
				map[string]interface{}{"id": id, "retries": failed.RetryCount})
			return false
		}

		o.persist(pendingKey, o.pending)
		logging.Warn("Message delivery failed, will retry",
			map[string]interface{}{"id": id, "retry": o.pending[i].RetryCount, "max": MaxRetries})
		return true
	}

	return false
}

// FailedMessages returns messages at or past the retry ceiling, for the
// "failed to send" diagnostics surface.
func (o *Outbox) FailedMessages() []models.QueuedMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return copyMessages(o.failed)
}

// RetryFailed moves all failed messages back to the pending queue with reset
// retry counts. Returns the number of messages requeued. Entries that no
// longer fit under MaxQueueSize are dropped oldest-first, same as Enqueue.
func (o *Outbox) RetryFailed() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.failed) == 0 {
		return 0
	}

	count := 0
	for _, msg := range o.failed {
		msg.RetryCount = 0
		if len(o.pending) >= MaxQueueSize {
			o.pending = append(o.pending[:0:0], o.pending[1:]...)
		}
		o.pending = append(o.pending, msg)
		count++
	}
	o.failed = nil

	o.persist(pendingKey, o.pending)
	o.persist(failedKey, o.failed)

	logging.Info("Requeued failed messages", map[string]interface{}{"count": count})

	return count
}

// Clear drops all pending and failed state. Explicit user reset only.
func (o *Outbox) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.pending = nil
	o.failed = nil
	o.persist(pendingKey, o.pending)
	o.persist(failedKey, o.failed)

	logging.Info("Outbox cleared", nil)
}

// Size returns the number of pending messages.
func (o *Outbox) Size() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// FailedCount returns the number of permanently failed messages.
func (o *Outbox) FailedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.failed)
}

func copyMessages(msgs []models.QueuedMessage) []models.QueuedMessage {
	out := make([]models.QueuedMessage, len(msgs))
	copy(out, msgs)
	return out
}
