// Package outbox provides unit tests for the durable outbound queue.
package outbox

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/omnii/assistant-core/internal/store"
)

func testClock() func() time.Time {
	base := time.Unix(1700000000, 0)
	return func() time.Time { return base }
}

func payload(s string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"text":%q}`, s))
}

// TestEnqueueList tests basic enqueue and FIFO ordering.
func TestEnqueueList(t *testing.T) {
	o := New(store.NewMemoryStore(), testClock())

	first := o.Enqueue(payload("one"))
	second := o.Enqueue(payload("two"))

	msgs := o.List()
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ID != first.ID {
		t.Errorf("Expected first message %s at head, got %s", first.ID, msgs[0].ID)
	}
	if msgs[1].ID != second.ID {
		t.Errorf("Expected second message %s at tail, got %s", second.ID, msgs[1].ID)
	}
	if msgs[0].RetryCount != 0 {
		t.Errorf("Expected RetryCount 0, got %d", msgs[0].RetryCount)
	}
}

// TestEvictionOldestFirst tests the bounded-queue eviction property:
// after each enqueue the size is min(calls, MaxQueueSize) and survivors are
// the most recent entries in original relative order.
func TestEvictionOldestFirst(t *testing.T) {
	o := New(store.NewMemoryStore(), testClock())

	total := MaxQueueSize + 25
	ids := make([]string, 0, total)

	for i := 0; i < total; i++ {
		msg := o.Enqueue(payload(fmt.Sprintf("msg-%d", i)))
		ids = append(ids, msg.ID)

		want := i + 1
		if want > MaxQueueSize {
			want = MaxQueueSize
		}
		if o.Size() != want {
			t.Fatalf("After %d enqueues expected size %d, got %d", i+1, want, o.Size())
		}
	}

	msgs := o.List()
	if len(msgs) != MaxQueueSize {
		t.Fatalf("Expected %d messages, got %d", MaxQueueSize, len(msgs))
	}

	// Survivors must be the most recent MaxQueueSize entries in order.
	expected := ids[total-MaxQueueSize:]
	for i, msg := range msgs {
		if msg.ID != expected[i] {
			t.Fatalf("Position %d: expected %s, got %s", i, expected[i], msg.ID)
		}
	}
}

// TestRemoveIdempotent tests that removing a missing id is a no-op.
func TestRemoveIdempotent(t *testing.T) {
	o := New(store.NewMemoryStore(), testClock())

	msg := o.Enqueue(payload("hello"))
	o.Remove(msg.ID)
	if o.Size() != 0 {
		t.Fatalf("Expected empty queue, got %d", o.Size())
	}

	// Second removal and unknown id must not panic or mutate anything.
	o.Remove(msg.ID)
	o.Remove("no-such-id")
	if o.Size() != 0 {
		t.Errorf("Expected empty queue, got %d", o.Size())
	}
}

// TestIncrementRetryMissing tests that an absent id returns false.
func TestIncrementRetryMissing(t *testing.T) {
	o := New(store.NewMemoryStore(), testClock())
	o.Enqueue(payload("hello"))

	if o.IncrementRetry("no-such-id") {
		t.Error("Expected false for missing id")
	}
	if o.Size() != 1 {
		t.Errorf("Expected queue untouched, got size %d", o.Size())
	}
	if o.FailedCount() != 0 {
		t.Errorf("Expected no failed messages, got %d", o.FailedCount())
	}
}

// TestRetryCeiling tests that a message incremented MaxRetries times moves
// to the failed set and disappears from the pending queue.
func TestRetryCeiling(t *testing.T) {
	o := New(store.NewMemoryStore(), testClock())
	msg := o.Enqueue(payload("doomed"))

	for i := 1; i < MaxRetries; i++ {
		if !o.IncrementRetry(msg.ID) {
			t.Fatalf("Increment %d: expected retry-again, got give-up", i)
		}
	}

	// Final increment hits the ceiling.
	if o.IncrementRetry(msg.ID) {
		t.Fatal("Expected give-up at the retry ceiling")
	}

	for _, m := range o.List() {
		if m.ID == msg.ID {
			t.Error("Failed message still present in pending queue")
		}
	}

	failed := o.FailedMessages()
	if len(failed) != 1 {
		t.Fatalf("Expected 1 failed message, got %d", len(failed))
	}
	if failed[0].ID != msg.ID {
		t.Errorf("Expected failed id %s, got %s", msg.ID, failed[0].ID)
	}
	if failed[0].RetryCount != MaxRetries {
		t.Errorf("Expected RetryCount %d, got %d", MaxRetries, failed[0].RetryCount)
	}
}

// TestDurability tests that queue state survives a reopen from the same store.
func TestDurability(t *testing.T) {
	st := store.NewMemoryStore()

	o := New(st, testClock())
	first := o.Enqueue(payload("persisted"))
	o.Enqueue(payload("also persisted"))

	// Simulate process restart: a fresh Outbox over the same store.
	reopened := New(st, testClock())
	msgs := reopened.List()
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages after reopen, got %d", len(msgs))
	}
	if msgs[0].ID != first.ID {
		t.Errorf("Expected FIFO order preserved, head is %s", msgs[0].ID)
	}
}

// TestCorruptedStateReadsEmpty tests that corrupted store content degrades
// to an empty queue instead of failing.
func TestCorruptedStateReadsEmpty(t *testing.T) {
	st := store.NewMemoryStore()
	if err := st.Set(pendingKey, []byte("{not json")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	o := New(st, testClock())
	if got := o.List(); len(got) != 0 {
		t.Fatalf("Expected empty queue from corrupted state, got %d", len(got))
	}

	// Queue stays usable afterwards.
	o.Enqueue(payload("fresh start"))
	if o.Size() != 1 {
		t.Errorf("Expected size 1, got %d", o.Size())
	}
}

// TestOldest tests head access without removal.
func TestOldest(t *testing.T) {
	o := New(store.NewMemoryStore(), testClock())

	if _, ok := o.Oldest(); ok {
		t.Fatal("Expected no head on empty queue")
	}

	first := o.Enqueue(payload("head"))
	o.Enqueue(payload("tail"))

	head, ok := o.Oldest()
	if !ok {
		t.Fatal("Expected a head message")
	}
	if head.ID != first.ID {
		t.Errorf("Expected head %s, got %s", first.ID, head.ID)
	}
	if o.Size() != 2 {
		t.Errorf("Oldest must not remove, size is %d", o.Size())
	}
}

// TestRetryFailed tests manual requeue of permanently failed messages.
func TestRetryFailed(t *testing.T) {
	o := New(store.NewMemoryStore(), testClock())
	msg := o.Enqueue(payload("flaky"))

	for i := 0; i < MaxRetries; i++ {
		o.IncrementRetry(msg.ID)
	}
	if o.FailedCount() != 1 {
		t.Fatalf("Expected 1 failed message, got %d", o.FailedCount())
	}

	if n := o.RetryFailed(); n != 1 {
		t.Fatalf("Expected 1 requeued, got %d", n)
	}
	if o.FailedCount() != 0 {
		t.Errorf("Expected empty failed set, got %d", o.FailedCount())
	}

	msgs := o.List()
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 pending, got %d", len(msgs))
	}
	if msgs[0].RetryCount != 0 {
		t.Errorf("Expected reset retry count, got %d", msgs[0].RetryCount)
	}
}

// TestClear tests the explicit user reset.
func TestClear(t *testing.T) {
	st := store.NewMemoryStore()
	o := New(st, testClock())
	msg := o.Enqueue(payload("gone"))
	for i := 0; i < MaxRetries; i++ {
		o.IncrementRetry(msg.ID)
	}
	o.Enqueue(payload("also gone"))

	o.Clear()
	if o.Size() != 0 || o.FailedCount() != 0 {
		t.Errorf("Expected empty state, got pending=%d failed=%d", o.Size(), o.FailedCount())
	}

	// Clear persists: a reopen sees the empty state.
	reopened := New(st, testClock())
	if reopened.Size() != 0 || reopened.FailedCount() != 0 {
		t.Errorf("Expected empty state after reopen, got pending=%d failed=%d",
			reopened.Size(), reopened.FailedCount())
	}
}

// TestWriteErrorCallback tests that persist failures are reported.
func TestWriteErrorCallback(t *testing.T) {
	st := store.NewMemoryStore()
	o := New(st, testClock())

	var reported error
	o.OnWriteError(func(err error) { reported = err })

	st.SetUnavailable(true)
	o.Enqueue(payload("unlucky"))

	if reported == nil {
		t.Error("Expected write error to be reported")
	}
}
