// Package syncstate owns the five-state delivery status model shown to the UI.
// Exactly one status is current at any time and only the machine's transition
// methods may change it; observers read and subscribe only.
package syncstate

import (
	"sync"
	"time"

	"github.com/omnii/assistant-core/internal/logging"
)

// Status is the UI-visible sync status.
type Status string

const (
	StatusOffline    Status = "offline"
	StatusConnecting Status = "connecting"
	StatusSyncing    Status = "syncing"
	StatusSynced     Status = "synced"
	StatusError      Status = "error"
)

// Machine is the long-lived sync status state machine. It is driven by
// connectivity transitions and delivery outcomes; there is no terminal state.
type Machine struct {
	mu         sync.Mutex
	status     Status
	lastSynced time.Time
	observers  map[int]func(Status)
	nextID     int

	// onTrigger wakes the delivery worker when a manual sync is requested or
	// a message is enqueued while online.
	onTrigger func()
}

// NewMachine creates a Machine in the initial offline state.
func NewMachine() *Machine {
	return &Machine{
		status:    StatusOffline,
		observers: make(map[int]func(Status)),
	}
}

// OnTrigger registers the delivery worker wakeup hook.
func (m *Machine) OnTrigger(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTrigger = fn
}

// Status returns the current status.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// IsConnected reports whether the machine believes the network is reachable.
func (m *Machine) IsConnected() bool {
	return m.Status() != StatusOffline
}

// IsSyncing reports whether a drain is in progress.
func (m *Machine) IsSyncing() bool {
	s := m.Status()
	return s == StatusSyncing || s == StatusConnecting
}

// LastSynced returns when the machine last reached synced, zero if never.
func (m *Machine) LastSynced() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSynced
}

// Observe registers a status-change callback and returns an id for Unobserve.
func (m *Machine) Observe(fn func(Status)) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.observers[id] = fn
	return id
}

// Unobserve removes a status-change callback.
func (m *Machine) Unobserve(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.observers, id)
}

// HandleConnectivity applies a connectivity transition. Loss of connectivity
// wins from any state; regaining it moves offline to connecting.
func (m *Machine) HandleConnectivity(online bool) {
	if !online {
		m.transition(func(s Status) (Status, bool) {
			return StatusOffline, s != StatusOffline
		})
		return
	}

	m.transition(func(s Status) (Status, bool) {
		return StatusConnecting, s == StatusOffline
	})
	m.wake()
}

// DeliveryStarted records the first delivery attempt of a drain.
func (m *Machine) DeliveryStarted() {
	m.transition(func(s Status) (Status, bool) {
		return StatusSyncing, s == StatusConnecting
	})
}

// Drained records that the queue emptied with no failed messages.
func (m *Machine) Drained() {
	m.transition(func(s Status) (Status, bool) {
		return StatusSynced, s == StatusSyncing || s == StatusConnecting
	})
}

// DeliveryError records a retry-ceiling hit, a non-recoverable transport
// condition, or a durability failure. Connectivity loss still wins: an
// offline machine stays offline.
func (m *Machine) DeliveryError() {
	m.transition(func(s Status) (Status, bool) {
		return StatusError, s != StatusOffline && s != StatusError
	})
}

// TriggerSync requests an immediate drain. It is a no-op unless connected and
// not already syncing; invoking it while syncing has no additional effect.
// Returns true when a drain was requested.
func (m *Machine) TriggerSync() bool {
	changed := m.transition(func(s Status) (Status, bool) {
		return StatusConnecting, s == StatusSynced || s == StatusError
	})
	if !changed {
		return false
	}
	m.wake()
	return true
}

// MessageEnqueued nudges the machine when a new message arrives while online.
// Equivalent to TriggerSync; offline enqueues wait for connectivity.
func (m *Machine) MessageEnqueued() {
	m.TriggerSync()
}

// transition applies fn to the current status under the lock and notifies
// observers outside it when the status changed.
func (m *Machine) transition(fn func(Status) (Status, bool)) bool {
	m.mu.Lock()
	next, ok := fn(m.status)
	if !ok || next == m.status {
		m.mu.Unlock()
		return false
	}
	prev := m.status
	m.status = next
	if next == StatusSynced {
		m.lastSynced = time.Now()
	}
	fns := make([]func(Status), 0, len(m.observers))
	for _, f := range m.observers {
		fns = append(fns, f)
	}
	m.mu.Unlock()

	logging.Debug("Sync status changed",
		map[string]interface{}{"from": string(prev), "to": string(next)})

	for _, f := range fns {
		f(next)
	}
	return true
}

func (m *Machine) wake() {
	m.mu.Lock()
	fn := m.onTrigger
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}
