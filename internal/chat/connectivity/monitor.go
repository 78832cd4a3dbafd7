// Package connectivity observes network reachability and notifies subscribers
// of transitions. Delivery never starts while the monitor reports offline.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/omnii/assistant-core/internal/logging"
)

// Source is the abstract connectivity source consumed by the sync machinery.
// Event delivery is best-effort: rapid flapping between polls may coalesce,
// but a transition that persists across a poll is always observed.
type Source interface {
	// Online reports the current reachability.
	Online() bool

	// Subscribe registers a callback invoked on every reachable/unreachable
	// transition. Returns a subscription id for Unsubscribe.
	Subscribe(fn func(online bool)) int

	// Unsubscribe removes a previously registered callback.
	Unsubscribe(id int)
}

// Prober performs a single reachability check.
type Prober interface {
	Probe(ctx context.Context) bool
}

// Monitor polls a Prober on a fixed interval and emits transitions.
// The initial state is offline until the first successful probe.
type Monitor struct {
	prober   Prober
	interval time.Duration

	mu          sync.Mutex
	online      bool
	subscribers map[int]func(bool)
	nextID      int
	running     bool
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// NewMonitor creates a Monitor around the given prober.
func NewMonitor(prober Prober, interval time.Duration) *Monitor {
	return &Monitor{
		prober:      prober,
		interval:    interval,
		subscribers: make(map[int]func(bool)),
		stopCh:      make(chan struct{}),
	}
}

// Start launches the polling loop. Calling Start on a running monitor is a
// no-op. The loop stops when ctx is cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.pollLoop(ctx)
}

// Stop terminates the polling loop and waits for it to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()
}

func (m *Monitor) pollLoop(ctx context.Context) {
	defer m.wg.Done()

	// Probe once immediately so startup state doesn't wait a full interval.
	m.checkOnce(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.checkOnce(ctx)
		}
	}
}

func (m *Monitor) checkOnce(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	online := m.prober.Probe(probeCtx)
	cancel()

	m.setOnline(online)
}

// setOnline records the state and notifies subscribers on a transition.
func (m *Monitor) setOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	fns := make([]func(bool), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	logging.Info("Connectivity changed", map[string]interface{}{"online": online})

	// Callbacks run outside the lock so they may call back into the monitor.
	for _, fn := range fns {
		fn(online)
	}
}

// Online reports the last observed reachability.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a transition callback.
func (m *Monitor) Subscribe(fn func(online bool)) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subscribers[id] = fn
	return id
}

// Unsubscribe removes a callback. Unknown ids are ignored.
func (m *Monitor) Unsubscribe(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, id)
}
