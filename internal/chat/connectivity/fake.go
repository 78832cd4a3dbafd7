package connectivity

import "sync"

// FakeSource is a deterministic Source for tests. Transitions happen only
// when SetOnline is called, so tests control the exact event sequence.
type FakeSource struct {
	mu          sync.Mutex
	online      bool
	subscribers map[int]func(bool)
	nextID      int
}

// NewFakeSource creates a FakeSource with the given initial state.
func NewFakeSource(online bool) *FakeSource {
	return &FakeSource{
		online:      online,
		subscribers: make(map[int]func(bool)),
	}
}

// SetOnline changes the state and notifies subscribers on a transition.
func (f *FakeSource) SetOnline(online bool) {
	f.mu.Lock()
	if f.online == online {
		f.mu.Unlock()
		return
	}
	f.online = online
	fns := make([]func(bool), 0, len(f.subscribers))
	for _, fn := range f.subscribers {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

// Online reports the current state.
func (f *FakeSource) Online() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

// Subscribe registers a transition callback.
func (f *FakeSource) Subscribe(fn func(online bool)) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.subscribers[id] = fn
	return id
}

// Unsubscribe removes a callback.
func (f *FakeSource) Unsubscribe(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subscribers, id)
}
