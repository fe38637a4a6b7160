package wallet

import (
	"sync"

	"github.com/mrz1836/siwf/internal/account"
)

// Handle is the connection record of the current wallet session.
type Handle struct {
	Kind      account.Kind `json:"kind"`
	Address   string       `json:"address"`
	Connected bool         `json:"connected"`
	KeyFile   string       `json:"key_file,omitempty"`

	// Generation increases on every connect, switch and disconnect. A login
	// started under one generation is stale once it changes.
	Generation uint64 `json:"generation"`
}

// Same reports whether two handles describe the same account and status.
func (h Handle) Same(o Handle) bool {
	return h.Kind == o.Kind &&
		h.Connected == o.Connected &&
		account.SameAddress(h.Address, o.Address, h.Kind)
}

// Listener is notified after the handle changes.
type Listener func(prev, next Handle)

// State owns the wallet connection record and notifies subscribers on
// change. It is safe for concurrent use.
type State struct {
	mu        sync.RWMutex
	handle    Handle
	listeners map[int]Listener
	nextID    int
}

// NewState creates a disconnected state.
func NewState() *State {
	return &State{listeners: make(map[int]Listener)}
}

// Restore seeds the state from a persisted handle without notifying.
func (s *State) Restore(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = h
}

// Current returns a copy of the connection record.
func (s *State) Current() Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle
}

// Generation returns the current generation counter.
func (s *State) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle.Generation
}

// Connect records a connected wallet. Connecting the same account again is
// a no-op; a different account counts as a switch.
func (s *State) Connect(kind account.Kind, address, keyFile string) Handle {
	next := Handle{
		Kind:      kind,
		Address:   address,
		Connected: true,
		KeyFile:   keyFile,
	}
	return s.set(next)
}

// Disconnect clears the connection record.
func (s *State) Disconnect() Handle {
	return s.set(Handle{})
}

// Subscribe registers l and returns a function that removes it.
func (s *State) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *State) set(next Handle) Handle {
	s.mu.Lock()
	prev := s.handle
	if prev.Same(next) && prev.KeyFile == next.KeyFile {
		s.mu.Unlock()
		return prev
	}

	next.Generation = prev.Generation + 1
	s.handle = next

	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	// Listeners run outside the lock so they may read the state.
	for _, l := range listeners {
		l(prev, next)
	}
	return next
}
