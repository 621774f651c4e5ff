package session

import (
	"sync"

	"github.com/jrsteele09/go-auth-session/users"
)

// Status is the authentication lifecycle stage observed by the rest of the application.
type Status string

const (
	StatusIdle           Status = "idle"
	StatusAuthenticating Status = "authenticating"
	StatusAuthenticated  Status = "authenticated"
	StatusFailed         Status = "failed"
)

// State is an immutable snapshot of the authentication state.
//
// Invariants: Status is authenticated iff User is set; a failed State never carries
// a User; Error is only set on failed States.
type State struct {
	Status    Status         `json:"status"`
	User      *users.Profile `json:"user"`
	Error     string         `json:"error,omitempty"`
	ErrorKind string         `json:"errorKind,omitempty"` // taxonomy name of the last failure
	Attempt   uint64         `json:"attempt"`             // sequence number of the attempt that produced the snapshot
}

func (s State) clone() State {
	s.User = s.User.Clone()
	return s
}

// Listener receives every published State, in publication order.
type Listener func(State)

// Store holds the single authentication state of the process. Transitions are
// published synchronously: when a transition method returns, every listener
// registered before the call has observed the new State.
//
// Listeners run outside the state lock and may call Snapshot, but must not
// publish transitions themselves.
type Store struct {
	state     State
	listeners map[uint64]Listener
	nextID    uint64
	lock      sync.RWMutex
	publish   sync.Mutex
}

// New returns a Store in the idle state.
func New() *Store {
	return &Store{
		state:     State{Status: StatusIdle},
		listeners: make(map[uint64]Listener),
	}
}

// Snapshot returns a copy of the current State.
func (s *Store) Snapshot() State {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state.clone()
}

// Subscribe registers a listener and returns the function that removes it.
func (s *Store) Subscribe(listener Listener) (unsubscribe func()) {
	s.lock.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.lock.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lock.Lock()
			delete(s.listeners, id)
			s.lock.Unlock()
		})
	}
}

// Begin publishes the start of an attempt. The error of any earlier failure is cleared.
func (s *Store) Begin(attempt uint64) {
	s.set(State{Status: StatusAuthenticating, Attempt: attempt})
}

// Succeed publishes an authenticated session for user.
func (s *Store) Succeed(attempt uint64, user users.Profile) {
	s.set(State{Status: StatusAuthenticated, User: &user, Attempt: attempt})
}

// Fail publishes a failed attempt with a human readable reason.
func (s *Store) Fail(attempt uint64, kind, reason string) {
	s.set(State{Status: StatusFailed, Error: reason, ErrorKind: kind, Attempt: attempt})
}

// Reset returns to idle, dropping any user and error.
func (s *Store) Reset(attempt uint64) {
	s.set(State{Status: StatusIdle, Attempt: attempt})
}

func (s *Store) set(next State) {
	s.publish.Lock()
	defer s.publish.Unlock()

	s.lock.Lock()
	s.state = next.clone()
	listeners := make([]Listener, 0, len(s.listeners))
	for id := uint64(0); id < s.nextID; id++ {
		if l, ok := s.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	s.lock.Unlock()

	for _, l := range listeners {
		l(next.clone())
	}
}
