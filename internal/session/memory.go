package session

import (
	"fmt"
	"sync"
)

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session

	locksMu sync.Mutex
	locks   map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewMemoryStore constructs the in-memory Store.
func NewMemoryStore() Store {
	return &memoryStore{
		sessions: make(map[int64]*Session),
		locks:    make(map[int64]*userLock),
	}
}

// Get returns the session for a user if it exists, otherwise a default idle session.
func (m *memoryStore) Get(userID int64) Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if sess, ok := m.sessions[userID]; ok {
		return *sess
	}
	return Session{State: StateIdle}
}

// SetState updates the state for a user, creating a new session if necessary.
func (m *memoryStore) SetState(userID int64, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.sessionLocked(userID)
	sess.State = st
	if st != StateWritingMessage {
		sess.Category = ""
	}
}

// SetCategory attaches the chosen category and advances to StateWritingMessage.
func (m *memoryStore) SetCategory(userID int64, c Category) error {
	if _, ok := ParseCategory(string(c)); !ok {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidTransition, c)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[userID]
	if !ok || sess.State != StateChoosingCategory {
		current := StateIdle
		if ok {
			current = sess.State
		}
		return fmt.Errorf("%w: set category in state %s", ErrInvalidTransition, current)
	}
	sess.State = StateWritingMessage
	sess.Category = c
	return nil
}

// Clear resets the session to idle. The entry is kept so the user stays known.
func (m *memoryStore) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.sessionLocked(userID)
	sess.State = StateIdle
	sess.Category = ""
}

// Lock acquires the per-user event lock. Lock entries are dropped once unused.
func (m *memoryStore) Lock(userID int64) func() {
	m.locksMu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &userLock{}
		m.locks[userID] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			m.locksMu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(m.locks, userID)
			}
			m.locksMu.Unlock()
		})
	}
}

func (m *memoryStore) sessionLocked(userID int64) *Session {
	sess, ok := m.sessions[userID]
	if !ok {
		sess = &Session{State: StateIdle}
		m.sessions[userID] = sess
	}
	return sess
}
