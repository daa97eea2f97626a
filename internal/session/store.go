// Package session holds the process-wide authentication state of the portal.
//
// All writes go through the Store's mutation methods. Writers that complete
// asynchronously (bootstrap, inbox polling) pass the generation they observed
// when they started; the Store drops the write when the session has moved on.
package session

import (
	"errors"
	"sort"
	"sync"

	"github.com/footballnetwork/portal/internal/domain"
)

// ErrInvalidStatus is returned by SetStatus for transitions that would break
// the status/profile invariant.
var ErrInvalidStatus = errors.New("invalid status transition")

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	Token              string            `json:"-"`
	Profile            *domain.Profile   `json:"profile"`
	Status             domain.AuthStatus `json:"status"`
	UnreadMessageCount int               `json:"unread_message_count"`
	// CachedProfile is the last-known-good profile from local storage.
	// It is only populated while Status is pending.
	CachedProfile *domain.Profile `json:"cached_profile,omitempty"`
	Generation    uint64          `json:"generation"`
}

// Authenticated reports whether the snapshot holds a live profile.
func (s Snapshot) Authenticated() bool {
	return s.Status == domain.StatusAuthenticated && s.Profile != nil
}

// Listener is called with the new snapshot after every applied mutation.
type Listener func(Snapshot)

// Store is the single-writer session container.
//
// writeMu serializes mutations together with their notifications, so
// listeners see snapshots in the order they were applied. Listeners must not
// mutate the Store.
type Store struct {
	writeMu sync.Mutex

	mu    sync.RWMutex
	state Snapshot

	listenerMu sync.Mutex
	listeners  map[int]Listener
	nextID     int
}

// New creates an empty session in the pending state.
func New() *Store {
	return &Store{
		state:     Snapshot{Status: domain.StatusPending},
		listeners: make(map[int]Listener),
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// Generation returns the current session generation.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Generation
}

// Begin starts a new credential generation for token. The profile is dropped
// and the status goes back to pending until SetUser or ClearUser resolves it.
func (s *Store) Begin(token string) uint64 {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.state = Snapshot{
		Token:      token,
		Status:     domain.StatusPending,
		Generation: s.state.Generation + 1,
	}
	gen := s.state.Generation
	snap := s.copyLocked()
	s.mu.Unlock()

	s.notify(snap)
	return gen
}

// SetUser stores the live profile and marks the session authenticated.
// It returns false when gen is stale or profile is nil.
func (s *Store) SetUser(gen uint64, profile *domain.Profile) bool {
	if profile == nil {
		return false
	}
	return s.apply(gen, func(st *Snapshot) {
		st.Profile = profile.Clone()
		st.Status = domain.StatusAuthenticated
		st.CachedProfile = nil
	})
}

// SetCachedProfile exposes a last-known-good profile for the pending window.
// It is ignored once the session has resolved.
func (s *Store) SetCachedProfile(gen uint64, profile *domain.Profile) bool {
	return s.apply(gen, func(st *Snapshot) {
		if st.Status != domain.StatusPending {
			return
		}
		st.CachedProfile = profile.Clone()
	})
}

// ClearUser wipes the session unconditionally and bumps the generation so that
// every in-flight write against the previous session is discarded.
func (s *Store) ClearUser() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.clear()
}

// ClearUserIf clears the session only if gen is still current.
func (s *Store) ClearUserIf(gen uint64) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.Generation() != gen {
		return false
	}
	s.clear()
	return true
}

func (s *Store) clear() {
	s.mu.Lock()
	s.state = Snapshot{
		Status:     domain.StatusUnauthenticated,
		Generation: s.state.Generation + 1,
	}
	snap := s.copyLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// SetUnreadCount updates the unread badge. Negative values clamp to zero.
func (s *Store) SetUnreadCount(gen uint64, n int) bool {
	if n < 0 {
		n = 0
	}
	return s.apply(gen, func(st *Snapshot) {
		if st.Status != domain.StatusAuthenticated {
			st.UnreadMessageCount = 0
			return
		}
		st.UnreadMessageCount = n
	})
}

// SetStatus sets the status directly. Authenticated requires a profile to be
// present; any other status drops the profile and the unread count.
func (s *Store) SetStatus(gen uint64, status domain.AuthStatus) (bool, error) {
	if !status.Valid() {
		return false, ErrInvalidStatus
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.state.Generation != gen {
		s.mu.Unlock()
		return false, nil
	}
	if status == domain.StatusAuthenticated {
		if s.state.Profile == nil {
			s.mu.Unlock()
			return false, ErrInvalidStatus
		}
	} else {
		s.state.Profile = nil
		s.state.UnreadMessageCount = 0
		if status == domain.StatusUnauthenticated {
			s.state.Token = ""
			s.state.CachedProfile = nil
		}
	}
	s.state.Status = status
	snap := s.copyLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true, nil
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.listenerMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenerMu.Lock()
			delete(s.listeners, id)
			s.listenerMu.Unlock()
		})
	}
}

func (s *Store) apply(gen uint64, mutate func(*Snapshot)) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.state.Generation != gen {
		s.mu.Unlock()
		return false
	}
	mutate(&s.state)
	snap := s.copyLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

func (s *Store) copyLocked() Snapshot {
	snap := s.state
	snap.Profile = s.state.Profile.Clone()
	snap.CachedProfile = s.state.CachedProfile.Clone()
	return snap
}

func (s *Store) notify(snap Snapshot) {
	s.listenerMu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.listenerMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
