package service

import "tabtrail/internal/modules/activity/domain"

// StateStore owns the canonical state and the active-session cache entry.
type StateStore struct {
	state *domain.State
	cache domain.ActiveSessionCache
}

func NewStateStore(st *domain.State) *StateStore {
	if st == nil {
		st = domain.NewState()
	}
	return &StateStore{state: st}
}

func (s *StateStore) State() *domain.State {
	return s.state
}

// Replace swaps in a new state and drops the cached active session.
func (s *StateStore) Replace(st *domain.State) {
	if st == nil {
		st = domain.NewState()
	}
	s.state = st
	s.cache.Invalidate()
}

// Session returns a session by id, or nil.
func (s *StateStore) Session(id string) *domain.Session {
	if id == "" {
		return nil
	}
	return s.state.Sessions[id]
}

// ActiveSession returns the open active session without starting one.
func (s *StateStore) ActiveSession() *domain.Session {
	if cached, ok := s.cache.Lookup(s.state); ok {
		return cached
	}
	active := s.state.ActiveSession()
	if active != nil {
		s.cache.Store(s.state, active)
	}
	return active
}

func (s *StateStore) InvalidateActive() {
	s.cache.Invalidate()
}
