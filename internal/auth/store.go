package auth

import (
	"sync/atomic"
)

// Store holds the active Registry and allows it to be replaced while
// requests are in flight, so tokens can be rotated without a restart.
type Store struct {
	current atomic.Pointer[Registry]
}

// NewStore returns a Store serving reg.
func NewStore(reg *Registry) *Store {
	s := &Store{}
	s.current.Store(reg)
	return s
}

// Registry returns the active registry.
func (s *Store) Registry() *Registry {
	return s.current.Load()
}

// Swap installs reg and returns the previous registry. A nil reg is ignored.
func (s *Store) Swap(reg *Registry) *Registry {
	if reg == nil {
		return s.current.Load()
	}
	return s.current.Swap(reg)
}

// Authenticate delegates to the active registry.
func (s *Store) Authenticate(token string) (string, error) {
	reg := s.current.Load()
	if reg == nil {
		return "", ErrInvalidToken
	}
	return reg.Authenticate(token)
}
