// Package session owns the client's single opaque credential and the state
// machine that establishes it from an OAuth callback.
package session

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/tonimelisma/drivebox/internal/provider"
	"github.com/tonimelisma/drivebox/internal/store"
)

// Session holds the credential in memory and writes every change through to
// the Store. It satisfies api.TokenSource.
type Session struct {
	mu         sync.RWMutex
	st         store.Store
	credential string
	logger     *slog.Logger
}

// New returns an empty Session backed by st. Call Load to pick up a
// previously persisted credential.
func New(st store.Store, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{st: st, logger: logger}
}

// Load reads the persisted credential into memory and reports whether one
// was found.
func (s *Session) Load() (bool, error) {
	cred, err := s.st.Get(store.KeyCredential)
	if err != nil {
		return false, fmt.Errorf("session: loading credential: %w", err)
	}

	s.mu.Lock()
	s.credential = cred
	s.mu.Unlock()

	return cred != "", nil
}

// Token returns the in-memory credential, or "" when signed out.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.credential, nil
}

// HasCredential reports whether a credential is held in memory.
func (s *Session) HasCredential() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.credential != ""
}

// SetCredential persists cred and then holds it in memory.
func (s *Session) SetCredential(cred string) error {
	if err := s.st.Set(store.KeyCredential, cred); err != nil {
		return fmt.Errorf("session: saving credential: %w", err)
	}

	s.mu.Lock()
	s.credential = cred
	s.mu.Unlock()

	return nil
}

// ClearCredential drops the credential from memory and the Store. Memory is
// cleared even when the Store write fails.
func (s *Session) ClearCredential() error {
	s.mu.Lock()
	had := s.credential != ""
	s.credential = ""
	s.mu.Unlock()

	if err := s.st.Clear(store.KeyCredential); err != nil {
		return fmt.Errorf("session: clearing credential: %w", err)
	}

	if had {
		s.logger.Debug("credential cleared")
	}

	return nil
}

// Hint returns the raw persisted provider hint. It is not validated here;
// the callback normalizer decides what to make of it.
func (s *Session) Hint() (string, error) {
	hint, err := s.st.Get(store.KeyProviderHint)
	if err != nil {
		return "", fmt.Errorf("session: loading provider hint: %w", err)
	}

	return hint, nil
}

// SetHint records the provider of the authorization in flight.
func (s *Session) SetHint(p provider.ID) error {
	if err := s.st.Set(store.KeyProviderHint, p.String()); err != nil {
		return fmt.Errorf("session: saving provider hint: %w", err)
	}

	return nil
}
