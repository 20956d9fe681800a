// Package registry mirrors the backend's roster of connected providers.
// The backend is authoritative: the roster is only ever replaced wholesale
// by a fetch, never edited locally.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/tonimelisma/drivebox/internal/api"
	"github.com/tonimelisma/drivebox/internal/provider"
)

// Sentinel errors.
var (
	ErrRosterFetch = errors.New("registry: roster fetch failed")
	ErrDisconnect  = errors.New("registry: disconnect failed")
)

// Facade is the subset of the backend client the registry uses.
type Facade interface {
	ConnectedProviders(ctx context.Context) ([]api.ConnectedProvider, error)
	DisconnectProvider(ctx context.Context, p provider.ID) (string, error)
}

// Credential reports whether the session currently holds a credential.
type Credential interface {
	HasCredential() bool
}

// Purger drops a provider's selection set.
type Purger interface {
	Purge(p provider.ID)
}

// Registry holds the current roster.
type Registry struct {
	facade Facade
	cred   Credential
	purger Purger
	logger *slog.Logger

	mu     sync.RWMutex
	roster []api.ConnectedProvider
}

// New creates an empty Registry.
func New(facade Facade, cred Credential, purger Purger, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		facade: facade,
		cred:   cred,
		purger: purger,
		logger: logger,
	}
}

// Refresh fetches the roster and replaces the held one. On failure the held
// roster is left as it was. Concurrent refreshes are not coalesced: whichever
// response arrives last is kept.
func (r *Registry) Refresh(ctx context.Context) error {
	roster, err := r.facade.ConnectedProviders(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRosterFetch, err)
	}

	r.mu.Lock()
	r.roster = roster
	r.mu.Unlock()

	r.logger.Debug("roster refreshed", slog.Int("providers", len(roster)))

	return nil
}

// Disconnect revokes p, refreshes the roster and purges p's selection set.
// A failed revoke returns ErrDisconnect and changes nothing. Once the revoke
// succeeds p's set is purged even if the refresh fails; that refresh error
// is returned wrapping ErrRosterFetch.
func (r *Registry) Disconnect(ctx context.Context, p provider.ID) (string, error) {
	msg, err := r.facade.DisconnectProvider(ctx, p)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrDisconnect, p, err)
	}

	r.logger.Info("provider disconnected", slog.String("provider", p.String()))

	refreshErr := r.Refresh(ctx)
	r.purger.Purge(p)

	if refreshErr != nil {
		return msg, refreshErr
	}

	return msg, nil
}

// Roster returns a copy of the held roster.
func (r *Registry) Roster() []api.ConnectedProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.roster)
}

// Len returns the roster size.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.roster)
}

// Connected reports whether p is on the roster.
func (r *Registry) Connected(p provider.ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.ContainsFunc(r.roster, func(c api.ConnectedProvider) bool {
		return c.Provider == p
	})
}

// Providers returns the distinct provider identities on the roster, in
// roster order.
func (r *Registry) Providers() []provider.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]provider.ID, 0, len(r.roster))
	for _, c := range r.roster {
		if !slices.Contains(out, c.Provider) {
			out = append(out, c.Provider)
		}
	}

	return out
}

// Clear empties the roster.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.roster = nil
	r.mu.Unlock()
}

// Authenticated reports whether a credential is held and at least one
// provider is connected. A credential with an empty roster is not
// authenticated.
func (r *Registry) Authenticated() bool {
	if !r.cred.HasCredential() {
		return false
	}

	return r.Len() > 0
}
