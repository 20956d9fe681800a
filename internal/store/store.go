// Package store is the persistence port for client-side session state. It
// holds exactly two values: the opaque bearer credential and the provider
// hint of the authorization in flight. Neither value expires client-side.
package store

import (
	"errors"
	"fmt"
)

// ErrUnknownKey is returned for keys outside the two supported ones.
var ErrUnknownKey = errors.New("store: unknown key")

// Key names one persisted value.
type Key string

// The only keys a Store accepts.
const (
	KeyCredential   Key = "credential"
	KeyProviderHint Key = "provider_hint"
)

// Valid reports whether k is one of the supported keys.
func (k Key) Valid() bool {
	return k == KeyCredential || k == KeyProviderHint
}

// Store persists the session values. Get returns "" for an absent value.
// Clear on an absent value is a no-op. Implementations are safe for
// concurrent use and every write is durable when the call returns.
type Store interface {
	Get(key Key) (string, error)
	Set(key Key, value string) error
	Clear(key Key) error
}

// Backend names a Store implementation selectable from config.
type Backend string

// Supported backends.
const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

func checkKey(k Key) error {
	if !k.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKey, string(k))
	}

	return nil
}
