package store

import (
	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps values in process memory only. Used for --ephemeral
// sessions and tests; nothing survives a restart.
type MemoryStore struct {
	c *gocache.Cache
}

// NewMemoryStore returns an empty MemoryStore. Entries never expire.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: gocache.New(gocache.NoExpiration, 0)}
}

// Get returns the value for key or "".
func (s *MemoryStore) Get(key Key) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}

	v, ok := s.c.Get(string(key))
	if !ok {
		return "", nil
	}

	str, _ := v.(string)

	return str, nil
}

// Set stores value under key. An empty value clears it.
func (s *MemoryStore) Set(key Key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	if value == "" {
		s.c.Delete(string(key))
		return nil
	}

	s.c.Set(string(key), value, gocache.NoExpiration)

	return nil
}

// Clear removes key.
func (s *MemoryStore) Clear(key Key) error {
	return s.Set(key, "")
}
