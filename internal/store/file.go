package store

import (
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/drivebox/internal/tokenfile"
)

// hintMetaKey is the tokenfile metadata key holding the provider hint.
const hintMetaKey = "provider_hint"

// FileStore keeps both values in a single session file: the credential as a
// bearer oauth2.Token and the hint as metadata.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewFileStore returns a FileStore backed by the session file at path.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &FileStore{path: path, logger: logger}
}

// Path returns the session file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get reads key from the session file.
func (s *FileStore) Get(key Key) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tf, err := tokenfile.Load(s.path)
	if err != nil {
		return "", fmt.Errorf("store: %w", err)
	}

	if tf == nil {
		return "", nil
	}

	switch key {
	case KeyCredential:
		if tf.Token == nil {
			return "", nil
		}

		return tf.Token.AccessToken, nil
	default:
		return tf.Meta[hintMetaKey], nil
	}
}

// Set writes key to the session file. An empty value clears it.
func (s *FileStore) Set(key Key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := tokenfile.Update(s.path, func(tf *tokenfile.File) {
		apply(tf, key, value)
	})
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	s.logger.Debug("session file updated",
		slog.String("path", s.path),
		slog.String("key", string(key)),
		slog.Bool("cleared", value == ""),
	)

	return nil
}

// Clear removes key. The file itself is removed once both values are gone.
func (s *FileStore) Clear(key Key) error {
	return s.Set(key, "")
}

func apply(tf *tokenfile.File, key Key, value string) {
	switch key {
	case KeyCredential:
		if value == "" {
			tf.Token = nil
			return
		}

		tf.Token = &oauth2.Token{AccessToken: value, TokenType: "Bearer"}
	default:
		if value == "" {
			delete(tf.Meta, hintMetaKey)
			return
		}

		tf.Meta[hintMetaKey] = value
	}
}
