package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Open returns the Store for backend rooted at path, plus a closer the caller
// must invoke on shutdown. path is ignored by the memory backend.
func Open(ctx context.Context, backend Backend, path string, logger *slog.Logger) (Store, io.Closer, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(path, logger), nopCloser{}, nil
	case BackendSQLite:
		s, err := OpenSQLite(ctx, path, logger)
		if err != nil {
			return nil, nil, err
		}

		return s, s, nil
	case BackendMemory:
		return NewMemoryStore(), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("store: unknown backend %q", backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
