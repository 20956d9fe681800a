package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/drivebox/internal/config"
	"github.com/tonimelisma/drivebox/internal/store"
)

const (
	testToken   = "tok"
	testArchive = "ZIPDATA"
)

// fakeBackend is an in-process DriveBox backend. The roster is only served
// to requests carrying testToken.
type fakeBackend struct {
	*httptest.Server

	mu        sync.Mutex
	connected []string
	bulkBody  []byte
	uploads   []string
	folders   []string
	deleted   []string
}

func newFakeBackend(t *testing.T, connected ...string) *fakeBackend {
	t.Helper()

	b := &fakeBackend{connected: connected}

	r := chi.NewRouter()

	r.Get("/api/auth/{provider}/authorize", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, map[string]string{
			"authorize_url": "https://accounts.example.com/authorize?provider=" + chi.URLParam(r, "provider"),
		})
	})

	r.Get("/api/auth/{provider}/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("code") == "" {
			http.Error(w, `{"message":"missing code"}`, http.StatusBadRequest)
			return
		}

		b.connect(chi.URLParam(r, "provider"))
		writeTestJSON(w, map[string]any{
			"token": testToken,
			"user":  map[string]string{"id": "u1", "email": "octo@example.com", "name": "Octo"},
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(requireTestToken)

		r.Get("/api/auth/", func(w http.ResponseWriter, _ *http.Request) {
			writeTestJSON(w, map[string]any{"providers": b.roster()})
		})

		r.Delete("/api/auth/{provider}", func(w http.ResponseWriter, r *http.Request) {
			p := chi.URLParam(r, "provider")
			b.disconnect(p)
			writeTestJSON(w, map[string]string{"message": "Disconnected " + p})
		})

		r.Get("/api/google/files", func(w http.ResponseWriter, _ *http.Request) {
			writeTestJSON(w, map[string]any{"files": []map[string]any{
				{"id": "g2", "name": "b.txt", "mimeType": "text/plain", "size": "20", "modifiedTime": "2024-01-02T03:04:05Z"},
				{"id": "dir", "name": "Folder", "mimeType": googleFolderMime},
				{"id": "g1", "name": "a.txt", "mimeType": "text/plain", "size": "10"},
			}})
		})

		r.Post("/api/google/files/upload", func(w http.ResponseWriter, r *http.Request) {
			name := b.recordUpload(r)
			writeTestJSON(w, map[string]any{"file": map[string]any{"id": "new-id", "name": name}})
		})

		r.Post("/api/google/files/bulk-download", b.handleBulk)
		r.Post("/api/dropbox/files/bulk-download", b.handleBulk)

		r.Get("/api/google/files/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			if id == "missing" {
				http.Error(w, `{"message":"File not found"}`, http.StatusNotFound)
				return
			}

			writeTestJSON(w, map[string]any{"file": map[string]any{
				"id": id, "name": "report.pdf", "mimeType": "application/pdf", "size": "7",
			}})
		})

		r.Get("/api/google/files/{id}/download", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "content")
		})

		r.Get("/api/dropbox/files", func(w http.ResponseWriter, _ *http.Request) {
			writeTestJSON(w, map[string]any{"files": []map[string]any{
				{"name": "Notes.md", "path_lower": "/notes.md", "size": 5},
				{"name": "Photo.jpg", "path_lower": "/photo.jpg", "size": 9},
			}})
		})

		r.Get("/api/dropbox/files/download", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "dropbox:"+r.URL.Query().Get("path"))
		})

		r.Post("/api/dropbox/files/upload", func(w http.ResponseWriter, r *http.Request) {
			name := b.recordUpload(r)
			dest := r.FormValue("path")
			writeTestJSON(w, map[string]any{"name": name, "path_lower": strings.ToLower(dest)})
		})

		r.Post("/api/dropbox/files/create_folder", func(w http.ResponseWriter, r *http.Request) {
			var in struct {
				Path string `json:"path"`
			}

			_ = json.NewDecoder(r.Body).Decode(&in)

			b.mu.Lock()
			b.folders = append(b.folders, in.Path)
			b.mu.Unlock()

			writeTestJSON(w, map[string]string{"path": in.Path, "name": filepath.Base(in.Path)})
		})

		r.Delete("/api/dropbox/files", func(w http.ResponseWriter, r *http.Request) {
			p := r.URL.Query().Get("path")

			b.mu.Lock()
			b.deleted = append(b.deleted, p)
			b.mu.Unlock()

			writeTestJSON(w, map[string]string{"message": "Deleted " + p})
		})

		r.Get("/api/dropbox/account", func(w http.ResponseWriter, _ *http.Request) {
			writeTestJSON(w, map[string]any{
				"accountId": "dbid:1",
				"name":      map[string]string{"displayName": "Octo Cat"},
				"email":     "octo@example.com",
			})
		})

		r.Get("/api/github/profile", func(w http.ResponseWriter, _ *http.Request) {
			writeTestJSON(w, map[string]any{"login": "octocat", "name": "The Octocat", "public_repos": 8})
		})

		r.Get("/api/github/repositories", func(w http.ResponseWriter, _ *http.Request) {
			writeTestJSON(w, map[string]any{"repositories": []map[string]any{
				{"id": 42, "name": "hello", "fullName": "octo/hello", "private": true, "language": "Go"},
			}})
		})
	})

	b.Server = httptest.NewServer(r)
	t.Cleanup(b.Close)

	return b
}

func requireTestToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			http.Error(w, `{"message":"Invalid token"}`, http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeTestJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (b *fakeBackend) roster() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]map[string]any, 0, len(b.connected))
	for i, p := range b.connected {
		out = append(out, map[string]any{
			"id":           i + 1,
			"provider":     p,
			"connected_at": "2024-01-02T03:04:05Z",
			"user_info":    "octo-" + p,
		})
	}

	return out
}

func (b *fakeBackend) connect(p string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !slices.Contains(b.connected, p) {
		b.connected = append(b.connected, p)
	}
}

func (b *fakeBackend) disconnect(p string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.connected = slices.DeleteFunc(b.connected, func(c string) bool { return c == p })
}

func (b *fakeBackend) recordUpload(r *http.Request) string {
	f, header, err := r.FormFile("file")
	if err != nil {
		return ""
	}
	defer f.Close()

	data, _ := io.ReadAll(f)

	b.mu.Lock()
	b.uploads = append(b.uploads, header.Filename+"="+string(data))
	b.mu.Unlock()

	return header.Filename
}

func (b *fakeBackend) handleBulk(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	b.bulkBody = body
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/zip")
	_, _ = io.WriteString(w, testArchive)
}

func (b *fakeBackend) lastBulkBody() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.bulkBody
}

// cliEnv is an isolated configuration for running the root command against
// a fakeBackend.
type cliEnv struct {
	t          *testing.T
	dir        string
	configPath string
	storePath  string
	backend    *fakeBackend
}

func clearConfigEnv(t *testing.T) {
	t.Helper()

	for _, name := range []string{config.EnvConfig, config.EnvAPIURL, config.EnvStorage} {
		t.Setenv(name, "")
	}
}

func newCLIEnv(t *testing.T, backend *fakeBackend) *cliEnv {
	t.Helper()

	dir := t.TempDir()

	clearConfigEnv(t)
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))

	env := &cliEnv{
		t:          t,
		dir:        dir,
		configPath: filepath.Join(dir, "config.toml"),
		storePath:  filepath.Join(dir, "session.json"),
		backend:    backend,
	}

	cfg := fmt.Sprintf(`[api]
base_url = %q
max_retries = 0

[callback]
listen_addr = "127.0.0.1:0"
open_browser = false
login_timeout = "10s"

[storage]
backend = "file"
path = %q

[logging]
level = "error"
`, backend.URL, env.storePath)

	require.NoError(t, os.WriteFile(env.configPath, []byte(cfg), 0o600))

	return env
}

// loggedIn persists the credential the fake backend accepts.
func (e *cliEnv) loggedIn() *cliEnv {
	e.t.Helper()

	require.NoError(e.t, store.NewFileStore(e.storePath, nil).Set(store.KeyCredential, testToken))

	return e
}

func (e *cliEnv) credential() string {
	e.t.Helper()

	cred, err := store.NewFileStore(e.storePath, nil).Get(store.KeyCredential)
	require.NoError(e.t, err)

	return cred
}

// run executes the root command with args and returns stdout and stderr.
func (e *cliEnv) run(args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer

	err := e.runWith(&stdout, &stderr, args...)

	return stdout.String(), stderr.String(), err
}

func (e *cliEnv) runWith(stdout, stderr io.Writer, args ...string) error {
	cmd := newRootCmd()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))

	return cmd.Execute()
}

// syncBuffer is a bytes.Buffer safe for one writer and a polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.buf.String()
}
