// Package tokenfile reads and writes the session file: the backend-issued
// bearer credential stored as an OAuth2 token, alongside small string
// metadata such as the provider hint of an in-flight authorization.
// This is a leaf package imported by store/.
package tokenfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// FilePerms restricts session files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the parent directory.
const DirPerms = 0o700

// File is the on-disk format. Token is nil when no credential is held, which
// happens between initiating a login (hint written) and completing it.
type File struct {
	Token *oauth2.Token     `json:"token,omitempty"`
	Meta  map[string]string `json:"meta,omitempty"`
}

// Empty reports whether f carries neither a credential nor metadata.
func (f *File) Empty() bool {
	return f == nil || (f.Token == nil && len(f.Meta) == 0)
}

// Load reads a session file. Returns (nil, nil) if the file does not exist.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("tokenfile: reading %s: %w", path, err)
	}

	var tf File
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("tokenfile: decoding %s: %w", path, err)
	}

	if tf.Token != nil && tf.Token.AccessToken == "" {
		return nil, fmt.Errorf("tokenfile: %s has an empty access token (log in again)", path)
	}

	return &tf, nil
}

// Save writes a session file atomically (write-to-temp + rename) with 0600
// permissions. An empty File removes the file instead. Never logs token values.
func Save(path string, tf *File) error {
	if tf.Empty() {
		return Remove(path)
	}

	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenfile: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("tokenfile: creating directory %s: %w", dir, mkErr)
	}

	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: writing: %w", err)
	}

	// Flush before rename so a power loss cannot leave a partial file at path.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenfile: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("tokenfile: renaming: %w", err)
	}

	success = true

	return nil
}

// Remove deletes the session file. A missing file is not an error.
func Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("tokenfile: removing %s: %w", path, err)
	}

	return nil
}

// Update loads the file at path (or starts empty), applies fn and saves the
// result. fn may leave the file empty, in which case it is removed.
func Update(path string, fn func(*File)) error {
	tf, err := Load(path)
	if err != nil {
		return err
	}

	if tf == nil {
		tf = &File{}
	}

	if tf.Meta == nil {
		tf.Meta = make(map[string]string)
	}

	fn(tf)

	return Save(path, tf)
}
