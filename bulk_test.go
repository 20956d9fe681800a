package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/drivebox/internal/api"
	"github.com/tonimelisma/drivebox/internal/provider"
	"github.com/tonimelisma/drivebox/internal/selection"
)

func TestSelectableFiles_DropsFolders(t *testing.T) {
	files := selectableFiles([]entry{
		{ID: "a", Name: "a.txt"},
		{ID: "dir", Name: "Folder", IsFolder: true},
		{ID: "b", Name: "b.txt"},
	})

	assert.Equal(t, []selection.File{{ID: "a", Name: "a.txt"}, {ID: "b", Name: "b.txt"}}, files)
}

func newTestSelections() *selection.Manager {
	return selection.NewManager(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSelectFiles(t *testing.T) {
	listing := []selection.File{{ID: "a", Name: "a.txt"}, {ID: "b", Name: "b.txt"}, {ID: "c", Name: "c.txt"}}

	t.Run("all", func(t *testing.T) {
		m := newTestSelections()

		require.NoError(t, selectFiles(m, provider.Google, listing, nil))
		assert.True(t, m.IsAllSelected(provider.Google, listing))
	})

	t.Run("subset", func(t *testing.T) {
		m := newTestSelections()

		require.NoError(t, selectFiles(m, provider.Google, listing, []string{"c", "a", "c"}))
		assert.Equal(t, 2, m.Len(provider.Google))
		assert.True(t, m.IsSelected(provider.Google, "a"))
		assert.False(t, m.IsSelected(provider.Google, "b"))
	})

	t.Run("not in listing", func(t *testing.T) {
		m := newTestSelections()

		err := selectFiles(m, provider.Dropbox, listing, []string{"zzz"})
		assert.ErrorIs(t, err, selection.ErrNotInListing)
	})
}

func TestArchiveTarget(t *testing.T) {
	assert.Equal(t, "stdout", archiveTarget(stdoutTarget))
	assert.Equal(t, "out.zip", archiveTarget("out.zip"))
}

func bulkRequestFiles(t *testing.T, body []byte) []api.BulkFile {
	t.Helper()

	var req struct {
		Files []api.BulkFile `json:"files"`
	}
	require.NoError(t, json.Unmarshal(body, &req))

	return req.Files
}

func TestBulkGet_SelectedInListingOrder(t *testing.T) {
	backend := newFakeBackend(t, "google")
	env := newCLIEnv(t, backend).loggedIn()
	out := filepath.Join(env.dir, "archive.zip")

	_, stderr, err := env.run("bulk-get", "google", "g1", "g2", "-o", out)
	require.NoError(t, err)

	files := bulkRequestFiles(t, backend.lastBulkBody())
	assert.Equal(t, []api.BulkFile{{ID: "g2", Name: "b.txt"}, {ID: "g1", Name: "a.txt"}}, files)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, testArchive, string(data))
	assert.NoFileExists(t, out+".partial")

	assert.Contains(t, stderr, "Saved 2 file(s) to "+out)
}

func TestBulkGet_AllFilesToStdout(t *testing.T) {
	backend := newFakeBackend(t, "dropbox")
	env := newCLIEnv(t, backend).loggedIn()

	stdout, _, err := env.run("bulk-get", "dropbox", "-o", "-")
	require.NoError(t, err)

	assert.Equal(t, testArchive, stdout)

	files := bulkRequestFiles(t, backend.lastBulkBody())
	assert.Equal(t, []api.BulkFile{{ID: "/notes.md", Name: "Notes.md"}, {ID: "/photo.jpg", Name: "Photo.jpg"}}, files)
}

func TestBulkGet_NotInListing(t *testing.T) {
	backend := newFakeBackend(t, "google")
	env := newCLIEnv(t, backend).loggedIn()

	_, _, err := env.run("bulk-get", "google", "dir", "-o", filepath.Join(env.dir, "x.zip"))
	assert.ErrorIs(t, err, selection.ErrNotInListing)
	assert.Nil(t, backend.lastBulkBody())
}

func TestBulkGet_GitHubUnsupported(t *testing.T) {
	env := newCLIEnv(t, newFakeBackend(t, "github")).loggedIn()

	_, _, err := env.run("bulk-get", "github")
	assert.ErrorIs(t, err, selection.ErrBulkUnsupported)
}
