// Package selection keeps the per-provider sets of files chosen for a bulk
// download. A set only ever references files from the most recent listing
// for its provider, and is dropped on disconnect and logout.
package selection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/tonimelisma/drivebox/internal/api"
	"github.com/tonimelisma/drivebox/internal/provider"
)

// Sentinel errors.
var (
	ErrBulkAction      = errors.New("selection: bulk action failed")
	ErrNothingSelected = errors.New("selection: nothing selected")
	ErrBulkUnsupported = errors.New("selection: provider does not support bulk actions")
	ErrNotInListing    = errors.New("selection: file is not in the current listing")
)

// File identifies one selectable file. For Dropbox the ID is the lower-case
// path.
type File struct {
	ID   string
	Name string
}

// Archive describes a completed bulk download.
type Archive struct {
	Name  string
	Bytes int64
	Files int
}

// Facade is the bulk-download endpoint.
type Facade interface {
	BulkDownload(ctx context.Context, p provider.ID, files []api.BulkFile, w io.Writer) (int64, error)
}

type set struct {
	listing  []File
	listed   map[string]struct{}
	selected map[string]string
}

func newSet() *set {
	return &set{
		listed:   make(map[string]struct{}),
		selected: make(map[string]string),
	}
}

// Manager owns one set per bulk-capable provider.
type Manager struct {
	facade Facade
	logger *slog.Logger

	mu   sync.Mutex
	sets map[provider.ID]*set
}

// NewManager creates a Manager with empty sets.
func NewManager(facade Facade, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		facade: facade,
		logger: logger,
		sets:   make(map[provider.ID]*set),
	}
}

func checkBulk(p provider.ID) error {
	if !p.SupportsBulk() {
		return fmt.Errorf("%w: %s", ErrBulkUnsupported, p)
	}

	return nil
}

// setFor returns p's set, creating it. Caller holds m.mu.
func (m *Manager) setFor(p provider.ID) *set {
	s, ok := m.sets[p]
	if !ok {
		s = newSet()
		m.sets[p] = s
	}

	return s
}

// displayName stores names in NFC so the same name typed or listed in
// different normal forms is one name.
func displayName(name string) string {
	return norm.NFC.String(name)
}

// record replaces s's listing. Caller holds m.mu.
func (s *set) record(listing []File) {
	s.listing = make([]File, 0, len(listing))
	s.listed = make(map[string]struct{}, len(listing))

	for _, f := range listing {
		if _, dup := s.listed[f.ID]; dup {
			continue
		}

		s.listed[f.ID] = struct{}{}
		s.listing = append(s.listing, File{ID: f.ID, Name: displayName(f.Name)})
	}
}

// SetListing records the latest listing for p and drops selected files that
// are no longer listed.
func (m *Manager) SetListing(p provider.ID, listing []File) error {
	if err := checkBulk(p); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.setFor(p)
	s.record(listing)

	for id := range s.selected {
		if _, ok := s.listed[id]; !ok {
			delete(s.selected, id)
		}
	}

	return nil
}

// Toggle adds f to p's set if absent and removes it if present. It reports
// whether f is selected afterwards.
func (m *Manager) Toggle(p provider.ID, f File) (bool, error) {
	if err := checkBulk(p); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.setFor(p)
	if _, ok := s.listed[f.ID]; !ok {
		return false, fmt.Errorf("%w: %s %q", ErrNotInListing, p, f.ID)
	}

	if _, ok := s.selected[f.ID]; ok {
		delete(s.selected, f.ID)
		return false, nil
	}

	s.selected[f.ID] = displayName(f.Name)

	return true, nil
}

// SelectAll records listing as p's latest listing and replaces the set with
// every file in it.
func (m *Manager) SelectAll(p provider.ID, listing []File) error {
	if err := checkBulk(p); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.setFor(p)
	s.record(listing)

	s.selected = make(map[string]string, len(s.listing))
	for _, f := range s.listing {
		s.selected[f.ID] = f.Name
	}

	return nil
}

// Clear empties p's set. The listing is kept.
func (m *Manager) Clear(p provider.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sets[p]; ok {
		clear(s.selected)
	}
}

// IsAllSelected reports whether p's set has as many members as listing.
// Only the counts are compared.
func (m *Manager) IsAllSelected(p provider.ID, listing []File) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	if s, ok := m.sets[p]; ok {
		n = len(s.selected)
	}

	return n == len(listing)
}

// IsSelected reports whether id is in p's set.
func (m *Manager) IsSelected(p provider.ID, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sets[p]
	if !ok {
		return false
	}

	_, selected := s.selected[id]

	return selected
}

// Len returns the size of p's set.
func (m *Manager) Len(p provider.ID) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sets[p]; ok {
		return len(s.selected)
	}

	return 0
}

// Selected returns p's set in listing order.
func (m *Manager) Selected(p provider.ID) []File {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.selectedLocked(p)
}

func (m *Manager) selectedLocked(p provider.ID) []File {
	s, ok := m.sets[p]
	if !ok {
		return nil
	}

	out := make([]File, 0, len(s.selected))
	for _, f := range s.listing {
		if name, ok := s.selected[f.ID]; ok {
			out = append(out, File{ID: f.ID, Name: name})
		}
	}

	return out
}

// Purge drops p's set and listing.
func (m *Manager) Purge(p provider.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sets, p)
}

// PurgeAll drops every set.
func (m *Manager) PurgeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.sets)
}

// ArchiveName is the suggested file name of p's bulk download.
func ArchiveName(p provider.ID) string {
	return p.String() + "-files.zip"
}

// BulkAction downloads p's selected files as one archive written to w. The
// set is left as it was whether or not the download succeeds.
func (m *Manager) BulkAction(ctx context.Context, p provider.ID, w io.Writer) (*Archive, error) {
	if err := checkBulk(p); err != nil {
		return nil, err
	}

	m.mu.Lock()
	selected := m.selectedLocked(p)
	m.mu.Unlock()

	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNothingSelected, p)
	}

	files := make([]api.BulkFile, len(selected))
	for i, f := range selected {
		files[i] = api.BulkFile{ID: f.ID, Name: f.Name}
	}

	n, err := m.facade.BulkDownload(ctx, p, files, w)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBulkAction, p, err)
	}

	archive := &Archive{Name: ArchiveName(p), Bytes: n, Files: len(files)}

	m.logger.Info("bulk download complete",
		slog.String("provider", p.String()),
		slog.String("archive", archive.Name),
		slog.Int("files", archive.Files),
		slog.Int64("bytes", archive.Bytes),
	)

	return archive, nil
}
