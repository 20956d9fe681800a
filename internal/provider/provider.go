// Package provider defines the closed set of third-party storage providers
// a DriveBox session can connect to. Comparisons are case-insensitive at the
// boundary; the canonical form is lower-case.
//
// This is a leaf package imported by callback/, api/, registry/ and
// selection/ so that provider identity has exactly one definition.
package provider

import (
	"encoding"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrUnsupported is returned by Parse for names outside the enumeration.
var ErrUnsupported = errors.New("provider: unsupported provider")

// ID is a canonical (lower-case) provider identifier. The zero value means
// "no provider".
type ID string

// The supported providers.
const (
	Google  ID = "google"
	GitHub  ID = "github"
	Dropbox ID = "dropbox"
)

// all lists the providers in display order. Order matters for the path
// substring resolver and for help text.
var all = []ID{Google, GitHub, Dropbox}

// displayNames are the human-facing product names.
var displayNames = map[ID]string{
	Google:  "Google Drive",
	GitHub:  "GitHub",
	Dropbox: "Dropbox",
}

// All returns every supported provider in display order. The returned slice
// is a copy.
func All() []ID {
	out := make([]ID, len(all))
	copy(out, all)

	return out
}

// Canonical lower-cases and trims raw without validating it. Used where the
// backend is authoritative and the client must not drop unknown values.
func Canonical(raw string) ID {
	return ID(strings.ToLower(strings.TrimSpace(raw)))
}

// Parse validates raw against the enumeration, case-insensitively.
func Parse(raw string) (ID, error) {
	id := Canonical(raw)
	if !id.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, raw)
	}

	return id, nil
}

// Valid reports whether id is one of the supported providers.
func (id ID) Valid() bool {
	_, ok := displayNames[id]
	return ok
}

// IsZero reports whether id is empty.
func (id ID) IsZero() bool {
	return id == ""
}

func (id ID) String() string {
	return string(id)
}

// DisplayName returns the product name, e.g. "Google Drive". Unknown IDs fall
// back to Title.
func (id ID) DisplayName() string {
	if name, ok := displayNames[id]; ok {
		return name
	}

	return Title(string(id))
}

// SupportsBulk reports whether the provider exposes file listings that can be
// multi-selected and archived. GitHub browsing is read-only repository
// navigation and has no bulk endpoint.
func (id ID) SupportsBulk() bool {
	return id == Google || id == Dropbox
}

// Title capitalizes a raw provider name for messages ("github" -> "Github").
// Empty input yields "Provider".
func Title(raw string) string {
	if raw == "" {
		return "Provider"
	}

	return cases.Title(language.English).String(strings.ToLower(raw))
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The input is
// canonicalized but not validated; callers that need validation use Parse.
func (id *ID) UnmarshalText(text []byte) error {
	*id = Canonical(string(text))
	return nil
}

var (
	_ encoding.TextMarshaler   = ID("")
	_ encoding.TextUnmarshaler = (*ID)(nil)
)
