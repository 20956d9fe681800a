package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/tonimelisma/drivebox/internal/provider"
)

// User is the backend's view of the person behind a session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AuthResponse is returned by the code-exchange endpoint. Token is the
// session credential; an empty Token is an exchange failure.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ConnectedProvider mirrors one linked third-party account. The client never
// constructs these; they are only decoded from the roster endpoint.
type ConnectedProvider struct {
	ID          string
	Provider    provider.ID
	ConnectedAt time.Time
	UserInfo    string
}

// connectedProviderResponse mirrors the backend JSON exactly.
type connectedProviderResponse struct {
	ID          FlexibleID `json:"id"`
	Provider    string     `json:"provider"`
	ConnectedAt string     `json:"connected_at"`
	UserInfo    string     `json:"user_info"`
}

type rosterResponse struct {
	Providers []connectedProviderResponse `json:"providers"`
}

// toConnected normalizes a roster entry. Provider names are lower-cased but
// not validated: the backend is authoritative for membership.
func (r *connectedProviderResponse) toConnected(logger *slog.Logger) ConnectedProvider {
	return ConnectedProvider{
		ID:          string(r.ID),
		Provider:    provider.Canonical(r.Provider),
		ConnectedAt: parseTimestamp(r.ConnectedAt, "connected_at", string(r.ID), logger),
		UserInfo:    r.UserInfo,
	}
}

// Timestamp formats accepted from the backend, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

// parseTimestamp parses a backend timestamp. Unparseable values yield the
// zero time and a warning rather than failing the whole roster.
func parseTimestamp(raw, field, id string, logger *slog.Logger) time.Time {
	if raw == "" {
		return time.Time{}
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}

	logger.Warn("invalid timestamp, leaving unset",
		slog.String("field", field),
		slog.String("id", id),
		slog.String("raw", raw),
	)

	return time.Time{}
}

// FlexibleID decodes identifiers the backend sends as either JSON strings or
// numbers (GitHub repository IDs are numeric upstream).
type FlexibleID string

// UnmarshalJSON accepts "abc", 123 and null.
func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*f = FlexibleID(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}

	*f = FlexibleID(n.String())

	return nil
}

// String returns the identifier.
func (f FlexibleID) String() string {
	return string(f)
}

// FileInfo is a Google Drive file.
type FileInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	Size         Size   `json:"size"`
	CreatedTime  string `json:"createdTime"`
	ModifiedTime string `json:"modifiedTime"`
	WebViewLink  string `json:"webViewLink,omitempty"`
	DownloadURL  string `json:"downloadUrl,omitempty"`
}

// Size decodes byte counts sent as numbers or numeric strings (the Drive API
// reports sizes as strings).
type Size int64

// UnmarshalJSON accepts 12, "12" and null.
func (s *Size) UnmarshalJSON(data []byte) error {
	var id FlexibleID
	if err := id.UnmarshalJSON(data); err != nil {
		return err
	}

	if id == "" {
		*s = 0
		return nil
	}

	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return err
	}

	*s = Size(n)

	return nil
}

// Repository is a GitHub repository.
type Repository struct {
	ID          FlexibleID `json:"id"`
	Name        string     `json:"name"`
	FullName    string     `json:"fullName"`
	Description string     `json:"description"`
	Private     bool       `json:"private"`
	HTMLURL     string     `json:"htmlUrl"`
	CloneURL    string     `json:"cloneUrl"`
	Language    string     `json:"language"`
	UpdatedAt   string     `json:"updatedAt"`
}

// DropboxFile is a Dropbox file or folder entry. PathLower is its identifier.
type DropboxFile struct {
	Name           string `json:"name"`
	PathLower      string `json:"path_lower"`
	Size           Size   `json:"size,omitempty"`
	ClientModified string `json:"client_modified,omitempty"`
}

// DropboxAccount is the linked Dropbox account.
type DropboxAccount struct {
	AccountID string `json:"accountId"`
	Name      struct {
		GivenName   string `json:"givenName"`
		Surname     string `json:"surname"`
		DisplayName string `json:"displayName"`
	} `json:"name"`
	Email string `json:"email"`
}

// BulkFile is one entry of a bulk-download request.
type BulkFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
