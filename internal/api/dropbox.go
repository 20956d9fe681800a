package api

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

type dropboxFilesResponse struct {
	Files []DropboxFile `json:"files"`
}

// FolderResult is returned by CreateDropboxFolder.
type FolderResult struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// DropboxFiles lists the Dropbox folder at path ("" is the root).
func (c *Client) DropboxFiles(ctx context.Context, path string, recursive bool) ([]DropboxFile, error) {
	q := url.Values{}
	if path != "" {
		q.Set("path", path)
	}

	if recursive {
		q.Set("recursive", "true")
	}

	var out dropboxFilesResponse
	if err := c.getJSON(ctx, "/api/dropbox/files", q, false, &out); err != nil {
		return nil, err
	}

	return out.Files, nil
}

// DropboxMetadata fetches the metadata of one Dropbox entry.
func (c *Client) DropboxMetadata(ctx context.Context, path string) (*DropboxFile, error) {
	var out DropboxFile
	if err := c.getJSON(ctx, "/api/dropbox/files/metadata", url.Values{"path": {path}}, false, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// DownloadDropboxFile streams a Dropbox file's content to w.
func (c *Client) DownloadDropboxFile(ctx context.Context, path string, w io.Writer) (int64, error) {
	return c.stream(ctx, request{
		method: http.MethodGet,
		path:   "/api/dropbox/files/download",
		query:  url.Values{"path": {path}},
	}, w)
}

// UploadDropboxFile uploads content to the Dropbox path.
func (c *Client) UploadDropboxFile(ctx context.Context, path, name string, content io.Reader) (*DropboxFile, error) {
	form := newMultipartForm()

	if err := form.file("file", name, content); err != nil {
		return nil, err
	}

	if err := form.field("path", path); err != nil {
		return nil, err
	}

	r, err := form.request(http.MethodPost, "/api/dropbox/files/upload")
	if err != nil {
		return nil, err
	}

	var out DropboxFile
	if err := c.doJSON(ctx, r, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// CreateDropboxFolder creates a folder at path.
func (c *Client) CreateDropboxFolder(ctx context.Context, path string) (*FolderResult, error) {
	var out FolderResult

	in := map[string]string{"path": path}
	if err := c.sendJSON(ctx, http.MethodPost, "/api/dropbox/files/create_folder", nil, in, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// DeleteDropboxFile deletes the Dropbox entry at path and returns the
// backend's confirmation message.
func (c *Client) DeleteDropboxFile(ctx context.Context, path string) (string, error) {
	var out messageResponse

	q := url.Values{"path": {path}}
	if err := c.sendJSON(ctx, http.MethodDelete, "/api/dropbox/files", q, nil, &out); err != nil {
		return "", err
	}

	return out.Message, nil
}

// DropboxAccount fetches the linked Dropbox account.
func (c *Client) DropboxAccount(ctx context.Context) (*DropboxAccount, error) {
	var out DropboxAccount
	if err := c.getJSON(ctx, "/api/dropbox/account", nil, false, &out); err != nil {
		return nil, err
	}

	return &out, nil
}
