package api

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// ListOptions pages and orders a Google Drive listing. Zero values are
// omitted from the query and the backend defaults apply.
type ListOptions struct {
	Limit  int
	Offset int
	Sort   string
	Order  string
}

func (o ListOptions) values() url.Values {
	q := url.Values{}

	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}

	if o.Offset > 0 {
		q.Set("offset", strconv.Itoa(o.Offset))
	}

	if o.Sort != "" {
		q.Set("sort", o.Sort)
	}

	if o.Order != "" {
		q.Set("order", o.Order)
	}

	return q
}

type googleFilesResponse struct {
	Files []FileInfo `json:"files"`
}

type googleFileResponse struct {
	File FileInfo `json:"file"`
}

type googleUploadResponse struct {
	File    FileInfo `json:"file"`
	Message string   `json:"message"`
}

// GoogleFiles lists Google Drive files.
func (c *Client) GoogleFiles(ctx context.Context, opts ListOptions) ([]FileInfo, error) {
	var out googleFilesResponse
	if err := c.getJSON(ctx, "/api/google/files", opts.values(), false, &out); err != nil {
		return nil, err
	}

	return out.Files, nil
}

// GoogleFile fetches the metadata of one Google Drive file.
func (c *Client) GoogleFile(ctx context.Context, id string) (*FileInfo, error) {
	var out googleFileResponse
	if err := c.getJSON(ctx, "/api/google/files/"+url.PathEscape(id), nil, false, &out); err != nil {
		return nil, err
	}

	return &out.File, nil
}

// DownloadGoogleFile streams a Google Drive file's content to w.
func (c *Client) DownloadGoogleFile(ctx context.Context, id string, w io.Writer) (int64, error) {
	return c.stream(ctx, request{
		method: http.MethodGet,
		path:   "/api/google/files/" + url.PathEscape(id) + "/download",
	}, w)
}

// UploadOptions carries the optional Google Drive upload fields.
type UploadOptions struct {
	Parents     []string
	Description string
}

// UploadGoogleFile uploads content as a new Google Drive file named name.
func (c *Client) UploadGoogleFile(ctx context.Context, name string, content io.Reader, opts UploadOptions) (*FileInfo, error) {
	form := newMultipartForm()

	if err := form.file("file", name, content); err != nil {
		return nil, err
	}

	if len(opts.Parents) > 0 {
		if err := form.jsonField("parents", opts.Parents); err != nil {
			return nil, err
		}
	}

	if opts.Description != "" {
		if err := form.field("description", opts.Description); err != nil {
			return nil, err
		}
	}

	r, err := form.request(http.MethodPost, "/api/google/files/upload")
	if err != nil {
		return nil, err
	}

	var out googleUploadResponse
	if err := c.doJSON(ctx, r, &out); err != nil {
		return nil, err
	}

	return &out.File, nil
}
