package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tonimelisma/drivebox/internal/provider"
)

type bulkRequest struct {
	Files []BulkFile `json:"files"`
}

// BulkDownload asks the backend to package files into one archive and
// streams it to w. Order of files is preserved in the request.
func (c *Client) BulkDownload(ctx context.Context, p provider.ID, files []BulkFile, w io.Writer) (int64, error) {
	data, err := json.Marshal(bulkRequest{Files: files})
	if err != nil {
		return 0, fmt.Errorf("api: encoding bulk request: %w", err)
	}

	return c.stream(ctx, request{
		method:      http.MethodPost,
		path:        "/api/" + url.PathEscape(p.String()) + "/files/bulk-download",
		body:        data,
		contentType: "application/json",
	}, w)
}
