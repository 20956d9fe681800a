package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/tonimelisma/drivebox/internal/provider"
)

type authorizeResponse struct {
	AuthorizeURL string `json:"authorize_url"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// AuthorizeURL asks the backend for the third-party authorization URL. The
// request is always anonymous: the authorize endpoint must not see an
// existing credential.
func (c *Client) AuthorizeURL(ctx context.Context, p provider.ID) (string, error) {
	var out authorizeResponse

	path := "/api/auth/" + url.PathEscape(p.String()) + "/authorize"
	if err := c.getJSON(ctx, path, nil, true, &out); err != nil {
		return "", err
	}

	if out.AuthorizeURL == "" {
		return "", fmt.Errorf("api: authorize response for %s has no authorize_url", p)
	}

	// The URL embeds the OAuth state; never log it.
	c.logger.Debug("authorize URL issued", slog.String("provider", p.String()))

	return out.AuthorizeURL, nil
}

// HandleCallback exchanges an authorization code for a session credential.
// Anonymous for the same reason as AuthorizeURL. The code is single-use, so
// the exchange is never retried. A response without a token is returned
// as-is; deciding that it is a failure is the caller's job.
func (c *Client) HandleCallback(ctx context.Context, p provider.ID, code, state string) (*AuthResponse, error) {
	q := url.Values{}
	q.Set("code", code)
	q.Set("state", state)

	var out AuthResponse

	r := request{
		method:    http.MethodGet,
		path:      "/api/auth/" + url.PathEscape(p.String()) + "/callback",
		query:     q,
		anonymous: true,
		noRetry:   true,
	}

	if err := c.doJSON(ctx, r, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// ConnectedProviders fetches the authoritative roster for the current
// credential. A missing providers field is an empty roster.
func (c *Client) ConnectedProviders(ctx context.Context) ([]ConnectedProvider, error) {
	var out rosterResponse
	if err := c.getJSON(ctx, "/api/auth/", nil, false, &out); err != nil {
		return nil, err
	}

	roster := make([]ConnectedProvider, 0, len(out.Providers))
	for i := range out.Providers {
		roster = append(roster, out.Providers[i].toConnected(c.logger))
	}

	return roster, nil
}

// DisconnectProvider revokes the connection to p and returns the backend's
// confirmation message.
func (c *Client) DisconnectProvider(ctx context.Context, p provider.ID) (string, error) {
	var out messageResponse

	path := "/api/auth/" + url.PathEscape(p.String())
	if err := c.sendJSON(ctx, http.MethodDelete, path, nil, nil, &out); err != nil {
		return "", err
	}

	return out.Message, nil
}
