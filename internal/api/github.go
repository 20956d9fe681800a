package api

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

type repositoriesResponse struct {
	Repositories []Repository `json:"repositories"`
}

type repositoryResponse struct {
	Repository Repository `json:"repository"`
}

// Repositories lists the GitHub repositories of the linked account.
func (c *Client) Repositories(ctx context.Context, limit, offset int) ([]Repository, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	var out repositoriesResponse
	if err := c.getJSON(ctx, "/api/github/repositories", q, false, &out); err != nil {
		return nil, err
	}

	return out.Repositories, nil
}

// Repository fetches one GitHub repository.
func (c *Client) Repository(ctx context.Context, owner, repo string) (*Repository, error) {
	var out repositoryResponse
	if err := c.getJSON(ctx, repoPath(owner, repo), nil, false, &out); err != nil {
		return nil, err
	}

	return &out.Repository, nil
}

// Contents fetches the raw contents listing of path inside a repository. The
// backend passes GitHub's payload through unchanged, so it is returned
// undecoded.
func (c *Client) Contents(ctx context.Context, owner, repo, path string) (json.RawMessage, error) {
	p := repoPath(owner, repo) + "/contents"
	if path = strings.Trim(path, "/"); path != "" {
		p += "/" + encodePathSegments(path)
	}

	var out json.RawMessage
	if err := c.getJSON(ctx, p, nil, false, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// GitHubProfile fetches the linked GitHub profile, undecoded.
func (c *Client) GitHubProfile(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.getJSON(ctx, "/api/github/profile", nil, false, &out); err != nil {
		return nil, err
	}

	return out, nil
}

func repoPath(owner, repo string) string {
	return "/api/github/repositories/" + url.PathEscape(owner) + "/" + url.PathEscape(repo)
}

// encodePathSegments escapes each segment of a slash-separated path while
// keeping the separators.
func encodePathSegments(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}

	return strings.Join(segments, "/")
}
