package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Retry and backoff constants.
const (
	DefaultMaxRetries = 5
	DefaultBaseURL    = "http://localhost:4000"
	DefaultUserAgent  = "drivebox/0.1"
	baseBackoff       = 1 * time.Second
	maxBackoff        = 60 * time.Second
	backoffFactor     = 2.0
	jitterFraction    = 0.25
	requestIDHeader   = "X-Request-ID"
)

// TokenSource provides the session's bearer credential. An empty string with
// a nil error means "no credential": the request is sent without
// Authorization.
type TokenSource interface {
	Token() (string, error)
}

// Client is an HTTP client for the DriveBox backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger
	userAgent  string
	maxRetries int

	// onUnauthorized runs after a credentialed request is rejected with 401.
	onUnauthorized func()

	// sleepFunc is called to wait between retries. Tests override this to
	// avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a backend client. baseURL is the backend origin, e.g.
// "http://localhost:4000"; token may be nil for anonymous-only use.
func NewClient(baseURL string, httpClient *http.Client, token TokenSource, logger *slog.Logger, userAgent string) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		token:      token,
		logger:     logger,
		userAgent:  userAgent,
		maxRetries: DefaultMaxRetries,
		sleepFunc:  timeSleep,
	}
}

// SetMaxRetries overrides the retry budget. Negative values are treated as 0.
func (c *Client) SetMaxRetries(n int) {
	c.maxRetries = max(n, 0)
}

// OnUnauthorized registers fn to run when a credentialed request is rejected
// with 401. The session uses it to drop a credential the backend no longer
// accepts.
func (c *Client) OnUnauthorized(fn func()) {
	c.onUnauthorized = fn
}

// request describes one logical API call. Body is held as bytes so every
// retry attempt can resend it.
type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	anonymous   bool
	// noRetry sends the request at most once. Set for calls the backend
	// must not see twice: the one-time code exchange and writes.
	noRetry bool
}

// Do executes an authenticated request against the backend. The path is
// appended to the base URL. For non-nil bodies Content-Type is set to
// application/json. The caller closes the response body on success.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req := request{method: method, path: path}

	if body != nil {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("api: reading request body: %w", err)
		}

		req.body = data
		req.contentType = "application/json"
	}

	return c.do(ctx, req)
}

// do runs req with retries. Network errors and retryable statuses back off
// exponentially; everything else is classified into an *APIError. Requests
// marked noRetry get a single attempt.
func (c *Client) do(ctx context.Context, r request) (*http.Response, error) {
	maxRetries := c.maxRetries
	if r.noRetry {
		maxRetries = 0
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	// One ID per logical request so retries correlate in backend logs.
	reqID := uuid.NewString()

	var attempt int
	for {
		resp, err := c.doOnce(ctx, r, target, reqID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("api: request canceled: %w", ctx.Err())
			}

			if attempt < maxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("method", r.method),
					slog.String("path", r.path),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("api: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("api: %s %s failed after %d retries: %w", r.method, r.path, maxRetries, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			c.logger.Debug("request succeeded",
				slog.String("method", r.method),
				slog.String("path", r.path),
				slog.Int("status", resp.StatusCode),
			)

			return resp, nil
		}

		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if isRetryable(resp.StatusCode) && attempt < maxRetries {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("method", r.method),
				slog.String("path", r.path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("api: request canceled: %w", err)
			}

			attempt++

			continue
		}

		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			RequestID:  reqID,
			Message:    errorMessage(errBody),
			Err:        classifyStatus(resp.StatusCode),
		}

		c.logger.Debug("request failed",
			slog.String("method", r.method),
			slog.String("path", r.path),
			slog.Int("status", resp.StatusCode),
			slog.Int("attempts", attempt+1),
		)

		if resp.StatusCode == http.StatusUnauthorized && !r.anonymous && c.onUnauthorized != nil {
			c.logger.Warn("credential rejected by backend, clearing session",
				slog.String("path", r.path),
			)
			c.onUnauthorized()
		}

		return nil, apiErr
	}
}

// doOnce executes a single HTTP request (no retry). Anonymous requests never
// carry the credential, even when the session holds one.
func (c *Client) doOnce(ctx context.Context, r request, target, reqID string) (*http.Response, error) {
	var body io.Reader = http.NoBody
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if !r.anonymous && c.token != nil {
		cred, err := c.token.Token()
		if err != nil {
			return nil, fmt.Errorf("obtaining credential: %w", err)
		}

		if cred != "" {
			(&oauth2.Token{AccessToken: cred, TokenType: "Bearer"}).SetAuthHeader(req)
		}
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(requestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")

	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	return c.httpClient.Do(req)
}

// getJSON issues a GET and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, anonymous bool, out any) error {
	return c.doJSON(ctx, request{method: http.MethodGet, path: path, query: query, anonymous: anonymous}, out)
}

// sendJSON encodes in as the request body and decodes the response into out.
// out may be nil when the response body is irrelevant. Every caller changes
// remote state, so the request is sent once.
func (c *Client) sendJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	r, err := jsonRequest(method, path, query, in)
	if err != nil {
		return err
	}

	r.noRetry = true

	return c.doJSON(ctx, r, out)
}

func jsonRequest(method, path string, query url.Values, in any) (request, error) {
	r := request{method: method, path: path, query: query}

	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return request{}, fmt.Errorf("api: encoding request body: %w", err)
		}

		r.body = data
		r.contentType = "application/json"
	}

	return r, nil
}

func (c *Client) doJSON(ctx context.Context, r request, out any) error {
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decoding %s %s response: %w", r.method, r.path, err)
	}

	return nil
}

// stream issues r and copies the response body to w. Only the request cycle
// is retried; a failure mid-copy is returned with the bytes already written.
func (c *Client) stream(ctx context.Context, r request, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, r)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, copyErr := io.Copy(w, resp.Body)
	if copyErr != nil {
		c.logger.Error("streaming response body failed",
			slog.String("path", r.path),
			slog.String("error", copyErr.Error()),
			slog.Int64("bytes_before_error", n),
		)

		return n, fmt.Errorf("api: streaming %s: %w", r.path, copyErr)
	}

	return n, nil
}

// retryBackoff returns the backoff duration for a retryable response.
// For 429 responses with a Retry-After header, that value is used.
func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return c.calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
