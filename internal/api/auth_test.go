package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/drivebox/internal/provider"
)

func TestAuthorizeURL_Anonymous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/github/authorize", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"), "authorize must not carry the credential")
		_, _ = w.Write([]byte(`{"authorize_url":"https://github.com/login/oauth/authorize?state=s"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	u, err := client.AuthorizeURL(context.Background(), provider.GitHub)
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/login/oauth/authorize?state=s", u)
}

func TestAuthorizeURL_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.AuthorizeURL(context.Background(), provider.Google)
	require.Error(t, err)
}

func TestHandleCallback_Anonymous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/dropbox/callback", r.URL.Path)
		assert.Equal(t, "c1", r.URL.Query().Get("code"))
		assert.Equal(t, "s1", r.URL.Query().Get("state"))
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"token":"T","user":{"id":"u1","email":"a@b.c","name":"A"}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	resp, err := client.HandleCallback(context.Background(), provider.Dropbox, "c1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "T", resp.Token)
	assert.Equal(t, "a@b.c", resp.User.Email)
}

func TestHandleCallback_UnauthorizedDoesNotFireHook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var fired atomic.Int32

	client := newTestClient(t, srv.URL)
	client.OnUnauthorized(func() { fired.Add(1) })

	_, err := client.HandleCallback(context.Background(), provider.Google, "c", "s")
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, fired.Load())
}

func TestHandleCallback_SentOnce(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	client.SetMaxRetries(5)

	_, err := client.HandleCallback(context.Background(), provider.GitHub, "one-time-code", "s1")
	require.ErrorIs(t, err, ErrServerError)
	assert.Equal(t, int32(1), calls.Load(), "a code must be exchanged at most once")
}

func TestAuthorizeURL_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		_, _ = w.Write([]byte(`{"authorize_url":"https://accounts.example.com/o"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.AuthorizeURL(context.Background(), provider.Google)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestConnectedProviders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"providers":[
			{"id":"1","provider":"GitHub","connected_at":"2024-03-01T10:00:00Z","user_info":"octo"},
			{"id":2,"provider":"google","connected_at":"garbage","user_info":""}
		]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	roster, err := client.ConnectedProviders(context.Background())
	require.NoError(t, err)
	require.Len(t, roster, 2)

	assert.Equal(t, provider.GitHub, roster[0].Provider)
	assert.Equal(t, "1", roster[0].ID)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), roster[0].ConnectedAt)
	assert.Equal(t, "octo", roster[0].UserInfo)

	assert.Equal(t, "2", roster[1].ID)
	assert.True(t, roster[1].ConnectedAt.IsZero())
}

func TestConnectedProviders_MissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	roster, err := client.ConnectedProviders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, roster)
}

func TestDisconnectProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/auth/google", r.URL.Path)
		_, _ = w.Write([]byte(`{"message":"disconnected"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	msg, err := client.DisconnectProvider(context.Background(), provider.Google)
	require.NoError(t, err)
	assert.Equal(t, "disconnected", msg)
}

func TestParseTimestamp_Layouts(t *testing.T) {
	logger := slog.Default()

	assert.False(t, parseTimestamp("2024-01-02T03:04:05.123456", "f", "id", logger).IsZero())
	assert.False(t, parseTimestamp("2024-01-02 03:04:05", "f", "id", logger).IsZero())
	assert.True(t, parseTimestamp("", "f", "id", logger).IsZero())
}

func TestFlexibleID(t *testing.T) {
	var v struct {
		A FlexibleID `json:"a"`
		B FlexibleID `json:"b"`
		C FlexibleID `json:"c"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"a":"x","b":42,"c":null}`), &v))
	assert.Equal(t, FlexibleID("x"), v.A)
	assert.Equal(t, FlexibleID("42"), v.B)
	assert.Equal(t, FlexibleID(""), v.C)
}

func TestSize(t *testing.T) {
	var f FileInfo
	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","size":"2048"}`), &f))
	assert.Equal(t, Size(2048), f.Size)

	var d DropboxFile
	require.NoError(t, json.Unmarshal([]byte(`{"name":"a","path_lower":"/a","size":12}`), &d))
	assert.Equal(t, Size(12), d.Size)
}
