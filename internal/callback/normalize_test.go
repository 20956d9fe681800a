package callback

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/drivebox/internal/provider"
)

func requireRedirect(t *testing.T, err error) *RedirectError {
	t.Helper()

	var re *RedirectError
	require.ErrorAs(t, err, &re)

	return re
}

func TestNormalize_MarkedSuccessForEveryProvider(t *testing.T) {
	n := NewNormalizer(nil)

	for _, p := range provider.All() {
		t.Run(p.String(), func(t *testing.T) {
			req, err := n.Normalize(p.String(), Input{Query: Query{Code: "c1", State: "s1"}})
			require.NoError(t, err)
			assert.Equal(t, Request{Provider: p, Code: "c1", State: "s1"}, req)
		})
	}
}

func TestNormalize_MarkerCaseInsensitive(t *testing.T) {
	n := NewNormalizer(nil)

	req, err := n.Normalize("GitHub", Input{Query: Query{Code: "c", State: "s"}})
	require.NoError(t, err)
	assert.Equal(t, provider.GitHub, req.Provider)
}

func TestNormalize_UnsupportedMarker(t *testing.T) {
	n := NewNormalizer(nil)

	_, err := n.Normalize("twitter", Input{Query: Query{Code: "c", State: "s"}})
	re := requireRedirect(t, err)
	assert.Contains(t, re.Message, "Unsupported provider: twitter")
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
	assert.Equal(t, KindUnsupportedProvider, re.Kind)
}

func TestNormalize_MarkedUpstreamError(t *testing.T) {
	n := NewNormalizer(nil)

	_, err := n.Normalize("dropbox", Input{Query: Query{Error: "access_denied", ErrorDescription: "user cancelled"}})
	re := requireRedirect(t, err)
	assert.Equal(t, "dropbox authentication failed: user cancelled", re.Message)
	assert.True(t, re.Expected())
	assert.ErrorIs(t, err, ErrOAuthDenied)
}

func TestNormalize_UpstreamErrorFallsBackToErrorCode(t *testing.T) {
	n := NewNormalizer(nil)

	_, err := n.Normalize("google", Input{Query: Query{Error: "access_denied"}})
	re := requireRedirect(t, err)
	assert.Equal(t, "google authentication failed: access_denied", re.Message)
}

func TestNormalize_MarkedMissingState(t *testing.T) {
	n := NewNormalizer(nil)

	_, err := n.Normalize("google", Input{Query: Query{Code: "abc"}})
	re := requireRedirect(t, err)
	assert.Equal(t, "Missing authorization code or state parameter", re.Message)
	assert.ErrorIs(t, err, ErrMissingParameters)
}

func TestNormalize_GenericUpstreamErrorNamesResolvedProvider(t *testing.T) {
	n := NewNormalizer(nil)

	_, err := n.Normalize("", Input{
		Query: Query{Error: "access_denied", ErrorDescription: "user cancelled"},
		Hint:  "github",
	})
	re := requireRedirect(t, err)
	assert.Contains(t, re.Message, "github")
	assert.Contains(t, re.Message, "user cancelled")
	assert.Equal(t, KindOAuthDenied, re.Kind)
}

func TestNormalize_GenericUpstreamErrorWithoutProvider(t *testing.T) {
	n := NewNormalizer(nil)

	_, err := n.Normalize("", Input{Query: Query{Error: "access_denied"}})
	re := requireRedirect(t, err)
	assert.Equal(t, "OAuth authentication failed: access_denied", re.Message)
}

func TestNormalize_GenericMissingStateRegardlessOfProvider(t *testing.T) {
	n := NewNormalizer(nil)

	inputs := []Input{
		{Query: Query{Code: "abc"}},
		{Query: Query{Code: "abc", Provider: "google"}},
		{Query: Query{Code: "abc"}, Hint: "dropbox"},
		{Query: Query{Code: "abc"}, Path: "/auth/github/callback"},
	}

	for _, in := range inputs {
		_, err := n.Normalize("", in)
		assert.ErrorIs(t, err, ErrMissingParameters)
	}
}

func TestNormalize_GenericNoProvider(t *testing.T) {
	n := NewNormalizer(nil)

	_, err := n.Normalize("", Input{Query: Query{Code: "c", State: "s"}, Path: GenericPath})
	re := requireRedirect(t, err)
	assert.Contains(t, re.Message, "Missing required parameters")
}

func TestNormalize_GenericUnsupportedResolvedProvider(t *testing.T) {
	n := NewNormalizer(nil)

	_, err := n.Normalize("", Input{Query: Query{Code: "c", State: "s", Provider: "twitter"}})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
	assert.Contains(t, err.Error(), "Unsupported provider: twitter")
}

func TestNormalize_ScopeForwardedOnlyWhenPresent(t *testing.T) {
	n := NewNormalizer(nil)

	req, err := n.Normalize("google", Input{Query: Query{Code: "c", State: "s", Scope: "drive.readonly"}})
	require.NoError(t, err)
	assert.Equal(t, "drive.readonly", req.Scope)
	assert.Equal(t, "drive.readonly", req.Values().Get("scope"))

	req, err = n.Normalize("google", Input{Query: Query{Code: "c", State: "s"}})
	require.NoError(t, err)
	_, has := req.Values()["scope"]
	assert.False(t, has)
}

// The resolution order is query param, then hint, then path. Each case makes
// a lower-priority resolver disagree with the expected winner.
func TestResolve_FixedOrder(t *testing.T) {
	n := NewNormalizer(nil)

	tests := []struct {
		name string
		in   Input
		want string
	}{
		{"query beats hint and path", Input{Query: Query{Provider: "dropbox"}, Hint: "google", Path: "/x/github/y"}, "dropbox"},
		{"hint beats path", Input{Hint: "google", Path: "/x/github/y"}, "google"},
		{"path last", Input{Path: "/auth/github/callback"}, "github"},
		{"nothing", Input{Path: "/auth/callback"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Resolve(tt.in))
		})
	}
}

func TestResolve_CustomChainStopsAtFirstHit(t *testing.T) {
	var calls []string

	record := func(name, result string) Resolver {
		return func(Input) string {
			calls = append(calls, name)
			return result
		}
	}

	first := record("first", "")
	second := record("second", "github")
	third := record("third", "google")

	n := NewNormalizer([]Resolver{first, second, third})
	assert.Equal(t, "github", n.Resolve(Input{}))
	assert.Equal(t, []string{"first", "second"}, calls)
}

// A provider-specific redirect forwards to the generic surface, which then
// resolves the provider from the explicit query parameter it carries.
func TestForwardURL_RoundTripsThroughGenericSurface(t *testing.T) {
	n := NewNormalizer(nil)

	req, err := n.Normalize("GITHUB", Input{Query: Query{Code: "xyz", State: "s1"}})
	require.NoError(t, err)

	fwd := ForwardURL(req)

	u, err := url.Parse(fwd)
	require.NoError(t, err)
	assert.Equal(t, GenericPath, u.Path)
	assert.Equal(t, "github", u.Query().Get("provider"))

	again, err := n.Normalize("", Input{Query: QueryFromValues(u.Query()), Hint: "dropbox", Path: u.Path})
	require.NoError(t, err)
	assert.Equal(t, req, again)
}

func TestQueryFromValues(t *testing.T) {
	v := url.Values{
		"code":              {"c"},
		"state":             {"s"},
		"error":             {"e"},
		"error_description": {"d"},
		"scope":             {"sc"},
		"provider":          {"p"},
	}

	assert.Equal(t, Query{Code: "c", State: "s", Error: "e", ErrorDescription: "d", Scope: "sc", Provider: "p"}, QueryFromValues(v))
}

func TestRedirectError_UnwrapUnknownKind(t *testing.T) {
	err := &RedirectError{Message: "x"}
	assert.Nil(t, errors.Unwrap(err))
	assert.Equal(t, "unknown", Kind(0).String())
}
