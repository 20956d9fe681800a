// Package callback turns raw OAuth redirects arriving on either entry surface
// into a validated exchange Request or a terminal *RedirectError.
//
// Two surfaces exist:
//   - provider-specific: /auth/{provider}/callback, where the path carries an
//     explicit provider marker
//   - generic: /auth/callback, where the provider must be resolved
//
// The provider-specific surface never exchanges; it re-navigates to the
// generic surface via ForwardURL so exactly one code path performs exchange.
package callback

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tonimelisma/drivebox/internal/provider"
)

// GenericPath is the generic entry surface route.
const GenericPath = "/auth/callback"

// Query holds the OAuth redirect parameters. Empty string means absent.
type Query struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
	Scope            string
	Provider         string
}

// QueryFromValues extracts a Query from URL query values.
func QueryFromValues(v url.Values) Query {
	return Query{
		Code:             v.Get("code"),
		State:            v.Get("state"),
		Error:            v.Get("error"),
		ErrorDescription: v.Get("error_description"),
		Scope:            v.Get("scope"),
		Provider:         v.Get("provider"),
	}
}

// Input is everything a normalization may consult. Hint is the persisted
// provider hint and Path the current location path; both may be empty.
type Input struct {
	Query Query
	Hint  string
	Path  string
}

// Request is a validated code-exchange request. Scope is empty when the
// redirect did not carry one.
type Request struct {
	Provider provider.ID
	Code     string
	State    string
	Scope    string
}

// Values encodes the request as generic-surface query parameters: code,
// state, provider (lower-case) and scope only if present.
func (r Request) Values() url.Values {
	v := url.Values{}
	v.Set("code", r.Code)
	v.Set("state", r.State)
	v.Set("provider", r.Provider.String())

	if r.Scope != "" {
		v.Set("scope", r.Scope)
	}

	return v
}

// ForwardURL is the relative URL of the generic surface carrying r.
func ForwardURL(r Request) string {
	return GenericPath + "?" + r.Values().Encode()
}

// Resolver derives a provider name from the input, or "" if it cannot.
// Resolvers are pure.
type Resolver func(Input) string

// FromQuery resolves the explicit provider query parameter.
func FromQuery(in Input) string {
	return in.Query.Provider
}

// FromHint resolves the persisted hint written at initiation.
func FromHint(in Input) string {
	return in.Hint
}

// FromPath matches "/<provider>/" against the current location path.
func FromPath(in Input) string {
	for _, p := range provider.All() {
		if strings.Contains(in.Path, "/"+p.String()+"/") {
			return p.String()
		}
	}

	return ""
}

// DefaultResolvers is the fixed resolution order for the generic surface.
// Reordering changes which provider wins when several are present.
func DefaultResolvers() []Resolver {
	return []Resolver{FromQuery, FromHint, FromPath}
}

// Normalizer validates callbacks from both surfaces.
type Normalizer struct {
	resolvers []Resolver
}

// NewNormalizer returns a Normalizer using resolvers in order. Nil uses
// DefaultResolvers.
func NewNormalizer(resolvers []Resolver) *Normalizer {
	if resolvers == nil {
		resolvers = DefaultResolvers()
	}

	return &Normalizer{resolvers: resolvers}
}

// Resolve runs the resolver chain and returns the first non-empty result.
func (n *Normalizer) Resolve(in Input) string {
	for _, r := range n.resolvers {
		if v := strings.TrimSpace(r(in)); v != "" {
			return v
		}
	}

	return ""
}

// Normalize validates a callback. marker is the provider path segment of the
// provider-specific surface, or "" for the generic surface. The returned
// error is always a *RedirectError.
func (n *Normalizer) Normalize(marker string, in Input) (Request, error) {
	if marker != "" {
		return normalizeMarked(marker, in.Query)
	}

	return n.normalizeGeneric(in)
}

func normalizeMarked(marker string, q Query) (Request, error) {
	p, err := provider.Parse(marker)
	if err != nil {
		return Request{}, unsupported(marker)
	}

	if q.Error != "" {
		return Request{}, denied(marker, q)
	}

	return build(p, q)
}

func (n *Normalizer) normalizeGeneric(in Input) (Request, error) {
	raw := n.Resolve(in)

	if in.Query.Error != "" {
		name := raw
		if name == "" {
			name = "OAuth"
		}

		return Request{}, denied(name, in.Query)
	}

	if raw == "" {
		return Request{}, &RedirectError{
			Kind:    KindMissingParameters,
			Message: "Missing required parameters (code, state, or provider)",
		}
	}

	p, err := provider.Parse(raw)
	if err != nil {
		return Request{}, unsupported(raw)
	}

	return build(p, in.Query)
}

func build(p provider.ID, q Query) (Request, error) {
	if q.Code == "" || q.State == "" {
		return Request{}, &RedirectError{
			Kind:    KindMissingParameters,
			Message: "Missing authorization code or state parameter",
		}
	}

	return Request{
		Provider: p,
		Code:     q.Code,
		State:    q.State,
		Scope:    q.Scope,
	}, nil
}

func unsupported(raw string) *RedirectError {
	return &RedirectError{
		Kind:    KindUnsupportedProvider,
		Message: fmt.Sprintf("Unsupported provider: %s", raw),
	}
}

// denied builds the user-facing message for an upstream error. The
// description wins over the bare error code.
func denied(name string, q Query) *RedirectError {
	desc := q.ErrorDescription
	if desc == "" {
		desc = q.Error
	}

	return &RedirectError{
		Kind:    KindOAuthDenied,
		Message: fmt.Sprintf("%s authentication failed: %s", name, desc),
	}
}
