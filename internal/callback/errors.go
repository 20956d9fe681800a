package callback

import "errors"

// Sentinel errors for redirect classification. A *RedirectError unwraps to
// exactly one of these, so callers can use errors.Is(err, callback.ErrOAuthDenied).
var (
	ErrUnsupportedProvider = errors.New("callback: unsupported provider")
	ErrOAuthDenied         = errors.New("callback: authorization denied upstream")
	ErrMissingParameters   = errors.New("callback: missing parameters")
)

// Kind classifies a RedirectError.
type Kind int

// Redirect error kinds.
const (
	KindUnsupportedProvider Kind = iota + 1
	KindOAuthDenied
	KindMissingParameters
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedProvider:
		return "unsupported_provider"
	case KindOAuthDenied:
		return "oauth_denied"
	case KindMissingParameters:
		return "missing_parameters"
	default:
		return "unknown"
	}
}

// RedirectError is the terminal outcome of normalizing a callback. Message is
// human-readable and shown on the landing view; it never contains the code
// or state values.
type RedirectError struct {
	Kind    Kind
	Message string
}

func (e *RedirectError) Error() string {
	return e.Message
}

// Unwrap returns the sentinel matching Kind.
func (e *RedirectError) Unwrap() error {
	switch e.Kind {
	case KindUnsupportedProvider:
		return ErrUnsupportedProvider
	case KindOAuthDenied:
		return ErrOAuthDenied
	case KindMissingParameters:
		return ErrMissingParameters
	default:
		return nil
	}
}

// Expected reports whether the redirect is a user-driven outcome (consent
// denied) rather than a malformed callback.
func (e *RedirectError) Expected() bool {
	return e.Kind == KindOAuthDenied
}
