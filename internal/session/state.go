package session

// State is the position of the authentication state machine.
type State int

// States. Failed always returns to Unauthenticated on the next operation.
const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
