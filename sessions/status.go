package sessions

import "github.com/jrsteele09/learnlink-client/users"

type Status int

const (
	StatusUnknown Status = iota
	StatusRestoring
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusRestoring:
		return "restoring"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	}
	return "invalid"
}

// Resolved reports whether authentication has settled either way
func (s Status) Resolved() bool {
	return s == StatusAuthenticated || s == StatusAnonymous
}

// CanTransitionTo encodes the session lifecycle:
//
//	unknown -> restoring -> authenticated | anonymous
//	anonymous -> authenticated (login, register)
//	authenticated -> anonymous (logout, failed refresh)
//
// An unknown session may also resolve directly when a login races the
// initial restore.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusUnknown:
		return next == StatusRestoring || next.Resolved()
	case StatusRestoring:
		return next.Resolved()
	case StatusAnonymous:
		return next == StatusAuthenticated
	case StatusAuthenticated:
		return next == StatusAnonymous
	}
	return false
}

// State is a point-in-time view of the session
type State struct {
	Status  Status
	User    *users.User
	Loading bool
}

func (s State) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.User != nil
}
