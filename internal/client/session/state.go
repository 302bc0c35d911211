package session

import "github.com/dmitrijs2005/authsession/internal/client/models"

type Status int

const (
	StatusUnknown Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// State is a snapshot of the session. IsAuthenticated is true exactly when
// User is non-nil. User is a copy; changing it does not affect the session.
type State struct {
	Status          Status
	User            *models.User
	IsAuthenticated bool
	IsLoading       bool
}
