package models

import "time"

// User is the authenticated principal owned by the session.
type User struct {
	ID          int64
	Identifier  string
	DisplayName string
	Phone       string
	CreatedAt   time.Time
}

// Clone returns a copy that shares nothing with u. A nil receiver yields nil.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
