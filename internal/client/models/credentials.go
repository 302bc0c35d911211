// Package models defines the value objects exchanged between the session,
// the use-cases and the auth repository backends.
//
// The types carry no behaviour beyond copying and redacted printing;
// validation is the identity backend's job.
package models

import "fmt"

// Credentials is a login attempt. It lives only for the duration of one
// login call and is never persisted.
type Credentials struct {
	// Identifier is an email address or a username.
	Identifier string
	// Secret is the password. Callers may wipe it after the call returns.
	Secret []byte
}

// String never prints the secret.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Identifier: %q, Secret: [REDACTED]}", c.Identifier)
}

// UserData is a registration payload.
type UserData struct {
	Identifier  string
	Secret      []byte
	DisplayName string
	Phone       string
}

func (u UserData) String() string {
	return fmt.Sprintf("UserData{Identifier: %q, DisplayName: %q, Phone: %q, Secret: [REDACTED]}",
		u.Identifier, u.DisplayName, u.Phone)
}
