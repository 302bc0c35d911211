// Package session owns the authentication state of the process.
//
// A Session starts in StatusUnknown with IsLoading set. Start runs the
// one-time restoration check against the persisted token, after which the
// session is Authenticated or Unauthenticated. SignIn and SignOut move
// between the two. Every applied transition is published to subscribers.
//
// Concurrent operations are applied in the order they resolve, with one
// exception: a SignIn or startup check that began before a later SignOut
// discards its result, so a sign-out always wins over a pending sign-in.
package session
