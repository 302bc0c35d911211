// Package cli provides the interactive authsession command-line client.
//
// It wires configuration, the token store, the selected identity backend and
// a session, then runs a REPL: restore the previous session in the
// background, print state changes as they happen, and execute user
// commands (register, login, logout, password reset, whoami).
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
