package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Forgot(ctx context.Context) error
	Verify(ctx context.Context) error
	Reset(ctx context.Context) error
	WhoAmI(ctx context.Context) error
}

// runREPL reads commands line by line and dispatches them to a until the
// scanner is exhausted or the user types "exit" or "quit".
//
//	Not logged in:
//	  - register       create an account
//	  - login          sign in
//	  - forgot         request a password reset code
//	  - verify         check a reset code
//	  - reset          set a new password after verify
//
//	Logged in:
//	  - whoami         show the signed-in user
//	  - logout         sign out
//
// Handlers report their own errors to the user, so they are ignored here.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("auth %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, logout, exit")
			} else {
				printlnFn("Available commands: register, login, forgot, verify, reset, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "forgot":
			_ = a.Forgot(ctx)

		case "verify":
			_ = a.Verify(ctx)

		case "reset":
			_ = a.Reset(ctx)

		case "whoami":
			_ = a.WhoAmI(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
