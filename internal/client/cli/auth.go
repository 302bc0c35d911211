package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authsession/internal/client/client"
	"github.com/dmitrijs2005/authsession/internal/client/models"
	"github.com/dmitrijs2005/authsession/internal/client/repositories/tokens"
	"github.com/dmitrijs2005/authsession/internal/client/session"
	"github.com/dmitrijs2005/authsession/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var errNoPendingReset = errors.New("no verified reset code, run 'verify' first")

// Register prompts for account details and creates the account. It does
// not sign in.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	name, err := getSimpleText(a.reader, "Display name (optional)", a.out)
	if err != nil {
		return err
	}
	phone, err := getSimpleText(a.reader, "Phone in E.164 format (optional)", a.out)
	if err != nil {
		return err
	}

	err = a.session.RegisterUser(ctx, models.UserData{
		Identifier:  email,
		Secret:      password,
		DisplayName: name,
		Phone:       phone,
	})
	if err != nil {
		return a.fail("Registration failed", err)
	}

	fmt.Fprintln(a.out, "Account created, you can log in now.")
	return nil
}

// Login prompts for credentials and signs in.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.session.SignIn(ctx, models.Credentials{Identifier: email, Secret: password}); err != nil {
		return a.fail("Login failed", err)
	}
	return nil
}

// Logout ends the session. It cannot fail.
func (a *App) Logout(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Not logged in.")
		return nil
	}
	return a.session.SignOut(ctx)
}

// Forgot requests a password reset code by email.
func (a *App) Forgot(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	sent, err := a.session.SendResetPasswordEmail(ctx, email)
	if err != nil {
		return a.fail("Reset request failed", err)
	}

	if sent {
		fmt.Fprintln(a.out, "If the address is registered, a reset code is on its way. Run 'verify' next.")
	} else {
		fmt.Fprintln(a.out, "A code was sent recently, check your inbox or try again shortly.")
	}
	return nil
}

// Verify checks an emailed reset code and remembers the resulting reset
// token for Reset.
func (a *App) Verify(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	code, err := getSimpleText(a.reader, "Enter reset code", a.out)
	if err != nil {
		return err
	}

	resetToken, err := a.session.VerifyResetCode(ctx, email, code)
	if err != nil {
		return a.fail("Code rejected", err)
	}

	a.reset = pendingReset{email: email, token: resetToken}
	fmt.Fprintln(a.out, "Code accepted. Run 'reset' to choose a new password.")
	return nil
}

// Reset sets a new password using the reset token from Verify.
func (a *App) Reset(ctx context.Context) error {
	if a.reset.token == "" {
		return a.fail("Cannot reset password", errNoPendingReset)
	}

	password, err := getPassword("New password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.session.ResetPassword(ctx, a.reset.email, string(password), a.reset.token); err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			a.reset = pendingReset{}
		}
		return a.fail("Password reset failed", err)
	}

	a.reset = pendingReset{}
	fmt.Fprintln(a.out, "Password changed, you can log in now.")
	return nil
}

// WhoAmI prints the signed-in user and, when the store records it, how
// long ago the session token was saved.
func (a *App) WhoAmI(ctx context.Context) error {
	st := a.session.State()
	if !st.IsAuthenticated {
		fmt.Fprintln(a.out, "Not logged in.")
		return nil
	}

	u := st.User
	fmt.Fprintf(a.out, "id:      %d\nemail:   %s\n", u.ID, u.Identifier)
	if u.DisplayName != "" {
		fmt.Fprintf(a.out, "name:    %s\n", u.DisplayName)
	}
	if u.Phone != "" {
		fmt.Fprintf(a.out, "phone:   %s\n", u.Phone)
	}
	if !u.CreatedAt.IsZero() {
		fmt.Fprintf(a.out, "since:   %s\n", u.CreatedAt.Format("2006-01-02"))
	}

	if ts, ok := a.store.(tokens.Timestamped); ok {
		at, ok, err := ts.SavedAt(ctx)
		switch {
		case err != nil:
			a.log.Warn(ctx, "failed to read token timestamp", "error", err)
		case ok:
			fmt.Fprintf(a.out, "token:   saved %s ago\n", time.Since(at).Truncate(time.Second))
		}
	}
	return nil
}

// fail prints a user-facing explanation of err and returns it.
func (a *App) fail(what string, err error) error {
	fmt.Fprintf(a.out, "%s: %s\n", what, describe(err))
	return err
}

func describe(err error) string {
	var he *client.HTTPError
	switch {
	case errors.Is(err, session.ErrSuperseded):
		return "cancelled by logout"
	case errors.Is(err, client.ErrUnavailable):
		return "server unavailable, try again later"
	case errors.As(err, &he) && he.Message != "":
		return he.Message
	default:
		return err.Error()
	}
}
