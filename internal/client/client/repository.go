package client

import (
	"context"

	"github.com/dmitrijs2005/authsession/internal/client/models"
)

// AuthRepository is the boundary to the identity backend.
//
// Every error returned by an implementation is either *HTTPError or
// *NetworkError; HandleError is the one place where raw failures are turned
// into those. Implementations never retry.
type AuthRepository interface {
	// Login exchanges credentials for an opaque session token.
	Login(ctx context.Context, creds models.Credentials) (string, error)
	// Register creates an account. It does not sign the user in.
	Register(ctx context.Context, data models.UserData) error
	// SendResetCode asks the backend to email a password-reset code and
	// reports whether it did. It is also the "forgot password" operation.
	SendResetCode(ctx context.Context, email string) (bool, error)
	// VerifyResetCode exchanges an emailed code for a short-lived reset token.
	VerifyResetCode(ctx context.Context, email, code string) (string, error)
	// ChangePassword finishes a reset using the token from VerifyResetCode.
	ChangePassword(ctx context.Context, email, newPassword, resetToken string) error
	// CurrentUser resolves the owner of a session token.
	CurrentUser(ctx context.Context, token string) (*models.User, error)
	// CheckAuthStatus restores the session from the persisted token.
	// No stored token, or one the backend no longer accepts, yields (nil, nil).
	CheckAuthStatus(ctx context.Context) (*models.User, error)
	// SignOut invalidates the persisted token on the backend. It does not
	// clear local storage.
	SignOut(ctx context.Context) error
	// HandleError classifies any failure as *HTTPError or *NetworkError.
	// Already classified errors are returned unchanged.
	HandleError(err error) error
	Close() error
}
