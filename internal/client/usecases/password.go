package usecases

import (
	"context"

	"github.com/dmitrijs2005/authsession/internal/client/client"
	"github.com/dmitrijs2005/authsession/internal/logging"
	"go.opentelemetry.io/otel/attribute"
)

// ForgotPassword asks the backend to email a reset code. The result reports
// whether a code was sent; false is not an error.
func ForgotPassword(ctx context.Context, repo client.AuthRepository, log logging.Logger, email string) (sent bool, err error) {
	ctx, span := startSpan(ctx, "ForgotPassword", attribute.String("email", email))
	defer func() { endSpan(span, err) }()

	sent, err = repo.SendResetCode(ctx, email)
	if err != nil {
		log.Info(ctx, "reset code request failed", "email", email, "kind", client.Kind(err), "error", err)
		return false, err
	}

	log.Debug(ctx, "reset code requested", "email", email, "sent", sent)
	return sent, nil
}

// VerifyResetCode exchanges the emailed code for a reset token.
func VerifyResetCode(ctx context.Context, repo client.AuthRepository, log logging.Logger, email, code string) (resetToken string, err error) {
	ctx, span := startSpan(ctx, "VerifyResetCode", attribute.String("email", email))
	defer func() { endSpan(span, err) }()

	resetToken, err = repo.VerifyResetCode(ctx, email, code)
	if err != nil {
		log.Info(ctx, "reset code rejected", "email", email, "kind", client.Kind(err), "error", err)
		return "", err
	}
	return resetToken, nil
}

// ResetPassword sets a new password using a reset token.
func ResetPassword(ctx context.Context, repo client.AuthRepository, log logging.Logger, email, newPassword, resetToken string) (err error) {
	ctx, span := startSpan(ctx, "ResetPassword", attribute.String("email", email))
	defer func() { endSpan(span, err) }()

	if err = repo.ChangePassword(ctx, email, newPassword, resetToken); err != nil {
		log.Info(ctx, "password reset failed", "email", email, "kind", client.Kind(err), "error", err)
		return err
	}

	log.Info(ctx, "password reset", "email", email)
	return nil
}
