package usecases

import (
	"context"

	"github.com/dmitrijs2005/authsession/internal/client/client"
	"github.com/dmitrijs2005/authsession/internal/client/models"
	"github.com/dmitrijs2005/authsession/internal/logging"
	"go.opentelemetry.io/otel/attribute"
)

// LoginUser exchanges credentials for a session token.
func LoginUser(ctx context.Context, repo client.AuthRepository, log logging.Logger, creds models.Credentials) (token string, err error) {
	ctx, span := startSpan(ctx, "LoginUser", attribute.String("identifier", creds.Identifier))
	defer func() { endSpan(span, err) }()

	token, err = repo.Login(ctx, creds)
	if err != nil {
		log.Info(ctx, "login failed", "identifier", creds.Identifier, "kind", client.Kind(err), "error", err)
		return "", err
	}

	log.Debug(ctx, "login succeeded", "identifier", creds.Identifier)
	return token, nil
}

// FetchCurrentUser resolves the user that owns token.
func FetchCurrentUser(ctx context.Context, repo client.AuthRepository, log logging.Logger, token string) (user *models.User, err error) {
	ctx, span := startSpan(ctx, "FetchCurrentUser")
	defer func() { endSpan(span, err) }()

	user, err = repo.CurrentUser(ctx, token)
	if err != nil {
		log.Info(ctx, "fetching current user failed", "kind", client.Kind(err), "error", err)
		return nil, err
	}
	return user, nil
}

// RegisterUser creates an account. It does not sign the user in.
func RegisterUser(ctx context.Context, repo client.AuthRepository, log logging.Logger, data models.UserData) (err error) {
	ctx, span := startSpan(ctx, "RegisterUser", attribute.String("identifier", data.Identifier))
	defer func() { endSpan(span, err) }()

	if err = repo.Register(ctx, data); err != nil {
		log.Info(ctx, "registration failed", "identifier", data.Identifier, "kind", client.Kind(err), "error", err)
		return err
	}

	log.Info(ctx, "account registered", "identifier", data.Identifier)
	return nil
}

// RestoreSession asks the repository whether a persisted session is still
// valid. A nil user with a nil error means there is none.
func RestoreSession(ctx context.Context, repo client.AuthRepository, log logging.Logger) (user *models.User, err error) {
	ctx, span := startSpan(ctx, "RestoreSession")
	defer func() { endSpan(span, err) }()

	user, err = repo.CheckAuthStatus(ctx)
	if err != nil {
		log.Warn(ctx, "session restore failed", "kind", client.Kind(err), "error", err)
		return nil, err
	}

	span.SetAttributes(attribute.Bool("restored", user != nil))
	return user, nil
}

// SignOutUser invalidates the persisted session remotely.
func SignOutUser(ctx context.Context, repo client.AuthRepository, log logging.Logger) (err error) {
	ctx, span := startSpan(ctx, "SignOutUser")
	defer func() { endSpan(span, err) }()

	if err = repo.SignOut(ctx); err != nil {
		log.Warn(ctx, "remote sign-out failed", "kind", client.Kind(err), "error", err)
		return err
	}
	return nil
}
