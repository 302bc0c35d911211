package client

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/authsession/internal/client/models"
	"github.com/dmitrijs2005/authsession/internal/client/repositories/tokens"
	"github.com/dmitrijs2005/authsession/internal/logging"
)

// tokenSession carries the parts of CheckAuthStatus and SignOut that are the
// same for every backend: reading the persisted token and deciding what an
// absent or rejected token means. Backends supply the remote calls.
type tokenSession struct {
	tokens tokens.Store
	log    logging.Logger
}

// restore loads the stored token and resolves its user via current.
// An unreadable store or a token the backend rejects with 401 counts as
// "no session": the store is cleared and (nil, nil) returned.
func (s tokenSession) restore(ctx context.Context, current func(context.Context, string) (*models.User, error)) (*models.User, error) {
	token, err := s.tokens.Load(ctx)
	if err != nil {
		s.log.Warn(ctx, "stored session token unreadable, treating as signed out", "error", err)
		s.discard(ctx)
		return nil, nil
	}
	if token == "" {
		s.log.Debug(ctx, "no stored session token")
		return nil, nil
	}

	user, err := current(ctx, token)
	if err != nil {
		if IsHTTPStatus(err, http.StatusUnauthorized) {
			s.log.Info(ctx, "stored session token rejected by backend", "error", err)
			s.discard(ctx)
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// signOut invalidates the stored token via logout. Nothing stored means
// nothing to invalidate.
func (s tokenSession) signOut(ctx context.Context, logout func(context.Context, string) error) error {
	token, err := s.tokens.Load(ctx)
	if err != nil {
		s.log.Warn(ctx, "stored session token unreadable, skipping remote sign-out", "error", err)
		return nil
	}
	if token == "" {
		return nil
	}
	return logout(ctx, token)
}

func (s tokenSession) discard(ctx context.Context) {
	if err := s.tokens.Clear(ctx); err != nil {
		s.log.Warn(ctx, "failed to clear stored session token", "error", err)
	}
}
