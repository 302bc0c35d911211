package client

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/authsession/internal/client/mockidentity"
	"github.com/dmitrijs2005/authsession/internal/client/models"
	"github.com/dmitrijs2005/authsession/internal/client/repositories/tokens"
	"github.com/dmitrijs2005/authsession/internal/logging"
)

const defaultMemoryScope = "memory"

// MemoryRepository serves the contract from an in-process directory. It is
// the backend for offline development and for tests that need real
// semantics without a server.
type MemoryRepository struct {
	dir     *mockidentity.Directory
	latency time.Duration
	log     logging.Logger
	session tokenSession
}

type MemoryOption func(*MemoryRepository)

// WithLatency delays every call by d, honoring context cancellation.
func WithLatency(d time.Duration) MemoryOption {
	return func(m *MemoryRepository) { m.latency = d }
}

func WithMemoryLogger(l logging.Logger) MemoryOption {
	return func(m *MemoryRepository) { m.log = l }
}

func NewMemoryRepository(dir *mockidentity.Directory, store tokens.Store, opts ...MemoryOption) *MemoryRepository {
	m := &MemoryRepository{dir: dir, log: logging.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With("backend", defaultMemoryScope)
	m.session = tokenSession{tokens: store, log: m.log}
	return m
}

// Directory exposes the backing directory, e.g. to seed accounts.
func (m *MemoryRepository) Directory() *mockidentity.Directory {
	return m.dir
}

func (m *MemoryRepository) Login(ctx context.Context, creds models.Credentials) (string, error) {
	if err := m.wait(ctx); err != nil {
		return "", m.HandleError(err)
	}
	token, err := m.dir.Login(ctx, creds.Identifier, creds.Secret)
	if err != nil {
		return "", m.HandleError(err)
	}
	return token, nil
}

func (m *MemoryRepository) Register(ctx context.Context, data models.UserData) error {
	if err := m.wait(ctx); err != nil {
		return m.HandleError(err)
	}
	_, err := m.dir.Register(ctx, data)
	return m.HandleError(err)
}

func (m *MemoryRepository) SendResetCode(ctx context.Context, email string) (bool, error) {
	if err := m.wait(ctx); err != nil {
		return false, m.HandleError(err)
	}
	sent, err := m.dir.SendResetCode(ctx, email)
	if err != nil {
		return false, m.HandleError(err)
	}
	return sent, nil
}

func (m *MemoryRepository) VerifyResetCode(ctx context.Context, email, code string) (string, error) {
	if err := m.wait(ctx); err != nil {
		return "", m.HandleError(err)
	}
	token, err := m.dir.VerifyResetCode(ctx, email, code)
	if err != nil {
		return "", m.HandleError(err)
	}
	return token, nil
}

func (m *MemoryRepository) ChangePassword(ctx context.Context, email, newPassword, resetToken string) error {
	if err := m.wait(ctx); err != nil {
		return m.HandleError(err)
	}
	return m.HandleError(m.dir.ChangePassword(ctx, email, newPassword, resetToken))
}

func (m *MemoryRepository) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	if err := m.wait(ctx); err != nil {
		return nil, m.HandleError(err)
	}
	user, err := m.dir.UserByToken(ctx, token)
	if err != nil {
		return nil, m.HandleError(err)
	}
	return user, nil
}

func (m *MemoryRepository) CheckAuthStatus(ctx context.Context) (*models.User, error) {
	return m.session.restore(ctx, m.CurrentUser)
}

func (m *MemoryRepository) SignOut(ctx context.Context) error {
	return m.session.signOut(ctx, func(ctx context.Context, token string) error {
		if err := m.wait(ctx); err != nil {
			return m.HandleError(err)
		}
		return m.HandleError(m.dir.Logout(ctx, token))
	})
}

// HandleError maps directory rejections to *HTTPError with the status the
// REST backend would have answered. Anything else is a NetworkError.
func (m *MemoryRepository) HandleError(err error) error {
	if err == nil {
		return nil
	}
	var de *mockidentity.Error
	if errors.As(err, &de) {
		return &HTTPError{Status: de.Status, Code: de.Code, Message: de.Message}
	}
	return classifyError(defaultMemoryScope, err)
}

func (m *MemoryRepository) Close() error { return nil }

func (m *MemoryRepository) wait(ctx context.Context) error {
	if m.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(m.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
