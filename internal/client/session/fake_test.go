package session

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/authsession/internal/client/models"
)

// fakeRepo counts calls and delegates to optional hooks. Without hooks,
// Login returns "tok-1", CurrentUser returns user 1 and CheckAuthStatus
// finds no session.
type fakeRepo struct {
	mu    sync.Mutex
	calls map[string]int

	login   func(ctx context.Context, creds models.Credentials) (string, error)
	current func(ctx context.Context, token string) (*models.User, error)
	check   func(ctx context.Context) (*models.User, error)
	signOut func(ctx context.Context) error
}

func (f *fakeRepo) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeRepo) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeRepo) Login(ctx context.Context, creds models.Credentials) (string, error) {
	f.record("Login")
	if f.login != nil {
		return f.login(ctx, creds)
	}
	return "tok-1", nil
}

func (f *fakeRepo) Register(context.Context, models.UserData) error {
	f.record("Register")
	return nil
}

func (f *fakeRepo) SendResetCode(context.Context, string) (bool, error) {
	f.record("SendResetCode")
	return true, nil
}

func (f *fakeRepo) VerifyResetCode(context.Context, string, string) (string, error) {
	f.record("VerifyResetCode")
	return "reset-1", nil
}

func (f *fakeRepo) ChangePassword(context.Context, string, string, string) error {
	f.record("ChangePassword")
	return nil
}

func (f *fakeRepo) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	f.record("CurrentUser")
	if f.current != nil {
		return f.current(ctx, token)
	}
	return &models.User{ID: 1, Identifier: "a@x.com"}, nil
}

func (f *fakeRepo) CheckAuthStatus(ctx context.Context) (*models.User, error) {
	f.record("CheckAuthStatus")
	if f.check != nil {
		return f.check(ctx)
	}
	return nil, nil
}

func (f *fakeRepo) SignOut(ctx context.Context) error {
	f.record("SignOut")
	if f.signOut != nil {
		return f.signOut(ctx)
	}
	return nil
}

func (f *fakeRepo) HandleError(err error) error { return err }

func (f *fakeRepo) Close() error { return nil }

// failingStore wraps a store and fails Save or Clear on demand.
type failingStore struct {
	mu       sync.Mutex
	token    string
	saveErr  error
	clearErr error
}

func (s *failingStore) Load(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *failingStore) Save(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.token = token
	return nil
}

func (s *failingStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clearErr != nil {
		return s.clearErr
	}
	s.token = ""
	return nil
}

var errDiskFull = errors.New("disk full")
