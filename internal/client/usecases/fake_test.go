package usecases

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/authsession/internal/client/models"
	"github.com/dmitrijs2005/authsession/internal/logging"
)

// fakeRepo records calls and returns preset results.
type fakeRepo struct {
	calls []string

	lastCreds models.Credentials
	lastData  models.UserData
	lastEmail string
	lastCode  string
	lastToken string
	lastPass  string

	token      string
	user       *models.User
	sent       bool
	resetToken string
	err        error
}

func (f *fakeRepo) Login(_ context.Context, creds models.Credentials) (string, error) {
	f.calls = append(f.calls, "Login")
	f.lastCreds = creds
	return f.token, f.err
}

func (f *fakeRepo) Register(_ context.Context, data models.UserData) error {
	f.calls = append(f.calls, "Register")
	f.lastData = data
	return f.err
}

func (f *fakeRepo) SendResetCode(_ context.Context, email string) (bool, error) {
	f.calls = append(f.calls, "SendResetCode")
	f.lastEmail = email
	return f.sent, f.err
}

func (f *fakeRepo) VerifyResetCode(_ context.Context, email, code string) (string, error) {
	f.calls = append(f.calls, "VerifyResetCode")
	f.lastEmail, f.lastCode = email, code
	return f.resetToken, f.err
}

func (f *fakeRepo) ChangePassword(_ context.Context, email, newPassword, resetToken string) error {
	f.calls = append(f.calls, "ChangePassword")
	f.lastEmail, f.lastPass, f.lastToken = email, newPassword, resetToken
	return f.err
}

func (f *fakeRepo) CurrentUser(_ context.Context, token string) (*models.User, error) {
	f.calls = append(f.calls, "CurrentUser")
	f.lastToken = token
	return f.user, f.err
}

func (f *fakeRepo) CheckAuthStatus(context.Context) (*models.User, error) {
	f.calls = append(f.calls, "CheckAuthStatus")
	return f.user, f.err
}

func (f *fakeRepo) SignOut(context.Context) error {
	f.calls = append(f.calls, "SignOut")
	return f.err
}

func (f *fakeRepo) HandleError(err error) error { return err }

func (f *fakeRepo) Close() error { return nil }

// recordLogger keeps every formatted line.
type recordLogger struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordLogger) add(level, msg string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprint(append([]any{level, " ", msg, " "}, args...)...))
}

func (r *recordLogger) Debug(_ context.Context, msg string, args ...any) { r.add("DEBUG", msg, args...) }
func (r *recordLogger) Info(_ context.Context, msg string, args ...any)  { r.add("INFO", msg, args...) }
func (r *recordLogger) Warn(_ context.Context, msg string, args ...any)  { r.add("WARN", msg, args...) }
func (r *recordLogger) Error(_ context.Context, msg string, args ...any) { r.add("ERROR", msg, args...) }
func (r *recordLogger) With(args ...any) logging.Logger                  { return r }

func (r *recordLogger) contains(s string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lines {
		if strings.Contains(l, s) {
			return true
		}
	}
	return false
}
