package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/authsession/internal/client/client"
	"github.com/dmitrijs2005/authsession/internal/client/models"
	"github.com/dmitrijs2005/authsession/internal/client/repositories/tokens"
	"github.com/dmitrijs2005/authsession/internal/client/usecases"
	"github.com/dmitrijs2005/authsession/internal/logging"
)

// ErrSuperseded is returned by SignIn when a SignOut issued after it started
// has taken precedence.
var ErrSuperseded = errors.New("sign-in superseded by a later sign-out")

type Option func(*Session)

func WithLogger(l logging.Logger) Option {
	return func(s *Session) { s.log = l }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

type Session struct {
	repo    client.AuthRepository
	tokens  tokens.Store
	log     logging.Logger
	metrics *Metrics

	readyCh chan struct{}

	mu       sync.Mutex
	status   Status
	user     *models.User
	started  bool
	ready    bool
	inflight int
	epoch    uint64
	attempts uint64
	subs     map[uint64]chan State
	nextSub  uint64

	// storeMu serialises writes to the token store; tokenOwner is the
	// sign-in attempt whose token is stored, 0 if unknown.
	storeMu    sync.Mutex
	tokenOwner uint64
}

// New creates a session in StatusUnknown. tokens must be the store repo
// reads the persisted token from.
func New(repo client.AuthRepository, store tokens.Store, opts ...Option) *Session {
	s := &Session{
		repo:    repo,
		tokens:  store,
		log:     logging.Nop(),
		readyCh: make(chan struct{}),
		subs:    make(map[uint64]chan State),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "session")
	return s
}

// Start runs the restoration check. Only the first call does anything;
// later calls return immediately. A failed check leaves the session
// Unauthenticated and is logged, not returned.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	epoch := s.epoch
	s.mu.Unlock()

	user, err := usecases.RestoreSession(ctx, s.repo, s.log)
	if err != nil {
		s.metrics.failure("restore", err)
		user = nil
	}

	s.mu.Lock()
	discarded := s.epoch != epoch
	switch {
	case discarded:
		s.log.Info(ctx, "discarding restored session, signed out meanwhile")
	case s.status != StatusUnknown:
		s.log.Debug(ctx, "discarding restored session, sign-in resolved first")
	case user != nil:
		s.setLocked(StatusAuthenticated, user)
		s.log.Info(ctx, "session restored", "identifier", user.Identifier)
	}
	if s.status == StatusUnknown {
		s.setLocked(StatusUnauthenticated, nil)
	}
	s.mu.Unlock()

	// The persisted token predates the sign-out, so it has to go as well,
	// unless a newer sign-in has replaced it already.
	if discarded {
		s.revokeToken(ctx, 0)
	}

	s.mu.Lock()
	s.ready = true
	close(s.readyCh)
	s.publishLocked()
	s.mu.Unlock()
}

// WaitReady blocks until the startup check has finished or ctx is done.
func (s *Session) WaitReady(ctx context.Context) error {
	select {
	case <-s.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SignIn logs in, persists the token and adopts the user. On failure the
// state is left unchanged and the classified repository error is returned.
func (s *Session) SignIn(ctx context.Context, creds models.Credentials) error {
	started := time.Now()
	defer s.metrics.observeSignIn(started)

	s.mu.Lock()
	epoch := s.epoch
	s.attempts++
	attempt := s.attempts
	s.inflight++
	s.publishLocked()
	s.mu.Unlock()

	user, err := s.signIn(ctx, creds, attempt)

	s.mu.Lock()
	s.inflight--
	superseded := s.epoch != epoch
	if err == nil && !superseded {
		s.setLocked(StatusAuthenticated, user)
	}
	s.publishLocked()
	s.mu.Unlock()

	switch {
	case err != nil:
		s.metrics.failure("signin", err)
		return err
	case superseded:
		s.revokeToken(ctx, attempt)
		s.log.Info(ctx, "sign-in discarded, signed out meanwhile", "identifier", creds.Identifier)
		s.metrics.failure("signin", ErrSuperseded)
		return ErrSuperseded
	}

	s.log.Info(ctx, "signed in", "identifier", user.Identifier)
	return nil
}

func (s *Session) signIn(ctx context.Context, creds models.Credentials, attempt uint64) (*models.User, error) {
	token, err := usecases.LoginUser(ctx, s.repo, s.log, creds)
	if err != nil {
		return nil, err
	}

	if err := s.saveToken(ctx, attempt, token); err != nil {
		s.log.Error(ctx, "failed to persist session token", "error", err)
		return nil, fmt.Errorf("persist session token: %w", err)
	}

	user, err := usecases.FetchCurrentUser(ctx, s.repo, s.log, token)
	if err != nil {
		s.clearToken(ctx, attempt)
		return nil, err
	}
	return user, nil
}

// SignOut ends an authenticated session. The remote call and the local
// cleanup may fail; both are logged and the session ends regardless, so
// SignOut always returns nil. Without an authenticated user it does
// nothing except supersede pending sign-ins.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.epoch++
	if s.user == nil {
		s.mu.Unlock()
		return nil
	}
	identifier := s.user.Identifier
	s.inflight++
	s.publishLocked()
	s.mu.Unlock()

	if err := usecases.SignOutUser(ctx, s.repo, s.log); err != nil {
		s.metrics.failure("signout", err)
	}
	s.clearToken(ctx, 0)

	s.mu.Lock()
	s.inflight--
	if s.status != StatusUnauthenticated {
		s.setLocked(StatusUnauthenticated, nil)
	}
	s.publishLocked()
	s.mu.Unlock()

	s.log.Info(ctx, "signed out", "identifier", identifier)
	return nil
}

// RegisterUser creates an account without signing in.
func (s *Session) RegisterUser(ctx context.Context, data models.UserData) error {
	err := usecases.RegisterUser(ctx, s.repo, s.log, data)
	s.metrics.failure("register", err)
	return err
}

// SendResetPasswordEmail requests a reset code for email and reports
// whether one was sent.
func (s *Session) SendResetPasswordEmail(ctx context.Context, email string) (bool, error) {
	sent, err := usecases.ForgotPassword(ctx, s.repo, s.log, email)
	s.metrics.failure("forgot_password", err)
	return sent, err
}

func (s *Session) VerifyResetCode(ctx context.Context, email, code string) (string, error) {
	resetToken, err := usecases.VerifyResetCode(ctx, s.repo, s.log, email, code)
	s.metrics.failure("verify_reset_code", err)
	return resetToken, err
}

func (s *Session) ResetPassword(ctx context.Context, email, newPassword, resetToken string) error {
	err := usecases.ResetPassword(ctx, s.repo, s.log, email, newPassword, resetToken)
	s.metrics.failure("reset_password", err)
	return err
}

// State returns a consistent snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel receiving every published state, starting
// with the current one. A subscriber that falls behind sees only the newest
// state. cancel unsubscribes and closes the channel.
func (s *Session) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			close(ch)
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Session) setLocked(status Status, user *models.User) {
	s.status = status
	s.user = user.Clone()
	s.metrics.transition(status)
}

func (s *Session) snapshotLocked() State {
	return State{
		Status:          s.status,
		User:            s.user.Clone(),
		IsAuthenticated: s.user != nil,
		IsLoading:       !s.ready || s.inflight > 0,
	}
}

func (s *Session) publishLocked() {
	st := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- st:
			continue
		default:
		}
		// Replace the unread state with the newer one.
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}

func (s *Session) saveToken(ctx context.Context, attempt uint64, token string) error {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	if err := s.tokens.Save(ctx, token); err != nil {
		return err
	}
	s.tokenOwner = attempt
	return nil
}

// clearToken removes the stored token. A non-zero attempt clears only the
// token that attempt stored, leaving a newer sign-in's token in place.
func (s *Session) clearToken(ctx context.Context, attempt uint64) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	if attempt != 0 && s.tokenOwner != attempt {
		return
	}
	if err := s.tokens.Clear(ctx); err != nil {
		s.log.Warn(ctx, "failed to clear session token", "error", err)
		return
	}
	s.tokenOwner = 0
}

// revokeToken signs the stored token out remotely and clears it, provided
// the store still holds the token owned by attempt (0 for the token found
// at startup). The remote failure is logged and absorbed like in SignOut.
func (s *Session) revokeToken(ctx context.Context, attempt uint64) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	if s.tokenOwner != attempt {
		return
	}
	if err := usecases.SignOutUser(ctx, s.repo, s.log); err != nil {
		s.metrics.failure("signout", err)
	}
	if err := s.tokens.Clear(ctx); err != nil {
		s.log.Warn(ctx, "failed to clear session token", "error", err)
		return
	}
	s.tokenOwner = 0
}
