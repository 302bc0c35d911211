package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/authsession/internal/client/client"
	"github.com/dmitrijs2005/authsession/internal/client/config"
	"github.com/dmitrijs2005/authsession/internal/client/repositories/tokens"
	"github.com/dmitrijs2005/authsession/internal/client/session"
	"github.com/dmitrijs2005/authsession/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
)

type App struct {
	config  *config.Config
	log     logging.Logger
	session *session.Session
	store   tokens.Store
	closers []func() error
	reader  *bufio.Reader
	out     io.Writer

	// reset holds the outcome of a verified reset code until the new
	// password is entered.
	reset pendingReset
}

type pendingReset struct {
	email string
	token string
}

// NewApp wires the token store, backend and session selected by c.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	store, closeStore, err := newTokenStore(ctx, c)
	if err != nil {
		return nil, err
	}

	repo, err := newRepository(c, store, log, os.Stdout)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	a := newApp(c, log, repo, store, bufio.NewReader(os.Stdin), os.Stdout,
		session.WithMetrics(session.NewMetrics(prometheus.DefaultRegisterer)))
	a.closers = append(a.closers, closeStore)
	return a, nil
}

func newApp(c *config.Config, log logging.Logger, repo client.AuthRepository, store tokens.Store, reader *bufio.Reader, out io.Writer, opts ...session.Option) *App {
	s := session.New(repo, store, append([]session.Option{session.WithLogger(log)}, opts...)...)
	return &App{
		config:  c,
		log:     log,
		session: s,
		store:   store,
		closers: []func() error{repo.Close},
		reader:  reader,
		out:     out,
	}
}

// Run restores the previous session in the background and serves the REPL
// until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	defer func() {
		if err := a.Close(); err != nil {
			a.log.Warn(ctx, "error releasing resources", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.session.Start(ctx)
	go a.StartStateWatcher(ctx)

	fmt.Fprintln(a.out, "Welcome to authsession CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

// StartStateWatcher prints a line whenever the session status changes.
func (a *App) StartStateWatcher(ctx context.Context) {
	ch, cancel := a.session.Subscribe()
	defer cancel()

	last := session.StatusUnknown
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				return
			}
			if st.Status == last {
				continue
			}
			last = st.Status
			switch {
			case st.IsAuthenticated:
				fmt.Fprintf(a.out, "Signed in as %s\n", st.User.Identifier)
			case st.Status == session.StatusUnauthenticated:
				fmt.Fprintln(a.out, "Signed out")
			}
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) isLoggedIn() bool {
	return a.session.State().IsAuthenticated
}

func (a *App) getStatus() string {
	st := a.session.State()
	switch {
	case st.IsLoading:
		return "(...)"
	case st.IsAuthenticated:
		return fmt.Sprintf("(%s)", st.User.Identifier)
	default:
		return "(signed out)"
	}
}
