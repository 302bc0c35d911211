package usecases

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/dmitrijs2005/authsession/internal/client/client"
	"github.com/dmitrijs2005/authsession/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errRejected = &client.HTTPError{Status: http.StatusUnauthorized, Code: "invalid_credentials"}
	errDown     = &client.NetworkError{Op: "login", Err: errors.New("connection refused")}
)

func TestLoginUser(t *testing.T) {
	ctx := context.Background()
	creds := models.Credentials{Identifier: "a@b.c", Secret: []byte("hunter22")}

	t.Run("success", func(t *testing.T) {
		repo := &fakeRepo{token: "session-token"}
		log := &recordLogger{}

		token, err := LoginUser(ctx, repo, log, creds)
		require.NoError(t, err)
		assert.Equal(t, "session-token", token)
		assert.Equal(t, []string{"Login"}, repo.calls)
		assert.Equal(t, creds, repo.lastCreds)
		assert.False(t, log.contains("hunter22"))
		assert.False(t, log.contains("session-token"))
	})

	t.Run("rejection is propagated unchanged", func(t *testing.T) {
		repo := &fakeRepo{err: errRejected}
		log := &recordLogger{}

		token, err := LoginUser(ctx, repo, log, creds)
		assert.Empty(t, token)
		assert.Same(t, errRejected, err)
		assert.Equal(t, []string{"Login"}, repo.calls, "no retry")
		assert.False(t, log.contains("hunter22"))
	})

	t.Run("network failure is propagated unchanged", func(t *testing.T) {
		repo := &fakeRepo{err: errDown}

		_, err := LoginUser(ctx, repo, &recordLogger{}, creds)

		var ne *client.NetworkError
		require.ErrorAs(t, err, &ne)
		assert.Same(t, errDown, ne)
		assert.Len(t, repo.calls, 1)
	})
}

func TestFetchCurrentUser(t *testing.T) {
	u := &models.User{ID: 1, Identifier: "a@b.c"}
	repo := &fakeRepo{user: u}

	got, err := FetchCurrentUser(context.Background(), repo, &recordLogger{}, "tok")
	require.NoError(t, err)
	assert.Same(t, u, got)
	assert.Equal(t, "tok", repo.lastToken)

	repo = &fakeRepo{err: errRejected}
	got, err = FetchCurrentUser(context.Background(), repo, &recordLogger{}, "tok")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestRegisterUser(t *testing.T) {
	data := models.UserData{Identifier: "a@b.c", Secret: []byte("hunter22"), DisplayName: "A"}

	repo := &fakeRepo{}
	log := &recordLogger{}
	require.NoError(t, RegisterUser(context.Background(), repo, log, data))
	assert.Equal(t, data, repo.lastData)
	assert.True(t, log.contains("a@b.c"))
	assert.False(t, log.contains("hunter22"))

	conflict := &client.HTTPError{Status: http.StatusConflict}
	repo = &fakeRepo{err: conflict}
	assert.Same(t, conflict, RegisterUser(context.Background(), repo, &recordLogger{}, data))
}

func TestPasswordResetUseCases(t *testing.T) {
	ctx := context.Background()

	repo := &fakeRepo{sent: true}
	sent, err := ForgotPassword(ctx, repo, &recordLogger{}, "a@b.c")
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, "a@b.c", repo.lastEmail)

	repo = &fakeRepo{resetToken: "rt"}
	log := &recordLogger{}
	rt, err := VerifyResetCode(ctx, repo, log, "a@b.c", "123456")
	require.NoError(t, err)
	assert.Equal(t, "rt", rt)
	assert.Equal(t, "123456", repo.lastCode)
	assert.False(t, log.contains("123456"))

	repo = &fakeRepo{}
	log = &recordLogger{}
	require.NoError(t, ResetPassword(ctx, repo, log, "a@b.c", "new-password", "rt"))
	assert.Equal(t, "new-password", repo.lastPass)
	assert.Equal(t, "rt", repo.lastToken)
	assert.False(t, log.contains("new-password"))

	repo = &fakeRepo{err: errDown}
	sent, err = ForgotPassword(ctx, repo, &recordLogger{}, "a@b.c")
	assert.False(t, sent)
	assert.ErrorIs(t, err, client.ErrUnavailable)
}

func TestRestoreSession(t *testing.T) {
	ctx := context.Background()

	u, err := RestoreSession(ctx, &fakeRepo{}, &recordLogger{})
	require.NoError(t, err)
	assert.Nil(t, u)

	want := &models.User{ID: 3}
	u, err = RestoreSession(ctx, &fakeRepo{user: want}, &recordLogger{})
	require.NoError(t, err)
	assert.Same(t, want, u)

	log := &recordLogger{}
	_, err = RestoreSession(ctx, &fakeRepo{err: errDown}, log)
	assert.Same(t, errDown, err)
	assert.True(t, log.contains("session restore failed"))
}

func TestSignOutUser(t *testing.T) {
	repo := &fakeRepo{}
	require.NoError(t, SignOutUser(context.Background(), repo, &recordLogger{}))
	assert.Equal(t, []string{"SignOut"}, repo.calls)

	repo = &fakeRepo{err: errDown}
	assert.Same(t, errDown, SignOutUser(context.Background(), repo, &recordLogger{}))
}
