package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/authsession/internal/client/mockidentity"
	"github.com/dmitrijs2005/authsession/internal/client/models"
	"github.com/dmitrijs2005/authsession/internal/client/repositories/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	name string
	new  func(t *testing.T, dir *mockidentity.Directory, store tokens.Store) AuthRepository
}

var backends = []backend{
	{
		name: "rest",
		new: func(t *testing.T, dir *mockidentity.Directory, store tokens.Store) AuthRepository {
			srv := httptest.NewServer(newRESTBackend(dir))
			t.Cleanup(srv.Close)
			return NewRESTRepository(srv.URL, store, 5*time.Second)
		},
	},
	{
		name: "grpc",
		new: func(t *testing.T, dir *mockidentity.Directory, store tokens.Store) AuthRepository {
			_, dialer := startGRPCBackend(t, dir)
			repo, err := NewGRPCRepository("passthrough:///bufnet", store, 5*time.Second, WithDialOptions(dialer))
			require.NoError(t, err)
			t.Cleanup(func() { _ = repo.Close() })
			return repo
		},
	},
	{
		name: "memory",
		new: func(_ *testing.T, dir *mockidentity.Directory, store tokens.Store) AuthRepository {
			return NewMemoryRepository(dir, store)
		},
	},
}

func eachBackend(t *testing.T, fn func(t *testing.T, repo AuthRepository, store *tokens.MemoryStore, box *outbox)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			dir, box := newDirectory(t)
			store := tokens.NewMemoryStore()
			fn(t, b.new(t, dir, store), store, box)
		})
	}
}

func TestContract_LoginAndCurrentUser(t *testing.T) {
	eachBackend(t, func(t *testing.T, repo AuthRepository, _ *tokens.MemoryStore, _ *outbox) {
		ctx := context.Background()

		token, err := repo.Login(ctx, models.Credentials{Identifier: testEmail, Secret: []byte(testPassword)})
		require.NoError(t, err)
		require.NotEmpty(t, token)

		u, err := repo.CurrentUser(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, testEmail, u.Identifier)
		assert.Equal(t, "Alice", u.DisplayName)
		assert.EqualValues(t, 1, u.ID)
		assert.False(t, u.CreatedAt.IsZero())
	})
}

func TestContract_LoginWrongPassword(t *testing.T) {
	eachBackend(t, func(t *testing.T, repo AuthRepository, _ *tokens.MemoryStore, _ *outbox) {
		_, err := repo.Login(context.Background(), models.Credentials{Identifier: testEmail, Secret: []byte("nope-nope")})

		var he *HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusUnauthorized, he.Status)
		assert.Equal(t, mockidentity.CodeInvalidCredentials, he.Code)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.NotErrorIs(t, err, ErrUnavailable)
	})
}

func TestContract_RegisterConflictAndValidation(t *testing.T) {
	eachBackend(t, func(t *testing.T, repo AuthRepository, _ *tokens.MemoryStore, _ *outbox) {
		ctx := context.Background()

		err := repo.Register(ctx, models.UserData{Identifier: "bob@example.com", Secret: []byte("long-enough")})
		require.NoError(t, err)

		err = repo.Register(ctx, models.UserData{Identifier: "BOB@example.com", Secret: []byte("long-enough")})
		assert.True(t, IsHTTPStatus(err, http.StatusConflict), "got %v", err)
		assert.NotErrorIs(t, err, ErrUnauthorized)

		err = repo.Register(ctx, models.UserData{Identifier: "not-an-email", Secret: []byte("x")})
		var he *HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusUnprocessableEntity, he.Status)
		assert.Equal(t, mockidentity.CodeValidationFailed, he.Code)

		err = repo.Register(ctx, models.UserData{Identifier: "carol@example.com", Secret: []byte(strings.Repeat("é", 40))})
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusUnprocessableEntity, he.Status)
		assert.Equal(t, "http", Kind(err))
	})
}

func TestContract_PasswordResetFlow(t *testing.T) {
	eachBackend(t, func(t *testing.T, repo AuthRepository, _ *tokens.MemoryStore, box *outbox) {
		ctx := context.Background()

		sent, err := repo.SendResetCode(ctx, testEmail)
		require.NoError(t, err)
		require.True(t, sent)

		sent, err = repo.SendResetCode(ctx, testEmail)
		require.NoError(t, err)
		assert.False(t, sent, "second request inside cooldown")

		_, err = repo.VerifyResetCode(ctx, testEmail, "not-the-code")
		assert.True(t, IsHTTPStatus(err, http.StatusBadRequest), "got %v", err)

		resetToken, err := repo.VerifyResetCode(ctx, testEmail, box.code(testEmail))
		require.NoError(t, err)
		require.NotEmpty(t, resetToken)

		require.NoError(t, repo.ChangePassword(ctx, testEmail, "brand-new-pass", resetToken))

		err = repo.ChangePassword(ctx, testEmail, "another-pass", resetToken)
		assert.ErrorIs(t, err, ErrUnauthorized, "reset token is single use")

		_, err = repo.Login(ctx, models.Credentials{Identifier: testEmail, Secret: []byte(testPassword)})
		assert.ErrorIs(t, err, ErrUnauthorized)

		_, err = repo.Login(ctx, models.Credentials{Identifier: testEmail, Secret: []byte("brand-new-pass")})
		assert.NoError(t, err)
	})
}

func TestContract_CheckAuthStatus(t *testing.T) {
	eachBackend(t, func(t *testing.T, repo AuthRepository, store *tokens.MemoryStore, _ *outbox) {
		ctx := context.Background()

		u, err := repo.CheckAuthStatus(ctx)
		require.NoError(t, err)
		assert.Nil(t, u, "nothing stored")

		token, err := repo.Login(ctx, models.Credentials{Identifier: testEmail, Secret: []byte(testPassword)})
		require.NoError(t, err)
		require.NoError(t, store.Save(ctx, token))

		u, err = repo.CheckAuthStatus(ctx)
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, testEmail, u.Identifier)

		require.NoError(t, store.Save(ctx, "garbage"))
		u, err = repo.CheckAuthStatus(ctx)
		require.NoError(t, err)
		assert.Nil(t, u)

		stored, _ := store.Load(ctx)
		assert.Empty(t, stored, "rejected token is discarded")
	})
}

func TestContract_SignOut(t *testing.T) {
	eachBackend(t, func(t *testing.T, repo AuthRepository, store *tokens.MemoryStore, _ *outbox) {
		ctx := context.Background()

		require.NoError(t, repo.SignOut(ctx), "nothing to sign out")

		token, err := repo.Login(ctx, models.Credentials{Identifier: testEmail, Secret: []byte(testPassword)})
		require.NoError(t, err)
		require.NoError(t, store.Save(ctx, token))

		require.NoError(t, repo.SignOut(ctx))

		_, err = repo.CurrentUser(ctx, token)
		var he *HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, mockidentity.CodeTokenRevoked, he.Code)

		require.NoError(t, repo.SignOut(ctx), "revoking twice is not an error")
	})
}

func TestContract_CanceledContextIsNetworkError(t *testing.T) {
	eachBackend(t, func(t *testing.T, repo AuthRepository, _ *tokens.MemoryStore, _ *outbox) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := repo.Login(ctx, models.Credentials{Identifier: testEmail, Secret: []byte(testPassword)})

		var ne *NetworkError
		require.ErrorAs(t, err, &ne)
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.NotErrorIs(t, err, ErrUnauthorized)
	})
}
