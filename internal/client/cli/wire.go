package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/authsession/internal/client/client"
	"github.com/dmitrijs2005/authsession/internal/client/config"
	"github.com/dmitrijs2005/authsession/internal/client/mockidentity"
	"github.com/dmitrijs2005/authsession/internal/client/repositories/tokens"
	"github.com/dmitrijs2005/authsession/internal/filex"
	"github.com/dmitrijs2005/authsession/internal/logging"
	"github.com/redis/go-redis/v9"
)

// newTokenStore opens the store selected by cfg. The returned func releases
// it.
func newTokenStore(ctx context.Context, cfg *config.Config) (tokens.Store, func() error, error) {
	switch cfg.TokenStore {
	case config.StoreSQLite:
		if _, err := filex.EnsureParentDir(cfg.DatabaseDSN); err != nil {
			return nil, nil, err
		}
		db, err := tokens.InitDatabase(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("error initializing database: %w", err)
		}
		return tokens.NewSQLiteStore(db, cfg.TokenPassphrase), db.Close, nil

	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("error connecting to redis %s: %w", cfg.RedisAddr, err)
		}
		return tokens.NewRedisStore(rdb, "", 0), rdb.Close, nil

	case config.StoreMemory:
		return tokens.NewMemoryStore(), func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unknown token store %q", cfg.TokenStore)
	}
}

// newRepository builds the backend selected by cfg. For the memory backend,
// reset codes are written to out since there is no mail to deliver them.
func newRepository(cfg *config.Config, store tokens.Store, log logging.Logger, out io.Writer) (client.AuthRepository, error) {
	switch cfg.Backend {
	case config.BackendREST:
		return client.NewRESTRepository(cfg.ServerEndpointAddr, store, cfg.RequestTimeout, client.WithRESTLogger(log)), nil

	case config.BackendGRPC:
		repo, err := client.NewGRPCRepository(cfg.ServerEndpointAddr, store, cfg.RequestTimeout, client.WithGRPCLogger(log))
		if err != nil {
			return nil, err
		}
		return repo, nil

	case config.BackendMemory:
		dir := mockidentity.NewDirectory(mockidentity.Config{
			Outbox: mockidentity.OutboxFunc(func(_ context.Context, email, code string) error {
				_, err := fmt.Fprintf(out, "[memory backend] reset code for %s: %s\n", email, code)
				return err
			}),
		})
		return client.NewMemoryRepository(dir, store, client.WithMemoryLogger(log)), nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
