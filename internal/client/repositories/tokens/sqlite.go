package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/cryptox"
	"github.com/dmitrijs2005/authsession/internal/dbx"
)

const (
	keyToken   = "token"
	keyNonce   = "token_nonce"
	keySalt    = "token_salt"
	keySavedAt = "saved_at"
)

// SQLiteStore keeps the token in the session_metadata table.
type SQLiteStore struct {
	db         *sql.DB
	passphrase []byte

	mu      sync.Mutex
	keySalt string
	key     []byte
}

// NewSQLiteStore returns a store over an already migrated db. An empty
// passphrase disables encryption at rest.
func NewSQLiteStore(db *sql.DB, passphrase string) *SQLiteStore {
	s := &SQLiteStore{db: db}
	if passphrase != "" {
		s.passphrase = []byte(passphrase)
	}
	return s
}

func (s *SQLiteStore) encrypted() bool {
	return len(s.passphrase) > 0
}

func (s *SQLiteStore) Load(ctx context.Context) (string, error) {
	token, err := getValue(ctx, s.db, keyToken)
	if err != nil {
		return "", err
	}
	if token == nil {
		return "", nil
	}

	nonce, err := getValue(ctx, s.db, keyNonce)
	if err != nil {
		return "", err
	}
	if nonce == nil {
		return string(token), nil
	}

	if !s.encrypted() {
		return "", fmt.Errorf("%w: token is encrypted but no passphrase configured", common.ErrCorruptedTokenData)
	}

	salt, err := getValue(ctx, s.db, keySalt)
	if err != nil {
		return "", err
	}
	if salt == nil {
		return "", fmt.Errorf("%w: missing salt", common.ErrCorruptedTokenData)
	}

	plain, err := cryptox.Open(token, nonce, s.deriveKey(salt))
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrCorruptedTokenData, err)
	}
	return string(plain), nil
}

func (s *SQLiteStore) Save(ctx context.Context, token string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if !s.encrypted() {
			if err := setValue(ctx, tx, keyToken, []byte(token)); err != nil {
				return err
			}
			if err := deleteValues(ctx, tx, keyNonce, keySalt); err != nil {
				return err
			}
		} else {
			salt, err := getValue(ctx, tx, keySalt)
			if err != nil {
				return err
			}
			if salt == nil {
				salt = cryptox.NewSalt()
			}

			ct, nonce, err := cryptox.Seal([]byte(token), s.deriveKey(salt))
			if err != nil {
				return fmt.Errorf("seal token: %w", err)
			}
			for k, v := range map[string][]byte{keyToken: ct, keyNonce: nonce, keySalt: salt} {
				if err := setValue(ctx, tx, k, v); err != nil {
					return err
				}
			}
		}

		savedAt := strconv.FormatInt(time.Now().UTC().Unix(), 10)
		return setValue(ctx, tx, keySavedAt, []byte(savedAt))
	})
}

// Clear removes the token and everything stored alongside it.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_metadata`); err != nil {
		return fmt.Errorf("failed to clear session metadata: %w", err)
	}
	return nil
}

// SavedAt reports when the current token was stored. ok is false when no
// token is stored.
func (s *SQLiteStore) SavedAt(ctx context.Context) (t time.Time, ok bool, err error) {
	v, err := getValue(ctx, s.db, keySavedAt)
	if err != nil || v == nil {
		return time.Time{}, false, err
	}
	sec, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: saved_at: %v", common.ErrCorruptedTokenData, err)
	}
	return time.Unix(sec, 0).UTC(), true, nil
}

// deriveKey caches the last derived key; argon2id is deliberately slow.
func (s *SQLiteStore) deriveKey(salt []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != nil && s.keySalt == string(salt) {
		return s.key
	}
	s.key = cryptox.DeriveKey(s.passphrase, salt)
	s.keySalt = string(salt)
	return s.key
}

func getValue(ctx context.Context, db dbx.DBTX, key string) ([]byte, error) {
	var value []byte
	err := db.QueryRowContext(ctx, `SELECT value FROM session_metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session metadata[%s]: %w", key, err)
	}
	return value, nil
}

func setValue(ctx context.Context, db dbx.DBTX, key string, value []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO session_metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set session metadata[%s]: %w", key, err)
	}
	return nil
}

func deleteValues(ctx context.Context, db dbx.DBTX, keys ...string) error {
	for _, key := range keys {
		if _, err := db.ExecContext(ctx, `DELETE FROM session_metadata WHERE key = ?`, key); err != nil {
			return fmt.Errorf("failed to delete session metadata[%s]: %w", key, err)
		}
	}
	return nil
}
