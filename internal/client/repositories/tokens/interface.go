package tokens

import (
	"context"
	"time"
)

// Store persists at most one session token.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Timestamped is implemented by stores that record when the token was saved.
type Timestamped interface {
	SavedAt(ctx context.Context) (t time.Time, ok bool, err error)
}

var _ Timestamped = (*SQLiteStore)(nil)
