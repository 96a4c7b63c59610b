package sessionstore

import (
	"context"
	"errors"
	"time"
)

var ErrSessionIDRequired = errors.New("sessionID is required")

// Repo keeps token entries server side, grouped by browser session.
// Get returns nil when the entry is absent or expired. Move re-files every entry of
// fromID under toID, keeping expiries, and leaves nothing under fromID.
type Repo interface {
	Put(ctx context.Context, sessionID, name, value string, ttl time.Duration) error
	Get(ctx context.Context, sessionID, name string) (*string, error)
	Delete(ctx context.Context, sessionID, name string) error
	Move(ctx context.Context, fromID, toID string) error
}
