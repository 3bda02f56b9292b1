package ports

import (
	"context"
	"time"
)

// TokenCache is the fast tier of refresh-token tracking. Entries may vanish at
// any time (TTL, eviction, restart); callers fall back to the UserRepository.
type TokenCache interface {
	// Get returns the cached token for userID and whether an entry existed.
	Get(ctx context.Context, userID int64) (string, bool, error)
	Set(ctx context.Context, userID int64, token string, ttl time.Duration) error
	Delete(ctx context.Context, userID int64) error
}
