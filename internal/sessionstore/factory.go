package sessionstore

import (
	"context"
	"strings"
	"time"
)

// NewStore creates a redis-backed store when an address is configured,
// otherwise in-memory.
func NewStore(ctx context.Context, addr, password string, db int, retention time.Duration) (Store, error) {
	if strings.TrimSpace(addr) == "" {
		return NewInMemoryStore(), nil
	}
	return NewRedisStore(ctx, addr, password, db, retention)
}
