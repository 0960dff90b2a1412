package store

import (
	"context"
	"strings"
)

// New creates a postgres-backed store when a database URL is configured,
// otherwise an in-memory store for local/dev use.
func New(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
