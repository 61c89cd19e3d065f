package history

import (
	"context"
	"strings"
)

// NewStore creates a postgres-backed store when configured, otherwise the
// file-backed store at storagePath.
func NewStore(ctx context.Context, databaseURL, storagePath string, historyCap int) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewFileStore(storagePath, historyCap), nil
	}
	return NewPostgresStore(ctx, databaseURL, historyCap)
}
