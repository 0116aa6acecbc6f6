package repository

import (
	"context"

	"crosspost/domain/model"
)

// IToken is the pluggable token store, keyed by (user id, platform).
// Implementations must make single-key reads and writes atomic; no cross-key
// locking is required.
type IToken interface {
	Save(ctx context.Context, token *model.StoredToken) error
	Get(ctx context.Context, userID, platform string) (*model.StoredToken, error)
	Delete(ctx context.Context, userID, platform string) error
	UserIDs(ctx context.Context, platform string) ([]string, error)
}
