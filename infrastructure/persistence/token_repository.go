package persistence

import (
	"context"
	"sync"

	"crosspost/domain/model"
)

// TokenRepository is the in-memory token store used when no database is
// configured. Single-key operations are atomic under the mutex; records are
// copied in and out so callers never share mutable state.
type TokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]model.StoredToken
}

func NewTokenRepository() *TokenRepository {
	return &TokenRepository{tokens: map[string]model.StoredToken{}}
}

func tokenKey(userID, platform string) string {
	return platform + "|" + userID
}

func (r *TokenRepository) Save(_ context.Context, token *model.StoredToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *token
	if token.OAuth1a != nil {
		creds := *token.OAuth1a
		stored.OAuth1a = &creds
	}
	r.tokens[tokenKey(token.UserID, token.Platform)] = stored
	return nil
}

func (r *TokenRepository) Get(_ context.Context, userID, platform string) (*model.StoredToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.tokens[tokenKey(userID, platform)]
	if !ok {
		return nil, model.NewAppError(model.ErrNotAuthenticated, "no "+platform+" token stored for user "+userID, nil)
	}
	token := stored
	if stored.OAuth1a != nil {
		creds := *stored.OAuth1a
		token.OAuth1a = &creds
	}
	return &token, nil
}

func (r *TokenRepository) Delete(_ context.Context, userID, platform string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, tokenKey(userID, platform))
	return nil
}

func (r *TokenRepository) UserIDs(_ context.Context, platform string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for _, stored := range r.tokens {
		if stored.Platform == platform {
			ids = append(ids, stored.UserID)
		}
	}
	return ids, nil
}
