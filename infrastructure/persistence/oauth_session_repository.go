package persistence

import (
	"context"
	"sync"
	"time"

	"crosspost/domain/model"
)

type sessionEntry struct {
	secret    string
	expiresAt time.Time
}

// OAuthSessionRepository keeps in-flight OAuth secrets in memory with a TTL.
// Take consumes an entry so verifiers are single-use.
type OAuthSessionRepository struct {
	mu      sync.Mutex
	entries map[string]sessionEntry
	now     func() time.Time
}

func NewOAuthSessionRepository() *OAuthSessionRepository {
	return &OAuthSessionRepository{entries: map[string]sessionEntry{}, now: time.Now}
}

func (r *OAuthSessionRepository) Save(_ context.Context, key, secret string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	r.entries[key] = sessionEntry{secret: secret, expiresAt: r.now().Add(ttl)}
	return nil
}

func (r *OAuthSessionRepository) Take(_ context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
	}
	if !ok || r.now().After(entry.expiresAt) {
		return "", model.NewAppError(model.ErrAuthorization, "authorization session not found or expired", nil)
	}
	return entry.secret, nil
}

func (r *OAuthSessionRepository) sweepLocked() {
	now := r.now()
	for key, entry := range r.entries {
		if now.After(entry.expiresAt) {
			delete(r.entries, key)
		}
	}
}
