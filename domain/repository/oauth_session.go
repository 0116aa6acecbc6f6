package repository

import (
	"context"
	"time"
)

// IOAuthSession holds the short-lived secrets of an in-flight OAuth round trip:
// state -> PKCE code verifier for OAuth 2.0, oauth_token -> token secret for
// OAuth 1.0a. Entries are single-use and expire after their TTL.
type IOAuthSession interface {
	Save(ctx context.Context, key, secret string, ttl time.Duration) error
	// Take returns the stored secret and deletes it in the same step, so a
	// verifier can never be replayed.
	Take(ctx context.Context, key string) (string, error)
}
