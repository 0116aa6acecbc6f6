package model

import "time"

// OAuth1aCredentials is the secondary credential pair obtained through the
// legacy three-legged flow. It authorizes the media-upload surface only.
type OAuth1aCredentials struct {
	AccessToken       string `json:"accessToken"`
	AccessTokenSecret string `json:"accessTokenSecret"`
}

// Platform names used as token store keys.
const (
	PlatformX         = "x"
	PlatformTikTok    = "tiktok"
	PlatformInstagram = "instagram"
)

// StoredToken is the per-user session record for one connected platform
// account, keyed by (user id, platform). The OAuth1a pair is X-specific,
// optional, and can only be attached to an existing record: OAuth 2.0 login
// always precedes the media authorization. PlatformUserID carries a
// platform-native identifier where it differs from the relay user id
// (Instagram business account id, TikTok open id).
type StoredToken struct {
	UserID         string              `json:"userId"`
	Platform       string              `json:"platform"`
	AccessToken    string              `json:"accessToken"`
	RefreshToken   string              `json:"refreshToken"`
	ExpiresAt      time.Time           `json:"expiresAt"`
	OAuth1a        *OAuth1aCredentials `json:"oauth1a,omitempty"`
	PlatformUserID string              `json:"platformUserId,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// Expired reports whether the access token needs a refresh before use.
func (t *StoredToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Identity is the normalized platform identity returned after login.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Handle      string `json:"handle"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// SessionClaims are the relay's own JWT claims issued after a completed
// OAuth 2.0 callback and checked by the API middleware.
type SessionClaims struct {
	UserID string `json:"user_id"`
	Handle string `json:"handle,omitempty"`
	Iat    int64  `json:"iat"`
	Exp    int64  `json:"exp"`
}

// Valid implements jwt.Claims.
func (c SessionClaims) Valid() error {
	if c.Exp != 0 && time.Now().Unix() > c.Exp {
		return ErrSessionExpired
	}
	return nil
}
