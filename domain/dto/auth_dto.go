package dto

// ConnectTikTokRequest carries the authorization code from the TikTok consent redirect.
type ConnectTikTokRequest struct {
	Code string `json:"code" binding:"required"`
}

// ConnectInstagramRequest stores a long-lived Graph API token for publishing.
type ConnectInstagramRequest struct {
	AccessToken string `json:"access_token" binding:"required"`
	IGUserID    string `json:"ig_user_id" binding:"required"`
	ExpiresIn   int64  `json:"expires_in"`
}

type UsersResponse struct {
	UserIDs []string `json:"user_ids"`
}
