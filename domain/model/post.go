package model

// Post is the externally visible result of publishing to one platform.
type Post struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	ShareURL string   `json:"shareUrl,omitempty"`
	MediaIDs []string `json:"mediaIds,omitempty"`
}

// Platform result statuses.
const (
	PlatformStatusSuccess      = "success"
	PlatformStatusFailed       = "failed"
	PlatformStatusNotConnected = "not_connected"
)

// PlatformResult reports the outcome of a fan-out publish for one platform.
// A failure on one platform never aborts the others.
type PlatformResult struct {
	Platform string `json:"platform"`
	Status   string `json:"status"`
	Post     *Post  `json:"post,omitempty"`
	Error    string `json:"error,omitempty"`
}
