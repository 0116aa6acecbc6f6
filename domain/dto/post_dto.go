package dto

import "crosspost/domain/model"

// CreatePostRequest is the submission fanned out across the selected platforms.
type CreatePostRequest struct {
	UserID    string   `json:"user_id"`
	Text      string   `json:"text" binding:"required"`
	MediaURLs []string `json:"media_urls"`
	Platforms []string `json:"platforms"`
}

type CreatePostResponse struct {
	Success bool                   `json:"success"`
	Results []model.PlatformResult `json:"results"`
}

type ListPostsResponse struct {
	Posts []model.Post `json:"posts"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Detail string `json:"detail,omitempty"`
}
