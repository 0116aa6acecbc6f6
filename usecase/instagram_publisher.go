package usecase

import (
	"context"
	"strings"

	"crosspost/domain/model"
	"crosspost/domain/repository"
)

// IInstagramClient covers the Graph API container flow.
type IInstagramClient interface {
	CreateContainer(ctx context.Context, accessToken, igUserID, mediaURL, caption string, isVideo bool) (string, error)
	WaitForContainer(ctx context.Context, accessToken, containerID string) error
	Publish(ctx context.Context, accessToken, igUserID, containerID string) (string, error)
	Permalink(ctx context.Context, accessToken, mediaID string) (string, error)
}

// InstagramPublisher runs the container flow: create, poll until FINISHED,
// publish, then fetch the permalink.
type InstagramPublisher struct {
	tokens repository.IToken
	client IInstagramClient
}

func NewInstagramPublisher(tokens repository.IToken, client IInstagramClient) *InstagramPublisher {
	return &InstagramPublisher{tokens: tokens, client: client}
}

func (p *InstagramPublisher) Name() string { return model.PlatformInstagram }

func (p *InstagramPublisher) Connected(ctx context.Context, userID string) bool {
	_, err := p.tokens.Get(ctx, userID, model.PlatformInstagram)
	return err == nil
}

func (p *InstagramPublisher) Publish(ctx context.Context, userID, text string, mediaURLs []string) (*model.Post, error) {
	if len(mediaURLs) != 1 {
		return nil, model.NewAppError(model.ErrPostCreation, "instagram requires exactly one media URL", nil)
	}
	mediaURL := mediaURLs[0]
	if err := ValidateMediaURL(mediaURL); err != nil {
		return nil, model.NewAppError(model.ErrMediaDownload, "media URL rejected", err).
			WithDetail(err.Error())
	}

	token, err := p.tokens.Get(ctx, userID, model.PlatformInstagram)
	if err != nil {
		return nil, err
	}
	igUserID := token.PlatformUserID
	if igUserID == "" {
		return nil, model.NewAppError(model.ErrPrerequisiteMissing, "instagram account id missing", nil)
	}

	isVideo := isVideoURL(mediaURL)
	containerID, err := p.client.CreateContainer(ctx, token.AccessToken, igUserID, mediaURL, text, isVideo)
	if err != nil {
		return nil, err
	}
	if err := p.client.WaitForContainer(ctx, token.AccessToken, containerID); err != nil {
		return nil, err
	}
	mediaID, err := p.client.Publish(ctx, token.AccessToken, igUserID, containerID)
	if err != nil {
		return nil, err
	}

	permalink, err := p.client.Permalink(ctx, token.AccessToken, mediaID)
	if err != nil {
		// The post is live at this point; a missing permalink is not fatal.
		permalink = ""
	}
	return &model.Post{ID: mediaID, Text: text, ShareURL: permalink}, nil
}

func isVideoURL(mediaURL string) bool {
	lower := strings.ToLower(mediaURL)
	for _, ext := range []string{".mp4", ".mov", ".webm"} {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}
