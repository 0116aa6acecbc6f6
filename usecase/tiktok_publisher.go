package usecase

import (
	"context"
	"sync"
	"time"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/clients/tiktok"
)

// ITikTokClient covers the direct-post API surface the publisher needs.
type ITikTokClient interface {
	Refresh(ctx context.Context, refreshToken string) (*tiktok.TokenResponse, error)
	PublishFromURL(ctx context.Context, accessToken, videoURL, caption string) (string, error)
	PublishStatus(ctx context.Context, accessToken, publishID string) (string, error)
}

// TikTokPublisher posts a single video per request. TikTok pulls the video
// from the URL itself, so no media is proxied through this service.
type TikTokPublisher struct {
	tokens repository.IToken
	client ITikTokClient

	mu      sync.Mutex
	userMus map[string]*sync.Mutex
}

func NewTikTokPublisher(tokens repository.IToken, client ITikTokClient) *TikTokPublisher {
	return &TikTokPublisher{tokens: tokens, client: client, userMus: map[string]*sync.Mutex{}}
}

func (p *TikTokPublisher) Name() string { return model.PlatformTikTok }

func (p *TikTokPublisher) Connected(ctx context.Context, userID string) bool {
	_, err := p.tokens.Get(ctx, userID, model.PlatformTikTok)
	return err == nil
}

func (p *TikTokPublisher) Publish(ctx context.Context, userID, text string, mediaURLs []string) (*model.Post, error) {
	if len(mediaURLs) != 1 {
		return nil, model.NewAppError(model.ErrPostCreation, "tiktok requires exactly one video URL", nil)
	}
	videoURL := mediaURLs[0]
	if err := ValidateMediaURL(videoURL); err != nil {
		return nil, model.NewAppError(model.ErrMediaDownload, "media URL rejected", err).
			WithDetail(err.Error())
	}

	token, err := p.ensureFreshToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	publishID, err := p.client.PublishFromURL(ctx, token.AccessToken, videoURL, text)
	if err != nil {
		return nil, err
	}
	return &model.Post{ID: publishID, Text: text}, nil
}

func (p *TikTokPublisher) ensureFreshToken(ctx context.Context, userID string) (*model.StoredToken, error) {
	lock := p.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	token, err := p.tokens.Get(ctx, userID, model.PlatformTikTok)
	if err != nil {
		return nil, err
	}
	if !token.Expired(time.Now()) {
		return token, nil
	}

	result, err := p.client.Refresh(ctx, token.RefreshToken)
	if err != nil {
		return nil, err
	}
	token.AccessToken = result.AccessToken
	token.RefreshToken = result.RefreshToken
	token.ExpiresAt = time.Now().Add(time.Duration(result.ExpiresIn) * time.Second)
	if err := p.tokens.Save(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

func (p *TikTokPublisher) userLock(userID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.userMus[userID]
	if !ok {
		lock = &sync.Mutex{}
		p.userMus[userID] = lock
	}
	return lock
}
