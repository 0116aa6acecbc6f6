package usecase

import (
	"context"
	"sync"
	"time"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/clients/x"
	"crosspost/infrastructure/logger"
)

// IXTokenRefresher exchanges a refresh token for a new token pair.
type IXTokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*x.TokenResult, error)
}

// IXMediaUploader runs the chunked upload for a single media URL.
type IXMediaUploader interface {
	UploadFromURL(ctx context.Context, accessToken, mediaURL string) (string, error)
}

// IXPostClient creates and lists posts on the v2 API.
type IXPostClient interface {
	CreatePost(ctx context.Context, accessToken, text string, mediaIDs []string) (*model.Post, error)
	ListPosts(ctx context.Context, accessToken, userID string, max int) ([]model.Post, error)
}

// XPublisher posts to X: uploads each media URL through the chunked
// pipeline, then creates the post with the collected media IDs.
type XPublisher struct {
	tokens   repository.IToken
	oauth    IXTokenRefresher
	uploader IXMediaUploader
	posts    IXPostClient

	mu      sync.Mutex
	userMus map[string]*sync.Mutex
}

func NewXPublisher(tokens repository.IToken, oauth IXTokenRefresher, uploader IXMediaUploader, posts IXPostClient) *XPublisher {
	return &XPublisher{
		tokens:   tokens,
		oauth:    oauth,
		uploader: uploader,
		posts:    posts,
		userMus:  map[string]*sync.Mutex{},
	}
}

func (p *XPublisher) Name() string { return model.PlatformX }

func (p *XPublisher) Connected(ctx context.Context, userID string) bool {
	_, err := p.tokens.Get(ctx, userID, model.PlatformX)
	return err == nil
}

func (p *XPublisher) Publish(ctx context.Context, userID, text string, mediaURLs []string) (*model.Post, error) {
	token, err := p.ensureFreshToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, mediaURL := range mediaURLs {
		if err := ValidateMediaURL(mediaURL); err != nil {
			return nil, model.NewAppError(model.ErrMediaDownload, "media URL rejected", err).
				WithDetail(err.Error())
		}
	}

	var mediaIDs []string
	for _, mediaURL := range mediaURLs {
		mediaID, err := p.uploader.UploadFromURL(ctx, token.AccessToken, mediaURL)
		if err != nil {
			return nil, err
		}
		mediaIDs = append(mediaIDs, mediaID)
	}

	return p.posts.CreatePost(ctx, token.AccessToken, text, mediaIDs)
}

func (p *XPublisher) ListPosts(ctx context.Context, userID string, max int) ([]model.Post, error) {
	token, err := p.ensureFreshToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	platformUserID := token.PlatformUserID
	if platformUserID == "" {
		platformUserID = userID
	}
	return p.posts.ListPosts(ctx, token.AccessToken, platformUserID, max)
}

// ensureFreshToken returns a usable access token, refreshing and persisting
// it first when the stored one has expired. The per-user lock keeps
// concurrent publishes from racing the refresh and burning the rotated
// refresh token.
func (p *XPublisher) ensureFreshToken(ctx context.Context, userID string) (*model.StoredToken, error) {
	lock := p.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	token, err := p.tokens.Get(ctx, userID, model.PlatformX)
	if err != nil {
		return nil, err
	}
	if !token.Expired(time.Now()) {
		return token, nil
	}

	logger.GetLogger().WithField("user_id", userID).Info("access token expired, refreshing")
	result, err := p.oauth.Refresh(ctx, token.RefreshToken)
	if err != nil {
		return nil, err
	}
	token.AccessToken = result.AccessToken
	token.RefreshToken = result.RefreshToken
	token.ExpiresAt = result.ExpiresAt
	if err := p.tokens.Save(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

func (p *XPublisher) userLock(userID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.userMus[userID]
	if !ok {
		lock = &sync.Mutex{}
		p.userMus[userID] = lock
	}
	return lock
}
