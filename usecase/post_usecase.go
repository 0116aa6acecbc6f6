package usecase

import (
	"context"
	"sync"

	"crosspost/domain/model"
	"crosspost/infrastructure/logger"
)

// IPostLister reads back recent posts for the timeline view.
type IPostLister interface {
	ListPosts(ctx context.Context, userID string, max int) ([]model.Post, error)
}

// PostUsecase fans a submission out to every requested platform. Each
// platform succeeds or fails on its own; one bad upload never blocks the
// others.
type PostUsecase struct {
	registry  *PlatformRegistry
	lister    IPostLister
	broadcast func(userID string, result model.PlatformResult)
}

func NewPostUsecase(registry *PlatformRegistry, lister IPostLister) *PostUsecase {
	return &PostUsecase{registry: registry, lister: lister}
}

// WithBroadcaster registers a callback invoked as each platform finishes,
// used to push live status to subscribed clients.
func (u *PostUsecase) WithBroadcaster(broadcast func(userID string, result model.PlatformResult)) *PostUsecase {
	u.broadcast = broadcast
	return u
}

func (u *PostUsecase) CreatePost(ctx context.Context, userID, text string, mediaURLs, platforms []string) []model.PlatformResult {
	results := make([]model.PlatformResult, len(platforms))

	var wg sync.WaitGroup
	for i, platform := range platforms {
		wg.Add(1)
		go func(i int, platform string) {
			defer wg.Done()
			results[i] = u.publishOne(ctx, platform, userID, text, mediaURLs)
			if u.broadcast != nil {
				u.broadcast(userID, results[i])
			}
		}(i, platform)
	}
	wg.Wait()
	return results
}

func (u *PostUsecase) publishOne(ctx context.Context, platform, userID, text string, mediaURLs []string) model.PlatformResult {
	publisher, ok := u.registry.Get(platform)
	if !ok {
		return model.PlatformResult{
			Platform: platform,
			Status:   model.PlatformStatusFailed,
			Error:    "unknown platform",
		}
	}
	if !publisher.Connected(ctx, userID) {
		return model.PlatformResult{
			Platform: platform,
			Status:   model.PlatformStatusNotConnected,
			Error:    "account not connected",
		}
	}

	post, err := publisher.Publish(ctx, userID, text, mediaURLs)
	if err != nil {
		logger.GetLogger().
			WithField("platform", platform).
			WithField("user_id", userID).
			WithField("error", err).
			Error("publish failed")
		return model.PlatformResult{
			Platform: platform,
			Status:   model.PlatformStatusFailed,
			Error:    err.Error(),
		}
	}
	return model.PlatformResult{
		Platform: platform,
		Status:   model.PlatformStatusSuccess,
		Post:     post,
	}
}

func (u *PostUsecase) ListPosts(ctx context.Context, userID string, max int) ([]model.Post, error) {
	return u.lister.ListPosts(ctx, userID, max)
}
