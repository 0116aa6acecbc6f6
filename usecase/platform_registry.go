package usecase

import (
	"context"
	"sync"

	"crosspost/domain/model"
)

// IPlatformPublisher is implemented once per connected platform. Publish
// owns the full path from media URLs to a live post; failures stay scoped
// to the one platform.
type IPlatformPublisher interface {
	Name() string
	Connected(ctx context.Context, userID string) bool
	Publish(ctx context.Context, userID, text string, mediaURLs []string) (*model.Post, error)
}

// PlatformRegistry holds the registered publishers, keyed by platform name.
type PlatformRegistry struct {
	mu         sync.RWMutex
	publishers map[string]IPlatformPublisher
}

func NewPlatformRegistry() *PlatformRegistry {
	return &PlatformRegistry{publishers: map[string]IPlatformPublisher{}}
}

func (r *PlatformRegistry) Register(publisher IPlatformPublisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishers[publisher.Name()] = publisher
}

func (r *PlatformRegistry) Get(platform string) (IPlatformPublisher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	publisher, ok := r.publishers[platform]
	return publisher, ok
}

func (r *PlatformRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.publishers))
	for name := range r.publishers {
		names = append(names, name)
	}
	return names
}
