package cache

import (
	"context"
	"fmt"
	"time"

	"crosspost/domain/model"
	"crosspost/infrastructure/configuration"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "oauth_session:"

// NewRedisClient connects to Redis using the relay configuration.
func NewRedisClient(ctx context.Context, cfg configuration.RedisClient) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.Database,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisSessionRepository stores in-flight OAuth secrets in Redis with a TTL,
// so callbacks can land on any instance behind a load balancer.
type RedisSessionRepository struct{ client *redis.Client }

func NewRedisSessionRepository(client *redis.Client) *RedisSessionRepository {
	return &RedisSessionRepository{client: client}
}

func (r *RedisSessionRepository) Save(ctx context.Context, key, secret string, ttl time.Duration) error {
	return r.client.Set(ctx, sessionKeyPrefix+key, secret, ttl).Err()
}

func (r *RedisSessionRepository) Take(ctx context.Context, key string) (string, error) {
	secret, err := r.client.GetDel(ctx, sessionKeyPrefix+key).Result()
	if err == redis.Nil {
		return "", model.NewAppError(model.ErrAuthorization, "authorization session not found or expired", nil)
	}
	if err != nil {
		return "", err
	}
	return secret, nil
}
