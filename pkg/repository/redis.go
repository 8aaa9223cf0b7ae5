package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/go-redis/redis/v8"
)

const productCacheTTL = 30 * time.Minute

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// Product cache (cache-aside, invalidated by catalog writes and checkout).

func (r *RedisRepository) CacheProduct(ctx context.Context, product *models.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("product:%s", product.ID)
	return r.client.Set(ctx, key, data, productCacheTTL).Err()
}

// GetProductCache returns (nil, nil) on a cache miss.
func (r *RedisRepository) GetProductCache(ctx context.Context, productID string) (*models.Product, error) {
	key := fmt.Sprintf("product:%s", productID)
	data, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var product models.Product
	if err := json.Unmarshal([]byte(data), &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *RedisRepository) InvalidateProducts(ctx context.Context, productIDs ...string) error {
	if len(productIDs) == 0 {
		return nil
	}
	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = fmt.Sprintf("product:%s", id)
	}
	return r.client.Del(ctx, keys...).Err()
}

// Auth sessions, keyed by token ID. Deleting the key revokes the token.

func (r *RedisRepository) SaveSession(ctx context.Context, tokenID, userID string, ttl time.Duration) error {
	key := fmt.Sprintf("session:%s", tokenID)
	return r.client.Set(ctx, key, userID, ttl).Err()
}

// GetSession returns ("", nil) when the session does not exist.
func (r *RedisRepository) GetSession(ctx context.Context, tokenID string) (string, error) {
	key := fmt.Sprintf("session:%s", tokenID)
	userID, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (r *RedisRepository) DeleteSession(ctx context.Context, tokenID string) error {
	key := fmt.Sprintf("session:%s", tokenID)
	return r.client.Del(ctx, key).Err()
}
