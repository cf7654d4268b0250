package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"companion-backend/internal/config"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "companion:"

// Cache stores JSON-encoded read models. A miss is (false, nil).
// Read models are grouped in scopes, one per account, and every scope has
// a generation counter that is part of the key of its views.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	// Generation returns the counter of scope, 0 when it was never bumped
	Generation(ctx context.Context, scope string) (int64, error)
	Bump(ctx context.Context, scopes ...string) error
}

// View names
const (
	ViewInfo    = "info"
	ViewProfile = "profile"
)

// DependentScope groups the /get_user_info and /get_user_info_all views
func DependentScope(userID string) string {
	return "user:" + userID
}

// CaregiverScope groups the /get_main_nok_info view
func CaregiverScope(nokID string) string {
	return "nok:" + nokID
}

// ViewKey is the key of a view at a given generation of its scope
func ViewKey(scope string, gen int64, view string) string {
	return keyPrefix + scope + ":g" + strconv.FormatInt(gen, 10) + ":" + view
}

func generationKey(scope string) string {
	return keyPrefix + scope + ":gen"
}

// RedisCache is the go-redis backed Cache
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// NewRedisClient creates the redis client from configuration
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

func (c *RedisCache) Generation(ctx context.Context, scope string) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(scope)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation %s: %w", scope, err)
	}
	return gen, nil
}

// Bump increments the generation of every scope. Generation keys carry no
// TTL so a counter never falls back to a value whose views are still live.
func (c *RedisCache) Bump(ctx context.Context, scopes ...string) error {
	if len(scopes) == 0 {
		return nil
	}
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, scope := range scopes {
			pipe.Incr(ctx, generationKey(scope))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis bump %v: %w", scopes, err)
	}
	return nil
}

// Ping reports whether redis is reachable
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// NoopCache never stores anything. Used when redis.addr is empty.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string, any) (bool, error)     { return false, nil }
func (NoopCache) Set(context.Context, string, any) error             { return nil }
func (NoopCache) Generation(context.Context, string) (int64, error) { return 0, nil }
func (NoopCache) Bump(context.Context, ...string) error              { return nil }
