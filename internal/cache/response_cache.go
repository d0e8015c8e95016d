package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"crypto-ai-trader/config"
)

// Cache key for the served metrics payload.
const KeyMetricsResponse = "metrics:response"

// DefaultResponseTTL is how long an API response stays served from Redis.
const DefaultResponseTTL = 15 * time.Second

// ResponseCache provides Redis-based caching for API responses with
// graceful degradation. When Redis is unavailable, operations return
// errors that callers handle by falling through to the live path.
type ResponseCache struct {
	client       *redis.Client
	logger       zerolog.Logger
	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	// Circuit breaker settings
	maxFailures   int
	checkInterval time.Duration
}

// NewResponseCache connects to Redis and verifies connectivity. A failed
// initial connection returns the cache in degraded mode, not an error.
func NewResponseCache(cfg config.RedisConfig, logger zerolog.Logger) (*ResponseCache, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	rc := &ResponseCache{
		client:        client,
		logger:        logger.With().Str("component", "response_cache").Logger(),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		rc.logger.Warn().Err(err).Msg("initial redis connection failed, running degraded")
		return rc, nil
	}

	rc.healthy = true
	rc.lastCheck = time.Now()
	rc.logger.Info().Str("address", cfg.Address).Msg("redis connected")

	return rc, nil
}

// IsHealthy returns whether Redis is currently available.
func (rc *ResponseCache) IsHealthy() bool {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.healthy
}

func (rc *ResponseCache) recordFailure() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.failureCount++
	if rc.failureCount >= rc.maxFailures {
		if rc.healthy {
			rc.logger.Warn().Int("failures", rc.failureCount).
				Msg("circuit breaker open: redis marked unhealthy")
		}
		rc.healthy = false
	}
}

func (rc *ResponseCache) recordSuccess() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if !rc.healthy {
		rc.logger.Info().Msg("circuit breaker closed: redis recovered")
	}
	rc.healthy = true
	rc.failureCount = 0
	rc.lastCheck = time.Now()
}

// checkHealth pings Redis in the background when the breaker is open and
// enough time has passed since the last check.
func (rc *ResponseCache) checkHealth() {
	rc.mu.RLock()
	shouldCheck := !rc.healthy && time.Since(rc.lastCheck) >= rc.checkInterval
	rc.mu.RUnlock()

	if !shouldCheck {
		return
	}

	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := rc.client.Ping(pingCtx).Err(); err == nil {
			rc.recordSuccess()
		} else {
			rc.mu.Lock()
			rc.lastCheck = time.Now()
			rc.mu.Unlock()
		}
	}()
}

// GetJSON retrieves and unmarshals a cached JSON value. A cache miss
// returns redis.Nil.
func (rc *ResponseCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	rc.checkHealth()

	if !rc.IsHealthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	data, err := rc.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return err // cache miss, not a failure
		}
		rc.recordFailure()
		return fmt.Errorf("redis get failed: %w", err)
	}
	rc.recordSuccess()

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return nil
}

// SetJSON marshals and stores a value with the given TTL.
func (rc *ResponseCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	rc.checkHealth()

	if !rc.IsHealthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := rc.client.Set(ctx, key, data, ttl).Err(); err != nil {
		rc.recordFailure()
		return fmt.Errorf("redis set failed: %w", err)
	}

	rc.recordSuccess()
	return nil
}

// Close closes the Redis connection.
func (rc *ResponseCache) Close() error {
	if rc.client != nil {
		return rc.client.Close()
	}
	return nil
}
