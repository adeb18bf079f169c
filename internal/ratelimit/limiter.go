package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited      = errors.New("rate limited")
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
)

// Config holds rate limiter tuning parameters.
type Config struct {
	MaxAttempts int
	Window      time.Duration
	// FailOpen treats a counter store failure as "allowed". Default is
	// fail-closed: unreachable Redis denies the attempt.
	FailOpen bool
}

// Limiter counts failed login attempts per identifier within a fixed window
// using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a Limiter backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Allow checks whether the identifier is within the attempt budget without
// recording an attempt. Returns ErrRateLimited when the budget is exhausted.
func (l *Limiter) Allow(ctx context.Context, identifier string) error {
	count, err := l.redis.Get(ctx, loginKey(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return l.storeFailure(err)
	}

	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}

	return nil
}

// RegisterFailure records a failed login attempt. The window TTL is set only
// for the first hit, so the counter expires as one fixed window.
func (l *Limiter) RegisterFailure(ctx context.Context, identifier string) error {
	count, err := l.redis.Incr(ctx, loginKey(identifier)).Result()
	if err != nil {
		return l.storeFailure(err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, loginKey(identifier), l.config.Window).Err(); err != nil {
			return l.storeFailure(err)
		}
	}

	if count > int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}

	return nil
}

// Reset clears the failed-login counter. Called after successful
// authentication.
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	if err := l.redis.Del(ctx, loginKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// RetryAfter returns the remaining window for a limited identifier, used to
// derive the Retry-After response header. Zero when no counter exists.
func (l *Limiter) RetryAfter(ctx context.Context, identifier string) (time.Duration, error) {
	ttl, err := l.redis.TTL(ctx, loginKey(identifier)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Attempts returns the current counter for an identifier. Missing keys return
// zero and do not reveal account existence.
func (l *Limiter) Attempts(ctx context.Context, identifier string) (int, error) {
	count, err := l.redis.Get(ctx, loginKey(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return int(count), nil
}

func (l *Limiter) storeFailure(err error) error {
	if l.config.FailOpen {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func loginKey(identifier string) string {
	return "login_attempts:" + strings.ToLower(strings.TrimSpace(identifier))
}
