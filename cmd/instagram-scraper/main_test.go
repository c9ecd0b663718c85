package main

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/b9dashboard/social-ingest/internal/config"
)

func TestNewRateLimiter_NoRedisURLFallsBackToLocalLimiter(t *testing.T) {
	env := &config.EnvConfig{InstagramRequestsPerSecond: 55}

	limiter := newRateLimiter(env)

	assert.Contains(t, fmt.Sprintf("%T", limiter), "localLimiter")
}

func TestNewRateLimiter_UnparseableRedisURLFallsBackToLocalLimiter(t *testing.T) {
	env := &config.EnvConfig{InstagramRequestsPerSecond: 55, RedisURL: "::not-a-url::"}

	limiter := newRateLimiter(env)

	assert.Contains(t, fmt.Sprintf("%T", limiter), "localLimiter")
}

func TestNewRateLimiter_ValidRedisURLUsesRedisLimiter(t *testing.T) {
	env := &config.EnvConfig{InstagramRequestsPerSecond: 55, RedisURL: "redis://localhost:6379/0"}

	limiter := newRateLimiter(env)

	assert.Contains(t, fmt.Sprintf("%T", limiter), "redisLimiter")
}
