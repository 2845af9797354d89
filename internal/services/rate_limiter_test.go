package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowWithinLimit(t *testing.T) {
	limiter := NewRateLimiter(time.Minute, 10)

	for i := 0; i < 10; i++ {
		assert.True(t, limiter.Allow(1, "clio"), "第 %d 次请求应放行", i+1)
	}
	assert.False(t, limiter.Allow(1, "clio"), "第11次请求应被限流")
	assert.False(t, limiter.Allow(1, "clio"))
}

func TestRateLimiterKeysIndependent(t *testing.T) {
	limiter := NewRateLimiter(time.Minute, 10)

	for i := 0; i < 10; i++ {
		limiter.Allow(1, "clio")
	}
	assert.False(t, limiter.Allow(1, "clio"))

	// 不同集成方和不同租户各有独立窗口
	assert.True(t, limiter.Allow(1, "dropbox"))
	assert.True(t, limiter.Allow(2, "clio"))
}

func TestRateLimiterWindowReset(t *testing.T) {
	limiter := NewRateLimiter(time.Minute, 10)

	for i := 0; i < 10; i++ {
		limiter.Allow(7, "google")
	}
	assert.False(t, limiter.Allow(7, "google"))

	// 把重置时刻拨到过去，模拟窗口过期
	limiter.mu.Lock()
	limiter.entries[rateLimitKey(7, "google")].reset = time.Now().Add(-time.Second)
	limiter.mu.Unlock()

	assert.True(t, limiter.Allow(7, "google"), "窗口过期后应重新放行")

	// 新窗口从本次请求重新计数
	limiter.mu.Lock()
	entry := limiter.entries[rateLimitKey(7, "google")]
	limiter.mu.Unlock()
	assert.Equal(t, 1, entry.count)
}

func TestRateLimiterReset(t *testing.T) {
	limiter := NewRateLimiter(time.Minute, 1)

	assert.True(t, limiter.Allow(3, "quickbooks"))
	assert.False(t, limiter.Allow(3, "quickbooks"))

	limiter.Reset(3, "quickbooks")
	assert.True(t, limiter.Allow(3, "quickbooks"))
}
