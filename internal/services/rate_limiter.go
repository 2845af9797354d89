package services

import (
	"fmt"
	"sync"
	"time"

	"firmsync/pkg/config"
)

// rateLimitEntry 单个 (租户, 集成方) 的窗口计数
type rateLimitEntry struct {
	count int       // 当前窗口内的请求数
	reset time.Time // 窗口重置时刻
}

// RateLimiter 滑动窗口限流器
// 按 "{tenantID}:{provider}" 维度限制同步请求频率；
// 计数表只由本结构的方法修改，调用方来自gin协程和cron协程，必须加锁
type RateLimiter struct {
	mu          sync.Mutex
	entries     map[string]*rateLimitEntry
	window      time.Duration
	maxRequests int
}

// NewRateLimiter 创建限流器
func NewRateLimiter(window time.Duration, maxRequests int) *RateLimiter {
	return &RateLimiter{
		entries:     make(map[string]*rateLimitEntry),
		window:      window,
		maxRequests: maxRequests,
	}
}

// NewRateLimiterFromConfig 按全局配置创建限流器
func NewRateLimiterFromConfig() *RateLimiter {
	cfg := config.GetConfig()
	return NewRateLimiter(
		time.Duration(cfg.Sync.RateWindowSec)*time.Second,
		cfg.Sync.RateMaxRequests,
	)
}

// Allow 判断本次请求是否放行
// 新窗口（无记录或已过重置时刻）：本次请求记为新窗口第一次，放行；
// 恰好落在重置时刻的请求归入新窗口（严格大于比较）
func (l *RateLimiter) Allow(tenantID uint, provider string) bool {
	key := rateLimitKey(tenantID, provider)
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.entries[key]
	if !exists || now.After(entry.reset) {
		l.entries[key] = &rateLimitEntry{
			count: 1,
			reset: now.Add(l.window),
		}
		return true
	}

	if entry.count < l.maxRequests {
		entry.count++
		return true
	}

	return false
}

// Reset 清空指定键的计数（用于测试和人工解除限流）
func (l *RateLimiter) Reset(tenantID uint, provider string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, rateLimitKey(tenantID, provider))
}

func rateLimitKey(tenantID uint, provider string) string {
	return fmt.Sprintf("%d:%s", tenantID, provider)
}
