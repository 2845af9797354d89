package services

import "errors"

// 同步失败类型
// 错误文案作为日志行的一部分被前端状态页消费，保持原样，不要改动
var (
	ErrRateLimitExceeded    = errors.New("Rate limit exceeded")
	ErrNoTokensFound        = errors.New("No tokens found")
	ErrNoAdapterForProvider = errors.New("No adapter for provider")
	ErrInvalidDataFormat    = errors.New("Invalid data format")
	ErrNoDataToSync         = errors.New("No data to sync")
)
