package services

import (
	"encoding/json"
	"sync"
	"time"

	"firmsync/internal/models"
	"firmsync/pkg/logger"
	"firmsync/pkg/queue"

	"github.com/google/uuid"
)

// SyncEventChannel 同步事件发布频道
const SyncEventChannel = "sync-events"

// RecordSink 同步结果下游
// 归一化后的记录经此转发给下游处理（入库、文档分析等）
type RecordSink interface {
	Forward(tenantID uint, provider string, records []models.JSON, realTime bool) error
}

// SyncEvent 同步事件（经Redis频道广播，WebSocket桥接给前端）
type SyncEvent struct {
	Type        string `json:"type"`
	SyncID      string `json:"sync_id"`
	TenantID    uint   `json:"tenant_id"`
	Provider    string `json:"provider"`
	RecordCount int    `json:"record_count"`
	Timestamp   int64  `json:"timestamp"`
}

// redisRecordSink 基于Redis队列的下游实现
type redisRecordSink struct {
	queue *queue.RedisQueue
}

// NewRedisRecordSink 创建Redis下游
func NewRedisRecordSink(q *queue.RedisQueue) RecordSink {
	return &redisRecordSink{queue: q}
}

// Forward 转发记录并广播同步事件
func (s *redisRecordSink) Forward(tenantID uint, provider string, records []models.JSON, realTime bool) error {
	raw := make([]json.RawMessage, 0, len(records))
	for _, record := range records {
		raw = append(raw, json.RawMessage(record))
	}

	message := &queue.SyncMessage{
		SyncID:      uuid.New().String(),
		TenantID:    tenantID,
		Provider:    provider,
		RecordCount: len(records),
		Records:     raw,
		RealTime:    realTime,
	}

	if err := s.queue.Enqueue(message); err != nil {
		return err
	}

	// 事件广播失败不影响同步结果
	event := &SyncEvent{
		Type:        "sync_completed",
		SyncID:      message.SyncID,
		TenantID:    tenantID,
		Provider:    provider,
		RecordCount: len(records),
		Timestamp:   time.Now().Unix(),
	}
	if err := s.queue.PublishMessage(SyncEventChannel, event); err != nil {
		logger.GetLogger().WithError(err).Warn("广播同步事件失败")
	}

	return nil
}

// ========== 内存实现（测试用） ==========

// memoryRecordSink 进程内下游，记录所有转发的批次
type memoryRecordSink struct {
	mu      sync.Mutex
	batches [][]models.JSON
}

// NewMemoryRecordSink 创建内存下游
func NewMemoryRecordSink() RecordSink {
	return &memoryRecordSink{}
}

func (s *memoryRecordSink) Forward(tenantID uint, provider string, records []models.JSON, realTime bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, records)
	return nil
}
